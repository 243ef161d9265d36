package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"alumni-ledger/internal/adapters/persistence/models"
	"alumni-ledger/internal/adapters/persistence/repositories"
	"alumni-ledger/internal/core/domain"
	"alumni-ledger/internal/pkg/pagination"
	"alumni-ledger/internal/pkg/validate"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// ReportService generates and serves point-in-time financial reports
type ReportService struct {
	reports  repositories.ReportRepository
	dues     repositories.DueRepository
	loans    repositories.LoanRepository
	payments repositories.PaymentRepository
	members  repositories.MemberRepository
	log      *zap.Logger
	now      func() time.Time
}

// NewReportService creates a new report service
func NewReportService(
	reports repositories.ReportRepository,
	dues repositories.DueRepository,
	loans repositories.LoanRepository,
	payments repositories.PaymentRepository,
	members repositories.MemberRepository,
	log *zap.Logger,
) *ReportService {
	return &ReportService{
		reports:  reports,
		dues:     dues,
		loans:    loans,
		payments: payments,
		members:  members,
		log:      log.Named("reports"),
		now:      time.Now,
	}
}

// GenerateReportInput represents a report request. EndDate is inclusive.
type GenerateReportInput struct {
	Type      domain.ReportType `json:"type" validate:"required,oneof=financial_summary dues loans donations"`
	Title     string            `json:"title" validate:"max=200"`
	StartDate time.Time         `json:"startDate" validate:"required"`
	EndDate   time.Time         `json:"endDate" validate:"required"`
}

// ReportSummary holds the headline figures of a report
type ReportSummary struct {
	DuesIssued        decimal.Decimal            `json:"duesIssued"`
	DuesCollected     decimal.Decimal            `json:"duesCollected"`
	DuesPaymentsTotal decimal.Decimal            `json:"duesPaymentsApproved"`
	DonationsTotal    decimal.Decimal            `json:"donationsApproved"`
	DonationCount     int64                      `json:"donationCount"`
	LoansApplied      int64                      `json:"loansApplied"`
	LoansDisbursed    decimal.Decimal            `json:"loansDisbursed"`
	PendingPayments   int64                      `json:"pendingPayments"`
	Members           *repositories.MemberTotals `json:"members,omitempty"`
}

// ReportData is the raw aggregation a report was built from
type ReportData struct {
	Period   domain.DateRange                `json:"period"`
	Dues     []repositories.DueAggregate     `json:"dues,omitempty"`
	Loans    []repositories.LoanAggregate    `json:"loans,omitempty"`
	Payments []repositories.PaymentAggregate `json:"payments,omitempty"`
}

// Generate builds and stores a report (admin)
func (s *ReportService) Generate(ctx context.Context, actor domain.Actor, input GenerateReportInput) (*models.Report, error) {
	if err := domain.RequireRole(actor.Role, domain.AdminRoles...); err != nil {
		return nil, err
	}
	if msgs := validate.Check(input); len(msgs) > 0 {
		return nil, domain.ValidationFields(msgs)
	}
	if input.EndDate.Before(input.StartDate) {
		return nil, domain.Validation("endDate must not be before startDate")
	}

	// whole days: the end date is included
	period := domain.DateRange{
		Start: truncateDay(input.StartDate),
		End:   truncateDay(input.EndDate).AddDate(0, 0, 1),
	}
	return s.generate(ctx, input.Type, input.Title, period, uuidPtr(actor.UserID))
}

// GenerateMonthly stores the financial summary of the calendar month before now
func (s *ReportService) GenerateMonthly(ctx context.Context, now time.Time) (*models.Report, error) {
	now = now.UTC()
	end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	period := domain.DateRange{Start: end.AddDate(0, -1, 0), End: end}
	title := fmt.Sprintf("Financial summary %s", period.Start.Format("2006-01"))
	return s.generate(ctx, domain.ReportTypeFinancialSummary, title, period, nil)
}

func (s *ReportService) generate(ctx context.Context, reportType domain.ReportType, title string, period domain.DateRange, by *uuid.UUID) (*models.Report, error) {
	data := ReportData{Period: period}
	summary := ReportSummary{
		DuesIssued:        decimal.Zero,
		DuesCollected:     decimal.Zero,
		DuesPaymentsTotal: decimal.Zero,
		DonationsTotal:    decimal.Zero,
		LoansDisbursed:    decimal.Zero,
	}

	if reportType == domain.ReportTypeFinancialSummary || reportType == domain.ReportTypeDues {
		dues, err := s.dues.Aggregate(ctx, period)
		if err != nil {
			return nil, wrapInternal("aggregate dues", err)
		}
		data.Dues = dues
		for _, d := range dues {
			summary.DuesIssued = summary.DuesIssued.Add(d.Total)
			summary.DuesCollected = summary.DuesCollected.Add(d.Paid)
		}
	}

	if reportType == domain.ReportTypeFinancialSummary || reportType == domain.ReportTypeLoans {
		loans, err := s.loans.Aggregate(ctx, period)
		if err != nil {
			return nil, wrapInternal("aggregate loans", err)
		}
		data.Loans = loans
		for _, l := range loans {
			summary.LoansApplied += l.Count
			switch l.Status {
			case domain.LoanStatusApproved, domain.LoanStatusPaid, domain.LoanStatusDefaulted:
				summary.LoansDisbursed = summary.LoansDisbursed.Add(l.Total)
			}
		}
	}

	if reportType != domain.ReportTypeLoans {
		payments, err := s.payments.Aggregate(ctx, period)
		if err != nil {
			return nil, wrapInternal("aggregate payments", err)
		}
		for _, p := range payments {
			if !includePayment(reportType, p.Type) {
				continue
			}
			data.Payments = append(data.Payments, p)
			if p.Status == domain.PaymentStatusPending {
				summary.PendingPayments += p.Count
			}
			if p.Status != domain.PaymentStatusApproved {
				continue
			}
			switch p.Type {
			case domain.PaymentTypeDues:
				summary.DuesPaymentsTotal = summary.DuesPaymentsTotal.Add(p.Total)
			case domain.PaymentTypeDonation:
				summary.DonationsTotal = summary.DonationsTotal.Add(p.Total)
				summary.DonationCount += p.Count
			}
		}
	}

	if reportType == domain.ReportTypeFinancialSummary {
		totals, err := s.members.Totals(ctx)
		if err != nil {
			return nil, wrapInternal("member totals", err)
		}
		summary.Members = totals
	}

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return nil, domain.Internal("encode report summary", err)
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, domain.Internal("encode report data", err)
	}

	if title == "" {
		title = fmt.Sprintf("%s %s to %s", reportType,
			period.Start.Format("2006-01-02"), period.End.AddDate(0, 0, -1).Format("2006-01-02"))
	}
	report := &models.Report{
		ID:          uuid.New(),
		Type:        reportType,
		Title:       title,
		StartDate:   period.Start,
		EndDate:     period.End,
		GeneratedBy: by,
		Summary:     datatypes.JSON(summaryJSON),
		Data:        datatypes.JSON(dataJSON),
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, wrapInternal("create report", err)
	}

	s.log.Info("report generated",
		zap.String("report_id", report.ID.String()),
		zap.String("type", string(reportType)),
		zap.Time("start", period.Start),
		zap.Time("end", period.End),
	)
	return report, nil
}

func includePayment(reportType domain.ReportType, paymentType domain.PaymentType) bool {
	switch reportType {
	case domain.ReportTypeDues:
		return paymentType == domain.PaymentTypeDues
	case domain.ReportTypeDonations:
		return paymentType == domain.PaymentTypeDonation
	}
	return true
}

// GetByID returns a report (admin). The data payload is kept only when includeData is set.
func (s *ReportService) GetByID(ctx context.Context, actor domain.Actor, id string, includeData bool) (*models.ReportResponse, error) {
	if err := domain.RequireRole(actor.Role, domain.AdminRoles...); err != nil {
		return nil, err
	}
	reportID, err := parseID(id, "report")
	if err != nil {
		return nil, err
	}
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, notFoundOr(err, domain.ErrReportNotFound, "load report")
	}
	return report.ToResponse(includeData), nil
}

// List lists reports without their data payload (admin)
func (s *ReportService) List(ctx context.Context, actor domain.Actor, reportType domain.ReportType, page *pagination.Params) ([]*models.ReportResponse, int64, error) {
	if err := domain.RequireRole(actor.Role, domain.AdminRoles...); err != nil {
		return nil, 0, err
	}
	if reportType != "" && !reportType.IsValid() {
		return nil, 0, domain.Validation("invalid report type: %s", reportType)
	}
	reports, total, err := s.reports.List(ctx, reportType, page.Offset, page.Limit)
	if err != nil {
		return nil, 0, wrapInternal("list reports", err)
	}
	out := make([]*models.ReportResponse, len(reports))
	for i, r := range reports {
		out[i] = r.ToResponse(false)
	}
	return out, total, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
