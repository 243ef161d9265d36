package services

import (
	"context"

	"alumni-ledger/internal/adapters/persistence/models"
	"alumni-ledger/internal/adapters/persistence/repositories"
	"alumni-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemberLedgerService is the only writer of member running totals. Every method
// locks the member row, applies its delta with totals floored at zero, and appends
// a ledger entry, all within the caller's transaction when there is one.
type MemberLedgerService struct {
	tx      repositories.Transactor
	members repositories.MemberRepository
	entries repositories.LedgerEntryRepository
}

// NewMemberLedgerService creates a new member ledger service
func NewMemberLedgerService(
	tx repositories.Transactor,
	members repositories.MemberRepository,
	entries repositories.LedgerEntryRepository,
) *MemberLedgerService {
	return &MemberLedgerService{tx: tx, members: members, entries: entries}
}

// adjustment is a signed change to a member's totals
type adjustment struct {
	entryType  string
	sourceType string
	sourceID   uuid.UUID
	actor      *uuid.UUID

	duesOwing      decimal.Decimal
	totalDuesPaid  decimal.Decimal
	totalDonations decimal.Decimal
	loanBalance    decimal.Decimal
	activeLoans    int
}

func (a adjustment) isZero() bool {
	return a.duesOwing.IsZero() && a.totalDuesPaid.IsZero() &&
		a.totalDonations.IsZero() && a.loanBalance.IsZero() && a.activeLoans == 0
}

func (s *MemberLedgerService) apply(ctx context.Context, userID uuid.UUID, adj adjustment) error {
	if adj.isZero() {
		return nil
	}

	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		member, err := s.members.GetByUserIDForUpdate(ctx, userID)
		if err != nil {
			return notFoundOr(err, domain.ErrMemberNotFound, "load member")
		}
		before := *member

		member.DuesOwing = floorZero(member.DuesOwing.Add(adj.duesOwing))
		member.TotalDuesPaid = floorZero(member.TotalDuesPaid.Add(adj.totalDuesPaid))
		member.TotalDonations = floorZero(member.TotalDonations.Add(adj.totalDonations))
		member.LoanBalance = floorZero(member.LoanBalance.Add(adj.loanBalance))
		member.ActiveLoans = max(member.ActiveLoans+adj.activeLoans, 0)

		if err := s.members.UpdateTotals(ctx, member); err != nil {
			return wrapInternal("update member totals", err)
		}

		// record what actually moved after flooring
		entry := &models.LedgerEntry{
			MemberID:            member.ID,
			EntryType:           adj.entryType,
			SourceType:          adj.sourceType,
			SourceID:            adj.sourceID,
			DuesOwingDelta:      member.DuesOwing.Sub(before.DuesOwing),
			TotalDuesPaidDelta:  member.TotalDuesPaid.Sub(before.TotalDuesPaid),
			TotalDonationsDelta: member.TotalDonations.Sub(before.TotalDonations),
			LoanBalanceDelta:    member.LoanBalance.Sub(before.LoanBalance),
			ActiveLoansDelta:    member.ActiveLoans - before.ActiveLoans,
			PerformedBy:         adj.actor,
		}
		if err := s.entries.Create(ctx, entry); err != nil {
			return wrapInternal("append ledger entry", err)
		}
		return nil
	})
}

// ApplyDueIssued adds a new due to the owner's dues owing
func (s *MemberLedgerService) ApplyDueIssued(ctx context.Context, due *models.Due, actor uuid.UUID) error {
	return s.apply(ctx, due.OwnerID, adjustment{
		entryType:  models.EntryDueIssued,
		sourceType: models.SourceDue,
		sourceID:   due.ID,
		actor:      uuidPtr(actor),
		duesOwing:  due.Amount,
	})
}

// ApplyDuePayment moves applied from dues owing; a settled due also counts as paid
func (s *MemberLedgerService) ApplyDuePayment(ctx context.Context, due *models.Due, applied decimal.Decimal, settled bool, actor uuid.UUID) error {
	adj := adjustment{
		entryType:  models.EntryDuePayment,
		sourceType: models.SourceDue,
		sourceID:   due.ID,
		actor:      uuidPtr(actor),
		duesOwing:  applied.Neg(),
	}
	if settled {
		adj.totalDuesPaid = applied
	}
	return s.apply(ctx, due.OwnerID, adj)
}

// ApplyLoanApplication counts a new loan against the borrower
func (s *MemberLedgerService) ApplyLoanApplication(ctx context.Context, loan *models.Loan) error {
	return s.apply(ctx, loan.BorrowerID, adjustment{
		entryType:   models.EntryLoanApplied,
		sourceType:  models.SourceLoan,
		sourceID:    loan.ID,
		actor:       uuidPtr(loan.BorrowerID),
		activeLoans: 1,
	})
}

// ApplyLoanApproval disburses the loan amount onto the balance
func (s *MemberLedgerService) ApplyLoanApproval(ctx context.Context, loan *models.Loan, actor uuid.UUID) error {
	return s.apply(ctx, loan.BorrowerID, adjustment{
		entryType:   models.EntryLoanApproved,
		sourceType:  models.SourceLoan,
		sourceID:    loan.ID,
		actor:       uuidPtr(actor),
		loanBalance: loan.Amount,
	})
}

// ApplyLoanRepaid clears the loan from balance and active count
func (s *MemberLedgerService) ApplyLoanRepaid(ctx context.Context, loan *models.Loan, actor uuid.UUID) error {
	return s.apply(ctx, loan.BorrowerID, adjustment{
		entryType:   models.EntryLoanRepaid,
		sourceType:  models.SourceLoan,
		sourceID:    loan.ID,
		actor:       uuidPtr(actor),
		loanBalance: loan.Amount.Neg(),
		activeLoans: -1,
	})
}

// ApplyLoanRejection drops the loan from the active count. Nothing was disbursed.
func (s *MemberLedgerService) ApplyLoanRejection(ctx context.Context, loan *models.Loan, actor uuid.UUID) error {
	return s.apply(ctx, loan.BorrowerID, adjustment{
		entryType:   models.EntryLoanRejected,
		sourceType:  models.SourceLoan,
		sourceID:    loan.ID,
		actor:       uuidPtr(actor),
		activeLoans: -1,
	})
}

// ApplyPaymentSubmitted reduces dues owing as soon as a dues payment is recorded
func (s *MemberLedgerService) ApplyPaymentSubmitted(ctx context.Context, payment *models.Payment, actor uuid.UUID) error {
	if payment.Type != domain.PaymentTypeDues {
		return nil
	}
	return s.apply(ctx, payment.PayerID, adjustment{
		entryType:  models.EntryPaymentSubmitted,
		sourceType: models.SourcePayment,
		sourceID:   payment.ID,
		actor:      uuidPtr(actor),
		duesOwing:  payment.Amount.Neg(),
	})
}

// ApplyPaymentApproved credits dues paid or donations
func (s *MemberLedgerService) ApplyPaymentApproved(ctx context.Context, payment *models.Payment, actor uuid.UUID) error {
	adj := adjustment{
		entryType:  models.EntryPaymentApproved,
		sourceType: models.SourcePayment,
		sourceID:   payment.ID,
		actor:      uuidPtr(actor),
	}
	switch payment.Type {
	case domain.PaymentTypeDues:
		adj.totalDuesPaid = payment.Amount
	case domain.PaymentTypeDonation:
		adj.totalDonations = payment.Amount
	default:
		return nil
	}
	return s.apply(ctx, payment.PayerID, adj)
}

// ApplyPaymentReversed undoes ApplyPaymentApproved for a rejected payment. A dues
// payment is owed again.
func (s *MemberLedgerService) ApplyPaymentReversed(ctx context.Context, payment *models.Payment, actor uuid.UUID) error {
	adj := adjustment{
		entryType:  models.EntryPaymentReversed,
		sourceType: models.SourcePayment,
		sourceID:   payment.ID,
		actor:      uuidPtr(actor),
	}
	switch payment.Type {
	case domain.PaymentTypeDues:
		adj.totalDuesPaid = payment.Amount.Neg()
		adj.duesOwing = payment.Amount
	case domain.PaymentTypeDonation:
		adj.totalDonations = payment.Amount.Neg()
	default:
		return nil
	}
	return s.apply(ctx, payment.PayerID, adj)
}

// History lists the ledger entries of the member owned by userID
func (s *MemberLedgerService) History(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*models.LedgerEntry, int64, error) {
	member, err := s.members.GetByUserID(ctx, userID)
	if err != nil {
		return nil, 0, notFoundOr(err, domain.ErrMemberNotFound, "load member")
	}
	entries, total, err := s.entries.ListByMember(ctx, member.ID, offset, limit)
	if err != nil {
		return nil, 0, wrapInternal("list ledger entries", err)
	}
	return entries, total, nil
}
