package services

import (
	"strings"

	"alumni-ledger/internal/adapters/persistence/models"
	"alumni-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// ============================================================
// Due
// ============================================================

// DueOutcomeKind tags the result of a due transition
type DueOutcomeKind string

const (
	DuePartiallyPaid DueOutcomeKind = "partially-paid"
	DueFullyPaid     DueOutcomeKind = "fully-paid"
	DueStatusOnly    DueOutcomeKind = "status-only"
)

// DueOutcome is the new state of a due and the amount the owner's aggregate moves by
type DueOutcome struct {
	Kind       DueOutcomeKind
	Applied    decimal.Decimal
	PaidAmount decimal.Decimal
	Status     domain.DueStatus
}

// Settled reports whether the outcome completes payment of the due
func (o DueOutcome) Settled() bool {
	return o.Kind == DueFullyPaid
}

// ResolveDuePayment records increment against due. The paid amount never exceeds
// the due amount; reaching it approves the due.
func ResolveDuePayment(due *models.Due, increment decimal.Decimal) (DueOutcome, error) {
	if !increment.IsPositive() {
		return DueOutcome{}, domain.Validation("paidAmount must be greater than 0")
	}
	if due.PaidAmount.GreaterThanOrEqual(due.Amount) {
		return DueOutcome{}, domain.Validation("due is already fully paid")
	}

	newPaid := due.PaidAmount.Add(increment)
	if newPaid.GreaterThanOrEqual(due.Amount) {
		return DueOutcome{
			Kind:       DueFullyPaid,
			Applied:    due.Outstanding(),
			PaidAmount: due.Amount,
			Status:     domain.DueStatusApproved,
		}, nil
	}

	return DueOutcome{
		Kind:       DuePartiallyPaid,
		Applied:    increment,
		PaidAmount: newPaid,
		Status:     due.Status,
	}, nil
}

// ResolveDueStatus moves due to status. Approving a due with a shortfall is an
// implicit payment of the remainder.
func ResolveDueStatus(due *models.Due, status domain.DueStatus) (DueOutcome, error) {
	if !status.IsValid() {
		return DueOutcome{}, domain.Validation("invalid due status: %s", status)
	}

	fullyPaid := due.PaidAmount.GreaterThanOrEqual(due.Amount)

	if status == domain.DueStatusApproved && !fullyPaid {
		return DueOutcome{
			Kind:       DueFullyPaid,
			Applied:    due.Outstanding(),
			PaidAmount: due.Amount,
			Status:     domain.DueStatusApproved,
		}, nil
	}

	// an approved due is exactly a fully paid one
	if fullyPaid && status != domain.DueStatusApproved {
		return DueOutcome{}, domain.Validation("due is fully paid; status cannot change to %s", status)
	}

	return DueOutcome{
		Kind:       DueStatusOnly,
		Applied:    decimal.Zero,
		PaidAmount: due.PaidAmount,
		Status:     status,
	}, nil
}

// ============================================================
// Loan
// ============================================================

var loanTransitions = map[domain.LoanStatus][]domain.LoanStatus{
	domain.LoanStatusPending:   {domain.LoanStatusApproved, domain.LoanStatusRejected},
	domain.LoanStatusApproved:  {domain.LoanStatusPaid, domain.LoanStatusDefaulted},
	domain.LoanStatusRejected:  nil,
	domain.LoanStatusPaid:      nil,
	domain.LoanStatusDefaulted: {domain.LoanStatusPaid},
}

// AllowedLoanTransitions lists the statuses reachable from from
func AllowedLoanTransitions(from domain.LoanStatus) []domain.LoanStatus {
	return loanTransitions[from]
}

// CheckLoanTransition validates from -> to against the loan status graph.
// Staying in the same status is always allowed.
func CheckLoanTransition(from, to domain.LoanStatus) error {
	if !to.IsValid() {
		return domain.Validation("invalid loan status: %s", to)
	}
	if from == to {
		return nil
	}

	allowed := AllowedLoanTransitions(from)
	for _, next := range allowed {
		if next == to {
			return nil
		}
	}

	if len(allowed) == 0 {
		return domain.Validation("cannot change loan status from %s to %s: %s is terminal", from, to, from)
	}
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return domain.Validation("cannot change loan status from %s to %s; allowed: %s", from, to, strings.Join(names, ", "))
}

// LoanEffectKind tags the aggregate effect of a loan transition
type LoanEffectKind string

const (
	LoanNoOp       LoanEffectKind = "no-op"
	LoanApproved   LoanEffectKind = "approved"
	LoanRepaid     LoanEffectKind = "repaid"
	LoanRejected   LoanEffectKind = "rejected"
	LoanStatusOnly LoanEffectKind = "status-only"
)

// LoanEffect is the checked result of a loan transition
type LoanEffect struct {
	Kind LoanEffectKind
	From domain.LoanStatus
	To   domain.LoanStatus
}

// ResolveLoanTransition checks from -> to and names its effect on the borrower
func ResolveLoanTransition(from, to domain.LoanStatus) (LoanEffect, error) {
	if err := CheckLoanTransition(from, to); err != nil {
		return LoanEffect{}, err
	}

	effect := LoanEffect{From: from, To: to}
	switch {
	case from == to:
		effect.Kind = LoanNoOp
	case to == domain.LoanStatusApproved:
		effect.Kind = LoanApproved
	case to == domain.LoanStatusPaid:
		effect.Kind = LoanRepaid
	case to == domain.LoanStatusRejected:
		effect.Kind = LoanRejected
	default:
		effect.Kind = LoanStatusOnly
	}
	return effect, nil
}

// ============================================================
// Payment
// ============================================================

// PaymentEffectKind tags the aggregate effect of a payment transition
type PaymentEffectKind string

const (
	PaymentCredit     PaymentEffectKind = "credit"
	PaymentReversal   PaymentEffectKind = "reversal"
	PaymentStatusOnly PaymentEffectKind = "status-only"
)

// PaymentEffect is the checked result of a payment transition
type PaymentEffect struct {
	Kind PaymentEffectKind
	From domain.PaymentStatus
	To   domain.PaymentStatus
}

// ResolvePaymentTransition names the effect of from -> to. credited reports whether the
// payment's amount currently sits on the payer's totals. Entering approved credits it once,
// and entering rejected while credited reverses it. Every other change only moves the status,
// so approved -> pending keeps the credit and a later re-approval adds nothing.
func ResolvePaymentTransition(from, to domain.PaymentStatus, credited bool) (PaymentEffect, error) {
	if !to.IsValid() {
		return PaymentEffect{}, domain.Validation("invalid payment status: %s", to)
	}

	effect := PaymentEffect{From: from, To: to, Kind: PaymentStatusOnly}
	switch {
	case from == to:
	case to == domain.PaymentStatusApproved && !credited:
		effect.Kind = PaymentCredit
	case to == domain.PaymentStatusRejected && credited:
		effect.Kind = PaymentReversal
	}
	return effect, nil
}
