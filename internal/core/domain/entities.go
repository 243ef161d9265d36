package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the system
type Role string

const (
	RoleMember     Role = "member"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// AdminRoles are the roles allowed to run ledger administration
var AdminRoles = []Role{RoleAdmin, RoleSuperAdmin}

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleMember, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether r is admin or superadmin
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Actor is the authenticated principal performing an operation
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

// IsAdmin reports whether the actor holds an admin role
func (a Actor) IsAdmin() bool {
	return a.Role.IsAdmin()
}

// CanAccess reports whether the actor may see a record owned by ownerID
func (a Actor) CanAccess(ownerID uuid.UUID) bool {
	return a.IsAdmin() || a.UserID == ownerID
}

// DueType enumerates kinds of dues
type DueType string

const (
	DueTypeAnnual     DueType = "annual"
	DueTypeCondolence DueType = "condolence"
	DueTypeWedding    DueType = "wedding"
	DueTypeOther      DueType = "other"
)

func (t DueType) IsValid() bool {
	switch t {
	case DueTypeAnnual, DueTypeCondolence, DueTypeWedding, DueTypeOther:
		return true
	}
	return false
}

// DueStatus is the lifecycle status of a due
type DueStatus string

const (
	DueStatusPending  DueStatus = "pending"
	DueStatusApproved DueStatus = "approved"
	DueStatusRejected DueStatus = "rejected"
)

func (s DueStatus) IsValid() bool {
	switch s {
	case DueStatusPending, DueStatusApproved, DueStatusRejected:
		return true
	}
	return false
}

// LoanStatus is the lifecycle status of a loan
type LoanStatus string

const (
	LoanStatusPending   LoanStatus = "pending"
	LoanStatusApproved  LoanStatus = "approved"
	LoanStatusRejected  LoanStatus = "rejected"
	LoanStatusPaid      LoanStatus = "paid"
	LoanStatusDefaulted LoanStatus = "defaulted"
)

func (s LoanStatus) IsValid() bool {
	switch s {
	case LoanStatusPending, LoanStatusApproved, LoanStatusRejected, LoanStatusPaid, LoanStatusDefaulted:
		return true
	}
	return false
}

// RepaymentTerms enumerates the supported repayment periods
type RepaymentTerms string

const (
	RepaymentTerms3Months  RepaymentTerms = "3_months"
	RepaymentTerms6Months  RepaymentTerms = "6_months"
	RepaymentTerms12Months RepaymentTerms = "12_months"
	RepaymentTerms24Months RepaymentTerms = "24_months"

	DefaultRepaymentTerms = RepaymentTerms12Months
)

func (t RepaymentTerms) IsValid() bool {
	switch t {
	case RepaymentTerms3Months, RepaymentTerms6Months, RepaymentTerms12Months, RepaymentTerms24Months:
		return true
	}
	return false
}

// PaymentType enumerates what a payment is for
type PaymentType string

const (
	PaymentTypeDues     PaymentType = "dues"
	PaymentTypeDonation PaymentType = "donation"
	PaymentTypePledge   PaymentType = "pledge"
	PaymentTypeLevy     PaymentType = "levy"
)

func (t PaymentType) IsValid() bool {
	switch t {
	case PaymentTypeDues, PaymentTypeDonation, PaymentTypePledge, PaymentTypeLevy:
		return true
	}
	return false
}

// AffectsAggregates reports whether approvals of this type move member totals.
// Pledge and levy payments are recorded only.
func (t PaymentType) AffectsAggregates() bool {
	return t == PaymentTypeDues || t == PaymentTypeDonation
}

// PaymentStatus is the lifecycle status of a payment
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusApproved, PaymentStatusRejected:
		return true
	}
	return false
}

// ReportType enumerates report kinds
type ReportType string

const (
	ReportTypeFinancialSummary ReportType = "financial_summary"
	ReportTypeDues             ReportType = "dues"
	ReportTypeLoans            ReportType = "loans"
	ReportTypeDonations        ReportType = "donations"
)

func (t ReportType) IsValid() bool {
	switch t {
	case ReportTypeFinancialSummary, ReportTypeDues, ReportTypeLoans, ReportTypeDonations:
		return true
	}
	return false
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// DateRange is an inclusive start, exclusive end time window
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
