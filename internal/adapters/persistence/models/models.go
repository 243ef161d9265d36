package models

import (
	"time"

	"alumni-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ============================================================
// Auth & identity
// ============================================================

// User represents users table
type User struct {
	ID        uuid.UUID      `gorm:"type:char(36);primaryKey" json:"id"`
	Email     string         `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Password  string         `gorm:"size:255;not null" json:"-"`
	FirstName string         `gorm:"size:100;not null" json:"firstName"`
	LastName  string         `gorm:"size:100;not null" json:"lastName"`
	Phone     string         `gorm:"size:30" json:"phone,omitempty"`
	Role      domain.Role    `gorm:"size:20;not null;default:'member';index" json:"role"`
	IsActive  bool           `gorm:"default:true" json:"isActive"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// FullName joins first and last name
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// UserResponse DTO
type UserResponse struct {
	ID        uuid.UUID   `json:"id"`
	Email     string      `json:"email"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	FullName  string      `json:"fullName"`
	Phone     string      `json:"phone,omitempty"`
	Role      domain.Role `json:"role"`
	IsActive  bool        `json:"isActive"`
	CreatedAt time.Time   `json:"createdAt"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  u.FullName(),
		Phone:     u.Phone,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// RefreshToken represents refresh_tokens table
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:char(36);index;not null" json:"userId"`
	TokenHash string     `gorm:"size:255;not null;index" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expiresAt"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	RevokedAt *time.Time `gorm:"index" json:"revokedAt"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

// ============================================================
// Member aggregate
// ============================================================

// Member holds the alumni profile and the running financial totals.
// Totals are only written by the ledger service.
type Member struct {
	ID             uuid.UUID       `gorm:"type:char(36);primaryKey" json:"id"`
	UserID         uuid.UUID       `gorm:"type:char(36);uniqueIndex;not null" json:"userId"`
	GraduationYear int             `json:"graduationYear,omitempty"`
	Department     string          `gorm:"size:150" json:"department,omitempty"`
	Occupation     string          `gorm:"size:150" json:"occupation,omitempty"`
	Address        string          `gorm:"type:text" json:"address,omitempty"`
	TotalDuesPaid  decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"totalDuesPaid"`
	DuesOwing      decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"duesOwing"`
	TotalDonations decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"totalDonations"`
	ActiveLoans    int             `gorm:"not null;default:0" json:"activeLoans"`
	LoanBalance    decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"loanBalance"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Member) TableName() string {
	return "members"
}

func (m *Member) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// LedgerEntry records one adjustment of a member's totals
type LedgerEntry struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	MemberID            uuid.UUID       `gorm:"type:char(36);not null;index" json:"memberId"`
	EntryType           string          `gorm:"size:50;not null" json:"entryType"`
	SourceType          string          `gorm:"size:20;not null" json:"sourceType"`
	SourceID            uuid.UUID       `gorm:"type:char(36);not null;index" json:"sourceId"`
	DuesOwingDelta      decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"duesOwingDelta"`
	TotalDuesPaidDelta  decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"totalDuesPaidDelta"`
	TotalDonationsDelta decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"totalDonationsDelta"`
	LoanBalanceDelta    decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"loanBalanceDelta"`
	ActiveLoansDelta    int             `gorm:"not null;default:0" json:"activeLoansDelta"`
	PerformedBy         *uuid.UUID      `gorm:"type:char(36)" json:"performedBy"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"createdAt"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// Ledger entry types
const (
	EntryDueIssued        = "DUE_ISSUED"
	EntryDuePayment       = "DUE_PAYMENT"
	EntryLoanApplied      = "LOAN_APPLIED"
	EntryLoanApproved     = "LOAN_APPROVED"
	EntryLoanRepaid       = "LOAN_REPAID"
	EntryLoanRejected     = "LOAN_REJECTED"
	EntryPaymentSubmitted = "PAYMENT_SUBMITTED"
	EntryPaymentApproved  = "PAYMENT_APPROVED"
	EntryPaymentReversed  = "PAYMENT_REVERSED"
)

// Ledger source types
const (
	SourceDue     = "due"
	SourceLoan    = "loan"
	SourcePayment = "payment"
)

// ============================================================
// Ledgers
// ============================================================

// Due is an obligation issued to a member
type Due struct {
	ID             uuid.UUID        `gorm:"type:char(36);primaryKey" json:"id"`
	OwnerID        uuid.UUID        `gorm:"type:char(36);not null;index" json:"ownerId"`
	Title          string           `gorm:"size:200;not null" json:"title"`
	Description    string           `gorm:"type:text" json:"description"`
	Amount         decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"amount"`
	Type           domain.DueType   `gorm:"size:20;not null;index" json:"type"`
	DueDate        time.Time        `gorm:"not null" json:"dueDate"`
	Status         domain.DueStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	PaidAmount     decimal.Decimal  `gorm:"type:decimal(15,2);not null;default:0" json:"paidAmount"`
	IssuedBy       uuid.UUID        `gorm:"type:char(36);not null" json:"issuedBy"`
	IsDeleted      bool             `gorm:"not null;default:false;index" json:"isDeleted"`
	DeletedAt      *time.Time       `json:"deletedAt,omitempty"`
	DeletedBy      *uuid.UUID       `gorm:"type:char(36)" json:"deletedBy,omitempty"`
	DeletionReason string           `gorm:"type:text" json:"deletionReason,omitempty"`
	RestoredAt     *time.Time       `json:"restoredAt,omitempty"`
	RestoredBy     *uuid.UUID       `gorm:"type:char(36)" json:"restoredBy,omitempty"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime" json:"updatedAt"`

	Owner *User `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
}

func (Due) TableName() string {
	return "dues"
}

func (d *Due) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// Outstanding is the unpaid remainder of the due
func (d *Due) Outstanding() decimal.Decimal {
	return d.Amount.Sub(d.PaidAmount)
}

// Loan is a member's loan application
type Loan struct {
	ID              uuid.UUID             `gorm:"type:char(36);primaryKey" json:"id"`
	BorrowerID      uuid.UUID             `gorm:"type:char(36);not null;index" json:"borrowerId"`
	Amount          decimal.Decimal       `gorm:"type:decimal(15,2);not null" json:"amount"`
	Purpose         string                `gorm:"type:text;not null" json:"purpose"`
	ApplicationDate time.Time             `gorm:"not null" json:"applicationDate"`
	Status          domain.LoanStatus     `gorm:"size:20;not null;default:'pending';index" json:"status"`
	ApprovedBy      *uuid.UUID            `gorm:"type:char(36)" json:"approvedBy"`
	ApprovalDate    *time.Time            `json:"approvalDate"`
	RepaymentTerms  domain.RepaymentTerms `gorm:"size:20;not null" json:"repaymentTerms"`
	DueDate         time.Time             `gorm:"not null" json:"dueDate"`
	CreatedAt       time.Time             `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time             `gorm:"autoUpdateTime" json:"updatedAt"`

	Borrower *User `gorm:"foreignKey:BorrowerID" json:"borrower,omitempty"`
}

func (Loan) TableName() string {
	return "loans"
}

func (l *Loan) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// Payment is a payment event recorded for a member
type Payment struct {
	ID          uuid.UUID            `gorm:"type:char(36);primaryKey" json:"id"`
	PayerID     uuid.UUID            `gorm:"type:char(36);not null;index" json:"payerId"`
	Amount      decimal.Decimal      `gorm:"type:decimal(15,2);not null" json:"amount"`
	LoanID      *uuid.UUID           `gorm:"type:char(36);index" json:"loanId,omitempty"`
	Type        domain.PaymentType   `gorm:"size:20;not null;index" json:"type"`
	Description string               `gorm:"type:text" json:"description"`
	Date        time.Time            `gorm:"not null;index" json:"date"`
	Status      domain.PaymentStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	// Credited is set while the amount is counted in the payer's totals
	Credited    bool                 `gorm:"not null;default:false" json:"credited"`
	ReceiptURL  string               `gorm:"size:500" json:"receiptUrl,omitempty"`
	ReviewedBy  *uuid.UUID           `gorm:"type:char(36)" json:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time           `json:"reviewedAt,omitempty"`
	CreatedAt   time.Time            `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time            `gorm:"autoUpdateTime" json:"updatedAt"`

	Payer *User `gorm:"foreignKey:PayerID" json:"payer,omitempty"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ============================================================
// Reports
// ============================================================

// Report is an immutable aggregation snapshot. Data is never serialized by default.
type Report struct {
	ID          uuid.UUID         `gorm:"type:char(36);primaryKey" json:"id"`
	Type        domain.ReportType `gorm:"size:30;not null;index" json:"type"`
	Title       string            `gorm:"size:200;not null" json:"title"`
	StartDate   time.Time         `gorm:"not null" json:"startDate"`
	EndDate     time.Time         `gorm:"not null" json:"endDate"`
	GeneratedBy *uuid.UUID        `gorm:"type:char(36)" json:"generatedBy"`
	Summary     datatypes.JSON    `json:"summary"`
	Data        datatypes.JSON    `json:"-"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"createdAt"`
}

func (Report) TableName() string {
	return "reports"
}

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ReportResponse DTO; Data is populated only on explicit request
type ReportResponse struct {
	ID          uuid.UUID         `json:"id"`
	Type        domain.ReportType `json:"type"`
	Title       string            `json:"title"`
	StartDate   time.Time         `json:"startDate"`
	EndDate     time.Time         `json:"endDate"`
	GeneratedBy *uuid.UUID        `json:"generatedBy"`
	Summary     datatypes.JSON    `json:"summary"`
	Data        datatypes.JSON    `json:"data,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

func (r *Report) ToResponse(includeData bool) *ReportResponse {
	resp := &ReportResponse{
		ID:          r.ID,
		Type:        r.Type,
		Title:       r.Title,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		GeneratedBy: r.GeneratedBy,
		Summary:     r.Summary,
		CreatedAt:   r.CreatedAt,
	}
	if includeData {
		resp.Data = r.Data
	}
	return resp
}

// ============================================================
// Auto Migration
// ============================================================

// AutoMigrate runs auto migration for all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&Member{},
		&LedgerEntry{},
		&Due{},
		&Loan{},
		&Payment{},
		&Report{},
	)
}
