// Package memstore is an in-memory implementation of the repository interfaces.
// Transactions snapshot the whole store and restore it when fn fails, so tests can
// assert that a failed operation left nothing behind.
package memstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"alumni-ledger/internal/adapters/persistence/models"
	"alumni-ledger/internal/adapters/persistence/repositories"
	"alumni-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txKey struct{}

type data struct {
	users    map[uuid.UUID]models.User
	tokens   map[uint]models.RefreshToken
	members  map[uuid.UUID]models.Member
	entries  []models.LedgerEntry
	dues     map[uuid.UUID]models.Due
	loans    map[uuid.UUID]models.Loan
	payments map[uuid.UUID]models.Payment
	reports  map[uuid.UUID]models.Report
	// insertion order per table, used for newest first listings
	order map[uuid.UUID]uint64
}

func newData() data {
	return data{
		users:    map[uuid.UUID]models.User{},
		tokens:   map[uint]models.RefreshToken{},
		members:  map[uuid.UUID]models.Member{},
		dues:     map[uuid.UUID]models.Due{},
		loans:    map[uuid.UUID]models.Loan{},
		payments: map[uuid.UUID]models.Payment{},
		reports:  map[uuid.UUID]models.Report{},
		order:    map[uuid.UUID]uint64{},
	}
}

func (d data) clone() data {
	c := newData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.tokens {
		c.tokens[k] = v
	}
	for k, v := range d.members {
		c.members[k] = v
	}
	c.entries = append([]models.LedgerEntry(nil), d.entries...)
	for k, v := range d.dues {
		c.dues[k] = v
	}
	for k, v := range d.loans {
		c.loans[k] = v
	}
	for k, v := range d.payments {
		c.payments[k] = v
	}
	for k, v := range d.reports {
		c.reports[k] = v
	}
	for k, v := range d.order {
		c.order[k] = v
	}
	return c
}

// Store holds every table. The zero value is not usable; call New.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	d    data
	seq  uint64

	failures map[string]error
	locks    map[string]int
	commits  int
	rollback int
}

// New returns an empty store
func New() *Store {
	return &Store{d: newData(), failures: map[string]error{}, locks: map[string]int{}}
}

// FailOn makes every call of op return err until cleared with a nil err.
// Ops are named "<table>.<Method>", for example "ledger.Create".
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) fail(op string) error {
	return s.failures[op]
}

var errLockOutsideTx = errors.New("memstore: row lock requested outside a transaction")

// lock records a SELECT ... FOR UPDATE on table. Callers hold s.mu.
func (s *Store) lock(ctx context.Context, table string) error {
	if ctx.Value(txKey{}) == nil {
		return errLockOutsideTx
	}
	s.locks[table]++
	return nil
}

// Locks counts the row locks taken on table, for example "dues"
func (s *Store) Locks(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locks[table]
}

func (s *Store) nextSeq() uint64 {
	s.seq++
	return s.seq
}

// Commits and Rollbacks count finished top level transactions
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *Store) Rollbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollback
}

// WithinTransaction implements repositories.Transactor. Top level transactions are
// serialized, which stands in for the row locks a real database takes.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.d.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.d = snapshot
		s.rollback++
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.commits++
	s.mu.Unlock()
	return nil
}

// Repos bundles the repository views over one store
type Repos struct {
	Tx       repositories.Transactor
	Users    repositories.UserRepository
	Tokens   repositories.RefreshTokenRepository
	Members  repositories.MemberRepository
	Ledger   repositories.LedgerEntryRepository
	Dues     repositories.DueRepository
	Loans    repositories.LoanRepository
	Payments repositories.PaymentRepository
	Reports  repositories.ReportRepository
}

// Repos returns every repository backed by s
func (s *Store) Repos() Repos {
	return Repos{
		Tx:       s,
		Users:    &userRepo{s},
		Tokens:   &tokenRepo{s},
		Members:  &memberRepo{s},
		Ledger:   &ledgerRepo{s},
		Dues:     &dueRepo{s},
		Loans:    &loanRepo{s},
		Payments: &paymentRepo{s},
		Reports:  &reportRepo{s},
	}
}

// Member returns a copy of the member aggregate owned by userID
func (s *Store) Member(userID uuid.UUID) (models.Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.d.members {
		if m.UserID == userID {
			return m, true
		}
	}
	return models.Member{}, false
}

// DueCount counts dues including deleted ones
func (s *Store) DueCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.d.dues)
}

// LedgerEntries returns a copy of the audit trail
func (s *Store) LedgerEntries() []models.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.LedgerEntry(nil), s.d.entries...)
}

func stamp(created, updated *time.Time) {
	now := time.Now().UTC()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

// newestFirst sorts by insertion order descending
func (s *Store) newestFirst(ids []uuid.UUID) {
	sort.SliceStable(ids, func(i, j int) bool {
		return s.d.order[ids[i]] > s.d.order[ids[j]]
	})
}

func inPeriod(t time.Time, period domain.DateRange) bool {
	if !period.Start.IsZero() && t.Before(period.Start) {
		return false
	}
	if !period.End.IsZero() && !t.Before(period.End) {
		return false
	}
	return true
}

var errNotFound = gorm.ErrRecordNotFound

// ---------------------------------------------------------------------------
// users

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("users.Create"); err != nil {
		return err
	}
	for _, u := range s.d.users {
		if strings.EqualFold(u.Email, user.Email) {
			return errors.New("duplicate entry for key 'email'")
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	stamp(&user.CreatedAt, &user.UpdatedAt)
	s.d.users[user.ID] = *user
	s.d.order[user.ID] = s.nextSeq()
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.d.users[id]
	if !ok {
		return nil, errNotFound
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.d.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, errNotFound
}

func (r *userRepo) Update(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("users.Update"); err != nil {
		return err
	}
	if _, ok := r.s.d.users[user.ID]; !ok {
		return errNotFound
	}
	stamp(nil, &user.UpdatedAt)
	r.s.d.users[user.ID] = *user
	return nil
}

func (r *userRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if errors.Is(err, errNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *userRepo) CountByRole(ctx context.Context, role domain.Role) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, u := range r.s.d.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// refresh tokens

type tokenRepo struct{ s *Store }

func (r *tokenRepo) Create(ctx context.Context, token *models.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	token.ID = uint(r.s.nextSeq())
	stamp(&token.CreatedAt, nil)
	r.s.d.tokens[token.ID] = *token
	return nil
}

func (r *tokenRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.d.tokens {
		if t.TokenHash == tokenHash {
			return &t, nil
		}
	}
	return nil, errNotFound
}

func (r *tokenRepo) RevokeByTokenHash(ctx context.Context, tokenHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	for id, t := range r.s.d.tokens {
		if t.TokenHash == tokenHash && t.RevokedAt == nil {
			t.RevokedAt = &now
			r.s.d.tokens[id] = t
		}
	}
	return nil
}

func (r *tokenRepo) RevokeAllByUserID(ctx context.Context, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	for id, t := range r.s.d.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			r.s.d.tokens[id] = t
		}
	}
	return nil
}

func (r *tokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, t := range r.s.d.tokens {
		if t.IsExpired() || t.IsRevoked() {
			delete(r.s.d.tokens, id)
			n++
		}
	}
	return n, nil
}

func (r *tokenRepo) CountActiveByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, t := range r.s.d.tokens {
		if t.UserID == userID && !t.IsRevoked() && !t.IsExpired() {
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// members

type memberRepo struct{ s *Store }

func (r *memberRepo) Create(ctx context.Context, member *models.Member) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("members.Create"); err != nil {
		return err
	}
	for _, m := range s.d.members {
		if m.UserID == member.UserID {
			return errors.New("duplicate entry for key 'user_id'")
		}
	}
	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}
	stamp(&member.CreatedAt, &member.UpdatedAt)
	stored := *member
	stored.User = nil
	s.d.members[member.ID] = stored
	s.d.order[member.ID] = s.nextSeq()
	return nil
}

func (r *memberRepo) byUser(userID uuid.UUID) (models.Member, bool) {
	for _, m := range r.s.d.members {
		if m.UserID == userID {
			return m, true
		}
	}
	return models.Member{}, false
}

func (r *memberRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.byUser(userID)
	if !ok {
		return nil, errNotFound
	}
	if u, ok := r.s.d.users[m.UserID]; ok {
		m.User = &u
	}
	return &m, nil
}

func (r *memberRepo) GetByUserIDForUpdate(ctx context.Context, userID uuid.UUID) (*models.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("members.GetByUserIDForUpdate"); err != nil {
		return nil, err
	}
	if err := r.s.lock(ctx, "members"); err != nil {
		return nil, err
	}
	m, ok := r.byUser(userID)
	if !ok {
		return nil, errNotFound
	}
	return &m, nil
}

func (r *memberRepo) UpdateProfile(ctx context.Context, member *models.Member) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.d.members[member.ID]
	if !ok {
		return errNotFound
	}
	stored.GraduationYear = member.GraduationYear
	stored.Department = member.Department
	stored.Occupation = member.Occupation
	stored.Address = member.Address
	stamp(nil, &stored.UpdatedAt)
	r.s.d.members[member.ID] = stored
	return nil
}

func (r *memberRepo) UpdateTotals(ctx context.Context, member *models.Member) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("members.UpdateTotals"); err != nil {
		return err
	}
	stored, ok := r.s.d.members[member.ID]
	if !ok {
		return errNotFound
	}
	stored.TotalDuesPaid = member.TotalDuesPaid
	stored.DuesOwing = member.DuesOwing
	stored.TotalDonations = member.TotalDonations
	stored.ActiveLoans = member.ActiveLoans
	stored.LoanBalance = member.LoanBalance
	stamp(nil, &stored.UpdatedAt)
	r.s.d.members[member.ID] = stored
	return nil
}

func (r *memberRepo) List(ctx context.Context, filter repositories.MemberFilter, offset, limit int) ([]*models.Member, int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(filter.Search)
	var ids []uuid.UUID
	for id, m := range s.d.members {
		u := s.d.users[m.UserID]
		if search != "" &&
			!strings.Contains(strings.ToLower(u.FirstName), search) &&
			!strings.Contains(strings.ToLower(u.LastName), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		if filter.Department != "" && m.Department != filter.Department {
			continue
		}
		if filter.GraduationYear > 0 && m.GraduationYear != filter.GraduationYear {
			continue
		}
		ids = append(ids, id)
	}
	s.newestFirst(ids)

	out := make([]*models.Member, 0, len(ids))
	for _, id := range page(ids, offset, limit) {
		m := s.d.members[id]
		if u, ok := s.d.users[m.UserID]; ok {
			m.User = &u
		}
		out = append(out, &m)
	}
	return out, int64(len(ids)), nil
}

func (r *memberRepo) Totals(ctx context.Context) (*repositories.MemberTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t := &repositories.MemberTotals{
		TotalDuesPaid:  decimal.Zero,
		DuesOwing:      decimal.Zero,
		TotalDonations: decimal.Zero,
		LoanBalance:    decimal.Zero,
	}
	for _, m := range r.s.d.members {
		t.Members++
		t.TotalDuesPaid = t.TotalDuesPaid.Add(m.TotalDuesPaid)
		t.DuesOwing = t.DuesOwing.Add(m.DuesOwing)
		t.TotalDonations = t.TotalDonations.Add(m.TotalDonations)
		t.ActiveLoans += int64(m.ActiveLoans)
		t.LoanBalance = t.LoanBalance.Add(m.LoanBalance)
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// ledger entries

type ledgerRepo struct{ s *Store }

func (r *ledgerRepo) Create(ctx context.Context, entry *models.LedgerEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("ledger.Create"); err != nil {
		return err
	}
	entry.ID = uint(r.s.nextSeq())
	stamp(&entry.CreatedAt, nil)
	r.s.d.entries = append(r.s.d.entries, *entry)
	return nil
}

func (r *ledgerRepo) ListByMember(ctx context.Context, memberID uuid.UUID, offset, limit int) ([]*models.LedgerEntry, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var matched []*models.LedgerEntry
	for i := len(r.s.d.entries) - 1; i >= 0; i-- {
		e := r.s.d.entries[i]
		if e.MemberID == memberID {
			matched = append(matched, &e)
		}
	}
	return page(matched, offset, limit), int64(len(matched)), nil
}

// ---------------------------------------------------------------------------
// dues

type dueRepo struct{ s *Store }

func (r *dueRepo) Create(ctx context.Context, due *models.Due) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("dues.Create"); err != nil {
		return err
	}
	if due.ID == uuid.Nil {
		due.ID = uuid.New()
	}
	stamp(&due.CreatedAt, &due.UpdatedAt)
	stored := *due
	stored.Owner = nil
	r.s.d.dues[due.ID] = stored
	r.s.d.order[due.ID] = r.s.nextSeq()
	return nil
}

func (r *dueRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Due, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.d.dues[id]
	if !ok {
		return nil, errNotFound
	}
	return &d, nil
}

func (r *dueRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Due, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("dues.GetByIDForUpdate"); err != nil {
		return nil, err
	}
	if err := r.s.lock(ctx, "dues"); err != nil {
		return nil, err
	}
	d, ok := r.s.d.dues[id]
	if !ok {
		return nil, errNotFound
	}
	return &d, nil
}

func (r *dueRepo) Update(ctx context.Context, due *models.Due) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("dues.Update"); err != nil {
		return err
	}
	if _, ok := r.s.d.dues[due.ID]; !ok {
		return errNotFound
	}
	stamp(nil, &due.UpdatedAt)
	stored := *due
	stored.Owner = nil
	r.s.d.dues[due.ID] = stored
	return nil
}

func (r *dueRepo) List(ctx context.Context, filter repositories.DueFilter, offset, limit int) ([]*models.Due, int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []uuid.UUID
	for id, d := range s.d.dues {
		if filter.OwnerID != nil && d.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		if filter.Type != "" && d.Type != filter.Type {
			continue
		}
		if filter.OnlyDeleted && !d.IsDeleted {
			continue
		}
		if !filter.OnlyDeleted && !filter.IncludeDeleted && d.IsDeleted {
			continue
		}
		ids = append(ids, id)
	}
	s.newestFirst(ids)

	out := make([]*models.Due, 0, len(ids))
	for _, id := range page(ids, offset, limit) {
		d := s.d.dues[id]
		out = append(out, &d)
	}
	return out, int64(len(ids)), nil
}

func (r *dueRepo) Aggregate(ctx context.Context, period domain.DateRange) ([]repositories.DueAggregate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	type key struct {
		t  domain.DueType
		st domain.DueStatus
	}
	groups := map[key]*repositories.DueAggregate{}
	for _, d := range r.s.d.dues {
		if d.IsDeleted || !inPeriod(d.CreatedAt, period) {
			continue
		}
		k := key{d.Type, d.Status}
		g, ok := groups[k]
		if !ok {
			g = &repositories.DueAggregate{Type: d.Type, Status: d.Status, Total: decimal.Zero, Paid: decimal.Zero}
			groups[k] = g
		}
		g.Count++
		g.Total = g.Total.Add(d.Amount)
		g.Paid = g.Paid.Add(d.PaidAmount)
	}

	out := make([]repositories.DueAggregate, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

// ---------------------------------------------------------------------------
// loans

type loanRepo struct{ s *Store }

func (r *loanRepo) Create(ctx context.Context, loan *models.Loan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("loans.Create"); err != nil {
		return err
	}
	if loan.ID == uuid.Nil {
		loan.ID = uuid.New()
	}
	stamp(&loan.CreatedAt, &loan.UpdatedAt)
	stored := *loan
	stored.Borrower = nil
	r.s.d.loans[loan.ID] = stored
	r.s.d.order[loan.ID] = r.s.nextSeq()
	return nil
}

func (r *loanRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.d.loans[id]
	if !ok {
		return nil, errNotFound
	}
	if u, ok := r.s.d.users[l.BorrowerID]; ok {
		l.Borrower = &u
	}
	return &l, nil
}

func (r *loanRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("loans.GetByIDForUpdate"); err != nil {
		return nil, err
	}
	if err := r.s.lock(ctx, "loans"); err != nil {
		return nil, err
	}
	l, ok := r.s.d.loans[id]
	if !ok {
		return nil, errNotFound
	}
	return &l, nil
}

func (r *loanRepo) Update(ctx context.Context, loan *models.Loan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("loans.Update"); err != nil {
		return err
	}
	if _, ok := r.s.d.loans[loan.ID]; !ok {
		return errNotFound
	}
	stamp(nil, &loan.UpdatedAt)
	stored := *loan
	stored.Borrower = nil
	r.s.d.loans[loan.ID] = stored
	return nil
}

func (r *loanRepo) List(ctx context.Context, filter repositories.LoanFilter, offset, limit int) ([]*models.Loan, int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []uuid.UUID
	for id, l := range s.d.loans {
		if filter.BorrowerID != nil && l.BorrowerID != *filter.BorrowerID {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		ids = append(ids, id)
	}
	s.newestFirst(ids)

	out := make([]*models.Loan, 0, len(ids))
	for _, id := range page(ids, offset, limit) {
		l := s.d.loans[id]
		if u, ok := s.d.users[l.BorrowerID]; ok {
			l.Borrower = &u
		}
		out = append(out, &l)
	}
	return out, int64(len(ids)), nil
}

func (r *loanRepo) Aggregate(ctx context.Context, period domain.DateRange) ([]repositories.LoanAggregate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	groups := map[domain.LoanStatus]*repositories.LoanAggregate{}
	for _, l := range r.s.d.loans {
		if !inPeriod(l.ApplicationDate, period) {
			continue
		}
		g, ok := groups[l.Status]
		if !ok {
			g = &repositories.LoanAggregate{Status: l.Status, Total: decimal.Zero}
			groups[l.Status] = g
		}
		g.Count++
		g.Total = g.Total.Add(l.Amount)
	}

	out := make([]repositories.LoanAggregate, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}

// ---------------------------------------------------------------------------
// payments

type paymentRepo struct{ s *Store }

func (r *paymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("payments.Create"); err != nil {
		return err
	}
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	stamp(&payment.CreatedAt, &payment.UpdatedAt)
	stored := *payment
	stored.Payer = nil
	r.s.d.payments[payment.ID] = stored
	r.s.d.order[payment.ID] = r.s.nextSeq()
	return nil
}

func (r *paymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.d.payments[id]
	if !ok {
		return nil, errNotFound
	}
	return &p, nil
}

func (r *paymentRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("payments.GetByIDForUpdate"); err != nil {
		return nil, err
	}
	if err := r.s.lock(ctx, "payments"); err != nil {
		return nil, err
	}
	p, ok := r.s.d.payments[id]
	if !ok {
		return nil, errNotFound
	}
	return &p, nil
}

func (r *paymentRepo) Update(ctx context.Context, payment *models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("payments.Update"); err != nil {
		return err
	}
	if _, ok := r.s.d.payments[payment.ID]; !ok {
		return errNotFound
	}
	stamp(nil, &payment.UpdatedAt)
	stored := *payment
	stored.Payer = nil
	r.s.d.payments[payment.ID] = stored
	return nil
}

func (r *paymentRepo) List(ctx context.Context, filter repositories.PaymentFilter, offset, limit int) ([]*models.Payment, int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []uuid.UUID
	for id, p := range s.d.payments {
		if filter.PayerID != nil && p.PayerID != *filter.PayerID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Type != "" && p.Type != filter.Type {
			continue
		}
		ids = append(ids, id)
	}
	s.newestFirst(ids)
	sort.SliceStable(ids, func(i, j int) bool {
		return s.d.payments[ids[i]].Date.After(s.d.payments[ids[j]].Date)
	})

	out := make([]*models.Payment, 0, len(ids))
	for _, id := range page(ids, offset, limit) {
		p := s.d.payments[id]
		out = append(out, &p)
	}
	return out, int64(len(ids)), nil
}

func (r *paymentRepo) Aggregate(ctx context.Context, period domain.DateRange) ([]repositories.PaymentAggregate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	type key struct {
		t  domain.PaymentType
		st domain.PaymentStatus
	}
	groups := map[key]*repositories.PaymentAggregate{}
	for _, p := range r.s.d.payments {
		if !inPeriod(p.Date, period) {
			continue
		}
		k := key{p.Type, p.Status}
		g, ok := groups[k]
		if !ok {
			g = &repositories.PaymentAggregate{Type: p.Type, Status: p.Status, Total: decimal.Zero}
			groups[k] = g
		}
		g.Count++
		g.Total = g.Total.Add(p.Amount)
	}

	out := make([]repositories.PaymentAggregate, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}

// ---------------------------------------------------------------------------
// reports

type reportRepo struct{ s *Store }

func (r *reportRepo) Create(ctx context.Context, report *models.Report) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("reports.Create"); err != nil {
		return err
	}
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	stamp(&report.CreatedAt, nil)
	r.s.d.reports[report.ID] = *report
	r.s.d.order[report.ID] = r.s.nextSeq()
	return nil
}

func (r *reportRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rep, ok := r.s.d.reports[id]
	if !ok {
		return nil, errNotFound
	}
	return &rep, nil
}

func (r *reportRepo) List(ctx context.Context, reportType domain.ReportType, offset, limit int) ([]*models.Report, int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []uuid.UUID
	for id, rep := range s.d.reports {
		if reportType != "" && rep.Type != reportType {
			continue
		}
		ids = append(ids, id)
	}
	s.newestFirst(ids)

	out := make([]*models.Report, 0, len(ids))
	for _, id := range page(ids, offset, limit) {
		rep := s.d.reports[id]
		rep.Data = nil
		out = append(out, &rep)
	}
	return out, int64(len(ids)), nil
}
