package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"bankledger/internal/model"
	"bankledger/internal/repository"
)

// ==================== journal ====================

type Journal struct {
	mu      sync.Mutex
	entries []*model.JournalEntry
}

func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) Append(ctx context.Context, entries ...*model.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, e := range entries {
		cp := *e
		cp.ID = int64(len(j.entries) + 1)
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = time.Now()
		}
		j.entries = append(j.entries, &cp)
	}
	return nil
}

// ListByAccount returns newest first.
func (j *Journal) ListByAccount(ctx context.Context, accountNumber int64, limit int) ([]*model.JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []*model.JournalEntry
	for i := len(j.entries) - 1; i >= 0; i-- {
		if j.entries[i].AccountNumber == accountNumber {
			cp := *j.entries[i]
			out = append(out, &cp)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// ==================== outbox ====================

type Outbox struct {
	mu       sync.Mutex
	messages []*model.OutboxMessage
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Enqueue(ctx context.Context, msg *model.OutboxMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if msg.Status == "" {
		msg.Status = model.OutboxStatusPending
	}
	msg.ID = int64(len(o.messages) + 1)
	msg.CreatedAt = time.Now()
	cp := *msg
	o.messages = append(o.messages, &cp)
	return nil
}

func (o *Outbox) PendingEvents(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []*model.OutboxMessage
	for _, m := range o.messages {
		if m.Status == model.OutboxStatusPending {
			cp := *m
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (o *Outbox) MarkPublished(ctx context.Context, id int64) error {
	return o.update(id, func(m *model.OutboxMessage) { m.Status = model.OutboxStatusSent })
}

func (o *Outbox) RecordFailure(ctx context.Context, id int64, maxAttempts int) error {
	return o.update(id, func(m *model.OutboxMessage) {
		m.RetryCount++
		if m.RetryCount >= maxAttempts {
			m.Status = model.OutboxStatusFailed
		}
	})
}

// Messages returns a copy of everything written so far.
func (o *Outbox) Messages() []model.OutboxMessage {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]model.OutboxMessage, len(o.messages))
	for i, m := range o.messages {
		out[i] = *m
	}
	return out
}

func (o *Outbox) update(id int64, fn func(m *model.OutboxMessage)) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, m := range o.messages {
		if m.ID == id {
			if m.Status != model.OutboxStatusPending {
				return nil
			}
			fn(m)
			m.UpdatedAt = time.Now()
			return nil
		}
	}
	return repository.ErrNotFound
}

// ==================== customers ====================

type CustomerStore struct {
	mu        sync.Mutex
	customers map[int64]*model.Customer

	createHook func(c *model.Customer) error
}

func NewCustomerStore() *CustomerStore {
	return &CustomerStore{customers: make(map[int64]*model.Customer)}
}

// SetCreateHook installs a function run before each Create; a non-nil
// error fails the insert.
func (s *CustomerStore) SetCreateHook(hook func(c *model.Customer) error) {
	s.mu.Lock()
	s.createHook = hook
	s.mu.Unlock()
}

func (s *CustomerStore) Create(ctx context.Context, c *model.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createHook != nil {
		if err := s.createHook(c); err != nil {
			return err
		}
	}
	cp := *c
	s.customers[c.CustomerID] = &cp
	return nil
}

func (s *CustomerStore) UpdateProfile(ctx context.Context, c *model.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.customers[c.CustomerID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.Name, cur.Email, cur.Phone = c.Name, c.Email, c.Phone
	return nil
}

func (s *CustomerStore) Get(ctx context.Context, customerID int64) (*model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[customerID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// ==================== requests and products ====================

// RequestStore also holds accepted loans and deposits so that accepting a
// request and creating its product happen under one lock.
type RequestStore struct {
	mu              sync.Mutex
	accountRequests map[int64]*model.AccountRequest
	loanRequests    map[int64]*model.LoanRequest
	fdRequests      map[int64]*model.FDRequest
	loans           []*model.Loan
	fds             []*model.FixedDeposit

	readHook func(requestID int64)
}

func NewRequestStore() *RequestStore {
	return &RequestStore{
		accountRequests: make(map[int64]*model.AccountRequest),
		loanRequests:    make(map[int64]*model.LoanRequest),
		fdRequests:      make(map[int64]*model.FDRequest),
	}
}

func (s *RequestStore) CreateAccountRequest(ctx context.Context, req *model.AccountRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *req
	s.accountRequests[req.RequestID] = &cp
	return nil
}

// SetAccountRequestReadHook installs a function run after each
// GetAccountRequest, outside the store lock.
func (s *RequestStore) SetAccountRequestReadHook(hook func(requestID int64)) {
	s.mu.Lock()
	s.readHook = hook
	s.mu.Unlock()
}

func (s *RequestStore) GetAccountRequest(ctx context.Context, requestID int64) (*model.AccountRequest, error) {
	s.mu.Lock()
	req, ok := s.accountRequests[requestID]
	hook := s.readHook
	var cp model.AccountRequest
	if ok {
		cp = *req
	}
	s.mu.Unlock()

	if hook != nil {
		hook(requestID)
	}
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &cp, nil
}

func (s *RequestStore) ListAccountRequests(ctx context.Context) ([]*model.AccountRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.AccountRequest, 0, len(s.accountRequests))
	for _, req := range s.accountRequests {
		cp := *req
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestID < out[j].RequestID })
	return out, nil
}

func (s *RequestStore) DeleteAccountRequest(ctx context.Context, requestID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accountRequests[requestID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.accountRequests, requestID)
	return nil
}

func (s *RequestStore) CreateLoanRequest(ctx context.Context, req *model.LoanRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *req
	s.loanRequests[req.RequestID] = &cp
	return nil
}

func (s *RequestStore) GetLoanRequest(ctx context.Context, requestID int64) (*model.LoanRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.loanRequests[requestID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (s *RequestStore) ListLoanRequests(ctx context.Context) ([]*model.LoanRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.LoanRequest, 0, len(s.loanRequests))
	for _, req := range s.loanRequests {
		cp := *req
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestID < out[j].RequestID })
	return out, nil
}

func (s *RequestStore) DeleteLoanRequest(ctx context.Context, requestID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loanRequests[requestID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.loanRequests, requestID)
	return nil
}

func (s *RequestStore) CreateFDRequest(ctx context.Context, req *model.FDRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *req
	s.fdRequests[req.RequestID] = &cp
	return nil
}

func (s *RequestStore) GetFDRequest(ctx context.Context, requestID int64) (*model.FDRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.fdRequests[requestID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (s *RequestStore) ListFDRequests(ctx context.Context) ([]*model.FDRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.FDRequest, 0, len(s.fdRequests))
	for _, req := range s.fdRequests {
		cp := *req
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestID < out[j].RequestID })
	return out, nil
}

func (s *RequestStore) DeleteFDRequest(ctx context.Context, requestID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fdRequests[requestID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.fdRequests, requestID)
	return nil
}

func (s *RequestStore) AcceptLoan(ctx context.Context, requestID int64, loan *model.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loanRequests[requestID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.loanRequests, requestID)
	cp := *loan
	s.loans = append(s.loans, &cp)
	return nil
}

func (s *RequestStore) ListLoans(ctx context.Context, customerID int64) ([]*model.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Loan
	for _, l := range s.loans {
		if l.CustomerID == customerID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *RequestStore) AcceptFD(ctx context.Context, requestID int64, fd *model.FixedDeposit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fdRequests[requestID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.fdRequests, requestID)
	cp := *fd
	s.fds = append(s.fds, &cp)
	return nil
}

func (s *RequestStore) ListFDs(ctx context.Context, customerID int64) ([]*model.FixedDeposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.FixedDeposit
	for _, fd := range s.fds {
		if fd.CustomerID == customerID {
			cp := *fd
			out = append(out, &cp)
		}
	}
	return out, nil
}
