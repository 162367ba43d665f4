package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryStore is an in-memory Store for tests and local runs.
// InTx holds the lock for the whole callback and applies writes only when fn
// returns nil, so it behaves like a serialized transaction.
type MemoryStore struct {
	mu     sync.Mutex
	state  memState
	faults map[string]error
}

type memState struct {
	users       map[string]Balance
	settlements map[string]Settlement
	deposits    map[depositKey]Deposit
	invoices    map[string]bool
}

type depositKey struct{ invoiceID, userID string }

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: memState{
			users:       map[string]Balance{},
			settlements: map[string]Settlement{},
			deposits:    map[depositKey]Deposit{},
			invoices:    map[string]bool{},
		},
		faults: map[string]error{},
	}
}

// AddUser seeds a user with an opening balance.
func (m *MemoryStore) AddUser(userID string, balance decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.users[userID] = Balance{UserID: userID, BalanceUSD: balance, UpdatedAt: time.Now().UTC()}
}

// PutSettlement seeds a settlement row, typically a pending one.
func (m *MemoryStore) PutSettlement(s Settlement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.settlements[s.InvoiceID] = s
}

// FailOn makes the named Tx method return err until cleared with a nil err.
func (m *MemoryStore) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.faults, op)
		return
	}
	m.faults[op] = err
}

// InvoiceSettled reports whether MarkInvoiceSettled committed for invoiceID.
func (m *MemoryStore) InvoiceSettled(invoiceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.invoices[invoiceID]
}

func (m *MemoryStore) DepositCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.deposits)
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(ctx, &memTx{state: &work, faults: m.faults}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (s memState) clone() memState {
	out := memState{
		users:       make(map[string]Balance, len(s.users)),
		settlements: make(map[string]Settlement, len(s.settlements)),
		deposits:    make(map[depositKey]Deposit, len(s.deposits)),
		invoices:    make(map[string]bool, len(s.invoices)),
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.settlements {
		out.settlements[k] = v
	}
	for k, v := range s.deposits {
		out.deposits[k] = v
	}
	for k, v := range s.invoices {
		out.invoices[k] = v
	}
	return out
}

type memTx struct {
	state  *memState
	faults map[string]error
}

func (t *memTx) fault(op string) error {
	return t.faults[op]
}

func (t *memTx) FindSettlement(_ context.Context, invoiceID string) (Settlement, bool, error) {
	if err := t.fault("FindSettlement"); err != nil {
		return Settlement{}, false, err
	}
	s, ok := t.state.settlements[invoiceID]
	return s, ok, nil
}

func (t *memTx) UserExists(_ context.Context, userID string) (bool, error) {
	if err := t.fault("UserExists"); err != nil {
		return false, err
	}
	_, ok := t.state.users[userID]
	return ok, nil
}

func (t *memTx) InsertSettlement(_ context.Context, s Settlement) error {
	if err := t.fault("InsertSettlement"); err != nil {
		return err
	}
	if _, ok := t.state.settlements[s.InvoiceID]; ok {
		return ErrDuplicateSettlement
	}
	t.state.settlements[s.InvoiceID] = s
	return nil
}

func (t *memTx) MarkSettled(_ context.Context, s Settlement) (bool, error) {
	if err := t.fault("MarkSettled"); err != nil {
		return false, err
	}
	cur, ok := t.state.settlements[s.InvoiceID]
	if !ok || cur.Status != SettlementPending {
		return false, nil
	}
	cur.Status = SettlementSettled
	cur.SettledAt = s.SettledAt
	cur.UserID = s.UserID
	cur.Amount = s.Amount
	t.state.settlements[s.InvoiceID] = cur
	return true, nil
}

func (t *memTx) IncrementBalance(_ context.Context, userID string, delta decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	if err := t.fault("IncrementBalance"); err != nil {
		return decimal.Zero, err
	}
	b, ok := t.state.users[userID]
	if !ok {
		return decimal.Zero, ErrBalanceNotUpdated
	}
	b.BalanceUSD = b.BalanceUSD.Add(delta)
	b.UpdatedAt = at
	t.state.users[userID] = b
	return b.BalanceUSD, nil
}

func (t *memTx) UpsertDeposit(_ context.Context, d Deposit) error {
	if err := t.fault("UpsertDeposit"); err != nil {
		return err
	}
	k := depositKey{d.InvoiceID, d.UserID}
	if cur, ok := t.state.deposits[k]; ok {
		cur.Amount = d.Amount
		cur.Method = d.Method
		t.state.deposits[k] = cur
		return nil
	}
	t.state.deposits[k] = d
	return nil
}

func (t *memTx) MarkInvoiceSettled(_ context.Context, invoiceID string, _ time.Time) error {
	if err := t.fault("MarkInvoiceSettled"); err != nil {
		return err
	}
	t.state.invoices[invoiceID] = true
	return nil
}

func (m *MemoryStore) GetSettlement(_ context.Context, invoiceID string) (Settlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.state.settlements[invoiceID]
	if !ok {
		return Settlement{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) GetBalance(_ context.Context, userID string) (Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.state.users[userID]
	if !ok {
		return Balance{}, ErrNotFound
	}
	return b, nil
}

func (m *MemoryStore) ListDeposits(_ context.Context, userID string, limit int) ([]Deposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Deposit
	for _, d := range m.state.deposits {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].InvoiceID > out[j].InvoiceID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListDepositsBetween(_ context.Context, from, to time.Time) ([]Deposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Deposit
	for _, d := range m.state.deposits {
		if !d.CreatedAt.Before(from) && d.CreatedAt.Before(to) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
