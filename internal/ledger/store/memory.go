package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"tally/internal/ledger/models"
	"tally/internal/ledger/service"
	"tally/pkg/platform/sentinel"
)

// Memory is an in-memory ledger store used by unit tests and single-process
// deployments. Rows are deep-copied on the way in and out so callers can
// never mutate stored state outside a transaction.
type Memory struct {
	mu       sync.RWMutex
	debtors  map[string]*models.Debtor  // without children
	debts    map[string]*models.Debt    // without payments
	payments map[string]*models.Payment
}

func NewMemory() *Memory {
	return &Memory{
		debtors:  make(map[string]*models.Debtor),
		debts:    make(map[string]*models.Debt),
		payments: make(map[string]*models.Payment),
	}
}

func (m *Memory) InsertDebtor(_ context.Context, debtor *models.Debtor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.debtors[debtor.ID]; ok {
		return sentinel.ErrConflict
	}
	for _, existing := range m.debtors {
		if existing.OwnerID == debtor.OwnerID && existing.Email == debtor.Email {
			return sentinel.ErrConflict
		}
	}
	debtor.Version = 1
	m.debtors[debtor.ID] = cloneDebtor(debtor)
	return nil
}

func (m *Memory) FindDebtor(_ context.Context, id, ownerID string) (*models.Debtor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.debtors[id]
	if !ok || stored.OwnerID != ownerID {
		return nil, sentinel.ErrNotFound
	}
	return m.assembleDebtor(stored), nil
}

func (m *Memory) ListDebtors(_ context.Context, ownerID string, limit, offset int) ([]*models.Debtor, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []*models.Debtor
	for _, d := range m.debtors {
		if d.OwnerID == ownerID {
			all = append(all, m.assembleDebtor(d))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	return pageSlice(all, limit, offset), total, nil
}

func (m *Memory) UpdateDebtor(_ context.Context, debtor *models.Debtor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.debtors[debtor.ID]
	if !ok || stored.OwnerID != debtor.OwnerID {
		return sentinel.ErrNotFound
	}
	if stored.Version != debtor.Version {
		return sentinel.ErrConflict
	}
	debtor.Version++
	m.debtors[debtor.ID] = cloneDebtor(debtor)
	return nil
}

func (m *Memory) DeleteDebtor(_ context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.debtors[id]
	if !ok || stored.OwnerID != ownerID {
		return sentinel.ErrNotFound
	}
	for _, debt := range m.debts {
		if debt.DebtorID == id {
			return sentinel.ErrRestricted
		}
	}
	delete(m.debtors, id)
	return nil
}

func (m *Memory) InsertDebt(_ context.Context, debt *models.Debt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.debts[debt.ID]; ok {
		return sentinel.ErrConflict
	}
	debt.Version = 1
	m.debts[debt.ID] = cloneDebt(debt)
	return nil
}

func (m *Memory) FindDebt(_ context.Context, id, ownerID string) (*models.Debt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.debts[id]
	if !ok || !m.debtOwnedBy(stored, ownerID) {
		return nil, sentinel.ErrNotFound
	}
	return m.assembleDebt(stored), nil
}

func (m *Memory) ListDebtViews(_ context.Context, ownerID string, limit, offset int) ([]models.DebtView, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []models.DebtView
	for _, debt := range m.debts {
		if owner, ok := m.debtors[debt.DebtorID]; ok && owner.OwnerID == ownerID {
			all = append(all, debt.View(owner.FullName))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	return pageSlice(all, limit, offset), total, nil
}

func (m *Memory) GetDebtView(_ context.Context, id, ownerID string) (*models.DebtView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	debt, ok := m.debts[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	owner, ok := m.debtors[debt.DebtorID]
	if !ok || owner.OwnerID != ownerID {
		return nil, sentinel.ErrNotFound
	}
	view := debt.View(owner.FullName)
	return &view, nil
}

func (m *Memory) UpdateDebt(_ context.Context, debt *models.Debt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.debts[debt.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != debt.Version {
		return sentinel.ErrConflict
	}
	debt.Version++
	m.debts[debt.ID] = cloneDebt(debt)
	return nil
}

// DeleteDebt cascades to the debt's payments, mirroring the relational
// schema.
func (m *Memory) DeleteDebt(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.debts[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(m.debts, id)
	for pid, p := range m.payments {
		if p.DebtID == id {
			delete(m.payments, pid)
		}
	}
	return nil
}

func (m *Memory) InsertPayment(_ context.Context, payment *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[payment.ID]; ok {
		return sentinel.ErrConflict
	}
	clone := *payment
	m.payments[payment.ID] = &clone
	return nil
}

func (m *Memory) FindPayment(_ context.Context, id, ownerID string) (*models.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.payments[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	debt, ok := m.debts[stored.DebtID]
	if !ok || !m.debtOwnedBy(debt, ownerID) {
		return nil, sentinel.ErrNotFound
	}
	clone := *stored
	return &clone, nil
}

func (m *Memory) ListPayments(_ context.Context, ownerID string, limit, offset int) ([]*models.Payment, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []*models.Payment
	for _, p := range m.payments {
		if debt, ok := m.debts[p.DebtID]; ok && m.debtOwnedBy(debt, ownerID) {
			clone := *p
			all = append(all, &clone)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	return pageSlice(all, limit, offset), total, nil
}

func (m *Memory) DeletePayment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(m.payments, id)
	return nil
}

func (m *Memory) Summary(_ context.Context, ownerID string) (models.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := models.Summary{TotalOutstanding: decimal.Zero}
	for _, d := range m.debtors {
		if d.OwnerID == ownerID {
			summary.Debtors++
			summary.TotalOutstanding = summary.TotalOutstanding.Add(d.OutstandingDebt)
		}
	}
	for _, debt := range m.debts {
		if !m.debtOwnedBy(debt, ownerID) {
			continue
		}
		if debt.AmountOwed.IsPositive() {
			summary.OpenDebts++
		}
		if debt.Status == models.StatusOverdue {
			summary.OverdueDebts++
		}
	}
	return summary, nil
}

// debtOwnedBy walks the ownership chain debt → debtor → user. Callers hold
// the lock.
func (m *Memory) debtOwnedBy(debt *models.Debt, ownerID string) bool {
	owner, ok := m.debtors[debt.DebtorID]
	return ok && owner.OwnerID == ownerID
}

func (m *Memory) assembleDebtor(stored *models.Debtor) *models.Debtor {
	out := cloneDebtor(stored)
	for _, debt := range m.debts {
		if debt.DebtorID == stored.ID {
			out.Debts = append(out.Debts, m.assembleDebt(debt))
		}
	}
	sort.Slice(out.Debts, func(i, j int) bool { return out.Debts[i].ID < out.Debts[j].ID })
	return out
}

func (m *Memory) assembleDebt(stored *models.Debt) *models.Debt {
	out := cloneDebt(stored)
	for _, p := range m.payments {
		if p.DebtID == stored.ID {
			clone := *p
			out.Payments = append(out.Payments, &clone)
		}
	}
	sort.Slice(out.Payments, func(i, j int) bool {
		if out.Payments[i].PaymentDate.Equal(out.Payments[j].PaymentDate) {
			return out.Payments[i].ID < out.Payments[j].ID
		}
		return out.Payments[i].PaymentDate.Before(out.Payments[j].PaymentDate)
	})
	return out
}

func cloneDebtor(d *models.Debtor) *models.Debtor {
	clone := *d
	clone.Debts = nil
	return &clone
}

func cloneDebt(d *models.Debt) *models.Debt {
	clone := *d
	clone.Payments = nil
	return &clone
}

func pageSlice[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

// fork clones the full store state so a transaction can stage its writes
// away from the live maps.
func (m *Memory) fork() *Memory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	staged := NewMemory()
	for id, d := range m.debtors {
		staged.debtors[id] = cloneDebtor(d)
	}
	for id, d := range m.debts {
		staged.debts[id] = cloneDebt(d)
	}
	for id, p := range m.payments {
		clone := *p
		staged.payments[id] = &clone
	}
	return staged
}

// adopt swaps the staged state in as the live state in a single step.
func (m *Memory) adopt(staged *Memory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debtors = staged.debtors
	m.debts = staged.debts
	m.payments = staged.payments
}

// MemoryTx runs each transaction against a staged copy of the store and
// swaps the copy in on success. Readers of the live store never observe a
// transaction's intermediate writes, and a failed callback leaves the live
// state untouched.
type MemoryTx struct {
	mu    sync.Mutex
	store *Memory
}

func NewMemoryTx(store *Memory) *MemoryTx {
	return &MemoryTx{store: store}
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(store service.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	staged := t.store.fork()
	if err := fn(staged); err != nil {
		return err
	}
	t.store.adopt(staged)
	return nil
}
