package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"tally/internal/inventory/models"
	"tally/internal/inventory/service"
	"tally/pkg/platform/sentinel"
)

// Memory is an in-memory inventory store used by unit tests and
// single-process deployments.
type Memory struct {
	mu         sync.RWMutex
	categories map[string]*models.Category
	products   map[string]*models.Product // without movements
	movements  map[string]*models.StockMovement
}

func NewMemory() *Memory {
	return &Memory{
		categories: make(map[string]*models.Category),
		products:   make(map[string]*models.Product),
		movements:  make(map[string]*models.StockMovement),
	}
}

// Category ids are derived from the name, so the same id can exist under
// different owners. The map key carries the owner to keep those rows apart.
func categoryKey(ownerID, id string) string {
	return ownerID + "/" + id
}

func (m *Memory) InsertCategory(_ context.Context, category *models.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := categoryKey(category.OwnerID, category.ID)
	if _, ok := m.categories[key]; ok {
		return sentinel.ErrConflict
	}
	category.Version = 1
	clone := *category
	m.categories[key] = &clone
	return nil
}

func (m *Memory) FindCategory(_ context.Context, id, ownerID string) (*models.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.categories[categoryKey(ownerID, id)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *stored
	return &clone, nil
}

func (m *Memory) ListCategories(_ context.Context, ownerID string, limit, offset int) ([]*models.Category, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []*models.Category
	for _, c := range m.categories {
		if c.OwnerID == ownerID {
			clone := *c
			all = append(all, &clone)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	return pageSlice(all, limit, offset), total, nil
}

func (m *Memory) UpdateCategory(_ context.Context, category *models.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := categoryKey(category.OwnerID, category.ID)
	stored, ok := m.categories[key]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != category.Version {
		return sentinel.ErrConflict
	}
	category.Version++
	clone := *category
	m.categories[key] = &clone
	return nil
}

func (m *Memory) DeleteCategory(_ context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := categoryKey(ownerID, id)
	if _, ok := m.categories[key]; !ok {
		return sentinel.ErrNotFound
	}
	for _, p := range m.products {
		if p.CategoryID == id && p.OwnerID == ownerID {
			return sentinel.ErrRestricted
		}
	}
	delete(m.categories, key)
	return nil
}

func (m *Memory) InsertProduct(_ context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[product.ID]; ok {
		return sentinel.ErrConflict
	}
	product.Version = 1
	m.products[product.ID] = cloneProduct(product)
	return nil
}

func (m *Memory) FindProduct(_ context.Context, id, ownerID string) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.products[id]
	if !ok || stored.OwnerID != ownerID {
		return nil, sentinel.ErrNotFound
	}
	return m.assembleProduct(stored), nil
}

func (m *Memory) ListProductViews(_ context.Context, ownerID string, limit, offset int) ([]models.ProductView, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []models.ProductView
	for _, p := range m.products {
		if p.OwnerID == ownerID {
			all = append(all, p.View(m.categoryName(p.OwnerID, p.CategoryID)))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	return pageSlice(all, limit, offset), total, nil
}

func (m *Memory) GetProductView(_ context.Context, id, ownerID string) (*models.ProductView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.products[id]
	if !ok || stored.OwnerID != ownerID {
		return nil, sentinel.ErrNotFound
	}
	view := stored.View(m.categoryName(stored.OwnerID, stored.CategoryID))
	return &view, nil
}

func (m *Memory) ProductViewsByCategory(_ context.Context, categoryID, ownerID string) ([]models.ProductView, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var views []models.ProductView
	for _, p := range m.products {
		if p.OwnerID == ownerID && p.CategoryID == categoryID {
			views = append(views, p.View(m.categoryName(ownerID, categoryID)))
		}
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views, nil
}

func (m *Memory) UpdateProduct(_ context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.products[product.ID]
	if !ok || stored.OwnerID != product.OwnerID {
		return sentinel.ErrNotFound
	}
	if stored.Version != product.Version {
		return sentinel.ErrConflict
	}
	product.Version++
	m.products[product.ID] = cloneProduct(product)
	return nil
}

// DeleteProduct cascades to the product's movement history.
func (m *Memory) DeleteProduct(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(m.products, id)
	for mid, movement := range m.movements {
		if movement.ProductID == id {
			delete(m.movements, mid)
		}
	}
	return nil
}

func (m *Memory) InsertMovement(_ context.Context, movement *models.StockMovement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.movements[movement.ID]; ok {
		return sentinel.ErrConflict
	}
	clone := *movement
	m.movements[movement.ID] = &clone
	return nil
}

func (m *Memory) FindMovement(_ context.Context, id, ownerID string) (*models.StockMovement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.movements[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	product, ok := m.products[stored.ProductID]
	if !ok || product.OwnerID != ownerID {
		return nil, sentinel.ErrNotFound
	}
	clone := *stored
	return &clone, nil
}

func (m *Memory) ListMovements(_ context.Context, ownerID string, limit, offset int) ([]*models.StockMovement, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []*models.StockMovement
	for _, movement := range m.movements {
		if product, ok := m.products[movement.ProductID]; ok && product.OwnerID == ownerID {
			clone := *movement
			all = append(all, &clone)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].OccurredAt.Equal(all[j].OccurredAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].OccurredAt.Before(all[j].OccurredAt)
	})
	total := len(all)
	return pageSlice(all, limit, offset), total, nil
}

func (m *Memory) DeleteMovement(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.movements[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(m.movements, id)
	return nil
}

func (m *Memory) Summary(_ context.Context, ownerID string) (models.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := models.Summary{StockValue: decimal.Zero}
	for _, c := range m.categories {
		if c.OwnerID == ownerID {
			summary.Categories++
		}
	}
	for _, p := range m.products {
		if p.OwnerID != ownerID {
			continue
		}
		summary.Products++
		summary.TotalUnits += p.StockQuantity
		summary.StockValue = summary.StockValue.Add(
			p.UnitPrice.Mul(decimal.NewFromInt(int64(p.StockQuantity))))
	}
	return summary, nil
}

func (m *Memory) categoryName(ownerID, categoryID string) string {
	if c, ok := m.categories[categoryKey(ownerID, categoryID)]; ok {
		return c.Name
	}
	return ""
}

func (m *Memory) assembleProduct(stored *models.Product) *models.Product {
	out := cloneProduct(stored)
	for _, movement := range m.movements {
		if movement.ProductID == stored.ID {
			clone := *movement
			out.Movements = append(out.Movements, &clone)
		}
	}
	sort.Slice(out.Movements, func(i, j int) bool {
		if out.Movements[i].OccurredAt.Equal(out.Movements[j].OccurredAt) {
			return out.Movements[i].ID < out.Movements[j].ID
		}
		return out.Movements[i].OccurredAt.Before(out.Movements[j].OccurredAt)
	})
	return out
}

func cloneProduct(p *models.Product) *models.Product {
	clone := *p
	clone.Movements = nil
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
	for key, c := range m.categories {
		clone := *c
		staged.categories[key] = &clone
	}
	for id, p := range m.products {
		staged.products[id] = cloneProduct(p)
	}
	for id, movement := range m.movements {
		clone := *movement
		staged.movements[id] = &clone
	}
	return staged
}

// adopt swaps the staged state in as the live state in a single step.
func (m *Memory) adopt(staged *Memory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = staged.categories
	m.products = staged.products
	m.movements = staged.movements
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
