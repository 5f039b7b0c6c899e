package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/inventory/models"
	"tally/internal/inventory/service"
	"tally/internal/inventory/store"

	dErrors "tally/pkg/domain-errors"
)

const ownerID = "owner-1"

func newService(t *testing.T) (*service.Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return service.New(mem, store.NewMemoryTx(mem)), mem
}

func createCategory(t *testing.T, svc *service.Service, name string) *models.Category {
	t.Helper()
	category, err := svc.CreateCategory(context.Background(), ownerID, name, "")
	require.NoError(t, err)
	return category
}

func createProduct(t *testing.T, svc *service.Service, categoryID, name string, initialStock int) *models.Product {
	t.Helper()
	product, err := svc.CreateProduct(context.Background(), ownerID, service.CreateProductInput{
		CategoryID:   categoryID,
		Name:         name,
		UnitPrice:    decimal.RequireFromString("9.99"),
		InitialStock: initialStock,
	})
	require.NoError(t, err)
	return product
}

func TestCreateProductRecordsOpeningStock(t *testing.T) {
	svc, _ := newService(t)
	category := createCategory(t, svc, "Beverages")

	product := createProduct(t, svc, category.ID, "Cola", 10)
	assert.Equal(t, "beverages_cola", product.ID)
	assert.Equal(t, 10, product.StockQuantity)

	movements, err := svc.ListProductMovements(context.Background(), ownerID, product.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, models.MovementStockAdded, movements[0].Type)
	assert.Equal(t, 10, movements[0].Quantity)
}

func TestCreateProductRequiresCategory(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.CreateProduct(context.Background(), ownerID, service.CreateProductInput{
		CategoryID: "missing",
		Name:       "Cola",
		UnitPrice:  decimal.RequireFromString("1.00"),
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestStockQuantityFollowsMovements(t *testing.T) {
	svc, _ := newService(t)
	category := createCategory(t, svc, "Beverages")
	product := createProduct(t, svc, category.ID, "Cola", 5)

	_, err := svc.AddStock(context.Background(), ownerID, product.ID, 7, "restock")
	require.NoError(t, err)
	_, err = svc.RemoveStock(context.Background(), ownerID, product.ID, 4, "sold")
	require.NoError(t, err)

	view, err := svc.GetProduct(context.Background(), ownerID, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, view.StockQuantity)
	assert.Equal(t, "Beverages", view.CategoryName)
}

func TestRemoveStockRejectsOverdraw(t *testing.T) {
	svc, _ := newService(t)
	category := createCategory(t, svc, "Beverages")
	product := createProduct(t, svc, category.ID, "Cola", 3)

	_, err := svc.RemoveStock(context.Background(), ownerID, product.ID, 4, "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInsufficientStock))

	view, err := svc.GetProduct(context.Background(), ownerID, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, view.StockQuantity)
}

func TestDeleteMovementRederivesQuantity(t *testing.T) {
	svc, _ := newService(t)
	category := createCategory(t, svc, "Beverages")
	product := createProduct(t, svc, category.ID, "Cola", 5)

	added, err := svc.AddStock(context.Background(), ownerID, product.ID, 10, "")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMovement(context.Background(), ownerID, added.ID))

	view, err := svc.GetProduct(context.Background(), ownerID, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, view.StockQuantity)
}

func TestDeleteMovementCannotGoNegative(t *testing.T) {
	svc, _ := newService(t)
	category := createCategory(t, svc, "Beverages")
	product := createProduct(t, svc, category.ID, "Cola", 5)

	opening, err := svc.ListProductMovements(context.Background(), ownerID, product.ID)
	require.NoError(t, err)
	require.Len(t, opening, 1)

	_, err = svc.RemoveStock(context.Background(), ownerID, product.ID, 3, "")
	require.NoError(t, err)

	err = svc.DeleteMovement(context.Background(), ownerID, opening[0].ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	view, err := svc.GetProduct(context.Background(), ownerID, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.StockQuantity)
}

func TestDeleteCategoryWithProductsRestricted(t *testing.T) {
	svc, _ := newService(t)
	category := createCategory(t, svc, "Beverages")
	createProduct(t, svc, category.ID, "Cola", 0)

	err := svc.DeleteCategory(context.Background(), ownerID, category.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestCategoryIDSharedAcrossOwners(t *testing.T) {
	svc, _ := newService(t)
	createCategory(t, svc, "Tools")

	other, err := svc.CreateCategory(context.Background(), "owner-2", "Tools", "")
	require.NoError(t, err)
	assert.Equal(t, "Tools", other.ID)

	mine, err := svc.GetCategory(context.Background(), ownerID, "Tools")
	require.NoError(t, err)
	assert.Equal(t, ownerID, mine.OwnerID)

	theirs, err := svc.GetCategory(context.Background(), "owner-2", "Tools")
	require.NoError(t, err)
	assert.Equal(t, "owner-2", theirs.OwnerID)

	_, err = svc.CreateCategory(context.Background(), ownerID, "Tools", "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestDeleteProductCascadesMovements(t *testing.T) {
	svc, _ := newService(t)
	category := createCategory(t, svc, "Beverages")
	product := createProduct(t, svc, category.ID, "Cola", 5)

	require.NoError(t, svc.DeleteProduct(context.Background(), ownerID, product.ID))

	movements, total, err := svc.ListMovements(context.Background(), ownerID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, movements)
}

func TestCategoryViewListsProducts(t *testing.T) {
	svc, _ := newService(t)
	category := createCategory(t, svc, "Beverages")
	createProduct(t, svc, category.ID, "Cola", 1)
	createProduct(t, svc, category.ID, "Tea", 2)

	view, err := svc.GetCategory(context.Background(), ownerID, category.ID)
	require.NoError(t, err)
	assert.Len(t, view.Products, 2)
}

func TestOwnershipScoping(t *testing.T) {
	svc, _ := newService(t)
	category := createCategory(t, svc, "Beverages")
	product := createProduct(t, svc, category.ID, "Cola", 5)

	_, err := svc.GetProduct(context.Background(), "someone-else", product.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = svc.AddStock(context.Background(), "someone-else", product.ID, 1, "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestInventorySummary(t *testing.T) {
	svc, _ := newService(t)
	category := createCategory(t, svc, "Beverages")
	createProduct(t, svc, category.ID, "Cola", 3)
	createProduct(t, svc, category.ID, "Tea", 2)

	summary, err := svc.Summary(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Products)
	assert.Equal(t, 1, summary.Categories)
	assert.Equal(t, 5, summary.TotalUnits)
	assert.True(t, summary.StockValue.Equal(decimal.RequireFromString("49.95")))
}

type failingStore struct {
	service.Store
}

func (f *failingStore) UpdateProduct(context.Context, *models.Product) error {
	return errors.New("write failed")
}

type wrappingTx struct {
	inner *store.MemoryTx
	wrap  func(service.Store) service.Store
}

func (t *wrappingTx) RunInTx(ctx context.Context, fn func(store service.Store) error) error {
	return t.inner.RunInTx(ctx, func(st service.Store) error {
		return fn(t.wrap(st))
	})
}

func TestAddStockRollsBackOnFailedCommit(t *testing.T) {
	mem := store.NewMemory()
	svc := service.New(mem, store.NewMemoryTx(mem))

	category := createCategory(t, svc, "Beverages")
	product := createProduct(t, svc, category.ID, "Cola", 5)

	broken := service.New(mem, &wrappingTx{
		inner: store.NewMemoryTx(mem),
		wrap:  func(st service.Store) service.Store { return &failingStore{Store: st} },
	})

	_, err := broken.AddStock(context.Background(), ownerID, product.ID, 10, "")
	require.Error(t, err)

	view, err := svc.GetProduct(context.Background(), ownerID, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, view.StockQuantity, "failed commit must leave no trace")

	movements, err := svc.ListProductMovements(context.Background(), ownerID, product.ID)
	require.NoError(t, err)
	assert.Len(t, movements, 1)
}
