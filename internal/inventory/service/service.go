package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/inventory/models"
	"tally/internal/platform/metrics"
	"tally/pkg/platform/sentinel"

	dErrors "tally/pkg/domain-errors"
)

// Store is the repository contract for the stock engine. All lookups are
// owner-scoped; an id that exists under another owner reads as absent.
type Store interface {
	InsertCategory(ctx context.Context, category *models.Category) error
	FindCategory(ctx context.Context, id, ownerID string) (*models.Category, error)
	ListCategories(ctx context.Context, ownerID string, limit, offset int) ([]*models.Category, int, error)
	UpdateCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, id, ownerID string) error

	InsertProduct(ctx context.Context, product *models.Product) error
	FindProduct(ctx context.Context, id, ownerID string) (*models.Product, error)
	ListProductViews(ctx context.Context, ownerID string, limit, offset int) ([]models.ProductView, int, error)
	GetProductView(ctx context.Context, id, ownerID string) (*models.ProductView, error)
	ProductViewsByCategory(ctx context.Context, categoryID, ownerID string) ([]models.ProductView, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id string) error

	InsertMovement(ctx context.Context, movement *models.StockMovement) error
	FindMovement(ctx context.Context, id, ownerID string) (*models.StockMovement, error)
	ListMovements(ctx context.Context, ownerID string, limit, offset int) ([]*models.StockMovement, int, error)
	DeleteMovement(ctx context.Context, id string) error

	Summary(ctx context.Context, ownerID string) (models.Summary, error)
}

// StoreTx provides the transactional boundary for stock mutations. A movement
// and the quantity it implies commit together or not at all.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}

// Service owns the inventory use cases.
type Service struct {
	store   Store
	tx      StoreTx
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, tx StoreTx, opts ...Option) *Service {
	s := &Service{store: store, tx: tx, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateCategory(ctx context.Context, ownerID, name, description string) (*models.Category, error) {
	category, err := models.NewCategory(ownerID, name, description, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(st Store) error {
		return st.InsertCategory(ctx, category)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a category with this name already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create category")
	}

	s.logger.InfoContext(ctx, "category created", "category_id", category.ID)
	return category, nil
}

// GetCategory returns the category with the owner's products under it.
func (s *Service) GetCategory(ctx context.Context, ownerID, id string) (*models.CategoryView, error) {
	category, err := s.store.FindCategory(ctx, id, ownerID)
	if err != nil {
		return nil, s.translateNotFound(err, "category not found", "failed to load category")
	}
	products, err := s.store.ProductViewsByCategory(ctx, category.ID, ownerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load category products")
	}
	return &models.CategoryView{Category: *category, Products: products}, nil
}

func (s *Service) ListCategories(ctx context.Context, ownerID string, limit, offset int) ([]*models.Category, int, error) {
	categories, total, err := s.store.ListCategories(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list categories")
	}
	return categories, total, nil
}

func (s *Service) UpdateCategory(ctx context.Context, ownerID, id, name, description string) (*models.Category, error) {
	var category *models.Category
	err := s.tx.RunInTx(ctx, func(st Store) error {
		var err error
		category, err = st.FindCategory(ctx, id, ownerID)
		if err != nil {
			return err
		}
		if err := category.Update(name, description); err != nil {
			return err
		}
		return st.UpdateCategory(ctx, category)
	})
	if err != nil {
		return nil, s.translateNotFound(err, "category not found", "failed to update category")
	}
	return category, nil
}

// DeleteCategory refuses to delete a category that still holds products.
func (s *Service) DeleteCategory(ctx context.Context, ownerID, id string) error {
	err := s.tx.RunInTx(ctx, func(st Store) error {
		return st.DeleteCategory(ctx, id, ownerID)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrRestricted) {
			return dErrors.New(dErrors.CodeConflict, "category still has products and cannot be deleted")
		}
		return s.translateNotFound(err, "category not found", "failed to delete category")
	}
	s.logger.InfoContext(ctx, "category deleted", "category_id", id)
	return nil
}

// CreateProductInput carries the product registration fields.
type CreateProductInput struct {
	CategoryID   string
	Name         string
	Description  string
	UnitPrice    decimal.Decimal
	InitialStock int
}

// CreateProduct registers a product under an existing category. A positive
// initial stock becomes the opening movement, persisted with the product in
// the same transaction.
func (s *Service) CreateProduct(ctx context.Context, ownerID string, in CreateProductInput) (*models.Product, error) {
	now := time.Now().UTC()

	var product *models.Product
	err := s.tx.RunInTx(ctx, func(st Store) error {
		category, err := st.FindCategory(ctx, in.CategoryID, ownerID)
		if err != nil {
			return err
		}
		product, err = models.NewProduct(ownerID, category.ID, category.Name,
			in.Name, in.Description, in.UnitPrice, in.InitialStock, now)
		if err != nil {
			return err
		}
		if err := st.InsertProduct(ctx, product); err != nil {
			return err
		}
		for _, movement := range product.Movements {
			if err := st.InsertMovement(ctx, movement); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a product with this name already exists in the category")
		}
		return nil, s.translateNotFound(err, "category not found", "failed to create product")
	}

	s.logger.InfoContext(ctx, "product created", "product_id", product.ID, "initial_stock", in.InitialStock)
	return product, nil
}

func (s *Service) GetProduct(ctx context.Context, ownerID, id string) (*models.ProductView, error) {
	view, err := s.store.GetProductView(ctx, id, ownerID)
	if err != nil {
		return nil, s.translateNotFound(err, "product not found", "failed to load product")
	}
	return view, nil
}

func (s *Service) ListProducts(ctx context.Context, ownerID string, limit, offset int) ([]models.ProductView, int, error) {
	views, total, err := s.store.ListProductViews(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list products")
	}
	return views, total, nil
}

// UpdateProductInput carries the mutable descriptive fields. Stock is derived
// from the movement history and is absent on purpose.
type UpdateProductInput struct {
	Name        string
	Description string
	UnitPrice   decimal.Decimal
}

func (s *Service) UpdateProduct(ctx context.Context, ownerID, id string, in UpdateProductInput) (*models.Product, error) {
	now := time.Now().UTC()
	var product *models.Product
	err := s.tx.RunInTx(ctx, func(st Store) error {
		var err error
		product, err = st.FindProduct(ctx, id, ownerID)
		if err != nil {
			return err
		}
		if err := product.Update(in.Name, in.Description, in.UnitPrice, now); err != nil {
			return err
		}
		return st.UpdateProduct(ctx, product)
	})
	if err != nil {
		return nil, s.translateNotFound(err, "product not found", "failed to update product")
	}
	return product, nil
}

// DeleteProduct removes the product and cascades to its movement history.
func (s *Service) DeleteProduct(ctx context.Context, ownerID, id string) error {
	err := s.tx.RunInTx(ctx, func(st Store) error {
		if _, err := st.FindProduct(ctx, id, ownerID); err != nil {
			return err
		}
		return st.DeleteProduct(ctx, id)
	})
	if err != nil {
		return s.translateNotFound(err, "product not found", "failed to delete product")
	}
	s.logger.InfoContext(ctx, "product deleted", "product_id", id)
	return nil
}

// AddStock appends a "Stock Added" movement and re-derives the quantity,
// committing both writes together.
func (s *Service) AddStock(ctx context.Context, ownerID, productID string, quantity int, note string) (*models.StockMovement, error) {
	return s.applyMovement(ctx, ownerID, productID,
		func(p *models.Product, now time.Time) (*models.StockMovement, error) {
			return p.AddStock(quantity, note, now)
		})
}

// RemoveStock appends a "Stock Removed" movement after the on-hand check.
func (s *Service) RemoveStock(ctx context.Context, ownerID, productID string, quantity int, note string) (*models.StockMovement, error) {
	return s.applyMovement(ctx, ownerID, productID,
		func(p *models.Product, now time.Time) (*models.StockMovement, error) {
			return p.RemoveStock(quantity, note, now)
		})
}

func (s *Service) applyMovement(ctx context.Context, ownerID, productID string,
	apply func(p *models.Product, now time.Time) (*models.StockMovement, error)) (*models.StockMovement, error) {
	now := time.Now().UTC()

	var movement *models.StockMovement
	err := s.tx.RunInTx(ctx, func(st Store) error {
		product, err := st.FindProduct(ctx, productID, ownerID)
		if err != nil {
			return err
		}
		movement, err = apply(product, now)
		if err != nil {
			return err
		}
		if err := st.InsertMovement(ctx, movement); err != nil {
			return err
		}
		return st.UpdateProduct(ctx, product)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "product was modified concurrently, reload and retry")
		}
		return nil, s.translateNotFound(err, "product not found", "failed to record stock transaction")
	}

	s.incrementMovements(string(movement.Type))
	s.logger.InfoContext(ctx, "stock transaction recorded",
		"movement_id", movement.ID, "product_id", productID, "type", movement.Type)
	return movement, nil
}

func (s *Service) GetMovement(ctx context.Context, ownerID, id string) (*models.StockMovement, error) {
	movement, err := s.store.FindMovement(ctx, id, ownerID)
	if err != nil {
		return nil, s.translateNotFound(err, "transaction not found", "failed to load transaction")
	}
	return movement, nil
}

func (s *Service) ListMovements(ctx context.Context, ownerID string, limit, offset int) ([]*models.StockMovement, int, error) {
	movements, total, err := s.store.ListMovements(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list transactions")
	}
	return movements, total, nil
}

// ListProductMovements returns one product's full movement history.
func (s *Service) ListProductMovements(ctx context.Context, ownerID, productID string) ([]*models.StockMovement, error) {
	product, err := s.store.FindProduct(ctx, productID, ownerID)
	if err != nil {
		return nil, s.translateNotFound(err, "product not found", "failed to load product")
	}
	return product.Movements, nil
}

// DeleteMovement removes a history entry and re-derives the product quantity
// from the remaining ledger, rejecting deletions that would drive it
// negative.
func (s *Service) DeleteMovement(ctx context.Context, ownerID, movementID string) error {
	now := time.Now().UTC()
	err := s.tx.RunInTx(ctx, func(st Store) error {
		movement, err := st.FindMovement(ctx, movementID, ownerID)
		if err != nil {
			return err
		}
		product, err := st.FindProduct(ctx, movement.ProductID, ownerID)
		if err != nil {
			return err
		}
		if _, err := product.RemoveMovement(movementID, now); err != nil {
			return err
		}
		if err := st.DeleteMovement(ctx, movementID); err != nil {
			return err
		}
		return st.UpdateProduct(ctx, product)
	})
	if err != nil {
		return s.translateNotFound(err, "transaction not found", "failed to delete transaction")
	}
	s.logger.InfoContext(ctx, "stock transaction deleted", "movement_id", movementID)
	return nil
}

func (s *Service) Summary(ctx context.Context, ownerID string) (models.Summary, error) {
	summary, err := s.store.Summary(ctx, ownerID)
	if err != nil {
		return models.Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to summarize inventory")
	}
	return summary, nil
}

func (s *Service) translateNotFound(err error, notFoundMsg, internalMsg string) error {
	var coded *dErrors.Error
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "aggregate was modified concurrently, reload and retry")
	case errors.As(err, &coded):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
	}
}

func (s *Service) incrementMovements(movementType string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncrementStockMovements(movementType)
}
