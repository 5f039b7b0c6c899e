package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"tally/internal/inventory/models"
	"tally/pkg/platform/sentinel"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Postgres persists the inventory in PostgreSQL.
type Postgres struct {
	q querier
}

// NewPostgres constructs a PostgreSQL-backed inventory store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{q: db}
}

// NewPostgresTx constructs a store scoped to an open transaction. Callers own
// commit and rollback.
func NewPostgresTx(tx *sql.Tx) *Postgres {
	return &Postgres{q: tx}
}

func (s *Postgres) InsertCategory(ctx context.Context, category *models.Category) error {
	category.Version = 1
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO categories (id, owner_id, name, description, created_at, version)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		category.ID, category.OwnerID, category.Name, category.Description,
		category.CreatedAt, category.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (s *Postgres) FindCategory(ctx context.Context, id, ownerID string) (*models.Category, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, owner_id, name, description, created_at, version
		FROM categories
		WHERE id = $1 AND owner_id = $2`, id, ownerID)
	return scanCategory(row)
}

func (s *Postgres) ListCategories(ctx context.Context, ownerID string, limit, offset int) ([]*models.Category, int, error) {
	var total int
	if err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count categories: %w", err)
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, owner_id, name, description, created_at, version
		FROM categories
		WHERE owner_id = $1
		ORDER BY name
		LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, 0, err
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list categories: %w", err)
	}
	return categories, total, nil
}

func (s *Postgres) UpdateCategory(ctx context.Context, category *models.Category) error {
	result, err := s.q.ExecContext(ctx, `
		UPDATE categories
		SET name = $1, description = $2, version = version + 1
		WHERE id = $3 AND owner_id = $4 AND version = $5`,
		category.Name, category.Description, category.ID, category.OwnerID, category.Version,
	)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if err := s.checkUpdated(ctx, result,
		`SELECT 1 FROM categories WHERE id = $1 AND owner_id = $2`, category.ID, category.OwnerID); err != nil {
		return err
	}
	category.Version++
	return nil
}

func (s *Postgres) DeleteCategory(ctx context.Context, id, ownerID string) error {
	result, err := s.q.ExecContext(ctx,
		`DELETE FROM categories WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return sentinel.ErrRestricted
		}
		return fmt.Errorf("delete category: %w", err)
	}
	return checkAffected(result)
}

const productColumns = `id, owner_id, category_id, name, description, unit_price, stock_quantity,
	created_at, updated_at, version`

func (s *Postgres) InsertProduct(ctx context.Context, product *models.Product) error {
	product.Version = 1
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		product.ID, product.OwnerID, product.CategoryID, product.Name, product.Description,
		product.UnitPrice, product.StockQuantity, product.CreatedAt, product.UpdatedAt, product.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (s *Postgres) FindProduct(ctx context.Context, id, ownerID string) (*models.Product, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1 AND owner_id = $2`, id, ownerID)
	product, err := scanProduct(row)
	if err != nil {
		return nil, err
	}
	product.Movements, err = s.movementsForProduct(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	return product, nil
}

const productViewQuery = `
	SELECT p.id, p.category_id, c.name, p.name, p.description, p.unit_price, p.stock_quantity,
		p.created_at, p.updated_at
	FROM products p
	JOIN categories c ON c.id = p.category_id AND c.owner_id = p.owner_id`

func (s *Postgres) ListProductViews(ctx context.Context, ownerID string, limit, offset int) ([]models.ProductView, int, error) {
	var total int
	if err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	rows, err := s.q.QueryContext(ctx, productViewQuery+`
		WHERE p.owner_id = $1
		ORDER BY p.created_at, p.id
		LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	views, err := collectProductViews(rows)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func (s *Postgres) GetProductView(ctx context.Context, id, ownerID string) (*models.ProductView, error) {
	row := s.q.QueryRowContext(ctx, productViewQuery+`
		WHERE p.id = $1 AND p.owner_id = $2`, id, ownerID)
	view, err := scanProductView(row)
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *Postgres) ProductViewsByCategory(ctx context.Context, categoryID, ownerID string) ([]models.ProductView, error) {
	rows, err := s.q.QueryContext(ctx, productViewQuery+`
		WHERE p.category_id = $1 AND p.owner_id = $2
		ORDER BY p.created_at, p.id`, categoryID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list category products: %w", err)
	}
	defer rows.Close()
	return collectProductViews(rows)
}

func (s *Postgres) UpdateProduct(ctx context.Context, product *models.Product) error {
	result, err := s.q.ExecContext(ctx, `
		UPDATE products
		SET name = $1, description = $2, unit_price = $3, stock_quantity = $4,
			updated_at = $5, version = version + 1
		WHERE id = $6 AND owner_id = $7 AND version = $8`,
		product.Name, product.Description, product.UnitPrice, product.StockQuantity,
		product.UpdatedAt, product.ID, product.OwnerID, product.Version,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if err := s.checkUpdated(ctx, result,
		`SELECT 1 FROM products WHERE id = $1 AND owner_id = $2`, product.ID, product.OwnerID); err != nil {
		return err
	}
	product.Version++
	return nil
}

func (s *Postgres) DeleteProduct(ctx context.Context, id string) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return checkAffected(result)
}

const movementColumns = `id, product_id, quantity, movement_type, note, occurred_at`

func (s *Postgres) InsertMovement(ctx context.Context, movement *models.StockMovement) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO stock_movements (`+movementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		movement.ID, movement.ProductID, movement.Quantity, string(movement.Type),
		movement.Note, movement.OccurredAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert stock movement: %w", err)
	}
	return nil
}

func (s *Postgres) FindMovement(ctx context.Context, id, ownerID string) (*models.StockMovement, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT m.id, m.product_id, m.quantity, m.movement_type, m.note, m.occurred_at
		FROM stock_movements m
		JOIN products p ON p.id = m.product_id
		WHERE m.id = $1 AND p.owner_id = $2`, id, ownerID)
	return scanMovement(row)
}

func (s *Postgres) ListMovements(ctx context.Context, ownerID string, limit, offset int) ([]*models.StockMovement, int, error) {
	var total int
	if err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM stock_movements m
		JOIN products p ON p.id = m.product_id
		WHERE p.owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count stock movements: %w", err)
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT m.id, m.product_id, m.quantity, m.movement_type, m.note, m.occurred_at
		FROM stock_movements m
		JOIN products p ON p.id = m.product_id
		WHERE p.owner_id = $1
		ORDER BY m.occurred_at, m.id
		LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list stock movements: %w", err)
	}
	defer rows.Close()

	var movements []*models.StockMovement
	for rows.Next() {
		movement, err := scanMovement(rows)
		if err != nil {
			return nil, 0, err
		}
		movements = append(movements, movement)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list stock movements: %w", err)
	}
	return movements, total, nil
}

func (s *Postgres) DeleteMovement(ctx context.Context, id string) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM stock_movements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete stock movement: %w", err)
	}
	return checkAffected(result)
}

func (s *Postgres) Summary(ctx context.Context, ownerID string) (models.Summary, error) {
	var summary models.Summary
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(stock_quantity), 0), COALESCE(SUM(unit_price * stock_quantity), 0)
		FROM products
		WHERE owner_id = $1`, ownerID).
		Scan(&summary.Products, &summary.TotalUnits, &summary.StockValue)
	if err != nil {
		return models.Summary{}, fmt.Errorf("summarize products: %w", err)
	}
	err = s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE owner_id = $1`, ownerID).Scan(&summary.Categories)
	if err != nil {
		return models.Summary{}, fmt.Errorf("summarize categories: %w", err)
	}
	return summary, nil
}

func (s *Postgres) movementsForProduct(ctx context.Context, productID string) ([]*models.StockMovement, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+movementColumns+`
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY occurred_at, id`, productID)
	if err != nil {
		return nil, fmt.Errorf("load stock movements: %w", err)
	}
	defer rows.Close()

	var movements []*models.StockMovement
	for rows.Next() {
		movement, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, movement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load stock movements: %w", err)
	}
	return movements, nil
}

func (s *Postgres) checkUpdated(ctx context.Context, result sql.Result, existsQuery string, args ...any) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	var one int
	err = s.q.QueryRowContext(ctx, existsQuery, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check row: %w", err)
	}
	return sentinel.ErrConflict
}

func checkAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (*models.Category, error) {
	var category models.Category
	err := row.Scan(&category.ID, &category.OwnerID, &category.Name, &category.Description,
		&category.CreatedAt, &category.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan category: %w", err)
	}
	return &category, nil
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var product models.Product
	err := row.Scan(&product.ID, &product.OwnerID, &product.CategoryID, &product.Name,
		&product.Description, &product.UnitPrice, &product.StockQuantity,
		&product.CreatedAt, &product.UpdatedAt, &product.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return &product, nil
}

func scanProductView(row rowScanner) (*models.ProductView, error) {
	var view models.ProductView
	err := row.Scan(&view.ID, &view.CategoryID, &view.CategoryName, &view.Name,
		&view.Description, &view.UnitPrice, &view.StockQuantity, &view.CreatedAt, &view.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan product view: %w", err)
	}
	return &view, nil
}

func collectProductViews(rows *sql.Rows) ([]models.ProductView, error) {
	var views []models.ProductView
	for rows.Next() {
		view, err := scanProductView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collect products: %w", err)
	}
	return views, nil
}

func scanMovement(row rowScanner) (*models.StockMovement, error) {
	var (
		movement     models.StockMovement
		movementType string
	)
	err := row.Scan(&movement.ID, &movement.ProductID, &movement.Quantity, &movementType,
		&movement.Note, &movement.OccurredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan stock movement: %w", err)
	}
	movement.Type = models.MovementType(movementType)
	return &movement, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}
