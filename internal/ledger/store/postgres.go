package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"tally/internal/ledger/models"
	"tally/pkg/platform/sentinel"
)

// querier is satisfied by both *sql.DB and *sql.Tx so the same store can run
// standalone reads and transaction-scoped mutations.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Postgres persists the ledger in PostgreSQL.
type Postgres struct {
	q querier
}

// NewPostgres constructs a PostgreSQL-backed ledger store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{q: db}
}

// NewPostgresTx constructs a store scoped to an open transaction. Callers own
// commit and rollback.
func NewPostgresTx(tx *sql.Tx) *Postgres {
	return &Postgres{q: tx}
}

const debtorColumns = `id, owner_id, full_name, phone, email, street, city, state, zip_code,
	outstanding_debt, last_payment_date, created_at, version`

func (s *Postgres) InsertDebtor(ctx context.Context, debtor *models.Debtor) error {
	debtor.Version = 1
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO debtors (`+debtorColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		debtor.ID, debtor.OwnerID, debtor.FullName, debtor.Phone, debtor.Email,
		debtor.Address.Street, debtor.Address.City, debtor.Address.State, debtor.Address.ZipCode,
		debtor.OutstandingDebt, nullTime(debtor.LastPaymentDate), debtor.CreatedAt, debtor.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert debtor: %w", err)
	}
	return nil
}

func (s *Postgres) FindDebtor(ctx context.Context, id, ownerID string) (*models.Debtor, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+debtorColumns+`
		FROM debtors
		WHERE id = $1 AND owner_id = $2`, id, ownerID)
	debtor, err := scanDebtor(row)
	if err != nil {
		return nil, err
	}
	debtor.Debts, err = s.debtsForDebtor(ctx, debtor.ID)
	if err != nil {
		return nil, err
	}
	return debtor, nil
}

func (s *Postgres) ListDebtors(ctx context.Context, ownerID string, limit, offset int) ([]*models.Debtor, int, error) {
	var total int
	if err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM debtors WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count debtors: %w", err)
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT `+debtorColumns+`
		FROM debtors
		WHERE owner_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list debtors: %w", err)
	}
	defer rows.Close()

	var debtors []*models.Debtor
	for rows.Next() {
		debtor, err := scanDebtor(rows)
		if err != nil {
			return nil, 0, err
		}
		debtors = append(debtors, debtor)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list debtors: %w", err)
	}
	return debtors, total, nil
}

func (s *Postgres) UpdateDebtor(ctx context.Context, debtor *models.Debtor) error {
	result, err := s.q.ExecContext(ctx, `
		UPDATE debtors
		SET full_name = $1, phone = $2, email = $3,
			street = $4, city = $5, state = $6, zip_code = $7,
			outstanding_debt = $8, last_payment_date = $9, version = version + 1
		WHERE id = $10 AND owner_id = $11 AND version = $12`,
		debtor.FullName, debtor.Phone, debtor.Email,
		debtor.Address.Street, debtor.Address.City, debtor.Address.State, debtor.Address.ZipCode,
		debtor.OutstandingDebt, nullTime(debtor.LastPaymentDate),
		debtor.ID, debtor.OwnerID, debtor.Version,
	)
	if err != nil {
		return fmt.Errorf("update debtor: %w", err)
	}
	if err := s.checkUpdated(ctx, result,
		`SELECT 1 FROM debtors WHERE id = $1 AND owner_id = $2`, debtor.ID, debtor.OwnerID); err != nil {
		return err
	}
	debtor.Version++
	return nil
}

func (s *Postgres) DeleteDebtor(ctx context.Context, id, ownerID string) error {
	result, err := s.q.ExecContext(ctx,
		`DELETE FROM debtors WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return sentinel.ErrRestricted
		}
		return fmt.Errorf("delete debtor: %w", err)
	}
	return checkAffected(result)
}

const debtColumns = `id, debtor_id, total_debt, amount_owed, due_date, status, created_at, version`

func (s *Postgres) InsertDebt(ctx context.Context, debt *models.Debt) error {
	debt.Version = 1
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO debts (`+debtColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		debt.ID, debt.DebtorID, debt.TotalDebt, debt.AmountOwed,
		debt.DueDate, string(debt.Status), debt.CreatedAt, debt.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert debt: %w", err)
	}
	return nil
}

func (s *Postgres) FindDebt(ctx context.Context, id, ownerID string) (*models.Debt, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT d.id, d.debtor_id, d.total_debt, d.amount_owed, d.due_date, d.status, d.created_at, d.version
		FROM debts d
		JOIN debtors dr ON dr.id = d.debtor_id
		WHERE d.id = $1 AND dr.owner_id = $2`, id, ownerID)
	debt, err := scanDebt(row)
	if err != nil {
		return nil, err
	}
	debt.Payments, err = s.paymentsForDebt(ctx, debt.ID)
	if err != nil {
		return nil, err
	}
	return debt, nil
}

func (s *Postgres) ListDebtViews(ctx context.Context, ownerID string, limit, offset int) ([]models.DebtView, int, error) {
	var total int
	if err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM debts d
		JOIN debtors dr ON dr.id = d.debtor_id
		WHERE dr.owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count debts: %w", err)
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT d.id, d.debtor_id, dr.full_name, d.total_debt, d.amount_owed, d.status, d.due_date, d.created_at
		FROM debts d
		JOIN debtors dr ON dr.id = d.debtor_id
		WHERE dr.owner_id = $1
		ORDER BY d.created_at, d.id
		LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list debts: %w", err)
	}
	defer rows.Close()

	var views []models.DebtView
	for rows.Next() {
		var view models.DebtView
		if err := rows.Scan(&view.ID, &view.DebtorID, &view.DebtorName,
			&view.TotalDebt, &view.AmountOwed, &view.Status, &view.DueDate, &view.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan debt view: %w", err)
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list debts: %w", err)
	}
	return views, total, nil
}

func (s *Postgres) GetDebtView(ctx context.Context, id, ownerID string) (*models.DebtView, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT d.id, d.debtor_id, dr.full_name, d.total_debt, d.amount_owed, d.status, d.due_date, d.created_at
		FROM debts d
		JOIN debtors dr ON dr.id = d.debtor_id
		WHERE d.id = $1 AND dr.owner_id = $2`, id, ownerID)

	var view models.DebtView
	err := row.Scan(&view.ID, &view.DebtorID, &view.DebtorName,
		&view.TotalDebt, &view.AmountOwed, &view.Status, &view.DueDate, &view.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get debt view: %w", err)
	}
	return &view, nil
}

func (s *Postgres) UpdateDebt(ctx context.Context, debt *models.Debt) error {
	result, err := s.q.ExecContext(ctx, `
		UPDATE debts
		SET total_debt = $1, amount_owed = $2, due_date = $3, status = $4, version = version + 1
		WHERE id = $5 AND version = $6`,
		debt.TotalDebt, debt.AmountOwed, debt.DueDate, string(debt.Status),
		debt.ID, debt.Version,
	)
	if err != nil {
		return fmt.Errorf("update debt: %w", err)
	}
	if err := s.checkUpdated(ctx, result, `SELECT 1 FROM debts WHERE id = $1`, debt.ID); err != nil {
		return err
	}
	debt.Version++
	return nil
}

func (s *Postgres) DeleteDebt(ctx context.Context, id string) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM debts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete debt: %w", err)
	}
	return checkAffected(result)
}

const paymentColumns = `id, debt_id, amount, method, note, payment_date`

func (s *Postgres) InsertPayment(ctx context.Context, payment *models.Payment) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		payment.ID, payment.DebtID, payment.Amount, string(payment.Method),
		payment.Note, payment.PaymentDate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *Postgres) FindPayment(ctx context.Context, id, ownerID string) (*models.Payment, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT p.id, p.debt_id, p.amount, p.method, p.note, p.payment_date
		FROM payments p
		JOIN debts d ON d.id = p.debt_id
		JOIN debtors dr ON dr.id = d.debtor_id
		WHERE p.id = $1 AND dr.owner_id = $2`, id, ownerID)
	return scanPayment(row)
}

func (s *Postgres) ListPayments(ctx context.Context, ownerID string, limit, offset int) ([]*models.Payment, int, error) {
	var total int
	if err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM payments p
		JOIN debts d ON d.id = p.debt_id
		JOIN debtors dr ON dr.id = d.debtor_id
		WHERE dr.owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT p.id, p.debt_id, p.amount, p.method, p.note, p.payment_date
		FROM payments p
		JOIN debts d ON d.id = p.debt_id
		JOIN debtors dr ON dr.id = d.debtor_id
		WHERE dr.owner_id = $1
		ORDER BY p.payment_date, p.id
		LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	return payments, total, nil
}

func (s *Postgres) DeletePayment(ctx context.Context, id string) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	return checkAffected(result)
}

func (s *Postgres) Summary(ctx context.Context, ownerID string) (models.Summary, error) {
	var summary models.Summary
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(outstanding_debt), 0)
		FROM debtors
		WHERE owner_id = $1`, ownerID).Scan(&summary.Debtors, &summary.TotalOutstanding)
	if err != nil {
		return models.Summary{}, fmt.Errorf("summarize debtors: %w", err)
	}

	err = s.q.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE d.amount_owed > 0),
			COUNT(*) FILTER (WHERE d.status = $2)
		FROM debts d
		JOIN debtors dr ON dr.id = d.debtor_id
		WHERE dr.owner_id = $1`, ownerID, string(models.StatusOverdue)).
		Scan(&summary.OpenDebts, &summary.OverdueDebts)
	if err != nil {
		return models.Summary{}, fmt.Errorf("summarize debts: %w", err)
	}
	return summary, nil
}

func (s *Postgres) debtsForDebtor(ctx context.Context, debtorID string) ([]*models.Debt, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+debtColumns+`
		FROM debts
		WHERE debtor_id = $1
		ORDER BY created_at, id`, debtorID)
	if err != nil {
		return nil, fmt.Errorf("load debts: %w", err)
	}
	defer rows.Close()

	var debts []*models.Debt
	for rows.Next() {
		debt, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		debts = append(debts, debt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load debts: %w", err)
	}
	for _, debt := range debts {
		if debt.Payments, err = s.paymentsForDebt(ctx, debt.ID); err != nil {
			return nil, err
		}
	}
	return debts, nil
}

func (s *Postgres) paymentsForDebt(ctx context.Context, debtID string) ([]*models.Payment, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE debt_id = $1
		ORDER BY payment_date, id`, debtID)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	return payments, nil
}

// checkUpdated distinguishes a version conflict from a missing row after a
// version-guarded UPDATE touched nothing.
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

func scanDebtor(row rowScanner) (*models.Debtor, error) {
	var (
		debtor      models.Debtor
		lastPayment sql.NullTime
	)
	err := row.Scan(&debtor.ID, &debtor.OwnerID, &debtor.FullName, &debtor.Phone, &debtor.Email,
		&debtor.Address.Street, &debtor.Address.City, &debtor.Address.State, &debtor.Address.ZipCode,
		&debtor.OutstandingDebt, &lastPayment, &debtor.CreatedAt, &debtor.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan debtor: %w", err)
	}
	if lastPayment.Valid {
		debtor.LastPaymentDate = &lastPayment.Time
	}
	return &debtor, nil
}

func scanDebt(row rowScanner) (*models.Debt, error) {
	var (
		debt   models.Debt
		status string
	)
	err := row.Scan(&debt.ID, &debt.DebtorID, &debt.TotalDebt, &debt.AmountOwed,
		&debt.DueDate, &status, &debt.CreatedAt, &debt.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan debt: %w", err)
	}
	debt.Status = models.DebtStatus(status)
	return &debt, nil
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	var (
		payment models.Payment
		method  string
	)
	err := row.Scan(&payment.ID, &payment.DebtID, &payment.Amount, &method,
		&payment.Note, &payment.PaymentDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	payment.Method = models.PaymentMethod(method)
	return &payment, nil
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}
