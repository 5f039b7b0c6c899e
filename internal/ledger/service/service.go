package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/ledger/models"
	"tally/internal/platform/metrics"
	"tally/pkg/platform/sentinel"

	dErrors "tally/pkg/domain-errors"
)

// Store is the aggregate repository contract the ledger engine requires from
// persistence. Every read and write is scoped to the owning user; a lookup
// that matches by id but fails the ownership filter returns
// sentinel.ErrNotFound, indistinguishable from an absent row.
//
// Stores are pure I/O. Derivation (balances, statuses, outstanding totals)
// happens on the aggregates before the rows are written.
type Store interface {
	InsertDebtor(ctx context.Context, debtor *models.Debtor) error
	FindDebtor(ctx context.Context, id, ownerID string) (*models.Debtor, error)
	ListDebtors(ctx context.Context, ownerID string, limit, offset int) ([]*models.Debtor, int, error)
	UpdateDebtor(ctx context.Context, debtor *models.Debtor) error
	DeleteDebtor(ctx context.Context, id, ownerID string) error

	InsertDebt(ctx context.Context, debt *models.Debt) error
	FindDebt(ctx context.Context, id, ownerID string) (*models.Debt, error)
	ListDebtViews(ctx context.Context, ownerID string, limit, offset int) ([]models.DebtView, int, error)
	GetDebtView(ctx context.Context, id, ownerID string) (*models.DebtView, error)
	UpdateDebt(ctx context.Context, debt *models.Debt) error
	DeleteDebt(ctx context.Context, id string) error

	InsertPayment(ctx context.Context, payment *models.Payment) error
	FindPayment(ctx context.Context, id, ownerID string) (*models.Payment, error)
	ListPayments(ctx context.Context, ownerID string, limit, offset int) ([]*models.Payment, int, error)
	DeletePayment(ctx context.Context, id string) error

	Summary(ctx context.Context, ownerID string) (models.Summary, error)
}

// Service owns the ledger use cases. Mutations run inside the transactional
// boundary so the aggregate, its children and the derived fields commit
// together or not at all.
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

// New constructs a Service. The store serves reads; the tx boundary serves
// mutations.
func New(store Store, tx StoreTx, opts ...Option) *Service {
	s := &Service{store: store, tx: tx, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDebtorInput carries the debtor registration fields.
type CreateDebtorInput struct {
	FullName string
	Phone    string
	Email    string
	Street   string
	City     string
	State    string
	ZipCode  string
}

func (s *Service) CreateDebtor(ctx context.Context, ownerID string, in CreateDebtorInput) (*models.Debtor, error) {
	address, err := models.NewAddress(in.Street, in.City, in.State, in.ZipCode)
	if err != nil {
		return nil, err
	}
	debtor, err := models.NewDebtor(ownerID, in.FullName, in.Phone, in.Email, address, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(st Store) error {
		return st.InsertDebtor(ctx, debtor)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a debtor with the same email already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create debtor")
	}

	s.logger.InfoContext(ctx, "debtor created", "debtor_id", debtor.ID)
	return debtor, nil
}

func (s *Service) GetDebtor(ctx context.Context, ownerID, id string) (*models.Debtor, error) {
	debtor, err := s.store.FindDebtor(ctx, id, ownerID)
	if err != nil {
		return nil, s.translateNotFound(err, "debtor not found", "failed to load debtor")
	}
	return debtor, nil
}

func (s *Service) ListDebtors(ctx context.Context, ownerID string, limit, offset int) ([]*models.Debtor, int, error) {
	debtors, total, err := s.store.ListDebtors(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list debtors")
	}
	return debtors, total, nil
}

func (s *Service) UpdateDebtorContact(ctx context.Context, ownerID, id, phone, email string) (*models.Debtor, error) {
	var debtor *models.Debtor
	err := s.tx.RunInTx(ctx, func(st Store) error {
		var err error
		debtor, err = st.FindDebtor(ctx, id, ownerID)
		if err != nil {
			return err
		}
		if err := debtor.UpdateContactInfo(phone, email); err != nil {
			return err
		}
		return st.UpdateDebtor(ctx, debtor)
	})
	if err != nil {
		return nil, s.translateNotFound(err, "debtor not found", "failed to update debtor contact info")
	}
	return debtor, nil
}

func (s *Service) UpdateDebtorAddress(ctx context.Context, ownerID, id string, street, city, state, zipCode string) (*models.Debtor, error) {
	address, err := models.NewAddress(street, city, state, zipCode)
	if err != nil {
		return nil, err
	}

	var debtor *models.Debtor
	err = s.tx.RunInTx(ctx, func(st Store) error {
		var err error
		debtor, err = st.FindDebtor(ctx, id, ownerID)
		if err != nil {
			return err
		}
		debtor.UpdateAddress(address)
		return st.UpdateDebtor(ctx, debtor)
	})
	if err != nil {
		return nil, s.translateNotFound(err, "debtor not found", "failed to update debtor address")
	}
	return debtor, nil
}

// DeleteDebtor removes a debtor without children. Debts never cascade: the
// delete is rejected while any debt remains.
func (s *Service) DeleteDebtor(ctx context.Context, ownerID, id string) (*models.Debtor, error) {
	var debtor *models.Debtor
	err := s.tx.RunInTx(ctx, func(st Store) error {
		var err error
		debtor, err = st.FindDebtor(ctx, id, ownerID)
		if err != nil {
			return err
		}
		return st.DeleteDebtor(ctx, id, ownerID)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrRestricted) {
			return nil, dErrors.New(dErrors.CodeConflict, "debtor still has debts and cannot be deleted")
		}
		return nil, s.translateNotFound(err, "debtor not found", "failed to delete debtor")
	}

	s.logger.InfoContext(ctx, "debtor deleted", "debtor_id", id)
	return debtor, nil
}

// CreateDebtInput carries the debt creation fields. AmountOwed is advisory:
// the recalculation against the empty payment history resets the balance to
// the total (see models.NewDebt).
type CreateDebtInput struct {
	TotalAmount decimal.Decimal
	DueDate     time.Time
	AmountOwed  *decimal.Decimal
}

// AddDebt creates a debt under the debtor and re-derives the outstanding
// total, committing both aggregates together.
func (s *Service) AddDebt(ctx context.Context, ownerID, debtorID string, in CreateDebtInput) (*models.Debt, error) {
	now := time.Now().UTC()
	debt, err := models.NewDebt(in.TotalAmount, in.DueDate, in.AmountOwed, now)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(st Store) error {
		debtor, err := st.FindDebtor(ctx, debtorID, ownerID)
		if err != nil {
			return err
		}
		debtor.AddDebt(debt)
		if err := st.InsertDebt(ctx, debt); err != nil {
			return err
		}
		return st.UpdateDebtor(ctx, debtor)
	})
	if err != nil {
		return nil, s.translateNotFound(err, "debtor not found", "failed to add debt")
	}

	s.incrementDebtsCreated()
	s.logger.InfoContext(ctx, "debt created", "debt_id", debt.ID, "debtor_id", debtorID)
	return debt, nil
}

// RemoveDebt detaches and deletes a debt, re-deriving the debtor's
// outstanding total in the same transaction.
func (s *Service) RemoveDebt(ctx context.Context, ownerID, debtorID, debtID string) (*models.Debt, error) {
	var removed *models.Debt
	err := s.tx.RunInTx(ctx, func(st Store) error {
		debtor, err := st.FindDebtor(ctx, debtorID, ownerID)
		if err != nil {
			return err
		}
		removed, err = debtor.RemoveDebt(debtID)
		if err != nil {
			return err
		}
		if err := st.DeleteDebt(ctx, debtID); err != nil {
			return err
		}
		return st.UpdateDebtor(ctx, debtor)
	})
	if err != nil {
		return nil, s.translateNotFound(err, "debtor not found", "failed to remove debt")
	}

	s.logger.InfoContext(ctx, "debt removed", "debt_id", debtID, "debtor_id", debtorID)
	return removed, nil
}

func (s *Service) ListDebtorDebts(ctx context.Context, ownerID, debtorID string) ([]*models.Debt, error) {
	debtor, err := s.store.FindDebtor(ctx, debtorID, ownerID)
	if err != nil {
		return nil, s.translateNotFound(err, "debtor not found", "failed to load debtor")
	}
	return debtor.Debts, nil
}

func (s *Service) GetDebt(ctx context.Context, ownerID, id string) (*models.DebtView, error) {
	view, err := s.store.GetDebtView(ctx, id, ownerID)
	if err != nil {
		return nil, s.translateNotFound(err, "debt not found", "failed to load debt")
	}
	return view, nil
}

func (s *Service) ListDebts(ctx context.Context, ownerID string, limit, offset int) ([]models.DebtView, int, error) {
	views, total, err := s.store.ListDebtViews(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list debts")
	}
	return views, total, nil
}

// ExtendDueDate shifts a debt's due date forward, which can clear an Overdue
// status; the re-derived status is committed with the new date.
func (s *Service) ExtendDueDate(ctx context.Context, ownerID, debtID string, days int) (*models.Debt, error) {
	now := time.Now().UTC()
	var debt *models.Debt
	err := s.tx.RunInTx(ctx, func(st Store) error {
		var err error
		debt, err = st.FindDebt(ctx, debtID, ownerID)
		if err != nil {
			return err
		}
		if err := debt.ExtendDueDate(days, now); err != nil {
			return err
		}
		return st.UpdateDebt(ctx, debt)
	})
	if err != nil {
		return nil, s.translateNotFound(err, "debt not found", "failed to extend due date")
	}
	return debt, nil
}

// DeleteDebt removes a debt through its owning debtor so the outstanding
// total stays consistent.
func (s *Service) DeleteDebt(ctx context.Context, ownerID, debtID string) error {
	err := s.tx.RunInTx(ctx, func(st Store) error {
		debt, err := st.FindDebt(ctx, debtID, ownerID)
		if err != nil {
			return err
		}
		debtor, err := st.FindDebtor(ctx, debt.DebtorID, ownerID)
		if err != nil {
			return err
		}
		if _, err := debtor.RemoveDebt(debtID); err != nil {
			return err
		}
		if err := st.DeleteDebt(ctx, debtID); err != nil {
			return err
		}
		return st.UpdateDebtor(ctx, debtor)
	})
	if err != nil {
		return s.translateNotFound(err, "debt not found", "failed to delete debt")
	}
	return nil
}

// RecordPayment appends a ledger entry against a debt. The payment, the debt's
// re-derived balance and status, and the debtor's outstanding total commit
// atomically; a rejection leaves all three untouched.
func (s *Service) RecordPayment(ctx context.Context, ownerID, debtID string, amount decimal.Decimal, method, note string) (*models.Payment, error) {
	now := time.Now().UTC()
	var payment *models.Payment
	err := s.tx.RunInTx(ctx, func(st Store) error {
		debtor, debt, err := s.loadDebtThroughRoot(ctx, st, debtID, ownerID)
		if err != nil {
			return err
		}

		payment, err = debt.RecordPayment(amount, method, note, now)
		if err != nil {
			return err
		}
		debtor.RecalculateOutstanding()
		if err := debtor.RecordLastPayment(payment.PaymentDate, now); err != nil {
			return err
		}

		if err := st.InsertPayment(ctx, payment); err != nil {
			return err
		}
		if err := st.UpdateDebt(ctx, debt); err != nil {
			return err
		}
		return st.UpdateDebtor(ctx, debtor)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "debt was modified concurrently, reload and retry")
		}
		return nil, s.translateNotFound(err, "debt not found", "failed to record payment")
	}

	s.incrementPaymentsRecorded()
	s.logger.InfoContext(ctx, "payment recorded", "payment_id", payment.ID, "debt_id", debtID)
	return payment, nil
}

func (s *Service) GetPayment(ctx context.Context, ownerID, id string) (*models.Payment, error) {
	payment, err := s.store.FindPayment(ctx, id, ownerID)
	if err != nil {
		return nil, s.translateNotFound(err, "payment not found", "failed to load payment")
	}
	return payment, nil
}

func (s *Service) ListPayments(ctx context.Context, ownerID string, limit, offset int) ([]*models.Payment, int, error) {
	payments, total, err := s.store.ListPayments(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list payments")
	}
	return payments, total, nil
}

// DeletePayment removes a ledger entry and re-derives the debt balance and
// the debtor's outstanding total from the remaining history.
func (s *Service) DeletePayment(ctx context.Context, ownerID, paymentID string) error {
	now := time.Now().UTC()
	err := s.tx.RunInTx(ctx, func(st Store) error {
		payment, err := st.FindPayment(ctx, paymentID, ownerID)
		if err != nil {
			return err
		}
		debtor, debt, err := s.loadDebtThroughRoot(ctx, st, payment.DebtID, ownerID)
		if err != nil {
			return err
		}

		if _, err := debt.RemovePayment(paymentID, now); err != nil {
			return err
		}
		debtor.RecalculateOutstanding()

		if err := st.DeletePayment(ctx, paymentID); err != nil {
			return err
		}
		if err := st.UpdateDebt(ctx, debt); err != nil {
			return err
		}
		return st.UpdateDebtor(ctx, debtor)
	})
	if err != nil {
		return s.translateNotFound(err, "payment not found", "failed to delete payment")
	}

	s.logger.InfoContext(ctx, "payment deleted", "payment_id", paymentID)
	return nil
}

// Summary aggregates the owner's ledger for the overview endpoint.
func (s *Service) Summary(ctx context.Context, ownerID string) (models.Summary, error) {
	summary, err := s.store.Summary(ctx, ownerID)
	if err != nil {
		return models.Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to summarize ledger")
	}
	return summary, nil
}

// loadDebtThroughRoot resolves a debt's owning debtor and returns the debt
// instance held by that aggregate, so mutations and the outstanding-total
// derivation work on the same object.
func (s *Service) loadDebtThroughRoot(ctx context.Context, st Store, debtID, ownerID string) (*models.Debtor, *models.Debt, error) {
	ref, err := st.FindDebt(ctx, debtID, ownerID)
	if err != nil {
		return nil, nil, err
	}
	debtor, err := st.FindDebtor(ctx, ref.DebtorID, ownerID)
	if err != nil {
		return nil, nil, err
	}
	for _, d := range debtor.Debts {
		if d.ID == debtID {
			return debtor, d, nil
		}
	}
	return nil, nil, sentinel.ErrNotFound
}

// translateNotFound maps store sentinels to coded errors while passing
// through errors that already carry a code.
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

func (s *Service) incrementDebtsCreated() {
	if s.metrics != nil {
		s.metrics.IncrementDebtsCreated()
	}
}

func (s *Service) incrementPaymentsRecorded() {
	if s.metrics != nil {
		s.metrics.IncrementPaymentsRecorded()
	}
}
