package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	ledgerModel "tally/internal/ledger/models"
	"tally/internal/ledger/service"
	"tally/internal/platform/metrics"
	"tally/internal/platform/middleware"
	"tally/internal/transport/http/shared"

	dErrors "tally/pkg/domain-errors"
)

// Service defines the interface for ledger operations.
type Service interface {
	CreateDebtor(ctx context.Context, ownerID string, in service.CreateDebtorInput) (*ledgerModel.Debtor, error)
	GetDebtor(ctx context.Context, ownerID, id string) (*ledgerModel.Debtor, error)
	ListDebtors(ctx context.Context, ownerID string, limit, offset int) ([]*ledgerModel.Debtor, int, error)
	UpdateDebtorContact(ctx context.Context, ownerID, id, phone, email string) (*ledgerModel.Debtor, error)
	UpdateDebtorAddress(ctx context.Context, ownerID, id, street, city, state, zipCode string) (*ledgerModel.Debtor, error)
	DeleteDebtor(ctx context.Context, ownerID, id string) (*ledgerModel.Debtor, error)

	AddDebt(ctx context.Context, ownerID, debtorID string, in service.CreateDebtInput) (*ledgerModel.Debt, error)
	RemoveDebt(ctx context.Context, ownerID, debtorID, debtID string) (*ledgerModel.Debt, error)
	ListDebtorDebts(ctx context.Context, ownerID, debtorID string) ([]*ledgerModel.Debt, error)
	GetDebt(ctx context.Context, ownerID, id string) (*ledgerModel.DebtView, error)
	ListDebts(ctx context.Context, ownerID string, limit, offset int) ([]ledgerModel.DebtView, int, error)
	ExtendDueDate(ctx context.Context, ownerID, debtID string, days int) (*ledgerModel.Debt, error)
	DeleteDebt(ctx context.Context, ownerID, debtID string) error

	RecordPayment(ctx context.Context, ownerID, debtID string, amount decimal.Decimal, method, note string) (*ledgerModel.Payment, error)
	GetPayment(ctx context.Context, ownerID, id string) (*ledgerModel.Payment, error)
	ListPayments(ctx context.Context, ownerID string, limit, offset int) ([]*ledgerModel.Payment, int, error)
	DeletePayment(ctx context.Context, ownerID, paymentID string) error
}

// Handler handles debtor, debt and payment endpoints.
type Handler struct {
	logger       *slog.Logger
	ledger       Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new ledger Handler.
func New(ledger Service, logger *slog.Logger, metrics *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		ledger:       ledger,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the ledger routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	debtors := h.baseRouter()
	debtors.Post("/", h.handleCreateDebtor)
	debtors.Get("/", h.handleListDebtors)
	debtors.Get("/{id}", h.handleGetDebtor)
	debtors.Put("/{id}/contact-info", h.handleUpdateContactInfo)
	debtors.Put("/{id}/address", h.handleUpdateAddress)
	debtors.Delete("/{id}", h.handleDeleteDebtor)
	debtors.Get("/{id}/debts", h.handleListDebtorDebts)
	debtors.Post("/{id}/debts", h.handleAddDebt)
	debtors.Delete("/{id}/debts/{debtID}", h.handleRemoveDebt)
	r.Mount("/debtors", debtors)

	debts := h.baseRouter()
	debts.Get("/", h.handleListDebts)
	debts.Get("/{id}", h.handleGetDebt)
	debts.Post("/{id}/extend", h.handleExtendDueDate)
	debts.Delete("/{id}", h.handleDeleteDebt)
	debts.Post("/{id}/payments", h.handleRecordPayment)
	r.Mount("/debts", debts)

	payments := h.baseRouter()
	payments.Get("/", h.handleListPayments)
	payments.Get("/{id}", h.handleGetPayment)
	payments.Delete("/{id}", h.handleDeletePayment)
	r.Mount("/payments", payments)
}

func (h *Handler) baseRouter() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.LatencyMiddleware(h.metrics))
	router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	return router
}

type createDebtorRequest struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	ZipCode  string `json:"zip_code"`
}

func (h *Handler) handleCreateDebtor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	var req createDebtorRequest
	if !h.decode(w, r, &req) {
		return
	}

	debtor, err := h.ledger.CreateDebtor(ctx, ownerID, service.CreateDebtorInput{
		FullName: req.FullName,
		Phone:    req.Phone,
		Email:    req.Email,
		Street:   req.Street,
		City:     req.City,
		State:    req.State,
		ZipCode:  req.ZipCode,
	})
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to create debtor")
		return
	}
	shared.WriteJSON(w, http.StatusCreated, debtor)
}

func (h *Handler) handleListDebtors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	page := shared.ParsePage(r)
	debtors, total, err := h.ledger.ListDebtors(ctx, ownerID, page.Limit, page.Offset)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to list debtors")
		return
	}
	if debtors == nil {
		debtors = []*ledgerModel.Debtor{}
	}
	shared.SetTotalCount(w, total)
	shared.WriteJSON(w, http.StatusOK, debtors)
}

func (h *Handler) handleGetDebtor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	debtor, err := h.ledger.GetDebtor(ctx, ownerID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to load debtor")
		return
	}
	shared.WriteJSON(w, http.StatusOK, debtor)
}

type contactInfoRequest struct {
	Phone string `json:"phone"`
	Email string `json:"email"`
}

func (h *Handler) handleUpdateContactInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	var req contactInfoRequest
	if !h.decode(w, r, &req) {
		return
	}

	debtor, err := h.ledger.UpdateDebtorContact(ctx, ownerID, chi.URLParam(r, "id"), req.Phone, req.Email)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to update contact info")
		return
	}
	shared.WriteJSON(w, http.StatusOK, debtor)
}

type addressRequest struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
}

func (h *Handler) handleUpdateAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	var req addressRequest
	if !h.decode(w, r, &req) {
		return
	}

	debtor, err := h.ledger.UpdateDebtorAddress(ctx, ownerID, chi.URLParam(r, "id"),
		req.Street, req.City, req.State, req.ZipCode)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to update address")
		return
	}
	shared.WriteJSON(w, http.StatusOK, debtor)
}

func (h *Handler) handleDeleteDebtor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	if _, err := h.ledger.DeleteDebtor(ctx, ownerID, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(ctx, w, err, "failed to delete debtor")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListDebtorDebts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	debts, err := h.ledger.ListDebtorDebts(ctx, ownerID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to list debts")
		return
	}
	if debts == nil {
		debts = []*ledgerModel.Debt{}
	}
	shared.WriteJSON(w, http.StatusOK, debts)
}

type createDebtRequest struct {
	TotalAmount decimal.Decimal  `json:"total_amount"`
	DueDate     time.Time        `json:"due_date"`
	AmountOwed  *decimal.Decimal `json:"amount_owed,omitempty"`
}

func (h *Handler) handleAddDebt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	var req createDebtRequest
	if !h.decode(w, r, &req) {
		return
	}

	debt, err := h.ledger.AddDebt(ctx, ownerID, chi.URLParam(r, "id"), service.CreateDebtInput{
		TotalAmount: req.TotalAmount,
		DueDate:     req.DueDate,
		AmountOwed:  req.AmountOwed,
	})
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to add debt")
		return
	}
	shared.WriteJSON(w, http.StatusCreated, debt)
}

func (h *Handler) handleRemoveDebt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	_, err := h.ledger.RemoveDebt(ctx, ownerID, chi.URLParam(r, "id"), chi.URLParam(r, "debtID"))
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to remove debt")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListDebts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	page := shared.ParsePage(r)
	views, total, err := h.ledger.ListDebts(ctx, ownerID, page.Limit, page.Offset)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to list debts")
		return
	}
	if views == nil {
		views = []ledgerModel.DebtView{}
	}
	shared.SetTotalCount(w, total)
	shared.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) handleGetDebt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	view, err := h.ledger.GetDebt(ctx, ownerID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to load debt")
		return
	}
	shared.WriteJSON(w, http.StatusOK, view)
}

type extendDueDateRequest struct {
	Days int `json:"days"`
}

func (h *Handler) handleExtendDueDate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	var req extendDueDateRequest
	if !h.decode(w, r, &req) {
		return
	}

	debt, err := h.ledger.ExtendDueDate(ctx, ownerID, chi.URLParam(r, "id"), req.Days)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to extend due date")
		return
	}
	shared.WriteJSON(w, http.StatusOK, debt)
}

func (h *Handler) handleDeleteDebt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	if err := h.ledger.DeleteDebt(ctx, ownerID, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(ctx, w, err, "failed to delete debt")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type recordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"payment_method"`
	Note   string          `json:"note"`
}

func (h *Handler) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	var req recordPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	payment, err := h.ledger.RecordPayment(ctx, ownerID, chi.URLParam(r, "id"),
		req.Amount, req.Method, req.Note)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to record payment")
		return
	}
	shared.WriteJSON(w, http.StatusCreated, payment)
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	page := shared.ParsePage(r)
	payments, total, err := h.ledger.ListPayments(ctx, ownerID, page.Limit, page.Offset)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to list payments")
		return
	}
	if payments == nil {
		payments = []*ledgerModel.Payment{}
	}
	shared.SetTotalCount(w, total)
	shared.WriteJSON(w, http.StatusOK, payments)
}

func (h *Handler) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	payment, err := h.ledger.GetPayment(ctx, ownerID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to load payment")
		return
	}
	shared.WriteJSON(w, http.StatusOK, payment)
}

func (h *Handler) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	if err := h.ledger.DeletePayment(ctx, ownerID, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(ctx, w, err, "failed to delete payment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownerID pulls the authenticated user from the context. RequireAuth has
// already run; an empty id means the middleware chain is miswired.
func (h *Handler) ownerID(ctx context.Context, w http.ResponseWriter) (string, bool) {
	ownerID := middleware.GetUserID(ctx)
	if ownerID == "" {
		h.logger.ErrorContext(ctx, "userID missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return "", false
	}
	return ownerID, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.WarnContext(r.Context(), "invalid request body",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return false
	}
	return true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error, logMsg string) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, logMsg,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, logMsg,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	}
	shared.WriteError(w, err)
}
