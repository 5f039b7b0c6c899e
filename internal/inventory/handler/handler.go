package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	inventoryModel "tally/internal/inventory/models"
	"tally/internal/inventory/service"
	"tally/internal/platform/metrics"
	"tally/internal/platform/middleware"
	"tally/internal/transport/http/shared"

	dErrors "tally/pkg/domain-errors"
)

// Service defines the interface for inventory operations.
type Service interface {
	CreateCategory(ctx context.Context, ownerID, name, description string) (*inventoryModel.Category, error)
	GetCategory(ctx context.Context, ownerID, id string) (*inventoryModel.CategoryView, error)
	ListCategories(ctx context.Context, ownerID string, limit, offset int) ([]*inventoryModel.Category, int, error)
	UpdateCategory(ctx context.Context, ownerID, id, name, description string) (*inventoryModel.Category, error)
	DeleteCategory(ctx context.Context, ownerID, id string) error

	CreateProduct(ctx context.Context, ownerID string, in service.CreateProductInput) (*inventoryModel.Product, error)
	GetProduct(ctx context.Context, ownerID, id string) (*inventoryModel.ProductView, error)
	ListProducts(ctx context.Context, ownerID string, limit, offset int) ([]inventoryModel.ProductView, int, error)
	UpdateProduct(ctx context.Context, ownerID, id string, in service.UpdateProductInput) (*inventoryModel.Product, error)
	DeleteProduct(ctx context.Context, ownerID, id string) error

	AddStock(ctx context.Context, ownerID, productID string, quantity int, note string) (*inventoryModel.StockMovement, error)
	RemoveStock(ctx context.Context, ownerID, productID string, quantity int, note string) (*inventoryModel.StockMovement, error)
	GetMovement(ctx context.Context, ownerID, id string) (*inventoryModel.StockMovement, error)
	ListMovements(ctx context.Context, ownerID string, limit, offset int) ([]*inventoryModel.StockMovement, int, error)
	ListProductMovements(ctx context.Context, ownerID, productID string) ([]*inventoryModel.StockMovement, error)
	DeleteMovement(ctx context.Context, ownerID, movementID string) error
}

// Handler handles product, category and stock transaction endpoints.
type Handler struct {
	logger       *slog.Logger
	inventory    Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new inventory Handler.
func New(inventory Service, logger *slog.Logger, metrics *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		inventory:    inventory,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the inventory routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	categories := h.baseRouter()
	categories.Post("/", h.handleCreateCategory)
	categories.Get("/", h.handleListCategories)
	categories.Get("/{id}", h.handleGetCategory)
	categories.Put("/{id}", h.handleUpdateCategory)
	categories.Delete("/{id}", h.handleDeleteCategory)
	r.Mount("/categories", categories)

	products := h.baseRouter()
	products.Post("/", h.handleCreateProduct)
	products.Get("/", h.handleListProducts)
	products.Get("/{id}", h.handleGetProduct)
	products.Put("/{id}", h.handleUpdateProduct)
	products.Delete("/{id}", h.handleDeleteProduct)
	r.Mount("/products", products)

	movements := h.baseRouter()
	movements.Post("/add-stock", h.handleAddStock)
	movements.Post("/remove-stock", h.handleRemoveStock)
	movements.Get("/", h.handleListMovements)
	movements.Get("/{id}", h.handleGetMovement)
	movements.Delete("/{id}", h.handleDeleteMovement)
	movements.Get("/product/{productID}", h.handleListProductMovements)
	r.Mount("/inventory-transactions", movements)
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

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	var req categoryRequest
	if !h.decode(w, r, &req) {
		return
	}

	category, err := h.inventory.CreateCategory(ctx, ownerID, req.Name, req.Description)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to create category")
		return
	}
	shared.WriteJSON(w, http.StatusCreated, category)
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	page := shared.ParsePage(r)
	categories, total, err := h.inventory.ListCategories(ctx, ownerID, page.Limit, page.Offset)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to list categories")
		return
	}
	if categories == nil {
		categories = []*inventoryModel.Category{}
	}
	shared.SetTotalCount(w, total)
	shared.WriteJSON(w, http.StatusOK, categories)
}

func (h *Handler) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	view, err := h.inventory.GetCategory(ctx, ownerID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to load category")
		return
	}
	shared.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	var req categoryRequest
	if !h.decode(w, r, &req) {
		return
	}

	category, err := h.inventory.UpdateCategory(ctx, ownerID, chi.URLParam(r, "id"), req.Name, req.Description)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to update category")
		return
	}
	shared.WriteJSON(w, http.StatusOK, category)
}

func (h *Handler) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	if err := h.inventory.DeleteCategory(ctx, ownerID, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(ctx, w, err, "failed to delete category")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createProductRequest struct {
	CategoryID   string          `json:"category_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	InitialStock int             `json:"initial_stock"`
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	var req createProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	product, err := h.inventory.CreateProduct(ctx, ownerID, service.CreateProductInput{
		CategoryID:   req.CategoryID,
		Name:         req.Name,
		Description:  req.Description,
		UnitPrice:    req.UnitPrice,
		InitialStock: req.InitialStock,
	})
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to create product")
		return
	}
	shared.WriteJSON(w, http.StatusCreated, product)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	page := shared.ParsePage(r)
	views, total, err := h.inventory.ListProducts(ctx, ownerID, page.Limit, page.Offset)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to list products")
		return
	}
	if views == nil {
		views = []inventoryModel.ProductView{}
	}
	shared.SetTotalCount(w, total)
	shared.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	view, err := h.inventory.GetProduct(ctx, ownerID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to load product")
		return
	}
	shared.WriteJSON(w, http.StatusOK, view)
}

type updateProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	var req updateProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	product, err := h.inventory.UpdateProduct(ctx, ownerID, chi.URLParam(r, "id"), service.UpdateProductInput{
		Name:        req.Name,
		Description: req.Description,
		UnitPrice:   req.UnitPrice,
	})
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to update product")
		return
	}
	shared.WriteJSON(w, http.StatusOK, product)
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	if err := h.inventory.DeleteProduct(ctx, ownerID, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(ctx, w, err, "failed to delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type stockRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Note      string `json:"notes"`
}

func (h *Handler) handleAddStock(w http.ResponseWriter, r *http.Request) {
	h.handleStock(w, r, h.inventory.AddStock)
}

func (h *Handler) handleRemoveStock(w http.ResponseWriter, r *http.Request) {
	h.handleStock(w, r, h.inventory.RemoveStock)
}

func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request,
	apply func(ctx context.Context, ownerID, productID string, quantity int, note string) (*inventoryModel.StockMovement, error)) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	var req stockRequest
	if !h.decode(w, r, &req) {
		return
	}

	movement, err := apply(ctx, ownerID, req.ProductID, req.Quantity, req.Note)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to record stock transaction")
		return
	}
	shared.WriteJSON(w, http.StatusCreated, movement)
}

func (h *Handler) handleListMovements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	page := shared.ParsePage(r)
	movements, total, err := h.inventory.ListMovements(ctx, ownerID, page.Limit, page.Offset)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to list transactions")
		return
	}
	if movements == nil {
		movements = []*inventoryModel.StockMovement{}
	}
	shared.SetTotalCount(w, total)
	shared.WriteJSON(w, http.StatusOK, movements)
}

func (h *Handler) handleGetMovement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	movement, err := h.inventory.GetMovement(ctx, ownerID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to load transaction")
		return
	}
	shared.WriteJSON(w, http.StatusOK, movement)
}

func (h *Handler) handleDeleteMovement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	if err := h.inventory.DeleteMovement(ctx, ownerID, chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(ctx, w, err, "failed to delete transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListProductMovements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID, ok := h.ownerID(ctx, w)
	if !ok {
		return
	}

	movements, err := h.inventory.ListProductMovements(ctx, ownerID, chi.URLParam(r, "productID"))
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to list product transactions")
		return
	}
	if movements == nil {
		movements = []*inventoryModel.StockMovement{}
	}
	shared.WriteJSON(w, http.StatusOK, movements)
}

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
