package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/inventory/service"
	"tally/internal/inventory/store"
	"tally/internal/platform/middleware"
)

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}
	return &middleware.JWTClaims{UserID: "owner-" + token, Email: token + "@example.com"}, nil
}

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	mem := store.NewMemory()
	svc := service.New(mem, store.NewMemoryTx(mem))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	New(svc, logger, nil, stubValidator{}).Register(r)
	return r
}

func do(t *testing.T, r chi.Router, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createCategory(t *testing.T, r chi.Router, token, name string) map[string]any {
	t.Helper()
	w := do(t, r, http.MethodPost, "/categories", token, map[string]any{
		"name":        name,
		"description": "test category",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var category map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &category))
	return category
}

func createProduct(t *testing.T, r chi.Router, token, categoryID, name string, initialStock int) map[string]any {
	t.Helper()
	w := do(t, r, http.MethodPost, "/products", token, map[string]any{
		"category_id":   categoryID,
		"name":          name,
		"description":   "test product",
		"unit_price":    "9.99",
		"initial_stock": initialStock,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var product map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &product))
	return product
}

func TestCreateCategoryAndProduct(t *testing.T) {
	r := newTestRouter(t)
	category := createCategory(t, r, "alice", "Beverages")
	assert.Equal(t, "Beverages", category["id"])

	product := createProduct(t, r, "alice", category["id"].(string), "Cola", 10)
	assert.Equal(t, "beverages_cola", product["id"])
	assert.Equal(t, float64(10), product["stock_quantity"])
}

func TestRequiresAuthentication(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, http.MethodGet, "/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateProductUnknownCategory(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, http.MethodPost, "/products", "alice", map[string]any{
		"category_id":   "no-such-category",
		"name":          "Cola",
		"unit_price":    "9.99",
		"initial_stock": 1,
	})
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
}

func TestOpeningStockRecordsMovement(t *testing.T) {
	r := newTestRouter(t)
	category := createCategory(t, r, "alice", "Beverages")
	product := createProduct(t, r, "alice", category["id"].(string), "Cola", 10)

	w := do(t, r, http.MethodGet, "/inventory-transactions/product/"+product["id"].(string), "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var movements []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &movements))
	require.Len(t, movements, 1)
	assert.Equal(t, "Stock Added", movements[0]["transaction_type"])
	assert.Equal(t, float64(10), movements[0]["quantity"])
}

func TestStockFlow(t *testing.T) {
	r := newTestRouter(t)
	category := createCategory(t, r, "alice", "Beverages")
	product := createProduct(t, r, "alice", category["id"].(string), "Cola", 5)
	productID := product["id"].(string)

	w := do(t, r, http.MethodPost, "/inventory-transactions/add-stock", "alice", map[string]any{
		"product_id": productID,
		"quantity":   7,
		"notes":      "restock",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, "/inventory-transactions/remove-stock", "alice", map[string]any{
		"product_id": productID,
		"quantity":   4,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, r, http.MethodGet, "/products/"+productID, "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, float64(8), view["stock_quantity"])
	assert.Equal(t, "Beverages", view["category_name"])
}

func TestRemoveStockOverdraw(t *testing.T) {
	r := newTestRouter(t)
	category := createCategory(t, r, "alice", "Beverages")
	product := createProduct(t, r, "alice", category["id"].(string), "Cola", 3)

	w := do(t, r, http.MethodPost, "/inventory-transactions/remove-stock", "alice", map[string]any{
		"product_id": product["id"].(string),
		"quantity":   4,
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "insufficient_stock", resp["error"])
}

func TestDeleteCategoryWithProductsConflicts(t *testing.T) {
	r := newTestRouter(t)
	category := createCategory(t, r, "alice", "Beverages")
	createProduct(t, r, "alice", category["id"].(string), "Cola", 1)

	w := do(t, r, http.MethodDelete, "/categories/"+category["id"].(string), "alice", nil)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestProductScopedToOwner(t *testing.T) {
	r := newTestRouter(t)
	category := createCategory(t, r, "alice", "Beverages")
	product := createProduct(t, r, "alice", category["id"].(string), "Cola", 1)

	w := do(t, r, http.MethodGet, "/products/"+product["id"].(string), "bob", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "another user's product must look absent")
}

func TestListProductsPagination(t *testing.T) {
	r := newTestRouter(t)
	category := createCategory(t, r, "alice", "Beverages")
	for i := 0; i < 3; i++ {
		createProduct(t, r, "alice", category["id"].(string), fmt.Sprintf("Drink %d", i), 1)
	}

	w := do(t, r, http.MethodGet, "/products?page=2&page_size=2", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get("X-Total-Count"))
	var products []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
	assert.Len(t, products, 1)
}

func TestDeleteMovementRecomputesStock(t *testing.T) {
	r := newTestRouter(t)
	category := createCategory(t, r, "alice", "Beverages")
	product := createProduct(t, r, "alice", category["id"].(string), "Cola", 5)
	productID := product["id"].(string)

	w := do(t, r, http.MethodPost, "/inventory-transactions/add-stock", "alice", map[string]any{
		"product_id": productID,
		"quantity":   7,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var movement map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &movement))

	w = do(t, r, http.MethodDelete, "/inventory-transactions/"+movement["id"].(string), "alice", nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = do(t, r, http.MethodGet, "/products/"+productID, "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, float64(5), view["stock_quantity"])
}
