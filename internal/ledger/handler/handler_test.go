package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/ledger/service"
	"tally/internal/ledger/store"
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

// do issues an authenticated JSON request against the router. The token maps
// to a stable owner id, so distinct tokens act as distinct users.
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

func createDebtor(t *testing.T, r chi.Router, token string) map[string]any {
	t.Helper()
	w := do(t, r, http.MethodPost, "/debtors", token, map[string]any{
		"full_name": "Ada Lovelace",
		"phone":     "+15550101",
		"email":     "ada@example.com",
		"street":    "12 Analytical Way",
		"city":      "London",
		"state":     "LN",
		"zip_code":  "10001",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var debtor map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &debtor))
	return debtor
}

func addDebt(t *testing.T, r chi.Router, token, debtorID string, amount string) map[string]any {
	t.Helper()
	w := do(t, r, http.MethodPost, "/debtors/"+url.PathEscape(debtorID)+"/debts", token, map[string]any{
		"total_amount": amount,
		"due_date":     time.Now().AddDate(0, 1, 0).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var debt map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &debt))
	return debt
}

func TestCreateDebtor(t *testing.T) {
	r := newTestRouter(t)
	debtor := createDebtor(t, r, "alice")

	assert.NotEmpty(t, debtor["id"])
	assert.Equal(t, "Ada Lovelace", debtor["full_name"])
	assert.Equal(t, "0", debtor["outstanding_debt"])
}

func TestRequiresAuthentication(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, http.MethodGet, "/debtors", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateDebtorInvalidBody(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/debtors", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer alice")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetDebtorNotFound(t *testing.T) {
	r := newTestRouter(t)
	w := do(t, r, http.MethodGet, "/debtors/no-such-id", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDebtorScopedToOwner(t *testing.T) {
	r := newTestRouter(t)
	debtor := createDebtor(t, r, "alice")

	w := do(t, r, http.MethodGet, "/debtors/"+url.PathEscape(debtor["id"].(string)), "bob", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "another user's debtor must look absent")
}

func TestDuplicateDebtorEmailConflicts(t *testing.T) {
	r := newTestRouter(t)
	createDebtor(t, r, "alice")

	w := do(t, r, http.MethodPost, "/debtors", "alice", map[string]any{
		"full_name": "Ada L.",
		"phone":     "+15550102",
		"email":     "ada@example.com",
		"street":    "1 Other St",
		"city":      "London",
		"state":     "LN",
		"zip_code":  "10002",
	})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestAddDebtAndPaymentFlow(t *testing.T) {
	r := newTestRouter(t)
	debtor := createDebtor(t, r, "alice")
	debtorID := debtor["id"].(string)
	debt := addDebt(t, r, "alice", debtorID, "250.00")
	debtID := debt["id"].(string)

	w := do(t, r, http.MethodPost, "/debts/"+debtID+"/payments", "alice", map[string]any{
		"amount":         "100.00",
		"payment_method": "Cash",
		"note":           "first installment",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, r, http.MethodGet, "/debts/"+debtID, "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "150", view["amount_owed"])
	assert.Equal(t, "Ada Lovelace", view["debtor_name"])
}

func TestOverpaymentRejected(t *testing.T) {
	r := newTestRouter(t)
	debtor := createDebtor(t, r, "alice")
	debt := addDebt(t, r, "alice", debtor["id"].(string), "50.00")

	w := do(t, r, http.MethodPost, "/debts/"+debt["id"].(string)+"/payments", "alice", map[string]any{
		"amount":         "50.01",
		"payment_method": "Card",
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "overpayment", resp["error"])
}

func TestListDebtorsPagination(t *testing.T) {
	r := newTestRouter(t)
	for i := 0; i < 3; i++ {
		w := do(t, r, http.MethodPost, "/debtors", "alice", map[string]any{
			"full_name": fmt.Sprintf("Debtor %d", i),
			"phone":     fmt.Sprintf("+1555010%d", i),
			"email":     fmt.Sprintf("debtor%d@example.com", i),
			"street":    "1 Main St",
			"city":      "Springfield",
			"state":     "IL",
			"zip_code":  "62704",
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := do(t, r, http.MethodGet, "/debtors?page=1&page_size=2", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get("X-Total-Count"))
	var debtors []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &debtors))
	assert.Len(t, debtors, 2)
}

func TestDeleteDebtorWithDebtsConflicts(t *testing.T) {
	r := newTestRouter(t)
	debtor := createDebtor(t, r, "alice")
	debtorID := debtor["id"].(string)
	addDebt(t, r, "alice", debtorID, "10.00")

	w := do(t, r, http.MethodDelete, "/debtors/"+url.PathEscape(debtorID), "alice", nil)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestExtendDueDateRejectsZeroDays(t *testing.T) {
	r := newTestRouter(t)
	debtor := createDebtor(t, r, "alice")
	debt := addDebt(t, r, "alice", debtor["id"].(string), "10.00")

	w := do(t, r, http.MethodPost, "/debts/"+debt["id"].(string)+"/extend", "alice", map[string]any{"days": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestDeletePaymentRestoresBalance(t *testing.T) {
	r := newTestRouter(t)
	debtor := createDebtor(t, r, "alice")
	debt := addDebt(t, r, "alice", debtor["id"].(string), "250.00")
	debtID := debt["id"].(string)

	w := do(t, r, http.MethodPost, "/debts/"+debtID+"/payments", "alice", map[string]any{
		"amount":         "100.00",
		"payment_method": "Bank Transfer",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var payment map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payment))

	w = do(t, r, http.MethodDelete, "/payments/"+payment["id"].(string), "alice", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, http.MethodGet, "/debts/"+debtID, "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "250", view["amount_owed"])
}
