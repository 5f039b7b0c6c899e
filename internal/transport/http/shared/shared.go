package shared

import (
	"encoding/json"
	"net/http"
	"strconv"

	dErrors "tally/pkg/domain-errors"
)

// WriteJSON encodes the payload with the given status. Encoding failures are
// silent; the status line has already been committed.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// WriteError centralizes domain error translation to HTTP responses. Uncoded
// internals surface as a generic 500 so wrapped causes never leak.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	WriteJSON(w, dErrors.ToHTTPStatus(code), map[string]string{
		"error":   string(code),
		"message": dErrors.Message(err),
	})
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page holds the parsed pagination window.
type Page struct {
	Limit  int
	Offset int
}

// ParsePage reads page and page_size query parameters. Pages are 1-based;
// anything malformed or out of range falls back to the defaults.
func ParsePage(r *http.Request) Page {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			page = v
		}
	}
	size := defaultPageSize
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= maxPageSize {
			size = v
		}
	}
	return Page{Limit: size, Offset: (page - 1) * size}
}

// SetTotalCount exposes the unpaged result size to clients.
func SetTotalCount(w http.ResponseWriter, total int) {
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
}
