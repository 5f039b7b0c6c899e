package overview

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tally/internal/platform/metrics"
	"tally/internal/platform/middleware"
	"tally/internal/transport/http/shared"

	dErrors "tally/pkg/domain-errors"
)

// Handler serves the combined dashboard endpoint.
type Handler struct {
	logger       *slog.Logger
	overview     *Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

func NewHandler(overview *Service, logger *slog.Logger, metrics *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		overview:     overview,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the overview route with the chi router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.LatencyMiddleware(h.metrics))
	router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	router.Get("/", h.handleGetOverview)

	r.Mount("/overview", router)
}

func (h *Handler) handleGetOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ownerID := middleware.GetUserID(ctx)
	if ownerID == "" {
		h.logger.ErrorContext(ctx, "userID missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	snapshot, err := h.overview.Snapshot(ctx, ownerID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to assemble overview",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, snapshot)
}
