package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	accountModel "tally/internal/account/models"
	"tally/internal/account/service"
	"tally/internal/platform/metrics"
	"tally/internal/platform/middleware"
	"tally/internal/transport/http/shared"

	dErrors "tally/pkg/domain-errors"
)

// Service defines the interface for account operations.
type Service interface {
	Register(ctx context.Context, in service.RegisterInput) (*accountModel.User, error)
	Login(ctx context.Context, email, password string) (string, *accountModel.User, error)
	GetProfile(ctx context.Context, userID string) (*accountModel.User, error)
	UpdateProfile(ctx context.Context, userID, firstName, lastName, email string) (*accountModel.User, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	DeleteAccount(ctx context.Context, userID string) error
}

// Handler handles registration, login and profile endpoints.
type Handler struct {
	logger       *slog.Logger
	accounts     Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new account Handler.
func New(accounts Service, logger *slog.Logger, metrics *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		accounts:     accounts,
		metrics:      metrics,
		jwtValidator: jwtValidator,
	}
}

// Register registers the account routes with the chi router. Signup and login
// are the only anonymous endpoints in the API.
func (h *Handler) Register(r chi.Router) {
	auth := h.baseRouter()
	auth.Post("/login", h.handleLogin)
	r.Mount("/auth", auth)

	users := h.baseRouter()
	users.Post("/", h.handleRegister)
	users.Group(func(private chi.Router) {
		private.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		private.Get("/me", h.handleGetProfile)
		private.Put("/me", h.handleUpdateProfile)
		private.Post("/me/change-password", h.handleChangePassword)
		private.Delete("/me", h.handleDeleteAccount)
	})
	r.Mount("/users", users)
}

func (h *Handler) baseRouter() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.LatencyMiddleware(h.metrics))
	return router
}

type registerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.accounts.Register(ctx, service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to register account")
		return
	}
	shared.WriteJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string             `json:"access_token"`
	TokenType   string             `json:"token_type"`
	User        *accountModel.User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	token, user, err := h.accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.writeServiceError(ctx, w, err, "login failed")
		return
	}
	shared.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		User:        user,
	})
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userID(ctx, w)
	if !ok {
		return
	}

	user, err := h.accounts.GetProfile(ctx, userID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to load profile")
		return
	}
	shared.WriteJSON(w, http.StatusOK, user)
}

type updateProfileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userID(ctx, w)
	if !ok {
		return
	}

	var req updateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.accounts.UpdateProfile(ctx, userID, req.FirstName, req.LastName, req.Email)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to update profile")
		return
	}
	shared.WriteJSON(w, http.StatusOK, user)
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userID(ctx, w)
	if !ok {
		return
	}

	var req changePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.accounts.ChangePassword(ctx, userID, req.OldPassword, req.NewPassword); err != nil {
		h.writeServiceError(ctx, w, err, "failed to change password")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.userID(ctx, w)
	if !ok {
		return
	}

	if err := h.accounts.DeleteAccount(ctx, userID); err != nil {
		h.writeServiceError(ctx, w, err, "failed to delete account")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userID(ctx context.Context, w http.ResponseWriter) (string, bool) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		h.logger.ErrorContext(ctx, "userID missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return "", false
	}
	return userID, true
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
