package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hiroki-koketsu/go-task-tracker/internal/model"
	"github.com/hiroki-koketsu/go-task-tracker/internal/service"
	"github.com/hiroki-koketsu/go-task-tracker/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// AccountManager is the account behaviour the handler needs.
type AccountManager interface {
	Register(ctx context.Context, username, email, password string) (*service.AuthResult, error)
	Authenticate(ctx context.Context, email, password string) (*service.AuthResult, error)
	Profile(ctx context.Context, username string) (*model.AccountSummary, error)
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileResponse is the body of GET /api/auth/me.
type ProfileResponse struct {
	User *model.AccountSummary `json:"user"`
}

// AuthHandler handles registration and login.
type AuthHandler struct {
	base
	accounts AccountManager
	tokens   TokenValidator
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accounts AccountManager, tokens TokenValidator, logger *slog.Logger, metrics *telemetry.Metrics) *AuthHandler {
	return &AuthHandler{
		base:     base{logger: logger, metrics: metrics},
		accounts: accounts,
		tokens:   tokens,
	}
}

// Routes returns the chi router with auth routes.
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.With(RequireToken(h.tokens)).Get("/me", h.Me)

	return r
}

// Register creates an account and returns a session token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	const route = "/api/auth/register"

	ctx, span := tracer.Start(ctx, "AuthHandler.Register")
	defer span.End()

	var req RegisterRequest
	if err := h.decode(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid request body", slog.Any("error", err))
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		h.recordMetrics(ctx, http.MethodPost, route, http.StatusBadRequest, start)
		return
	}

	res, err := h.accounts.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		status := h.fail(ctx, w, span, err, "Failed to register")
		h.recordMetrics(ctx, http.MethodPost, route, status, start)
		return
	}

	span.SetAttributes(attribute.String("account.id", res.User.ID))
	h.logger.InfoContext(ctx, "account registered", slog.String("username", res.User.Username))

	h.respondJSON(w, http.StatusCreated, res)
	h.recordMetrics(ctx, http.MethodPost, route, http.StatusCreated, start)
}

// Login authenticates by email and password and returns a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	const route = "/api/auth/login"

	ctx, span := tracer.Start(ctx, "AuthHandler.Login")
	defer span.End()

	var req LoginRequest
	if err := h.decode(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid request body", slog.Any("error", err))
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		h.recordMetrics(ctx, http.MethodPost, route, http.StatusBadRequest, start)
		return
	}

	res, err := h.accounts.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		status := h.fail(ctx, w, span, err, "Failed to log in")
		h.recordMetrics(ctx, http.MethodPost, route, status, start)
		return
	}

	h.logger.InfoContext(ctx, "account logged in", slog.String("username", res.User.Username))

	h.respondJSON(w, http.StatusOK, res)
	h.recordMetrics(ctx, http.MethodPost, route, http.StatusOK, start)
}

// Me returns the account that owns the bearer token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	const route = "/api/auth/me"

	ctx, span := tracer.Start(ctx, "AuthHandler.Me")
	defer span.End()

	claims, _ := ClaimsFromContext(ctx)
	user, err := h.accounts.Profile(ctx, claims.Username)
	if err != nil {
		status := h.fail(ctx, w, span, err, "Failed to load profile")
		h.recordMetrics(ctx, http.MethodGet, route, status, start)
		return
	}

	h.respondJSON(w, http.StatusOK, ProfileResponse{User: user})
	h.recordMetrics(ctx, http.MethodGet, route, http.StatusOK, start)
}

// Health returns a health check response.
func Health(w http.ResponseWriter, r *http.Request) {
	(&base{}).respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
