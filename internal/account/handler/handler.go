// Package handler exposes the account service over HTTP. Handlers decode,
// delegate, and encode; every rule lives in the service layer.
package handler

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"corebank/internal/account/models"
	"corebank/internal/account/service"
	"corebank/internal/platform/metrics"
	"corebank/internal/platform/middleware"
	dErrors "corebank/pkg/domain-errors"
	"corebank/pkg/platform/httputil"
)

// Service is the operation surface the handlers need.
type Service interface {
	Signup(ctx context.Context, req models.SignupRequest, caller service.Caller) (*models.SessionResult, error)
	Login(ctx context.Context, req models.LoginRequest, caller service.Caller) (*models.SessionResult, error)
	LoginPin(ctx context.Context, req models.PinLoginRequest, caller service.Caller) (*models.SessionResult, error)
	ChangePin(ctx context.Context, accountID string, req models.ChangePinRequest, caller service.Caller) error
	VerifyPin(ctx context.Context, accountID string, req models.VerifyPinRequest) (bool, error)
	GetAccount(ctx context.Context, accountID string) (*models.PublicProfile, error)
	ResolvePayee(ctx context.Context, req models.ResolvePayeeRequest) (*models.Payee, error)
	AppendTransaction(ctx context.Context, accountID string, req models.AppendTransactionRequest) (*models.Transaction, error)
	ListTransactions(ctx context.Context, accountID string, limit int) ([]models.Transaction, error)
	Settle(ctx context.Context, accountID, transactionID string, req models.SettleRequest) error
}

// Handler wires account endpoints to the account service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an account handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// NewRouter assembles the full middleware chain and routes. validator guards
// the authenticated subtree.
func NewRouter(h *Handler, validator middleware.TokenValidator, logger *slog.Logger, m *metrics.Metrics) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.LatencyMiddleware(m))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Post("/auth/signup", h.HandleSignup)
		r.Post("/auth/login", h.HandleLogin)
		r.Post("/auth/login-pin", h.HandleLoginPin)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, logger))
		r.Get("/auth/me/{accountID}", h.HandleGetMe)
		r.Group(func(r chi.Router) {
			r.Use(middleware.ContentTypeJSON)
			r.Post("/auth/change-pin", h.HandleChangePin)
			r.Post("/auth/verify-pin", h.HandleVerifyPin)
			r.Post("/auth/verify-upi", h.HandleResolvePayee)
			r.Post("/accounts/{accountID}/transactions", h.HandleAppendTransaction)
			r.Post("/transactions/{transactionID}/settle", h.HandleSettle)
		})
		r.Get("/accounts/{accountID}/transactions", h.HandleListTransactions)
	})

	return r
}

// HandleSignup handles POST /auth/signup.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[models.SignupRequest](w, r)
	if !ok {
		return
	}

	result, err := h.service.Signup(r.Context(), req, callerOf(r))
	if err != nil {
		h.logger.WarnContext(r.Context(), "signup rejected",
			"request_id", middleware.GetRequestID(r.Context()), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

// HandleLogin handles POST /auth/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[models.LoginRequest](w, r)
	if !ok {
		return
	}

	result, err := h.service.Login(r.Context(), req, callerOf(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleLoginPin handles POST /auth/login-pin.
func (h *Handler) HandleLoginPin(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[models.PinLoginRequest](w, r)
	if !ok {
		return
	}

	result, err := h.service.LoginPin(r.Context(), req, callerOf(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleChangePin handles POST /auth/change-pin for the authenticated account.
func (h *Handler) HandleChangePin(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[models.ChangePinRequest](w, r)
	if !ok {
		return
	}

	accountID := middleware.GetAccountID(r.Context())
	if err := h.service.ChangePin(r.Context(), accountID, req, callerOf(r)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "pin updated"})
}

// HandleVerifyPin handles POST /auth/verify-pin.
func (h *Handler) HandleVerifyPin(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[models.VerifyPinRequest](w, r)
	if !ok {
		return
	}

	valid, err := h.service.VerifyPin(r.Context(), middleware.GetAccountID(r.Context()), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// HandleResolvePayee handles POST /auth/verify-upi.
func (h *Handler) HandleResolvePayee(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[models.ResolvePayeeRequest](w, r)
	if !ok {
		return
	}

	payee, err := h.service.ResolvePayee(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, payee)
}

// HandleGetMe handles GET /auth/me/{accountID}. The path account must match
// the token's account; there is no cross-account read.
func (h *Handler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if accountID != middleware.GetAccountID(r.Context()) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "cannot read another account"))
		return
	}

	profile, err := h.service.GetAccount(r.Context(), accountID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// HandleAppendTransaction handles POST /accounts/{accountID}/transactions.
func (h *Handler) HandleAppendTransaction(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if accountID != middleware.GetAccountID(r.Context()) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "cannot write another account's ledger"))
		return
	}

	req, ok := httputil.Decode[models.AppendTransactionRequest](w, r)
	if !ok {
		return
	}

	tx, err := h.service.AppendTransaction(r.Context(), accountID, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tx)
}

// HandleListTransactions handles GET /accounts/{accountID}/transactions.
func (h *Handler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if accountID != middleware.GetAccountID(r.Context()) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "cannot read another account's ledger"))
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	transactions, err := h.service.ListTransactions(r.Context(), accountID, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"transactions": transactions})
}

// HandleSettle handles POST /transactions/{transactionID}/settle. The service
// resolves the transaction's owning account and rejects non-owners.
func (h *Handler) HandleSettle(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[models.SettleRequest](w, r)
	if !ok {
		return
	}

	transactionID := chi.URLParam(r, "transactionID")
	if err := h.service.Settle(r.Context(), middleware.GetAccountID(r.Context()), transactionID, req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "settled"})
}

// callerOf extracts the client IP and user agent for lockout keys and audit
// events. The first X-Forwarded-For hop wins when a proxy sets it.
func callerOf(r *http.Request) service.Caller {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		ip, _, _ = strings.Cut(ip, ",")
		ip = strings.TrimSpace(ip)
	} else {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}
	return service.Caller{IP: ip, UserAgent: r.UserAgent()}
}
