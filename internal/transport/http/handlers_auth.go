package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"coldchain/internal/admin"
	"coldchain/internal/platform/middleware"
	"coldchain/internal/transport/http/shared"
	id "coldchain/pkg/domain"
	dErrors "coldchain/pkg/domain-errors"
	audit "coldchain/pkg/platform/audit"
	"coldchain/pkg/requestcontext"
)

const defaultTokenTTL = time.Hour

// TokenIssuer mints access tokens for registered identities.
type TokenIssuer interface {
	GenerateAccessToken(identity id.Identity, expiresIn time.Duration) (string, error)
}

// DirectoryReader is the registration check used before minting a token.
type DirectoryReader interface {
	IsRegistered(ctx context.Context, identity id.Identity) (bool, error)
}

// AuditPublisher emits security events (capability rotation).
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// AuthHandler exposes the administrative auth surface: token issuance for
// registered identities and admin capability rotation. Both sit behind the
// admin capability; knowing the current secret is what authorizes minting
// the next one.
type AuthHandler struct {
	logger         *slog.Logger
	issuer         TokenIssuer
	directory      DirectoryReader
	capability     *admin.Capability
	auditPublisher AuditPublisher
}

func NewAuthHandler(issuer TokenIssuer, directory DirectoryReader, capability *admin.Capability,
	auditPublisher AuditPublisher, logger *slog.Logger) *AuthHandler {

	return &AuthHandler{
		logger:         logger,
		issuer:         issuer,
		directory:      directory,
		capability:     capability,
		auditPublisher: auditPublisher,
	}
}

// Register registers the auth routes with the chi router.
func (h *AuthHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(h.capability, h.logger))
		r.Post("/auth/token", h.handleIssueToken)
		r.Post("/admin/secret/rotate", h.handleRotateSecret)
	})
}

type tokenRequest struct {
	Identity string `json:"identity"`
	// ExpiresIn is seconds; zero means the default TTL.
	ExpiresIn int `json:"expires_in"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (h *AuthHandler) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	identity, err := id.ParseIdentity(req.Identity)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, err.Error()))
		return
	}

	registered, err := h.directory.IsRegistered(ctx, identity)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if !registered {
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "identity is not registered"))
		return
	}

	ttl := defaultTokenTTL
	if req.ExpiresIn > 0 {
		ttl = time.Duration(req.ExpiresIn) * time.Second
	}
	token, err := h.issuer.GenerateAccessToken(identity, ttl)
	if err != nil {
		h.logger.ErrorContext(ctx, "token issuance failed", "identity", identity, "error", err)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(ttl.Seconds()),
	})
}

type rotateResponse struct {
	// Secret is returned exactly once; the previous secret stops working the
	// moment this response is written.
	Secret string `json:"secret"`
}

func (h *AuthHandler) handleRotateSecret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	secret, err := h.capability.Rotate()
	if err != nil {
		h.logger.ErrorContext(ctx, "capability rotation failed", "error", err)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to rotate admin secret"))
		return
	}

	h.logger.InfoContext(ctx, "admin capability rotated",
		"request_id", requestcontext.RequestID(ctx))
	if h.auditPublisher != nil {
		event := audit.Event{
			Category:  audit.EventAdminSecretRotated.Category(),
			Action:    string(audit.EventAdminSecretRotated),
			Timestamp: requestcontext.Now(ctx),
			RequestID: requestcontext.RequestID(ctx),
		}
		if err := h.auditPublisher.Emit(ctx, event); err != nil {
			h.logger.ErrorContext(ctx, "failed to emit rotation event", "error", err)
		}
	}
	shared.WriteJSON(w, http.StatusOK, rotateResponse{Secret: secret})
}
