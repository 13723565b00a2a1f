package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"coldchain/internal/admin"
	"coldchain/internal/directory/models"
	"coldchain/internal/platform/middleware"
	"coldchain/internal/transport/http/shared"
	id "coldchain/pkg/domain"
	dErrors "coldchain/pkg/domain-errors"
	"coldchain/pkg/requestcontext"
)

// Service defines the interface for directory operations.
type Service interface {
	Register(ctx context.Context, identity id.Identity, role id.Role, displayName string) (*models.Participant, error)
	Unregister(ctx context.Context, identity id.Identity) error
	Get(ctx context.Context, identity id.Identity) (*models.Participant, error)
}

// Handler handles role-directory endpoints. Mutations are administrative;
// reads only require an authenticated caller.
type Handler struct {
	logger     *slog.Logger
	directory  Service
	capability *admin.Capability
	validator  middleware.JWTValidator
}

func New(directory Service, capability *admin.Capability, validator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:     logger,
		directory:  directory,
		capability: capability,
		validator:  validator,
	}
}

// Register registers the directory routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/directory", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.capability, h.logger))
			r.Post("/", h.handleRegister)
			r.Delete("/{identity}", h.handleUnregister)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.validator, h.logger))
			r.Get("/{identity}", h.handleGet)
		})
	})
}

type registerRequest struct {
	Identity    string `json:"identity"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	identity, err := id.ParseIdentity(req.Identity)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, err.Error()))
		return
	}
	role, err := id.ParseRole(req.Role)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, err.Error()))
		return
	}

	p, err := h.directory.Register(ctx, identity, role, req.DisplayName)
	if err != nil {
		h.logger.WarnContext(ctx, "registration rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleUnregister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := id.Identity(chi.URLParam(r, "identity"))

	if err := h.directory.Unregister(ctx, identity); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := id.Identity(chi.URLParam(r, "identity"))

	p, err := h.directory.Get(ctx, identity)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, p)
}
