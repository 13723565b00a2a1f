package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"coldchain/internal/admin"
	"coldchain/internal/platform/middleware"
	"coldchain/internal/product/models"
	"coldchain/internal/product/service"
	"coldchain/internal/transport/http/shared"
	id "coldchain/pkg/domain"
	dErrors "coldchain/pkg/domain-errors"
	"coldchain/pkg/requestcontext"
)

// Service defines the product lifecycle operations the handler exposes.
type Service interface {
	Create(ctx context.Context, params service.CreateParams) (*models.Product, error)
	ListForSale(ctx context.Context, productID id.ProductID, price int64) (*models.Product, error)
	Pay(ctx context.Context, productID id.ProductID, amount int64) (*models.Product, error)
	MarkShipped(ctx context.Context, productID id.ProductID) (*models.Product, error)
	ConfirmReceived(ctx context.Context, productID id.ProductID) (*models.Product, error)
	RefundBuyer(ctx context.Context, productID id.ProductID, buyer id.Identity) (int64, error)
	Recall(ctx context.Context, productID id.ProductID, reason string) (*models.Product, error)
	Get(ctx context.Context, productID id.ProductID) (*models.Product, error)
	Transitions(ctx context.Context, productID id.ProductID) ([]models.Transition, error)
	EscrowBalance(ctx context.Context, productID id.ProductID) (int64, error)
}

// Handler handles product lifecycle endpoints. Lifecycle mutations require
// an authenticated caller; recall and refund are administrative.
type Handler struct {
	logger     *slog.Logger
	products   Service
	capability *admin.Capability
	validator  middleware.JWTValidator
}

func New(products Service, capability *admin.Capability, validator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:     logger,
		products:   products,
		capability: capability,
		validator:  validator,
	}
}

// Register registers the product routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(h.validator, h.logger))
			r.Post("/", h.handleCreate)
			r.Post("/{productID}/list", h.handleList)
			r.Post("/{productID}/pay", h.handlePay)
			r.Post("/{productID}/ship", h.handleShip)
			r.Post("/{productID}/confirm", h.handleConfirm)
			r.Get("/{productID}", h.handleGet)
			r.Get("/{productID}/transitions", h.handleTransitions)
			r.Get("/{productID}/escrow", h.handleEscrowBalance)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.capability, h.logger))
			r.Post("/{productID}/recall", h.handleRecall)
			r.Post("/{productID}/refund", h.handleRefund)
		})
	})
}

type createRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// ExpiresAt is RFC 3339.
	ExpiresAt string `json:"expires_at"`
	Price     int64  `json:"price"`
	// Temperatures are tenths of a degree Celsius.
	MinTemp       int    `json:"min_temp"`
	MaxTemp       int    `json:"max_temp"`
	Batch         string `json:"batch"`
	IntegrityHash string `json:"integrity_hash"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	productID, err := id.ParseProductID(req.ID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, err.Error()))
		return
	}
	expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "expires_at must be RFC 3339"))
		return
	}

	p, err := h.products.Create(ctx, service.CreateParams{
		ID:            productID,
		Name:          req.Name,
		Description:   req.Description,
		ExpiresAt:     expiresAt,
		Price:         req.Price,
		MinTemp:       req.MinTemp,
		MaxTemp:       req.MaxTemp,
		Batch:         req.Batch,
		IntegrityHash: req.IntegrityHash,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "product creation rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, p)
}

type listRequest struct {
	Price int64 `json:"price"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := id.ProductID(chi.URLParam(r, "productID"))

	var req listRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	p, err := h.products.ListForSale(ctx, productID, req.Price)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, p)
}

type payRequest struct {
	Amount int64 `json:"amount"`
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := id.ProductID(chi.URLParam(r, "productID"))

	var req payRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	p, err := h.products.Pay(ctx, productID, req.Amount)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleShip(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := id.ProductID(chi.URLParam(r, "productID"))

	p, err := h.products.MarkShipped(ctx, productID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := id.ProductID(chi.URLParam(r, "productID"))

	p, err := h.products.ConfirmReceived(ctx, productID)
	if err != nil {
		h.logger.WarnContext(ctx, "receipt confirmation failed",
			"request_id", requestcontext.RequestID(ctx),
			"product_id", productID,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, p)
}

type recallRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleRecall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := id.ProductID(chi.URLParam(r, "productID"))

	var req recallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	p, err := h.products.Recall(ctx, productID, req.Reason)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, p)
}

type refundRequest struct {
	Buyer string `json:"buyer"`
}

type refundResponse struct {
	ProductID id.ProductID `json:"product_id"`
	Buyer     id.Identity  `json:"buyer"`
	Refunded  int64        `json:"refunded"`
}

func (h *Handler) handleRefund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := id.ProductID(chi.URLParam(r, "productID"))

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	buyer, err := id.ParseIdentity(req.Buyer)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, err.Error()))
		return
	}
	refunded, err := h.products.RefundBuyer(ctx, productID, buyer)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, refundResponse{ProductID: productID, Buyer: buyer, Refunded: refunded})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := id.ProductID(chi.URLParam(r, "productID"))

	p, err := h.products.Get(ctx, productID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) handleTransitions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := id.ProductID(chi.URLParam(r, "productID"))

	transitions, err := h.products.Transitions(ctx, productID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, transitions)
}

type escrowResponse struct {
	ProductID id.ProductID `json:"product_id"`
	Balance   int64        `json:"balance"`
}

func (h *Handler) handleEscrowBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := id.ProductID(chi.URLParam(r, "productID"))

	balance, err := h.products.EscrowBalance(ctx, productID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, escrowResponse{ProductID: productID, Balance: balance})
}
