package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"coldchain/internal/envlog/models"
	"coldchain/internal/platform/middleware"
	"coldchain/internal/transport/http/shared"
	id "coldchain/pkg/domain"
	dErrors "coldchain/pkg/domain-errors"
)

// Service defines the environmental-log operations the handler exposes.
type Service interface {
	Log(ctx context.Context, productID id.ProductID, temperature int, humidity *int, location string) (models.Reading, error)
	List(ctx context.Context, productID id.ProductID) ([]models.Reading, error)
}

// Handler handles environmental-log endpoints.
type Handler struct {
	logger    *slog.Logger
	readings  Service
	validator middleware.JWTValidator
}

func New(readings Service, validator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:    logger,
		readings:  readings,
		validator: validator,
	}
}

// Register registers the environmental-log routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/products/{productID}/readings", func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Post("/", h.handleLog)
		r.Get("/", h.handleList)
	})
}

type logRequest struct {
	// Temperature is tenths of a degree Celsius.
	Temperature int `json:"temperature"`
	// Humidity is relative humidity in percent, when the sensor reports it.
	Humidity *int   `json:"humidity"`
	Location string `json:"location"`
}

func (h *Handler) handleLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := id.ProductID(chi.URLParam(r, "productID"))

	var req logRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	reading, err := h.readings.Log(ctx, productID, req.Temperature, req.Humidity, req.Location)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, reading)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := id.ProductID(chi.URLParam(r, "productID"))

	readings, err := h.readings.List(ctx, productID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, readings)
}
