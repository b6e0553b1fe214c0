package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sensornet/registry/internal/models"
	"github.com/sensornet/registry/internal/service"
)

type ServiceAPI interface {
	Create(ctx context.Context, id, location, category string) error
	Get(ctx context.Context, id string) (models.Sensor, error)
	UpdateReading(ctx context.Context, id, reading string) error
	CreateMetered(ctx context.Context, caller, id, location, category string, payment uint64) error
	Fees(ctx context.Context) (models.Fees, error)
	SetCreationFee(ctx context.Context, caller string, fee uint64) error
	SetTransmissionFee(ctx context.Context, caller string, fee uint64) error
	WithdrawPooledBalance(ctx context.Context, caller, destination string) error
	RecordTransmission(ctx context.Context, id string, payment uint64) error
	WithdrawRecordFees(ctx context.Context, id, destination string) error
}

type Handler struct {
	svc    ServiceAPI
	logger *slog.Logger
}

func NewHandler(svc ServiceAPI, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) CreateSensor(w http.ResponseWriter, r *http.Request) {
	var req createSensorRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.Create(r.Context(), req.ID, req.Location, req.Category); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) GetSensor(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sensor, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sensorResponse{
		ID:        sensor.ID,
		Location:  sensor.Location,
		Category:  sensor.Category,
		Reading:   sensor.Reading,
		CreatedAt: sensor.CreatedAt,
	})
}

func (h *Handler) UpdateReading(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req updateReadingRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.UpdateReading(r.Context(), id, req.Reading); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateMetered(w http.ResponseWriter, r *http.Request) {
	var req createMeteredRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.CreateMetered(r.Context(), req.Caller, req.ID, req.Location, req.Category, req.Payment); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) GetFees(w http.ResponseWriter, r *http.Request) {
	fees, err := h.svc.Fees(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feesResponse{
		CreationFee:     fees.Creation,
		TransmissionFee: fees.Transmission,
	})
}

func (h *Handler) SetCreationFee(w http.ResponseWriter, r *http.Request) {
	var req setFeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.SetCreationFee(r.Context(), req.Caller, req.Fee); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetTransmissionFee(w http.ResponseWriter, r *http.Request) {
	var req setFeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.SetTransmissionFee(r.Context(), req.Caller, req.Fee); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) WithdrawPool(w http.ResponseWriter, r *http.Request) {
	var req poolWithdrawRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.WithdrawPooledBalance(r.Context(), req.Caller, req.Destination); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RecordTransmission(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req transmissionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.RecordTransmission(r.Context(), id, req.Payment); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) WithdrawRecordFees(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req recordWithdrawRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.WithdrawRecordFees(r.Context(), id, req.Destination); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (h *Handler) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyID),
		errors.Is(err, service.ErrEmptyCaller),
		errors.Is(err, service.ErrEmptyDestination):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})

	case errors.Is(err, service.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})

	case errors.Is(err, service.ErrAlreadyExists),
		errors.Is(err, service.ErrNoFunds):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})

	case errors.Is(err, service.ErrInsufficientPayment):
		writeJSON(w, http.StatusPaymentRequired, errorResponse{Error: err.Error()})

	case errors.Is(err, service.ErrUnauthorized):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})

	default:
		h.logger.Error("internal error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
