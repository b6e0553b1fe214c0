package web

import (
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewServer builds the router with all API routes and the middleware chain:
// request IDs, request metrics, access logging and panic recovery.
func NewServer(h *Handler) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/v1/sensors", h.CreateSensor).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/sensors/metered", h.CreateMetered).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/sensors/{id}", h.GetSensor).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/sensors/{id}/reading", h.UpdateReading).Methods(http.MethodPut)
	r.HandleFunc("/api/v1/sensors/{id}/transmissions", h.RecordTransmission).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/sensors/{id}/fees/withdraw", h.WithdrawRecordFees).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/fees", h.GetFees).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/fees/creation", h.SetCreationFee).Methods(http.MethodPut)
	r.HandleFunc("/api/v1/fees/transmission", h.SetTransmissionFee).Methods(http.MethodPut)
	r.HandleFunc("/api/v1/pool/withdraw", h.WithdrawPool).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	r.Use(requestIDMiddleware, metricsMiddleware)

	return handlers.RecoveryHandler()(handlers.LoggingHandler(os.Stdout, r))
}
