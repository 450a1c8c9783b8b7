package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crimson-sun/attrition/internal/engine"
	"github.com/crimson-sun/attrition/internal/logging"
	"github.com/crimson-sun/attrition/internal/model"
)

var errMalformedBody = errors.New("invalid request body")

//go:generate mockgen -source=handler.go -destination=mocks/mock_service.go -package=mocks Service

// Service is the prediction backend behind the handlers.
type Service interface {
	Predict(ctx context.Context, rec model.Record) (model.Result, error)
	Features(ctx context.Context) (model.Schema, error)
	Ready() bool
}

// Handler wires the prediction endpoints to a Service.
type Handler struct {
	service      Service
	logger       *slog.Logger
	maxBodyBytes int64
}

// NewHandler constructs a Handler. maxBodyBytes <= 0 disables the body limit.
func NewHandler(service Service, logger *slog.Logger, maxBodyBytes int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:      service,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// Register mounts the endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Get("/readyz", h.handleReady)
	r.Route("/api", func(r chi.Router) {
		r.Post("/predict", h.handlePredict)
		r.Get("/features", h.handleFeatures)
	})
}

type predictResponse struct {
	Success bool `json:"success"`
	model.Result
}

type featuresResponse struct {
	Success    bool                `json:"success"`
	Features   []string            `json:"features"`
	Categories map[string][]string `json:"categories"`
	Version    string              `json:"version,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// handlePredict handles POST /api/predict.
func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rec, err := h.decodeRecord(w, r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	res, err := h.service.Predict(ctx, rec)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, predictResponse{Success: true, Result: res})
}

// handleFeatures handles GET /api/features.
func (h *Handler) handleFeatures(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	schema, err := h.service.Features(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, featuresResponse{
		Success:    true,
		Features:   schema.Features,
		Categories: schema.Categories,
		Version:    schema.Version,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (h *Handler) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !h.service.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ready"})
}

// decodeRecord reads exactly one JSON object from the body. Numbers are
// kept as json.Number so the encoder sees the original text.
func (h *Handler) decodeRecord(w http.ResponseWriter, r *http.Request) (model.Record, error) {
	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var rec model.Record
	if err := dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty body", errMalformedBody)
		}
		return nil, fmt.Errorf("%w: %w", errMalformedBody, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", errMalformedBody)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after JSON object")
		}
		return nil, fmt.Errorf("%w: %w", errMalformedBody, err)
	}
	return rec, nil
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusFor(err)
	logger := logging.With(ctx, h.logger)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Success: false, Error: err.Error()})
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	switch engine.KindOf(err) {
	case engine.KindInvalidFeature:
		return http.StatusBadRequest
	case engine.KindUnavailable, engine.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
