package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/eugenenazirov/signcfg/internal/artifact"
	"github.com/eugenenazirov/signcfg/internal/signing"
	"github.com/eugenenazirov/signcfg/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// Refresher re-resolves the signing configuration and records the outcome in storage.
type Refresher interface {
	Refresh() (storage.Snapshot, error)
}

// Handler wires storage and the resolver into HTTP handlers.
type Handler struct {
	storage      storage.Storage
	refresher    Refresher
	outputPrefix string

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithOutputPrefix sets the product name used for derived output names.
func WithOutputPrefix(prefix string) HandlerOption {
	return func(h *Handler) {
		if prefix != "" {
			h.outputPrefix = prefix
		}
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(store storage.Storage, refresher Refresher, opts ...HandlerOption) *Handler {
	h := &Handler{
		storage:      store,
		refresher:    refresher,
		outputPrefix: artifact.DefaultPrefix,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetSigning(w http.ResponseWriter, _ *http.Request) {
	snapshot, err := h.storage.GetSnapshot()
	if err != nil {
		if errors.Is(err, storage.ErrNotResolved) {
			writeError(w, http.StatusServiceUnavailable, "Not resolved", err.Error(), "POST /api/signing/refresh to resolve")
			return
		}
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSigningResponse(snapshot))
}

func (h *Handler) handleRefreshSigning(w http.ResponseWriter, _ *http.Request) {
	if h.refresher == nil {
		writeError(w, http.StatusNotImplemented, "Refresh unavailable", "no resolver configured")
		return
	}

	snapshot, err := h.refresher.Refresh()
	if err != nil {
		var missingErr *signing.MissingError
		switch {
		case errors.As(err, &missingErr):
			writeError(w, http.StatusUnprocessableEntity, "Signing configuration missing", err.Error(),
				"Provide the "+missingErr.Item+" secret to the build environment")
		case errors.Is(err, signing.ErrInvalidKeystore), errors.Is(err, signing.ErrInvalidProperties):
			writeError(w, http.StatusUnprocessableEntity, "Invalid signing configuration", err.Error())
		default:
			writeInternalError(w, err)
		}
		return
	}

	resp := newSigningResponse(snapshot)
	resp.Message = "Signing configuration resolved"
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleOutputName(w http.ResponseWriter, r *http.Request) {
	var req outputNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	req.FileName = strings.TrimSpace(req.FileName)
	if req.FileName == "" {
		writeError(w, http.StatusBadRequest, "Invalid request", "fileName must not be empty")
		return
	}

	abi, err := artifact.ABI(req.FileName)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "No architecture", err.Error(),
			"Expected a per-architecture name such as app-arm64-v8a-release.apk")
		return
	}
	name, err := artifact.OutputName(req.FileName, h.outputPrefix)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, outputNameResponse{
		FileName:   req.FileName,
		ABI:        abi,
		OutputName: name,
	})
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type outputNameRequest struct {
	FileName string `json:"fileName"`
}

type outputNameResponse struct {
	FileName   string `json:"fileName"`
	ABI        string `json:"abi"`
	OutputName string `json:"outputName"`
}

type signingResponse struct {
	signing.Summary
	ResolvedAt time.Time `json:"resolvedAt"`
	Error      string    `json:"error,omitempty"`
	Message    string    `json:"message,omitempty"`
}

func newSigningResponse(s storage.Snapshot) signingResponse {
	return signingResponse{
		Summary:    s.Summary,
		ResolvedAt: s.ResolvedAt,
		Error:      s.Error,
	}
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
