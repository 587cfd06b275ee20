package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/LTOFFICIALUK/PolyTrade-sub000/internal/domain"
)

const maxBodyBytes = 1 << 20

// errorResponse is the JSON body of every non-2xx reply.
type errorResponse struct {
	Error    string `json:"error"`
	Field    string `json:"field,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

// writeJSON marshals v as JSON and writes it with the given status. If
// marshaling fails, it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// StatusFor maps a domain error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUserRejected), errors.Is(err, domain.ErrSignerRejected):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAddressMismatch),
		errors.Is(err, domain.ErrWrongChain),
		errors.Is(err, domain.ErrLockHeld),
		errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrProtocolMismatch), errors.Is(err, domain.ErrTxReverted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrSignerUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrNetworkDegraded), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeDomainError renders err with the field or endpoint that failed.
// Unclassified errors are logged and hidden behind a generic message.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := StatusFor(err)
	resp := errorResponse{Error: err.Error()}

	var fe *domain.FieldError
	if errors.As(err, &fe) {
		resp.Field = fe.Field
	}
	var ee *domain.EndpointError
	if errors.As(err, &ee) {
		resp.Endpoint = ee.Endpoint
	}

	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "handler: unexpected error",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		resp = errorResponse{Error: "internal server error"}
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: request body: %v", domain.ErrInvalidParameters, err)
	}
	return nil
}

// parseListOpts extracts pagination from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = min(n, 500)
	}
	offset := 0
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n >= 0 {
		offset = n
	}
	return domain.ListOpts{Limit: limit, Offset: offset}
}
