package httpserver

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/and161185/makerhub/internal/errs"
)

// errorBody is the single error shape of the API.
type errorBody struct {
	Detail    string `json:"detail"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

type errorSpec struct {
	sentinel error
	status   int
	code     string
	detail   string // fixed detail; empty means err.Error()
}

var errorSpecs = []errorSpec{
	{errs.ErrValidation, http.StatusBadRequest, "validation_error", ""},
	{errs.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "Could not validate credentials"},
	{errs.ErrForbidden, http.StatusForbidden, "forbidden", "Not enough permissions"},
	{errs.ErrNotFound, http.StatusNotFound, "not_found", ""},
	{errs.ErrAlreadyExists, http.StatusConflict, "already_exists", ""},
	{errs.ErrVersionConflict, http.StatusConflict, "version_conflict", ""},
	{errs.ErrTooLarge, http.StatusRequestEntityTooLarge, "too_large", ""},
	{errs.ErrRateLimited, http.StatusTooManyRequests, "rate_limited", "Too many failed login attempts"},
}

// detailError replaces the client-facing detail of the error it wraps.
type detailError struct {
	err    error
	detail string
}

func (e *detailError) Error() string { return e.detail + ": " + e.err.Error() }
func (e *detailError) Unwrap() error { return e.err }

func withDetail(err error, detail string) error { return &detailError{err: err, detail: detail} }

// statusOf maps err onto an HTTP status, API code and client-safe detail.
func statusOf(err error) (int, string, string) {
	for _, s := range errorSpecs {
		if errors.Is(err, s.sentinel) {
			detail := s.detail
			var de *detailError
			switch {
			case errors.As(err, &de):
				detail = de.detail
			case detail == "":
				detail = err.Error()
			}
			return s.status, s.code, detail
		}
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge, "too_large", "request body too large"
	}
	return http.StatusInternalServerError, "internal", "internal server error"
}

func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status, code, detail := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("request_id", RequestIDFromCtx(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	switch status {
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", "Bearer")
	case http.StatusTooManyRequests:
		var rl *errs.RateLimitError
		if errors.As(err, &rl) {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
		}
	}
	reqID := RequestIDFromCtx(r.Context())
	if reqID == "" {
		reqID = w.Header().Get(headerRequestID)
	}
	writeJSON(w, status, errorBody{Detail: detail, Code: code, RequestID: reqID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
