package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/crawlplan/internal/domain/dedupe"
	"github.com/okian/crawlplan/pkg/metrics"
)

// HTTP status code constants.
const (
	statusBadRequest      = 400
	statusNotFound        = 404
	statusTooManyRequests = 429
	statusInternalError   = 500
)

// IdempotencyHeader carries the client's retry key.
const IdempotencyHeader = "Idempotency-Key"

// ReplayedHeader marks a response served from the idempotency cache.
const ReplayedHeader = "Idempotent-Replayed"

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		durationMs := float64(time.Since(start).Milliseconds())
		statusCodeStr := strconv.Itoa(wrapped.statusCode)

		metrics.RecordHTTPRequest(endpoint, r.Method, statusCodeStr)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, statusCodeStr, durationMs)

		if wrapped.statusCode >= statusBadRequest {
			metrics.RecordErrorByEndpoint(endpoint, r.Method, getErrorType(wrapped.statusCode))
		}
	}
}

// idempotencyStore is the part of Dependencies the replay cache needs.
type idempotencyStore interface {
	SeenAndRecord(ctx context.Context, key, fingerprint string) (dedupe.Entry, bool)
	Complete(ctx context.Context, key string, outcome dedupe.Outcome)
	Unrecord(ctx context.Context, key string)
}

// Idempotent answers a retried request carrying the same Idempotency-Key
// with the first response instead of running the command again. Keys are
// scoped to the session and the operation. Responses that say nothing
// happened (429, 5xx) release the key so the client can retry. A key reused
// with a different body is rejected rather than replayed.
func Idempotent(store idempotencyStore, op string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
		if key == "" {
			next(w, r)
			return
		}
		ctx := r.Context()
		scoped := r.PathValue("id") + ":" + op + ":" + key

		fingerprint, err := fingerprintBody(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}

		entry, seen := store.SeenAndRecord(ctx, scoped, fingerprint)
		if seen {
			if entry.Fingerprint != fingerprint {
				writeError(w, http.StatusUnprocessableEntity, "idempotency_mismatch", NewKind(op, ErrIdempotencyMismatch))
				return
			}
			if entry.Pending {
				writeError(w, http.StatusConflict, "idempotency_conflict", NewKind(op, ErrIdempotencyConflict))
				return
			}
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Header().Set(ReplayedHeader, "true")
			w.WriteHeader(entry.Outcome.Status)
			_, _ = w.Write(entry.Outcome.Body)
			return
		}

		rec := &recordingWriter{responseWriter: responseWriter{ResponseWriter: w, statusCode: http.StatusOK}}
		next(rec, r)

		if rec.statusCode == statusTooManyRequests || rec.statusCode >= statusInternalError {
			store.Unrecord(ctx, scoped)
			return
		}
		store.Complete(ctx, scoped, dedupe.Outcome{Status: rec.statusCode, Body: rec.body.Bytes()})
	}
}

// fingerprintBody hashes the request body and puts it back for the handler.
func fingerprintBody(r *http.Request) (string, error) {
	if r.Body == nil {
		return "", nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

// getErrorType returns a standardized error type based on HTTP status code.
func getErrorType(statusCode int) string {
	switch {
	case statusCode >= statusInternalError:
		return "server_error"
	case statusCode == statusTooManyRequests:
		return "rate_limit"
	case statusCode == statusNotFound:
		return "not_found"
	case statusCode >= statusBadRequest:
		return "client_error"
	default:
		return "unknown"
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}

// recordingWriter also keeps a copy of the body.
type recordingWriter struct {
	responseWriter
	body bytes.Buffer
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.responseWriter.Write(b)
}
