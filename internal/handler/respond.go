package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hiroki-koketsu/go-task-tracker/internal/model"
	"github.com/hiroki-koketsu/go-task-tracker/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/go-task-tracker/internal/handler")

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message string `json:"message"`
}

// base carries what every handler needs to log, respond and record metrics.
type base struct {
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

func (b *base) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (b *base) respondError(w http.ResponseWriter, status int, message string) {
	b.respondJSON(w, status, ErrorResponse{Message: message})
}

// decode reads a JSON body into dst.
func (b *base) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// statusFor maps a domain error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail logs err, marks the span and writes the mapped response. Internal
// errors are reported with fallback instead of their text.
func (b *base) fail(ctx context.Context, w http.ResponseWriter, span trace.Span, err error, fallback string) int {
	status := statusFor(err)
	span.SetAttributes(attribute.Int("http.status_code", status))

	if status == http.StatusInternalServerError {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.logger.ErrorContext(ctx, fallback, slog.Any("error", err))
		b.respondError(w, status, fallback)
		return status
	}

	b.logger.WarnContext(ctx, "request rejected", slog.Any("error", err), slog.Int("status", status))
	b.respondError(w, status, err.Error())
	return status
}

func (b *base) recordMetrics(ctx context.Context, method, route string, status int, start time.Time) {
	duration := time.Since(start).Seconds()

	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)

	b.metrics.RequestCounter.Add(ctx, 1, attrs)
	b.metrics.RequestDuration.Record(ctx, duration, attrs)
}
