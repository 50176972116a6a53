package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tunetrail/gateway/internal/metrics"
	"github.com/tunetrail/gateway/internal/ratelimit"
)

// logFieldsKey identifies request-scoped logging fields.
type logFieldsKey struct{}

// LoggingMiddleware emits one structured access-log record per request
// and feeds the gateway metrics. It wraps every stage: requests
// rejected by auth or the rate limiter still get a log line, a metrics
// observation, and the X-Response-Time / X-Gateway-Version headers.
func LoggingMiddleware(logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Attach mutable log fields map to context so inner stages
			// (auth, rate limit, proxy) can enrich the completion record.
			fields := make(map[string]string)
			ctxWithFields := context.WithValue(r.Context(), logFieldsKey{}, fields)

			wrapped := &gatewayResponseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				start:          start,
			}

			next.ServeHTTP(wrapped, r.WithContext(ctxWithFields))

			duration := time.Since(start)
			status := wrapped.statusCode

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.Observe(r.Method, route, strconv.Itoa(status), status, duration)

			attrs := []slog.Attr{
				slog.String("request_id", GetRequestID(ctxWithFields)),
				slog.String("method", r.Method),
				slog.String("url", r.Host + r.URL.RequestURI()),
				slog.String("ip", ratelimit.ClientIP(r.RemoteAddr)),
				slog.String("user_agent", r.UserAgent()),
				slog.Int("status_code", status),
				slog.Float64("duration_ms", float64(duration.Microseconds())/1000),
			}
			for k, v := range fields {
				attrs = append(attrs, slog.String(k, v))
			}
			logger.LogAttrs(ctxWithFields, slog.LevelInfo, "gateway request", attrs...)
		})
	}
}

// gatewayResponseWriter captures the status code and stamps the
// response-time and version headers just before the header section is
// flushed, which is the last moment headers can still be written.
type gatewayResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	start       time.Time
}

func (rw *gatewayResponseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.statusCode = code

	elapsed := float64(time.Since(rw.start).Microseconds()) / 1000
	rw.Header().Set("X-Response-Time", fmt.Sprintf("%.2fms", elapsed))
	rw.Header().Set("X-Gateway-Version", gatewayVersion)
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *gatewayResponseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Flush forwards Flush to the underlying ResponseWriter if it supports
// http.Flusher.
func (rw *gatewayResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// AddLogField attaches a key/value to the request-scoped log fields map
// so LoggingMiddleware can emit it. No-op if the middleware isn't present.
func AddLogField(ctx context.Context, key, value string) {
	if value == "" {
		return
	}
	if fields, ok := ctx.Value(logFieldsKey{}).(map[string]string); ok {
		fields[key] = value
	}
}

// AddError attaches an error message to the request-scoped log fields
// map. No-op if the middleware isn't present or err is nil.
func AddError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	AddLogField(ctx, "error", err.Error())
}
