package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Thresholds for flagging slow requests. Graph queries answer from an
// in-memory snapshot and should never approach these; synthesis runs
// call out to the generation service and legitimately take longer.
const (
	slowRequestThreshold   = 500 * time.Millisecond
	slowSynthesisThreshold = 15 * time.Second
)

// RequestLogger emits one structured line per request. Requests are
// labelled by the chi route pattern rather than the raw path, so
// /courses/{code}/prerequisites aggregates under one label instead of one
// per course code.
func RequestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(start)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", elapsed),
				zap.String("requestID", chimiddleware.GetReqID(r.Context())),
			}
			if elapsed > threshold(route) {
				fields = append(fields, zap.Bool("slow", true))
			}

			switch {
			case ww.Status() >= http.StatusInternalServerError:
				logger.Error("Request failed", fields...)
			case ww.Status() >= http.StatusBadRequest:
				logger.Warn("Request rejected", fields...)
			default:
				logger.Info("Request served", fields...)
			}
		})
	}
}

func threshold(route string) time.Duration {
	if route == "/api/v1/ask" {
		return slowSynthesisThreshold
	}
	return slowRequestThreshold
}
