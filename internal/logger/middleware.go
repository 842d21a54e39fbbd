package logger

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Middleware logs one record per request and feeds the HTTP counters.
// Requests slower than slow are counted and logged at warning level.
func Middleware(slow time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", elapsed.Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			}

			switch {
			case status >= 500:
				ErrorHttp5xx()
				Logger.Error("request failed", args...)
			case status >= 400:
				WarnHttp4xx(status)
				Debug("request rejected", args...)
			default:
				Debug("request", args...)
			}

			if slow > 0 && elapsed > slow {
				WarnSlowRequest()
				if shouldSample() {
					Logger.Warn("slow request", args...)
				}
			}
		})
	}
}
