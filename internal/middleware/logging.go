package middleware

import (
	"net/http"
	"time"

	"github.com/jmallard/penpal/internal/logging"
)

type RequestLogger struct {
	logger *logging.Logger
}

func NewRequestLogger(logger *logging.Logger) *RequestLogger {
	return &RequestLogger{logger: logger}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Apply logs one line per request. Server errors log at ERROR with the
// query string included; client errors at WARN; the rest at INFO.
func (rl *RequestLogger) Apply(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		fields := map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_ip":   GetClientIP(r),
		}

		switch {
		case rec.status >= http.StatusInternalServerError:
			if r.URL.RawQuery != "" {
				fields["query"] = r.URL.RawQuery
			}
			rl.logger.Error("request failed", fields)
		case rec.status >= http.StatusBadRequest:
			rl.logger.Warn("request rejected", fields)
		default:
			rl.logger.Info("request completed", fields)
		}
	})
}
