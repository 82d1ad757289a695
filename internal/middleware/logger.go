package middleware

import (
	"net/http"
	"time"

	"github.com/RahulSriwastaw/new-backend-sub000/internal/infra"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// Logger writes one access log entry per request. Health probes log at debug
// so they do not drown generation traffic; 5xx responses log at error.
func Logger(l *infra.Logger) func(http.Handler) http.Handler {
	l = infra.LoggerOrDiscard(l)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			evt := l.Info()
			switch {
			case rec.status >= http.StatusInternalServerError:
				evt = l.Error()
			case r.URL.Path == "/v1/healthz":
				evt = l.Debug()
			}
			evt.
				Str("request_id", RequestIDFromContext(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("client_ip", ClientIP(r)).
				Int("status", rec.status).
				Int("bytes", rec.bytes).
				Dur("latency", time.Since(start)).
				Msg("http request")
		})
	}
}
