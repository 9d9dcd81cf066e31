package handlers

import (
	"net/http"
	"time"

	"feedback-triage/logging"
	"feedback-triage/response"

	"github.com/sirupsen/logrus"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs the incoming HTTP request
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		// Call the next handler
		next.ServeHTTP(rec, r)

		logging.Info("Request processed", logrus.Fields{
			"method":     r.Method,
			"url":        r.URL.String(),
			"status":     rec.status,
			"request_id": response.GetRequestID(r),
			"duration":   time.Since(start).String(),
		})
	})
}
