package utils

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// RespondJSON sends a JSON response with the given status code and payload.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// headers are already sent, so logging is all that is left
		logrus.WithError(err).Error("Error encoding JSON response")
	}
}

// RespondError sends a JSON error response and logs the message on the request entry.
// Server-side failures are logged at error level, client mistakes at warn.
func RespondError(w http.ResponseWriter, log logrus.FieldLogger, message string, status int) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	entry := log.WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error(message)
	} else {
		entry.Warn(message)
	}
	RespondJSON(w, status, map[string]string{"error": message})
}

// RespondMethodNotAllowed answers 405 with the Allow header set
func RespondMethodNotAllowed(w http.ResponseWriter, log logrus.FieldLogger, allowed string) {
	w.Header().Set("Allow", allowed)
	RespondError(w, log, "Method not allowed", http.StatusMethodNotAllowed)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LatencyMiddleware logs the duration and status of each request
func LatencyMiddleware(logger logrus.FieldLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.WithFields(logrus.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"status":  rec.status,
			"latency": time.Since(start),
		}).Info("HTTP Request")
	})
}

// CORSMiddleware allows browser clients from any origin
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
