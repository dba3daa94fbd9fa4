package utils

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NewLogger builds the process logger. Unknown levels fall back to info.
func NewLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// RequestLogger returns an entry tagged with the API name and a request id.
// The id is taken from X-Request-ID when the caller supplied one.
func RequestLogger(logger logrus.FieldLogger, api string, r *http.Request) *logrus.Entry {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return logger.WithFields(logrus.Fields{
		"api":        api,
		"request_id": requestID,
		"method":     r.Method,
		"path":       r.URL.Path,
	})
}
