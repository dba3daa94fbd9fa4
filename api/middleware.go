package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/raushankrgupta/product-descriptions-ai/utils"
	"github.com/sirupsen/logrus"
)

type contextKey string

const userIDKey contextKey = "user_id"

var errNoUser = errors.New("user id not found in context")

// AuthMiddleware requires a valid Bearer session token and puts its user id on the context
func AuthMiddleware(tokens *utils.TokenIssuer, logger logrus.FieldLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			utils.RespondError(w, logger.WithField("path", r.URL.Path), "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := tokens.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			logger.WithError(err).Debug("Rejected session token")
			utils.RespondError(w, logger.WithField("path", r.URL.Path), "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserIDFromContext returns the user id AuthMiddleware stored
func GetUserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDKey).(string)
	if !ok || userID == "" {
		return "", errNoUser
	}
	return userID, nil
}
