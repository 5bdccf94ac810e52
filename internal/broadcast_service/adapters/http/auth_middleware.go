package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
)

type contextKey string

const operatorContextKey = contextKey("operator")

// OperatorFrom returns the authenticated operator id stored by OperatorAuth.
func OperatorFrom(ctx context.Context) (domain.RecipientID, bool) {
	id, ok := ctx.Value(operatorContextKey).(domain.RecipientID)
	return id, ok
}

// IssueOperatorToken signs an HS256 token whose subject is the operator id.
func IssueOperatorToken(secret string, operator domain.RecipientID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(int64(operator), 10),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign operator token: %w", err)
	}
	return token, nil
}

func parseOperatorToken(secret, tokenString string) (domain.RecipientID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return 0, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, errors.New("invalid token claims")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return 0, err
	}
	return domain.ParseRecipientID(sub)
}

// OperatorAuth admits requests carrying a valid bearer token for a configured operator.
func OperatorAuth(secret string, operators domain.Operators, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			scheme, tokenString, found := strings.Cut(authHeader, " ")
			if !found || scheme != "Bearer" || tokenString == "" {
				logger.WarnContext(r.Context(), "Missing or malformed Authorization header")
				writeError(w, "Bearer token required", http.StatusUnauthorized)
				return
			}

			operator, err := parseOperatorToken(secret, tokenString)
			if err != nil {
				logger.WarnContext(r.Context(), "Token validation failed", "error", err)
				writeError(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}
			if !operators.Is(operator) {
				logger.WarnContext(r.Context(), "Token subject is not an operator", "subject", operator)
				writeError(w, "Operator access required", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), operatorContextKey, operator)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
