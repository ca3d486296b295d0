package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	request "invitegate/pkg/platform/middleware/request"
	"invitegate/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	Subject string
	Role    string
	Wallet  string // hex address, set for member tokens
}

type contextKeyRole struct{}
type contextKeyWallet struct{}

var (
	ContextKeyRole   = contextKeyRole{}
	ContextKeyWallet = contextKeyWallet{}
)

// GetRole returns the authenticated role, or "" for anonymous requests.
func GetRole(ctx context.Context) string {
	role, ok := ctx.Value(ContextKeyRole).(string)
	if !ok {
		return ""
	}
	return role
}

// GetWallet returns the wallet claim of a member token.
func GetWallet(ctx context.Context) string {
	wallet, ok := ctx.Value(ContextKeyWallet).(string)
	if !ok {
		return ""
	}
	return wallet
}

// WithClaims injects authenticated claims. Handler tests use it to skip the token round trip.
func WithClaims(ctx context.Context, claims *JWTClaims) context.Context {
	ctx = requestcontext.WithSubject(ctx, claims.Subject)
	ctx = context.WithValue(ctx, ContextKeyRole, claims.Role)
	ctx = context.WithValue(ctx, ContextKeyWallet, claims.Wallet)
	return ctx
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// Authenticate validates a bearer token when one is present. Requests without an
// Authorization header pass through anonymously; the ledger decides whether the
// operation needs an authority.
func Authenticate(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - malformed authorization header",
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
		})
	}
}
