package testutil

import (
	"net/http"

	authmw "invitegate/pkg/platform/middleware/auth"
)

// AsIssuer marks the request as carrying a valid issuer token.
func AsIssuer(req *http.Request, subject string) *http.Request {
	return WithClaims(req, &authmw.JWTClaims{Subject: subject, Role: "issuer"})
}

// AsMember marks the request as carrying a valid member token bound to wallet.
func AsMember(req *http.Request, wallet string) *http.Request {
	return WithClaims(req, &authmw.JWTClaims{Subject: wallet, Role: "member", Wallet: wallet})
}

// WithClaims simulates what the auth middleware does for authenticated requests.
func WithClaims(req *http.Request, claims *authmw.JWTClaims) *http.Request {
	return req.WithContext(authmw.WithClaims(req.Context(), claims))
}
