package jwttoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"invitegate/pkg/domain"
	dErrors "invitegate/pkg/domain-errors"
	authmw "invitegate/pkg/platform/middleware/auth"
)

const (
	RoleIssuer = "issuer"
	RoleMember = "member"
)

// Claims are the ledger access token claims. Member tokens carry the wallet
// they act for.
type Claims struct {
	Role   string `json:"role"`
	Wallet string `json:"wallet,omitempty"`
	jwt.RegisteredClaims
}

// JWTService issues and validates HS256 access tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTService(signingKey string, issuer string, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateIssuerToken mints an issuer token for subject.
func (s *JWTService) GenerateIssuerToken(subject string, expiresIn time.Duration) (string, error) {
	if subject == "" {
		return "", dErrors.New(dErrors.CodeValidation, "subject is required")
	}
	return s.sign(subject, RoleIssuer, "", expiresIn)
}

// GenerateMemberToken mints a member token bound to wallet.
func (s *JWTService) GenerateMemberToken(wallet domain.Address, expiresIn time.Duration) (string, error) {
	if wallet.IsZero() {
		return "", dErrors.New(dErrors.CodeValidation, "wallet is required")
	}
	return s.sign(wallet.Hex(), RoleMember, wallet.Hex(), expiresIn)
}

func (s *JWTService) sign(subject, role, wallet string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:   role,
		Wallet: wallet,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signedToken, nil
}

// ParseToken validates signature, expiry, issuer and audience.
func (s *JWTService) ParseToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithAudience(s.audience), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	switch claims.Role {
	case RoleIssuer:
	case RoleMember:
		if _, err := domain.ParseAddress(claims.Wallet); err != nil {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "member token has no valid wallet")
		}
	default:
		return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown token role")
	}
	return claims, nil
}

// ValidateToken implements the auth middleware's JWTValidator.
func (s *JWTService) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{
		Subject: claims.Subject,
		Role:    claims.Role,
		Wallet:  claims.Wallet,
	}, nil
}
