package identity

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken covers malformed, unsigned, or tampered tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken marks a token past its expiry.
	ErrExpiredToken = errors.New("token has expired")
)

// Claims are the JWT claims carried by access tokens.
type Claims struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HMAC-signed access tokens.
type JWTVerifier struct {
	signingKey []byte
	issuer     string
}

// NewJWTVerifier constructs a verifier for tokens signed with the shared key.
func NewJWTVerifier(signingKey, issuer string) *JWTVerifier {
	return &JWTVerifier{signingKey: []byte(signingKey), issuer: issuer}
}

// Verify parses and validates a token, returning the authenticated identity.
func (v *JWTVerifier) Verify(_ context.Context, tokenString string) (Identity, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	}, jwt.WithIssuer(v.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		ID:            claims.UserID,
		DisplayName:   claims.DisplayName,
		Authenticated: true,
	}, nil
}

// Sign mints a token for the given user. The server only consumes tokens;
// this exists for tests and local tooling.
func (v *JWTVerifier) Sign(userID, displayName string, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:      userID,
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    v.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(v.signingKey)
}
