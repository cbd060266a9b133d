package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrDecodeFailure is returned by DecodeClaims when a token payload cannot be read.
var ErrDecodeFailure = errors.New("decode session claims")

// Claims holds the non-secret display fields carried in a session token.
// Signatures are not verified; the values are for display only.
type Claims struct {
	Email     string    `json:"email,omitempty" yaml:"email,omitempty"`
	Role      string    `json:"role,omitempty" yaml:"role,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	// Label is what a page shows for the signed-in identity.
	Label string `json:"label" yaml:"label"`
	// Fallback is true when Label is the domain default rather than token data.
	Fallback bool `json:"fallback" yaml:"fallback"`
}

type tokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// DecodeClaims reads the payload of a JWT without verifying its signature.
func DecodeClaims(token string) (Claims, error) {
	var tc tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &tc); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}

	claims := Claims{
		Email: tc.Email,
		Role:  tc.Role,
		Label: tc.Email,
	}
	if tc.ExpiresAt != nil {
		claims.ExpiresAt = tc.ExpiresAt.Time
	}
	return claims, nil
}

func fallbackClaims(d Domain) Claims {
	return Claims{Label: d.Label(), Fallback: true}
}
