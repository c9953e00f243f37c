package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the access token claims the dashboard reads. Tokens are issued elsewhere.
type Claims struct {
	jwt.RegisteredClaims
	Roles      []string `json:"roles,omitempty"`
	AuthMethod string   `json:"auth_method,omitempty"`
	Kind       string   `json:"typ,omitempty"`
}

// Verifier checks RS256 access tokens against a public key.
type Verifier struct {
	publicKey *rsa.PublicKey
	issuer    string
}

// NewVerifier reads the PEM public key at publicPath. An empty issuer accepts any issuer.
func NewVerifier(publicPath, issuer string) (*Verifier, error) {
	pubPem, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubPem)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return NewVerifierFromKey(pubKey, issuer), nil
}

func NewVerifierFromKey(key *rsa.PublicKey, issuer string) *Verifier {
	return &Verifier{publicKey: key, issuer: issuer}
}

// Verify checks the RS256 signature and expiry and returns the claims.
// Refresh tokens are rejected.
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(5 * time.Second),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return v.publicKey, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Kind == "refresh" {
		return nil, errors.New("refresh token used as access token")
	}
	return claims, nil
}
