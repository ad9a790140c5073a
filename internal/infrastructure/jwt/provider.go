package jwtinfra

import (
	"errors"
	"fmt"
	"time"

	"github.com/carematch/carematch-api/internal/config"
	"github.com/carematch/carematch-api/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Provider signs and verifies HS256 JWTs whose subject is an opaque account
// identifier: a username, a phone number, or a WeChat openid. The same token
// format serves all three login channels, so verification downstream never
// needs to know which channel minted the token.
type Provider struct {
	secret []byte
	expiry time.Duration
}

// NewProvider builds a Provider from config. A missing JWT secret is a
// deployment error and is rejected at startup rather than at first sign.
func NewProvider(cfg *config.Config) (*Provider, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt: JWT_SECRET is not configured")
	}
	return &Provider{secret: []byte(cfg.JWTSecret), expiry: cfg.JWTExpiry}, nil
}

// Sign issues a token for the given subject, valid from now until now+expiry.
func (p *Provider) Sign(subject string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.expiry)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

// Verify checks signature and expiry and returns the embedded subject.
// Any failure (malformed token, wrong signature, past expiry) comes back
// as domain.ErrTokenInvalid; callers recover by re-authenticating.
func (p *Provider) Verify(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, domain.ErrTokenInvalid)
	}
	if !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("missing subject: %w", domain.ErrTokenInvalid)
	}
	return claims.Subject, nil
}

// Refresh re-validates the token and re-issues it with the same subject and a
// fresh issued-at/expiry window (sliding expiration). An invalid or expired
// token yields domain.ErrTokenInvalid, same as Verify.
func (p *Provider) Refresh(tokenStr string) (string, error) {
	subject, err := p.Verify(tokenStr)
	if err != nil {
		return "", err
	}
	return p.Sign(subject)
}
