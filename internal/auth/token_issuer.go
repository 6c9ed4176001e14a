// Package auth issues and validates the player session tokens carried as
// HTTP bearer credentials.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 60 * time.Minute

var (
	errMissingSigningSecret = errors.New("signing secret must be provided")
	errMissingPlayerID      = errors.New("player id must be provided")
)

// TokenIssuerConfig configures the player JWT issuer.
type TokenIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// TokenIssuer issues and validates HS256 player session tokens.
type TokenIssuer struct {
	config TokenIssuerConfig
	clock  func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer with sane defaults.
func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, errMissingSigningSecret
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenIssuer{
		config: TokenIssuerConfig{
			SigningSecret: cfg.SigningSecret,
			Issuer:        cfg.Issuer,
			Audience:      cfg.Audience,
			TokenTTL:      ttl,
			Clock:         clock,
		},
		clock: clock,
	}, nil
}

// IssuePlayerToken produces a signed JWT and its expiry (seconds) for the
// given player identity.
func (i *TokenIssuer) IssuePlayerToken(_ context.Context, playerID string) (string, int64, error) {
	if playerID == "" {
		return "", 0, errMissingPlayerID
	}

	now := i.clock().UTC()
	expiresAt := now.Add(i.config.TokenTTL).UTC()

	registered := jwt.RegisteredClaims{
		Subject:   playerID,
		Issuer:    i.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	if i.config.Audience != "" {
		registered.Audience = []string{i.config.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, registered)
	signed, err := token.SignedString(i.config.SigningSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(expiresAt.Sub(now).Seconds()), nil
}

// ValidateToken ensures the session token is well formed and returns the
// player id it was issued to.
func (i *TokenIssuer) ValidateToken(tokenString string) (string, error) {
	options := []jwt.ParserOption{jwt.WithTimeFunc(i.clock)}
	if i.config.Audience != "" {
		options = append(options, jwt.WithAudience(i.config.Audience))
	}
	if i.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(i.config.Issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return i.config.SigningSecret, nil
		},
		options...,
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errMissingPlayerID
	}
	return claims.Subject, nil
}
