package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gatehouse-io/gatehouse/internal/authz"
)

// ErrTokenRevoked indicates the token was logged out before it expired.
var ErrTokenRevoked = errors.New("auth: token revoked")

// RevocationChecker reports whether a token id has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// TokenConfig configures token signing and verification.
type TokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

// TokenManager issues and verifies HS256 bearer tokens. The role is never
// embedded; only the subject identity travels in the token.
type TokenManager struct {
	cfg     TokenConfig
	revoked RevocationChecker
}

// NewTokenManager constructs a TokenManager. revoked may be nil.
func NewTokenManager(cfg TokenConfig, revoked RevocationChecker) (*TokenManager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("auth: token secret must be at least 32 bytes")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TokenManager{cfg: cfg, revoked: revoked}, nil
}

// Issue signs a token for userID.
func (m *TokenManager) Issue(userID string) (Token, error) {
	if userID == "" {
		return Token{}, errors.New("auth: subject required")
	}
	now := m.cfg.Now().UTC()
	expiresAt := now.Add(m.cfg.TTL)
	id := uuid.NewString()
	claims := jwt.RegisteredClaims{
		ID:        id,
		Subject:   userID,
		Issuer:    m.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.Secret)
	if err != nil {
		return Token{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return Token{Value: signed, ID: id, ExpiresAt: expiresAt}, nil
}

// Parse checks the signature, issuer and expiry of a token.
func (m *TokenManager) Parse(token string) (*jwt.RegisteredClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.cfg.Now),
	}
	if m.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.cfg.Issuer))
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.cfg.Secret, nil
	}, opts...)
	if err != nil {
		return nil, mapJWTError(err)
	}
	if claims.Subject == "" {
		return nil, errors.New("auth: token has no subject")
	}
	return &claims, nil
}

// Verify implements authz.CredentialVerifier.
func (m *TokenManager) Verify(ctx context.Context, token string) (authz.Credential, error) {
	claims, err := m.Parse(token)
	if err != nil {
		return authz.Credential{}, err
	}
	if m.revoked != nil && claims.ID != "" {
		revoked, err := m.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return authz.Credential{}, fmt.Errorf("%w: revocation check: %w", authz.ErrCredentialStore, err)
		}
		if revoked {
			return authz.Credential{}, ErrTokenRevoked
		}
	}
	return authz.Credential{Subject: claims.Subject, ValidUntil: claims.ExpiresAt.Time}, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return errors.New("auth: token expired")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return errors.New("auth: token signature invalid")
	case errors.Is(err, jwt.ErrTokenMalformed):
		return errors.New("auth: token malformed")
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return errors.New("auth: token algorithm not accepted")
	}
	return fmt.Errorf("auth: token invalid: %w", err)
}

var _ authz.CredentialVerifier = (*TokenManager)(nil)
