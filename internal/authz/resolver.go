package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Credential is the verified content of a bearer credential.
type Credential struct {
	Subject    string
	ValidUntil time.Time
}

// CredentialVerifier checks a credential's signature and expiry.
type CredentialVerifier interface {
	Verify(ctx context.Context, token string) (Credential, error)
}

// PrincipalStore loads the current role of an identity. It returns
// ErrPrincipalNotFound when the identity no longer exists.
type PrincipalStore interface {
	LoadRole(ctx context.Context, id string) (Role, error)
}

// Resolver turns a bearer credential into a Principal.
type Resolver struct {
	verifier   CredentialVerifier
	principals PrincipalStore
	now        func() time.Time
}

// NewResolver constructs a Resolver.
func NewResolver(verifier CredentialVerifier, principals PrincipalStore) *Resolver {
	return &Resolver{verifier: verifier, principals: principals, now: time.Now}
}

// WithClock overrides the clock used for expiry checks.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	clone := *r
	clone.now = now
	return &clone
}

// Resolve validates the credential and loads the principal's current role.
// Authentication failures wrap ErrUnauthenticated. Store failures, including
// verifier errors wrapping ErrCredentialStore, are returned as is.
func (r *Resolver) Resolve(ctx context.Context, token string) (Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, fmt.Errorf("%w: credential missing", ErrUnauthenticated)
	}
	cred, err := r.verifier.Verify(ctx, token)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Principal{}, ctxErr
		}
		if errors.Is(err, ErrCredentialStore) {
			return Principal{}, err
		}
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if cred.Subject == "" {
		return Principal{}, fmt.Errorf("%w: credential has no subject", ErrUnauthenticated)
	}
	if !cred.ValidUntil.IsZero() && !cred.ValidUntil.After(r.now()) {
		return Principal{}, fmt.Errorf("%w: credential expired", ErrUnauthenticated)
	}
	role, err := r.principals.LoadRole(ctx, cred.Subject)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return Principal{}, fmt.Errorf("%w: subject %s no longer exists", ErrUnauthenticated, cred.Subject)
		}
		return Principal{}, fmt.Errorf("authz: load role: %w", err)
	}
	if !role.Valid() {
		return Principal{}, fmt.Errorf("%w: subject %s has unknown role %q", ErrUnauthenticated, cred.Subject, role)
	}
	return Principal{ID: cred.Subject, Role: role}, nil
}
