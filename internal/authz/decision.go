package authz

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated indicates that no valid principal could be resolved.
	ErrUnauthenticated = errors.New("authz: unauthenticated")
	// ErrInsufficientRole indicates the role never permits the action.
	ErrInsufficientRole = errors.New("authz: insufficient role")
	// ErrNotOwner indicates the role permits the action only on owned records.
	ErrNotOwner = errors.New("authz: not owner")
	// ErrRecordNotFound indicates the subject record does not exist.
	ErrRecordNotFound = errors.New("authz: record not found")
	// ErrPrincipalNotFound indicates the credential subject no longer exists.
	ErrPrincipalNotFound = errors.New("authz: principal not found")
	// ErrCredentialStore marks a verifier failure caused by its backing store
	// rather than by the credential itself.
	ErrCredentialStore = errors.New("authz: credential store unavailable")
)

// Effect is the outcome of an authorization decision.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Reason classifies a denial.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonUnauthenticated  Reason = "unauthenticated"
	ReasonInsufficientRole Reason = "insufficient_role"
	ReasonNotOwner         Reason = "not_owner"
)

// Sentinel returns the error matching the reason, or nil for ReasonNone.
func (r Reason) Sentinel() error {
	switch r {
	case ReasonUnauthenticated:
		return ErrUnauthenticated
	case ReasonInsufficientRole:
		return ErrInsufficientRole
	case ReasonNotOwner:
		return ErrNotOwner
	}
	return nil
}

// Decision is the result of authorizing one request.
type Decision struct {
	Effect    Effect
	Reason    Reason
	Principal Principal
	Action    Action
	RecordID  string
	// Scope is only meaningful for allowed list operations.
	Scope ListScope
}

// Allowed reports whether the decision permits the operation.
func (d Decision) Allowed() bool {
	return d.Effect == EffectAllow
}

// Err returns a *DeniedError for denials and nil otherwise.
func (d Decision) Err() error {
	if d.Allowed() {
		return nil
	}
	return &DeniedError{
		Reason:      d.Reason,
		Action:      d.Action,
		PrincipalID: d.Principal.ID,
		RecordID:    d.RecordID,
	}
}

func allow(p Principal, action Action, recordID string) Decision {
	return Decision{Effect: EffectAllow, Principal: p, Action: action, RecordID: recordID}
}

func deny(p Principal, action Action, recordID string, reason Reason) Decision {
	return Decision{Effect: EffectDeny, Reason: reason, Principal: p, Action: action, RecordID: recordID}
}

// DeniedError carries a structured denial for callers and audit.
type DeniedError struct {
	Reason      Reason
	Action      Action
	PrincipalID string
	RecordID    string
}

// Error renders a deterministic message for the denial.
func (e *DeniedError) Error() string {
	verb := string(e.Action.Operation)
	target := string(e.Action.Entity)
	if e.RecordID != "" {
		target += " " + e.RecordID
	}
	switch e.Reason {
	case ReasonUnauthenticated:
		return fmt.Sprintf("not authorized to %s %s: authentication required", verb, target)
	case ReasonNotOwner:
		return fmt.Sprintf("user %s is not authorized to %s %s: not the owner", e.PrincipalID, verb, target)
	default:
		return fmt.Sprintf("user %s is not authorized to %s %s: role not permitted", e.PrincipalID, verb, target)
	}
}

// Unwrap exposes the reason sentinel to errors.Is.
func (e *DeniedError) Unwrap() error {
	if err := e.Reason.Sentinel(); err != nil {
		return err
	}
	return ErrInsufficientRole
}

// ReasonOf extracts the denial reason from err, if any.
func ReasonOf(err error) (Reason, bool) {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return denied.Reason, true
	}
	return ReasonNone, false
}
