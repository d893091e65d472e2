package authz

import (
	"context"
	"errors"
	"fmt"
)

// RecordStore loads the owner of a record. It returns ErrRecordNotFound when
// the record does not exist.
type RecordStore interface {
	LoadOwner(ctx context.Context, entity EntityType, id string) (string, error)
}

// RecordStores dispatches owner lookups by entity type.
type RecordStores map[EntityType]RecordStore

// LoadOwner implements RecordStore.
func (s RecordStores) LoadOwner(ctx context.Context, entity EntityType, id string) (string, error) {
	store, ok := s[entity]
	if !ok || store == nil {
		return "", fmt.Errorf("authz: no record store for %s", entity)
	}
	return store.LoadOwner(ctx, entity, id)
}

// Engine composes principal resolution, the role policy and ownership rules
// into one decision per request. It holds no mutable state.
type Engine struct {
	resolver *Resolver
	policy   *Policy
	records  RecordStore
	rules    map[EntityType]OwnershipRule
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithPolicy replaces the default role policy.
func WithPolicy(p *Policy) EngineOption {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithOwnershipRule sets the ownership rule for one entity type.
func WithOwnershipRule(entity EntityType, rule OwnershipRule) EngineOption {
	return func(e *Engine) {
		e.rules[entity] = rule
	}
}

// NewEngine constructs an Engine.
func NewEngine(resolver *Resolver, records RecordStore, opts ...EngineOption) *Engine {
	e := &Engine{
		resolver: resolver,
		policy:   DefaultPolicy(),
		records:  records,
		rules:    make(map[EntityType]OwnershipRule),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy exposes the role policy in use.
func (e *Engine) Policy() *Policy {
	return e.policy
}

// Authorize resolves the credential and decides whether the principal may
// perform action on the record identified by recordID (empty for list and
// create). Denials are returned as decisions; a non-nil error means no
// decision was reached, e.g. ErrRecordNotFound or a store failure.
func (e *Engine) Authorize(ctx context.Context, credential string, action Action, recordID string) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	principal, err := e.resolver.Resolve(ctx, credential)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			return deny(Principal{}, action, recordID, ReasonUnauthenticated), nil
		}
		return Decision{}, err
	}
	return e.AuthorizePrincipal(ctx, principal, action, recordID)
}

// AuthorizePrincipal runs the role and ownership checks for an already
// resolved principal.
func (e *Engine) AuthorizePrincipal(ctx context.Context, principal Principal, action Action, recordID string) (Decision, error) {
	grant := e.policy.Grant(principal.Role, action)
	switch grant {
	case GrantNone, GrantSelf:
		return e.decide(principal, action, recordID, ""), nil
	case GrantAll:
		d := allow(principal, action, recordID)
		if action.Operation == OpList {
			d.Scope, _ = ScopeFor(principal, grant)
		}
		return d, nil
	}

	switch {
	case action.Operation == OpList:
		scope, ok := ScopeFor(principal, grant)
		if !ok {
			return deny(principal, action, recordID, ReasonInsufficientRole), nil
		}
		d := allow(principal, action, recordID)
		d.Scope = scope
		return d, nil
	case !action.Operation.TargetsRecord():
		return allow(principal, action, recordID), nil
	}

	if recordID == "" {
		return Decision{}, fmt.Errorf("%w: %s requires a record id", ErrRecordNotFound, action)
	}
	owner, err := e.records.LoadOwner(ctx, action.Entity, recordID)
	if err != nil {
		return Decision{}, err
	}
	return e.decide(principal, action, recordID, owner), nil
}

// decide is the pure decision once the record owner is known. Self grants
// ignore owner: an empty record id means the principal's own record and any
// other id is denied.
func (e *Engine) decide(principal Principal, action Action, recordID, owner string) Decision {
	switch e.policy.Grant(principal.Role, action) {
	case GrantNone:
		return deny(principal, action, recordID, ReasonInsufficientRole)
	case GrantAll:
		return allow(principal, action, recordID)
	case GrantSelf:
		if recordID != "" && recordID != principal.ID {
			return deny(principal, action, recordID, ReasonNotOwner)
		}
		return allow(principal, action, principal.ID)
	}
	if !action.Operation.TargetsRecord() {
		return allow(principal, action, recordID)
	}
	if e.ruleFor(action.Entity).OwnerAllows(principal, owner, action.Operation) {
		return allow(principal, action, recordID)
	}
	return deny(principal, action, recordID, ReasonNotOwner)
}

func (e *Engine) ruleFor(entity EntityType) OwnershipRule {
	if rule, ok := e.rules[entity]; ok && rule != nil {
		return rule
	}
	return OwnerMatch{}
}
