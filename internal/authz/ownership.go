package authz

// OwnershipRule decides whether a principal holding an owner grant may act on
// a specific record.
type OwnershipRule interface {
	OwnerAllows(p Principal, owner string, op Operation) bool
}

// OwnerMatch permits access when the record owner is the principal.
type OwnerMatch struct{}

// OwnerAllows implements OwnershipRule.
func (OwnerMatch) OwnerAllows(p Principal, owner string, _ Operation) bool {
	return p.ID != "" && owner == p.ID
}

// ScopeFor returns the list scope implied by a grant. The second value is
// false when the grant does not permit listing at all.
func ScopeFor(p Principal, grant Grant) (ListScope, bool) {
	switch grant {
	case GrantAll:
		return ListScope{All: true}, true
	case GrantOwner:
		if p.ID == "" {
			return ListScope{}, false
		}
		return ListScope{Owner: p.ID}, true
	}
	return ListScope{}, false
}
