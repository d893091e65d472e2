package authz

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var defaultPolicyYAML []byte

// Grant is what the role policy allows a role to do for one action.
type Grant string

const (
	GrantNone  Grant = "none"
	GrantOwner Grant = "owner"
	GrantSelf  Grant = "self"
	GrantAll   Grant = "all"
)

func (g Grant) strength() int {
	switch g {
	case GrantAll:
		return 2
	case GrantOwner, GrantSelf:
		return 1
	default:
		return 0
	}
}

func parseGrant(raw string) (Grant, error) {
	switch g := Grant(raw); g {
	case GrantNone, GrantOwner, GrantSelf, GrantAll:
		return g, nil
	}
	return "", fmt.Errorf("authz: unknown grant %q", raw)
}

// Valid reports whether e is a known entity type.
func (e EntityType) Valid() bool {
	switch e {
	case EntityResource, EntityUser, EntityProfile, EntityAudit:
		return true
	}
	return false
}

// Policy is the immutable role policy table.
type Policy struct {
	grants map[Action]map[Role]Grant
}

var defaultPolicy = MustParsePolicy(defaultPolicyYAML)

// DefaultPolicy returns the built-in role policy.
func DefaultPolicy() *Policy {
	return defaultPolicy
}

// MustParsePolicy is ParsePolicy that panics on error.
func MustParsePolicy(doc []byte) *Policy {
	p, err := ParsePolicy(doc)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePolicy reads a YAML policy document of the form
// entity -> operation -> role -> grant and validates it.
func ParsePolicy(doc []byte) (*Policy, error) {
	var raw map[string]map[string]map[string]string
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return nil, fmt.Errorf("authz: parse policy: %w", err)
	}
	p := &Policy{grants: make(map[Action]map[Role]Grant)}
	for entityName, ops := range raw {
		entity := EntityType(entityName)
		if !entity.Valid() {
			return nil, fmt.Errorf("authz: unknown entity %q", entityName)
		}
		for opName, roles := range ops {
			op := Operation(opName)
			if !op.Valid() {
				return nil, fmt.Errorf("authz: unknown operation %q for %s", opName, entity)
			}
			action := NewAction(entity, op)
			row := make(map[Role]Grant, len(roles))
			for roleName, grantName := range roles {
				role, err := ParseRole(roleName)
				if err != nil {
					return nil, err
				}
				grant, err := parseGrant(grantName)
				if err != nil {
					return nil, fmt.Errorf("%w (%s %s)", err, action, role)
				}
				if grant == GrantSelf && entity != EntityProfile {
					return nil, fmt.Errorf("authz: self grant only applies to %s, got %s", EntityProfile, action)
				}
				row[role] = grant
			}
			p.grants[action] = row
		}
	}
	if err := p.checkMonotonic(); err != nil {
		return nil, err
	}
	return p, nil
}

// checkMonotonic rejects tables where a more privileged role holds a weaker
// grant than a less privileged one for the same action.
func (p *Policy) checkMonotonic() error {
	roles := Roles()
	for action, row := range p.grants {
		for i := 1; i < len(roles); i++ {
			lower, higher := roles[i-1], roles[i]
			if grantOf(row, higher).strength() < grantOf(row, lower).strength() {
				return fmt.Errorf("authz: %s grants %s more than %s", action, lower, higher)
			}
		}
	}
	return nil
}

func grantOf(row map[Role]Grant, role Role) Grant {
	if g, ok := row[role]; ok {
		return g
	}
	return GrantNone
}

// Grant returns what role may do for action. Unknown roles and unlisted
// actions get GrantNone.
func (p *Policy) Grant(role Role, action Action) Grant {
	if p == nil || !role.Valid() {
		return GrantNone
	}
	return grantOf(p.grants[action], role)
}

// Rule is one populated cell of the policy table.
type Rule struct {
	Action Action
	Role   Role
	Grant  Grant
}

// Rules lists every non-none cell ordered by entity, operation and role.
func (p *Policy) Rules() []Rule {
	var rules []Rule
	for action, row := range p.grants {
		for role, grant := range row {
			if grant == GrantNone {
				continue
			}
			rules = append(rules, Rule{Action: action, Role: role, Grant: grant})
		}
	}
	opIndex := make(map[Operation]int)
	for i, op := range Operations() {
		opIndex[op] = i
	}
	sort.Slice(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.Action.Entity != b.Action.Entity {
			return a.Action.Entity < b.Action.Entity
		}
		if a.Action.Operation != b.Action.Operation {
			return opIndex[a.Action.Operation] < opIndex[b.Action.Operation]
		}
		return a.Role.level() > b.Role.level()
	})
	return rules
}
