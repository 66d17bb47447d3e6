// Package rbac provides role-based access control for the HTTP API.
//
// Tokens carry role claims; a Policy maps roles onto permissions of
// the form "resource:action". Enforcement is opt-in: without a policy
// every authenticated caller may do everything.
package rbac

import "strings"

// Permission represents a permission in the format "resource:action".
type Permission string

// Permissions checked by the API routes.
const (
	// RuleSetsRead covers listing and fetching stored rule sets and
	// compiling them.
	RuleSetsRead Permission = "rulesets:read"
	// RuleSetsWrite covers creating, updating and deleting rule sets.
	RuleSetsWrite Permission = "rulesets:write"
)

// String returns the string representation of the permission.
func (p Permission) String() string {
	return string(p)
}

// Resource returns the resource part of the permission.
func (p Permission) Resource() string {
	resource, _, _ := strings.Cut(string(p), ":")
	return resource
}

// Action returns the action part of the permission.
func (p Permission) Action() string {
	_, action, _ := strings.Cut(string(p), ":")
	return action
}

// Matches checks if this permission grants the target permission.
// Either part may be a wildcard: "rulesets:*" grants any action on
// rule sets, "*:*" grants everything.
func (p Permission) Matches(target Permission) bool {
	resourceMatch := p.Resource() == "*" || p.Resource() == target.Resource()
	actionMatch := p.Action() == "*" || p.Action() == target.Action()
	return resourceMatch && actionMatch
}

// Policy maps role names onto granted permissions. Build it once at
// startup; it is immutable afterwards and safe for concurrent reads.
type Policy struct {
	grants map[string][]Permission
}

// NewPolicy creates an empty policy. A role absent from the policy
// grants nothing.
func NewPolicy() *Policy {
	return &Policy{grants: make(map[string][]Permission)}
}

// DefaultPolicy returns the built-in three-tier policy:
//
//	admin   everything
//	editor  read and write rule sets
//	viewer  read rule sets
func DefaultPolicy() *Policy {
	p := NewPolicy()
	p.Grant("admin", "*:*")
	p.Grant("editor", RuleSetsRead, RuleSetsWrite)
	p.Grant("viewer", RuleSetsRead)
	return p
}

// Grant adds permissions to a role, creating the role if needed.
func (p *Policy) Grant(role string, perms ...Permission) {
	p.grants[role] = append(p.grants[role], perms...)
}

// Allows reports whether any of the roles grants the permission.
func (p *Policy) Allows(roles []string, perm Permission) bool {
	for _, role := range roles {
		for _, granted := range p.grants[role] {
			if granted.Matches(perm) {
				return true
			}
		}
	}
	return false
}

// Roles returns the role names the policy knows about.
func (p *Policy) Roles() []string {
	names := make([]string, 0, len(p.grants))
	for name := range p.grants {
		names = append(names, name)
	}
	return names
}
