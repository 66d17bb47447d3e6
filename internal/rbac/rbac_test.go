package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissionParts(t *testing.T) {
	p := Permission("rulesets:write")
	assert.Equal(t, "rulesets", p.Resource())
	assert.Equal(t, "write", p.Action())
	assert.Equal(t, "rulesets:write", p.String())
}

func TestPermissionMatches(t *testing.T) {
	tests := []struct {
		granted string
		target  Permission
		want    bool
	}{
		{"rulesets:read", RuleSetsRead, true},
		{"rulesets:read", RuleSetsWrite, false},
		{"rulesets:*", RuleSetsWrite, true},
		{"*:read", RuleSetsRead, true},
		{"*:read", RuleSetsWrite, false},
		{"*:*", RuleSetsWrite, true},
		{"compile:run", RuleSetsRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.granted+" vs "+tt.target.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Permission(tt.granted).Matches(tt.target))
		})
	}
}

func TestPolicyAllows(t *testing.T) {
	policy := DefaultPolicy()

	t.Run("admin can do everything", func(t *testing.T) {
		assert.True(t, policy.Allows([]string{"admin"}, RuleSetsRead))
		assert.True(t, policy.Allows([]string{"admin"}, RuleSetsWrite))
	})

	t.Run("editor can read and write", func(t *testing.T) {
		assert.True(t, policy.Allows([]string{"editor"}, RuleSetsRead))
		assert.True(t, policy.Allows([]string{"editor"}, RuleSetsWrite))
	})

	t.Run("viewer can only read", func(t *testing.T) {
		assert.True(t, policy.Allows([]string{"viewer"}, RuleSetsRead))
		assert.False(t, policy.Allows([]string{"viewer"}, RuleSetsWrite))
	})

	t.Run("unknown role grants nothing", func(t *testing.T) {
		assert.False(t, policy.Allows([]string{"intern"}, RuleSetsRead))
	})

	t.Run("no roles grant nothing", func(t *testing.T) {
		assert.False(t, policy.Allows(nil, RuleSetsRead))
	})

	t.Run("any matching role suffices", func(t *testing.T) {
		assert.True(t, policy.Allows([]string{"intern", "viewer"}, RuleSetsRead))
	})
}

func TestPolicyGrant(t *testing.T) {
	policy := NewPolicy()
	policy.Grant("operator", "rulesets:read")
	policy.Grant("operator", "jobs:*")

	assert.True(t, policy.Allows([]string{"operator"}, RuleSetsRead))
	assert.True(t, policy.Allows([]string{"operator"}, Permission("jobs:purge")))
	assert.False(t, policy.Allows([]string{"operator"}, RuleSetsWrite))
	assert.ElementsMatch(t, []string{"operator"}, policy.Roles())
}
