package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleRule_Classify(t *testing.T) {
	rules := DefaultRules()
	vendor, ok := RuleFor(rules, RoleVendor)
	assert.True(t, ok)
	user, ok := RuleFor(rules, RoleUser)
	assert.True(t, ok)
	admin, ok := RuleFor(rules, RoleAdmin)
	assert.True(t, ok)

	t.Run("protected prefixes match nested paths", func(t *testing.T) {
		assert.Equal(t, ClassProtected, vendor.Classify("/vendor/dashboard/packages"))
		assert.Equal(t, ClassProtected, admin.Classify("/admin/complaints"))
		assert.Equal(t, ClassProtected, user.Classify("/orders/123"))
	})

	t.Run("prefix without trailing slash classifies the same", func(t *testing.T) {
		assert.Equal(t, ClassProtected, vendor.Classify("/vendor"))
		assert.Equal(t, ClassProtected, vendor.Classify("/vendor/"))
		assert.Equal(t, ClassProtected, admin.Classify("/admin"))
	})

	t.Run("sibling path sharing a prefix string does not match", func(t *testing.T) {
		assert.Equal(t, ClassNone, vendor.Classify("/vendorx"))
		assert.Equal(t, ClassNone, vendor.Classify("/vendors"))
		assert.Equal(t, ClassNone, admin.Classify("/administrator"))
	})

	t.Run("query strings and fragments never affect classification", func(t *testing.T) {
		assert.Equal(t, ClassProtected, vendor.Classify("/vendor/dashboard?tab=packages"))
		assert.Equal(t, ClassPublic, user.Classify("/auth/login?next=/profile"))
		assert.Equal(t, ClassNone, vendor.Classify("/pricing?ref=/vendor/"))
	})

	t.Run("public prefixes classify auth pages", func(t *testing.T) {
		assert.Equal(t, ClassPublic, user.Classify("/auth/login"))
		assert.Equal(t, ClassPublic, user.Classify("/auth/register"))
		assert.Equal(t, ClassPublic, user.Classify("/auth/forgot-password"))
		assert.Equal(t, ClassPublic, vendor.Classify("/auth/vendor/login"))
		assert.Equal(t, ClassPublic, admin.Classify("/auth/admin/login"))
	})

	t.Run("vendor auth pages do not match the user rule", func(t *testing.T) {
		assert.Equal(t, ClassNone, user.Classify("/auth/vendor/login"))
		assert.Equal(t, ClassNone, user.Classify("/auth/admin/login"))
	})

	t.Run("unrelated paths match nothing", func(t *testing.T) {
		assert.Equal(t, ClassNone, user.Classify("/"))
		assert.Equal(t, ClassNone, user.Classify("/vendors/gallery"))
		assert.Equal(t, ClassNone, admin.Classify("/about"))
	})

	t.Run("classification is a pure function", func(t *testing.T) {
		paths := []string{"/vendor/dashboard", "/auth/login", "/about", "/admin"}
		for _, p := range paths {
			for _, rule := range rules {
				assert.Equal(t, rule.Classify(p), rule.Classify(p), "path %s role %s", p, rule.Role)
			}
		}
	})
}

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"user", "vendor", "admin"} {
		role, ok := ParseRole(valid)
		assert.True(t, ok)
		assert.Equal(t, Role(valid), role)
	}

	for _, invalid := range []string{"", "root", "Users", "ADMIN"} {
		_, ok := ParseRole(invalid)
		assert.False(t, ok, "%q should not parse", invalid)
	}
}

func TestRuleFor(t *testing.T) {
	rules := DefaultRules()

	rule, ok := RuleFor(rules, RoleAdmin)
	assert.True(t, ok)
	assert.Equal(t, "/auth/admin/login", rule.LoginPath)
	assert.Equal(t, "/admin/dashboard", rule.HomePath)

	_, ok = RuleFor(rules, Role("ghost"))
	assert.False(t, ok)
}
