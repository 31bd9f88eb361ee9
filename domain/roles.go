package domain

import "strings"

// Role is an independent authentication domain. Tokens, cookies, and
// route rules for different roles never interact.
type Role string

const (
	RoleUser   Role = "user"
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
)

// ParseRole returns the role for its wire name, or false for anything else.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleVendor, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// Classification is the result of matching a path against one role's rules.
type Classification int

const (
	// ClassNone means the path matches none of the role's prefixes.
	ClassNone Classification = iota
	// ClassPublic marks auth pages (login/register) that should bounce
	// an already-authenticated principal to the role's home.
	ClassPublic
	// ClassProtected marks paths that require a valid or refreshable
	// access token.
	ClassProtected
)

// RoleRule holds the static route classification for one role.
type RoleRule struct {
	Role              Role
	LoginPath         string
	HomePath          string
	PublicPrefixes    []string
	ProtectedPrefixes []string
}

// Classify matches a request path against the rule's prefix sets.
// Matching is segment-aware: "/vendor" and "/vendor/" classify the
// same, and "/vendorx" never matches the "/vendor" prefix. Public
// prefixes win over protected ones so that an auth page nested under a
// protected tree is still treated as public.
func (r RoleRule) Classify(path string) Classification {
	path = normalizePath(path)
	for _, p := range r.PublicPrefixes {
		if matchesPrefix(path, p) {
			return ClassPublic
		}
	}
	for _, p := range r.ProtectedPrefixes {
		if matchesPrefix(path, p) {
			return ClassProtected
		}
	}
	return ClassNone
}

// DefaultRules returns the route table in guard evaluation order:
// user, then vendor, then admin. The first rule that classifies a path
// wins, so overlapping prefixes across roles are a configuration
// error, not a runtime case.
func DefaultRules() []RoleRule {
	return []RoleRule{
		{
			Role:      RoleUser,
			LoginPath: "/auth/login",
			HomePath:  "/",
			PublicPrefixes: []string{
				"/auth/login",
				"/auth/register",
				"/auth/forgot-password",
			},
			ProtectedPrefixes: []string{
				"/profile",
				"/settings",
				"/dashboard",
				"/orders",
				"/saved-vendors",
			},
		},
		{
			Role:      RoleVendor,
			LoginPath: "/auth/vendor/login",
			HomePath:  "/vendor/dashboard",
			PublicPrefixes: []string{
				"/auth/vendor/login",
				"/auth/vendor/register",
			},
			ProtectedPrefixes: []string{
				"/vendor",
			},
		},
		{
			Role:      RoleAdmin,
			LoginPath: "/auth/admin/login",
			HomePath:  "/admin/dashboard",
			PublicPrefixes: []string{
				"/auth/admin/login",
			},
			ProtectedPrefixes: []string{
				"/admin",
			},
		},
	}
}

// RuleFor returns the rule for a role from a rule set.
func RuleFor(rules []RoleRule, role Role) (RoleRule, bool) {
	for _, r := range rules {
		if r.Role == role {
			return r, true
		}
	}
	return RoleRule{}, false
}

// normalizePath strips any query or fragment that leaked into the path
// and collapses a trailing slash, so classification never depends on
// either.
func normalizePath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}

// matchesPrefix reports whether path falls under prefix on a path
// segment boundary.
func matchesPrefix(path, prefix string) bool {
	prefix = normalizePath(prefix)
	if prefix == "/" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
