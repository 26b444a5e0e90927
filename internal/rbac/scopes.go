package rbac

import "strings"

// Scope names. Keep these stable; they are part of issued tokens.
const (
	ScopeCallsRead = "calls:read"

	// ScopeAll grants every scope. Issue sparingly.
	ScopeAll = "*"
)

// Grants reports whether the space-separated scope string held carries the
// required scope.
func Grants(held, required string) bool {
	for _, s := range strings.Fields(held) {
		if s == ScopeAll || s == required {
			return true
		}
	}
	return false
}
