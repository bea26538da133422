package agentcore

import "strings"

// reservedNames are identity names the agent may never adopt (§4.5 step
// 1: "reject reserved names, substitute a default"); these collide with
// operator/system-facing vocabulary used across the public API and admin
// console.
var reservedNames = map[string]bool{
	"observer":  true,
	"admin":     true,
	"system":    true,
	"oracle":    true,
	"architect": true,
	"root":      true,
}

const defaultIdentityName = "Unnamed"

// sanitizeName substitutes the default name for anything reserved or
// blank, case-insensitively.
func sanitizeName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return defaultIdentityName
	}
	if reservedNames[strings.ToLower(trimmed)] {
		return defaultIdentityName
	}
	return trimmed
}
