package config

import "strings"

// SecretStrength mirrors the teacher's three-tier secret scoring.
type SecretStrength string

const (
	SecretWeak   SecretStrength = "weak"
	SecretMedium SecretStrength = "medium"
	SecretStrong SecretStrength = "strong"
)

var commonPlaceholders = []string{
	"changeme", "change_me", "your-secret-here", "replace-me", "todo",
	"example", "placeholder", "secret", "password", "xxx", "<redacted>",
}

// SecretValidationResult reports whether a configured secret looks like a
// real, sufficiently strong value or a leftover placeholder.
type SecretValidationResult struct {
	Name     string
	Strength SecretStrength
	Problems []string
}

// ValidateSecret checks a single configured secret against placeholder and
// minimum-length rules, the way the teacher's config/secrets.go validates
// DB/Redis/API credentials before allowing a production boot.
func ValidateSecret(name, value string, minLength int) SecretValidationResult {
	result := SecretValidationResult{Name: name, Strength: SecretStrong}

	if value == "" {
		result.Problems = append(result.Problems, "missing")
		result.Strength = SecretWeak
		return result
	}

	lower := strings.ToLower(value)
	for _, ph := range commonPlaceholders {
		if strings.Contains(lower, ph) {
			result.Problems = append(result.Problems, "looks like a placeholder value")
			result.Strength = SecretWeak
		}
	}

	if len(value) < minLength {
		result.Problems = append(result.Problems, "shorter than minimum length")
		if result.Strength == SecretStrong {
			result.Strength = SecretMedium
		}
	}

	if hasRepeatedChars(value) {
		result.Problems = append(result.Problems, "contains long runs of a repeated character")
		if result.Strength == SecretStrong {
			result.Strength = SecretMedium
		}
	}

	return result
}

func hasRepeatedChars(s string) bool {
	run := 1
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1] {
			run++
			if run >= 6 {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}
