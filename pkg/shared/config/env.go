// Package config holds configuration helpers shared by every component:
// environment variable expansion for config files and secret masking.
package config

import (
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches ${VAR} or ${VAR:-default}
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} references in input.
//
// An unset or empty VAR expands to its default when one is given and to the
// empty string otherwise:
//
//	hub:
//	  url: ${HUB_URL:-http://127.0.0.1:8000}
//	  token: ${HUB_API_TOKEN}
func ExpandEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		if value, ok := os.LookupEnv(parts[1]); ok && value != "" {
			return value
		}
		if len(parts) >= 4 && parts[2] != "" {
			return parts[3]
		}
		return ""
	})
}

// ExpandEnvBytes is ExpandEnv for file contents read before unmarshaling
func ExpandEnvBytes(input []byte) []byte {
	return []byte(ExpandEnv(string(input)))
}

// ValidateEnvVars returns the names of referenced variables that are unset.
// References with a default (${VAR:-x}) are never reported.
func ValidateEnvVars(input string) []string {
	matches := envVarPattern.FindAllStringSubmatch(input, -1)
	seen := make(map[string]bool)
	missing := make([]string, 0)

	for _, match := range matches {
		varName := match[1]
		hasDefault := len(match) >= 4 && match[2] != ""
		if seen[varName] || hasDefault {
			continue
		}
		seen[varName] = true

		if os.Getenv(varName) == "" {
			missing = append(missing, varName)
		}
	}

	return missing
}

// LookupFirst returns the first non-empty value among the named variables.
func LookupFirst(names ...string) (string, bool) {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v, true
		}
	}
	return "", false
}

// MaskSecret hides all but the last four characters of a secret.
// Empty secrets are rendered as "(not set)".
func MaskSecret(s string) string {
	switch {
	case s == "":
		return "(not set)"
	case len(s) <= 8:
		return "***"
	default:
		return "***" + s[len(s)-4:]
	}
}

// IsSensitiveName reports whether a variable or field name suggests a secret.
func IsSensitiveName(name string) bool {
	lowerName := strings.ToLower(name)
	for _, keyword := range []string{"password", "pass", "secret", "token", "key", "credential"} {
		if strings.Contains(lowerName, keyword) {
			return true
		}
	}
	return false
}
