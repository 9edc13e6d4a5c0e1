package cgm

import (
	"crypto/sha1"
	"encoding/hex"
	"os"
	"strings"
)

// EnvSentinel is the literal secret value that redirects lookup to the
// environment variable named by secret_env_name.
const EnvSentinel = "env"

// Secret is where the API secret comes from: a literal value or an
// environment variable. It is resolved once when the widget is built.
type Secret interface {
	// Resolve returns the plain secret. lookup is os.LookupEnv in production.
	Resolve(lookup func(string) (string, bool)) (string, error)
	// Describe names the source without revealing the value.
	Describe() string
}

// LiteralSecret is a secret written directly into the config file.
type LiteralSecret string

func (s LiteralSecret) Resolve(func(string) (string, bool)) (string, error) {
	return string(s), nil
}

func (s LiteralSecret) Describe() string {
	if s == "" {
		return "none"
	}
	return "literal"
}

// EnvSecret names the environment variable holding the secret.
type EnvSecret string

func (s EnvSecret) Resolve(lookup func(string) (string, bool)) (string, error) {
	if s == "" {
		return "", &ConfigError{Field: "secret_env_name", Reason: `required when secret = "env"`}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(string(s))
	if !ok || strings.TrimSpace(v) == "" {
		return "", &ConfigError{Field: "secret_env_name", Reason: "environment variable " + string(s) + " is not set"}
	}
	return v, nil
}

func (s EnvSecret) Describe() string {
	return "env:" + string(s)
}

// ParseSecret maps the two config fields onto a Secret variant.
func ParseSecret(secret, envName string) Secret {
	if secret == EnvSentinel {
		return EnvSecret(strings.TrimSpace(envName))
	}
	return LiteralSecret(secret)
}

// HashSecret returns the lower-case hex SHA-1 of secret, the form Nightscout
// expects in the api-secret header. An empty secret hashes to "".
func HashSecret(secret string) string {
	if secret == "" {
		return ""
	}
	sum := sha1.Sum([]byte(secret))
	return hex.EncodeToString(sum[:])
}
