package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotConfigured is returned when no file, value or environment variable supplies the secret.
var ErrNotConfigured = errors.New("secret is not configured")

// Origin tells where a resolved secret came from.
type Origin string

const (
	OriginNone  Origin = ""
	OriginFile  Origin = "file"
	OriginValue Origin = "value"
	OriginEnv   Origin = "env"
)

// Source describes how to load a secret value. Lookup order is File, Value, Env.
type Source struct {
	// Name is used in error messages to give more context about the secret.
	Name string
	// Value is an inline secret value provided via configuration or flags.
	Value string
	// File points to a file containing the secret value.
	File string
	// Env lists environment variables checked in order when File and Value are empty,
	// e.g. OPENAI_API_KEY.
	Env []string
}

// Load returns the resolved, trimmed secret. ErrNotConfigured is wrapped when
// no source supplied it at all.
func Load(src Source) (string, error) {
	secret, _, err := Resolve(src)
	return secret, err
}

// Resolve is Load that also reports the origin of the secret, for logging.
func Resolve(src Source) (string, Origin, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	if file := strings.TrimSpace(src.File); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", OriginNone, fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", OriginNone, fmt.Errorf("%s file %q is empty", name, file)
		}
		return secret, OriginFile, nil
	}

	if secret := strings.TrimSpace(src.Value); secret != "" {
		return secret, OriginValue, nil
	}

	for _, env := range src.Env {
		env = strings.TrimSpace(env)
		if env == "" {
			continue
		}
		if secret := strings.TrimSpace(os.Getenv(env)); secret != "" {
			return secret, OriginEnv, nil
		}
	}

	if len(src.Env) > 0 {
		return "", OriginNone, fmt.Errorf("%s (checked %s): %w", name, strings.Join(src.Env, ", "), ErrNotConfigured)
	}
	return "", OriginNone, fmt.Errorf("%s: %w", name, ErrNotConfigured)
}
