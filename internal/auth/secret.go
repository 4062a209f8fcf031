// Package auth loads the shared secret that guards the gateway.
//
// The secret comes from the BOTGATE_SECRET environment variable or, when
// that is unset, from the first non-comment line of a text file. Lines
// starting with # are comments. Surrounding whitespace is trimmed.
package auth

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// EnvSecret names the environment variable holding the secret.
const EnvSecret = "BOTGATE_SECRET"

// ErrNoSecret is returned when neither source yields a secret.
var ErrNoSecret = errors.New("no secret configured")

// LoadSecret returns the shared secret. BOTGATE_SECRET takes precedence
// over the file at path.
func LoadSecret(path string) (string, error) {
	if env, ok := os.LookupEnv(EnvSecret); ok {
		if s := strings.TrimSpace(env); s != "" {
			return s, nil
		}
		return "", fmt.Errorf("%s is set but empty: %w", EnvSecret, ErrNoSecret)
	}

	if path == "" {
		return "", fmt.Errorf("no secret file path provided and %s is not set: %w", EnvSecret, ErrNoSecret)
	}

	s, err := readSecretFile(path)
	if err != nil {
		return "", fmt.Errorf("load secret file: %w", err)
	}
	if s == "" {
		return "", fmt.Errorf("secret file %q contains no secret: %w", path, ErrNoSecret)
	}
	return s, nil
}

// readSecretFile returns the first non-empty, non-comment line.
func readSecretFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line, nil
	}
	return "", scanner.Err()
}
