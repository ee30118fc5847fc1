package workspace

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvSecrets resolves secrets from environment variables named
// APPSWEEP_SECRET_<SCOPE>_<KEY>, with scope and key uppercased and
// non-alphanumeric runes mapped to underscores.
type EnvSecrets struct{}

func (EnvSecrets) Get(scope, key string) (string, error) {
	name := "APPSWEEP_SECRET_" + envToken(scope) + "_" + envToken(key)
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", fmt.Errorf("secret %s/%s not found (set %s)", scope, key, name)
	}
	return value, nil
}

func envToken(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// FileSecrets resolves secrets from a YAML file of scope -> key -> value.
type FileSecrets struct {
	scopes map[string]map[string]string
}

// LoadFileSecrets reads a secrets file. Keep the file mode 0600.
func LoadFileSecrets(path string) (*FileSecrets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read secrets file %s: %w", path, err)
	}

	var scopes map[string]map[string]string
	if err := yaml.Unmarshal(data, &scopes); err != nil {
		return nil, fmt.Errorf("parse secrets file %s: %w", path, err)
	}
	return &FileSecrets{scopes: scopes}, nil
}

func (f *FileSecrets) Get(scope, key string) (string, error) {
	if values, ok := f.scopes[scope]; ok {
		if value, ok := values[key]; ok && value != "" {
			return value, nil
		}
	}
	return "", fmt.Errorf("secret %s/%s not found in secrets file", scope, key)
}

// ChainSecrets tries each store in order and returns the first hit.
type ChainSecrets []Secrets

func (c ChainSecrets) Get(scope, key string) (string, error) {
	var lastErr error
	for _, s := range c {
		value, err := s.Get(scope, key)
		if err == nil {
			return value, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no secret stores configured")
	}
	return "", lastErr
}
