// Package config loads and validates the workspace configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks configuration errors that must abort the run before any
// workspace is touched.
var ErrInvalid = errors.New("invalid configuration")

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Workspace describes one workspace to sweep. The credential for Endpoint is
// resolved at run time from ApplicationID against the secret scope.
type Workspace struct {
	Name          string `json:"name" yaml:"name"`
	Endpoint      string `json:"endpoint" yaml:"endpoint"`
	ApplicationID string `json:"application_id" yaml:"application_id"`
}

// LoadWorkspaces reads the workspace configuration file: a JSON array of
// workspace objects, or the same structure in YAML when the file has a
// .yaml/.yml extension. ${VAR} references are interpolated from the
// environment before parsing.
func LoadWorkspaces(path string) ([]Workspace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read workspace config %s: %v", ErrInvalid, path, err)
	}

	interpolated := []byte(interpolateEnv(string(data)))

	var workspaces []Workspace
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(interpolated, &workspaces)
	default:
		err = json.Unmarshal(interpolated, &workspaces)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse workspace config %s: %v", ErrInvalid, path, err)
	}

	if err := validate(workspaces); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return workspaces, nil
}

func validate(workspaces []Workspace) error {
	if len(workspaces) == 0 {
		return fmt.Errorf("workspace config is empty")
	}

	seen := make(map[string]bool, len(workspaces))
	for i, ws := range workspaces {
		if ws.Name == "" {
			return fmt.Errorf("workspace[%d]: name is required", i)
		}
		if seen[ws.Name] {
			return fmt.Errorf("workspace[%d]: duplicate name %q", i, ws.Name)
		}
		seen[ws.Name] = true

		if ws.Endpoint == "" {
			return fmt.Errorf("workspace %q: endpoint is required", ws.Name)
		}
		u, err := url.Parse(ws.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("workspace %q: endpoint %q is not an absolute URL", ws.Name, ws.Endpoint)
		}

		if ws.ApplicationID == "" {
			return fmt.Errorf("workspace %q: application_id is required", ws.Name)
		}
		if envVarPattern.MatchString(ws.ApplicationID) {
			matches := envVarPattern.FindStringSubmatch(ws.ApplicationID)
			return fmt.Errorf("workspace %q: environment variable ${%s} is not set", ws.Name, matches[1])
		}
	}
	return nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (caught by validation).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}
