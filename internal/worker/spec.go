// ABOUTME: Declarative description of one worker process
// ABOUTME: Validation rules applied before a worker is spawned

package worker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSpawnInvalid indicates a spec that cannot be spawned.
var ErrSpawnInvalid = errors.New("invalid worker spec")

// Spec describes one child tool provider.
type Spec struct {
	Name    string            `json:"name" yaml:"name" toml:"name"`
	Command string            `json:"command" yaml:"command" toml:"command"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty" toml:"args,omitempty"`
	Cwd     string            `json:"cwd,omitempty" yaml:"cwd,omitempty" toml:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty" toml:"env,omitempty"`
}

// Validate reports why the spec cannot be spawned, wrapping ErrSpawnInvalid.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrSpawnInvalid)
	}
	if strings.TrimSpace(s.Command) == "" {
		return fmt.Errorf("%w: %s: command is required", ErrSpawnInvalid, s.Name)
	}
	if strings.ContainsRune(s.Command, 0) {
		return fmt.Errorf("%w: %s: command contains NUL", ErrSpawnInvalid, s.Name)
	}
	for i, arg := range s.Args {
		if strings.ContainsRune(arg, 0) {
			return fmt.Errorf("%w: %s: argument %d contains NUL", ErrSpawnInvalid, s.Name, i)
		}
	}
	for k := range s.Env {
		if k == "" || strings.ContainsAny(k, "=\x00") {
			return fmt.Errorf("%w: %s: invalid environment key %q", ErrSpawnInvalid, s.Name, k)
		}
	}
	return nil
}
