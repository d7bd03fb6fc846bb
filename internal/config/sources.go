// ABOUTME: Loads MCP server lists (the "config source") in JSON, YAML or TOML
// ABOUTME: Derives gateway settings from the reserved contextSwitcher entry

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/coven-switchboard/internal/routing"
	"github.com/2389/coven-switchboard/internal/worker"
)

// ErrConfigUnavailable indicates no usable server list was found or it could not be parsed.
var ErrConfigUnavailable = errors.New("no usable MCP server configuration")

// EnvSourcePath names the variable that points at the server list.
const EnvSourcePath = "MCP_CONFIG_PATH"

// ReservedServer is the entry that carries switchboard settings. It is never spawned.
const ReservedServer = "contextSwitcher"

// Settings keys read from the reserved entry's env block.
const (
	EnvSwitchingEnabled = "SWITCHING_ENABLED"
	EnvToolSuffix       = "TOOL_SUFFIX"
)

// ServerEntry is one server as written in a server list.
type ServerEntry struct {
	Command string            `json:"command" yaml:"command" toml:"command"`
	Args    []string          `json:"args" yaml:"args" toml:"args"`
	Cwd     string            `json:"cwd,omitempty" yaml:"cwd" toml:"cwd"`
	Env     map[string]string `json:"env,omitempty" yaml:"env" toml:"env"`
}

type sourceFile struct {
	MCPServers map[string]ServerEntry `json:"mcpServers" yaml:"mcpServers" toml:"mcpServers"`
}

// Servers is a parsed server list.
type Servers struct {
	// Path is the absolute path the list was read from.
	Path     string
	Servers  []worker.Spec
	Settings routing.Settings
}

// DefaultSourcePaths returns the search order used when no path is given:
// $MCP_CONFIG_PATH, ./.roo/mcp.json, then ~/.roo/mcp.json.
func DefaultSourcePaths() []string {
	var paths []string
	if p := os.Getenv(EnvSourcePath); p != "" {
		paths = append(paths, p)
	}
	if wd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(wd, ".roo", "mcp.json"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".roo", "mcp.json"))
	}
	return paths
}

// FindSource returns the first existing server list. An explicit path is
// used as is; otherwise searchPaths, or DefaultSourcePaths when empty, are
// tried in order.
func FindSource(explicit string, searchPaths []string) (string, error) {
	if explicit != "" {
		explicit = expandHome(explicit)
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %v", ErrConfigUnavailable, err)
		}
		return filepath.Abs(explicit)
	}

	if len(searchPaths) == 0 {
		searchPaths = DefaultSourcePaths()
	}
	for _, p := range searchPaths {
		p = expandHome(p)
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		return filepath.Abs(p)
	}
	return "", fmt.Errorf("%w: no configuration file found in %s", ErrConfigUnavailable, strings.Join(searchPaths, ", "))
}

// LoadServers reads and parses the server list at path. Servers are returned
// sorted by name. An entry without cwd runs in the current directory.
func LoadServers(path string) (*Servers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrConfigUnavailable, path, err)
	}

	file, err := decodeSource(path, string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrConfigUnavailable, path, err)
	}
	if file.MCPServers == nil {
		return nil, fmt.Errorf("%w: %s has no mcpServers section", ErrConfigUnavailable, path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	wd, _ := os.Getwd()

	out := &Servers{Path: abs, Settings: routing.DefaultSettings()}

	names := make([]string, 0, len(file.MCPServers))
	for name := range file.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entry := expandEntry(file.MCPServers[name])
		if name == ReservedServer {
			out.Settings = settingsFrom(entry.Env)
			continue
		}
		cwd := entry.Cwd
		if cwd == "" {
			cwd = wd
		}
		out.Servers = append(out.Servers, worker.Spec{
			Name:    name,
			Command: entry.Command,
			Args:    entry.Args,
			Cwd:     cwd,
			Env:     entry.Env,
		})
	}

	return out, nil
}

// expandEntry applies ${VAR} expansion to decoded values, so a variable's
// contents never have to be valid JSON, YAML or TOML.
func expandEntry(e ServerEntry) ServerEntry {
	out := ServerEntry{
		Command: expandEnvVars(e.Command),
		Cwd:     expandEnvVars(e.Cwd),
	}
	if e.Args != nil {
		out.Args = make([]string, len(e.Args))
		for i, a := range e.Args {
			out.Args[i] = expandEnvVars(a)
		}
	}
	if e.Env != nil {
		out.Env = make(map[string]string, len(e.Env))
		for k, v := range e.Env {
			out.Env[k] = expandEnvVars(v)
		}
	}
	return out
}

func decodeSource(path, data string) (*sourceFile, error) {
	var file sourceFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(data), &file); err != nil {
			return nil, err
		}
	case ".toml":
		if _, err := toml.Decode(data, &file); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal([]byte(data), &file); err != nil {
			return nil, err
		}
	}
	return &file, nil
}

// settingsFrom reads switchboard settings from the reserved entry's env.
// Only the literal "false" disables switching.
func settingsFrom(env map[string]string) routing.Settings {
	s := routing.DefaultSettings()
	if v, ok := env[EnvSwitchingEnabled]; ok {
		s.SwitchingEnabled = v != "false"
	}
	if v := env[EnvToolSuffix]; v != "" {
		s.Suffix = v
	}
	return s
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
