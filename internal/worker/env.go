// ABOUTME: Child environment composition and command resolution
// ABOUTME: PATH from the spec is appended to the inherited PATH, never substituted

package worker

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const pathKey = "PATH"

// buildEnv overlays overrides on base. PATH is concatenated: base first.
func buildEnv(base []string, overrides map[string]string) []string {
	env := make([]string, 0, len(base)+len(overrides))
	index := make(map[string]int, len(base))

	for _, kv := range base {
		key, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if i, seen := index[key]; seen {
			env[i] = kv
			continue
		}
		index[key] = len(env)
		env = append(env, kv)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		value := overrides[key]
		i, seen := index[key]
		if key == pathKey && seen {
			_, inherited, _ := strings.Cut(env[i], "=")
			if inherited != "" && value != "" {
				value = inherited + string(os.PathListSeparator) + value
			} else if value == "" {
				value = inherited
			}
		}
		if seen {
			env[i] = key + "=" + value
			continue
		}
		index[key] = len(env)
		env = append(env, key+"="+value)
	}
	return env
}

// lookupEnv returns the last value of key in env.
func lookupEnv(env []string, key string) string {
	var value string
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			value = v
		}
	}
	return value
}

// resolveCommand finds command on the child's PATH. Commands containing a
// path separator are returned untouched and resolved relative to the cwd by
// os/exec.
func resolveCommand(command string, env []string) string {
	if strings.ContainsRune(command, filepath.Separator) || strings.ContainsRune(command, '/') {
		return command
	}
	for _, dir := range filepath.SplitList(lookupEnv(env, pathKey)) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, command)
		if isExecutable(candidate) {
			return candidate
		}
	}
	return command
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
