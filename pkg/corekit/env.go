package corekit

import (
	"os"
	"strings"

	"dario.cat/mergo"
)

// EnvMap is a flat environment variable map, as consumed by the stdio
// transport and the adapter's template resolver.
type EnvMap map[string]string

// OSEnvMap snapshots the current process environment into an EnvMap.
func OSEnvMap() EnvMap {
	env := make(EnvMap)
	for _, kv := range os.Environ() {
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			env[kv[:idx]] = kv[idx+1:]
		}
	}
	return env
}

// Merge overlays override on top of base, override winning on key conflicts.
// Neither input is mutated.
func (base EnvMap) Merge(override EnvMap) (EnvMap, error) {
	result := make(EnvMap, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}
	if err := mergo.Merge(&result, override, mergo.WithOverride()); err != nil {
		return nil, err
	}
	return result, nil
}

// ToSlice renders the map as "KEY=VALUE" pairs suitable for exec.Cmd.Env.
func (e EnvMap) ToSlice() []string {
	out := make([]string, 0, len(e))
	for k, v := range e {
		out = append(out, k+"="+v)
	}
	return out
}

// Lookup returns the value for name and whether it was present, checking the
// map first and falling back to the live process environment.
func (e EnvMap) Lookup(name string) (string, bool) {
	if v, ok := e[name]; ok {
		return v, true
	}
	return os.LookupEnv(name)
}
