package adapter

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mcphub-io/mcphub/pkg/corekit"
)

var tokenRE = regexp.MustCompile(`\{\{\s*(env|data)\.([A-Za-z0-9_.]+)\s*\}\}`)

// ResolveErr reports a token resolution failure: an {{env.NAME}} token whose
// variable is not set. Var holds the variable name.
type ResolveErr struct {
	Var string
}

func (e *ResolveErr) Error() string { return fmt.Sprintf("missing env variable: %s", e.Var) }

// Resolve rewrites a configuration value tree (string/map/slice/scalar),
// substituting {{env.NAME}} and {{data.path}} tokens. A string leaf that is
// *entirely* one token is replaced by the referenced value with its native
// JSON type (coercion of primitives); a string leaf containing a token
// alongside other text has the token's value stringified.
func Resolve(value any, data map[string]any, env corekit.EnvMap) (any, error) {
	switch v := value.(type) {
	case string:
		return resolveString(v, data, env)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			rv, err := Resolve(val, data, env)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			rv, err := Resolve(val, data, env)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return value, nil
	}
}

// ResolveStringMap resolves every value of a flat string map (headers,
// query params rendered as strings), used for the request's header/query leaves.
func ResolveStringMap(m map[string]string, data map[string]any, env corekit.EnvMap) (map[string]string, error) {
	out := make(map[string]string, len(m))
	for k, v := range m {
		rv, err := resolveString(v, data, env)
		if err != nil {
			return nil, err
		}
		out[k] = stringify(rv)
	}
	return out, nil
}

func resolveString(s string, data map[string]any, env corekit.EnvMap) (any, error) {
	matches := tokenRE.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	if full := tokenRE.FindStringSubmatch(s); full != nil && full[0] == s {
		return resolveToken(full[1], full[2], data, env)
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(s[last:m[0]])
		kind := s[m[2]:m[3]]
		path := s[m[4]:m[5]]
		val, err := resolveToken(kind, path, data, env)
		if err != nil {
			return nil, err
		}
		b.WriteString(stringify(val))
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

func resolveToken(kind, path string, data map[string]any, env corekit.EnvMap) (any, error) {
	switch kind {
	case "env":
		v, ok := env.Lookup(path)
		if !ok {
			return nil, &ResolveErr{Var: path}
		}
		return v, nil
	case "data":
		return lookupPath(data, path), nil
	default:
		return nil, fmt.Errorf("unknown template namespace: %s", kind)
	}
}

// lookupPath resolves a dotted path against a nested map, returning nil for
// any missing segment.
func lookupPath(data map[string]any, path string) any {
	segments := strings.Split(path, ".")
	var cur any = data
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[seg]
		if !ok {
			return nil
		}
	}
	return cur
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ExtractEnvRefs returns the sorted, deduplicated set of env variable names
// referenced by {{env.NAME}} tokens anywhere in value, used by the loader to
// validate an adapter tool's environment at startup.
func ExtractEnvRefs(value any) []string {
	seen := map[string]bool{}
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			for _, m := range tokenRE.FindAllStringSubmatch(t, -1) {
				if m[1] == "env" {
					seen[m[2]] = true
				}
			}
		case map[string]string:
			for _, s := range t {
				walk(s)
			}
		case map[string]any:
			for _, val := range t {
				walk(val)
			}
		case []any:
			for _, val := range t {
				walk(val)
			}
		}
	}
	walk(value)
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
