package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcphub-io/mcphub/pkg/corekit"
)

func TestResolve(t *testing.T) {
	env := corekit.EnvMap{"API_KEY": "secret-123"}
	data := map[string]any{"user": map[string]any{"id": "u1"}, "count": 3}

	t.Run("Should preserve native type for a string leaf that is entirely one token", func(t *testing.T) {
		v, err := Resolve("{{data.count}}", data, env)
		require.NoError(t, err)
		assert.Equal(t, 3, v)
	})

	t.Run("Should stringify a token embedded in surrounding text", func(t *testing.T) {
		v, err := Resolve("id=/{{data.user.id}}/done", data, env)
		require.NoError(t, err)
		assert.Equal(t, "id=/u1/done", v)
	})

	t.Run("Should resolve env tokens", func(t *testing.T) {
		v, err := Resolve("Bearer {{env.API_KEY}}", data, env)
		require.NoError(t, err)
		assert.Equal(t, "Bearer secret-123", v)
	})

	t.Run("Should fail on a missing env variable", func(t *testing.T) {
		_, err := Resolve("{{env.MISSING}}", data, env)
		require.Error(t, err)
		var re *ResolveErr
		assert.ErrorAs(t, err, &re)
		assert.Equal(t, "MISSING", re.Var)
	})

	t.Run("Should resolve a missing data path to nil rather than erroring", func(t *testing.T) {
		v, err := Resolve("{{data.user.missing}}", data, env)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("Should recurse through maps and slices", func(t *testing.T) {
		v, err := Resolve(map[string]any{
			"a": "{{data.count}}",
			"b": []any{"{{data.user.id}}", "literal"},
		}, data, env)
		require.NoError(t, err)
		m := v.(map[string]any)
		assert.Equal(t, 3, m["a"])
		assert.Equal(t, []any{"u1", "literal"}, m["b"])
	})

	t.Run("Should leave non-string scalars untouched", func(t *testing.T) {
		v, err := Resolve(42, data, env)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	})
}

func TestResolveStringMap(t *testing.T) {
	env := corekit.EnvMap{"TOKEN": "abc"}
	t.Run("Should resolve every value of a flat map", func(t *testing.T) {
		out, err := ResolveStringMap(map[string]string{"Authorization": "Bearer {{env.TOKEN}}"}, nil, env)
		require.NoError(t, err)
		assert.Equal(t, "Bearer abc", out["Authorization"])
	})
}

func TestExtractEnvRefs(t *testing.T) {
	t.Run("Should collect env refs across nested structures", func(t *testing.T) {
		refs := ExtractEnvRefs(map[string]any{
			"headers": map[string]string{"X-Key": "{{env.KEY_A}}"},
			"query":   map[string]any{"token": "{{env.KEY_B}}"},
			"list":    []any{"{{env.KEY_A}}"},
		})
		assert.ElementsMatch(t, []string{"KEY_A", "KEY_B"}, refs)
	})

	t.Run("Should return nothing for a value with no tokens", func(t *testing.T) {
		assert.Empty(t, ExtractEnvRefs("plain string"))
	})
}
