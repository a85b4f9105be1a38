package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYAMLProvider(t *testing.T) {
	t.Run("Should load values from a YAML file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o644))

		m := NewManager()
		cfg, err := m.Load(context.Background(), nil, NewDefaultProvider(), NewYAMLProvider(path))
		require.NoError(t, err)
		assert.Equal(t, 7070, cfg.Server.Port)
	})

	t.Run("Should silently skip a missing file", func(t *testing.T) {
		m := NewManager()
		cfg, err := m.Load(context.Background(), nil, NewDefaultProvider(),
			NewYAMLProvider(filepath.Join(t.TempDir(), "missing.yaml")))
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Server.Port)
	})
}

func TestEnvProvider(t *testing.T) {
	t.Run("Should map MCPHUB_HUB_TRACE_BUFFER_SIZE onto hub.trace_buffer_size", func(t *testing.T) {
		t.Setenv("MCPHUB_HUB_TRACE_BUFFER_SIZE", "42")
		m := NewManager()
		cfg, err := m.Load(context.Background(), nil, NewDefaultProvider(), NewEnvProvider())
		require.NoError(t, err)
		assert.Equal(t, 42, cfg.Hub.TraceBufferSize)
	})
}

func TestCLIProvider(t *testing.T) {
	t.Run("Should apply nothing when given an empty map", func(t *testing.T) {
		m := NewManager()
		cfg, err := m.Load(context.Background(), nil, NewDefaultProvider(), NewCLIProvider(nil))
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Server.Port)
	})
}
