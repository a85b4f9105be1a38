package mcphub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcphub-io/mcphub/pkg/corekit"
	"github.com/mcphub-io/mcphub/pkg/mcphub/adapter"
)

func TestAdapterService_LoadTools(t *testing.T) {
	t.Run("Should register every enabled tool into the registry", func(t *testing.T) {
		reg := NewRegistry()
		svc := NewAdapterService(reg, corekit.EnvMap{})
		defer svc.Close()

		set := &adapter.ApiToolSet{Tools: []*adapter.ApiToolConfig{
			{ID: "weather", Name: "weather", API: adapter.APICallConfig{URL: "https://example.com/weather", Method: adapter.MethodGET}},
		}}
		errs := svc.LoadTools(context.Background(), corekit.EnvMap{}, set)
		assert.Empty(t, errs)

		tool, ok := reg.Get("weather")
		require.True(t, ok)
		assert.Equal(t, OriginAdapter, tool.Origin.Kind)
		assert.Equal(t, "weather", tool.Origin.ToolID)
	})

	t.Run("Should disable a tool whose required env var is missing", func(t *testing.T) {
		reg := NewRegistry()
		svc := NewAdapterService(reg, corekit.EnvMap{})
		defer svc.Close()

		set := &adapter.ApiToolSet{Tools: []*adapter.ApiToolConfig{
			{
				ID: "secure", Name: "secure",
				API: adapter.APICallConfig{URL: "https://example.com", Method: adapter.MethodGET,
					Headers: map[string]string{"X-Key": "{{env.MISSING_KEY}}"}},
			},
		}}
		errs := svc.LoadTools(context.Background(), corekit.EnvMap{}, set)
		assert.Empty(t, errs)

		_, ok := reg.Get("secure")
		assert.False(t, ok)

		cfg, ok := svc.Config("secure")
		require.True(t, ok)
		assert.True(t, cfg.Disabled)
	})

	t.Run("Should reject a config missing required fields", func(t *testing.T) {
		reg := NewRegistry()
		svc := NewAdapterService(reg, corekit.EnvMap{})
		defer svc.Close()

		set := &adapter.ApiToolSet{Tools: []*adapter.ApiToolConfig{{ID: "bad"}}}
		errs := svc.LoadTools(context.Background(), corekit.EnvMap{}, set)
		assert.NotEmpty(t, errs)
	})

	t.Run("Should unregister a tool dropped from the next load", func(t *testing.T) {
		reg := NewRegistry()
		svc := NewAdapterService(reg, corekit.EnvMap{})
		defer svc.Close()

		first := &adapter.ApiToolSet{Tools: []*adapter.ApiToolConfig{
			{ID: "weather", Name: "weather", API: adapter.APICallConfig{URL: "https://example.com", Method: adapter.MethodGET}},
		}}
		svc.LoadTools(context.Background(), corekit.EnvMap{}, first)
		_, ok := reg.Get("weather")
		require.True(t, ok)

		svc.LoadTools(context.Background(), corekit.EnvMap{}, &adapter.ApiToolSet{})
		_, ok = reg.Get("weather")
		assert.False(t, ok)
	})
}

func TestAdapterService_Execute(t *testing.T) {
	t.Run("Should refuse to execute a tool unknown to the service", func(t *testing.T) {
		svc := NewAdapterService(NewRegistry(), corekit.EnvMap{})
		defer svc.Close()
		_, err := svc.Execute(context.Background(), "missing", nil)
		hubErr, ok := AsHubError(err)
		require.True(t, ok)
		assert.Equal(t, CodeToolNotFound, hubErr.Code)
	})

	t.Run("Should refuse to execute a disabled tool", func(t *testing.T) {
		reg := NewRegistry()
		svc := NewAdapterService(reg, corekit.EnvMap{})
		defer svc.Close()

		set := &adapter.ApiToolSet{Tools: []*adapter.ApiToolConfig{
			{
				ID: "secure", Name: "secure",
				API: adapter.APICallConfig{URL: "https://example.com", Method: adapter.MethodGET,
					Headers: map[string]string{"X-Key": "{{env.MISSING_KEY}}"}},
			},
		}}
		svc.LoadTools(context.Background(), corekit.EnvMap{}, set)

		_, err := svc.Execute(context.Background(), "secure", nil)
		assert.Error(t, err)
	})
}
