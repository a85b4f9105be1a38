package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Source is one layer of the config stack. Sources are applied in the order
// they're passed to Initialize/Manager.Load, each overriding keys the
// previous ones set.
type Source interface {
	// Name identifies the source for error messages and diagnostics.
	Name() string
	// Apply loads this source's values into k.
	Apply(k *koanf.Koanf) error
}

// defaultSource seeds k from Default()'s struct tags.
type defaultSource struct{}

// NewDefaultProvider returns the Source that loads Default()'s field values.
func NewDefaultProvider() Source { return defaultSource{} }

func (defaultSource) Name() string { return "default" }

func (defaultSource) Apply(k *koanf.Koanf) error {
	return k.Load(structs.Provider(*Default(), "koanf"), nil)
}

// envSource reads MCPHUB_-prefixed environment variables, translating
// MCPHUB_SERVER_PORT into the "server.port" key.
type envSource struct{ prefix string }

// NewEnvProvider returns the Source reading env vars prefixed "MCPHUB_".
func NewEnvProvider() Source { return envSource{prefix: "MCPHUB_"} }

func (e envSource) Name() string { return "env" }

func (e envSource) Apply(k *koanf.Koanf) error {
	return k.Load(env.Provider(env.Opt{
		Prefix: e.prefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, e.prefix))
			key = strings.Replace(key, "_", ".", 1)
			return key, value
		},
	}), nil)
}

// yamlSource reads a YAML config document from disk. A missing file is not
// an error: YAML is an optional layer, present only when an operator points
// --config at one.
type yamlSource struct{ path string }

// NewYAMLProvider returns the Source reading the YAML document at path.
func NewYAMLProvider(path string) Source { return yamlSource{path: path} }

func (y yamlSource) Name() string { return "yaml:" + y.path }

func (y yamlSource) Apply(k *koanf.Koanf) error {
	data, err := os.ReadFile(y.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", y.path, err)
	}
	return k.Load(rawbytes.Provider(data), yaml.Parser())
}

// cliSource overlays a flat map of CLI flag overrides, keyed by the same
// dotted koanf keys as the rest of the stack (e.g. "server.port").
type cliSource struct{ values map[string]any }

// NewCLIProvider returns the Source overlaying CLI flag values. Only keys
// present in values are applied; flags the caller never set are absent.
func NewCLIProvider(values map[string]any) Source { return cliSource{values: values} }

func (cliSource) Name() string { return "cli" }

func (c cliSource) Apply(k *koanf.Koanf) error {
	if len(c.values) == 0 {
		return nil
	}
	return k.Load(confmap.Provider(c.values, "."), nil)
}
