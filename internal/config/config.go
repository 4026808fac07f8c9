// Package config loads the onnxrun run configuration.
//
// Values are layered, lowest precedence first: built-in defaults, an
// optional onnxrun.yaml file, ONNXRUN_* environment variables and finally
// command line flags that were explicitly set. The result is a plain value
// handed to the executor; nothing is kept in package state.
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/born-ml/onnxrun/internal/onnx"
	"github.com/born-ml/onnxrun/internal/parallel"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "onnxrun.yaml"

// EnvPrefix prefixes the environment variables read by Load.
const EnvPrefix = "ONNXRUN_"

// Config holds the settings shared by the commands.
type Config struct {
	Verbose    bool    `koanf:"verbose"`
	LabelSet   string  `koanf:"label_set"`
	LabelsFile string  `koanf:"labels_file"`
	TopK       int     `koanf:"top_k"`
	Tolerance  float64 `koanf:"tolerance"`
	Order      string  `koanf:"order"`
	Parallel   bool    `koanf:"parallel"`
	Workers    int     `koanf:"workers"`

	// File is the config file that was read, empty when none was.
	File string `koanf:"-"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		TopK:      5,
		Tolerance: 1e-4,
		Order:     onnx.OrderResolve.String(),
		Parallel:  true,
	}
}

func defaultMap() map[string]any {
	d := Defaults()
	return map[string]any{
		"verbose":     d.Verbose,
		"label_set":   d.LabelSet,
		"labels_file": d.LabelsFile,
		"top_k":       d.TopK,
		"tolerance":   d.Tolerance,
		"order":       d.Order,
		"parallel":    d.Parallel,
		"workers":     d.Workers,
	}
}

// flagKeys maps flag names whose config key is not the snake_case form of
// the flag.
var flagKeys = map[string]string{
	"labels": "label_set",
}

// Load builds the configuration. cfgFile names an explicit config file
// (which must exist); when empty, onnxrun.yaml is used if present. flags may
// be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultMap(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "load defaults")
	}

	path := cfgFile
	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load environment")
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, errors.Wrap(err, "load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.File = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.TopK <= 0 {
		return errors.Errorf("top_k must be positive, got %d", c.TopK)
	}
	if c.Tolerance < 0 {
		return errors.Errorf("tolerance must not be negative, got %g", c.Tolerance)
	}
	if c.Workers < 0 {
		return errors.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if _, err := onnx.ParseOrder(c.Order); err != nil {
		return err
	}
	return nil
}

// Exec converts the configuration into executor settings.
func (c *Config) Exec() (onnx.ExecConfig, error) {
	order, err := onnx.ParseOrder(c.Order)
	if err != nil {
		return onnx.ExecConfig{}, err
	}
	par := parallel.Sequential()
	if c.Parallel {
		par = parallel.DefaultConfig()
		if c.Workers > 0 {
			par = par.WithWorkers(c.Workers)
		}
	}
	return onnx.ExecConfig{
		Order:    order,
		Verbose:  c.Verbose,
		Parallel: par,
	}, nil
}
