// Package commands implements the onnxrun subcommands.
package commands

import (
	"context"

	"github.com/born-ml/onnxrun/internal/config"
)

type configKey struct{}

// WithConfig returns a context carrying cfg for the subcommands.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, configKey{}, cfg)
}

// ConfigFrom returns the configuration stored by WithConfig, or the
// defaults when there is none.
func ConfigFrom(ctx context.Context) *config.Config {
	if ctx != nil {
		if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok && cfg != nil {
			return cfg
		}
	}
	cfg := config.Defaults()
	return &cfg
}
