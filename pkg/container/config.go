package container

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Config contains configuration options for the bean factory
type Config struct {
	// EnableMetrics enables per-bean metrics
	EnableMetrics bool
	// MetricsRegisterer receives Prometheus collectors when set
	MetricsRegisterer prometheus.Registerer
	// Metrics replaces the built-in collector; EnableMetrics and
	// MetricsRegisterer are ignored when set
	Metrics MetricsCollector
	// Logger for factory operations (uses slog.Default if nil)
	Logger *slog.Logger
	// AllowDefinitionOverriding lets a later definition replace an earlier one with the same name
	AllowDefinitionOverriding bool
	// Types maps class names to Go types (uses the package Types registry if nil)
	Types *TypeRegistry
	// Environment resolves ${...} placeholders in literal values; nil disables resolution
	Environment *Environment
	// PostProcessors are applied to every bean the factory creates
	PostProcessors []BeanPostProcessor
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		EnableMetrics:             true,
		Logger:                    slog.Default(),
		AllowDefinitionOverriding: true,
		Types:                     Types,
	}
}
