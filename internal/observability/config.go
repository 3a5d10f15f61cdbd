package observability

// Config captures opt-in observability toggles, grounded on the
// teacher's observability.Config (internal/observability/config.go).
type Config struct {
	// EnableTracing turns on OpenTelemetry span instrumentation around
	// each update-engine tick and transport send. When false (the
	// default) a no-op tracer provider is installed so instrumentation
	// costs nothing at runtime.
	EnableTracing bool `yaml:"enable_tracing" env:"ENABLE_TRACING"`
}
