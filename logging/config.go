package logging

import "time"

// Config tunes the Router: which sinks are enabled, how big its queue
// is, the minimum severity it forwards, and static fields merged into
// every event's Extra map.
type Config struct {
	EnabledSinks     []string       `yaml:"enabled_sinks" env:"LOG_SINKS" envSeparator:","`
	BufferSize       int            `yaml:"buffer_size" env:"LOG_BUFFER_SIZE"`
	MinimumSeverity  Severity       `yaml:"minimum_severity" env:"LOG_MIN_SEVERITY"`
	Fields           map[string]any `yaml:"-"`
	DropWarnInterval time.Duration  `yaml:"drop_warn_interval" env:"LOG_DROP_WARN_INTERVAL"`
}

// DefaultConfig returns sensible router defaults: a console sink at info
// severity with a 512-event buffer.
func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{"console"},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
	}
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}
