package app

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	replica "replicamgr"
	"replicamgr/logging"
)

//go:embed schema/config.schema.json
var configSchemaJSON []byte

// Config is the top-level configuration for the demo host: the
// manager's tunable surface (replica.Config) plus the ambient logging
// router configuration, grounded on the teacher's internal/sim/loop.go
// LoopConfig and internal/app/app.go environment-loading pattern.
type Config struct {
	Manager replica.Config `yaml:"manager"`
	Logging logging.Config `yaml:"logging"`
}

// DefaultConfig returns the full host default configuration.
func DefaultConfig() Config {
	return Config{
		Manager: replica.DefaultConfig(),
		Logging: logging.DefaultConfig(),
	}
}

// LoadOption customizes Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	yamlPath string
}

// WithYAMLFile overrides the manager and logging config with a YAML file's
// contents before environment variables are applied, mirroring
// tuning.Load's read-then-unmarshal shape
// (hellsoul86-voxelcraft.ai/internal/sim/tuning/tuning.go).
func WithYAMLFile(path string) LoadOption {
	return func(o *loadOptions) { o.yamlPath = path }
}

// Load builds a Config starting from DefaultConfig, layering an
// optional YAML file (validated against the embedded JSON schema) and
// then environment variables via github.com/caarlos0/env/v11, the way
// louisbranch-fracturing.space/internal/platform/config.ParseEnv wraps
// the same package.
func Load(opts ...LoadOption) (Config, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg := DefaultConfig()

	if o.yamlPath != "" {
		raw, err := os.ReadFile(o.yamlPath)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := validateManagerYAML(raw); err != nil {
			return cfg, fmt.Errorf("validate config file: %w", err)
		}
		var file struct {
			Manager replica.Config `yaml:"manager"`
			Logging logging.Config `yaml:"logging"`
		}
		file.Manager = cfg.Manager
		file.Logging = cfg.Logging
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
		cfg.Manager = file.Manager
		cfg.Logging = file.Logging
	}

	if err := env.Parse(&cfg.Manager); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := env.Parse(&cfg.Logging); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}

// validateManagerYAML checks the "manager" section of raw against the
// embedded schema before it is unmarshalled into typed fields.
func validateManagerYAML(raw []byte) error {
	schema, err := jsonschema.CompileString("config.schema.json", string(configSchemaJSON))
	if err != nil {
		return fmt.Errorf("compile embedded schema: %w", err)
	}

	var doc struct {
		Manager map[string]any `yaml:"manager"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if doc.Manager == nil {
		return nil
	}

	// jsonschema validates against JSON-decoded values; round-trip through
	// encoding/json to normalize YAML's native int/float types.
	normalized, err := json.Marshal(doc.Manager)
	if err != nil {
		return fmt.Errorf("normalize manager section: %w", err)
	}
	var data any
	if err := json.Unmarshal(normalized, &data); err != nil {
		return fmt.Errorf("normalize manager section: %w", err)
	}
	if err := schema.Validate(data); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}
