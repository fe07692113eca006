// Package config loads the gateway's per-model configuration from YAML
// and the two documented environment-variable passthroughs.
//
// Grounded on the teacher's config layer style (YAML via
// gopkg.in/yaml.v3, struct tags mirroring llm/config/types.go's
// ProviderConfig/ModelConfig) and on env-var loading via
// github.com/caarlos0/env/v11, the pattern used throughout the teacher
// repo's internal/* packages for environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/Dieugene/llm-gateway/gatewaytypes"
)

// modelYAML is the on-disk shape of one model's configuration.
type modelYAML struct {
	Provider             string `yaml:"provider"`
	Endpoint             string `yaml:"endpoint"`
	APIKeyEnv            string `yaml:"api_key_env"`
	ModelName            string `yaml:"model_name"`
	MaxRequestsPerMinute int    `yaml:"max_requests_per_minute"`
	MaxTokensPerMinute   int    `yaml:"max_tokens_per_minute"`
	BatchSize            int    `yaml:"batch_size"`
	BatchTimeoutMs       int    `yaml:"batch_timeout_ms"`
}

type fileYAML struct {
	Models map[string]modelYAML `yaml:"models"`
}

// Passthrough holds the two environment variables the gateway exposes
// for external collaborators (the document-processing pipeline's storage
// layer) without itself reading their contents — spec.md's Out of scope
// note that those concerns are external clients.
type Passthrough struct {
	StorageBasePath  string `env:"STORAGE_BASE_PATH"`
	StorageCachePath string `env:"STORAGE_CACHE_PATH"`
}

// LoadPassthrough parses Passthrough from the process environment.
func LoadPassthrough() (Passthrough, error) {
	var p Passthrough
	if err := env.Parse(&p); err != nil {
		return Passthrough{}, fmt.Errorf("parse passthrough env: %w", err)
	}
	return p, nil
}

// LoadModels reads a YAML file of model configurations, resolving each
// model's API key from the environment variable its entry names.
func LoadModels(path string) (map[string]gatewaytypes.ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model config %s: %w", path, err)
	}

	var raw fileYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse model config %s: %w", path, err)
	}

	out := make(map[string]gatewaytypes.ModelConfig, len(raw.Models))
	for name, m := range raw.Models {
		apiKey := os.Getenv(m.APIKeyEnv)
		cfg := gatewaytypes.ModelConfig{
			Provider:             m.Provider,
			Endpoint:             m.Endpoint,
			APIKey:               apiKey,
			ModelName:            m.ModelName,
			MaxRequestsPerMinute: m.MaxRequestsPerMinute,
			MaxTokensPerMinute:   m.MaxTokensPerMinute,
			BatchSize:            m.BatchSize,
			BatchTimeout:         time.Duration(m.BatchTimeoutMs) * time.Millisecond,
		}
		out[name] = cfg.WithDefaults()
	}
	return out, nil
}
