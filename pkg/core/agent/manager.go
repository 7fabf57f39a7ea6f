package agent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"weaveinsight/pkg/core/llm"
	"weaveinsight/pkg/core/model"
)

// Config is the provider-wiring configuration loaded from config/models.yaml,
// adapted from y437li-agentic_valuation/pkg/core/agent/manager.go's
// ActiveProvider/Agents override shape.
type Config struct {
	ActiveProvider string                           `yaml:"active_provider"`
	Agents         map[model.AgentName]AgentConfig   `yaml:"agents"`
}

// AgentConfig optionally overrides the global provider for one agent.
type AgentConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// Registry resolves an model.AgentName to the llm.Provider it should call,
// honoring a per-agent override before falling back to the global active
// provider. Generalized from Manager's GetProvider/GetProviderByName, with
// the teacher's ad-hoc debug logging dropped in favor of structured events
// raised by the Runner that uses this registry.
type Registry struct {
	config    Config
	providers map[string]llm.Provider
}

// NewRegistry builds a Registry over a fixed set of named providers (e.g.
// "gemini", "mock"); callers construct these once at startup.
func NewRegistry(config Config, providers map[string]llm.Provider) *Registry {
	return &Registry{config: config, providers: providers}
}

// LoadConfig reads the provider-wiring Config from a YAML file at path,
// adapted from the teacher's cmd/api/main.go (which read config/models.yaml
// with yaml.Unmarshal directly in main); this moves that into a reusable,
// error-checked loader instead of silently swallowing a read or parse
// failure.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading provider config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing provider config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve returns the provider for agentType, or an error naming the
// missing provider so callers can surface a ConfigurationError.
func (r *Registry) Resolve(agentType model.AgentName) (llm.Provider, error) {
	if cfg, ok := r.config.Agents[agentType]; ok && cfg.Provider != "" {
		if p, ok := r.providers[cfg.Provider]; ok {
			return p, nil
		}
		return nil, fmt.Errorf("agent %s: configured provider %q not registered", agentType, cfg.Provider)
	}
	if p, ok := r.providers[r.config.ActiveProvider]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("no active provider %q registered", r.config.ActiveProvider)
}
