package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineSpec names one roster member and the model serving it.
type EngineSpec struct {
	ID    string `yaml:"id"`
	Role  string `yaml:"role"`
	Model string `yaml:"model"`
}

type Config struct {
	Server struct {
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`

	Auth struct {
		Enabled bool     `yaml:"enabled"`
		APIKeys []string `yaml:"apiKeys"`
	} `yaml:"auth"`

	Engines struct {
		APIKey             string       `yaml:"apiKey"`
		DefaultModel       string       `yaml:"defaultModel"`
		Roster             []EngineSpec `yaml:"roster"`
		Arbiter            EngineSpec   `yaml:"arbiter"`
		CallTimeoutSeconds int          `yaml:"callTimeoutSeconds"`
	} `yaml:"engines"`

	RateGuard struct {
		Capacity               float64 `yaml:"capacity"`
		WindowSeconds          int     `yaml:"windowSeconds"`
		BreakerThreshold       int     `yaml:"breakerThreshold"`
		BreakerWindowSeconds   int     `yaml:"breakerWindowSeconds"`
		BreakerCooldownSeconds int     `yaml:"breakerCooldownSeconds"`
	} `yaml:"rateGuard"`

	Memory struct {
		RetentionHours int `yaml:"retentionHours"`
	} `yaml:"memory"`

	Research struct {
		RetentionHours      int `yaml:"retentionHours"`
		PhaseTimeoutSeconds int `yaml:"phaseTimeoutSeconds"`
	} `yaml:"research"`
}

// Load reads the YAML config and applies defaults for anything omitted.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Engines.DefaultModel == "" {
		c.Engines.DefaultModel = "gpt-4o-mini"
	}
	if len(c.Engines.Roster) == 0 {
		c.Engines.Roster = []EngineSpec{
			{ID: "researcher", Role: "primary_researcher"},
			{ID: "reviewer", Role: "critical_reviewer"},
			{ID: "specialist", Role: "domain_specialist"},
		}
	}
	if c.Engines.Arbiter.ID == "" {
		c.Engines.Arbiter = EngineSpec{ID: "arbiter", Role: "arbiter"}
	}
	if c.Engines.CallTimeoutSeconds == 0 {
		c.Engines.CallTimeoutSeconds = 60
	}
	if c.RateGuard.Capacity == 0 {
		c.RateGuard.Capacity = 60
	}
	if c.RateGuard.WindowSeconds == 0 {
		c.RateGuard.WindowSeconds = 60
	}
	if c.RateGuard.BreakerThreshold == 0 {
		c.RateGuard.BreakerThreshold = 10
	}
	if c.RateGuard.BreakerWindowSeconds == 0 {
		c.RateGuard.BreakerWindowSeconds = 60
	}
	if c.RateGuard.BreakerCooldownSeconds == 0 {
		c.RateGuard.BreakerCooldownSeconds = 30
	}
	if c.Memory.RetentionHours == 0 {
		c.Memory.RetentionHours = 72
	}
	if c.Research.RetentionHours == 0 {
		c.Research.RetentionHours = 24
	}
	if c.Research.PhaseTimeoutSeconds == 0 {
		c.Research.PhaseTimeoutSeconds = 120
	}
}

func (c *Config) validate() error {
	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("auth enabled but no apiKeys configured")
	}
	return nil
}

// Models maps engine id -> model for the inference client.
func (c *Config) Models() map[string]string {
	models := make(map[string]string, len(c.Engines.Roster)+1)
	for _, spec := range c.Engines.Roster {
		if spec.Model != "" {
			models[spec.ID] = spec.Model
		}
	}
	if c.Engines.Arbiter.Model != "" {
		models[c.Engines.Arbiter.ID] = c.Engines.Arbiter.Model
	}
	return models
}

func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Engines.CallTimeoutSeconds) * time.Second
}

func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.RateGuard.WindowSeconds) * time.Second
}

func (c *Config) BreakerWindow() time.Duration {
	return time.Duration(c.RateGuard.BreakerWindowSeconds) * time.Second
}

func (c *Config) BreakerCooldown() time.Duration {
	return time.Duration(c.RateGuard.BreakerCooldownSeconds) * time.Second
}

func (c *Config) MemoryRetention() time.Duration {
	return time.Duration(c.Memory.RetentionHours) * time.Hour
}

func (c *Config) ResearchRetention() time.Duration {
	return time.Duration(c.Research.RetentionHours) * time.Hour
}

func (c *Config) PhaseTimeout() time.Duration {
	return time.Duration(c.Research.PhaseTimeoutSeconds) * time.Second
}
