package config

// RuntimeConfig is the subset of the configuration that can be changed at
// runtime through the web API. Bus and pin settings are excluded.
type RuntimeConfig struct {
	Polling PollingConfig `yaml:"Polling" json:"Polling"`
}

// Runtime extracts the runtime-safe settings.
func (c *Config) Runtime() RuntimeConfig {
	return RuntimeConfig{Polling: c.Polling}
}

// ApplyRuntime merges rc into c.
func (c *Config) ApplyRuntime(rc RuntimeConfig) {
	c.Polling = rc.Polling
}
