package tracing

import "errors"

// Config holds the tracing module configuration.
type Config struct {
	// Endpoint is the OTLP/HTTP collector address (host:port). Empty
	// disables tracing entirely.
	Endpoint string `yaml:"endpoint"`

	// Insecure sends spans over plain HTTP instead of TLS.
	Insecure bool `yaml:"insecure"`

	// SampleRatio is the fraction of turns to trace, 0 to 1.
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName tags exported spans.
	ServiceName string `yaml:"service_name"`
}

func (c *Config) defaults() {
	if c.ServiceName == "" {
		c.ServiceName = "warden"
	}
	if c.SampleRatio == 0 && c.Endpoint != "" {
		c.SampleRatio = 1
	}
}

func (c *Config) validate() error {
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return errors.New("tracing: sample_ratio must be between 0 and 1")
	}
	return nil
}
