package catalog

import "time"

// DefaultTimeout bounds each call to the product directory.
const DefaultTimeout = 5 * time.Second

// Config represents the configuration for the product directory client
type Config struct {
	// BaseURL is the product directory root, e.g. http://localhost:3001
	BaseURL string

	// Timeout applies to every request. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrInvalidConfig
	}
	if c.Timeout < 0 {
		return ErrInvalidConfig
	}
	return nil
}
