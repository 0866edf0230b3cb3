// Package config defines the optional servpack.hcl configuration
// file.
package config

import (
	"fmt"
	"time"
)

// Config carries defaults for the install pipeline. Command line
// flags take precedence over every field.
type Config struct {
	Destination string   `hcl:"destination,optional"`
	Threads     int      `hcl:"threads,optional"`
	Exclude     []string `hcl:"exclude,optional"`
	KeepConfig  bool     `hcl:"keep_config,optional"`
	KeepLoader  bool     `hcl:"keep_loader,optional"`
	Link        string   `hcl:"link,optional"`

	// HTTPTimeout is a Go duration applied to the shared HTTP
	// client, e.g. "90s".
	HTTPTimeout string `hcl:"http_timeout,optional"`

	Loaders []Loader `hcl:"loader,block"`
}

// Loader overrides the installer location for a Minecraft version
// prefix.
type Loader struct {
	Version string `hcl:"version,label"`
	URL     string `hcl:"url,attr"`
}

// Timeout parses HTTPTimeout, zero when unset.
func (c *Config) Timeout() (time.Duration, error) {
	if c.HTTPTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.HTTPTimeout)
	if err != nil {
		return 0, fmt.Errorf("http_timeout: %w", err)
	}
	return d, nil
}
