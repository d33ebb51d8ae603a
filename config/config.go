// Package config loads host-global zone flags from YAML documents.
//
// The zone core is configured through flags on the host global: per-patch
// disable switches and error-reporting toggles. Deployments keep these in a
// small YAML file applied to the global before any patch loads.
package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	zone "github.com/attax1994/zone.js"
)

// Config is the on-disk configuration document.
type Config struct {
	// DisablePatches lists patch names to skip; each becomes a
	// "__Zone_disable_<name>" flag.
	DisablePatches []string `yaml:"disable_patches"`

	// IgnoreUncaughtErrors suppresses the default reporting of unhandled
	// microtask errors.
	IgnoreUncaughtErrors bool `yaml:"ignore_uncaught_errors"`
}

// Load decodes a configuration document from r.
func Load(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil {
		if err == io.EOF {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// LoadFile decodes a configuration document from the named file.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Apply sets the flags the document describes on the host global. Apply must
// run before the patches it gates are loaded; disabling an already loaded
// patch has no effect.
func (c *Config) Apply(g *zone.Global) {
	for _, name := range c.DisablePatches {
		g.SetFlag("__Zone_disable_"+name, true)
	}
	if c.IgnoreUncaughtErrors {
		g.SetFlag(zone.Symbol("ignoreConsoleErrorUncaughtError"), true)
	}
}
