package manifest

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Config is the top-level manifest.
type Config struct {
	Dispatcher Dispatcher `toml:"dispatcher"`
	Logging    Logging    `toml:"logging"`
	Metrics    Metrics    `toml:"metrics"`
	Auth       Auth       `toml:"auth"`
	Layers     []Layer    `toml:"layer"`
	Groups     []Group    `toml:"group"`
}

// Dispatcher holds the engine switches. AutoEnd is a pointer so an absent
// key keeps the default (true).
type Dispatcher struct {
	AutoEnd     *bool  `toml:"auto_end"`
	AutoAsync   bool   `toml:"auto_async"`
	HostPattern string `toml:"host_pattern"`
}

type Logging struct {
	AccessLog bool     `toml:"access_log"`
	Pretty    bool     `toml:"pretty"`     // colored console line per request (dev)
	BodyPaths []string `toml:"body_paths"` // extra paths whose small JSON bodies get logged
}

type Metrics struct {
	Enabled   bool     `toml:"enabled"`
	Path      string   `toml:"path"` // default /metrics
	SkipPaths []string `toml:"skip_paths"`
}

type Auth struct {
	Enabled bool `toml:"enabled"`
}

// Group is a nested dispatcher mounted by a layer of type "group".
type Group struct {
	Name       string     `toml:"name"`
	Dispatcher Dispatcher `toml:"dispatcher"`
	Layers     []Layer    `toml:"layer"`
}

// AutoEndOr returns the configured auto_end or def when unset.
func (d Dispatcher) AutoEndOr(def bool) bool {
	if d.AutoEnd == nil {
		return def
	}
	return *d.AutoEnd
}

// CompileHostPattern returns nil when no pattern is configured.
func (d Dispatcher) CompileHostPattern() (*regexp.Regexp, error) {
	p := strings.TrimSpace(d.HostPattern)
	if p == "" {
		return nil, nil
	}
	re, err := regexp.Compile(p)
	if err != nil {
		return nil, fmt.Errorf("dispatcher.host_pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, errors.New("dispatcher.host_pattern needs a capture group")
	}
	return re, nil
}

// Validate normalizes layers in place and cross-checks group references.
func (c *Config) Validate() error {
	if _, err := c.Dispatcher.CompileHostPattern(); err != nil {
		return err
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	groups := make(map[string]struct{}, len(c.Groups))
	for i := range c.Groups {
		g := &c.Groups[i]
		g.Name = strings.TrimSpace(g.Name)
		if g.Name == "" {
			return fmt.Errorf("group %d: name is required", i)
		}
		if _, dup := groups[g.Name]; dup {
			return fmt.Errorf("group %q declared twice", g.Name)
		}
		groups[g.Name] = struct{}{}
		if _, err := g.Dispatcher.CompileHostPattern(); err != nil {
			return fmt.Errorf("group %q: %w", g.Name, err)
		}
	}

	if err := validateLayers(c.Layers, groups); err != nil {
		return err
	}
	for i := range c.Groups {
		if err := validateLayers(c.Groups[i].Layers, groups); err != nil {
			return fmt.Errorf("group %q: %w", c.Groups[i].Name, err)
		}
	}
	return nil
}
