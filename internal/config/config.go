// Package config holds the monitor's explicit configuration: management
// credentials, port offset, refresh rate and node coloring.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dm/gridmon/internal/model"
)

// Defaults used when neither a flag nor an environment variable is set.
const (
	DefaultRefreshRate          = 2000 * time.Millisecond
	DefaultUsername             = "admin"
	DefaultPassword             = "jboss"
	DefaultManagementPortOffset = 1232
	DefaultMaxConcurrency       = 16
	DefaultContainer            = "clustered"
	DefaultNodes                = "127.0.0.1:11222"
)

// Environment variables recognised by FromEnv.
const (
	EnvRefreshRate = "GRIDMON_REFRESH_RATE" // milliseconds
	EnvUsername    = "GRIDMON_MGMT_USER"
	EnvPassword    = "GRIDMON_MGMT_PASS"
	EnvPortOffset  = "GRIDMON_MGMT_PORT_OFFSET"
	EnvNodeColor   = "GRIDMON_NODE_COLOR"
	EnvNodes       = "GRIDMON_NODES"
	EnvLogLevel    = "GRIDMON_LOG_LEVEL"
)

// Error reports an invalid configuration. It is fatal at startup.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Config holds everything the pollers need. A nil NodeColor selects
// multi-color mode.
type Config struct {
	RefreshRate          time.Duration
	Username             string
	Password             string
	ManagementPortOffset int
	NodeColor            *model.Color
	Container            string

	// NodeTimeout bounds each per-node query. Zero derives it from
	// RefreshRate (see EffectiveNodeTimeout).
	NodeTimeout    time.Duration
	MaxConcurrency int

	// Membership: a static node list, or DNS names resolved on DNSPort.
	Nodes    []string
	DNSNames []string
	DNSPort  int

	LogLevel    string
	LogJSON     bool
	MetricsAddr string
	Trace       bool
}

// Default returns a Config populated with the documented defaults.
func Default() Config {
	return Config{
		RefreshRate:          DefaultRefreshRate,
		Username:             DefaultUsername,
		Password:             DefaultPassword,
		ManagementPortOffset: DefaultManagementPortOffset,
		Container:            DefaultContainer,
		MaxConcurrency:       DefaultMaxConcurrency,
		Nodes:                []string{DefaultNodes},
		DNSPort:              11222,
		LogLevel:             "info",
	}
}

// FromEnv overlays environment variables onto cfg. Malformed values are
// reported as *Error.
func FromEnv(cfg Config, lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvRefreshRate); ok && v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, &Error{Field: "refreshRate", Reason: fmt.Sprintf("%q is not a number of milliseconds", v)}
		}
		cfg.RefreshRate = time.Duration(ms) * time.Millisecond
	}
	if v, ok := lookup(EnvUsername); ok {
		cfg.Username = v
	}
	if v, ok := lookup(EnvPassword); ok {
		cfg.Password = v
	}
	if v, ok := lookup(EnvPortOffset); ok && v != "" {
		off, err := strconv.Atoi(v)
		if err != nil {
			return cfg, &Error{Field: "managementPortOffset", Reason: fmt.Sprintf("%q is not an integer", v)}
		}
		cfg.ManagementPortOffset = off
	}
	if v, ok := lookup(EnvNodeColor); ok && v != "" {
		c, err := model.ParseColor(v)
		if err != nil {
			return cfg, &Error{Field: "nodeColor", Reason: err.Error()}
		}
		cfg.NodeColor = &c
	}
	if v, ok := lookup(EnvNodes); ok && v != "" {
		cfg.Nodes = SplitList(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = v
	}
	return cfg, nil
}

// MultiColor reports whether each node gets its own palette color.
func (c Config) MultiColor() bool { return c.NodeColor == nil }

// EffectiveNodeTimeout returns NodeTimeout, or RefreshRate-500ms floored
// at 500ms when unset. The result is kept below RefreshRate when
// RefreshRate allows it.
func (c Config) EffectiveNodeTimeout() time.Duration {
	return NodeTimeout(c.NodeTimeout, c.RefreshRate)
}

// NodeTimeout is the deadline rule shared with the pollers, which may have
// their refresh rate changed at runtime.
func NodeTimeout(configured, refresh time.Duration) time.Duration {
	t := configured
	if t <= 0 {
		t = refresh - 500*time.Millisecond
		if t < 500*time.Millisecond {
			t = 500 * time.Millisecond
		}
	}
	if refresh > 0 && t >= refresh {
		t = refresh - refresh/10
	}
	return t
}

// Validate checks the configuration for values that would prevent the
// pollers from starting.
func (c Config) Validate() error {
	if c.RefreshRate <= 0 {
		return &Error{Field: "refreshRate", Reason: "must be positive"}
	}
	if err := ValidatePortOffset(c.ManagementPortOffset); err != nil {
		return err
	}
	if c.MaxConcurrency <= 0 {
		return &Error{Field: "maxConcurrency", Reason: "must be positive"}
	}
	if c.NodeTimeout < 0 {
		return &Error{Field: "nodeTimeout", Reason: "must not be negative"}
	}
	if len(c.Nodes) == 0 && len(c.DNSNames) == 0 {
		return &Error{Field: "nodes", Reason: "a static node list or DNS names are required"}
	}
	for _, n := range c.Nodes {
		if _, err := model.ParseEndpoint(n); err != nil {
			return &Error{Field: "nodes", Reason: err.Error()}
		}
	}
	return ValidateColorMode(c.MultiColor(), c.NodeColor)
}

// ValidatePortOffset rejects offsets that cannot yield a management port.
func ValidatePortOffset(offset int) error {
	if offset < 0 || offset > 65535 {
		return &Error{Field: "managementPortOffset", Reason: fmt.Sprintf("%d is outside 0..65535", offset)}
	}
	return nil
}

// ValidateColorMode enforces that monochrome mode carries a color and
// multi-color mode does not.
func ValidateColorMode(multiColor bool, fixed *model.Color) error {
	switch {
	case multiColor && fixed != nil:
		return &Error{Field: "nodeColor", Reason: "multi-color mode must not set a fixed color"}
	case !multiColor && fixed == nil:
		return &Error{Field: "nodeColor", Reason: "monochrome mode requires a color"}
	case fixed != nil && *fixed > 0xffffff:
		return &Error{Field: "nodeColor", Reason: "color exceeds 0xffffff"}
	}
	return nil
}

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
