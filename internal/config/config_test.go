package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dm/gridmon/internal/model"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 2000*time.Millisecond, cfg.RefreshRate)
	assert.Equal(t, "admin", cfg.Username)
	assert.Equal(t, "jboss", cfg.Password)
	assert.Equal(t, 1232, cfg.ManagementPortOffset)
	assert.Nil(t, cfg.NodeColor)
	assert.True(t, cfg.MultiColor())
	require.NoError(t, cfg.Validate())
}

func TestFromEnv(t *testing.T) {
	cfg, err := FromEnv(Default(), envMap(map[string]string{
		EnvRefreshRate: "5000",
		EnvUsername:    "ops",
		EnvPassword:    "secret",
		EnvPortOffset:  "100",
		EnvNodeColor:   "16711680",
		EnvNodes:       "a:11222, b:11322,",
		EnvLogLevel:    "debug",
	}))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.RefreshRate)
	assert.Equal(t, "ops", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 100, cfg.ManagementPortOffset)
	require.NotNil(t, cfg.NodeColor)
	assert.Equal(t, model.Color(0xff0000), *cfg.NodeColor)
	assert.False(t, cfg.MultiColor())
	assert.Equal(t, []string{"a:11222", "b:11322"}, cfg.Nodes)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestFromEnv_Malformed(t *testing.T) {
	for _, key := range []string{EnvRefreshRate, EnvPortOffset, EnvNodeColor} {
		t.Run(key, func(t *testing.T) {
			_, err := FromEnv(Default(), envMap(map[string]string{key: "not-a-number"}))
			var cfgErr *Error
			require.True(t, errors.As(err, &cfgErr), "want *Error, got %v", err)
		})
	}
}

func TestValidate(t *testing.T) {
	red := model.Color(0xff0000)
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero_refresh", func(c *Config) { c.RefreshRate = 0 }, "refreshRate"},
		{"negative_offset", func(c *Config) { c.ManagementPortOffset = -1 }, "managementPortOffset"},
		{"huge_offset", func(c *Config) { c.ManagementPortOffset = 70000 }, "managementPortOffset"},
		{"zero_concurrency", func(c *Config) { c.MaxConcurrency = 0 }, "maxConcurrency"},
		{"negative_timeout", func(c *Config) { c.NodeTimeout = -time.Second }, "nodeTimeout"},
		{"no_membership", func(c *Config) { c.Nodes = nil }, "nodes"},
		{"bad_node", func(c *Config) { c.Nodes = []string{"nohost"} }, "nodes"},
		{"color_too_large", func(c *Config) { big := model.Color(0x1000000); c.NodeColor = &big }, "nodeColor"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			var cfgErr *Error
			require.True(t, errors.As(err, &cfgErr), "want *Error, got %v", err)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}

	cfg := Default()
	cfg.NodeColor = &red
	assert.NoError(t, cfg.Validate())

	cfg = Default()
	cfg.Nodes = nil
	cfg.DNSNames = []string{"_hotrod._tcp.example.com"}
	assert.NoError(t, cfg.Validate())
}

func TestValidateColorMode(t *testing.T) {
	red := model.Color(0xff0000)
	assert.NoError(t, ValidateColorMode(true, nil))
	assert.NoError(t, ValidateColorMode(false, &red))

	var cfgErr *Error
	assert.True(t, errors.As(ValidateColorMode(true, &red), &cfgErr))
	assert.True(t, errors.As(ValidateColorMode(false, nil), &cfgErr))
}

func TestNodeTimeout(t *testing.T) {
	tests := []struct {
		name       string
		configured time.Duration
		refresh    time.Duration
		want       time.Duration
	}{
		{"derived_default", 0, 2 * time.Second, 1500 * time.Millisecond},
		{"derived_floor", 0, 800 * time.Millisecond, 500 * time.Millisecond},
		{"floor_above_refresh", 0, 200 * time.Millisecond, 180 * time.Millisecond},
		{"configured", time.Second, 5 * time.Second, time.Second},
		{"configured_too_long", 10 * time.Second, 5 * time.Second, 4500 * time.Millisecond},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := NodeTimeout(tc.configured, tc.refresh)
			assert.Equal(t, tc.want, got)
			assert.Less(t, got, tc.refresh)
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Equal(t, []string{"a", "b"}, SplitList(" a ,, b "))
}
