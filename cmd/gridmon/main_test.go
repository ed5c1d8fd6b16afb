package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dm/gridmon/internal/client/mgmttest"
	"github.com/dm/gridmon/internal/config"
	"github.com/dm/gridmon/internal/model"
)

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

// parseConfig resolves the configuration "gridmon run <args>" would use.
func parseConfig(t *testing.T, env map[string]string, args ...string) (config.Config, error) {
	t.Helper()
	o := &options{}
	lookup := envLookup(env)
	root := buildRoot(o, lookup)
	cmd, rest, err := root.Find(append([]string{"run"}, args...))
	require.NoError(t, err)
	require.NoError(t, cmd.ParseFlags(rest))
	return loadConfig(cmd, o, lookup)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := parseConfig(t, nil)
	require.NoError(t, err)
	assert.Equal(t, 2000*time.Millisecond, cfg.RefreshRate)
	assert.Equal(t, "admin", cfg.Username)
	assert.Equal(t, "jboss", cfg.Password)
	assert.Equal(t, 1232, cfg.ManagementPortOffset)
	assert.True(t, cfg.MultiColor())
	assert.Equal(t, []string{"127.0.0.1:11222"}, cfg.Nodes)
}

func TestLoadConfig_EnvThenFlags(t *testing.T) {
	env := map[string]string{
		config.EnvRefreshRate: "5000",
		config.EnvUsername:    "env-user",
		config.EnvPortOffset:  "100",
		config.EnvNodes:       "a:11222,b:11222",
	}

	cfg, err := parseConfig(t, env)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.RefreshRate)
	assert.Equal(t, "env-user", cfg.Username)
	assert.Equal(t, 100, cfg.ManagementPortOffset)
	assert.Equal(t, []string{"a:11222", "b:11222"}, cfg.Nodes)

	cfg, err = parseConfig(t, env, "--refresh-rate", "1s", "--mgmt-user", "flag-user", "--nodes", "c:11222")
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.RefreshRate)
	assert.Equal(t, "flag-user", cfg.Username)
	assert.Equal(t, 100, cfg.ManagementPortOffset, "env survives when the flag is unset")
	assert.Equal(t, []string{"c:11222"}, cfg.Nodes)
}

func TestLoadConfig_NodeColor(t *testing.T) {
	cfg, err := parseConfig(t, nil, "--node-color", "#ff8800")
	require.NoError(t, err)
	require.NotNil(t, cfg.NodeColor)
	assert.Equal(t, model.Color(0xff8800), *cfg.NodeColor)
	assert.False(t, cfg.MultiColor())

	cfg, err = parseConfig(t, map[string]string{config.EnvNodeColor: "255"}, "--node-color", "")
	require.NoError(t, err)
	assert.True(t, cfg.MultiColor(), "an empty flag clears the env color")
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		field string
	}{
		{"bad color", []string{"--node-color", "teal"}, "nodeColor"},
		{"negative offset", []string{"--mgmt-port-offset", "-5"}, "managementPortOffset"},
		{"zero refresh", []string{"--refresh-rate", "0s"}, "refreshRate"},
		{"bad node", []string{"--nodes", "no-port"}, "nodes"},
		{"zero concurrency", []string{"--max-concurrency", "0"}, "maxConcurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseConfig(t, nil, tt.args...)
			var cfgErr *config.Error
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestDescribeTarget(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "127.0.0.1:11222", describeTarget(cfg))
	cfg.Nodes = []string{"a:1", "b:1"}
	assert.Equal(t, "static: 2 nodes", describeTarget(cfg))
	cfg.DNSNames = []string{"_hotrod._tcp.grid.local"}
	assert.Equal(t, "dns: _hotrod._tcp.grid.local", describeTarget(cfg))
}

func fixtureReport() report {
	a, _ := model.ParseEndpoint("10.0.0.1:11222")
	b, _ := model.ParseEndpoint("10.0.0.2:11322")
	now := time.Now()
	return report{
		Snapshot: &model.ClusterSnapshot{
			Nodes: []model.NodeStatus{
				{Endpoint: a, Color: 0x3b82f6, Reachable: true},
				{Endpoint: b, Color: 0x10b981},
			},
			Entries: map[string]map[string]model.EntryCount{
				a.Key(): {"users": model.Count(12000), "sessions": model.Count(0)},
				b.Key(): {"users": model.Unknown, "sessions": model.Unknown},
			},
			Colors:      map[string]model.Color{a.Key(): 0x3b82f6, b.Key(): 0x10b981},
			GeneratedAt: now,
			Generation:  3,
		},
		Caches: []model.CacheNameInfo{
			{Name: "sessions", Kind: model.KindReplicated, Nodes: []string{a.Key()}},
			{Name: "users", Kind: model.KindDistributed, Nodes: []string{a.Key(), b.Key()}, ClusterWide: true},
		},
	}
}

func TestWriteTable(t *testing.T) {
	r := fixtureReport()
	var buf bytes.Buffer
	writeTable(&buf, r, r.Snapshot.GeneratedAt)
	out := buf.String()

	assert.Contains(t, out, "generation 3")
	assert.Contains(t, out, "nodes 1/2 reachable")
	assert.Contains(t, out, "10.0.0.2:11322 (down)")
	assert.Contains(t, out, "12,000")
	assert.Contains(t, out, "---")
	assert.Contains(t, out, "#3b82f6")

	var sessions string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "sessions") {
			sessions = line
		}
	}
	require.NotEmpty(t, sessions)
	assert.Contains(t, strings.Fields(sessions), "0", "a known zero prints as 0")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, fixtureReport()))

	var decoded struct {
		Snapshot struct {
			Entries    map[string]map[string]*int64 `json:"entries"`
			Colors     map[string]string            `json:"colors"`
			Generation uint64                       `json:"generation"`
		} `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, uint64(3), decoded.Snapshot.Generation)
	assert.Nil(t, decoded.Snapshot.Entries["10.0.0.2:11322"]["users"])
	require.NotNil(t, decoded.Snapshot.Entries["10.0.0.1:11222"]["sessions"])
	assert.Equal(t, int64(0), *decoded.Snapshot.Entries["10.0.0.1:11222"]["sessions"])
	assert.Equal(t, "#10b981", decoded.Snapshot.Colors["10.0.0.2:11322"])
}

type fakeHealth bool

func (f fakeHealth) Healthy() bool { return bool(f) }

func TestMetricsMux(t *testing.T) {
	srv := httptest.NewServer(newMetricsMux(fakeHealth(true)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/healthz", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	down := httptest.NewServer(newMetricsMux(fakeHealth(false)))
	defer down.Close()
	resp, err = http.Get(down.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSnapshotCommand_EndToEnd(t *testing.T) {
	node := mgmttest.NewServer()
	defer node.Close()
	node.AddCache("users", model.KindDistributed, 42)
	node.AddCache("empty", model.KindLocal, 0)
	ep := node.Endpoint(100)

	var out bytes.Buffer
	root := newRoot(envLookup(nil))
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"snapshot", "--json",
		"--nodes", ep.Key(),
		"--mgmt-port-offset", strconv.Itoa(100),
		"--refresh-rate", "50ms",
		"--wait", "5s",
		"--log-level", "error",
	})
	require.NoError(t, root.Execute())

	var r report
	require.NoError(t, json.Unmarshal(out.Bytes(), &r))
	require.Len(t, r.Caches, 2)
	assert.Equal(t, model.Count(42), r.Snapshot.Count(ep.Key(), "users"))
	assert.Equal(t, model.Count(0), r.Snapshot.Count(ep.Key(), "empty"))
}

func TestSnapshotCommand_NoNodeAnswers(t *testing.T) {
	root := newRoot(envLookup(nil))
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"snapshot",
		"--nodes", "127.0.0.1:1",
		"--mgmt-port-offset", "0",
		"--refresh-rate", "50ms",
		"--wait", "300ms",
		"--log-level", "error",
	})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no node answered")
}
