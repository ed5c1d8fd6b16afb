package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagementPort(t *testing.T) {
	tests := []struct {
		name   string
		port   int
		offset int
		want   int
	}{
		{"default_hotrod", 11222, 1232, 9990},
		{"second_node", 11322, 1232, 10090},
		{"zero_offset", 9990, 0, 9990},
		{"negative_offset", 9000, -100, 9100},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := NodeEndpoint{Host: "h", Port: tc.port}
			got, err := e.ManagementPort(tc.offset)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			// pure: same inputs, same output
			again, err := e.ManagementPort(tc.offset)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestManagementPort_OutOfRange(t *testing.T) {
	e := NodeEndpoint{Host: "h", Port: 1000}
	_, err := e.ManagementPort(1232)
	assert.Error(t, err)
	_, err = e.ManagementPort(1000)
	assert.Error(t, err)
}

func TestParseEndpoint(t *testing.T) {
	e, err := ParseEndpoint(" 10.0.0.1:11222 ")
	require.NoError(t, err)
	assert.Equal(t, NodeEndpoint{Host: "10.0.0.1", Port: 11222}, e)
	assert.Equal(t, "10.0.0.1:11222", e.Key())

	e, err = ParseEndpoint("[::1]:11222")
	require.NoError(t, err)
	assert.Equal(t, "::1", e.Host)
	assert.Equal(t, "[::1]:11222", e.Key())

	addr, err := e.ManagementAddr(1232)
	require.NoError(t, err)
	assert.Equal(t, "[::1]:9990", addr)

	for _, bad := range []string{"", "host", ":11222", "host:0", "host:70000", "host:abc"} {
		_, err := ParseEndpoint(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want Color
	}{
		{"16711680", 0xff0000},
		{"0x00ff00", 0x00ff00},
		{"#0000FF", 0x0000ff},
		{"0", 0},
	}
	for _, tc := range tests {
		got, err := ParseColor(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}

	for _, bad := range []string{"", "red", "#gg0000", "16777216", "-1"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, "input %q", bad)
	}

	assert.Equal(t, "#ff0000", Color(0xff0000).Hex())
	assert.Equal(t, "#000001", Color(1).Hex())
}

func TestEntryCountJSON(t *testing.T) {
	b, err := json.Marshal(map[string]EntryCount{"zero": Count(0), "unknown": Unknown})
	require.NoError(t, err)
	assert.JSONEq(t, `{"zero":0,"unknown":null}`, string(b))

	var decoded map[string]EntryCount
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, Count(0), decoded["zero"])
	assert.True(t, decoded["zero"].Known)
	assert.False(t, decoded["unknown"].Known)
}

func TestClusterSnapshotCount(t *testing.T) {
	var nilSnap *ClusterSnapshot
	assert.Equal(t, Unknown, nilSnap.Count("a", "b"))
	assert.Equal(t, int64(0), nilSnap.TotalEntries())

	snap := &ClusterSnapshot{Entries: map[string]map[string]EntryCount{
		"a:1": {"c": Count(0)},
	}}
	assert.Equal(t, Count(0), snap.Count("a:1", "c"))
	assert.Equal(t, Unknown, snap.Count("a:1", "missing"))
	assert.Equal(t, Unknown, snap.Count("missing", "c"))
}
