package membership

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dm/gridmon/internal/model"
)

func TestStatic(t *testing.T) {
	s, err := NewStatic("b:11322", "a:11222", "a:11222")
	require.NoError(t, err)

	_, err = s.Members(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, s.Start(context.Background()))
	nodes, err := s.Members(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.NodeEndpoint{{Host: "a", Port: 11222}, {Host: "b", Port: 11322}}, nodes)

	// callers get a copy
	nodes[0].Host = "mutated"
	again, _ := s.Members(context.Background())
	assert.Equal(t, "a", again[0].Host)

	s.Set([]model.NodeEndpoint{{Host: "c", Port: 1}})
	nodes, _ = s.Members(context.Background())
	assert.Len(t, nodes, 1)

	require.NoError(t, s.Stop())
	_, err = s.Members(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestStatic_InvalidAddress(t *testing.T) {
	_, err := NewStatic("a:11222", "nope")
	assert.Error(t, err)
}

type fakeResolver struct {
	srv   map[string][]*net.SRV
	hosts map[string][]string
	calls atomic.Int32
}

func (f *fakeResolver) LookupSRV(_ context.Context, service, proto, name string) (string, []*net.SRV, error) {
	f.calls.Add(1)
	recs, ok := f.srv["_"+service+"._"+proto+"."+name]
	if !ok {
		return "", nil, errors.New("no such host")
	}
	return "", recs, nil
}

func (f *fakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	f.calls.Add(1)
	ips, ok := f.hosts[host]
	if !ok {
		return nil, errors.New("no such host")
	}
	return ips, nil
}

func TestDNS_ResolvesAndCaches(t *testing.T) {
	r := &fakeResolver{
		srv: map[string][]*net.SRV{
			"_hotrod._tcp.grid.local": {
				{Target: "node2.grid.local.", Port: 11322},
				{Target: "node1.grid.local.", Port: 11222},
			},
		},
		hosts: map[string][]string{"extra.grid.local": {"10.0.0.9"}},
	}
	d := NewDNS(DNSOptions{
		Names:    []string{"_hotrod._tcp.grid.local", "extra.grid.local", "10.0.0.1:11222", " "},
		Port:     11222,
		Refresh:  time.Minute,
		Resolver: r,
	})
	require.NoError(t, d.Start(context.Background()))

	nodes, err := d.Members(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.NodeEndpoint{
		{Host: "10.0.0.1", Port: 11222},
		{Host: "10.0.0.9", Port: 11222},
		{Host: "node1.grid.local", Port: 11222},
		{Host: "node2.grid.local", Port: 11322},
	}, nodes)

	calls := r.calls.Load()
	_, err = d.Members(context.Background())
	require.NoError(t, err)
	assert.Equal(t, calls, r.calls.Load(), "second call should be served from cache")
}

func TestDNS_AllFailuresIsError(t *testing.T) {
	d := NewDNS(DNSOptions{Names: []string{"missing.local"}, Resolver: &fakeResolver{}})
	require.NoError(t, d.Start(context.Background()))
	_, err := d.Members(context.Background())
	assert.Error(t, err)
}

func TestDNS_NotStarted(t *testing.T) {
	d := NewDNS(DNSOptions{Names: []string{"10.0.0.1:11222"}})
	_, err := d.Members(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestParseSRVName(t *testing.T) {
	s, p, n := parseSRVName("_hotrod._tcp.example.com")
	assert.Equal(t, "hotrod", s)
	assert.Equal(t, "tcp", p)
	assert.Equal(t, "example.com", n)

	s, _, _ = parseSRVName("_bad")
	assert.Empty(t, s)
}
