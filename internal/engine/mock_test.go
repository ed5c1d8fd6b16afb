package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dm/gridmon/internal/client"
	"github.com/dm/gridmon/internal/model"
)

var errMockFailure = errors.New("mock failure")

// MockConnector implements client.Connector for testing.
type MockConnector struct {
	ConnectFn func(ctx context.Context, node model.NodeEndpoint, creds client.Credentials, portOffset int) (client.Session, error)
}

func (m *MockConnector) Connect(ctx context.Context, node model.NodeEndpoint, creds client.Credentials, portOffset int) (client.Session, error) {
	if m.ConnectFn != nil {
		return m.ConnectFn(ctx, node, creds, portOffset)
	}
	return &MockSession{}, nil
}

// MockSession implements client.Session for testing.
type MockSession struct {
	CacheNamesFn func(ctx context.Context) ([]model.CacheRef, error)
	EntryCountFn func(ctx context.Context, ref model.CacheRef) (int64, error)
}

func (m *MockSession) CacheNames(ctx context.Context) ([]model.CacheRef, error) {
	if m.CacheNamesFn != nil {
		return m.CacheNamesFn(ctx)
	}
	return []model.CacheRef{{Name: "default", Kind: model.KindDistributed}}, nil
}

func (m *MockSession) EntryCount(ctx context.Context, ref model.CacheRef) (int64, error) {
	if m.EntryCountFn != nil {
		return m.EntryCountFn(ctx, ref)
	}
	return 0, nil
}

func (m *MockSession) Close() error { return nil }

// mockSource implements membership.Source.
type mockSource struct {
	mu    sync.Mutex
	nodes []model.NodeEndpoint
	err   error
}

func newMockSource(addrs ...string) *mockSource {
	s := &mockSource{}
	for _, a := range addrs {
		ep, err := model.ParseEndpoint(a)
		if err != nil {
			panic(err)
		}
		s.nodes = append(s.nodes, ep)
	}
	return s
}

func (s *mockSource) Start(context.Context) error { return nil }
func (s *mockSource) Stop() error                 { return nil }

func (s *mockSource) Members(context.Context) ([]model.NodeEndpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]model.NodeEndpoint(nil), s.nodes...), nil
}

func (s *mockSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// staticNames implements NameSource.
type staticNames []model.CacheNameInfo

func (n staticNames) CacheNames() []model.CacheNameInfo { return n }

// recordingSink implements NamesSink and SnapshotSink, remembering every
// publication and when it happened.
type recordingSink struct {
	mu        sync.Mutex
	names     [][]model.CacheNameInfo
	snapshots []*model.ClusterSnapshot
	times     []time.Time
}

func (r *recordingSink) PublishCacheNames(names []model.CacheNameInfo, at time.Time) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, names)
	r.times = append(r.times, time.Now())
	return uint64(len(r.names)), nil
}

func (r *recordingSink) PublishSnapshot(snap *model.ClusterSnapshot) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, snap)
	r.times = append(r.times, time.Now())
	return uint64(len(r.snapshots)), nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.times)
}

func (r *recordingSink) publishTimes() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.times...)
}

func (r *recordingSink) lastNames() []model.CacheNameInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.names) == 0 {
		return nil
	}
	return r.names[len(r.names)-1]
}

func (r *recordingSink) lastSnapshot() *model.ClusterSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return nil
	}
	return r.snapshots[len(r.snapshots)-1]
}
