package membership

import (
	"context"
	"fmt"
	"sync"

	"github.com/dm/gridmon/internal/model"
)

// Static is a fixed node list.
type Static struct {
	mu      sync.RWMutex
	nodes   []model.NodeEndpoint
	started bool
}

// NewStatic parses "host:port" addresses into a Static source.
func NewStatic(addrs ...string) (*Static, error) {
	nodes := make([]model.NodeEndpoint, 0, len(addrs))
	for _, a := range addrs {
		e, err := model.ParseEndpoint(a)
		if err != nil {
			return nil, fmt.Errorf("static membership: %w", err)
		}
		nodes = append(nodes, e)
	}
	return &Static{nodes: normalize(nodes)}, nil
}

func (s *Static) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

func (s *Static) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	return nil
}

// Members returns a copy of the node list.
func (s *Static) Members(context.Context) ([]model.NodeEndpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return append([]model.NodeEndpoint(nil), s.nodes...), nil
}

// Set replaces the node list.
func (s *Static) Set(nodes []model.NodeEndpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = normalize(nodes)
}
