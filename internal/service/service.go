// Package service wires membership, the snapshot store and both pollers
// into one process-scoped unit with ordered startup and teardown.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/dm/gridmon/internal/client"
	"github.com/dm/gridmon/internal/config"
	"github.com/dm/gridmon/internal/engine"
	"github.com/dm/gridmon/internal/logutil"
	"github.com/dm/gridmon/internal/membership"
	"github.com/dm/gridmon/internal/store"
)

// Option customises a Service.
type Option func(*Service)

// WithConnector replaces the HTTP management connector.
func WithConnector(c client.Connector) Option {
	return func(s *Service) { s.connector = c }
}

// Service owns the pollers and the store they publish into.
type Service struct {
	cfg       config.Config
	log       hclog.Logger
	source    membership.Source
	connector client.Connector
	store     *store.Store
	names     *engine.NamesPoller
	entries   *engine.EntriesPoller

	mu      sync.Mutex
	started bool
}

// New validates cfg and builds a Service. Nothing runs until Start.
func New(cfg config.Config, source membership.Source, logger hclog.Logger, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	st, err := store.New()
	if err != nil {
		return nil, err
	}
	s := &Service{
		cfg:    cfg,
		log:    logutil.OrDiscard(logger),
		source: source,
		store:  st,
	}
	for _, o := range opts {
		o(s)
	}
	if s.connector == nil {
		s.connector = client.NewHTTPConnector(client.ConnectorConfig{Container: cfg.Container})
	}

	s.names = engine.NewNamesPoller(source, s.connector, st, s.log)
	s.entries = engine.NewEntriesPoller(source, s.connector, st, st, s.log)
	configure(s.names.Manager, cfg)
	configure(s.entries.Manager, cfg)
	s.entries.SetMultiColor(cfg.MultiColor(), cfg.NodeColor)
	return s, nil
}

func configure[T any](m *engine.Manager[T], cfg config.Config) {
	m.SetRefreshRate(cfg.RefreshRate)
	m.SetCredentials(cfg.Username, cfg.Password)
	m.SetManagementPortOffset(cfg.ManagementPortOffset)
	m.SetNodeTimeout(cfg.NodeTimeout)
	m.SetMaxConcurrency(cfg.MaxConcurrency)
}

// Start starts membership, then the names poller, then the entries poller.
// On failure whatever already started is stopped again.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return engine.ErrAlreadyStarted
	}

	if err := s.source.Start(ctx); err != nil {
		return fmt.Errorf("start membership: %w", err)
	}
	if err := s.names.Init(); err != nil {
		_ = s.source.Stop()
		return fmt.Errorf("start names poller: %w", err)
	}
	if err := s.entries.Init(); err != nil {
		s.names.Destroy()
		_ = s.source.Stop()
		return fmt.Errorf("start entries poller: %w", err)
	}
	s.started = true
	s.log.Info("monitor started",
		"refresh", s.cfg.RefreshRate,
		"port_offset", s.cfg.ManagementPortOffset,
		"multi_color", s.cfg.MultiColor())
	return nil
}

// Stop destroys the entries poller, then the names poller, then stops
// membership. Safe to call more than once.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries.Destroy()
	s.names.Destroy()
	if !s.started {
		return nil
	}
	s.started = false
	if err := s.source.Stop(); err != nil {
		return fmt.Errorf("stop membership: %w", err)
	}
	s.log.Info("monitor stopped")
	return nil
}

// Healthy reports whether both pollers are running.
func (s *Service) Healthy() bool {
	return s.names.State() == engine.StateRunning && s.entries.State() == engine.StateRunning
}

// Store is the read side consumed by the dashboard and the snapshot command.
func (s *Service) Store() *store.Store { return s.store }

func (s *Service) NamesPoller() *engine.NamesPoller { return s.names }

func (s *Service) EntriesPoller() *engine.EntriesPoller { return s.entries }

// SourceFromConfig builds the membership source: DNS when DNS names are
// configured, otherwise the static node list.
func SourceFromConfig(cfg config.Config, logger hclog.Logger) (membership.Source, error) {
	if len(cfg.DNSNames) > 0 {
		return membership.NewDNS(membership.DNSOptions{
			Names:   cfg.DNSNames,
			Port:    cfg.DNSPort,
			Refresh: cfg.RefreshRate,
			Logger:  logger,
		}), nil
	}
	return membership.NewStatic(cfg.Nodes...)
}
