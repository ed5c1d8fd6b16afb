package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dm/gridmon/internal/model"
)

// Errors returned by Connect and by Session operations. Callers treat all
// three the same way: the node is unavailable for this cycle.
var (
	ErrUnreachable = errors.New("node unreachable")
	ErrAuthFailed  = errors.New("management authentication failed")
	ErrTimeout     = errors.New("management request timed out")

	ErrSessionClosed = errors.New("session closed")
)

// IsNodeUnavailable reports whether err means the node could not be
// queried at all, as opposed to a single failed operation.
func IsNodeUnavailable(err error) bool {
	return errors.Is(err, ErrUnreachable) || errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrTimeout)
}

// Reason returns a short label for err, used in logs and metric labels.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrAuthFailed):
		return "auth"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	default:
		return "operation"
	}
}

// Credentials is the single shared management credential.
type Credentials struct {
	Username string
	Password string
}

// Connector opens management sessions to individual nodes.
type Connector interface {
	Connect(ctx context.Context, node model.NodeEndpoint, creds Credentials, portOffset int) (Session, error)
}

// Session is a short-lived authenticated session to one node's management
// endpoint. It is opened per query batch and closed afterwards.
type Session interface {
	CacheNames(ctx context.Context) ([]model.CacheRef, error)
	EntryCount(ctx context.Context, cache model.CacheRef) (int64, error)
	Close() error
}

// ConnectorConfig holds configuration for HTTPConnector.
type ConnectorConfig struct {
	// Container is the cache-container whose caches are listed.
	Container          string
	UseTLS             bool
	InsecureSkipVerify bool
	// RequestTimeout caps a single HTTP request; the caller's context
	// usually expires first.
	RequestTimeout time.Duration
}

// HTTPConnector implements Connector over the HTTP management API.
type HTTPConnector struct {
	config ConnectorConfig
}

// NewHTTPConnector constructs an HTTPConnector from the given config.
func NewHTTPConnector(cfg ConnectorConfig) *HTTPConnector {
	if cfg.Container == "" {
		cfg.Container = "clustered"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &HTTPConnector{config: cfg}
}

// Connect opens a dedicated transport to node's management port and
// verifies reachability and credentials by reading the server state.
func (c *HTTPConnector) Connect(ctx context.Context, node model.NodeEndpoint, creds Credentials, portOffset int) (Session, error) {
	addr, err := node.ManagementAddr(portOffset)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: c.config.InsecureSkipVerify, //nolint:gosec
	}

	scheme := "http"
	if c.config.UseTLS {
		scheme = "https"
	}
	s := &httpSession{
		node:      node.Key(),
		url:       fmt.Sprintf("%s://%s/management", scheme, addr),
		container: c.config.Container,
		creds:     creds,
		transport: transport,
		http: &http.Client{
			Timeout:   c.config.RequestTimeout,
			Transport: transport,
		},
	}

	if err := s.do(ctx, readAttribute(nil, "server-state", false), nil); err != nil {
		s.Close()
		if IsNodeUnavailable(err) {
			return nil, fmt.Errorf("connect %s: %w", node.Key(), err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreachable, node.Key(), err)
	}
	return s, nil
}

// classify maps a transport error onto the node-unavailable taxonomy.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrUnreachable, err)
}
