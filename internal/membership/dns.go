package membership

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/dm/gridmon/internal/logutil"
	"github.com/dm/gridmon/internal/model"
)

// Resolver is the subset of *net.Resolver used by DNS.
type Resolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// DNSOptions configures DNS-based membership.
type DNSOptions struct {
	// Names are SRV records ("_hotrod._tcp.example.com") or host names.
	// "host:port" entries are taken as-is.
	Names []string

	// Port is used for A/AAAA answers, which carry no port.
	Port int

	// Refresh controls cache staleness; if zero, defaults to 5s.
	Refresh time.Duration

	Resolver Resolver
	Logger   hclog.Logger
}

// DNS resolves membership from DNS and caches the answer for Refresh.
type DNS struct {
	opts DNSOptions
	log  hclog.Logger

	mu      sync.Mutex
	started bool
	last    time.Time
	cache   []model.NodeEndpoint
}

// NewDNS returns a DNS source.
func NewDNS(opts DNSOptions) *DNS {
	if opts.Refresh <= 0 {
		opts.Refresh = 5 * time.Second
	}
	if opts.Port == 0 {
		opts.Port = 11222
	}
	if opts.Resolver == nil {
		opts.Resolver = net.DefaultResolver
	}
	return &DNS{opts: opts, log: logutil.OrDiscard(opts.Logger).Named("dns")}
}

func (d *DNS) Start(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = true
	return nil
}

func (d *DNS) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = false
	d.cache = nil
	d.last = time.Time{}
	return nil
}

// Members returns the cached answer, re-resolving when it is older than
// Refresh. An empty resolution is an error so the caller keeps its
// previous view.
func (d *DNS) Members(ctx context.Context) ([]model.NodeEndpoint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return nil, ErrNotStarted
	}
	if time.Since(d.last) < d.opts.Refresh && len(d.cache) > 0 {
		return append([]model.NodeEndpoint(nil), d.cache...), nil
	}
	res, err := d.resolveAll(ctx)
	if err != nil {
		return nil, err
	}
	d.cache = res
	d.last = time.Now()
	return append([]model.NodeEndpoint(nil), d.cache...), nil
}

func (d *DNS) resolveAll(ctx context.Context) ([]model.NodeEndpoint, error) {
	var (
		out  []model.NodeEndpoint
		errs []error
	)
	for _, name := range d.opts.Names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		// Already host:port
		if strings.Contains(name, ":") && !strings.HasPrefix(name, "_") {
			e, err := model.ParseEndpoint(name)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			out = append(out, e)
			continue
		}
		if strings.HasPrefix(name, "_") && strings.Contains(name, "._") {
			recs, err := d.lookupSRV(ctx, name)
			if err != nil {
				errs = append(errs, err)
			}
			if len(recs) > 0 {
				out = append(out, recs...)
				continue
			}
		}
		hosts, err := d.lookupHost(ctx, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, hosts...)
	}
	if len(out) == 0 {
		if len(errs) == 0 {
			errs = append(errs, errors.New("no names configured"))
		}
		return nil, fmt.Errorf("dns membership: %w", errors.Join(errs...))
	}
	for _, err := range errs {
		d.log.Debug("partial resolution failure", "error", err)
	}
	return normalize(out), nil
}

func (d *DNS) lookupSRV(ctx context.Context, fqdn string) ([]model.NodeEndpoint, error) {
	svc, proto, domain := parseSRVName(fqdn)
	if svc == "" || proto == "" || domain == "" {
		return nil, fmt.Errorf("malformed SRV name %q", fqdn)
	}
	_, addrs, err := d.opts.Resolver.LookupSRV(ctx, svc, proto, domain)
	if err != nil {
		return nil, fmt.Errorf("lookup SRV %s: %w", fqdn, err)
	}
	out := make([]model.NodeEndpoint, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, model.NodeEndpoint{Host: strings.TrimSuffix(a.Target, "."), Port: int(a.Port)})
	}
	return out, nil
}

func (d *DNS) lookupHost(ctx context.Context, host string) ([]model.NodeEndpoint, error) {
	ips, err := d.opts.Resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", host, err)
	}
	out := make([]model.NodeEndpoint, 0, len(ips))
	for _, ip := range ips {
		out = append(out, model.NodeEndpoint{Host: ip, Port: d.opts.Port})
	}
	return out, nil
}

// parseSRVName splits "_service._proto.name".
func parseSRVName(fqdn string) (service, proto, name string) {
	parts := strings.SplitN(fqdn, ".", 3)
	if len(parts) < 3 {
		return "", "", ""
	}
	return strings.TrimPrefix(parts[0], "_"), strings.TrimPrefix(parts[1], "_"), parts[2]
}
