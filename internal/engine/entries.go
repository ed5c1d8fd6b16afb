package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/dm/gridmon/internal/client"
	"github.com/dm/gridmon/internal/config"
	"github.com/dm/gridmon/internal/membership"
	"github.com/dm/gridmon/internal/metrics"
	"github.com/dm/gridmon/internal/model"
	"github.com/dm/gridmon/internal/tracing"
)

// NameSource supplies the cache universe an entry-count cycle iterates.
type NameSource interface {
	CacheNames() []model.CacheNameInfo
}

// SnapshotSink receives each published snapshot and returns the
// generation it was stored under.
type SnapshotSink interface {
	PublishSnapshot(snap *model.ClusterSnapshot) (uint64, error)
}

// EntriesPoller periodically reads the local entry count of every known
// cache on every member node and publishes a ClusterSnapshot.
type EntriesPoller struct {
	*Manager[*model.ClusterSnapshot]

	source    membership.Source
	connector client.Connector
	names     NameSource
	log       hclog.Logger

	colorMu    sync.Mutex
	multiColor bool
	fixedColor *model.Color
	palette    []model.Color
	colors     *ColorAllocator
}

var _ Poller[*model.ClusterSnapshot] = (*EntriesPoller)(nil)

// NewEntriesPoller creates an entries poller in the Created state, in
// multi-color mode.
func NewEntriesPoller(source membership.Source, connector client.Connector, names NameSource, sink SnapshotSink, log hclog.Logger) *EntriesPoller {
	p := &EntriesPoller{
		source:     source,
		connector:  connector,
		names:      names,
		multiColor: true,
	}
	p.Manager = newManager("entries", log, p.cycle, func(snap *model.ClusterSnapshot) error {
		gen, err := sink.PublishSnapshot(snap)
		if err != nil {
			return err
		}
		snap.Generation = gen
		recordSnapshot(snap)
		return nil
	})
	p.Manager.validate = p.initColors
	p.log = p.Manager.log
	return p
}

// SetMultiColor selects the coloring mode. Multi-color mode must not carry
// a fixed color and monochrome mode requires one; Init rejects anything
// else. Changes after Init are ignored.
func (p *EntriesPoller) SetMultiColor(enabled bool, fixed *model.Color) {
	p.colorMu.Lock()
	defer p.colorMu.Unlock()
	if p.colors != nil {
		p.log.Warn("color mode is fixed once started")
		return
	}
	p.multiColor = enabled
	p.fixedColor = fixed
}

// SetPalette overrides the multi-color rotation. It must be called before
// Init.
func (p *EntriesPoller) SetPalette(palette []model.Color) {
	p.colorMu.Lock()
	defer p.colorMu.Unlock()
	p.palette = palette
}

// Colors returns the allocator, or nil before Init.
func (p *EntriesPoller) Colors() *ColorAllocator {
	p.colorMu.Lock()
	defer p.colorMu.Unlock()
	return p.colors
}

func (p *EntriesPoller) initColors() error {
	p.colorMu.Lock()
	defer p.colorMu.Unlock()
	if err := config.ValidateColorMode(p.multiColor, p.fixedColor); err != nil {
		return err
	}
	if p.colors == nil {
		p.colors = NewColorAllocator(p.fixedColor, p.palette)
	}
	return nil
}

func (p *EntriesPoller) cycle(ctx context.Context, s Settings) (*model.ClusterSnapshot, outcome, error) {
	nodes, err := p.source.Members(ctx)
	if err != nil {
		return nil, outcomeAborted, fmt.Errorf("%w: membership: %w", ErrCycleAborted, err)
	}
	caches := p.names.CacheNames()

	colors := p.Colors()
	statuses := make([]model.NodeStatus, len(nodes))
	counts := make([]map[string]model.EntryCount, len(nodes))
	for i, n := range nodes {
		statuses[i] = model.NodeStatus{Endpoint: n, Color: colors.Assign(n.Key())}
	}

	fanOut(ctx, s.MaxConcurrency, len(nodes), func(parent context.Context, i int) {
		ctx, cancel := context.WithTimeout(parent, s.NodeTimeout)
		defer cancel()

		c, err := p.queryNode(ctx, nodes[i], caches, s)
		counts[i] = c
		if err != nil {
			if parent.Err() == nil {
				nodeFailed(p.log, "entries", nodes[i].Key(), err)
			}
			return
		}
		statuses[i].Reachable = true
	})
	if ctx.Err() != nil {
		return nil, outcomeCancelled, ctx.Err()
	}

	snap := &model.ClusterSnapshot{
		Nodes:       statuses,
		Entries:     make(map[string]map[string]model.EntryCount, len(nodes)),
		Colors:      make(map[string]model.Color, len(nodes)),
		GeneratedAt: time.Now(),
	}
	for i, st := range statuses {
		key := st.Endpoint.Key()
		snap.Entries[key] = counts[i]
		snap.Colors[key] = st.Color
	}
	if snap.Reachable() == 0 {
		return nil, outcomeKeep, nil
	}
	return snap, outcomePublish, nil
}

// queryNode reads every cache on one node. The returned map always holds
// an entry per cache; reads that fail are Unknown. A non-nil error means
// the node itself could not be reached.
func (p *EntriesPoller) queryNode(ctx context.Context, node model.NodeEndpoint, caches []model.CacheNameInfo, s Settings) (map[string]model.EntryCount, error) {
	ctx, end := tracing.StartSpan(ctx, "entries.node",
		attribute.String("node", node.Key()), attribute.Int("caches", len(caches)))
	defer end()

	values := make([]model.EntryCount, len(caches))
	fill := func() map[string]model.EntryCount {
		out := make(map[string]model.EntryCount, len(caches))
		for i, c := range caches {
			out[c.Name] = values[i]
		}
		return out
	}

	sess, err := p.connector.Connect(ctx, node, s.Credentials, s.PortOffset)
	if err != nil {
		return fill(), err
	}
	defer sess.Close()

	var g errgroup.Group
	g.SetLimit(max(s.MaxConcurrency, 1))
	for i, c := range caches {
		i, c := i, c
		g.Go(func() error {
			n, err := sess.EntryCount(ctx, c.Ref())
			if err != nil {
				p.log.Debug("entry count unavailable", "node", node.Key(), "cache", c.Name, "error", err)
				return nil
			}
			values[i] = model.Count(n)
			return nil
		})
	}
	_ = g.Wait()
	return fill(), nil
}

func recordSnapshot(snap *model.ClusterSnapshot) {
	reachable := snap.Reachable()
	metrics.Nodes.WithLabelValues("reachable").Set(float64(reachable))
	metrics.Nodes.WithLabelValues("unreachable").Set(float64(len(snap.Nodes) - reachable))

	metrics.Entries.Reset()
	for node, caches := range snap.Entries {
		for cache, c := range caches {
			if c.Known {
				metrics.Entries.WithLabelValues(node, cache).Set(float64(c.Value))
			}
		}
	}
}
