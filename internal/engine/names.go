package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dm/gridmon/internal/client"
	"github.com/dm/gridmon/internal/membership"
	"github.com/dm/gridmon/internal/metrics"
	"github.com/dm/gridmon/internal/model"
	"github.com/dm/gridmon/internal/tracing"
)

// NamesSink receives each published cache-name set.
type NamesSink interface {
	PublishCacheNames(names []model.CacheNameInfo, at time.Time) (uint64, error)
}

// NamesPoller periodically discovers the union of cache names defined
// across all member nodes.
type NamesPoller struct {
	*Manager[[]model.CacheNameInfo]

	source    membership.Source
	connector client.Connector
	log       hclog.Logger
}

var _ Poller[[]model.CacheNameInfo] = (*NamesPoller)(nil)

// NewNamesPoller creates a names poller in the Created state.
func NewNamesPoller(source membership.Source, connector client.Connector, sink NamesSink, log hclog.Logger) *NamesPoller {
	p := &NamesPoller{source: source, connector: connector}
	p.Manager = newManager("names", log, p.cycle, func(names []model.CacheNameInfo) error {
		if _, err := sink.PublishCacheNames(names, time.Now()); err != nil {
			return err
		}
		metrics.Caches.Set(float64(len(names)))
		return nil
	})
	p.log = p.Manager.log
	return p
}

func (p *NamesPoller) cycle(ctx context.Context, s Settings) ([]model.CacheNameInfo, outcome, error) {
	nodes, err := p.source.Members(ctx)
	if err != nil {
		return nil, outcomeAborted, fmt.Errorf("%w: membership: %w", ErrCycleAborted, err)
	}

	results := make([][]model.CacheRef, len(nodes))
	answered := make([]bool, len(nodes))
	fanOut(ctx, s.MaxConcurrency, len(nodes), func(parent context.Context, i int) {
		ctx, cancel := context.WithTimeout(parent, s.NodeTimeout)
		defer cancel()

		refs, err := p.queryNode(ctx, nodes[i], s)
		if err != nil {
			if parent.Err() == nil {
				nodeFailed(p.log, "names", nodes[i].Key(), err)
			}
			return
		}
		results[i], answered[i] = refs, true
	})
	if ctx.Err() != nil {
		return nil, outcomeCancelled, ctx.Err()
	}

	names := mergeNames(nodes, results, answered)
	if names == nil {
		return nil, outcomeKeep, nil
	}
	return names, outcomePublish, nil
}

func (p *NamesPoller) queryNode(ctx context.Context, node model.NodeEndpoint, s Settings) ([]model.CacheRef, error) {
	ctx, end := tracing.StartSpan(ctx, "names.node", attribute.String("node", node.Key()))
	defer end()

	sess, err := p.connector.Connect(ctx, node, s.Credentials, s.PortOffset)
	if err != nil {
		return nil, err
	}
	defer sess.Close()
	return sess.CacheNames(ctx)
}

// mergeNames unions the per-node results, ordered by name. It returns nil
// when no node answered; a non-nil empty slice means the answering nodes
// define no caches.
func mergeNames(nodes []model.NodeEndpoint, results [][]model.CacheRef, answered []bool) []model.CacheNameInfo {
	reachable := 0
	byName := make(map[string]*model.CacheNameInfo)
	for i, ok := range answered {
		if !ok {
			continue
		}
		reachable++
		key := nodes[i].Key()
		for _, ref := range results[i] {
			info, seen := byName[ref.Name]
			if !seen {
				info = &model.CacheNameInfo{Name: ref.Name, Kind: ref.Kind}
				byName[ref.Name] = info
			}
			info.Nodes = append(info.Nodes, key)
		}
	}
	if reachable == 0 {
		return nil
	}

	out := make([]model.CacheNameInfo, 0, len(byName))
	for _, info := range byName {
		sort.Strings(info.Nodes)
		info.ClusterWide = len(info.Nodes) == reachable
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
