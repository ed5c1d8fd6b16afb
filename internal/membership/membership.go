// Package membership supplies the current list of cluster nodes to the
// pollers. The monitored cluster owns its membership protocol; a Source
// only reports which cache-protocol endpoints are currently known.
package membership

import (
	"context"
	"errors"
	"sort"

	"github.com/dm/gridmon/internal/model"
)

// ErrNotStarted is returned by Members outside Start/Stop.
var ErrNotStarted = errors.New("membership source not started")

// Source reports the live node endpoints of the cluster. Start and Stop
// bracket the process-scope connection; the pollers must be destroyed
// before Stop is called.
type Source interface {
	Start(ctx context.Context) error
	Members(ctx context.Context) ([]model.NodeEndpoint, error)
	Stop() error
}

// normalize dedupes endpoints by key and sorts them.
func normalize(in []model.NodeEndpoint) []model.NodeEndpoint {
	seen := make(map[string]struct{}, len(in))
	out := make([]model.NodeEndpoint, 0, len(in))
	for _, e := range in {
		if _, ok := seen[e.Key()]; ok {
			continue
		}
		seen[e.Key()] = struct{}{}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
