package model

// Cache kinds as named by the management model.
const (
	KindDistributed  = "distributed-cache"
	KindReplicated   = "replicated-cache"
	KindInvalidation = "invalidation-cache"
	KindLocal        = "local-cache"
)

// CacheKinds lists every kind the discovery poller asks each node about.
var CacheKinds = []string{KindDistributed, KindReplicated, KindInvalidation, KindLocal}

// CacheRef addresses one cache on a node's management endpoint.
type CacheRef struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// CacheNameInfo is one entry of the discovered cache universe. Nodes lists
// the keys of the nodes that define it; a cache defined on every node that
// answered in the cycle is also ClusterWide.
type CacheNameInfo struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Nodes       []string `json:"nodes,omitempty"`
	ClusterWide bool     `json:"clusterWide"`
}

// Ref returns the management address of the cache.
func (c CacheNameInfo) Ref() CacheRef {
	return CacheRef{Name: c.Name, Kind: c.Kind}
}
