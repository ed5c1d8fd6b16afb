package model

import (
	"encoding/json"
	"time"
)

// EntryCount is a cache's local entry count on one node. A failed read is
// Unknown, which is distinct from a real count of zero.
type EntryCount struct {
	Value int64
	Known bool
}

// Unknown is the count recorded when a node or cache could not be read.
var Unknown = EntryCount{}

// Count wraps a successfully read value.
func Count(v int64) EntryCount { return EntryCount{Value: v, Known: true} }

// MarshalJSON encodes unknown counts as null.
func (c EntryCount) MarshalJSON() ([]byte, error) {
	if !c.Known {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

// UnmarshalJSON decodes null as Unknown.
func (c *EntryCount) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*c = Unknown
		return nil
	}
	var v int64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*c = Count(v)
	return nil
}

// EntrySnapshot is the result of reading one (node, cache) pair.
type EntrySnapshot struct {
	Node  string
	Cache string
	Count EntryCount
	At    time.Time
}

// NodeStatus describes a member node as seen by one entry-count cycle.
type NodeStatus struct {
	Endpoint  NodeEndpoint `json:"endpoint"`
	Color     Color        `json:"color"`
	Reachable bool         `json:"reachable"`
}

// ClusterSnapshot is the merged view produced by one entry-count cycle.
// It is immutable once published.
type ClusterSnapshot struct {
	Nodes       []NodeStatus                     `json:"nodes"`
	Entries     map[string]map[string]EntryCount `json:"entries"`
	Colors      map[string]Color                 `json:"colors"`
	GeneratedAt time.Time                        `json:"generatedAt"`
	Generation  uint64                           `json:"generation"`
}

// Count returns the entry count of cache on node, Unknown if absent.
func (s *ClusterSnapshot) Count(node, cache string) EntryCount {
	if s == nil {
		return Unknown
	}
	return s.Entries[node][cache]
}

// TotalEntries sums every known count in the snapshot.
func (s *ClusterSnapshot) TotalEntries() int64 {
	if s == nil {
		return 0
	}
	var total int64
	for _, caches := range s.Entries {
		for _, c := range caches {
			if c.Known {
				total += c.Value
			}
		}
	}
	return total
}

// Reachable returns the number of nodes that answered in the cycle.
func (s *ClusterSnapshot) Reachable() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, ns := range s.Nodes {
		if ns.Reachable {
			n++
		}
	}
	return n
}
