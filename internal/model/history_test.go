package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSparklineHistory_PushAndLen(t *testing.T) {
	h := NewSparklineHistory(5)
	assert.Equal(t, 0, h.Len())

	h.Push(SparklinePoint{Timestamp: time.Now(), TotalEntries: 1})
	assert.Equal(t, 1, h.Len())

	h.Push(SparklinePoint{Timestamp: time.Now(), TotalEntries: 2})
	h.Push(SparklinePoint{Timestamp: time.Now(), TotalEntries: 3})
	assert.Equal(t, 3, h.Len())
}

func TestSparklineHistory_OverwritesOldest(t *testing.T) {
	h := NewSparklineHistory(3)

	h.Push(SparklinePoint{TotalEntries: 10})
	h.Push(SparklinePoint{TotalEntries: 20})
	h.Push(SparklinePoint{TotalEntries: 30})
	require.Equal(t, 3, h.Len())

	h.Push(SparklinePoint{TotalEntries: 40})
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []float64{20, 30, 40}, h.Values("totalEntries"))

	h.Push(SparklinePoint{TotalEntries: 50})
	assert.Equal(t, []float64{30, 40, 50}, h.Values("totalEntries"))
}

func TestSparklineHistory_Values_AllFields(t *testing.T) {
	h := NewSparklineHistory(2)
	h.Push(SparklinePoint{TotalEntries: 100, ReachableNodes: 2, Caches: 4})

	assert.Equal(t, []float64{100}, h.Values("totalEntries"))
	assert.Equal(t, []float64{2}, h.Values("reachableNodes"))
	assert.Equal(t, []float64{4}, h.Values("caches"))
	// Unknown field should return zeros
	assert.Equal(t, []float64{0}, h.Values("bogusField"))
}

func TestSparklineHistory_ClearAndDefaultCapacity(t *testing.T) {
	h := NewSparklineHistory(0)
	for i := 0; i < 65; i++ {
		h.Push(SparklinePoint{TotalEntries: float64(i)})
	}
	assert.Equal(t, 60, h.Len())
	vals := h.Values("totalEntries")
	assert.Equal(t, float64(5), vals[0])
	assert.Equal(t, float64(64), vals[59])

	h.Clear()
	assert.Equal(t, 0, h.Len())
	assert.Empty(t, h.Values("totalEntries"))
}

func TestPointFromSnapshot(t *testing.T) {
	now := time.Now()
	snap := &ClusterSnapshot{
		Nodes: []NodeStatus{
			{Endpoint: NodeEndpoint{Host: "a", Port: 11222}, Reachable: true},
			{Endpoint: NodeEndpoint{Host: "b", Port: 11222}, Reachable: false},
		},
		Entries: map[string]map[string]EntryCount{
			"a:11222": {"users": Count(7), "orders": Count(3)},
			"b:11222": {"users": Unknown, "orders": Unknown},
		},
		GeneratedAt: now,
	}
	p := PointFromSnapshot(snap, 2)
	assert.Equal(t, now, p.Timestamp)
	assert.Equal(t, float64(10), p.TotalEntries)
	assert.Equal(t, float64(1), p.ReachableNodes)
	assert.Equal(t, float64(2), p.Caches)
}
