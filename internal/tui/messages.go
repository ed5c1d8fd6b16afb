package tui

import (
	"time"

	"github.com/dm/gridmon/internal/model"
)

// SnapshotMsg delivers the store's current contents to the TUI. Snapshot
// is nil until the first publication.
type SnapshotMsg struct {
	Snapshot  *model.ClusterSnapshot
	Caches    []model.CacheNameInfo
	Scheduled bool
}

// TickMsg triggers the next scheduled read.
type TickMsg time.Time
