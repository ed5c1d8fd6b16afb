// Package store holds the latest published cache-name set and cluster
// snapshot. Each publication replaces its tables inside one memdb write
// transaction, so readers observe either the old generation or the new
// one, never a mix.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	memdb "github.com/hashicorp/go-memdb"

	"github.com/dm/gridmon/internal/model"
)

// Store is the process-wide latest-value holder read by the serving side.
// Writes are serialized; reads never block on writers.
type Store struct {
	db *memdb.MemDB
	mu sync.Mutex // serializes generation numbering across writers
}

// New creates an empty store.
func New() (*Store, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return &Store{db: db}, nil
}

// PublishCacheNames replaces the published cache-name set.
func (s *Store) PublishCacheNames(names []model.CacheNameInfo, at time.Time) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn := s.db.Txn(true)
	defer txn.Abort()

	gen := nextGeneration(txn, metaNames)
	if _, err := txn.DeleteAll(cacheTable, idIndex); err != nil {
		return 0, fmt.Errorf("clear caches: %w", err)
	}
	for i, info := range names {
		info.Nodes = append([]string(nil), info.Nodes...)
		if err := txn.Insert(cacheTable, &cacheRow{Name: info.Name, Position: i, Info: info}); err != nil {
			return 0, fmt.Errorf("insert cache %q: %w", info.Name, err)
		}
	}
	if err := txn.Insert(metaTable, &metaRow{Kind: metaNames, Generation: gen, GeneratedAt: at}); err != nil {
		return 0, fmt.Errorf("insert meta: %w", err)
	}
	txn.Commit()
	return gen, nil
}

// CacheNames returns the published cache-name set in publication order.
// It is empty until the first publication.
func (s *Store) CacheNames() []model.CacheNameInfo {
	txn := s.db.Txn(false)
	it, err := txn.Get(cacheTable, idIndex)
	if err != nil {
		return nil
	}
	var rows []*cacheRow
	for obj := it.Next(); obj != nil; obj = it.Next() {
		rows = append(rows, obj.(*cacheRow))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Position < rows[j].Position })

	out := make([]model.CacheNameInfo, len(rows))
	for i, r := range rows {
		out[i] = r.Info
		out[i].Nodes = append([]string(nil), r.Info.Nodes...)
	}
	return out
}

// NamesGeneration reports the generation and time of the last cache-name
// publication; zero before the first.
func (s *Store) NamesGeneration() (uint64, time.Time) {
	return s.meta(metaNames)
}

// PublishSnapshot atomically replaces the published snapshot. The stored
// snapshot's Generation is assigned here and returned.
func (s *Store) PublishSnapshot(snap *model.ClusterSnapshot) (uint64, error) {
	if snap == nil {
		return 0, fmt.Errorf("store: nil snapshot")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	txn := s.db.Txn(true)
	defer txn.Abort()

	gen := nextGeneration(txn, metaSnapshot)
	if _, err := txn.DeleteAll(nodeTable, idIndex); err != nil {
		return 0, fmt.Errorf("clear nodes: %w", err)
	}
	for i, ns := range snap.Nodes {
		key := ns.Endpoint.Key()
		if c, ok := snap.Colors[key]; ok {
			ns.Color = c
		}
		row := &nodeRow{
			Key:      key,
			Position: i,
			Status:   ns,
			Entries:  copyCounts(snap.Entries[key]),
		}
		if err := txn.Insert(nodeTable, row); err != nil {
			return 0, fmt.Errorf("insert node %s: %w", key, err)
		}
	}
	if err := txn.Insert(metaTable, &metaRow{Kind: metaSnapshot, Generation: gen, GeneratedAt: snap.GeneratedAt}); err != nil {
		return 0, fmt.Errorf("insert meta: %w", err)
	}
	txn.Commit()
	return gen, nil
}

// Snapshot returns a copy of the published snapshot, or false before the
// first publication.
func (s *Store) Snapshot() (*model.ClusterSnapshot, bool) {
	txn := s.db.Txn(false)
	raw, err := txn.First(metaTable, idIndex, metaSnapshot)
	if err != nil || raw == nil {
		return nil, false
	}
	meta := raw.(*metaRow)

	it, err := txn.Get(nodeTable, idIndex)
	if err != nil {
		return nil, false
	}
	var rows []*nodeRow
	for obj := it.Next(); obj != nil; obj = it.Next() {
		rows = append(rows, obj.(*nodeRow))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Position < rows[j].Position })

	snap := &model.ClusterSnapshot{
		Nodes:       make([]model.NodeStatus, len(rows)),
		Entries:     make(map[string]map[string]model.EntryCount, len(rows)),
		Colors:      make(map[string]model.Color, len(rows)),
		GeneratedAt: meta.GeneratedAt,
		Generation:  meta.Generation,
	}
	for i, r := range rows {
		snap.Nodes[i] = r.Status
		snap.Entries[r.Key] = copyCounts(r.Entries)
		snap.Colors[r.Key] = r.Status.Color
	}
	return snap, true
}

// Generation reports the generation and time of the last snapshot
// publication; zero before the first.
func (s *Store) Generation() (uint64, time.Time) {
	return s.meta(metaSnapshot)
}

// SnapshotChanged returns a channel closed on the next snapshot
// publication. It may also fire on a cache-name publication; callers
// re-read and compare generations.
func (s *Store) SnapshotChanged() <-chan struct{} {
	return s.watch(metaSnapshot)
}

// NamesChanged returns a channel closed on the next cache-name
// publication.
func (s *Store) NamesChanged() <-chan struct{} {
	return s.watch(metaNames)
}

func (s *Store) watch(kind string) <-chan struct{} {
	txn := s.db.Txn(false)
	ch, _, err := txn.FirstWatch(metaTable, idIndex, kind)
	if err != nil {
		// Schema errors cannot happen with the static schema; return a
		// channel that never fires rather than a closed one.
		return make(chan struct{})
	}
	return ch
}

func (s *Store) meta(kind string) (uint64, time.Time) {
	txn := s.db.Txn(false)
	raw, err := txn.First(metaTable, idIndex, kind)
	if err != nil || raw == nil {
		return 0, time.Time{}
	}
	m := raw.(*metaRow)
	return m.Generation, m.GeneratedAt
}

func nextGeneration(txn *memdb.Txn, kind string) uint64 {
	raw, err := txn.First(metaTable, idIndex, kind)
	if err != nil || raw == nil {
		return 1
	}
	return raw.(*metaRow).Generation + 1
}

func copyCounts(in map[string]model.EntryCount) map[string]model.EntryCount {
	out := make(map[string]model.EntryCount, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
