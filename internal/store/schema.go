package store

import (
	"time"

	memdb "github.com/hashicorp/go-memdb"

	"github.com/dm/gridmon/internal/model"
)

const (
	cacheTable = "caches"
	nodeTable  = "nodes"
	metaTable  = "meta"

	idIndex = "id"

	metaNames    = "names"
	metaSnapshot = "snapshot"
)

type cacheRow struct {
	Name     string
	Position int
	Info     model.CacheNameInfo
}

type nodeRow struct {
	Key      string
	Position int
	Status   model.NodeStatus
	Entries  map[string]model.EntryCount
}

type metaRow struct {
	Kind        string
	Generation  uint64
	GeneratedAt time.Time
}

var allTables = []func() *memdb.TableSchema{
	cacheTableSchema,
	nodeTableSchema,
	metaTableSchema,
}

func schema() *memdb.DBSchema {
	dbSchema := &memdb.DBSchema{
		Tables: make(map[string]*memdb.TableSchema),
	}
	for _, sfn := range allTables {
		s := sfn()
		dbSchema.Tables[s.Name] = s
	}
	return dbSchema
}

func cacheTableSchema() *memdb.TableSchema {
	return &memdb.TableSchema{
		Name: cacheTable,
		Indexes: map[string]*memdb.IndexSchema{
			idIndex: stringIDIndex("Name"),
		},
	}
}

func nodeTableSchema() *memdb.TableSchema {
	return &memdb.TableSchema{
		Name: nodeTable,
		Indexes: map[string]*memdb.IndexSchema{
			idIndex: stringIDIndex("Key"),
		},
	}
}

func metaTableSchema() *memdb.TableSchema {
	return &memdb.TableSchema{
		Name: metaTable,
		Indexes: map[string]*memdb.IndexSchema{
			idIndex: stringIDIndex("Kind"),
		},
	}
}

func stringIDIndex(field string) *memdb.IndexSchema {
	return &memdb.IndexSchema{
		Name:         idIndex,
		AllowMissing: false,
		Unique:       true,
		Indexer:      &memdb.StringFieldIndex{Field: field},
	}
}
