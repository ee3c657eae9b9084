package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tuannm99/heapdb/internal/bufferpool"
	"github.com/tuannm99/heapdb/internal/catalog"
	"github.com/tuannm99/heapdb/internal/heap"
	"github.com/tuannm99/heapdb/internal/record"
	"github.com/tuannm99/heapdb/internal/storage"
)

// Options tune a Database instance. Zero values select defaults.
type Options struct {
	PoolCapacity int
	LockTimeout  time.Duration
}

// Database is the explicit context object tying the catalog and the
// buffer pool together. There is no process-wide singleton; tests
// instantiate independent databases over separate directories.
type Database struct {
	DataDir string
	Catalog *catalog.Catalog
	Pool    *bufferpool.Pool

	files []*heap.HeapFile
}

// NewDatabase creates a database rooted at dataDir.
func NewDatabase(dataDir string, opts Options) (*Database, error) {
	if err := os.MkdirAll(dataDir, storage.FileMode0755); err != nil {
		return nil, fmt.Errorf("engine: create data dir: %w", err)
	}

	cat := catalog.New()
	pool := bufferpool.NewPool(cat, opts.PoolCapacity, opts.LockTimeout)

	return &Database{
		DataDir: dataDir,
		Catalog: cat,
		Pool:    pool,
	}, nil
}

// CreateTable opens (creating if needed) the heap file for name and
// registers it in the catalog.
func (db *Database) CreateTable(name string, td *record.TupleDesc, pkeyName string) (*heap.HeapFile, error) {
	path := filepath.Join(db.DataDir, name+".dat")
	f, err := heap.NewHeapFile(path, td, db.Pool)
	if err != nil {
		return nil, err
	}
	db.Catalog.AddTable(f, name, pkeyName)
	db.files = append(db.files, f)

	log.WithFields(log.Fields{
		"table": name,
		"id":    f.ID(),
		"pages": f.PageCount(),
	}).Debug("table registered")
	return f, nil
}

// Close flushes every cached dirty page and closes the heap files.
func (db *Database) Close() error {
	if err := db.Pool.FlushAllPages(); err != nil {
		return err
	}
	for _, f := range db.files {
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
