package catalog

import (
	"github.com/tuannm99/heapdb/internal/record"
	"github.com/tuannm99/heapdb/internal/storage"
)

// DbFileIterator is a restartable cursor over the tuples of a file.
// Open establishes starting state, Rewind restarts from the beginning
// and Close releases cursor state (never locks).
type DbFileIterator interface {
	Open() error
	HasNext() (bool, error)
	Next() (*record.Tuple, error)
	Rewind() error
	Close()
}

// DbFile is the capability a table's backing file exposes to the buffer
// pool and the operators: page-level read/write plus tuple insert/delete
// and a transactional scan. Heap files implement it today; index files
// can implement the same set later.
type DbFile interface {
	// ReadPage reads the page identified by pid directly from disk.
	ReadPage(pid storage.PageID) (storage.Page, error)

	// WritePage writes the page's canonical image at its page offset.
	WritePage(p storage.Page) error

	// InsertTuple adds t on behalf of tid and returns the dirtied
	// pages. The caller is responsible for marking them dirty.
	InsertTuple(tid storage.TransactionID, t *record.Tuple) ([]storage.Page, error)

	// DeleteTuple removes t (located by its record ID) on behalf of
	// tid and returns the dirtied pages.
	DeleteTuple(tid storage.TransactionID, t *record.Tuple) ([]storage.Page, error)

	// ID returns the stable table identity of this file.
	ID() int

	// TupleDesc returns the schema of tuples stored in this file.
	TupleDesc() *record.TupleDesc

	// Iterator returns a scan over all tuples on behalf of tid.
	Iterator(tid storage.TransactionID) DbFileIterator
}
