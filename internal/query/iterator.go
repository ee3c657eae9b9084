package query

import (
	"github.com/tuannm99/heapdb/internal/record"
)

// OpIterator is the capability set operators expose to their parents.
// Next without a preceding successful HasNext fails with
// storage.ErrNoSuchTuple.
type OpIterator interface {
	Open() error
	HasNext() (bool, error)
	Next() (*record.Tuple, error)
	Rewind() error
	Close()
	TupleDesc() *record.TupleDesc
}
