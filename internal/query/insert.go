package query

import (
	"fmt"

	"github.com/tuannm99/heapdb/internal/bufferpool"
	"github.com/tuannm99/heapdb/internal/catalog"
	"github.com/tuannm99/heapdb/internal/record"
	"github.com/tuannm99/heapdb/internal/storage"
	"github.com/tuannm99/heapdb/internal/types"
)

// Insert drains its child into the target table through the buffer
// pool and emits exactly one tuple holding the number of rows
// inserted, then EOF.
type Insert struct {
	pool    *bufferpool.Pool
	tid     storage.TransactionID
	child   OpIterator
	tableID int
	desc    *record.TupleDesc
	done    bool
}

// NewInsert fails with record.ErrDescMismatch when the child's schema
// does not match the target table's.
func NewInsert(pool *bufferpool.Pool, cat *catalog.Catalog, tid storage.TransactionID, child OpIterator, tableID int) (*Insert, error) {
	td, err := cat.GetTupleDesc(tableID)
	if err != nil {
		return nil, err
	}
	if !td.Equals(child.TupleDesc()) {
		return nil, record.ErrDescMismatch
	}
	return &Insert{
		pool:    pool,
		tid:     tid,
		child:   child,
		tableID: tableID,
		desc:    record.NewTupleDesc([]types.Type{types.IntType}, []string{"inserted"}),
	}, nil
}

func (op *Insert) Open() error {
	op.done = false
	return op.child.Open()
}

func (op *Insert) HasNext() (bool, error) { return !op.done, nil }

func (op *Insert) Next() (*record.Tuple, error) {
	if op.done {
		return nil, storage.ErrNoSuchTuple
	}

	count := 0
	for {
		ok, err := op.child.HasNext()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		t, err := op.child.Next()
		if err != nil {
			return nil, err
		}
		if err := op.pool.InsertTuple(op.tid, op.tableID, t); err != nil {
			return nil, fmt.Errorf("query: insert into table %d: %w", op.tableID, err)
		}
		count++
	}

	out := record.NewTuple(op.desc)
	out.SetField(0, types.NewIntField(int32(count)))
	op.done = true
	return out, nil
}

func (op *Insert) Rewind() error {
	op.done = false
	return op.child.Rewind()
}

func (op *Insert) Close() { op.child.Close() }

func (op *Insert) TupleDesc() *record.TupleDesc { return op.desc }
