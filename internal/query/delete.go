package query

import (
	"fmt"

	"github.com/tuannm99/heapdb/internal/bufferpool"
	"github.com/tuannm99/heapdb/internal/record"
	"github.com/tuannm99/heapdb/internal/storage"
	"github.com/tuannm99/heapdb/internal/types"
)

// Delete removes every tuple its child yields from the table each
// belongs to, then emits one tuple holding the count, then EOF.
type Delete struct {
	pool  *bufferpool.Pool
	tid   storage.TransactionID
	child OpIterator
	desc  *record.TupleDesc
	done  bool
}

func NewDelete(pool *bufferpool.Pool, tid storage.TransactionID, child OpIterator) *Delete {
	return &Delete{
		pool:  pool,
		tid:   tid,
		child: child,
		desc:  record.NewTupleDesc([]types.Type{types.IntType}, []string{"deleted"}),
	}
}

func (op *Delete) Open() error {
	op.done = false
	return op.child.Open()
}

func (op *Delete) HasNext() (bool, error) { return !op.done, nil }

func (op *Delete) Next() (*record.Tuple, error) {
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
		if err := op.pool.DeleteTuple(op.tid, t); err != nil {
			return nil, fmt.Errorf("query: delete: %w", err)
		}
		count++
	}

	out := record.NewTuple(op.desc)
	out.SetField(0, types.NewIntField(int32(count)))
	op.done = true
	return out, nil
}

func (op *Delete) Rewind() error {
	op.done = false
	return op.child.Rewind()
}

func (op *Delete) Close() { op.child.Close() }

func (op *Delete) TupleDesc() *record.TupleDesc { return op.desc }
