package query

import (
	"github.com/tuannm99/heapdb/internal/record"
	"github.com/tuannm99/heapdb/internal/storage"
)

// Filter passes through the child's tuples that satisfy a predicate.
type Filter struct {
	pred  *Predicate
	child OpIterator
	next  *record.Tuple
}

func NewFilter(pred *Predicate, child OpIterator) *Filter {
	return &Filter{pred: pred, child: child}
}

func (f *Filter) Open() error {
	f.next = nil
	return f.child.Open()
}

func (f *Filter) HasNext() (bool, error) {
	if f.next != nil {
		return true, nil
	}
	for {
		ok, err := f.child.HasNext()
		if err != nil || !ok {
			return false, err
		}
		t, err := f.child.Next()
		if err != nil {
			return false, err
		}
		match, err := f.pred.Matches(t)
		if err != nil {
			return false, err
		}
		if match {
			f.next = t
			return true, nil
		}
	}
}

func (f *Filter) Next() (*record.Tuple, error) {
	ok, err := f.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, storage.ErrNoSuchTuple
	}
	t := f.next
	f.next = nil
	return t, nil
}

func (f *Filter) Rewind() error {
	f.next = nil
	return f.child.Rewind()
}

func (f *Filter) Close() {
	f.next = nil
	f.child.Close()
}

func (f *Filter) TupleDesc() *record.TupleDesc { return f.child.TupleDesc() }
