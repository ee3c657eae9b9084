package query

import (
	"errors"

	"github.com/tuannm99/heapdb/internal/record"
	"github.com/tuannm99/heapdb/internal/storage"
	"github.com/tuannm99/heapdb/internal/types"
)

// NoGrouping selects a single global group.
const NoGrouping = -1

// AggregateOp is the aggregate function an aggregator computes.
type AggregateOp int

const (
	AggCount AggregateOp = iota
	AggSum
	AggAvg
	AggMin
	AggMax
)

func (op AggregateOp) String() string {
	switch op {
	case AggCount:
		return "COUNT"
	case AggSum:
		return "SUM"
	case AggAvg:
		return "AVG"
	case AggMin:
		return "MIN"
	case AggMax:
		return "MAX"
	default:
		return "UNKNOWN"
	}
}

var ErrUnsupportedAggregate = errors.New("query: unsupported aggregate for field type")

// StringAggregator computes COUNT over a stream of tuples with a
// string aggregate field, optionally grouped by another field.
type StringAggregator struct {
	gbfield     int
	gbfieldType types.Type
	afield      int
	groups      map[string]*stringGroup
	order       []string
}

type stringGroup struct {
	key    types.Field
	values []string
}

// NewStringAggregator fails with ErrUnsupportedAggregate for any
// operator other than COUNT.
func NewStringAggregator(gbfield int, gbfieldType types.Type, afield int, op AggregateOp) (*StringAggregator, error) {
	if op != AggCount {
		return nil, ErrUnsupportedAggregate
	}
	return &StringAggregator{
		gbfield:     gbfield,
		gbfieldType: gbfieldType,
		afield:      afield,
		groups:      make(map[string]*stringGroup),
	}, nil
}

// Merge folds one tuple into its group.
func (a *StringAggregator) Merge(t *record.Tuple) error {
	af, ok := t.Field(a.afield).(types.StringField)
	if !ok {
		return types.ErrTypeMismatch
	}

	var key types.Field
	mapKey := ""
	if a.gbfield != NoGrouping {
		key = t.Field(a.gbfield)
		mapKey = key.String()
	}

	g, ok := a.groups[mapKey]
	if !ok {
		g = &stringGroup{key: key}
		a.groups[mapKey] = g
		a.order = append(a.order, mapKey)
	}
	g.values = append(g.values, af.Value)
	return nil
}

func (a *StringAggregator) outputDesc() *record.TupleDesc {
	if a.gbfield == NoGrouping {
		return record.NewTupleDesc([]types.Type{types.IntType}, []string{"COUNT"})
	}
	return record.NewTupleDesc([]types.Type{a.gbfieldType, types.IntType}, []string{"", "COUNT"})
}

// Iterator emits one tuple per group: (groupKey, count), or (count)
// when there is no grouping. Insertion order is preserved.
func (a *StringAggregator) Iterator() OpIterator {
	return &stringAggIterator{agg: a, pos: -1}
}

type stringAggIterator struct {
	agg *StringAggregator
	pos int
}

func (it *stringAggIterator) Open() error {
	it.pos = 0
	return nil
}

func (it *stringAggIterator) HasNext() (bool, error) {
	return it.pos >= 0 && it.pos < len(it.agg.order), nil
}

func (it *stringAggIterator) Next() (*record.Tuple, error) {
	ok, _ := it.HasNext()
	if !ok {
		return nil, storage.ErrNoSuchTuple
	}

	g := it.agg.groups[it.agg.order[it.pos]]
	it.pos++

	out := record.NewTuple(it.agg.outputDesc())
	count := types.NewIntField(int32(len(g.values)))
	if it.agg.gbfield == NoGrouping {
		out.SetField(0, count)
	} else {
		out.SetField(0, g.key)
		out.SetField(1, count)
	}
	return out, nil
}

func (it *stringAggIterator) Rewind() error {
	it.pos = 0
	return nil
}

func (it *stringAggIterator) Close() { it.pos = -1 }

func (it *stringAggIterator) TupleDesc() *record.TupleDesc { return it.agg.outputDesc() }
