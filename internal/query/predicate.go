package query

import (
	"fmt"

	"github.com/tuannm99/heapdb/internal/record"
	"github.com/tuannm99/heapdb/internal/types"
)

// Predicate compares one field of a tuple against a constant operand.
type Predicate struct {
	FieldIndex int
	Op         types.Predicate
	Operand    types.Field
}

func NewPredicate(fieldIndex int, op types.Predicate, operand types.Field) *Predicate {
	return &Predicate{FieldIndex: fieldIndex, Op: op, Operand: operand}
}

// Matches applies the predicate to t.
func (p *Predicate) Matches(t *record.Tuple) (bool, error) {
	return t.Field(p.FieldIndex).Compare(p.Op, p.Operand)
}

func (p *Predicate) String() string {
	return fmt.Sprintf("f%d %s %s", p.FieldIndex, p.Op, p.Operand)
}
