package record

import (
	"fmt"
	"io"
	"strings"

	"github.com/tuannm99/heapdb/internal/storage"
	"github.com/tuannm99/heapdb/internal/types"
)

// Tuple is one row: an ordered sequence of fields matching a TupleDesc,
// plus the record ID locating it in storage once it has been stored.
type Tuple struct {
	Desc   *TupleDesc
	Fields []types.Field
	RID    *storage.RecordID
}

func NewTuple(td *TupleDesc) *Tuple {
	return &Tuple{
		Desc:   td,
		Fields: make([]types.Field, td.NumFields()),
	}
}

func (t *Tuple) SetField(i int, f types.Field) { t.Fields[i] = f }

func (t *Tuple) Field(i int) types.Field { return t.Fields[i] }

// Serialize writes all fields in order at their fixed widths.
func (t *Tuple) Serialize(w io.Writer) error {
	for i, f := range t.Fields {
		if f == nil {
			return fmt.Errorf("record: field %d is unset", i)
		}
		if err := f.Serialize(w); err != nil {
			return err
		}
	}
	return nil
}

// ParseTuple reads one tuple of the given schema from r.
func ParseTuple(td *TupleDesc, r io.Reader) (*Tuple, error) {
	t := NewTuple(td)
	for i := 0; i < td.NumFields(); i++ {
		f, err := types.ParseField(td.TypeAt(i), r)
		if err != nil {
			return nil, fmt.Errorf("record: parse field %d: %w", i, err)
		}
		t.Fields[i] = f
	}
	return t, nil
}

func (t *Tuple) String() string {
	var sb strings.Builder
	for i, f := range t.Fields {
		if i > 0 {
			sb.WriteString("\t")
		}
		if f == nil {
			sb.WriteString("<nil>")
		} else {
			sb.WriteString(f.String())
		}
	}
	return sb.String()
}
