package record

import (
	"errors"
	"strings"

	"github.com/tuannm99/heapdb/internal/types"
)

var ErrDescMismatch = errors.New("record: tuple description mismatch")

// TDItem is one element of a tuple description: a field type plus an
// advisory name.
type TDItem struct {
	Type types.Type
	Name string
}

// TupleDesc is the schema of a tuple, an ordered sequence of typed
// fields. Equality is element-wise by type; names do not participate.
type TupleDesc struct {
	Items []TDItem
}

// NewTupleDesc builds a description from parallel type and name slices.
// names may be nil or shorter than fieldTypes; missing names are empty.
func NewTupleDesc(fieldTypes []types.Type, names []string) *TupleDesc {
	items := make([]TDItem, len(fieldTypes))
	for i, t := range fieldTypes {
		items[i].Type = t
		if i < len(names) {
			items[i].Name = names[i]
		}
	}
	return &TupleDesc{Items: items}
}

func (td *TupleDesc) NumFields() int { return len(td.Items) }

func (td *TupleDesc) TypeAt(i int) types.Type { return td.Items[i].Type }

func (td *TupleDesc) NameAt(i int) string { return td.Items[i].Name }

// Size returns the serialized width in bytes of tuples of this schema.
func (td *TupleDesc) Size() int {
	var n int
	for _, it := range td.Items {
		n += it.Type.Length()
	}
	return n
}

// Equals reports element-wise type equality.
func (td *TupleDesc) Equals(other *TupleDesc) bool {
	if other == nil || len(td.Items) != len(other.Items) {
		return false
	}
	for i := range td.Items {
		if td.Items[i].Type != other.Items[i].Type {
			return false
		}
	}
	return true
}

func (td *TupleDesc) String() string {
	var sb strings.Builder
	for i, it := range td.Items {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(it.Type.String())
		if it.Name != "" {
			sb.WriteString("(" + it.Name + ")")
		}
	}
	return sb.String()
}
