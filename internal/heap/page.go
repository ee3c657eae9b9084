package heap

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/tuannm99/heapdb/internal/record"
	"github.com/tuannm99/heapdb/internal/storage"
)

// HeapPage holds fixed-width tuple slots behind an occupancy bitmap.
//
// On-disk layout:
//
//	+--------------------+ 0
//	| slot bitmap        |  ceil(N/8) bytes, bit i of byte i/8 set
//	+--------------------+     <=> slot i is used
//	| slot 0 payload     |  tupleWidth bytes each
//	| slot 1 payload     |
//	| ...                |
//	+--------------------+
//	| padding            |  unspecified contents
//	+--------------------+ PageSize
//
// N = floor(PageSize*8 / (tupleWidth*8 + 1)).
type HeapPage struct {
	pid      storage.PageID
	td       *record.TupleDesc
	numSlots int

	mu      sync.Mutex
	header  []byte
	tuples  []*record.Tuple
	dirtier storage.TransactionID
	dirty   bool
	oldData []byte
}

// SlotsPerPage returns how many tuples of the given schema fit on one
// page at the current page size.
func SlotsPerPage(td *record.TupleDesc) int {
	return (storage.PageSize() * 8) / (td.Size()*8 + 1)
}

func headerBytes(numSlots int) int {
	return (numSlots + 7) / 8
}

// EmptyPageData returns the image of a freshly allocated page.
func EmptyPageData() []byte {
	return make([]byte, storage.PageSize())
}

// NewHeapPage deserializes a page image. data must be exactly
// PageSize() bytes.
func NewHeapPage(pid storage.PageID, data []byte, td *record.TupleDesc) (*HeapPage, error) {
	if len(data) != storage.PageSize() {
		return nil, fmt.Errorf("heap: page data is %d bytes, want %d", len(data), storage.PageSize())
	}

	hp := &HeapPage{
		pid:      pid,
		td:       td,
		numSlots: SlotsPerPage(td),
	}

	hb := headerBytes(hp.numSlots)
	hp.header = make([]byte, hb)
	copy(hp.header, data[:hb])

	hp.tuples = make([]*record.Tuple, hp.numSlots)
	width := td.Size()
	for i := 0; i < hp.numSlots; i++ {
		if !hp.slotUsed(i) {
			continue
		}
		off := hb + i*width
		t, err := record.ParseTuple(td, bytes.NewReader(data[off:off+width]))
		if err != nil {
			return nil, fmt.Errorf("heap: slot %d: %w", i, err)
		}
		t.RID = &storage.RecordID{PID: pid, Slot: i}
		hp.tuples[i] = t
	}

	hp.oldData = make([]byte, len(data))
	copy(hp.oldData, data)
	return hp, nil
}

func (hp *HeapPage) ID() storage.PageID { return hp.pid }

func (hp *HeapPage) TupleDesc() *record.TupleDesc { return hp.td }

func (hp *HeapPage) NumSlots() int { return hp.numSlots }

func (hp *HeapPage) slotUsed(i int) bool {
	return hp.header[i/8]&(1<<(uint(i)%8)) != 0
}

func (hp *HeapPage) setSlot(i int, used bool) {
	if used {
		hp.header[i/8] |= 1 << (uint(i) % 8)
	} else {
		hp.header[i/8] &^= 1 << (uint(i) % 8)
	}
}

// IsSlotUsed reports whether slot i holds a tuple.
func (hp *HeapPage) IsSlotUsed(i int) bool {
	hp.mu.Lock()
	defer hp.mu.Unlock()
	return i >= 0 && i < hp.numSlots && hp.slotUsed(i)
}

// NumEmptySlots returns how many slots are free.
func (hp *HeapPage) NumEmptySlots() int {
	hp.mu.Lock()
	defer hp.mu.Unlock()

	n := 0
	for i := 0; i < hp.numSlots; i++ {
		if !hp.slotUsed(i) {
			n++
		}
	}
	return n
}

// InsertTuple places t in the lowest-index free slot and stamps its
// record ID. Fails with storage.ErrPageFull when no slot is free and
// record.ErrDescMismatch when the schema does not match.
func (hp *HeapPage) InsertTuple(t *record.Tuple) error {
	if !hp.td.Equals(t.Desc) {
		return record.ErrDescMismatch
	}

	hp.mu.Lock()
	defer hp.mu.Unlock()

	for i := 0; i < hp.numSlots; i++ {
		if hp.slotUsed(i) {
			continue
		}
		hp.setSlot(i, true)
		t.RID = &storage.RecordID{PID: hp.pid, Slot: i}
		hp.tuples[i] = t
		return nil
	}
	return storage.ErrPageFull
}

// DeleteTuple clears the slot named by t's record ID. The payload bytes
// are not zeroed. Fails with storage.ErrNotOnPage when t does not live
// on this page or the slot is already empty.
func (hp *HeapPage) DeleteTuple(t *record.Tuple) error {
	if t.RID == nil || t.RID.PID != hp.pid {
		return storage.ErrNotOnPage
	}

	hp.mu.Lock()
	defer hp.mu.Unlock()

	slot := t.RID.Slot
	if slot < 0 || slot >= hp.numSlots || !hp.slotUsed(slot) {
		return storage.ErrNotOnPage
	}
	hp.setSlot(slot, false)
	hp.tuples[slot] = nil
	return nil
}

// PageData produces the canonical byte image.
func (hp *HeapPage) PageData() []byte {
	hp.mu.Lock()
	defer hp.mu.Unlock()

	data := make([]byte, storage.PageSize())
	copy(data, hp.header)

	hb := len(hp.header)
	width := hp.td.Size()
	for i, t := range hp.tuples {
		if t == nil {
			continue
		}
		var buf bytes.Buffer
		if err := t.Serialize(&buf); err != nil {
			continue
		}
		copy(data[hb+i*width:hb+(i+1)*width], buf.Bytes())
	}
	return data
}

// MarkDirty records tid as the dirtier. The before-image stays the
// bytes captured at load or at the last commit, so the pre-transaction
// state survives however many times the page is re-marked.
func (hp *HeapPage) MarkDirty(tid storage.TransactionID) {
	hp.mu.Lock()
	defer hp.mu.Unlock()
	hp.dirty = true
	hp.dirtier = tid
}

func (hp *HeapPage) MarkClean() {
	hp.mu.Lock()
	defer hp.mu.Unlock()
	hp.dirty = false
	hp.dirtier = 0
}

func (hp *HeapPage) DirtiedBy() (storage.TransactionID, bool) {
	hp.mu.Lock()
	defer hp.mu.Unlock()
	return hp.dirtier, hp.dirty
}

// BeforeImage reconstructs the page from the bytes captured at load or
// at the last SetBeforeImage.
func (hp *HeapPage) BeforeImage() storage.Page {
	hp.mu.Lock()
	old := make([]byte, len(hp.oldData))
	copy(old, hp.oldData)
	hp.mu.Unlock()

	p, err := NewHeapPage(hp.pid, old, hp.td)
	if err != nil {
		// The before-image was a valid page image when captured.
		panic(fmt.Sprintf("heap: corrupt before-image of %v: %v", hp.pid, err))
	}
	return p
}

// SetBeforeImage resets the before-image to the current bytes.
func (hp *HeapPage) SetBeforeImage() {
	data := hp.PageData()
	hp.mu.Lock()
	hp.oldData = data
	hp.mu.Unlock()
}

// Iterator yields the tuples of occupied slots in ascending slot order.
func (hp *HeapPage) Iterator() *PageIterator {
	return &PageIterator{page: hp}
}

// PageIterator is a restartable cursor over one page's occupied slots.
type PageIterator struct {
	page *HeapPage
	slot int
}

func (it *PageIterator) HasNext() bool {
	for it.slot < it.page.numSlots {
		if it.page.IsSlotUsed(it.slot) {
			return true
		}
		it.slot++
	}
	return false
}

func (it *PageIterator) Next() (*record.Tuple, error) {
	if !it.HasNext() {
		return nil, storage.ErrNoSuchTuple
	}
	it.page.mu.Lock()
	t := it.page.tuples[it.slot]
	it.page.mu.Unlock()
	it.slot++
	if t == nil {
		return nil, storage.ErrNoSuchTuple
	}
	return t, nil
}

func (it *PageIterator) Rewind() { it.slot = 0 }
