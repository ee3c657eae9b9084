package heap

import (
	"github.com/tuannm99/heapdb/internal/catalog"
	"github.com/tuannm99/heapdb/internal/record"
	"github.com/tuannm99/heapdb/internal/storage"
)

// Iterator returns a restartable scan over all tuples of the file on
// behalf of tid. Pages are acquired one at a time in READ_ONLY mode
// through the PageSource; locks are held until the transaction ends,
// not released by Close.
func (hf *HeapFile) Iterator(tid storage.TransactionID) catalog.DbFileIterator {
	return &FileIterator{file: hf, tid: tid}
}

var _ catalog.DbFile = (*HeapFile)(nil)

// FileIterator walks a heap file page by page, slot by slot.
type FileIterator struct {
	file   *HeapFile
	tid    storage.TransactionID
	open   bool
	pageNo int
	cursor *PageIterator
}

func (it *FileIterator) loadPage(pageNo int) error {
	pid := storage.NewPageID(it.file.id, pageNo)
	p, err := it.file.pages.GetPage(it.tid, pid, storage.ReadOnly)
	if err != nil {
		return err
	}
	it.pageNo = pageNo
	it.cursor = p.(*HeapPage).Iterator()
	return nil
}

// Open positions the cursor before the first tuple. A scan over an
// empty file opens successfully and reports no tuples.
func (it *FileIterator) Open() error {
	it.open = true
	it.pageNo = 0
	it.cursor = nil
	if it.file.PageCount() == 0 {
		return nil
	}
	return it.loadPage(0)
}

// HasNext advances across page boundaries transparently.
func (it *FileIterator) HasNext() (bool, error) {
	if !it.open || it.cursor == nil {
		return false, nil
	}
	for !it.cursor.HasNext() {
		next := it.pageNo + 1
		if next >= it.file.PageCount() {
			return false, nil
		}
		if err := it.loadPage(next); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Next returns the next tuple. Calling Next without a preceding
// successful HasNext fails with storage.ErrNoSuchTuple.
func (it *FileIterator) Next() (*record.Tuple, error) {
	ok, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, storage.ErrNoSuchTuple
	}
	return it.cursor.Next()
}

// Rewind restarts the scan from page 0.
func (it *FileIterator) Rewind() error {
	if !it.open {
		return nil
	}
	return it.Open()
}

// Close releases cursor state. It does not release locks; those belong
// to the transaction.
func (it *FileIterator) Close() {
	it.open = false
	it.cursor = nil
	it.pageNo = 0
}
