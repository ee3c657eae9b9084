package heap

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tuannm99/heapdb/internal/record"
	"github.com/tuannm99/heapdb/internal/storage"
)

// PageSource hands out pages under the caller transaction's locks. The
// buffer pool implements it; heap files request every tuple-level page
// access through it so that locking and caching stay in one place.
type PageSource interface {
	GetPage(tid storage.TransactionID, pid storage.PageID, perm storage.Permissions) (storage.Page, error)
}

// HeapFile stores the tuples of one table as a sequence of PageSize()
// byte pages with no file header. Page-level reads and writes go
// straight to disk; tuple-level operations go through the PageSource.
// HeapFile implements catalog.DbFile (asserted in iterator.go).
type HeapFile struct {
	f     *os.File
	path  string
	id    int
	td    *record.TupleDesc
	pages PageSource
}

// NewHeapFile opens (creating if needed) the heap file at path.
func NewHeapFile(path string, td *record.TupleDesc, pages PageSource) (*HeapFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(abs, os.O_RDWR|os.O_CREATE, storage.FileMode0644)
	if err != nil {
		return nil, fmt.Errorf("heap: open %s: %w", path, err)
	}
	return &HeapFile{
		f:     f,
		path:  abs,
		id:    storage.TableIDForPath(abs),
		td:    td,
		pages: pages,
	}, nil
}

// ID returns the stable table identity, derived from the absolute path.
func (hf *HeapFile) ID() int { return hf.id }

func (hf *HeapFile) TupleDesc() *record.TupleDesc { return hf.td }

func (hf *HeapFile) Path() string { return hf.path }

func (hf *HeapFile) Close() error { return hf.f.Close() }

// PageCount returns fileLength / PageSize().
func (hf *HeapFile) PageCount() int {
	info, err := hf.f.Stat()
	if err != nil {
		return 0
	}
	return int(info.Size()) / storage.PageSize()
}

// ReadPage reads one page directly from disk. Fails with
// storage.ErrPageOutOfRange when the offset is past end of file.
func (hf *HeapFile) ReadPage(pid storage.PageID) (storage.Page, error) {
	if pid.TableID != hf.id {
		return nil, fmt.Errorf("heap: %v does not belong to table %d", pid, hf.id)
	}
	if pid.PageNo < 0 || pid.PageNo >= hf.PageCount() {
		return nil, fmt.Errorf("%w: %v", storage.ErrPageOutOfRange, pid)
	}

	buf := make([]byte, storage.PageSize())
	off := int64(pid.PageNo) * int64(storage.PageSize())
	if _, err := hf.f.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("heap: read %v: %w", pid, err)
	}
	return NewHeapPage(pid, buf, hf.td)
}

// WritePage writes the page's canonical image at its offset.
func (hf *HeapFile) WritePage(p storage.Page) error {
	off := int64(p.ID().PageNo) * int64(storage.PageSize())
	if _, err := hf.f.WriteAt(p.PageData(), off); err != nil {
		return fmt.Errorf("heap: write %v: %w", p.ID(), err)
	}
	return nil
}

// appendEmptyPage grows the file by one zeroed page and returns its ID.
func (hf *HeapFile) appendEmptyPage() (storage.PageID, error) {
	pageNo := hf.PageCount()
	off := int64(pageNo) * int64(storage.PageSize())
	if _, err := hf.f.WriteAt(EmptyPageData(), off); err != nil {
		return storage.PageID{}, fmt.Errorf("heap: grow file: %w", err)
	}
	return storage.NewPageID(hf.id, pageNo), nil
}

// InsertTuple walks existing pages in READ_WRITE mode looking for a
// free slot, appending a fresh page when every page is full. Returns
// the dirtied page; marking it is the caller's job.
func (hf *HeapFile) InsertTuple(tid storage.TransactionID, t *record.Tuple) ([]storage.Page, error) {
	for i := 0; i < hf.PageCount(); i++ {
		pid := storage.NewPageID(hf.id, i)
		p, err := hf.pages.GetPage(tid, pid, storage.ReadWrite)
		if err != nil {
			return nil, err
		}
		hp := p.(*HeapPage)
		if hp.NumEmptySlots() == 0 {
			continue
		}
		if err := hp.InsertTuple(t); err != nil {
			return nil, err
		}
		return []storage.Page{hp}, nil
	}

	pid, err := hf.appendEmptyPage()
	if err != nil {
		return nil, err
	}
	p, err := hf.pages.GetPage(tid, pid, storage.ReadWrite)
	if err != nil {
		return nil, err
	}
	hp := p.(*HeapPage)
	if err := hp.InsertTuple(t); err != nil {
		return nil, err
	}
	return []storage.Page{hp}, nil
}

// DeleteTuple clears t's slot on the page named by its record ID.
func (hf *HeapFile) DeleteTuple(tid storage.TransactionID, t *record.Tuple) ([]storage.Page, error) {
	if t.RID == nil {
		return nil, storage.ErrNoSuchTuple
	}
	if t.RID.PID.TableID != hf.id {
		return nil, storage.ErrNotOnPage
	}

	p, err := hf.pages.GetPage(tid, t.RID.PID, storage.ReadWrite)
	if err != nil {
		return nil, err
	}
	hp := p.(*HeapPage)
	if err := hp.DeleteTuple(t); err != nil {
		return nil, err
	}
	return []storage.Page{hp}, nil
}
