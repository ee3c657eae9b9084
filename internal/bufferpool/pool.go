package bufferpool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tuannm99/heapdb/internal/catalog"
	"github.com/tuannm99/heapdb/internal/record"
	"github.com/tuannm99/heapdb/internal/storage"
)

var (
	// DefaultCapacity is the cache size when the caller passes none.
	DefaultCapacity = 50

	// DefaultLockTimeout bounds a single lock wait. The actual
	// deadline of each acquisition is uniform on [0, timeout).
	DefaultLockTimeout = 1000 * time.Millisecond

	// ErrTooManyDirtyPages means eviction found no clean victim: the
	// cache is full of pages that NO-STEAL forbids writing out.
	ErrTooManyDirtyPages = errors.New("bufferpool: too many dirty pages")
)

// Files resolves a table identity to its backing file. The catalog
// implements it; taking the narrow interface keeps the pool and the
// files free of references to each other.
type Files interface {
	GetFile(tableID int) (catalog.DbFile, error)
}

// Pool is the bounded page cache every page access goes through. It
// acquires page locks on behalf of transactions, reads pages from heap
// files on miss, evicts clean pages under capacity pressure and carries
// out the NO-STEAL / FORCE discipline at transaction completion.
type Pool struct {
	files Files
	locks *lockTable

	mu       sync.Mutex
	pages    map[storage.PageID]storage.Page
	capacity int
}

// NewPool creates a pool caching up to capacity pages. Non-positive
// capacity or timeout select the defaults.
func NewPool(files Files, capacity int, lockTimeout time.Duration) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{
		files:    files,
		locks:    newLockTable(lockTimeout),
		pages:    make(map[storage.PageID]storage.Page),
		capacity: capacity,
	}
}

// GetPage returns the requested page after acquiring the lock implied
// by perm: READ_ONLY takes a shared lock, READ_WRITE an exclusive one.
// Fails with ErrTransactionAborted when the lock wait times out and
// ErrTooManyDirtyPages when the cache has no clean page to evict.
func (bp *Pool) GetPage(tid storage.TransactionID, pid storage.PageID, perm storage.Permissions) (storage.Page, error) {
	if err := bp.locks.acquire(tid, pid, perm); err != nil {
		return nil, fmt.Errorf("%w: %v waiting for %v %v", ErrTransactionAborted, tid, perm, pid)
	}

	bp.mu.Lock()
	if p, ok := bp.pages[pid]; ok {
		bp.mu.Unlock()
		return p, nil
	}
	bp.mu.Unlock()

	// Miss: read outside the cache mutex. The page lock we now hold
	// keeps the on-disk image stable.
	f, err := bp.files.GetFile(pid.TableID)
	if err != nil {
		return nil, err
	}
	p, err := f.ReadPage(pid)
	if err != nil {
		return nil, err
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()
	if cached, ok := bp.pages[pid]; ok {
		// Another holder of a shared lock loaded it first.
		return cached, nil
	}
	if err := bp.insertPageLocked(p); err != nil {
		return nil, err
	}
	return p, nil
}

// insertPageLocked adds p to the cache, evicting first when at
// capacity. Caller holds bp.mu.
func (bp *Pool) insertPageLocked(p storage.Page) error {
	if len(bp.pages) >= bp.capacity {
		if err := bp.evictPageLocked(); err != nil {
			return err
		}
	}
	bp.pages[p.ID()] = p
	return nil
}

// evictPageLocked drops the first clean page it finds. Dirty pages are
// never victims (NO-STEAL). Caller holds bp.mu.
func (bp *Pool) evictPageLocked() error {
	for pid, p := range bp.pages {
		if _, dirty := p.DirtiedBy(); !dirty {
			delete(bp.pages, pid)
			log.WithField("page", pid.String()).Debug("evicted clean page")
			return nil
		}
	}
	return ErrTooManyDirtyPages
}

// InsertTuple adds t to the named table on behalf of tid. The heap
// file picks the page (locking it READ_WRITE through this pool); every
// dirtied page is marked with tid and kept cached.
func (bp *Pool) InsertTuple(tid storage.TransactionID, tableID int, t *record.Tuple) error {
	f, err := bp.files.GetFile(tableID)
	if err != nil {
		return err
	}
	dirtied, err := f.InsertTuple(tid, t)
	if err != nil {
		return err
	}
	return bp.markDirtied(tid, dirtied)
}

// DeleteTuple removes t from its table on behalf of tid.
func (bp *Pool) DeleteTuple(tid storage.TransactionID, t *record.Tuple) error {
	if t.RID == nil {
		return storage.ErrNoSuchTuple
	}
	f, err := bp.files.GetFile(t.RID.PID.TableID)
	if err != nil {
		return err
	}
	dirtied, err := f.DeleteTuple(tid, t)
	if err != nil {
		return err
	}
	return bp.markDirtied(tid, dirtied)
}

func (bp *Pool) markDirtied(tid storage.TransactionID, dirtied []storage.Page) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for _, p := range dirtied {
		p.MarkDirty(tid)
		if _, ok := bp.pages[p.ID()]; !ok {
			if err := bp.insertPageLocked(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReleasePage drops tid's lock on pid without completing the
// transaction. Calling this is risky: it breaks two-phase locking, so
// the caller must know why the early release cannot produce anomalies.
func (bp *Pool) ReleasePage(tid storage.TransactionID, pid storage.PageID) {
	bp.locks.release(tid, pid)
}

// HoldsLock reports whether tid holds any lock on pid.
func (bp *Pool) HoldsLock(tid storage.TransactionID, pid storage.PageID) bool {
	return bp.locks.holdsLock(tid, pid)
}

// Commit completes tid successfully.
func (bp *Pool) Commit(tid storage.TransactionID) error {
	return bp.TransactionComplete(tid, true)
}

// Abort rolls tid back.
func (bp *Pool) Abort(tid storage.TransactionID) error {
	return bp.TransactionComplete(tid, false)
}

// TransactionComplete ends tid. A commit writes every page tid owns
// (FORCE) before any lock is released; an abort puts the before-images
// back so no effect of tid stays observable. All locks are released
// last, preserving strict two-phase locking.
func (bp *Pool) TransactionComplete(tid storage.TransactionID, commit bool) error {
	if commit {
		if err := bp.FlushPages(tid); err != nil {
			return err
		}
	} else {
		bp.revertPages(tid)
		log.WithField("tid", tid.String()).Debug("transaction aborted, dirty pages reverted")
	}

	bp.locks.releaseAll(tid)
	return nil
}

// FlushPages writes every page owned exclusively by tid or held
// solely-shared by tid, then resets their before-images and clears the
// dirty markers.
func (bp *Pool) FlushPages(tid storage.TransactionID) error {
	for _, pid := range bp.locks.pagesOwnedBy(tid) {
		if err := bp.FlushPage(pid); err != nil {
			return err
		}
	}
	return nil
}

// FlushPage writes a single page if it is cached and dirty, resetting
// its before-image to the committed bytes.
func (bp *Pool) FlushPage(pid storage.PageID) error {
	bp.mu.Lock()
	p, ok := bp.pages[pid]
	bp.mu.Unlock()
	if !ok {
		return nil
	}
	if _, dirty := p.DirtiedBy(); !dirty {
		return nil
	}

	f, err := bp.files.GetFile(pid.TableID)
	if err != nil {
		return err
	}
	if err := f.WritePage(p); err != nil {
		return err
	}
	p.SetBeforeImage()
	p.MarkClean()
	log.WithField("page", pid.String()).Debug("flushed page")
	return nil
}

// revertPages replaces every cached page dirtied by tid with its
// before-image. NO-STEAL guarantees the on-disk bytes are still the
// pre-transaction image, so no disk write is needed. Pages tid only
// read stay cached as they are.
func (bp *Pool) revertPages(tid storage.TransactionID) {
	held := bp.locks.pagesHeldBy(tid)

	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, pid := range held {
		p, ok := bp.pages[pid]
		if !ok {
			continue
		}
		if by, dirty := p.DirtiedBy(); dirty && by == tid {
			bp.pages[pid] = p.BeforeImage()
		}
	}
}

// FlushAllPages writes every cached dirty page. Shutdown and tests
// only: writing uncommitted pages breaks the NO-STEAL discipline.
func (bp *Pool) FlushAllPages() error {
	bp.mu.Lock()
	pids := make([]storage.PageID, 0, len(bp.pages))
	for pid := range bp.pages {
		pids = append(pids, pid)
	}
	bp.mu.Unlock()

	for _, pid := range pids {
		if err := bp.FlushPage(pid); err != nil {
			return err
		}
	}
	return nil
}

// DiscardPage removes pid from the cache without writing it. Locks are
// untouched.
func (bp *Pool) DiscardPage(pid storage.PageID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	delete(bp.pages, pid)
}

// NumCachedPages reports the current cache population.
func (bp *Pool) NumCachedPages() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.pages)
}
