package bufferpool

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/tuannm99/heapdb/internal/storage"
)

// ErrTransactionAborted means a lock wait timed out. The transaction
// must be rolled back as a whole; the caller discards its work and
// calls TransactionComplete with commit=false.
var ErrTransactionAborted = errors.New("bufferpool: transaction aborted")

// pageLock is either shared (readers non-empty, no owner) or exclusive
// (owner set, readers nil). The two never coexist for one page.
type pageLock struct {
	owner   storage.TransactionID
	readers map[storage.TransactionID]struct{}
}

func (l *pageLock) exclusive() bool { return l.readers == nil }

func (l *pageLock) heldBy(tid storage.TransactionID) bool {
	if l.exclusive() {
		return l.owner == tid
	}
	_, ok := l.readers[tid]
	return ok
}

// ownedBy reports whether tid is the exclusive owner or the sole
// shared reader. These are the pages a commit must flush.
func (l *pageLock) ownedBy(tid storage.TransactionID) bool {
	if l.exclusive() {
		return l.owner == tid
	}
	_, ok := l.readers[tid]
	return ok && len(l.readers) == 1
}

// lockTable is the per-page shared/exclusive lock state. All
// transitions happen under one process-wide mutex; waits are bounded
// polling with a per-call randomized deadline, which is the deadlock
// avoidance mechanism. There is no wait-for graph.
type lockTable struct {
	mu      sync.Mutex
	locks   map[storage.PageID]*pageLock
	timeout time.Duration
}

const lockPollInterval = 2 * time.Millisecond

func newLockTable(timeout time.Duration) *lockTable {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &lockTable{
		locks:   make(map[storage.PageID]*pageLock),
		timeout: timeout,
	}
}

// acquire blocks until tid holds the lock implied by perm on pid, or
// the randomized deadline passes, in which case it fails with
// ErrTransactionAborted.
func (lt *lockTable) acquire(tid storage.TransactionID, pid storage.PageID, perm storage.Permissions) error {
	deadline := time.Now().Add(rand.N(lt.timeout))
	for {
		var ok bool
		lt.mu.Lock()
		if perm == storage.ReadWrite {
			ok = lt.tryExclusive(tid, pid)
		} else {
			ok = lt.tryShared(tid, pid)
		}
		lt.mu.Unlock()

		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrTransactionAborted
		}
		time.Sleep(lockPollInterval)
	}
}

// tryShared grants a shared lock when the page is unlocked or shared.
// A transaction already holding the exclusive lock succeeds trivially.
// Caller holds lt.mu.
func (lt *lockTable) tryShared(tid storage.TransactionID, pid storage.PageID) bool {
	l, ok := lt.locks[pid]
	if !ok {
		lt.locks[pid] = &pageLock{readers: map[storage.TransactionID]struct{}{tid: {}}}
		return true
	}
	if l.exclusive() {
		return l.owner == tid
	}
	l.readers[tid] = struct{}{}
	return true
}

// tryExclusive grants an exclusive lock when the page is unlocked, when
// tid already owns it, or when tid is the sole shared reader (upgrade).
// Caller holds lt.mu.
func (lt *lockTable) tryExclusive(tid storage.TransactionID, pid storage.PageID) bool {
	l, ok := lt.locks[pid]
	if !ok {
		lt.locks[pid] = &pageLock{owner: tid}
		return true
	}
	if l.exclusive() {
		return l.owner == tid
	}
	if _, holds := l.readers[tid]; holds && len(l.readers) == 1 {
		lt.locks[pid] = &pageLock{owner: tid}
		return true
	}
	return false
}

// release drops tid's hold on pid, removing the entry once empty.
func (lt *lockTable) release(tid storage.TransactionID, pid storage.PageID) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.releaseLocked(tid, pid)
}

func (lt *lockTable) releaseLocked(tid storage.TransactionID, pid storage.PageID) {
	l, ok := lt.locks[pid]
	if !ok {
		return
	}
	if l.exclusive() {
		if l.owner == tid {
			delete(lt.locks, pid)
		}
		return
	}
	delete(l.readers, tid)
	if len(l.readers) == 0 {
		delete(lt.locks, pid)
	}
}

func (lt *lockTable) holdsLock(tid storage.TransactionID, pid storage.PageID) bool {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	l, ok := lt.locks[pid]
	return ok && l.heldBy(tid)
}

// pagesHeldBy returns every page whose lock entry names tid.
func (lt *lockTable) pagesHeldBy(tid storage.TransactionID) []storage.PageID {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	var pids []storage.PageID
	for pid, l := range lt.locks {
		if l.heldBy(tid) {
			pids = append(pids, pid)
		}
	}
	return pids
}

// pagesOwnedBy returns every page tid holds exclusively or as the sole
// shared reader.
func (lt *lockTable) pagesOwnedBy(tid storage.TransactionID) []storage.PageID {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	var pids []storage.PageID
	for pid, l := range lt.locks {
		if l.ownedBy(tid) {
			pids = append(pids, pid)
		}
	}
	return pids
}

// releaseAll drops every lock held by tid.
func (lt *lockTable) releaseAll(tid storage.TransactionID) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	for pid, l := range lt.locks {
		if l.heldBy(tid) {
			lt.releaseLocked(tid, pid)
		}
	}
}
