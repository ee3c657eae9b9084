package bufferpool

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/heapdb/internal/catalog"
	"github.com/tuannm99/heapdb/internal/heap"
	"github.com/tuannm99/heapdb/internal/record"
	"github.com/tuannm99/heapdb/internal/storage"
	"github.com/tuannm99/heapdb/internal/types"
)

func intDesc() *record.TupleDesc {
	return record.NewTupleDesc([]types.Type{types.IntType}, []string{"v"})
}

func intTuple(td *record.TupleDesc, v int32) *record.Tuple {
	t := record.NewTuple(td)
	t.SetField(0, types.NewIntField(v))
	return t
}

// newTestPool wires a pool, catalog and one heap file pre-sized to
// numPages zeroed pages.
func newTestPool(t *testing.T, capacity, numPages int) (*Pool, *heap.HeapFile) {
	t.Helper()

	cat := catalog.New()
	pool := NewPool(cat, capacity, 0)

	td := intDesc()
	f, err := heap.NewHeapFile(filepath.Join(t.TempDir(), "table.dat"), td, pool)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	cat.AddTable(f, "table", "")

	for i := 0; i < numPages; i++ {
		hp, err := heap.NewHeapPage(storage.NewPageID(f.ID(), i), heap.EmptyPageData(), td)
		require.NoError(t, err)
		require.NoError(t, f.WritePage(hp))
	}
	require.Equal(t, numPages, f.PageCount())

	return pool, f
}

func scanValues(t *testing.T, f *heap.HeapFile, tid storage.TransactionID) []int32 {
	t.Helper()

	it := f.Iterator(tid)
	require.NoError(t, it.Open())
	defer it.Close()

	var got []int32
	for {
		ok, err := it.HasNext()
		require.NoError(t, err)
		if !ok {
			return got
		}
		tup, err := it.Next()
		require.NoError(t, err)
		got = append(got, tup.Field(0).(types.IntField).Value)
	}
}

func TestPool_GetPage_CachesAndShares(t *testing.T) {
	pool, f := newTestPool(t, 4, 2)

	tid := storage.NewTransactionID()
	pid := storage.NewPageID(f.ID(), 0)

	p1, err := pool.GetPage(tid, pid, storage.ReadOnly)
	require.NoError(t, err)
	require.Equal(t, pid, p1.ID())

	// Concurrent readers of one page see one in-memory object.
	tid2 := storage.NewTransactionID()
	p2, err := pool.GetPage(tid2, pid, storage.ReadOnly)
	require.NoError(t, err)
	require.Same(t, p1, p2)

	require.NoError(t, pool.Commit(tid))
	require.NoError(t, pool.Commit(tid2))
}

func TestPool_CapacityBound(t *testing.T) {
	pool, f := newTestPool(t, 3, 6)

	tid := storage.NewTransactionID()
	for i := 0; i < 6; i++ {
		_, err := pool.GetPage(tid, storage.NewPageID(f.ID(), i), storage.ReadOnly)
		require.NoError(t, err)
		require.LessOrEqual(t, pool.NumCachedPages(), 3)
	}
	require.NoError(t, pool.Commit(tid))
}

func TestPool_EvictionNeverPicksDirty(t *testing.T) {
	storage.SetPageSize(64)
	defer storage.ResetPageSize()

	pool, f := newTestPool(t, 2, 0)
	td := intDesc()

	// Fill page 0 (15 slots) and spill onto page 1 so both are dirty.
	tid := storage.NewTransactionID()
	for v := int32(0); v < 16; v++ {
		require.NoError(t, pool.InsertTuple(tid, f.ID(), intTuple(td, v)))
	}
	require.Equal(t, 2, pool.NumCachedPages())

	// A second table provides a clean page to fault in; with both
	// frames dirty there is no victim.
	other, err := heap.NewHeapFile(filepath.Join(t.TempDir(), "other.dat"), td, pool)
	require.NoError(t, err)
	defer other.Close()

	hp, err := heap.NewHeapPage(storage.NewPageID(other.ID(), 0), heap.EmptyPageData(), td)
	require.NoError(t, err)
	require.NoError(t, other.WritePage(hp))

	pool.files.(*catalog.Catalog).AddTable(other, "other", "")

	_, err = pool.GetPage(tid, storage.NewPageID(other.ID(), 0), storage.ReadOnly)
	require.ErrorIs(t, err, ErrTooManyDirtyPages)

	// Committing cleans the frames; the fetch now succeeds.
	require.NoError(t, pool.Commit(tid))
	tid2 := storage.NewTransactionID()
	_, err = pool.GetPage(tid2, storage.NewPageID(other.ID(), 0), storage.ReadOnly)
	require.NoError(t, err)
	require.NoError(t, pool.Commit(tid2))
}

func TestPool_CommitDurability(t *testing.T) {
	pool, f := newTestPool(t, 4, 0)
	td := intDesc()

	tid := storage.NewTransactionID()
	require.NoError(t, pool.InsertTuple(tid, f.ID(), intTuple(td, 42)))
	require.NoError(t, pool.Commit(tid))

	// Drop the cache: a fresh transaction must read the commit back
	// from disk.
	pool.DiscardPage(storage.NewPageID(f.ID(), 0))
	require.Equal(t, []int32{42}, scanValues(t, f, storage.NewTransactionID()))
}

func TestPool_AbortInvisibility(t *testing.T) {
	pool, f := newTestPool(t, 4, 0)
	td := intDesc()

	// Committed baseline.
	tid := storage.NewTransactionID()
	require.NoError(t, pool.InsertTuple(tid, f.ID(), intTuple(td, 1)))
	require.NoError(t, pool.Commit(tid))

	// Aborted transaction inserts a tuple and sees it.
	tid2 := storage.NewTransactionID()
	require.NoError(t, pool.InsertTuple(tid2, f.ID(), intTuple(td, 2)))
	existing := scanValues(t, f, tid2)
	require.ElementsMatch(t, []int32{1, 2}, existing)
	require.NoError(t, pool.Abort(tid2))

	// Only the committed tuple remains visible.
	require.Equal(t, []int32{1}, scanValues(t, f, storage.NewTransactionID()))
}

func TestPool_LockConflictAbortsOne(t *testing.T) {
	pool, f := newTestPool(t, 4, 1)
	pid := storage.NewPageID(f.ID(), 0)

	tidA := storage.NewTransactionID()
	_, err := pool.GetPage(tidA, pid, storage.ReadWrite)
	require.NoError(t, err)

	// B must give up within the randomized timeout bound.
	tidB := storage.NewTransactionID()
	start := time.Now()
	_, err = pool.GetPage(tidB, pid, storage.ReadWrite)
	require.ErrorIs(t, err, ErrTransactionAborted)
	require.Less(t, time.Since(start), 2*time.Second)

	require.NoError(t, pool.Abort(tidB))
	require.NoError(t, pool.Commit(tidA))
}

func TestPool_SharedUpgrade(t *testing.T) {
	pool, f := newTestPool(t, 4, 1)
	pid := storage.NewPageID(f.ID(), 0)

	tid := storage.NewTransactionID()
	_, err := pool.GetPage(tid, pid, storage.ReadOnly)
	require.NoError(t, err)

	// Sole reader upgrades without error.
	_, err = pool.GetPage(tid, pid, storage.ReadWrite)
	require.NoError(t, err)
	require.True(t, pool.HoldsLock(tid, pid))

	// A second reader is now locked out until completion.
	tid2 := storage.NewTransactionID()
	_, err = pool.GetPage(tid2, pid, storage.ReadOnly)
	require.ErrorIs(t, err, ErrTransactionAborted)
	require.NoError(t, pool.Abort(tid2))

	require.NoError(t, pool.Commit(tid))

	_, err = pool.GetPage(storage.NewTransactionID(), pid, storage.ReadOnly)
	require.NoError(t, err)
}

func TestPool_SharedReadersCoexist(t *testing.T) {
	pool, f := newTestPool(t, 4, 1)
	pid := storage.NewPageID(f.ID(), 0)

	tidA := storage.NewTransactionID()
	tidB := storage.NewTransactionID()

	_, err := pool.GetPage(tidA, pid, storage.ReadOnly)
	require.NoError(t, err)
	_, err = pool.GetPage(tidB, pid, storage.ReadOnly)
	require.NoError(t, err)

	require.True(t, pool.HoldsLock(tidA, pid))
	require.True(t, pool.HoldsLock(tidB, pid))

	// Upgrade is impossible while another reader holds the page.
	_, err = pool.GetPage(tidA, pid, storage.ReadWrite)
	require.ErrorIs(t, err, ErrTransactionAborted)

	require.NoError(t, pool.Abort(tidA))
	require.NoError(t, pool.Commit(tidB))
}

func TestPool_ReleasePage(t *testing.T) {
	pool, f := newTestPool(t, 4, 1)
	pid := storage.NewPageID(f.ID(), 0)

	tid := storage.NewTransactionID()
	_, err := pool.GetPage(tid, pid, storage.ReadWrite)
	require.NoError(t, err)
	require.True(t, pool.HoldsLock(tid, pid))

	pool.ReleasePage(tid, pid)
	require.False(t, pool.HoldsLock(tid, pid))

	// Another writer can take the page immediately.
	tid2 := storage.NewTransactionID()
	_, err = pool.GetPage(tid2, pid, storage.ReadWrite)
	require.NoError(t, err)
	require.NoError(t, pool.Commit(tid2))
	require.NoError(t, pool.Commit(tid))
}

func TestPool_TransactionCompleteReleasesAllLocks(t *testing.T) {
	pool, f := newTestPool(t, 8, 3)

	tid := storage.NewTransactionID()
	pids := make([]storage.PageID, 3)
	for i := range pids {
		pids[i] = storage.NewPageID(f.ID(), i)
		_, err := pool.GetPage(tid, pids[i], storage.ReadWrite)
		require.NoError(t, err)
	}

	require.NoError(t, pool.Commit(tid))
	for _, pid := range pids {
		require.False(t, pool.HoldsLock(tid, pid))
	}
}

func TestPool_FlushAllPages(t *testing.T) {
	pool, f := newTestPool(t, 4, 0)
	td := intDesc()

	tid := storage.NewTransactionID()
	require.NoError(t, pool.InsertTuple(tid, f.ID(), intTuple(td, 9)))

	require.NoError(t, pool.FlushAllPages())

	// Reading straight from disk sees the flushed tuple.
	p, err := f.ReadPage(storage.NewPageID(f.ID(), 0))
	require.NoError(t, err)
	hp := p.(*heap.HeapPage)
	require.Equal(t, hp.NumSlots()-1, hp.NumEmptySlots())

	require.NoError(t, pool.Commit(tid))
}

func TestPool_ConcurrentWriters(t *testing.T) {
	pool, f := newTestPool(t, 8, 1)
	pid := storage.NewPageID(f.ID(), 0)

	const workers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, workers)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				tid := storage.NewTransactionID()
				_, err := pool.GetPage(tid, pid, storage.ReadWrite)
				if err != nil {
					// Timed out: roll back and retry.
					if err := pool.Abort(tid); err != nil {
						errCh <- err
						return
					}
					continue
				}
				errCh <- pool.Commit(tid)
				return
			}
		}()
	}
	wg.Wait()
	close(errCh)

	completed := 0
	for err := range errCh {
		require.NoError(t, err)
		completed++
	}
	require.Equal(t, workers, completed)
}
