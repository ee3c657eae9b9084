package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/heapdb/internal/record"
	"github.com/tuannm99/heapdb/internal/storage"
	"github.com/tuannm99/heapdb/internal/types"
)

func intDesc() *record.TupleDesc {
	return record.NewTupleDesc([]types.Type{types.IntType}, []string{"v"})
}

func TestDatabase_CreateTableAndRoundTrip(t *testing.T) {
	db, err := NewDatabase(t.TempDir(), Options{})
	require.NoError(t, err)

	td := intDesc()
	f, err := db.CreateTable("events", td, "v")
	require.NoError(t, err)

	id, err := db.Catalog.TableID("events")
	require.NoError(t, err)
	require.Equal(t, f.ID(), id)

	got, err := db.Catalog.GetTupleDesc(id)
	require.NoError(t, err)
	require.True(t, got.Equals(td))

	// Insert through the pool and commit.
	tid := storage.NewTransactionID()
	tup := record.NewTuple(td)
	tup.SetField(0, types.NewIntField(99))
	require.NoError(t, db.Pool.InsertTuple(tid, id, tup))
	require.NoError(t, db.Pool.Commit(tid))

	require.NoError(t, db.Close())
}

func TestDatabase_ReopenSeesCommittedData(t *testing.T) {
	dir := t.TempDir()
	td := intDesc()

	db, err := NewDatabase(dir, Options{})
	require.NoError(t, err)
	f, err := db.CreateTable("events", td, "v")
	require.NoError(t, err)

	tid := storage.NewTransactionID()
	tup := record.NewTuple(td)
	tup.SetField(0, types.NewIntField(7))
	require.NoError(t, db.Pool.InsertTuple(tid, f.ID(), tup))
	require.NoError(t, db.Pool.Commit(tid))
	require.NoError(t, db.Close())

	// An independent database context over the same directory reads
	// the committed tuple back.
	db2, err := NewDatabase(dir, Options{})
	require.NoError(t, err)
	f2, err := db2.CreateTable("events", td, "v")
	require.NoError(t, err)
	require.Equal(t, 1, f2.PageCount())

	it := f2.Iterator(storage.NewTransactionID())
	require.NoError(t, it.Open())
	ok, err := it.HasNext()
	require.NoError(t, err)
	require.True(t, ok)
	got, err := it.Next()
	require.NoError(t, err)
	require.Equal(t, int32(7), got.Field(0).(types.IntField).Value)
	it.Close()

	require.NoError(t, db2.Close())
}

func TestDatabase_IndependentContexts(t *testing.T) {
	db1, err := NewDatabase(t.TempDir(), Options{PoolCapacity: 4})
	require.NoError(t, err)
	db2, err := NewDatabase(t.TempDir(), Options{PoolCapacity: 4})
	require.NoError(t, err)

	_, err = db1.CreateTable("a", intDesc(), "")
	require.NoError(t, err)

	// db2's catalog knows nothing about db1's table.
	_, err = db2.Catalog.TableID("a")
	require.Error(t, err)

	require.NoError(t, db1.Close())
	require.NoError(t, db2.Close())
}
