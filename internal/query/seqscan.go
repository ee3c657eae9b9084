package query

import (
	"github.com/tuannm99/heapdb/internal/catalog"
	"github.com/tuannm99/heapdb/internal/record"
	"github.com/tuannm99/heapdb/internal/storage"
	"github.com/tuannm99/heapdb/internal/types"
)

// SeqScan reads every tuple of one table in storage order through the
// buffer pool, taking READ_ONLY page locks as it goes.
type SeqScan struct {
	tid    storage.TransactionID
	alias  string
	file   catalog.DbFile
	cursor catalog.DbFileIterator
	desc   *record.TupleDesc
}

// NewSeqScan builds a scan over tableID under tid. Field names in the
// returned schema are qualified with alias.
func NewSeqScan(cat *catalog.Catalog, tid storage.TransactionID, tableID int, alias string) (*SeqScan, error) {
	f, err := cat.GetFile(tableID)
	if err != nil {
		return nil, err
	}

	base := f.TupleDesc()
	fieldTypes := make([]types.Type, base.NumFields())
	names := make([]string, base.NumFields())
	for i := 0; i < base.NumFields(); i++ {
		fieldTypes[i] = base.TypeAt(i)
		names[i] = alias + "." + base.NameAt(i)
	}

	return &SeqScan{
		tid:   tid,
		alias: alias,
		file:  f,
		desc:  record.NewTupleDesc(fieldTypes, names),
	}, nil
}

func (s *SeqScan) Open() error {
	s.cursor = s.file.Iterator(s.tid)
	return s.cursor.Open()
}

func (s *SeqScan) HasNext() (bool, error) {
	if s.cursor == nil {
		return false, nil
	}
	return s.cursor.HasNext()
}

func (s *SeqScan) Next() (*record.Tuple, error) {
	if s.cursor == nil {
		return nil, storage.ErrNoSuchTuple
	}
	return s.cursor.Next()
}

func (s *SeqScan) Rewind() error {
	if s.cursor == nil {
		return nil
	}
	return s.cursor.Rewind()
}

func (s *SeqScan) Close() {
	if s.cursor != nil {
		s.cursor.Close()
		s.cursor = nil
	}
}

func (s *SeqScan) TupleDesc() *record.TupleDesc { return s.desc }
