package catalog

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tuannm99/heapdb/internal/record"
)

var ErrNoSuchTable = errors.New("catalog: no such table")

type tableMeta struct {
	Name     string
	PKeyName string
	File     DbFile
}

// Catalog maps table identities to their backing files. The buffer pool
// resolves files by table ID through this handle, which keeps the
// pool and the files free of back-pointers to each other.
type Catalog struct {
	mu     sync.RWMutex
	tables map[int]*tableMeta
	byName map[string]int
}

func New() *Catalog {
	return &Catalog{
		tables: make(map[int]*tableMeta),
		byName: make(map[string]int),
	}
}

// AddTable registers f under name. Re-adding a name or file ID replaces
// the previous registration.
func (c *Catalog) AddTable(f DbFile, name, pkeyName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.byName[name]; ok && old != f.ID() {
		delete(c.tables, old)
	}
	if prev, ok := c.tables[f.ID()]; ok && prev.Name != name {
		delete(c.byName, prev.Name)
	}
	c.tables[f.ID()] = &tableMeta{Name: name, PKeyName: pkeyName, File: f}
	c.byName[name] = f.ID()
}

// GetFile returns the backing file of the given table.
func (c *Catalog) GetFile(tableID int) (DbFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	meta, ok := c.tables[tableID]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNoSuchTable, tableID)
	}
	return meta.File, nil
}

func (c *Catalog) GetTupleDesc(tableID int) (*record.TupleDesc, error) {
	f, err := c.GetFile(tableID)
	if err != nil {
		return nil, err
	}
	return f.TupleDesc(), nil
}

func (c *Catalog) TableName(tableID int) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	meta, ok := c.tables[tableID]
	if !ok {
		return "", fmt.Errorf("%w: id %d", ErrNoSuchTable, tableID)
	}
	return meta.Name, nil
}

// TableID looks a table up by name.
func (c *Catalog) TableID(name string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNoSuchTable, name)
	}
	return id, nil
}

// TableIDs returns the identities of all registered tables.
func (c *Catalog) TableIDs() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]int, 0, len(c.tables))
	for id := range c.tables {
		ids = append(ids, id)
	}
	return ids
}

// Clear drops every registration. Test teardown only.
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tables = make(map[int]*tableMeta)
	c.byName = make(map[string]int)
}
