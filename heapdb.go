package heapdb

import "github.com/tuannm99/heapdb/internal/engine"

// Package heapdb is the top-level facade for the heapdb storage engine.
type (
	Database = engine.Database
	Options  = engine.Options
)

// NewDatabase opens a database context rooted at dataDir.
var NewDatabase = engine.NewDatabase
