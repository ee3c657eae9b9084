package storage

import (
	"fmt"
	"sync/atomic"
)

// TransactionID is a globally unique transaction identity. IDs are
// monotonically assigned and compare by value.
type TransactionID int64

var tidCounter atomic.Int64

// NewTransactionID returns the next transaction identity.
func NewTransactionID() TransactionID {
	return TransactionID(tidCounter.Add(1))
}

func (tid TransactionID) String() string {
	return fmt.Sprintf("txn-%d", int64(tid))
}
