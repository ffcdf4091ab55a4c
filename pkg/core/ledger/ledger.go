// Package ledger records completed trades. The ledger is append-only:
// a transaction is created by settlement, stamped on append, and never
// mutated or removed afterwards.
package ledger

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/christian-spooner/trading-server/pkg/util"
)

// Transaction is one completed trade between two participants.
type Transaction struct {
	ID        string          `json:"id"`
	BuyerID   uint64          `json:"buyer_id"`
	SellerID  uint64          `json:"seller_id"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Timestamp time.Time       `json:"timestamp"`
}

// Ledger is an append-only trade log. Timestamps are assigned by the
// ledger itself at append time, so they are non-decreasing in append
// order; the sliding-window scan relies on that.
type Ledger struct {
	mu    sync.RWMutex
	txns  []Transaction
	clock util.Clock
}

func New(clock util.Clock) *Ledger {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Ledger{clock: clock}
}

// Append stamps and records a trade, returning the stored transaction.
func (l *Ledger) Append(buyerID, sellerID uint64, price, quantity decimal.Decimal) Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()

	txn := Transaction{
		ID:        uuid.NewString(),
		BuyerID:   buyerID,
		SellerID:  sellerID,
		Price:     price,
		Quantity:  quantity,
		Timestamp: l.clock.Now(),
	}
	l.txns = append(l.txns, txn)
	return txn
}

// History returns all transactions, oldest first.
func (l *Ledger) History() []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Transaction, len(l.txns))
	copy(out, l.txns)
	return out
}

// TotalVolume returns the count of all transactions ever appended.
func (l *Ledger) TotalVolume() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.txns)
}

// VolumeInLastSecond counts transactions stamped within one second of
// now. It scans newest-to-oldest and stops at the first entry outside
// the window, which is correct because timestamps are non-decreasing.
func (l *Ledger) VolumeInLastSecond() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cutoff := l.clock.Now().Add(-time.Second)
	n := 0
	for i := len(l.txns) - 1; i >= 0; i-- {
		if l.txns[i].Timestamp.Before(cutoff) {
			break
		}
		n++
	}
	return n
}
