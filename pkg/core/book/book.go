package book

import (
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// seq allocates order identifiers. Process-wide: identifiers stay
// unique and monotonically increasing across every book in the
// process and are never reused.
var seq atomic.Uint64

func nextID() uint64 { return seq.Add(1) }

// Level is a read-only depth entry: aggregate resting interest at one
// price.
type Level struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Orders   int             `json:"orders"`
}

// Book is a single-instrument limit order book. Bids are held in
// descending price priority, asks ascending, ties broken by arrival
// order. The book is not safe for concurrent use; the matching engine
// serializes access.
type Book struct {
	bids *levelTree
	asks *levelTree

	// id -> resting order, for O(1) cancel/amend addressing
	byID map[uint64]*Order
}

func New() *Book {
	return &Book{
		bids: newLevelTree(),
		asks: newLevelTree(),
		byID: make(map[uint64]*Order),
	}
}

func (b *Book) side(s Side) *levelTree {
	if s == Bid {
		return b.bids
	}
	return b.asks
}

// Submit applies an intent to the book and returns the identifier of
// the affected order. For Add with no identifier, a fresh one is
// allocated.
func (b *Book) Submit(in Intent) (uint64, error) {
	if !in.Side.Valid() {
		return 0, fmt.Errorf("%w: invalid side", ErrMalformedOrder)
	}
	switch in.Action {
	case Add:
		return b.add(in)
	case Amend:
		return in.ID, b.amend(in)
	case Cancel:
		return in.ID, b.Remove(in.Side, in.ID)
	default:
		return 0, fmt.Errorf("%w: invalid action", ErrMalformedOrder)
	}
}

func (b *Book) add(in Intent) (uint64, error) {
	if !in.Price.IsPositive() {
		return 0, fmt.Errorf("%w: price must be positive", ErrMalformedOrder)
	}
	if !in.Quantity.IsPositive() {
		return 0, fmt.Errorf("%w: quantity must be positive", ErrMalformedOrder)
	}

	id := in.ID
	if id == 0 {
		id = nextID()
	}
	if _, exists := b.byID[id]; exists {
		return 0, fmt.Errorf("%w: duplicate identifier %d", ErrMalformedOrder, id)
	}

	o := &Order{
		ID:       id,
		Side:     in.Side,
		Price:    in.Price,
		Quantity: in.Quantity,
		ClientID: in.ClientID,
	}
	b.side(in.Side).Upsert(in.Price).enqueue(o)
	b.byID[id] = o
	return id, nil
}

// amend replaces a resting order's price and quantity in place,
// identifier preserved. The order is re-queued at the (possibly new)
// price level, so prior time priority is forfeited.
func (b *Book) amend(in Intent) error {
	if !in.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrMalformedOrder)
	}
	if !in.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", ErrMalformedOrder)
	}

	o, ok := b.byID[in.ID]
	if !ok || o.Side != in.Side {
		return fmt.Errorf("%w: id %d on %s side", ErrOrderNotFound, in.ID, in.Side)
	}

	b.detach(o)
	o.Price = in.Price
	o.Quantity = in.Quantity
	b.side(o.Side).Upsert(o.Price).enqueue(o)
	return nil
}

// detach unlinks o from its level, dropping the level when it empties.
func (b *Book) detach(o *Order) {
	lvl := o.level
	lvl.unlink(o)
	if lvl.empty() {
		b.side(o.Side).Delete(lvl.price)
	}
}

// Remove cancels the resting order with the given identifier on the
// given side.
func (b *Book) Remove(side Side, id uint64) error {
	o, ok := b.byID[id]
	if !ok || o.Side != side {
		return fmt.Errorf("%w: id %d on %s side", ErrOrderNotFound, id, side)
	}
	b.detach(o)
	delete(b.byID, id)
	return nil
}

// RemoveTop removes the order at the head of a side.
func (b *Book) RemoveTop(side Side) error {
	o, err := b.peek(side)
	if err != nil {
		return err
	}
	b.detach(o)
	delete(b.byID, o.ID)
	return nil
}

// Reduce shrinks a resting order's quantity in place after a partial
// fill. Price, identifier and queue position are untouched.
func (b *Book) Reduce(id uint64, qty decimal.Decimal) error {
	o, ok := b.byID[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
	}
	if !qty.IsPositive() || qty.GreaterThanOrEqual(o.Quantity) {
		return fmt.Errorf("%w: reduce quantity %s out of range", ErrMalformedOrder, qty)
	}
	o.level.adjust(qty.Sub(o.Quantity))
	o.Quantity = qty
	return nil
}

func (b *Book) peek(side Side) (*Order, error) {
	var lvl *priceLevel
	if side == Bid {
		lvl = b.bids.Max()
	} else {
		lvl = b.asks.Min()
	}
	if lvl == nil {
		return nil, ErrEmptyBook
	}
	return lvl.head, nil
}

// PeekTop returns a copy of the order at the head of a side.
func (b *Book) PeekTop(side Side) (Order, error) {
	o, err := b.peek(side)
	if err != nil {
		return Order{}, err
	}
	return o.clone(), nil
}

// EachFromTop visits a side in priority order (best price first, FIFO
// within a level), passing copies, until fn returns false.
func (b *Book) EachFromTop(side Side, fn func(Order) bool) {
	visit := func(lvl *priceLevel) bool {
		for o := lvl.head; o != nil; o = o.next {
			if !fn(o.clone()) {
				return false
			}
		}
		return true
	}
	if side == Bid {
		b.bids.Descend(visit)
	} else {
		b.asks.Ascend(visit)
	}
}

// BestBid returns the highest resting bid price.
func (b *Book) BestBid() (decimal.Decimal, error) {
	lvl := b.bids.Max()
	if lvl == nil {
		return decimal.Decimal{}, ErrEmptyBook
	}
	return lvl.price, nil
}

// BestAsk returns the lowest resting ask price.
func (b *Book) BestAsk() (decimal.Decimal, error) {
	lvl := b.asks.Min()
	if lvl == nil {
		return decimal.Decimal{}, ErrEmptyBook
	}
	return lvl.price, nil
}

// MidPrice returns the arithmetic mean of best bid and best ask.
func (b *Book) MidPrice() (decimal.Decimal, error) {
	bid, err := b.BestBid()
	if err != nil {
		return decimal.Decimal{}, err
	}
	ask, err := b.BestAsk()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2)), nil
}

// Order returns a copy of the resting order with the given identifier.
func (b *Book) Order(id uint64) (Order, error) {
	o, ok := b.byID[id]
	if !ok {
		return Order{}, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
	}
	return o.clone(), nil
}

// Levels returns the aggregated depth of a side, best price first.
func (b *Book) Levels(side Side) []Level {
	out := make([]Level, 0, b.side(side).Size())
	visit := func(lvl *priceLevel) bool {
		out = append(out, Level{Price: lvl.price, Quantity: lvl.totalQty, Orders: lvl.count})
		return true
	}
	if side == Bid {
		b.bids.Descend(visit)
	} else {
		b.asks.Ascend(visit)
	}
	return out
}

// VolumeAt returns total resting quantity at a limit price, both
// sides combined.
func (b *Book) VolumeAt(price decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	if lvl := b.bids.Find(price); lvl != nil {
		total = total.Add(lvl.totalQty)
	}
	if lvl := b.asks.Find(price); lvl != nil {
		total = total.Add(lvl.totalQty)
	}
	return total
}

// SideLen returns the number of resting orders on a side.
func (b *Book) SideLen(side Side) int {
	n := 0
	b.side(side).Ascend(func(lvl *priceLevel) bool {
		n += lvl.count
		return true
	})
	return n
}

// Len returns the total number of resting orders.
func (b *Book) Len() int { return len(b.byID) }
