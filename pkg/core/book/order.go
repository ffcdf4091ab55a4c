package book

import "github.com/shopspring/decimal"

// Side identifies which half of the book an order rests on.
type Side int8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	default:
		return "unknown"
	}
}

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == Bid || s == Ask
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

// Action is the intent carried by a submission.
type Action int8

const (
	Add Action = iota
	Amend
	Cancel
)

func (a Action) String() string {
	switch a {
	case Add:
		return "add"
	case Amend:
		return "amend"
	case Cancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Intent is a request against the book: add a new order, amend a
// resting one, or cancel it. ID is ignored for Add (the book assigns
// one) and required for Amend/Cancel.
type Intent struct {
	Action   Action
	Side     Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
	ClientID uint64
	ID       uint64
}

// Order is a resting limit order. The book owns resting orders
// exclusively; callers get copies, never live pointers into a level.
type Order struct {
	ID       uint64
	Side     Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
	ClientID uint64

	// intrusive FIFO links within a price level
	next  *Order
	prev  *Order
	level *priceLevel
}

func (o *Order) clone() Order {
	c := *o
	c.next, c.prev, c.level = nil, nil, nil
	return c
}
