package book

import "github.com/shopspring/decimal"

// priceLevel is a FIFO queue of resting orders at a single price.
// Orders are linked intrusively; arrival order is preserved so ties at
// a price match first-in-first-out.
type priceLevel struct {
	price decimal.Decimal
	head  *Order
	tail  *Order

	totalQty decimal.Decimal
	count    int
}

func (l *priceLevel) enqueue(o *Order) {
	if l.head == nil {
		l.head = o
		l.tail = o
	} else {
		l.tail.next = o
		o.prev = l.tail
		l.tail = o
	}
	o.level = l
	l.totalQty = l.totalQty.Add(o.Quantity)
	l.count++
}

func (l *priceLevel) unlink(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		l.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		l.tail = o.prev
	}
	l.totalQty = l.totalQty.Sub(o.Quantity)
	l.count--
	o.next, o.prev, o.level = nil, nil, nil
}

// adjust updates the aggregate quantity when a resting order is
// reduced in place by a partial fill.
func (l *priceLevel) adjust(delta decimal.Decimal) {
	l.totalQty = l.totalQty.Add(delta)
}

func (l *priceLevel) empty() bool {
	return l.head == nil
}
