// Package engine orchestrates the order book, client registry and
// transaction ledger: it validates inbound orders against balances,
// detects crossing top-of-book interest, settles matches and records
// the resulting trades.
package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/christian-spooner/trading-server/pkg/core/book"
	"github.com/christian-spooner/trading-server/pkg/core/client"
	"github.com/christian-spooner/trading-server/pkg/core/ledger"
)

// OrderStatus is the lifecycle state reported for an order identifier.
type OrderStatus int8

const (
	StatusUnknown OrderStatus = iota
	StatusResting
	StatusFilled
	StatusCancelled
)

func (s OrderStatus) String() string {
	switch s {
	case StatusResting:
		return "resting"
	case StatusFilled:
		return "filled"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Engine is the matching core for a single instrument. Every exported
// method is one critical section: a reader can never observe the book
// mid-match (top removed but not yet settled).
type Engine struct {
	mu      sync.Mutex
	book    *book.Book
	clients *client.Registry
	ledger  *ledger.Ledger

	// terminal order states, for status reporting
	filled    map[uint64]struct{}
	cancelled map[uint64]struct{}

	log *zap.SugaredLogger
}

// New creates an engine over the given registry and ledger. The engine
// references both but owns neither; it never creates or destroys
// client records.
func New(clients *client.Registry, ldg *ledger.Ledger, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{
		book:      book.New(),
		clients:   clients,
		ledger:    ldg,
		filled:    make(map[uint64]struct{}),
		cancelled: make(map[uint64]struct{}),
		log:       logger,
	}
}

// SubmitOrder admits a limit order after a solvency check: a bid's
// notional must fit the client's cash, an ask's quantity its asset
// balance. Nothing is escrowed; balances are re-checked at execution
// because several resting orders may draw on the same funds.
func (e *Engine) SubmitOrder(side book.Side, price, quantity decimal.Decimal, clientID uint64) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !side.Valid() {
		return 0, fmt.Errorf("%w: invalid side", book.ErrMalformedOrder)
	}
	if !price.IsPositive() || !quantity.IsPositive() {
		return 0, fmt.Errorf("%w: price and quantity must be positive", book.ErrMalformedOrder)
	}

	c, err := e.clients.Get(clientID)
	if err != nil {
		return 0, err
	}
	if side == book.Bid {
		if cost := price.Mul(quantity); c.Cash.LessThan(cost) {
			return 0, fmt.Errorf("%w: client %d has %s, needs %s", ErrInsufficientBalance, clientID, c.Cash, cost)
		}
	} else {
		if c.Assets.LessThan(quantity) {
			return 0, fmt.Errorf("%w: client %d has %s, needs %s", ErrInsufficientAsset, clientID, c.Assets, quantity)
		}
	}

	id, err := e.book.Submit(book.Intent{
		Action:   book.Add,
		Side:     side,
		Price:    price,
		Quantity: quantity,
		ClientID: clientID,
	})
	if err != nil {
		return 0, err
	}

	e.log.Infow("order_admitted",
		"id", id, "side", side.String(), "price", price, "quantity", quantity, "client", clientID)
	return id, nil
}

// AmendOrder replaces a resting order's price and quantity, identifier
// preserved. The order is re-queued at its new price, forfeiting time
// priority.
func (e *Engine) AmendOrder(id uint64, side book.Side, price, quantity decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, err := e.book.Submit(book.Intent{
		Action:   book.Amend,
		Side:     side,
		Price:    price,
		Quantity: quantity,
		ID:       id,
	})
	if err != nil {
		return err
	}
	e.log.Infow("order_amended", "id", id, "side", side.String(), "price", price, "quantity", quantity)
	return nil
}

// CancelOrder removes a resting order by identifier.
func (e *Engine) CancelOrder(id uint64, side book.Side) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.book.Remove(side, id); err != nil {
		return err
	}
	e.cancelled[id] = struct{}{}
	e.log.Infow("order_cancelled", "id", id, "side", side.String())
	return nil
}

// Execute attempts exactly one match. It does not drain the book; the
// caller loops while crossing interest remains. Outcomes:
//
//   - book.ErrEmptyBook: one or both sides empty, nothing touched
//   - ErrNoCrossing: no eligible bid crosses the top ask
//   - ErrExecutionInvalidated: a matched order failed its solvency
//     re-check and was cancelled; no trade settled
//   - otherwise the settled transaction, appended to the ledger
func (e *Engine) Execute() (*ledger.Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ask, err := e.book.PeekTop(book.Ask)
	if err != nil {
		return nil, err
	}
	if _, err := e.book.PeekTop(book.Bid); err != nil {
		return nil, err
	}

	// Scan bids from the top, skipping the top ask's own client so a
	// participant never trades with itself.
	var bid book.Order
	found := false
	e.book.EachFromTop(book.Bid, func(o book.Order) bool {
		if o.ClientID == ask.ClientID {
			return true
		}
		bid = o
		found = true
		return false
	})
	if !found || bid.Price.LessThan(ask.Price) {
		return nil, ErrNoCrossing
	}

	// Re-validate solvency with current balances. Admission-time and
	// execution-time solvency can diverge when a client has several
	// resting orders drawing on the same balance.
	buyer, err := e.clients.Get(bid.ClientID)
	if err != nil || buyer.Cash.LessThan(bid.Price.Mul(bid.Quantity)) {
		return nil, e.invalidate(bid)
	}
	seller, err := e.clients.Get(ask.ClientID)
	if err != nil || seller.Assets.LessThan(ask.Quantity) {
		return nil, e.invalidate(ask)
	}

	if bid.ClientID == ask.ClientID {
		return nil, ErrSelfTradeRejected
	}

	price := bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2))
	quantity := decimal.Min(bid.Quantity, ask.Quantity)

	// Only the fully consumed side leaves the book; an unmatched
	// remainder stays resting at its reduced quantity.
	switch bid.Quantity.Cmp(ask.Quantity) {
	case 1:
		if err := e.book.Reduce(bid.ID, bid.Quantity.Sub(quantity)); err != nil {
			return nil, err
		}
		if err := e.book.Remove(book.Ask, ask.ID); err != nil {
			return nil, err
		}
		e.filled[ask.ID] = struct{}{}
	case -1:
		if err := e.book.Reduce(ask.ID, ask.Quantity.Sub(quantity)); err != nil {
			return nil, err
		}
		if err := e.book.Remove(book.Bid, bid.ID); err != nil {
			return nil, err
		}
		e.filled[bid.ID] = struct{}{}
	default:
		if err := e.book.Remove(book.Bid, bid.ID); err != nil {
			return nil, err
		}
		if err := e.book.Remove(book.Ask, ask.ID); err != nil {
			return nil, err
		}
		e.filled[bid.ID] = struct{}{}
		e.filled[ask.ID] = struct{}{}
	}

	if err := e.clients.Settle(bid.ClientID, ask.ClientID, price, quantity); err != nil {
		return nil, fmt.Errorf("settlement failed: %w", err)
	}

	txn := e.ledger.Append(bid.ClientID, ask.ClientID, price, quantity)
	e.log.Infow("trade_executed",
		"buyer", bid.ClientID, "seller", ask.ClientID,
		"price", price, "quantity", quantity,
		"bid_id", bid.ID, "ask_id", ask.ID)
	return &txn, nil
}

// invalidate cancels an order that failed its execution-time solvency
// check and reports the condition.
func (e *Engine) invalidate(o book.Order) error {
	if err := e.book.Remove(o.Side, o.ID); err != nil {
		return err
	}
	e.cancelled[o.ID] = struct{}{}
	e.log.Warnw("order_invalidated", "id", o.ID, "side", o.Side.String(), "client", o.ClientID)
	return fmt.Errorf("%w: order %d cancelled", ErrExecutionInvalidated, o.ID)
}

// OrderStatus reports the lifecycle state of an identifier.
func (e *Engine) OrderStatus(id uint64) OrderStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.book.Order(id); err == nil {
		return StatusResting
	}
	if _, ok := e.filled[id]; ok {
		return StatusFilled
	}
	if _, ok := e.cancelled[id]; ok {
		return StatusCancelled
	}
	return StatusUnknown
}

// Order returns a copy of a resting order.
func (e *Engine) Order(id uint64) (book.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Order(id)
}

// BestBid returns the highest resting bid price.
func (e *Engine) BestBid() (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.BestBid()
}

// BestAsk returns the lowest resting ask price.
func (e *Engine) BestAsk() (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.BestAsk()
}

// MidPrice returns the mean of best bid and best ask.
func (e *Engine) MidPrice() (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.MidPrice()
}

// Depth returns aggregated levels for both sides, best price first.
func (e *Engine) Depth() (bids, asks []book.Level) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Levels(book.Bid), e.book.Levels(book.Ask)
}

// VolumeAt returns resting quantity at a limit price, both sides.
func (e *Engine) VolumeAt(price decimal.Decimal) decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.VolumeAt(price)
}

// History returns the full trade log, oldest first.
func (e *Engine) History() []ledger.Transaction {
	return e.ledger.History()
}

// TotalVolume returns the count of all trades ever settled.
func (e *Engine) TotalVolume() int {
	return e.ledger.TotalVolume()
}

// VolumeInLastSecond returns the count of trades settled in the last
// second.
func (e *Engine) VolumeInLastSecond() int {
	return e.ledger.VolumeInLastSecond()
}

// IsNoOp reports whether err is one of the non-fatal execute statuses.
func IsNoOp(err error) bool {
	return errors.Is(err, book.ErrEmptyBook) || errors.Is(err, ErrNoCrossing)
}
