package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/christian-spooner/trading-server/pkg/core/book"
	"github.com/christian-spooner/trading-server/pkg/core/client"
	"github.com/christian-spooner/trading-server/pkg/core/ledger"
	"github.com/christian-spooner/trading-server/pkg/util"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestEngine(t *testing.T) (*Engine, *client.Registry) {
	t.Helper()
	registry := client.NewRegistry()
	ldg := ledger.New(util.NewManualClock(time.Unix(1000, 0)))
	return New(registry, ldg, nil), registry
}

func register(t *testing.T, r *client.Registry, id uint64, cash, assets string) {
	t.Helper()
	if err := r.Register(id, d(cash), d(assets)); err != nil {
		t.Fatalf("register client %d: %v", id, err)
	}
}

func submit(t *testing.T, e *Engine, side book.Side, price, qty string, clientID uint64) uint64 {
	t.Helper()
	id, err := e.SubmitOrder(side, d(price), d(qty), clientID)
	if err != nil {
		t.Fatalf("submit %s %s x %s for %d: %v", side, price, qty, clientID, err)
	}
	return id
}

func TestSubmitRejectsInsolvent(t *testing.T) {
	e, r := newTestEngine(t)
	register(t, r, 1, "40", "3")

	// Bid 10 x 5 needs 50 cash against a balance of 40.
	if _, err := e.SubmitOrder(book.Bid, d("10"), d("5"), 1); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("bid error = %v, want ErrInsufficientBalance", err)
	}
	// Ask of 5 units against 3 held.
	if _, err := e.SubmitOrder(book.Ask, d("10"), d("5"), 1); !errors.Is(err, ErrInsufficientAsset) {
		t.Errorf("ask error = %v, want ErrInsufficientAsset", err)
	}

	if _, err := e.BestBid(); !errors.Is(err, book.ErrEmptyBook) {
		t.Error("rejected orders must not enter the book")
	}
}

func TestSubmitRejectsMalformedAndUnknownClient(t *testing.T) {
	e, r := newTestEngine(t)
	register(t, r, 1, "100", "10")

	if _, err := e.SubmitOrder(book.Bid, d("0"), d("1"), 1); !errors.Is(err, book.ErrMalformedOrder) {
		t.Errorf("zero price error = %v, want ErrMalformedOrder", err)
	}
	if _, err := e.SubmitOrder(book.Side(7), d("1"), d("1"), 1); !errors.Is(err, book.ErrMalformedOrder) {
		t.Errorf("bad side error = %v, want ErrMalformedOrder", err)
	}
	if _, err := e.SubmitOrder(book.Bid, d("1"), d("1"), 42); !errors.Is(err, client.ErrUnknownClient) {
		t.Errorf("unknown client error = %v, want ErrUnknownClient", err)
	}
}

func TestExecuteEmptyBook(t *testing.T) {
	e, r := newTestEngine(t)
	register(t, r, 1, "1000", "100")

	if _, err := e.Execute(); !errors.Is(err, book.ErrEmptyBook) {
		t.Errorf("empty book error = %v, want ErrEmptyBook", err)
	}

	// One-sided book is still empty for matching purposes.
	submit(t, e, book.Bid, "10", "1", 1)
	if _, err := e.Execute(); !errors.Is(err, book.ErrEmptyBook) {
		t.Errorf("one-sided error = %v, want ErrEmptyBook", err)
	}
	if e.TotalVolume() != 0 {
		t.Errorf("ledger volume = %d, want 0", e.TotalVolume())
	}
}

func TestExecuteNoCrossing(t *testing.T) {
	e, r := newTestEngine(t)
	register(t, r, 1, "1000", "100")
	register(t, r, 2, "1000", "100")

	submit(t, e, book.Bid, "40", "1", 1)
	submit(t, e, book.Ask, "60", "1", 2)

	if _, err := e.Execute(); !errors.Is(err, ErrNoCrossing) {
		t.Errorf("error = %v, want ErrNoCrossing", err)
	}
	if e.TotalVolume() != 0 {
		t.Errorf("ledger volume = %d, want 0", e.TotalVolume())
	}
}

func TestExecuteSelfTradeAvoidance(t *testing.T) {
	e, r := newTestEngine(t)
	register(t, r, 1, "1000", "100")
	register(t, r, 2, "1000", "100")

	// Top bid and top ask share a client; no other bid exists.
	bidID := submit(t, e, book.Bid, "60", "1", 1)
	askID := submit(t, e, book.Ask, "50", "1", 1)

	if _, err := e.Execute(); !errors.Is(err, ErrNoCrossing) {
		t.Fatalf("self-cross error = %v, want ErrNoCrossing", err)
	}
	if e.OrderStatus(bidID) != StatusResting || e.OrderStatus(askID) != StatusResting {
		t.Error("book changed on skipped self-trade")
	}

	// A lower bid from another client is matched instead.
	otherBid := submit(t, e, book.Bid, "55", "1", 2)
	txn, err := e.Execute()
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if txn.BuyerID != 2 || txn.SellerID != 1 {
		t.Errorf("matched %d->%d, want buyer 2 seller 1", txn.BuyerID, txn.SellerID)
	}
	if !txn.Price.Equal(d("52.5")) { // midpoint of 55 and 50
		t.Errorf("execution price = %s, want 52.5", txn.Price)
	}
	if e.OrderStatus(otherBid) != StatusFilled {
		t.Errorf("bid status = %s, want filled", e.OrderStatus(otherBid))
	}
	if e.OrderStatus(bidID) != StatusResting {
		t.Error("same-client top bid should still rest")
	}
}

func TestExecuteFullFillSettlesAtMidpoint(t *testing.T) {
	e, r := newTestEngine(t)
	register(t, r, 1, "1000", "0")
	register(t, r, 2, "0", "100")

	bidID := submit(t, e, book.Bid, "102", "2", 1)
	askID := submit(t, e, book.Ask, "98", "2", 2)

	txn, err := e.Execute()
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !txn.Price.Equal(d("100")) || !txn.Quantity.Equal(d("2")) {
		t.Errorf("trade = %s x %s, want 100 x 2", txn.Price, txn.Quantity)
	}

	buyer, _ := r.Get(1)
	seller, _ := r.Get(2)
	if !buyer.Cash.Equal(d("800")) || !buyer.Assets.Equal(d("2")) {
		t.Errorf("buyer = cash %s assets %s, want 800/2", buyer.Cash, buyer.Assets)
	}
	if !seller.Cash.Equal(d("200")) || !seller.Assets.Equal(d("98")) {
		t.Errorf("seller = cash %s assets %s, want 200/98", seller.Cash, seller.Assets)
	}

	if e.OrderStatus(bidID) != StatusFilled || e.OrderStatus(askID) != StatusFilled {
		t.Error("both orders should report filled")
	}
	if e.TotalVolume() != 1 {
		t.Errorf("ledger volume = %d, want 1", e.TotalVolume())
	}

	// Crossing interest is gone; the next step is a no-op.
	if _, err := e.Execute(); !errors.Is(err, book.ErrEmptyBook) {
		t.Errorf("post-trade error = %v, want ErrEmptyBook", err)
	}
}

func TestExecutePartialFillKeepsRemainder(t *testing.T) {
	e, r := newTestEngine(t)
	register(t, r, 1, "1000", "0")
	register(t, r, 2, "0", "100")

	bidID := submit(t, e, book.Bid, "100", "2", 1)
	askID := submit(t, e, book.Ask, "100", "5", 2)

	txn, err := e.Execute()
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !txn.Quantity.Equal(d("2")) {
		t.Errorf("trade quantity = %s, want 2", txn.Quantity)
	}

	// Bid fully consumed; ask rests with the remainder.
	if e.OrderStatus(bidID) != StatusFilled {
		t.Errorf("bid status = %s, want filled", e.OrderStatus(bidID))
	}
	rest, err := e.Order(askID)
	if err != nil {
		t.Fatalf("remainder gone: %v", err)
	}
	if !rest.Quantity.Equal(d("3")) {
		t.Errorf("remainder quantity = %s, want 3", rest.Quantity)
	}
	if e.OrderStatus(askID) != StatusResting {
		t.Errorf("ask status = %s, want resting", e.OrderStatus(askID))
	}
}

func TestExecuteSingleMatchPerCall(t *testing.T) {
	e, r := newTestEngine(t)
	register(t, r, 1, "10000", "0")
	register(t, r, 2, "0", "100")

	submit(t, e, book.Bid, "100", "1", 1)
	submit(t, e, book.Bid, "101", "1", 1)
	submit(t, e, book.Ask, "99", "1", 2)
	submit(t, e, book.Ask, "99", "1", 2)

	if _, err := e.Execute(); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if e.TotalVolume() != 1 {
		t.Fatalf("volume after one step = %d, want 1 (no auto-drain)", e.TotalVolume())
	}
	if _, err := e.Execute(); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if e.TotalVolume() != 2 {
		t.Errorf("volume after two steps = %d, want 2", e.TotalVolume())
	}
}

func TestExecuteInvalidatesStaleOrder(t *testing.T) {
	e, r := newTestEngine(t)
	register(t, r, 1, "1000", "0")
	register(t, r, 2, "0", "100")

	bidID := submit(t, e, book.Bid, "100", "5", 1)
	submit(t, e, book.Ask, "100", "5", 2)

	// Admitted solvent, then the buyer's cash drains externally.
	if err := r.Withdraw(1, d("900")); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	if _, err := e.Execute(); !errors.Is(err, ErrExecutionInvalidated) {
		t.Fatalf("error = %v, want ErrExecutionInvalidated", err)
	}
	if e.OrderStatus(bidID) != StatusCancelled {
		t.Errorf("bid status = %s, want cancelled", e.OrderStatus(bidID))
	}
	if e.TotalVolume() != 0 {
		t.Errorf("ledger volume = %d, want 0 after invalidation", e.TotalVolume())
	}

	buyer, _ := r.Get(1)
	if !buyer.Cash.Equal(d("100")) || !buyer.Assets.IsZero() {
		t.Errorf("buyer balances mutated: %+v", buyer)
	}
}

func TestExecuteInvalidatesShortSeller(t *testing.T) {
	e, r := newTestEngine(t)
	register(t, r, 1, "1000", "0")
	register(t, r, 2, "0", "5")

	submit(t, e, book.Bid, "100", "5", 1)
	askID := submit(t, e, book.Ask, "100", "5", 2)

	if err := r.Settle(1, 2, d("100"), d("3")); err != nil {
		t.Fatalf("drain seller assets: %v", err)
	}

	if _, err := e.Execute(); !errors.Is(err, ErrExecutionInvalidated) {
		t.Fatalf("error = %v, want ErrExecutionInvalidated", err)
	}
	if e.OrderStatus(askID) != StatusCancelled {
		t.Errorf("ask status = %s, want cancelled", e.OrderStatus(askID))
	}
}

func TestCancelOrder(t *testing.T) {
	e, r := newTestEngine(t)
	register(t, r, 1, "1000", "100")

	submit(t, e, book.Bid, "40", "1", 1)
	id := submit(t, e, book.Bid, "45", "2", 1)

	if err := e.CancelOrder(id, book.Bid); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if e.OrderStatus(id) != StatusCancelled {
		t.Errorf("status = %s, want cancelled", e.OrderStatus(id))
	}

	best, err := e.BestBid()
	if err != nil {
		t.Fatalf("BestBid: %v", err)
	}
	if !best.Equal(d("40")) {
		t.Errorf("best bid = %s, want 40 (prior state restored)", best)
	}

	if err := e.CancelOrder(999, book.Ask); !errors.Is(err, book.ErrOrderNotFound) {
		t.Errorf("cancel unknown error = %v, want ErrOrderNotFound", err)
	}
}

func TestAmendOrder(t *testing.T) {
	e, r := newTestEngine(t)
	register(t, r, 1, "1000", "100")

	id := submit(t, e, book.Bid, "40", "1", 1)
	if err := e.AmendOrder(id, book.Bid, d("45"), d("3")); err != nil {
		t.Fatalf("AmendOrder: %v", err)
	}

	o, err := e.Order(id)
	if err != nil {
		t.Fatalf("Order: %v", err)
	}
	if !o.Price.Equal(d("45")) || !o.Quantity.Equal(d("3")) {
		t.Errorf("amended order = %s x %s, want 45 x 3", o.Price, o.Quantity)
	}

	if err := e.AmendOrder(999, book.Bid, d("1"), d("1")); !errors.Is(err, book.ErrOrderNotFound) {
		t.Errorf("amend unknown error = %v, want ErrOrderNotFound", err)
	}
}

func TestOrderStatusLifecycle(t *testing.T) {
	e, _ := newTestEngine(t)

	if got := e.OrderStatus(12345); got != StatusUnknown {
		t.Errorf("unseen id status = %s, want unknown", got)
	}
}

func TestDepthAndVolumeReadThroughs(t *testing.T) {
	e, r := newTestEngine(t)
	register(t, r, 1, "10000", "100")
	register(t, r, 2, "10000", "100")

	submit(t, e, book.Bid, "10", "1", 1)
	submit(t, e, book.Bid, "50", "2", 1)
	submit(t, e, book.Ask, "100", "3", 2)
	submit(t, e, book.Ask, "75", "4", 2)
	submit(t, e, book.Bid, "20", "5", 1)

	bids, asks := e.Depth()
	if len(bids) != 3 || len(asks) != 2 {
		t.Fatalf("depth = %d bids %d asks, want 3/2", len(bids), len(asks))
	}
	if !bids[0].Price.Equal(d("50")) || !asks[0].Price.Equal(d("75")) {
		t.Errorf("top of depth = %s / %s, want 50 / 75", bids[0].Price, asks[0].Price)
	}

	mid, err := e.MidPrice()
	if err != nil {
		t.Fatalf("MidPrice: %v", err)
	}
	if !mid.Equal(d("62.5")) {
		t.Errorf("mid = %s, want 62.5", mid)
	}

	if got := e.VolumeAt(d("50")); !got.Equal(d("2")) {
		t.Errorf("VolumeAt(50) = %s, want 2", got)
	}
}

func TestVolumeCountersThroughEngine(t *testing.T) {
	e, r := newTestEngine(t)
	register(t, r, 1, "10000", "0")
	register(t, r, 2, "0", "100")

	submit(t, e, book.Bid, "100", "1", 1)
	submit(t, e, book.Ask, "100", "1", 2)
	if _, err := e.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if e.TotalVolume() != 1 {
		t.Errorf("TotalVolume = %d, want 1", e.TotalVolume())
	}
	if e.VolumeInLastSecond() != 1 {
		t.Errorf("VolumeInLastSecond = %d, want 1", e.VolumeInLastSecond())
	}
	if len(e.History()) != 1 {
		t.Errorf("History length = %d, want 1", len(e.History()))
	}
}
