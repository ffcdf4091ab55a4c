// Package client holds participant balance records. The registry is
// owned by the integration layer; the matching engine only references
// it, and settlement is the only path that moves funds between
// participants.
package client

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownClient is returned when an operation addresses an
	// unregistered client identifier.
	ErrUnknownClient = errors.New("unknown client")

	// ErrAlreadyRegistered is returned when registering an identifier
	// that already has a record.
	ErrAlreadyRegistered = errors.New("client already registered")
)

// Client is one participant's balance record: cash in the quote
// currency and holdings of the traded asset. Both stay non-negative.
type Client struct {
	ID     uint64          `json:"id"`
	Cash   decimal.Decimal `json:"cash"`
	Assets decimal.Decimal `json:"assets"`
}

// Registry is a thread-safe collection of client balance records.
type Registry struct {
	mu      sync.RWMutex
	clients map[uint64]*Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[uint64]*Client)}
}

// Register creates a balance record. Initial balances must not be
// negative.
func (r *Registry) Register(id uint64, cash, assets decimal.Decimal) error {
	if cash.IsNegative() || assets.IsNegative() {
		return fmt.Errorf("initial balances cannot be negative: cash=%s assets=%s", cash, assets)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[id]; exists {
		return fmt.Errorf("%w: id %d", ErrAlreadyRegistered, id)
	}
	r.clients[id] = &Client{ID: id, Cash: cash, Assets: assets}
	return nil
}

// Get returns a copy of a client's record.
func (r *Registry) Get(id uint64) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[id]
	if !ok {
		return Client{}, fmt.Errorf("%w: id %d", ErrUnknownClient, id)
	}
	return *c, nil
}

// All returns copies of every record, for display and diagnostics.
func (r *Registry) All() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, *c)
	}
	return out
}

// Deposit credits cash to a client's record.
func (r *Registry) Deposit(id uint64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("deposit amount must be positive: %s", amount)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownClient, id)
	}
	c.Cash = c.Cash.Add(amount)
	return nil
}

// Withdraw debits cash from a client's record. Fails rather than let
// the balance go negative.
func (r *Registry) Withdraw(id uint64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("withdraw amount must be positive: %s", amount)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownClient, id)
	}
	if c.Cash.LessThan(amount) {
		return fmt.Errorf("insufficient balance: have %s, need %s", c.Cash, amount)
	}
	c.Cash = c.Cash.Sub(amount)
	return nil
}

// Settle transfers price×quantity cash from buyer to seller and
// quantity assets from seller to buyer, atomically. Fails without
// mutating anything if either balance would go negative.
func (r *Registry) Settle(buyerID, sellerID uint64, price, quantity decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	buyer, ok := r.clients[buyerID]
	if !ok {
		return fmt.Errorf("%w: buyer id %d", ErrUnknownClient, buyerID)
	}
	seller, ok := r.clients[sellerID]
	if !ok {
		return fmt.Errorf("%w: seller id %d", ErrUnknownClient, sellerID)
	}

	cost := price.Mul(quantity)
	if buyer.Cash.LessThan(cost) {
		return fmt.Errorf("buyer %d insolvent: have %s, need %s", buyerID, buyer.Cash, cost)
	}
	if seller.Assets.LessThan(quantity) {
		return fmt.Errorf("seller %d short of assets: have %s, need %s", sellerID, seller.Assets, quantity)
	}

	buyer.Cash = buyer.Cash.Sub(cost)
	buyer.Assets = buyer.Assets.Add(quantity)
	seller.Cash = seller.Cash.Add(cost)
	seller.Assets = seller.Assets.Sub(quantity)
	return nil
}
