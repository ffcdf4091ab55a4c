package engine

import "errors"

var (
	// ErrNoCrossing means execute found no eligible bid/ask pair whose
	// prices cross. A no-op status, not a failure.
	ErrNoCrossing = errors.New("no crossing orders")

	// ErrInsufficientBalance rejects a bid whose notional exceeds the
	// client's cash balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientAsset rejects an ask whose quantity exceeds the
	// client's asset balance.
	ErrInsufficientAsset = errors.New("insufficient asset balance")

	// ErrExecutionInvalidated means a resting order failed its solvency
	// re-check at match time and was cancelled; no trade settled.
	ErrExecutionInvalidated = errors.New("execution invalidated")

	// ErrSelfTradeRejected guards the invariant that a match never
	// settles a client against itself. Structurally unreachable given
	// the bid scan, kept as a defensive check.
	ErrSelfTradeRejected = errors.New("self trade rejected")
)
