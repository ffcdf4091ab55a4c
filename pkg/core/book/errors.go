package book

import "errors"

var (
	// ErrMalformedOrder is returned when a submission is missing a
	// required field or carries a non-positive price or quantity.
	ErrMalformedOrder = errors.New("malformed order")

	// ErrOrderNotFound is returned when a cancel or amend addresses an
	// identifier that is not resting on the addressed side.
	ErrOrderNotFound = errors.New("order not found")

	// ErrEmptyBook is returned by top-of-book queries when the needed
	// side has no resting orders.
	ErrEmptyBook = errors.New("order book empty")
)
