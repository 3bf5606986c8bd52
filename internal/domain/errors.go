package domain

import "errors"

var (
	// ErrNoEnsembleMembers is returned when no ensemble model contributed any
	// members for an aggregation request.
	ErrNoEnsembleMembers = errors.New("no ensemble members available")

	// ErrNoTemperatureData is returned when members exist but none carry a
	// reading for the target date.
	ErrNoTemperatureData = errors.New("no temperature data for target date")

	// ErrInsufficientBalance aborts an entire live order batch.
	ErrInsufficientBalance = errors.New("insufficient collateral balance")

	// ErrOrderRejected indicates the exchange explicitly refused an order.
	ErrOrderRejected = errors.New("order rejected")

	// ErrMalformedOrderResponse indicates an order response without an order
	// identifier or with inconsistent status fields.
	ErrMalformedOrderResponse = errors.New("malformed order response")

	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
)
