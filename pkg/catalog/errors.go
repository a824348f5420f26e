package catalog

import "errors"

var (
	// ErrInvalidConfig is returned when the client configuration is incomplete
	ErrInvalidConfig = errors.New("invalid catalog client config")

	// ErrProductNotFound is returned when the directory answers 404
	ErrProductNotFound = errors.New("product not found")

	// ErrInsufficientStock is returned when a decrement would drive stock below zero
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrNetworkError is returned when the directory could not be reached
	ErrNetworkError = errors.New("network error")

	// ErrUnexpectedStatus is returned for any other non-2xx answer
	ErrUnexpectedStatus = errors.New("unexpected status from product directory")
)
