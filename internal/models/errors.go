package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies business failures so callers can react without parsing messages.
type ErrorKind string

const (
	KindNotFound            ErrorKind = "not_found"
	KindInsufficientStock   ErrorKind = "insufficient_stock"
	KindInvalidOperation    ErrorKind = "invalid_operation"
	KindConcurrencyConflict ErrorKind = "concurrency_conflict"
)

var (
	// ErrNotFound matches any *Error of kind KindNotFound.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock matches any *Error of kind KindInsufficientStock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidOperation matches any *Error of kind KindInvalidOperation.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrConcurrencyConflict matches any *Error of kind KindConcurrencyConflict.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

var sentinels = map[ErrorKind]error{
	KindNotFound:            ErrNotFound,
	KindInsufficientStock:   ErrInsufficientStock,
	KindInvalidOperation:    ErrInvalidOperation,
	KindConcurrencyConflict: ErrConcurrencyConflict,
}

// Error is a business-rule failure. Anything that is not an *Error is an unexpected
// internal failure.
type Error struct {
	Kind     ErrorKind
	Resource string // "product", "cart item", "order"
	ID       string
	Message  string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.ID != "" {
		return fmt.Sprintf("%s %s: %s", e.Resource, e.ID, sentinels[e.Kind])
	}
	return fmt.Sprintf("%s: %s", e.Resource, sentinels[e.Kind])
}

// Is lets errors.Is(err, ErrNotFound) and friends work on wrapped *Error values.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Kind == e.Kind
	}
	return sentinels[e.Kind] == target
}

// NewNotFound reports a missing product, cart item or order.
func NewNotFound(resource, id string) *Error {
	return &Error{
		Kind:     KindNotFound,
		Resource: resource,
		ID:       id,
		Message:  fmt.Sprintf("%s with ID %s not found", resource, id),
	}
}

// NewInsufficientStock reports that requested exceeds the available quantity of a product.
func NewInsufficientStock(productID, productName string, requested, available int) *Error {
	return &Error{
		Kind:     KindInsufficientStock,
		Resource: "product",
		ID:       productID,
		Message: fmt.Sprintf("insufficient stock for product %s (requested: %d, available: %d)",
			productName, requested, available),
	}
}

// NewInvalidOperation reports an illegal state transition or a request the rules forbid.
func NewInvalidOperation(resource, id, format string, args ...interface{}) *Error {
	return &Error{
		Kind:     KindInvalidOperation,
		Resource: resource,
		ID:       id,
		Message:  fmt.Sprintf(format, args...),
	}
}

// NewConcurrencyConflict reports a stale optimistic-concurrency token.
func NewConcurrencyConflict(resource, id string) *Error {
	return &Error{
		Kind:     KindConcurrencyConflict,
		Resource: resource,
		ID:       id,
		Message:  fmt.Sprintf("%s %s was modified concurrently, retry the request", resource, id),
	}
}

// KindOf returns the business kind of err, or "" for unexpected failures.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether repeating the request may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
