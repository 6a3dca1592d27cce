package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNonPositiveTotal = errors.New("order total must be greater than zero")
	ErrOrderNotFound    = errors.New("order not found")
)

// ValidationError aggregates field level problems of a request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Summary()
}

// Summary renders the fields sorted by name: {items[0].quantity: ..., ...}.
func (e *ValidationError) Summary() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is not available", e.ProductID)
}

type InvalidPriceError struct {
	ProductID string
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid product price for product %s", e.ProductID)
}

// ServiceUnavailableError means the product service could not answer; the
// request may be retried.
type ServiceUnavailableError struct {
	ProductID string
	Err       error
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("product service unavailable while resolving %s: %v", e.ProductID, e.Err)
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Err }
