package inventory

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrUnavailable       = errors.New("product unavailable")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidProduct    = errors.New("invalid product")
	ErrForbidden         = errors.New("forbidden")
)

// StockError reports how much was asked for against what was left.
type StockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Is(target error) bool { return target == ErrInsufficientStock }
