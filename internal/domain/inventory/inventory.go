package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound          = errors.New("inventory: variant not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// Variant is the authoritative per-variant stock counter. UnitPrice is in
// minor currency units (paise). Stock is never negative.
type Variant struct {
	ID        string
	ProductID string
	Size      string
	UnitPrice int64
	Stock     int
	UpdatedAt time.Time
}

// Line is a single decrement request within a multi-variant operation.
type Line struct {
	VariantID string
	Quantity  int
}

// Shortfall reports one variant whose available stock could not cover the
// requested quantity.
type Shortfall struct {
	VariantID string
	Requested int
	Available int
}

// ShortfallError carries the exact set of insufficient variants from a failed
// DecrementMany. It unwraps to ErrInsufficientStock.
type ShortfallError struct {
	Items []Shortfall
}

func (e *ShortfallError) Error() string {
	ids := make([]string, 0, len(e.Items))
	for _, s := range e.Items {
		ids = append(ids, fmt.Sprintf("%s (want %d, have %d)", s.VariantID, s.Requested, s.Available))
	}
	return "inventory: insufficient stock: " + strings.Join(ids, ", ")
}

func (e *ShortfallError) Unwrap() error { return ErrInsufficientStock }
