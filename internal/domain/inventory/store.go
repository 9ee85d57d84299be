package inventory

import "context"

// Store holds the per-variant counters. All mutation goes through the
// conditional decrement/increment primitives; callers never read-then-write
// stock themselves.
type Store interface {
	GetVariant(ctx context.Context, variantID string) (*Variant, error)

	// DecrementIfAvailable atomically subtracts quantity when stock covers it,
	// otherwise leaves stock unchanged and returns ErrInsufficientStock.
	// Race-free under concurrent callers for the same variant.
	DecrementIfAvailable(ctx context.Context, variantID string, quantity int) error

	// DecrementMany applies DecrementIfAvailable per line. On any failure the
	// lines already decremented in this call are compensated back, and a
	// *ShortfallError names every insufficient variant.
	DecrementMany(ctx context.Context, lines []Line) error

	// Increment restores stock; used for rollback and cancellation. It never
	// drives stock negative and fails only for unknown variants.
	Increment(ctx context.Context, variantID string, quantity int) error

	// Seed overwrites variant records wholesale. Administrative reseed is the
	// supported way to repair stock drift.
	Seed(ctx context.Context, variants []Variant) error
}
