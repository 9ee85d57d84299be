package redisinv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	domain "github.com/aranya-atelier/checkout-core/internal/domain/inventory"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "inventory:"

const (
	evalMissing      = -2
	evalInsufficient = -1
)

// decrScript performs the conditional decrement in a single round trip, so
// concurrent callers against the same variant serialize inside Redis.
var decrScript = redis.NewScript(`
local stock = redis.call('HGET', KEYS[1], 'stock')
if not stock then
	return -2
end
stock = tonumber(stock)
local qty = tonumber(ARGV[1])
if stock < qty then
	return -1
end
redis.call('HSET', KEYS[1], 'stock', stock - qty)
redis.call('HSET', KEYS[1], 'updated_at', ARGV[2])
return stock - qty
`)

var incrScript = redis.NewScript(`
local stock = redis.call('HGET', KEYS[1], 'stock')
if not stock then
	return -2
end
stock = tonumber(stock)
local qty = tonumber(ARGV[1])
redis.call('HSET', KEYS[1], 'stock', stock + qty)
redis.call('HSET', KEYS[1], 'updated_at', ARGV[2])
return stock + qty
`)

// Store keeps variant counters in Redis hashes under inventory:{variantID}.
// It satisfies the same contract and test properties as the memory store and
// is selected with INVENTORY_BACKEND=redis.
type Store struct {
	client *redis.Client
}

func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func variantKey(variantID string) string {
	return keyPrefix + variantID
}

func (s *Store) GetVariant(ctx context.Context, variantID string) (*domain.Variant, error) {
	fields, err := s.client.HGetAll(ctx, variantKey(variantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}
	return parseVariant(variantID, fields)
}

func (s *Store) DecrementIfAvailable(ctx context.Context, variantID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	res, err := decrScript.Run(ctx, s.client, []string{variantKey(variantID)}, quantity, nowStamp()).Int64()
	if err != nil {
		return fmt.Errorf("redis decrement failed: %w", err)
	}
	switch res {
	case evalMissing:
		return domain.ErrNotFound
	case evalInsufficient:
		return domain.ErrInsufficientStock
	default:
		return nil
	}
}

func (s *Store) DecrementMany(ctx context.Context, lines []domain.Line) error {
	// Validation pass: report the full shortfall set before touching anything.
	var shortfalls []domain.Shortfall
	for _, l := range lines {
		if l.Quantity <= 0 {
			return domain.ErrInvalidQuantity
		}
		v, err := s.GetVariant(ctx, l.VariantID)
		if err != nil {
			return err
		}
		if v.Stock < l.Quantity {
			shortfalls = append(shortfalls, domain.Shortfall{
				VariantID: l.VariantID,
				Requested: l.Quantity,
				Available: v.Stock,
			})
		}
	}
	if len(shortfalls) > 0 {
		return &domain.ShortfallError{Items: shortfalls}
	}

	// Apply pass: each decrement is still conditional, so a concurrent order
	// draining stock between the passes fails the line instead of going
	// negative; lines already applied are compensated back.
	applied := make([]domain.Line, 0, len(lines))
	for _, l := range lines {
		if err := s.DecrementIfAvailable(ctx, l.VariantID, l.Quantity); err != nil {
			s.rollback(ctx, applied)
			if errors.Is(err, domain.ErrInsufficientStock) {
				available := 0
				if v, gerr := s.GetVariant(ctx, l.VariantID); gerr == nil {
					available = v.Stock
				}
				return &domain.ShortfallError{Items: []domain.Shortfall{{
					VariantID: l.VariantID,
					Requested: l.Quantity,
					Available: available,
				}}}
			}
			return err
		}
		applied = append(applied, l)
	}
	return nil
}

func (s *Store) Increment(ctx context.Context, variantID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	res, err := incrScript.Run(ctx, s.client, []string{variantKey(variantID)}, quantity, nowStamp()).Int64()
	if err != nil {
		return fmt.Errorf("redis increment failed: %w", err)
	}
	if res == evalMissing {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) Seed(ctx context.Context, variants []domain.Variant) error {
	pipe := s.client.Pipeline()
	stamp := nowStamp()
	for _, v := range variants {
		if v.Stock < 0 {
			return domain.ErrInvalidQuantity
		}
		pipe.HSet(ctx, variantKey(v.ID), map[string]any{
			"product_id": v.ProductID,
			"size":       v.Size,
			"unit_price": strconv.FormatInt(v.UnitPrice, 10),
			"stock":      strconv.Itoa(v.Stock),
			"updated_at": stamp,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis seed failed: %w", err)
	}
	return nil
}

func (s *Store) rollback(ctx context.Context, applied []domain.Line) {
	for _, l := range applied {
		// Compensating increment; the variant existed moments ago, so a
		// failure here is a store-level fault we cannot repair inline.
		_ = s.Increment(ctx, l.VariantID, l.Quantity)
	}
}

func parseVariant(variantID string, fields map[string]string) (*domain.Variant, error) {
	stock, err := strconv.Atoi(fields["stock"])
	if err != nil {
		return nil, fmt.Errorf("parse stock for %s: %w", variantID, err)
	}
	price, err := strconv.ParseInt(fields["unit_price"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse unit_price for %s: %w", variantID, err)
	}
	v := &domain.Variant{
		ID:        variantID,
		ProductID: fields["product_id"],
		Size:      fields["size"],
		UnitPrice: price,
		Stock:     stock,
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["updated_at"]); err == nil {
		v.UpdatedAt = ts
	}
	return v, nil
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
