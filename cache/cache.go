// Package cache defines the best-effort cache contract. Backends never
// surface failures to callers: a broken cache degrades to direct store reads.
package cache

import (
	"context"
	"fmt"
	"time"
)

type Cache interface {
	// Get returns the cached value, or false if absent or the backend failed.
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Clear removes the key, or every key matching a trailing-* pattern.
	Clear(ctx context.Context, pattern string)
}

// Key builders. Every mutation invalidates a fixed, deterministic set of
// these, so the invalidation policy is testable against a recording cache.

func CartKey(userID string) string           { return "cart:" + userID }
func WalletKey(userID string) string         { return "wallet:" + userID }
func WishlistKey(userID string) string       { return "wishlist:" + userID }
func OrderKey(orderID string) string         { return "order:" + orderID }
func UserOrdersKey(userID string) string     { return "orders:user:" + userID }
func StylistOrdersKey(stylist string) string { return "orders:stylist:" + stylist }
func ProductKey(productID string) string     { return "product:" + productID }
func ProductsKey() string                    { return "products" }

func TransactionsKey(userID string, page int) string {
	return fmt.Sprintf("transactions:%s:%d", userID, page)
}

func UserTransactionsPattern(userID string) string {
	return "transactions:" + userID + ":*"
}
