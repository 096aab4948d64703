package sessionbridge

import (
	"context"
	"time"
)

// Repository is the storage contract behind the session bridge. Flag entries
// have no storage-level expiry (the guard clears them on a timer); bridge
// entries expire after their TTL so they cannot outlive one round trip.
type Repository interface {
	SetFlag(ctx context.Context, key string) error
	GetFlag(ctx context.Context, key string) (bool, error)
	DeleteFlag(ctx context.Context, key string) error

	SetBridge(ctx context.Context, key string, bctx BridgeContext, ttl time.Duration) error
	// GetBridge returns ErrNoBridge when no live entry exists.
	GetBridge(ctx context.Context, key string) (*BridgeContext, error)
	DeleteBridge(ctx context.Context, key string) error
}
