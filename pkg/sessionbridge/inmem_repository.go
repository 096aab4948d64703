package sessionbridge

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// InMemRepository keeps bridge state in process memory. Bridge entries are
// evicted by ttlcache once their TTL elapses; flags live until cleared.
type InMemRepository struct {
	flags   *ttlcache.Cache[string, bool]
	bridges *ttlcache.Cache[string, BridgeContext]
}

func NewInMemRepository() *InMemRepository {
	flags := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, bool](),
	)
	bridges := ttlcache.New(
		ttlcache.WithTTL[string, BridgeContext](DefaultBridgeTTL),
		ttlcache.WithDisableTouchOnHit[string, BridgeContext](),
	)
	go flags.Start()
	go bridges.Start()

	return &InMemRepository{flags: flags, bridges: bridges}
}

func (r *InMemRepository) SetFlag(_ context.Context, key string) error {
	r.flags.Set(key, true, ttlcache.NoTTL)
	return nil
}

func (r *InMemRepository) GetFlag(_ context.Context, key string) (bool, error) {
	item := r.flags.Get(key)
	if item == nil {
		return false, nil
	}
	return item.Value(), nil
}

func (r *InMemRepository) DeleteFlag(_ context.Context, key string) error {
	r.flags.Delete(key)
	return nil
}

func (r *InMemRepository) SetBridge(_ context.Context, key string, bctx BridgeContext, ttl time.Duration) error {
	r.bridges.Set(key, bctx, ttl)
	return nil
}

func (r *InMemRepository) GetBridge(_ context.Context, key string) (*BridgeContext, error) {
	item := r.bridges.Get(key)
	if item == nil {
		return nil, ErrNoBridge
	}
	bctx := item.Value()
	return &bctx, nil
}

func (r *InMemRepository) DeleteBridge(_ context.Context, key string) error {
	r.bridges.Delete(key)
	return nil
}

// Close stops the eviction goroutines.
func (r *InMemRepository) Close() {
	r.flags.Stop()
	r.bridges.Stop()
}
