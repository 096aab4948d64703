package profile

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemRepository implements Repository with an in-memory map. Used in tests
// and single-process development setups.
type InMemRepository struct {
	profiles map[uuid.UUID]Profile
	mutex    sync.RWMutex
}

func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		profiles: make(map[uuid.UUID]Profile),
	}
}

func (r *InMemRepository) GetByUserID(_ context.Context, userID uuid.UUID) (Profile, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (r *InMemRepository) Upsert(_ context.Context, params UpsertParams) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now().UTC()
	p, ok := r.profiles[params.UserID]
	if !ok {
		p = Profile{UserID: params.UserID, CreatedAt: now}
	}
	p.Email = params.Email
	p.IsAdmin = params.IsAdmin
	p.UpdatedAt = now
	r.profiles[params.UserID] = p
	return nil
}

func (r *InMemRepository) Delete(_ context.Context, userID uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.profiles, userID)
	return nil
}
