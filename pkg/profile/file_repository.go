package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const profilesFileName = "profiles.json"

// FileRepository implements Repository using file-based storage
type FileRepository struct {
	path     string
	profiles map[uuid.UUID]Profile
	mutex    sync.RWMutex
}

// NewFileRepository creates a new file-based profile repository
func NewFileRepository(dataDir string) (*FileRepository, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileRepository{
		path:     filepath.Join(dataDir, profilesFileName),
		profiles: make(map[uuid.UUID]Profile),
	}
	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	return repo, nil
}

func (r *FileRepository) GetByUserID(_ context.Context, userID uuid.UUID) (Profile, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (r *FileRepository) Upsert(_ context.Context, params UpsertParams) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now().UTC()
	prev, existed := r.profiles[params.UserID]
	p := prev
	if !existed {
		p = Profile{UserID: params.UserID, CreatedAt: now}
	}
	p.Email = params.Email
	p.IsAdmin = params.IsAdmin
	p.UpdatedAt = now
	r.profiles[params.UserID] = p

	if err := r.save(); err != nil {
		if existed {
			r.profiles[params.UserID] = prev
		} else {
			delete(r.profiles, params.UserID)
		}
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (r *FileRepository) Delete(_ context.Context, userID uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	prev, ok := r.profiles[userID]
	if !ok {
		return nil
	}
	delete(r.profiles, userID)
	if err := r.save(); err != nil {
		r.profiles[userID] = prev
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (r *FileRepository) load() error {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var profiles []Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return fmt.Errorf("corrupt profiles file: %w", err)
	}
	for _, p := range profiles {
		r.profiles[p.UserID] = p
	}
	return nil
}

// save writes all profiles to disk. Callers must hold the write lock.
func (r *FileRepository) save() error {
	profiles := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		profiles = append(profiles, p)
	}
	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}
