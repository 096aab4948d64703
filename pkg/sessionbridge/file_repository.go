package sessionbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const bridgeFileName = "sessionbridge.json"

type bridgeEntry struct {
	Context   BridgeContext `json:"context"`
	ExpiresAt time.Time     `json:"expires_at"`
}

type fileState struct {
	Flags   map[string]bool        `json:"flags"`
	Bridges map[string]bridgeEntry `json:"bridges"`
}

// FileRepository implements Repository using file-based storage, so bridge
// state survives process restarts the way browser storage survives reloads.
type FileRepository struct {
	path  string
	state fileState
	mutex sync.RWMutex
}

// NewFileRepository creates a new file-based session bridge repository
func NewFileRepository(dataDir string) (*FileRepository, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileRepository{
		path: filepath.Join(dataDir, bridgeFileName),
		state: fileState{
			Flags:   make(map[string]bool),
			Bridges: make(map[string]bridgeEntry),
		},
	}

	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	return repo, nil
}

func (r *FileRepository) SetFlag(_ context.Context, key string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.state.Flags[key] = true
	if err := r.save(); err != nil {
		delete(r.state.Flags, key)
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (r *FileRepository) GetFlag(_ context.Context, key string) (bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.state.Flags[key], nil
}

func (r *FileRepository) DeleteFlag(_ context.Context, key string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.state.Flags[key]; !ok {
		return nil
	}
	delete(r.state.Flags, key)
	if err := r.save(); err != nil {
		r.state.Flags[key] = true
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (r *FileRepository) SetBridge(_ context.Context, key string, bctx BridgeContext, ttl time.Duration) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	prev, hadPrev := r.state.Bridges[key]
	r.state.Bridges[key] = bridgeEntry{
		Context:   bctx,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := r.save(); err != nil {
		if hadPrev {
			r.state.Bridges[key] = prev
		} else {
			delete(r.state.Bridges, key)
		}
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (r *FileRepository) GetBridge(_ context.Context, key string) (*BridgeContext, error) {
	r.mutex.RLock()
	entry, ok := r.state.Bridges[key]
	r.mutex.RUnlock()

	if !ok {
		return nil, ErrNoBridge
	}
	if time.Now().After(entry.ExpiresAt) {
		// Lazily drop the expired entry.
		_ = r.DeleteBridge(context.Background(), key)
		return nil, ErrNoBridge
	}
	bctx := entry.Context
	return &bctx, nil
}

func (r *FileRepository) DeleteBridge(_ context.Context, key string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	prev, ok := r.state.Bridges[key]
	if !ok {
		return nil
	}
	delete(r.state.Bridges, key)
	if err := r.save(); err != nil {
		r.state.Bridges[key] = prev
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

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("corrupt bridge file: %w", err)
	}
	if state.Flags == nil {
		state.Flags = make(map[string]bool)
	}
	if state.Bridges == nil {
		state.Bridges = make(map[string]bridgeEntry)
	}
	r.state = state
	return nil
}

// save writes the state to disk. Callers must hold the write lock.
func (r *FileRepository) save() error {
	data, err := json.MarshalIndent(r.state, "", "  ")
	if err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}
