package sessionbridge

import (
	"fmt"
)

// RepositoryConfig contains configuration for creating a bridge repository
type RepositoryConfig struct {
	// DataDir is required for file-based repositories
	DataDir string
}

// NewRepository creates a bridge repository based on the persistence type
func NewRepository(persistenceType string, config RepositoryConfig) (Repository, error) {
	switch persistenceType {
	case "memory", "inmem":
		return NewInMemRepository(), nil
	case "file":
		if config.DataDir == "" {
			return nil, fmt.Errorf("dataDir required for file repository")
		}
		return NewFileRepository(config.DataDir)
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: memory, file)", persistenceType)
	}
}
