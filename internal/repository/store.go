package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"groupcart/internal/config"
)

// Snapshot names
const (
	SnapshotGroups        = "groups"
	SnapshotAddresses     = "addresses"
	SnapshotNotifications = "notifications"
	SnapshotUsers         = "users"
)

// ErrSnapshotNotFound no snapshot has been written under the name yet
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore persists whole collections: load-all and replace-all.
type SnapshotStore interface {
	// Load returns the last saved payload or ErrSnapshotNotFound
	Load(ctx context.Context, name string) ([]byte, error)

	// Save replaces the payload stored under name
	Save(ctx context.Context, name string, payload []byte) error
}

// LoadJSON decodes the named snapshot into dst. It reports false when no
// snapshot exists, leaving dst untouched.
func LoadJSON(ctx context.Context, store SnapshotStore, name string, dst interface{}) (bool, error) {
	payload, err := store.Load(ctx, name)
	if errors.Is(err, ErrSnapshotNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return false, fmt.Errorf("decode snapshot %s: %w", name, err)
	}
	return true, nil
}

// NewSnapshotStore selects the backend named by cfg.Driver. The redis and
// mysql drivers need the matching client.
func NewSnapshotStore(cfg config.StorageConfig, rdb redis.UniversalClient, db *gorm.DB) (SnapshotStore, error) {
	switch cfg.Driver {
	case "", "file":
		return NewFileStore(cfg.Dir)
	case "redis":
		if rdb == nil {
			return nil, errors.New("redis storage driver requires a redis client")
		}
		return NewRedisStore(rdb, cfg.KeyPrefix), nil
	case "mysql":
		if db == nil {
			return nil, errors.New("mysql storage driver requires a database connection")
		}
		return NewGormStore(db), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
	}
}
