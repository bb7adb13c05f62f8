package repository

import (
	"context"
	"fmt"
	"time"

	"groundchat/models"
	"groundchat/repository/filestore"
	"groundchat/repository/pgstore"
	"groundchat/repository/redisstore"
)

// TurnStore is the append-only durable turn log, queryable by chat id and a
// limit.
type TurnStore interface {
	AppendTurn(ctx context.Context, chatID int64, turn models.Turn) error
	// RecentTurns returns the most recent limit turns of a chat in arrival
	// order.
	RecentTurns(ctx context.Context, chatID int64, limit int) ([]models.Turn, error)
}

// ProfileStore is the per-chat preference/summary document store.
type ProfileStore interface {
	GetProfile(ctx context.Context, chatID int64) (models.Profile, error)
	// MergeProfile applies updates additively and returns the merged
	// profile.
	MergeProfile(ctx context.Context, chatID int64, updates models.Profile) (models.Profile, error)
	ClearProfile(ctx context.Context, chatID int64) error
}

// Store combines turn and profile storage.
type Store interface {
	TurnStore
	ProfileStore
}

// Sweeper is implemented by backends with a retention sweep (the file store
// deletes daily files older than its configured window).
type Sweeper interface {
	Sweep(ctx context.Context) (removed int, err error)
}

// StoreType selects a storage backend.
type StoreType string

const (
	FileStoreType     StoreType = "file"
	RedisStoreType    StoreType = "redis"
	PostgresStoreType StoreType = "postgres"
)

// Config carries backend construction settings.
type Config struct {
	// File backend.
	Dir  string
	Mode string
	Days int

	// Redis backend.
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Postgres backend.
	PostgresDSN string

	Timeout time.Duration
}

// NewStore creates a turn/profile store of the given type.
func NewStore(ctx context.Context, t StoreType, cfg Config) (Store, error) {
	switch t {
	case FileStoreType:
		return filestore.New(cfg.Dir, cfg.Mode, cfg.Days), nil
	case RedisStoreType:
		client, err := redisstore.Conn(ctx, cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword, cfg.RedisDB, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return redisstore.New(client), nil
	case PostgresStoreType:
		return pgstore.New(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("invalid store type: %s", t)
	}
}
