package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"groundchat/models"
)

const (
	turnsKeyPrefix   = "chat:%d:turns"
	profileKeyPrefix = "chat:%d:profile"
)

// Conn opens and pings a redis connection.
func Conn(ctx context.Context, host, port, pass string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", host, port),
		DialTimeout: timeout,
		Password:    pass,
		DB:          db,
	})
	log.Println("redis options -> " + client.String())

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	if pong != "PONG" {
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return client, nil
}

// Store keeps each chat's turn log in a redis list of JSON documents and its
// profile in a single JSON value.
type Store struct {
	client *redis.Client
}

func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func turnsKey(chatID int64) string   { return fmt.Sprintf(turnsKeyPrefix, chatID) }
func profileKey(chatID int64) string { return fmt.Sprintf(profileKeyPrefix, chatID) }

func (s *Store) AppendTurn(ctx context.Context, chatID int64, turn models.Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, turnsKey(chatID), data).Err()
}

func (s *Store) RecentTurns(ctx context.Context, chatID int64, limit int) ([]models.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	vals, err := s.client.LRange(ctx, turnsKey(chatID), int64(-limit), -1).Result()
	if err != nil {
		return nil, err
	}
	turns := make([]models.Turn, 0, len(vals))
	for _, v := range vals {
		var t models.Turn
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *Store) GetProfile(ctx context.Context, chatID int64) (models.Profile, error) {
	val, err := s.client.Get(ctx, profileKey(chatID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Profile{}, nil
		}
		return models.Profile{}, err
	}
	var p models.Profile
	if err := json.Unmarshal([]byte(val), &p); err != nil {
		return models.Profile{}, nil
	}
	return p, nil
}

func (s *Store) MergeProfile(ctx context.Context, chatID int64, updates models.Profile) (models.Profile, error) {
	base, err := s.GetProfile(ctx, chatID)
	if err != nil {
		return models.Profile{}, err
	}
	merged := base.Merge(updates)
	data, err := json.Marshal(merged)
	if err != nil {
		return models.Profile{}, err
	}
	if err := s.client.Set(ctx, profileKey(chatID), data, 0).Err(); err != nil {
		return models.Profile{}, err
	}
	return merged, nil
}

func (s *Store) ClearProfile(ctx context.Context, chatID int64) error {
	return s.client.Del(ctx, profileKey(chatID)).Err()
}
