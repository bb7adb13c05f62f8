package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"groundchat/models"
)

// Store persists turns and profiles in Postgres. Turns are an append-only
// table ordered by a serial id; profiles are one jsonb row per chat.
type Store struct {
	DB *sql.DB
}

func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

// Migrate applies schema migrations. dir example: file://repository/pgstore/migrations
func Migrate(dir, dsn, direction string, steps int) error {
	if dir == "" {
		dir = "file://repository/pgstore/migrations"
	}
	m, err := migrate.New(dir, dsn)
	if err != nil {
		return err
	}
	switch direction {
	case "up":
		if steps > 0 {
			return m.Steps(steps)
		}
		return m.Up()
	case "down":
		if steps > 0 {
			return m.Steps(-steps)
		}
		return m.Down()
	default:
		return fmt.Errorf("unknown direction: %s", direction)
	}
}

func (s *Store) AppendTurn(ctx context.Context, chatID int64, turn models.Turn) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO turns (chat_id, role, content, ts) VALUES ($1, $2, $3, $4)`,
		chatID, string(turn.Role), turn.Content, turn.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *Store) RecentTurns(ctx context.Context, chatID int64, limit int) ([]models.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT role, content, ts FROM turns WHERE chat_id = $1 ORDER BY id DESC LIMIT $2`,
		chatID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var t models.Turn
		var role string
		if err := rows.Scan(&role, &t.Content, &t.Timestamp); err != nil {
			return nil, err
		}
		t.Role = models.Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Rows arrive newest-first; restore arrival order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *Store) GetProfile(ctx context.Context, chatID int64) (models.Profile, error) {
	var data []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT data FROM profiles WHERE chat_id = $1`, chatID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, nil
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	var p models.Profile
	if err := json.Unmarshal(data, &p); err != nil {
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
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO profiles (chat_id, data, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (chat_id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		chatID, data,
	)
	if err != nil {
		return models.Profile{}, fmt.Errorf("merge profile: %w", err)
	}
	return merged, nil
}

func (s *Store) ClearProfile(ctx context.Context, chatID int64) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM profiles WHERE chat_id = $1`, chatID)
	return err
}
