package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"groundchat/models"
)

// Store persists turns as per-chat daily markdown files and profiles as one
// JSON document per chat. The on-disk layout is append-only and greppable:
//
//	<dir>/chat_<id>/<YYYY-MM-DD>.md
//	<dir>/chat_<id>/profile.json
type Store struct {
	dir  string
	mode string
	days int
}

const (
	ModeDaily        = "daily"
	ModePerChatDaily = "per_chat_daily"
	ModePerChat      = "per_chat"
)

var lineRe = regexp.MustCompile(`^- \[([0-9:]{8})\] chat:(-?\d+) \((user|assistant)\) (.*)$`)

func New(dir, mode string, days int) *Store {
	if dir == "" {
		dir = "memory"
	}
	if mode == "" {
		mode = ModePerChatDaily
	}
	if days < 1 {
		days = 1
	}
	return &Store{dir: dir, mode: mode, days: days}
}

func (s *Store) pathFor(day time.Time, chatID int64) string {
	d := day.Format("2006-01-02")
	switch s.mode {
	case ModeDaily, ModePerChatDaily:
		return filepath.Join(s.dir, fmt.Sprintf("chat_%d", chatID), d+".md")
	case ModePerChat:
		return filepath.Join(s.dir, fmt.Sprintf("chat_%d.md", chatID))
	}
	return filepath.Join(s.dir, d+".md")
}

func (s *Store) pathsToRead(chatID int64) []string {
	today := time.Now()
	if s.mode == ModePerChat {
		return []string{s.pathFor(today, chatID)}
	}
	out := make([]string, 0, s.days)
	for i := s.days - 1; i >= 0; i-- {
		out = append(out, s.pathFor(today.AddDate(0, 0, -i), chatID))
	}
	return out
}

func (s *Store) profilePath(chatID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("chat_%d", chatID), "profile.json")
}

// AppendTurn writes one turn line. Newlines in content are escaped so a turn
// occupies exactly one line and round-trips through RecentTurns.
func (s *Store) AppendTurn(_ context.Context, chatID int64, turn models.Turn) error {
	path := s.pathFor(turn.Timestamp, chatID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	safe := strings.ReplaceAll(turn.Content, "\r\n", "\n")
	safe = strings.ReplaceAll(safe, "\r", "\n")
	safe = strings.ReplaceAll(safe, "\n", `\n`)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line := fmt.Sprintf("- [%s] chat:%d (%s) %s\n", turn.Timestamp.Format("15:04:05"), chatID, turn.Role, safe)
	if _, err := f.WriteString(line); err != nil {
		return err
	}
	return nil
}

// RecentTurns reads the retained day files in chronological order and
// returns the last limit turns of the chat.
func (s *Store) RecentTurns(_ context.Context, chatID int64, limit int) ([]models.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}

	var turns []models.Turn
	for _, path := range s.pathsToRead(chatID) {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		day := dayFromPath(path)
		for _, line := range strings.Split(string(data), "\n") {
			m := lineRe.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			id, err := strconv.ParseInt(m[2], 10, 64)
			if err != nil || id != chatID {
				continue
			}
			turns = append(turns, models.Turn{
				Role:      models.Role(m[3]),
				Content:   strings.ReplaceAll(m[4], `\n`, "\n"),
				Timestamp: combine(day, m[1]),
			})
		}
	}

	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

func (s *Store) GetProfile(_ context.Context, chatID int64) (models.Profile, error) {
	data, err := os.ReadFile(s.profilePath(chatID))
	if err != nil {
		if os.IsNotExist(err) {
			return models.Profile{}, nil
		}
		return models.Profile{}, err
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

	path := s.profilePath(chatID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return models.Profile{}, err
	}
	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return models.Profile{}, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return models.Profile{}, err
	}
	return merged, nil
}

func (s *Store) ClearProfile(_ context.Context, chatID int64) error {
	err := os.Remove(s.profilePath(chatID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Sweep deletes daily turn files older than the retention window. The
// per-chat mode keeps a single file and sweeps nothing.
func (s *Store) Sweep(_ context.Context) (int, error) {
	if s.mode == ModePerChat {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -(s.days - 1)).Format("2006-01-02")

	removed := 0
	err := filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		day := strings.TrimSuffix(d.Name(), ".md")
		if len(day) != len("2006-01-02") || day >= cutoff {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}

func dayFromPath(path string) time.Time {
	name := strings.TrimSuffix(filepath.Base(path), ".md")
	if day, err := time.ParseInLocation("2006-01-02", name, time.Local); err == nil {
		return day
	}
	return time.Time{}
}

func combine(day time.Time, clock string) time.Time {
	t, err := time.Parse("15:04:05", clock)
	if err != nil {
		return day
	}
	if day.IsZero() {
		day = time.Now().Truncate(24 * time.Hour)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.Local)
}
