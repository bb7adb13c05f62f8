package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"groundchat/models"
)

func TestAppendAndRecentTurnsRoundTrip(t *testing.T) {
	t.Parallel()
	s := New(t.TempDir(), ModePerChatDaily, 1)
	ctx := context.Background()
	now := time.Now()

	turns := []models.Turn{
		{Role: models.RoleUser, Content: "第一行\n第二行", Timestamp: now},
		{Role: models.RoleAssistant, Content: "回覆內容", Timestamp: now.Add(time.Second)},
		{Role: models.RoleUser, Content: "windows\r\nnewline", Timestamp: now.Add(2 * time.Second)},
	}
	for _, turn := range turns {
		if err := s.AppendTurn(ctx, 42, turn); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.RecentTurns(ctx, 42, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(turns) {
		t.Fatalf("read %d turns, want %d", len(got), len(turns))
	}
	want := []string{"第一行\n第二行", "回覆內容", "windows\nnewline"}
	for i, turn := range got {
		if turn.Role != turns[i].Role {
			t.Errorf("turn %d role = %s, want %s", i, turn.Role, turns[i].Role)
		}
		if turn.Content != want[i] {
			t.Errorf("turn %d content = %q, want %q", i, turn.Content, want[i])
		}
	}
}

func TestRecentTurnsLimit(t *testing.T) {
	t.Parallel()
	s := New(t.TempDir(), ModePerChatDaily, 1)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 6; i++ {
		if err := s.AppendTurn(ctx, 1, models.Turn{
			Role:      models.RoleUser,
			Content:   string(rune('a' + i)),
			Timestamp: now.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.RecentTurns(ctx, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Content != "e" || got[1].Content != "f" {
		t.Errorf("limited turns = %+v, want the last two", got)
	}
}

func TestTurnsAreIsolatedPerChat(t *testing.T) {
	t.Parallel()
	s := New(t.TempDir(), ModePerChatDaily, 1)
	ctx := context.Background()

	if err := s.AppendTurn(ctx, 1, models.Turn{Role: models.RoleUser, Content: "chat one", Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendTurn(ctx, 2, models.Turn{Role: models.RoleUser, Content: "chat two", Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}

	got, err := s.RecentTurns(ctx, 2, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Content != "chat two" {
		t.Errorf("chat 2 turns = %+v", got)
	}
}

func TestProfileMergeAndClear(t *testing.T) {
	t.Parallel()
	s := New(t.TempDir(), ModePerChatDaily, 1)
	ctx := context.Background()

	if _, err := s.MergeProfile(ctx, 1, models.Profile{PreferredLanguage: "zh-Hant"}); err != nil {
		t.Fatal(err)
	}
	merged, err := s.MergeProfile(ctx, 1, models.Profile{DefaultWeatherLocation: "台北"})
	if err != nil {
		t.Fatal(err)
	}
	if merged.PreferredLanguage != "zh-Hant" || merged.DefaultWeatherLocation != "台北" {
		t.Errorf("merged = %+v, want both fields kept", merged)
	}

	if err := s.ClearProfile(ctx, 1); err != nil {
		t.Fatal(err)
	}
	p, err := s.GetProfile(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if p != (models.Profile{}) {
		t.Errorf("profile after clear = %+v, want empty", p)
	}
}

func TestSweepRemovesExpiredDayFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := New(dir, ModePerChatDaily, 2)
	ctx := context.Background()

	chatDir := filepath.Join(dir, "chat_1")
	if err := os.MkdirAll(chatDir, 0o755); err != nil {
		t.Fatal(err)
	}
	old := time.Now().AddDate(0, 0, -5).Format("2006-01-02")
	fresh := time.Now().Format("2006-01-02")
	for _, day := range []string{old, fresh} {
		if err := os.WriteFile(filepath.Join(chatDir, day+".md"), []byte("- [10:00:00] chat:1 (user) hi\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// Profiles are never swept.
	if _, err := s.MergeProfile(ctx, 1, models.Profile{PreferredLanguage: "zh-Hant"}); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(filepath.Join(chatDir, old+".md")); !os.IsNotExist(err) {
		t.Error("expired day file still present")
	}
	if _, err := os.Stat(filepath.Join(chatDir, fresh+".md")); err != nil {
		t.Error("fresh day file should survive the sweep")
	}
	if _, err := os.Stat(s.profilePath(1)); err != nil {
		t.Error("profile should survive the sweep")
	}
}
