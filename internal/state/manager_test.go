package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"groundchat/models"
	provmodels "groundchat/provider/models"
)

type memStore struct {
	mu        sync.Mutex
	turns     map[int64][]models.Turn
	profiles  map[int64]models.Profile
	appendErr error
}

func newMemStore() *memStore {
	return &memStore{
		turns:    make(map[int64][]models.Turn),
		profiles: make(map[int64]models.Profile),
	}
}

func (s *memStore) AppendTurn(ctx context.Context, chatID int64, turn models.Turn) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[chatID] = append(s.turns[chatID], turn)
	return nil
}

func (s *memStore) RecentTurns(ctx context.Context, chatID int64, limit int) ([]models.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.turns[chatID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]models.Turn, len(all))
	copy(out, all)
	return out, nil
}

func (s *memStore) GetProfile(ctx context.Context, chatID int64) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[chatID], nil
}

func (s *memStore) MergeProfile(ctx context.Context, chatID int64, updates models.Profile) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := s.profiles[chatID].Merge(updates)
	s.profiles[chatID] = merged
	return merged, nil
}

func (s *memStore) ClearProfile(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, chatID)
	return nil
}

type providerStub struct {
	out   string
	err   error
	calls int
}

func (p *providerStub) Generate(ctx context.Context, messages []provmodels.Message, opts provmodels.Options) (string, error) {
	p.calls++
	return p.out, p.err
}

func TestBeginTurnInfersProfile(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	m := New(store, &providerStub{}, "chat-model", 6)

	turn, err := m.BeginTurn(context.Background(), 1, "請用繁體中文回答，台北天氣如何")
	if err != nil {
		t.Fatal(err)
	}
	if turn.Profile.PreferredLanguage != "zh-Hant" {
		t.Errorf("preferred language = %q, want zh-Hant", turn.Profile.PreferredLanguage)
	}
	if turn.Profile.DefaultWeatherLocation != "台北" {
		t.Errorf("default weather location = %q, want 台北", turn.Profile.DefaultWeatherLocation)
	}
	if len(turn.Window) != 1 || turn.Window[0].Role != models.RoleUser {
		t.Errorf("window = %+v, want the appended user turn", turn.Window)
	}
}

func TestBeginTurnSurfacesPersistenceFailure(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	store.appendErr = errors.New("disk full")
	m := New(store, &providerStub{}, "chat-model", 6)

	if _, err := m.BeginTurn(context.Background(), 1, "hi"); err == nil {
		t.Fatal("expected persistence failure to surface")
	}
}

func TestWindowNeverExceedsCapacity(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	recentTurns := 3
	m := New(store, &providerStub{out: "摘要"}, "chat-model", recentTurns)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		turn, err := m.BeginTurn(ctx, 7, fmt.Sprintf("問題 %d", i))
		if err != nil {
			t.Fatal(err)
		}
		if len(turn.Window) > recentTurns*2 {
			t.Fatalf("window after BeginTurn %d has %d entries, cap %d", i, len(turn.Window), recentTurns*2)
		}
		if err := m.CompleteTurn(ctx, 7, fmt.Sprintf("回答 %d", i), turn.Profile); err != nil {
			t.Fatal(err)
		}
		window, err := m.reloadWindow(ctx, 7)
		if err != nil {
			t.Fatal(err)
		}
		if len(window) > recentTurns*2 {
			t.Fatalf("window after CompleteTurn %d has %d entries, cap %d", i, len(window), recentTurns*2)
		}
	}
}

func TestCompactionFoldsIntoSummary(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	stub := &providerStub{out: "用戶在聊台北的天氣"}
	m := New(store, stub, "chat-model", 3)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		turn, err := m.BeginTurn(ctx, 9, fmt.Sprintf("問題 %d", i))
		if err != nil {
			t.Fatal(err)
		}
		if err := m.CompleteTurn(ctx, 9, fmt.Sprintf("回答 %d", i), turn.Profile); err != nil {
			t.Fatal(err)
		}
	}

	if stub.calls == 0 {
		t.Fatal("expected a compaction model call")
	}
	profile, err := store.GetProfile(ctx, 9)
	if err != nil {
		t.Fatal(err)
	}
	if profile.ConversationSummary != "用戶在聊台北的天氣" {
		t.Errorf("conversation summary = %q", profile.ConversationSummary)
	}

	// Folded turns stay in durable storage but leave the window.
	window, err := m.reloadWindow(ctx, 9)
	if err != nil {
		t.Fatal(err)
	}
	if len(window) != retainedTail {
		t.Errorf("window has %d entries after compaction, want %d", len(window), retainedTail)
	}
	all, err := store.RecentTurns(ctx, 9, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 6 {
		t.Errorf("durable store has %d turns, want all 6", len(all))
	}
}

func TestCompactionFailureKeepsWindow(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	stub := &providerStub{err: errors.New("model down")}
	m := New(store, stub, "chat-model", 3)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		turn, err := m.BeginTurn(ctx, 11, fmt.Sprintf("問題 %d", i))
		if err != nil {
			t.Fatal(err)
		}
		if err := m.CompleteTurn(ctx, 11, fmt.Sprintf("回答 %d", i), turn.Profile); err != nil {
			t.Fatal(err)
		}
	}

	profile, err := store.GetProfile(ctx, 11)
	if err != nil {
		t.Fatal(err)
	}
	if profile.ConversationSummary != "" {
		t.Errorf("summary = %q, want empty after failed compaction", profile.ConversationSummary)
	}
	window, err := m.reloadWindow(ctx, 11)
	if err != nil {
		t.Fatal(err)
	}
	if len(window) != 6 {
		t.Errorf("window has %d entries, want 6 when compaction failed", len(window))
	}
}

func TestFollowUpSlotOverwrite(t *testing.T) {
	t.Parallel()
	m := New(newMemStore(), &providerStub{}, "chat-model", 6)

	if m.FollowUp(5) != nil {
		t.Fatal("expected empty slot")
	}
	first := &models.FollowUpContext{Query: "q1", IsNews: true}
	m.SetFollowUp(5, first)
	second := &models.FollowUpContext{Query: "q2", IsNews: false}
	m.SetFollowUp(5, second)

	if got := m.FollowUp(5); got != second {
		t.Errorf("slot = %+v, want the latest context", got)
	}
	if m.FollowUp(6) != nil {
		t.Error("slots must be per chat")
	}

	m.ClearFollowUp(5)
	if m.FollowUp(5) != nil {
		t.Error("expected cleared slot")
	}
}
