package state

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"groundchat/internal/planner"
	"groundchat/internal/telemetry"
	"groundchat/models"
	"groundchat/provider"
	provmodels "groundchat/provider/models"
	"groundchat/repository"
)

// retainedTail is how many recent turns survive a compaction; everything
// older is folded into the profile's conversation summary.
const retainedTail = 4

// Manager owns all per-chat mutable state: the recency window, the follow-up
// cache and the compaction cutoff. The durable store is the source of truth;
// the window is rebuilt from it every turn. Access to one chat's state is
// serialized by the per-chat lock.
type Manager struct {
	store       repository.Store
	llmProvider provider.Provider
	// Model for compaction summaries; empty means the provider default.
	summaryModel string
	recentTurns  int
	logger       *log.Logger

	mu sync.Mutex
	// Per-chat locks serialize message processing; the transport may deliver
	// a rapid double-send for one chat.
	locks map[int64]*sync.Mutex
	// Compaction cutoffs keep folded turns from resurfacing on reload.
	cutoffs   map[int64]time.Time
	followUps map[int64]*models.FollowUpContext
}

func New(store repository.Store, llmProvider provider.Provider, summaryModel string, recentTurns int) *Manager {
	if recentTurns <= 0 {
		recentTurns = 6
	}
	return &Manager{
		store:        store,
		llmProvider:  llmProvider,
		summaryModel: summaryModel,
		recentTurns:  recentTurns,
		logger:       log.New(log.Writer(), "[STATE] ", log.LstdFlags),
		locks:        make(map[int64]*sync.Mutex),
		cutoffs:      make(map[int64]time.Time),
		followUps:    make(map[int64]*models.FollowUpContext),
	}
}

// Lock acquires the chat's exclusive lock and returns its unlock function.
func (m *Manager) Lock(chatID int64) func() {
	m.mu.Lock()
	l, ok := m.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[chatID] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// TurnState is the reloaded per-chat context for one inbound message.
type TurnState struct {
	Profile models.Profile
	// Window is the canonical recent history including the just-appended
	// user turn, bounded by recent_turns*2.
	Window []models.Turn
}

// BeginTurn persists the inbound user turn, reloads the canonical window and
// merges deterministically inferred profile updates. A storage write failure
// is fatal for the turn.
func (m *Manager) BeginTurn(ctx context.Context, chatID int64, userText string) (TurnState, error) {
	now := time.Now()
	if err := m.store.AppendTurn(ctx, chatID, models.Turn{
		Role:      models.RoleUser,
		Content:   userText,
		Timestamp: now,
	}); err != nil {
		return TurnState{}, fmt.Errorf("append user turn: %w", err)
	}

	updates := inferProfileUpdates(userText)
	profile, err := m.store.MergeProfile(ctx, chatID, updates)
	if err != nil {
		return TurnState{}, fmt.Errorf("merge profile: %w", err)
	}

	window, err := m.reloadWindow(ctx, chatID)
	if err != nil {
		return TurnState{}, err
	}
	return TurnState{Profile: profile, Window: window}, nil
}

// CompleteTurn persists the assistant turn and compacts the window when it
// reached capacity.
func (m *Manager) CompleteTurn(ctx context.Context, chatID int64, answer string, profile models.Profile) error {
	if err := m.store.AppendTurn(ctx, chatID, models.Turn{
		Role:      models.RoleAssistant,
		Content:   answer,
		Timestamp: time.Now(),
	}); err != nil {
		return fmt.Errorf("append assistant turn: %w", err)
	}

	window, err := m.reloadWindow(ctx, chatID)
	if err != nil {
		return err
	}
	if len(window) >= m.recentTurns*2 {
		m.compact(ctx, chatID, window, profile)
	}
	return nil
}

// reloadWindow reads the recent window back from durable storage, dropping
// turns already folded into the conversation summary.
func (m *Manager) reloadWindow(ctx context.Context, chatID int64) ([]models.Turn, error) {
	turns, err := m.store.RecentTurns(ctx, chatID, m.recentTurns*2)
	if err != nil {
		return nil, fmt.Errorf("reload window: %w", err)
	}

	m.mu.Lock()
	cutoff := m.cutoffs[chatID]
	m.mu.Unlock()
	if cutoff.IsZero() {
		return turns, nil
	}
	var out []models.Turn
	for _, t := range turns {
		if t.Timestamp.After(cutoff) {
			out = append(out, t)
		}
	}
	return out, nil
}

// compact folds all but the retained tail into the profile's conversation
// summary and records the cutoff. Compaction is best effort: a failed model
// call or profile write leaves the window as is.
func (m *Manager) compact(ctx context.Context, chatID int64, window []models.Turn, profile models.Profile) {
	if len(window) <= retainedTail {
		return
	}
	folded := window[:len(window)-retainedTail]

	summary, err := m.summarize(ctx, folded, profile)
	if err != nil {
		telemetry.ProviderCalls.WithLabelValues("compact", "error").Inc()
		m.logger.Printf("chat %d: compaction summary failed, keeping window: %v", chatID, err)
		return
	}
	telemetry.ProviderCalls.WithLabelValues("compact", "ok").Inc()

	if _, err := m.store.MergeProfile(ctx, chatID, models.Profile{ConversationSummary: summary}); err != nil {
		m.logger.Printf("chat %d: compaction summary not persisted: %v", chatID, err)
		return
	}

	m.mu.Lock()
	m.cutoffs[chatID] = folded[len(folded)-1].Timestamp
	m.mu.Unlock()
	telemetry.Compactions.Inc()
	m.logger.Printf("chat %d: folded %d turns into the conversation summary", chatID, len(folded))
}

func (m *Manager) summarize(ctx context.Context, folded []models.Turn, profile models.Profile) (string, error) {
	lang := "the conversation's language"
	switch profile.PreferredLanguage {
	case "zh-Hant":
		lang = "Traditional Chinese"
	case "zh-Hans":
		lang = "Simplified Chinese"
	case "en":
		lang = "English"
	}

	var b strings.Builder
	if s := strings.TrimSpace(profile.ConversationSummary); s != "" {
		b.WriteString("Existing summary:\n")
		b.WriteString(s)
		b.WriteString("\n\n")
	}
	b.WriteString("New turns to fold in:\n")
	for _, t := range folded {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
	}

	out, err := m.llmProvider.Generate(ctx, []provmodels.Message{
		{Role: "system", Content: fmt.Sprintf(
			"Condense the conversation below into a running summary in %s. "+
				"At most 8 lines. No URLs. Do not reproduce news lists verbatim; keep only topics and user preferences.",
			lang)},
		{Role: "user", Content: b.String()},
	}, provmodels.Options{
		Model:       m.summaryModel,
		Temperature: 1.1,
		MaxTokens:   300,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("empty summary")
	}
	return strings.TrimSpace(out), nil
}

// FollowUp returns the chat's cached follow-up context, or nil.
func (m *Manager) FollowUp(chatID int64) *models.FollowUpContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.followUps[chatID]
}

// SetFollowUp overwrites the chat's single follow-up slot. Every web_search
// turn calls this, news or not.
func (m *Manager) SetFollowUp(chatID int64, fu *models.FollowUpContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.followUps[chatID] = fu
}

// ClearFollowUp drops the cached slot, used by the debug surface.
func (m *Manager) ClearFollowUp(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.followUps, chatID)
}

// Chats lists chat ids with any in-memory state, for the debug surface.
func (m *Manager) Chats() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[int64]struct{})
	for id := range m.locks {
		seen[id] = struct{}{}
	}
	for id := range m.followUps {
		seen[id] = struct{}{}
	}
	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}

// Snapshot exposes a chat's stored state for the debug surface.
func (m *Manager) Snapshot(ctx context.Context, chatID int64) (models.Profile, []models.Turn, *models.FollowUpContext, error) {
	profile, err := m.store.GetProfile(ctx, chatID)
	if err != nil {
		return models.Profile{}, nil, nil, err
	}
	window, err := m.reloadWindow(ctx, chatID)
	if err != nil {
		return models.Profile{}, nil, nil, err
	}
	return profile, window, m.FollowUp(chatID), nil
}

// inferProfileUpdates extracts deterministic preference signals from the
// message text.
func inferProfileUpdates(userText string) models.Profile {
	updates := models.Profile{
		PreferredLanguage: planner.InferPreferredLanguage(userText),
		PreferLinks:       planner.InferLinkPreference(userText),
	}
	if planner.IsWeatherQuestion(userText) {
		if loc := planner.ExtractKnownLocation(userText); loc != "" {
			updates.DefaultWeatherLocation = loc
		}
	}
	return updates
}
