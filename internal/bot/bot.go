package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"groundchat/internal/planner"
	"groundchat/internal/prompt"
	"groundchat/internal/retrieval"
	"groundchat/internal/state"
	"groundchat/internal/telemetry"
	"groundchat/internal/validate"
	"groundchat/models"
	"groundchat/provider"
	provmodels "groundchat/provider/models"
)

const apology = "抱歉，我現在無法產生回覆，請稍後再試。"

// Config tunes one bot instance.
type Config struct {
	ChatModel string
	// Temperature for the main generation call.
	Temperature float64
	// NewsMaxTokens caps news answers so long lists stay deliverable.
	NewsMaxTokens int
}

// Bot runs the full answer pipeline for inbound chat messages. One call per
// message; calls for the same chat are serialized by the state manager's
// per-chat lock.
type Bot struct {
	cfg          Config
	planner      *planner.Planner
	orchestrator *retrieval.Orchestrator
	validator    *validate.Engine
	llmProvider  provider.Provider
	state        *state.Manager
	logger       *log.Logger
}

func New(cfg Config, pl *planner.Planner, orch *retrieval.Orchestrator, val *validate.Engine, llmProvider provider.Provider, st *state.Manager) *Bot {
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	if cfg.NewsMaxTokens <= 0 {
		cfg.NewsMaxTokens = 900
	}
	return &Bot{
		cfg:          cfg,
		planner:      pl,
		orchestrator: orch,
		validator:    val,
		llmProvider:  llmProvider,
		state:        st,
		logger:       log.New(log.Writer(), "[BOT] ", log.LstdFlags),
	}
}

// HandleMessage processes one inbound message and returns the reply text.
// Retrieval and validation failures degrade; a durable-store write failure
// is fatal for the turn and surfaces as an error.
func (b *Bot) HandleMessage(ctx context.Context, chatID int64, userText string) (string, error) {
	unlock := b.state.Lock(chatID)
	defer unlock()

	start := time.Now()
	requestID := uuid.NewString()
	defer func() { telemetry.TurnDuration.Observe(time.Since(start).Seconds()) }()

	turn, err := b.state.BeginTurn(ctx, chatID, userText)
	if err != nil {
		telemetry.TurnsTotal.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("begin turn for chat %d: %w", chatID, err)
	}

	followUp := b.state.FollowUp(chatID)
	decision := b.planner.Plan(ctx, userText, turn.Profile, followUp)
	b.logger.Printf("req=%s chat=%d tool=%s reuse=%t clarify=%t", requestID, chatID, decision.Tool, decision.Reuse, decision.Clarify)

	if decision.Clarify {
		if err := b.state.CompleteTurn(ctx, chatID, planner.ClarificationPrompt, turn.Profile); err != nil {
			telemetry.TurnsTotal.WithLabelValues("failed").Inc()
			return "", fmt.Errorf("complete turn for chat %d: %w", chatID, err)
		}
		telemetry.TurnsTotal.WithLabelValues("clarified").Inc()
		return planner.ClarificationPrompt, nil
	}

	isNews := planner.IsNewsQuestion(userText)
	isWeather := planner.IsWeatherQuestion(userText)

	var evidence retrieval.Evidence
	searchRan := false
	if decision.Tool == models.ToolWebSearch {
		searchRan = true
		if decision.Reuse && followUp != nil {
			// Follow-up continuation: no new search, no new fetches.
			evidence = b.orchestrator.FromCache(followUp)
			isNews = followUp.IsNews
			b.logger.Printf("req=%s chat=%d reusing cached context (%d results)", requestID, chatID, len(evidence.Results))
		} else {
			evidence = b.orchestrator.Retrieve(ctx, userText, decision.Query, isNews)
		}
	}

	messages := prompt.Build(prompt.Input{
		UserText:  userText,
		Profile:   turn.Profile,
		History:   turn.Window,
		Evidence:  evidence,
		SearchRan: searchRan,
		IsNews:    isNews,
		IsWeather: isWeather,
		Recency:   planner.IsRecencySensitive(userText),
		ItemCount: decision.ItemCount,
	})

	outcome := "answered"
	answer, err := b.generate(ctx, messages, isNews)
	if err != nil {
		b.logger.Printf("req=%s chat=%d generation failed: %v", requestID, chatID, err)
		if isNews && len(evidence.Results) > 0 {
			answer = prompt.FormatSearchResults(evidence.Results)
		} else {
			answer = apology
		}
		outcome = "fallback"
	}

	final := b.validator.Finalize(ctx, answer, validate.Input{
		UserText:   userText,
		Profile:    turn.Profile,
		Evidence:   evidence,
		Messages:   messages,
		IsNews:     isNews,
		IsWeather:  isWeather,
		Recency:    planner.IsRecencySensitive(userText),
		WantsLinks: planner.WantsLinks(userText),
		ItemCount:  decision.ItemCount,
	})

	if searchRan {
		b.state.SetFollowUp(chatID, &models.FollowUpContext{
			Tool:      models.ToolWebSearch,
			IsNews:    isNews,
			Query:     decision.Query,
			Results:   evidence.Results,
			Pages:     evidence.Pages,
			DateHints: evidence.DateHints,
			Timestamp: time.Now(),
		})
	}

	if err := b.state.CompleteTurn(ctx, chatID, final, turn.Profile); err != nil {
		telemetry.TurnsTotal.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("complete turn for chat %d: %w", chatID, err)
	}
	telemetry.TurnsTotal.WithLabelValues(outcome).Inc()
	return final, nil
}

func (b *Bot) generate(ctx context.Context, messages []provmodels.Message, isNews bool) (string, error) {
	opts := provmodels.Options{
		Model:       b.cfg.ChatModel,
		Temperature: b.cfg.Temperature,
	}
	if isNews {
		opts.MaxTokens = b.cfg.NewsMaxTokens
	}
	out, err := b.llmProvider.Generate(ctx, messages, opts)
	if err != nil {
		telemetry.ProviderCalls.WithLabelValues("generate", "error").Inc()
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		telemetry.ProviderCalls.WithLabelValues("generate", "error").Inc()
		return "", fmt.Errorf("empty generation")
	}
	telemetry.ProviderCalls.WithLabelValues("generate", "ok").Inc()
	return strings.TrimSpace(out), nil
}
