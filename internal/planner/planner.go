package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"groundchat/models"
	"groundchat/provider"
	provmodels "groundchat/provider/models"
)

// Planner decides whether retrieval is needed and what to query. The model
// proposes; deterministic overrides dispose.
type Planner struct {
	llmProvider provider.Provider
	model       string
	// Follow-up item count bounds.
	defaultCount int
	maxCount     int
	logger       *log.Logger
}

// ClarificationPrompt is the canned reply for a weather question with no
// resolvable location.
const ClarificationPrompt = "你想查哪個城市/地區的天氣？例如：台北 / 新北 / 台中 / 高雄。"

func New(llmProvider provider.Provider, model string, defaultCount, maxCount int) *Planner {
	if defaultCount <= 0 {
		defaultCount = 5
	}
	if maxCount <= 0 {
		maxCount = 8
	}
	return &Planner{
		llmProvider:  llmProvider,
		model:        model,
		defaultCount: defaultCount,
		maxCount:     maxCount,
		logger:       log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
	}
}

var planSchema = &provmodels.Schema{
	Name: "tool_plan",
	Schema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tool": map[string]interface{}{
				"type": "string",
				"enum": []string{"web_search", "none"},
			},
			"query": map[string]interface{}{"type": "string"},
		},
		"required":             []string{"tool", "query"},
		"additionalProperties": false,
	},
}

// Plan produces the tool decision for one inbound message. The model call
// may degrade to {none, ""}; deterministic overrides are applied afterwards
// in fixed precedence: follow-up continuation, forced search, weather
// clarification.
func (p *Planner) Plan(ctx context.Context, userText string, profile models.Profile, followUp *models.FollowUpContext) models.PlanDecision {
	decision := p.modelPlan(ctx, userText)

	// 1. Follow-up continuation reuses the cached news context.
	if count, ok := FollowUpRequest(userText); ok &&
		followUp != nil && followUp.Tool == models.ToolWebSearch && followUp.IsNews {
		if count <= 0 {
			count = p.defaultCount
		}
		if count > p.maxCount {
			count = p.maxCount
		}
		return models.PlanDecision{Tool: models.ToolWebSearch, Reuse: true, ItemCount: count}
	}

	// 2. Real-time keywords force a search regardless of the model's plan.
	if ShouldForceWebSearch(userText) {
		decision.Tool = models.ToolWebSearch
	}

	// 3. Weather questions need a location before anything is retrieved.
	if decision.Tool == models.ToolWebSearch && IsWeatherQuestion(userText) {
		loc := ExtractKnownLocation(userText)
		if loc == "" {
			loc = ExtractLocationNounPattern(userText)
		}
		if loc == "" {
			loc = profile.DefaultWeatherLocation
		}
		if loc == "" {
			return models.PlanDecision{Tool: models.ToolNone, Clarify: true}
		}
		decision.Location = loc
		if decision.Query == "" {
			decision.Query = fmt.Sprintf("%s 今天 天氣預報 降雨機率 最高溫 最低溫 體感 風速 中央氣象署", NormalizeLocation(loc))
		}
	}

	return decision
}

// modelPlan asks the model for a {tool, query} decision via the structured
// output contract, degrading to {none, ""} on any failure.
func (p *Planner) modelPlan(ctx context.Context, userText string) models.PlanDecision {
	out, err := p.llmProvider.Generate(ctx, []provmodels.Message{
		{
			Role: "system",
			Content: "Decide whether answering the user needs an up-to-date web search. " +
				"Reply with JSON only: tool is \"web_search\" or \"none\"; " +
				"query is a concise web search query (empty when tool is none).",
		},
		{Role: "user", Content: userText},
	}, provmodels.Options{
		Model:          p.model,
		Temperature:    0.0,
		ResponseSchema: planSchema,
	})
	if err != nil {
		p.logger.Printf("plan degraded: %v", err)
		return models.PlanDecision{Tool: models.ToolNone}
	}

	var parsed struct {
		Tool  string `json:"tool"`
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		p.logger.Printf("plan degraded: malformed response: %v", err)
		return models.PlanDecision{Tool: models.ToolNone}
	}

	tool := models.Tool(strings.TrimSpace(parsed.Tool))
	if tool != models.ToolWebSearch {
		tool = models.ToolNone
	}
	return models.PlanDecision{Tool: tool, Query: strings.TrimSpace(parsed.Query)}
}
