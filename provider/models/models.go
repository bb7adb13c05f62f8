package models

// Message is one role-tagged message in a conversation sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Schema is an optional structured-output contract: the model is instructed
// to return JSON matching it (used for the planner's {tool, query} decision).
type Schema struct {
	Name   string
	Schema map[string]interface{}
}

// Options tunes a single generation call. Model overrides the client's
// default completion model when non-empty.
type Options struct {
	Model          string
	Temperature    float64
	MaxTokens      int
	ResponseSchema *Schema
}
