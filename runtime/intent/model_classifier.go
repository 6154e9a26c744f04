package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/orderflow-ai/orderflow/runtime/conversation"
	"github.com/orderflow-ai/orderflow/runtime/model"
)

type (
	// ModelClassifier classifies messages by prompting an AI completion
	// provider with the action taxonomy and parsing its JSON reply.
	ModelClassifier struct {
		client      model.Client
		modelID     string
		maxTokens   int
		temperature float64
		maxHistory  int
	}

	// ModelClassifierOptions configures the classifier.
	ModelClassifierOptions struct {
		// Model is the provider-specific model identifier. Empty uses the
		// adapter default.
		Model string
		// MaxTokens caps the classification reply. Zero uses 256.
		MaxTokens int
		// Temperature for the classification call. Classification wants
		// determinism, so the default is zero.
		Temperature float64
		// MaxHistory bounds how many prior turns are included as context.
		// Zero uses 6.
		MaxHistory int
	}

	wireDecision struct {
		Action     string         `json:"action"`
		Parameters map[string]any `json:"parameters"`
		Confidence float64        `json:"confidence"`
	}
)

// NewModelClassifier builds a classifier backed by the given completion
// client.
func NewModelClassifier(client model.Client, opts ModelClassifierOptions) (*ModelClassifier, error) {
	if client == nil {
		return nil, errors.New("model client is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 256
	}
	maxHistory := opts.MaxHistory
	if maxHistory <= 0 {
		maxHistory = 6
	}
	return &ModelClassifier{
		client:      client,
		modelID:     opts.Model,
		maxTokens:   maxTokens,
		temperature: opts.Temperature,
		maxHistory:  maxHistory,
	}, nil
}

const classifyInstructions = `You route user messages about purchase orders to actions.
Reply with a single JSON object and nothing else:
{"action": "<action>", "parameters": {...}, "confidence": <0..1>}

Actions:
- get_user_orders: the user asks about their own orders. Parameters: {"userId"}.
- get_order_details: the user asks about one order's status or contents. Parameters: {"orderId"}.
- analyze_order_failures: the user asks why an order failed, was rejected or is stuck. Parameters: {"orderId"}.
- submit_order: the user wants to submit a draft order. Parameters: {"orderId"}.
- approve_order: the user wants to approve an order. Parameters: {"orderId"}.
- reject_order: the user wants to reject an order. Parameters: {"orderId", "reason"}.
- cancel_order: the user wants to cancel an order. Parameters: {"orderId", "reason"}.
- general_help: anything else.

Extraction rules: order identifiers look like ORD-2024-0042 or TEAM-FAIL-001 and may
follow "order" or "ORDER-NUMBER -". Copy identifiers verbatim. Omit parameters you
cannot extract.`

// Classify prompts the model and parses its JSON decision. Any transport
// fault, malformed JSON or unknown action is returned as an error so the
// router can fall back to the deterministic classifier.
func (c *ModelClassifier) Classify(ctx context.Context, userID, message string, history []conversation.Message) (Decision, error) {
	messages := []model.Message{{Role: model.RoleSystem, Content: classifyInstructions}}
	start := 0
	if len(history) > c.maxHistory {
		start = len(history) - c.maxHistory
	}
	for _, m := range history[start:] {
		role := model.RoleUser
		if m.Role == "assistant" {
			role = model.RoleAssistant
		}
		messages = append(messages, model.Message{Role: role, Content: m.Content})
	}
	messages = append(messages, model.Message{
		Role:    model.RoleUser,
		Content: fmt.Sprintf("User %s says: %s", userID, message),
	})

	resp, err := c.client.Complete(ctx, model.Request{
		Model:       c.modelID,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("classification completion: %w", err)
	}
	return parseDecision(resp.Text)
}

// parseDecision extracts and validates the JSON decision from the model
// reply. Replies wrapped in code fences or surrounded by prose are tolerated;
// everything else is an error.
func parseDecision(text string) (Decision, error) {
	raw, ok := extractJSONObject(text)
	if !ok {
		return Decision{}, fmt.Errorf("no JSON object in model reply")
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var wire wireDecision
	if err := dec.Decode(&wire); err != nil {
		return Decision{}, fmt.Errorf("decode model decision: %w", err)
	}
	if !ValidAction(wire.Action) {
		return Decision{}, fmt.Errorf("model returned unknown action %q", wire.Action)
	}
	confidence := wire.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 0.5
	}
	return Decision{
		Action:     wire.Action,
		Params:     normalizeParams(wire.Parameters),
		Confidence: confidence,
	}, nil
}

// extractJSONObject returns the first balanced {...} span in text.
func extractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// normalizeParams converts decoder-typed leaves (json.Number, nested maps and
// arrays) into plain scalars so downstream validation sees ordinary Go values.
func normalizeParams(params map[string]any) map[string]any {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		return normalizeParams(val)
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = normalizeValue(val[i])
		}
		return out
	default:
		return v
	}
}
