package intent

import (
	"context"
	"regexp"
	"strings"

	"github.com/orderflow-ai/orderflow/runtime/conversation"
)

// PatternClassifier is the deterministic fallback classifier. It extracts
// order identifiers with an ordered list of patterns and maps keywords onto
// actions without any network access. It never fails: the worst case is a
// low-confidence general_help decision.
type PatternClassifier struct{}

// NewPatternClassifier builds the pattern-matching classifier.
func NewPatternClassifier() *PatternClassifier {
	return &PatternClassifier{}
}

// orderIDPatterns are tried in priority order; the first capture wins.
var orderIDPatterns = []*regexp.Regexp{
	// Explicit "ORDER-NUMBER - TEAM-FAIL-001" form used by the chat UI.
	regexp.MustCompile(`(?i)\bORDER-NUMBER\s*[-:]\s*([A-Za-z][A-Za-z0-9]*(?:-[A-Za-z0-9]+)+)`),
	// "order TEAM-FAIL-001" / "order #ORD-123".
	regexp.MustCompile(`(?i)\border\s+#?([A-Za-z][A-Za-z0-9]*(?:-[A-Za-z0-9]+)+)`),
	// Bare identifier token such as "ORD-2024-0042".
	regexp.MustCompile(`\b([A-Z][A-Z0-9]*(?:-[A-Z0-9]+)+)\b`),
}

// Confidence levels for the deterministic path. Lower than the model path by
// design so callers can tell the two apart.
const (
	patternConfidence  = 0.6
	fallbackConfidence = 0.3
)

// Classify maps the message onto an action with keyword rules and order-id
// extraction.
func (c *PatternClassifier) Classify(_ context.Context, userID, message string, _ []conversation.Message) (Decision, error) {
	orderID, hasID := extractOrderID(message)
	// Keyword checks run on the message without the identifier so an id like
	// TEAM-FAIL-001 does not trip the failure keywords.
	stripped := message
	if hasID {
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(orderID))
		if err == nil {
			stripped = re.ReplaceAllString(message, "")
		}
	}
	lower := strings.ToLower(stripped)

	switch {
	case hasID && containsAny(lower, "fail", "reject", "stuck", "problem", "why"):
		return decisionWithOrder(ActionAnalyzeOrderFailures, orderID), nil
	case hasID && containsAny(lower, "detail", "status", "show", "info"):
		return decisionWithOrder(ActionGetOrderDetails, orderID), nil
	case hasID && strings.Contains(lower, "cancel"):
		return decisionWithOrder(ActionCancelOrder, orderID), nil
	case hasID && strings.Contains(lower, "approve"):
		return decisionWithOrder(ActionApproveOrder, orderID), nil
	case hasID && strings.Contains(lower, "submit"):
		return decisionWithOrder(ActionSubmitOrder, orderID), nil
	case hasID:
		// An identifier with no other signal reads as a status lookup.
		return decisionWithOrder(ActionGetOrderDetails, orderID), nil
	case containsAny(lower, "my orders", "orders"):
		return Decision{
			Action:     ActionGetUserOrders,
			Params:     map[string]any{"userId": userID},
			Confidence: patternConfidence,
		}, nil
	default:
		return Decision{Action: ActionGeneralHelp, Confidence: fallbackConfidence}, nil
	}
}

func decisionWithOrder(action, orderID string) Decision {
	return Decision{
		Action:     action,
		Params:     map[string]any{"orderId": orderID},
		Confidence: patternConfidence,
	}
}

func extractOrderID(message string) (string, bool) {
	for _, re := range orderIDPatterns {
		if m := re.FindStringSubmatch(message); len(m) > 1 {
			return strings.ToUpper(m[1]), true
		}
	}
	return "", false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
