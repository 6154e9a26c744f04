// Package intent maps free-text user input onto concrete tool invocations.
// Classification is an interface with two implementations: a model-backed
// classifier and a deterministic pattern matcher used as its fallback, so the
// system stays testable without a live model.
package intent

import (
	"context"

	"github.com/orderflow-ai/orderflow/runtime/conversation"
)

type (
	// Decision is the outcome of routing one user message.
	Decision struct {
		// Action names the tool (or general_help) the message resolves to.
		Action string `json:"action"`
		// Params carries the parameters extracted for the action, as plain
		// scalars.
		Params map[string]any `json:"parameters,omitempty"`
		// Confidence scores the classification in [0, 1].
		Confidence float64 `json:"confidence"`
	}

	// Classifier turns a user message plus conversation history into a
	// Decision.
	Classifier interface {
		Classify(ctx context.Context, userID, message string, history []conversation.Message) (Decision, error)
	}
)

// Actions the router can resolve a message to.
const (
	ActionGetUserOrders        = "get_user_orders"
	ActionGetOrderDetails      = "get_order_details"
	ActionAnalyzeOrderFailures = "analyze_order_failures"
	ActionSubmitOrder          = "submit_order"
	ActionApproveOrder         = "approve_order"
	ActionRejectOrder          = "reject_order"
	ActionCancelOrder          = "cancel_order"
	ActionGeneralHelp          = "general_help"
)

// KnownActions lists every action the classifiers may produce, in the order
// presented to the model.
var KnownActions = []string{
	ActionGetUserOrders,
	ActionGetOrderDetails,
	ActionAnalyzeOrderFailures,
	ActionSubmitOrder,
	ActionApproveOrder,
	ActionRejectOrder,
	ActionCancelOrder,
	ActionGeneralHelp,
}

// ValidAction reports whether name is a known action.
func ValidAction(name string) bool {
	for _, a := range KnownActions {
		if a == name {
			return true
		}
	}
	return false
}
