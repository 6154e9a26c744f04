package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orderflow-ai/orderflow/runtime/conversation"
	"github.com/orderflow-ai/orderflow/runtime/model"
	"github.com/orderflow-ai/orderflow/runtime/telemetry"
	"github.com/orderflow-ai/orderflow/runtime/tool"
)

type (
	// Router decides which tool a user message resolves to. The primary
	// classifier is model-backed; whenever it is unavailable or returns an
	// unusable decision the deterministic fallback takes over. Route never
	// fails: the worst case is a low-confidence general_help decision.
	Router struct {
		primary  Classifier
		fallback Classifier
		store    conversation.Store
		summary  model.Client
		logger   telemetry.Logger
		now      func() time.Time
	}

	// RouterOption configures a Router.
	RouterOption func(*Router)
)

// WithPrimary sets the model-backed classifier tried first.
func WithPrimary(c Classifier) RouterOption {
	return func(r *Router) { r.primary = c }
}

// WithSummaryClient sets the completion client used to phrase replies. When
// absent, replies come from deterministic templates.
func WithSummaryClient(c model.Client) RouterOption {
	return func(r *Router) { r.summary = c }
}

// WithLogger configures the router logger. When nil, the router uses a noop
// logger.
func WithLogger(logger telemetry.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the router wall clock for tests.
func WithClock(now func() time.Time) RouterOption {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRouter builds a Router. The fallback classifier and conversation store
// are required; the primary classifier is optional so deployments can run
// without a model provider.
func NewRouter(fallback Classifier, store conversation.Store, opts ...RouterOption) (*Router, error) {
	if fallback == nil {
		return nil, errors.New("fallback classifier is required")
	}
	if store == nil {
		return nil, errors.New("conversation store is required")
	}
	r := &Router{
		fallback: fallback,
		store:    store,
		logger:   telemetry.NewNoopLogger(),
		now:      time.Now,
	}
	for _, o := range opts {
		if o != nil {
			o(r)
		}
	}
	return r, nil
}

// Route records the user message on the conversation and classifies it. The
// primary classifier is tried first; any error falls through to the
// deterministic fallback, and a fallback fault still yields a low-confidence
// general_help decision rather than an error.
func (r *Router) Route(ctx context.Context, userID, conversationID, message string) Decision {
	history := r.recordUserTurn(ctx, userID, conversationID, message)

	if r.primary != nil {
		decision, err := r.primary.Classify(ctx, userID, message, history)
		if err == nil && ValidAction(decision.Action) {
			return decision
		}
		if err != nil {
			r.logger.Warn(ctx, "primary intent classification failed, using fallback",
				"conversation_id", conversationID,
				"err", err,
			)
		}
	}

	decision, err := r.fallback.Classify(ctx, userID, message, history)
	if err != nil || !ValidAction(decision.Action) {
		if err != nil {
			r.logger.Error(ctx, "fallback intent classification failed",
				"conversation_id", conversationID,
				"err", err,
			)
		}
		return Decision{Action: ActionGeneralHelp, Confidence: 0.1}
	}
	return decision
}

// Reply turns the decision and its tool results into a human-readable
// answer and records it on the conversation. When a completion client is
// configured the reply is phrased by the model; any model failure falls back
// to a deterministic template, so the caller always gets text.
func (r *Router) Reply(ctx context.Context, conversationID string, decision Decision, results []*tool.Result) string {
	text := r.templateReply(decision, results)
	if r.summary != nil {
		if phrased, err := r.phraseReply(ctx, decision, results); err == nil && phrased != "" {
			text = phrased
		} else if err != nil {
			r.logger.Warn(ctx, "reply phrasing failed, using template",
				"conversation_id", conversationID,
				"err", err,
			)
		}
	}
	r.recordAssistantTurn(ctx, conversationID, text)
	return text
}

func (r *Router) recordUserTurn(ctx context.Context, userID, conversationID, message string) []conversation.Message {
	var history []conversation.Message
	_, err := r.store.Update(ctx, conversationID, func(state *conversation.State) (*conversation.State, error) {
		if state == nil {
			state = &conversation.State{ID: conversationID, UserID: userID}
		}
		history = append([]conversation.Message(nil), state.Messages...)
		state.Append("user", message, r.now().UTC())
		return state, nil
	})
	if err != nil {
		r.logger.Warn(ctx, "conversation update failed", "conversation_id", conversationID, "err", err)
	}
	return history
}

func (r *Router) recordAssistantTurn(ctx context.Context, conversationID, text string) {
	_, err := r.store.Update(ctx, conversationID, func(state *conversation.State) (*conversation.State, error) {
		if state == nil {
			return nil, nil
		}
		state.Append("assistant", text, r.now().UTC())
		return state, nil
	})
	if err != nil {
		r.logger.Warn(ctx, "conversation update failed", "conversation_id", conversationID, "err", err)
	}
}

func (r *Router) phraseReply(ctx context.Context, decision Decision, results []*tool.Result) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "The user asked for %s. Summarize these tool results in two sentences, plain language, no JSON:\n", decision.Action)
	for i, res := range results {
		if res == nil {
			continue
		}
		if res.Success {
			fmt.Fprintf(&b, "result %d: success: %v\n", i+1, res.Data)
		} else {
			fmt.Fprintf(&b, "result %d: failed (%s): %s\n", i+1, res.Error.Code, res.Error.Message)
		}
	}
	resp, err := r.summary.Complete(ctx, model.Request{
		Messages:  []model.Message{{Role: model.RoleUser, Content: b.String()}},
		MaxTokens: 300,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// templateReply is the deterministic reply used when no model is available.
func (r *Router) templateReply(decision Decision, results []*tool.Result) string {
	if decision.Action == ActionGeneralHelp {
		return "I can look up your orders, explain order status and failures, and submit, approve, reject or cancel orders. " +
			"Try: \"show my orders\" or \"why did order ORD-2024-0042 fail?\""
	}
	succeeded := 0
	var firstErr *tool.Error
	for _, res := range results {
		if res == nil {
			continue
		}
		if res.Success {
			succeeded++
		} else if firstErr == nil {
			firstErr = res.Error
		}
	}
	if len(results) > 0 && succeeded == 0 && firstErr != nil {
		switch firstErr.Code {
		case tool.CodeOrderNotFound:
			return "I couldn't find that order. Check the order number and try again."
		case tool.CodeUnauthorized:
			return "You don't have permission to do that on this order."
		case tool.CodeTimeout, tool.CodeOperationCancelled:
			return "That took too long to complete. Please try again."
		default:
			return "I can't process this right now. Please try again later."
		}
	}
	return fmt.Sprintf("Done: %s completed (%d of %d steps succeeded).", decision.Action, succeeded, len(results))
}
