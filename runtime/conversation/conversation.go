// Package conversation holds short-lived per-user dialogue state consumed by
// the intent router: message history and pending confirmations, keyed by
// conversation id and garbage-collected after inactivity.
package conversation

import (
	"context"
	"time"
)

type (
	// State is one conversation's dialogue state. It is created on the first
	// message, updated on every turn and evicted after inactivity.
	State struct {
		// ID is the conversation key.
		ID string `json:"id"`
		// UserID identifies the conversation owner.
		UserID string `json:"userId"`
		// Messages is the ordered dialogue history.
		Messages []Message `json:"messages"`
		// PendingAction holds a confirmation awaiting the user's next turn.
		PendingAction *PendingAction `json:"pendingAction,omitempty"`
		// UpdatedAt is bumped on every turn and drives TTL eviction.
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// Message is one dialogue turn.
	Message struct {
		// Role is "user" or "assistant".
		Role      string    `json:"role"`
		Content   string    `json:"content"`
		Timestamp time.Time `json:"timestamp"`
	}

	// PendingAction is a deferred tool invocation awaiting user confirmation.
	PendingAction struct {
		Action string         `json:"action"`
		Params map[string]any `json:"parameters,omitempty"`
	}

	// Store persists conversation state behind a narrow interface. Update is
	// the serializing primitive: implementations guard each conversation id so
	// concurrent turns for the same conversation apply one at a time.
	Store interface {
		// Get returns the state for id, or nil when absent or expired.
		Get(ctx context.Context, id string) (*State, error)
		// Put stores the state under its id, refreshing its TTL.
		Put(ctx context.Context, state *State) error
		// Delete removes the state for id. Deleting an absent id is not an error.
		Delete(ctx context.Context, id string) error
		// Update applies fn to the current state (nil when absent) and stores
		// the returned state. Calls for the same id serialize; fn returning an
		// error aborts the update.
		Update(ctx context.Context, id string, fn func(*State) (*State, error)) (*State, error)
	}
)

// Append returns the state with msg appended and UpdatedAt bumped.
func (s *State) Append(role, content string, now time.Time) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content, Timestamp: now})
	s.UpdatedAt = now
}
