// Package memory provides an in-memory workflow.OrderStore with the same
// compare-and-swap semantics as the Mongo-backed store. It serves tests and
// single-process demos.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/orderflow-ai/orderflow/runtime/workflow"
)

// Store is an in-memory order store safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	orders map[string]*workflow.Order
}

// NewStore builds an empty in-memory order store.
func NewStore() *Store {
	return &Store{orders: make(map[string]*workflow.Order)}
}

// Insert persists a new order. Duplicate ids and order numbers are rejected
// with workflow.ErrConflict.
func (s *Store) Insert(_ context.Context, order *workflow.Order) error {
	if order == nil || order.ID == "" {
		return errors.New("order id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.ID]; ok {
		return fmt.Errorf("order %s already exists: %w", order.ID, workflow.ErrConflict)
	}
	for _, existing := range s.orders {
		if order.OrderNumber != "" && existing.OrderNumber == order.OrderNumber {
			return fmt.Errorf("order number %s already exists: %w", order.OrderNumber, workflow.ErrConflict)
		}
	}
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

// Get loads the order by id.
func (s *Store) Get(_ context.Context, id string) (*workflow.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, workflow.ErrOrderNotFound)
	}
	return cloneOrder(order), nil
}

// FindByNumber loads the order by its human-facing number.
func (s *Store) FindByNumber(_ context.Context, number string) (*workflow.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, order := range s.orders {
		if order.OrderNumber == number {
			return cloneOrder(order), nil
		}
	}
	return nil, fmt.Errorf("order %s: %w", number, workflow.ErrOrderNotFound)
}

// ListByRequester lists the orders created by the given user, newest first.
func (s *Store) ListByRequester(_ context.Context, requesterID string) ([]*workflow.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*workflow.Order
	for _, order := range s.orders {
		if order.RequesterID == requesterID {
			out = append(out, cloneOrder(order))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Update replaces the stored order only when the persisted version matches
// the caller's copy, incrementing the version on success. A mismatch surfaces
// as workflow.ErrConflict.
func (s *Store) Update(_ context.Context, order *workflow.Order) error {
	if order == nil || order.ID == "" {
		return errors.New("order id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.orders[order.ID]
	if !ok {
		return fmt.Errorf("order %s: %w", order.ID, workflow.ErrOrderNotFound)
	}
	if existing.Version != order.Version {
		return fmt.Errorf("order %s version %d is stale: %w", order.ID, order.Version, workflow.ErrConflict)
	}
	order.Version++
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

// Len reports the stored order count.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func cloneOrder(src *workflow.Order) *workflow.Order {
	dst := *src
	dst.Workflow.Approvers = append([]workflow.Approver(nil), src.Workflow.Approvers...)
	dst.Workflow.History = append([]workflow.Action(nil), src.Workflow.History...)
	dst.Workflow.EscalationTriggers = append([]workflow.EscalationTrigger(nil), src.Workflow.EscalationTriggers...)
	if src.SubmittedAt != nil {
		t := *src.SubmittedAt
		dst.SubmittedAt = &t
	}
	if src.Workflow.CompletedAt != nil {
		t := *src.Workflow.CompletedAt
		dst.Workflow.CompletedAt = &t
	}
	return &dst
}
