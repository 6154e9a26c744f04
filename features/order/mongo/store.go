// Package mongo wires the workflow.OrderStore interface to the MongoDB client.
package mongo

import (
	"context"
	"errors"

	clientsmongo "github.com/orderflow-ai/orderflow/features/order/mongo/clients/mongo"
	"github.com/orderflow-ai/orderflow/runtime/workflow"
)

// Options configures the Store wrapper.
type Options struct {
	Client clientsmongo.Client
}

// Store implements workflow.OrderStore by delegating to the Mongo client.
type Store struct {
	client clientsmongo.Client
}

// NewStore builds a Mongo-backed order store using the provided client.
func NewStore(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("client is required")
	}
	return &Store{client: opts.Client}, nil
}

// NewStoreFromMongo is a helper that instantiates the underlying client using
// the given options.
func NewStoreFromMongo(opts clientsmongo.Options) (*Store, error) {
	client, err := clientsmongo.New(opts)
	if err != nil {
		return nil, err
	}
	return NewStore(Options{Client: client})
}

// Insert persists a new order.
func (s *Store) Insert(ctx context.Context, order *workflow.Order) error {
	return s.client.Insert(ctx, order)
}

// Get loads the order by id.
func (s *Store) Get(ctx context.Context, id string) (*workflow.Order, error) {
	return s.client.Get(ctx, id)
}

// FindByNumber loads the order by its human-facing number.
func (s *Store) FindByNumber(ctx context.Context, number string) (*workflow.Order, error) {
	return s.client.FindByNumber(ctx, number)
}

// ListByRequester lists the orders created by the given user, newest first.
func (s *Store) ListByRequester(ctx context.Context, requesterID string) ([]*workflow.Order, error) {
	return s.client.ListByRequester(ctx, requesterID)
}

// Update writes the order back with a compare-and-swap on its version.
func (s *Store) Update(ctx context.Context, order *workflow.Order) error {
	return s.client.Update(ctx, order)
}
