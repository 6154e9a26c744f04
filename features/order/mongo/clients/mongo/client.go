// Package mongo implements the low-level MongoDB client used by the order store.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"goa.design/clue/health"

	"github.com/orderflow-ai/orderflow/runtime/workflow"
)

const (
	defaultCollection = "orders"
	defaultTimeout    = 5 * time.Second
	clientName        = "order-mongo"
)

// Client exposes Mongo-backed operations for orders. Update performs a
// compare-and-swap on the order version.
type Client interface {
	health.Pinger

	Insert(ctx context.Context, order *workflow.Order) error
	Get(ctx context.Context, id string) (*workflow.Order, error)
	FindByNumber(ctx context.Context, number string) (*workflow.Order, error)
	ListByRequester(ctx context.Context, requesterID string) ([]*workflow.Order, error)
	Update(ctx context.Context, order *workflow.Order) error
}

// Options configures the Mongo client implementation.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

type client struct {
	mongo   *mongodriver.Client
	coll    collection
	timeout time.Duration
}

// New returns a Client backed by the provided MongoDB client.
func New(opts Options) (Client, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	mcoll := opts.Client.Database(opts.Database).Collection(collName)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	wrapper := mongoCollection{coll: mcoll}
	if err := ensureIndexes(ctx, wrapper); err != nil {
		return nil, err
	}
	return newClientWithCollection(opts.Client, wrapper, timeout)
}

func (c *client) Name() string {
	return clientName
}

func (c *client) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.mongo.Ping(ctx, readpref.Primary())
}

func (c *client) Insert(ctx context.Context, order *workflow.Order) error {
	if order == nil || order.ID == "" {
		return errors.New("order id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if _, err := c.coll.InsertOne(ctx, order); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return fmt.Errorf("order %s already exists: %w", order.ID, workflow.ErrConflict)
		}
		return err
	}
	return nil
}

func (c *client) Get(ctx context.Context, id string) (*workflow.Order, error) {
	if id == "" {
		return nil, errors.New("order id is required")
	}
	return c.findOne(ctx, bson.M{"_id": id})
}

func (c *client) FindByNumber(ctx context.Context, number string) (*workflow.Order, error) {
	if number == "" {
		return nil, errors.New("order number is required")
	}
	return c.findOne(ctx, bson.M{"order_number": number})
}

func (c *client) ListByRequester(ctx context.Context, requesterID string) ([]*workflow.Order, error) {
	if requesterID == "" {
		return nil, errors.New("requester id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	cur, err := c.coll.Find(ctx, bson.M{"requester_id": requesterID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var orders []*workflow.Order
	if err := cur.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Update replaces the stored order only when the persisted version matches
// the caller's copy. On success the order version is incremented in place;
// a version mismatch surfaces as workflow.ErrConflict.
func (c *client) Update(ctx context.Context, order *workflow.Order) error {
	if order == nil || order.ID == "" {
		return errors.New("order id is required")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	next := *order
	next.Version = order.Version + 1
	filter := bson.M{"_id": order.ID, "version": order.Version}
	res, err := c.coll.ReplaceOne(ctx, filter, &next)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Distinguish a stale version from a missing order.
		if _, err := c.findOne(ctx, bson.M{"_id": order.ID}); err != nil {
			return err
		}
		return fmt.Errorf("order %s version %d is stale: %w", order.ID, order.Version, workflow.ErrConflict)
	}
	order.Version = next.Version
	return nil
}

func (c *client) findOne(ctx context.Context, filter bson.M) (*workflow.Order, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var order workflow.Order
	if err := c.coll.FindOne(ctx, filter).Decode(&order); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("order lookup: %w", workflow.ErrOrderNotFound)
		}
		return nil, err
	}
	return &order, nil
}

func (c *client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func ensureIndexes(ctx context.Context, coll collection) error {
	indexes := []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "order_number", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "requester_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}
	for _, index := range indexes {
		if _, err := coll.Indexes().CreateOne(ctx, index); err != nil {
			return err
		}
	}
	return nil
}

func newClientWithCollection(mongoClient *mongodriver.Client, coll collection, timeout time.Duration) (*client, error) {
	if coll == nil {
		return nil, errors.New("collection is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &client{
		mongo:   mongoClient,
		coll:    coll,
		timeout: timeout,
	}, nil
}

type collection interface {
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursor, error)
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongodriver.InsertOneResult, error)
	ReplaceOne(ctx context.Context, filter any, replacement any, opts ...options.Lister[options.ReplaceOptions]) (*mongodriver.UpdateResult, error)
	Indexes() indexView
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error)
}

type singleResult interface {
	Decode(val any) error
}

type cursor interface {
	All(ctx context.Context, results any) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult {
	return c.coll.FindOne(ctx, filter, opts...)
}

func (c mongoCollection) Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursor, error) {
	return c.coll.Find(ctx, filter, opts...)
}

func (c mongoCollection) InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongodriver.InsertOneResult, error) {
	return c.coll.InsertOne(ctx, document, opts...)
}

func (c mongoCollection) ReplaceOne(ctx context.Context, filter any, replacement any, opts ...options.Lister[options.ReplaceOptions]) (*mongodriver.UpdateResult, error) {
	return c.coll.ReplaceOne(ctx, filter, replacement, opts...)
}

func (c mongoCollection) Indexes() indexView {
	return c.coll.Indexes()
}
