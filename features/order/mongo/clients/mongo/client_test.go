package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/orderflow-ai/orderflow/runtime/workflow"
)

// fakeCollection implements the narrow collection interface over a map keyed
// by order id, enough to exercise the client's error mapping and CAS logic.
type fakeCollection struct {
	orders map[string]*workflow.Order

	insertErr  error
	findErr    error
	replaceErr error
	indexes    *fakeIndexView
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{
		orders:  make(map[string]*workflow.Order),
		indexes: &fakeIndexView{},
	}
}

func (c *fakeCollection) FindOne(_ context.Context, filter any, _ ...options.Lister[options.FindOneOptions]) singleResult {
	f, ok := filter.(bson.M)
	if !ok {
		return fakeSingleResult{err: errors.New("unexpected filter type")}
	}
	if id, ok := f["_id"].(string); ok {
		if order, ok := c.orders[id]; ok {
			return fakeSingleResult{order: order}
		}
		return fakeSingleResult{err: mongodriver.ErrNoDocuments}
	}
	if number, ok := f["order_number"].(string); ok {
		for _, order := range c.orders {
			if order.OrderNumber == number {
				return fakeSingleResult{order: order}
			}
		}
	}
	return fakeSingleResult{err: mongodriver.ErrNoDocuments}
}

func (c *fakeCollection) Find(_ context.Context, filter any, _ ...options.Lister[options.FindOptions]) (cursor, error) {
	if c.findErr != nil {
		return nil, c.findErr
	}
	f := filter.(bson.M)
	requester := f["requester_id"].(string)
	var matched []*workflow.Order
	for _, order := range c.orders {
		if order.RequesterID == requester {
			matched = append(matched, order)
		}
	}
	return fakeCursor{orders: matched}, nil
}

func (c *fakeCollection) InsertOne(_ context.Context, document any, _ ...options.Lister[options.InsertOneOptions]) (*mongodriver.InsertOneResult, error) {
	if c.insertErr != nil {
		return nil, c.insertErr
	}
	order := document.(*workflow.Order)
	if _, ok := c.orders[order.ID]; ok {
		return nil, duplicateKeyError()
	}
	for _, existing := range c.orders {
		if existing.OrderNumber == order.OrderNumber {
			return nil, duplicateKeyError()
		}
	}
	clone := *order
	c.orders[order.ID] = &clone
	return &mongodriver.InsertOneResult{InsertedID: order.ID}, nil
}

func (c *fakeCollection) ReplaceOne(_ context.Context, filter any, replacement any, _ ...options.Lister[options.ReplaceOptions]) (*mongodriver.UpdateResult, error) {
	if c.replaceErr != nil {
		return nil, c.replaceErr
	}
	f := filter.(bson.M)
	id := f["_id"].(string)
	version := f["version"].(int64)
	existing, ok := c.orders[id]
	if !ok || existing.Version != version {
		return &mongodriver.UpdateResult{MatchedCount: 0}, nil
	}
	next := *(replacement.(*workflow.Order))
	c.orders[id] = &next
	return &mongodriver.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (c *fakeCollection) Indexes() indexView { return c.indexes }

type fakeIndexView struct {
	models []mongodriver.IndexModel
	err    error
}

func (v *fakeIndexView) CreateOne(_ context.Context, model mongodriver.IndexModel, _ ...options.Lister[options.CreateIndexesOptions]) (string, error) {
	if v.err != nil {
		return "", v.err
	}
	v.models = append(v.models, model)
	return "idx", nil
}

type fakeSingleResult struct {
	order *workflow.Order
	err   error
}

func (r fakeSingleResult) Decode(val any) error {
	if r.err != nil {
		return r.err
	}
	*(val.(*workflow.Order)) = *r.order
	return nil
}

type fakeCursor struct {
	orders []*workflow.Order
}

func (c fakeCursor) All(_ context.Context, results any) error {
	out := results.(*[]*workflow.Order)
	for _, order := range c.orders {
		clone := *order
		*out = append(*out, &clone)
	}
	return nil
}

// duplicateKeyError builds the driver error shape that
// mongodriver.IsDuplicateKeyError recognizes.
func duplicateKeyError() error {
	return mongodriver.WriteException{
		WriteErrors: []mongodriver.WriteError{{Code: 11000, Message: "E11000 duplicate key error"}},
	}
}

func newTestClient(t *testing.T) (*client, *fakeCollection) {
	t.Helper()
	coll := newFakeCollection()
	c, err := newClientWithCollection(nil, coll, time.Second)
	require.NoError(t, err)
	return c, coll
}

func mongoOrder(id, number string) *workflow.Order {
	return &workflow.Order{
		ID:          id,
		OrderNumber: number,
		RequesterID: "u1",
		TotalAmount: 6000,
		Status:      workflow.StatusDraft,
		Version:     1,
	}
}

func TestNewRequiresClientAndDatabase(t *testing.T) {
	_, err := New(Options{})
	require.EqualError(t, err, "mongo client is required")
	_, err = New(Options{Client: &mongodriver.Client{}})
	require.EqualError(t, err, "database name is required")
}

func TestClientName(t *testing.T) {
	c, _ := newTestClient(t)
	require.Equal(t, "order-mongo", c.Name())
}

func TestInsertAndGetOrder(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Insert(context.Background(), mongoOrder("o1", "ORD-2024-0001")))

	got, err := c.Get(context.Background(), "o1")
	require.NoError(t, err)
	require.Equal(t, "ORD-2024-0001", got.OrderNumber)
}

func TestInsertDuplicateMapsToConflict(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Insert(context.Background(), mongoOrder("o1", "ORD-2024-0001")))

	err := c.Insert(context.Background(), mongoOrder("o1", "ORD-2024-0002"))
	require.ErrorIs(t, err, workflow.ErrConflict)
}

func TestGetMissingMapsToNotFound(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := c.Get(context.Background(), "nope")
	require.ErrorIs(t, err, workflow.ErrOrderNotFound)
}

func TestFindByNumberOrder(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Insert(context.Background(), mongoOrder("o1", "ORD-2024-0001")))

	got, err := c.FindByNumber(context.Background(), "ORD-2024-0001")
	require.NoError(t, err)
	require.Equal(t, "o1", got.ID)

	_, err = c.FindByNumber(context.Background(), "ORD-2024-9999")
	require.ErrorIs(t, err, workflow.ErrOrderNotFound)
}

func TestListByRequesterOrders(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Insert(context.Background(), mongoOrder("o1", "ORD-2024-0001")))
	other := mongoOrder("o2", "ORD-2024-0002")
	other.RequesterID = "u2"
	require.NoError(t, c.Insert(context.Background(), other))

	orders, err := c.ListByRequester(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, "o1", orders[0].ID)
}

func TestUpdateSwapsVersion(t *testing.T) {
	c, _ := newTestClient(t)
	order := mongoOrder("o1", "ORD-2024-0001")
	require.NoError(t, c.Insert(context.Background(), order))

	order.Status = workflow.StatusSubmitted
	require.NoError(t, c.Update(context.Background(), order))
	require.Equal(t, int64(2), order.Version)

	got, err := c.Get(context.Background(), "o1")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusSubmitted, got.Status)
	require.Equal(t, int64(2), got.Version)
}

func TestUpdateStaleVersionConflicts(t *testing.T) {
	c, _ := newTestClient(t)
	order := mongoOrder("o1", "ORD-2024-0001")
	require.NoError(t, c.Insert(context.Background(), order))

	stale := *order
	require.NoError(t, c.Update(context.Background(), order))

	err := c.Update(context.Background(), &stale)
	require.ErrorIs(t, err, workflow.ErrConflict)
}

func TestUpdateMissingOrderNotFound(t *testing.T) {
	c, _ := newTestClient(t)
	err := c.Update(context.Background(), mongoOrder("o1", "ORD-2024-0001"))
	require.ErrorIs(t, err, workflow.ErrOrderNotFound)
}

func TestUpdatePropagatesDriverError(t *testing.T) {
	c, coll := newTestClient(t)
	require.NoError(t, c.Insert(context.Background(), mongoOrder("o1", "ORD-2024-0001")))
	coll.replaceErr = errors.New("socket closed")

	err := c.Update(context.Background(), mongoOrder("o1", "ORD-2024-0001"))
	require.ErrorContains(t, err, "socket closed")
}

func TestEnsureIndexesCreatesBoth(t *testing.T) {
	coll := newFakeCollection()
	require.NoError(t, ensureIndexes(context.Background(), coll))
	require.Len(t, coll.indexes.models, 2)
}

func TestInputValidation(t *testing.T) {
	c, _ := newTestClient(t)
	require.Error(t, c.Insert(context.Background(), nil))
	_, err := c.Get(context.Background(), "")
	require.Error(t, err)
	_, err = c.FindByNumber(context.Background(), "")
	require.Error(t, err)
	_, err = c.ListByRequester(context.Background(), "")
	require.Error(t, err)
	require.Error(t, c.Update(context.Background(), nil))
}
