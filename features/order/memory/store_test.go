package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orderflow-ai/orderflow/runtime/workflow"
)

var memNow = time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

func sampleOrder(id, number string) *workflow.Order {
	return &workflow.Order{
		ID:          id,
		OrderNumber: number,
		RequesterID: "u1",
		TotalAmount: 6000,
		Status:      workflow.StatusDraft,
		Version:     1,
		CreatedAt:   memNow,
		Workflow: workflow.ApprovalWorkflow{
			Approvers: []workflow.Approver{{Step: 1, UserID: "mgr-eng", Status: workflow.ApproverPending}},
		},
	}
}

func TestInsertAndGet(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Insert(context.Background(), sampleOrder("o1", "ORD-2024-0001")))

	got, err := s.Get(context.Background(), "o1")
	require.NoError(t, err)
	require.Equal(t, "ORD-2024-0001", got.OrderNumber)
	require.Equal(t, 1, s.Len())
}

func TestInsertDuplicateIDConflicts(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Insert(context.Background(), sampleOrder("o1", "ORD-2024-0001")))

	err := s.Insert(context.Background(), sampleOrder("o1", "ORD-2024-0002"))
	require.ErrorIs(t, err, workflow.ErrConflict)
}

func TestInsertDuplicateNumberConflicts(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Insert(context.Background(), sampleOrder("o1", "ORD-2024-0001")))

	err := s.Insert(context.Background(), sampleOrder("o2", "ORD-2024-0001"))
	require.ErrorIs(t, err, workflow.ErrConflict)
}

func TestGetMissing(t *testing.T) {
	s := NewStore()
	_, err := s.Get(context.Background(), "nope")
	require.ErrorIs(t, err, workflow.ErrOrderNotFound)
}

func TestFindByNumber(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Insert(context.Background(), sampleOrder("o1", "ORD-2024-0001")))

	got, err := s.FindByNumber(context.Background(), "ORD-2024-0001")
	require.NoError(t, err)
	require.Equal(t, "o1", got.ID)

	_, err = s.FindByNumber(context.Background(), "ORD-2024-9999")
	require.ErrorIs(t, err, workflow.ErrOrderNotFound)
}

func TestListByRequesterNewestFirst(t *testing.T) {
	s := NewStore()
	first := sampleOrder("o1", "ORD-2024-0001")
	second := sampleOrder("o2", "ORD-2024-0002")
	second.CreatedAt = memNow.Add(time.Hour)
	other := sampleOrder("o3", "ORD-2024-0003")
	other.RequesterID = "u2"
	require.NoError(t, s.Insert(context.Background(), first))
	require.NoError(t, s.Insert(context.Background(), second))
	require.NoError(t, s.Insert(context.Background(), other))

	orders, err := s.ListByRequester(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Equal(t, "o2", orders[0].ID)
	require.Equal(t, "o1", orders[1].ID)
}

func TestUpdateIncrementsVersion(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Insert(context.Background(), sampleOrder("o1", "ORD-2024-0001")))

	order, err := s.Get(context.Background(), "o1")
	require.NoError(t, err)
	order.Status = workflow.StatusSubmitted
	require.NoError(t, s.Update(context.Background(), order))
	require.Equal(t, int64(2), order.Version)

	got, err := s.Get(context.Background(), "o1")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusSubmitted, got.Status)
	require.Equal(t, int64(2), got.Version)
}

func TestUpdateStaleVersionConflicts(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Insert(context.Background(), sampleOrder("o1", "ORD-2024-0001")))

	stale, err := s.Get(context.Background(), "o1")
	require.NoError(t, err)
	fresh, err := s.Get(context.Background(), "o1")
	require.NoError(t, err)
	require.NoError(t, s.Update(context.Background(), fresh))

	err = s.Update(context.Background(), stale)
	require.ErrorIs(t, err, workflow.ErrConflict)
}

func TestUpdateMissingOrder(t *testing.T) {
	s := NewStore()
	err := s.Update(context.Background(), sampleOrder("o1", "ORD-2024-0001"))
	require.ErrorIs(t, err, workflow.ErrOrderNotFound)
}

func TestStoredOrdersAreIsolated(t *testing.T) {
	s := NewStore()
	order := sampleOrder("o1", "ORD-2024-0001")
	require.NoError(t, s.Insert(context.Background(), order))

	order.Workflow.Approvers[0].Status = workflow.ApproverApproved
	got, err := s.Get(context.Background(), "o1")
	require.NoError(t, err)
	require.Equal(t, workflow.ApproverPending, got.Workflow.Approvers[0].Status,
		"mutating the caller's copy must not affect the store")

	got.Workflow.History = append(got.Workflow.History, workflow.Action{Action: workflow.ActionSubmit})
	again, err := s.Get(context.Background(), "o1")
	require.NoError(t, err)
	require.Empty(t, again.Workflow.History)
}
