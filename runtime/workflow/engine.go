package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/orderflow-ai/orderflow/runtime/telemetry"
)

type (
	// Engine drives orders through the approval state machine. All operations
	// load the order, apply the transition in memory and write it back with a
	// compare-and-swap on the order version; concurrent writers surface as
	// ErrConflict instead of silently overwriting history.
	Engine struct {
		store     OrderStore
		directory Directory
		logger    telemetry.Logger
		now       func() time.Time
	}

	// EngineOption configures an Engine.
	EngineOption func(*Engine)

	// NewOrderInput carries everything needed to create an order with its
	// approver chain.
	NewOrderInput struct {
		OrderNumber string
		RequesterID string
		Department  string
		Product     Product
		TotalAmount float64
	}
)

// WithLogger configures the engine logger. When nil, the engine uses a noop
// logger.
func WithLogger(logger telemetry.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the engine wall clock. Tests use this to control
// deadlines and timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine builds an approval workflow engine.
func NewEngine(store OrderStore, directory Directory, opts ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, errors.New("order store is required")
	}
	if directory == nil {
		return nil, errors.New("user directory is required")
	}
	e := &Engine{
		store:     store,
		directory: directory,
		logger:    telemetry.NewNoopLogger(),
		now:       time.Now,
	}
	for _, o := range opts {
		if o != nil {
			o(e)
		}
	}
	return e, nil
}

// CreateOrder builds the approver chain for the product and amount, attaches
// it to a new draft order and persists it. Chain construction fails with
// ErrNoQualifiedApprover when a required level resolves to no one.
func (e *Engine) CreateOrder(ctx context.Context, in NewOrderInput) (*Order, error) {
	if in.RequesterID == "" {
		return nil, errors.New("requester id is required")
	}
	now := e.now().UTC()
	approvers, err := buildChain(ctx, e.directory, in.Product, in.TotalAmount, in.Department, now)
	if err != nil {
		return nil, err
	}
	order := &Order{
		ID:          uuid.NewString(),
		OrderNumber: in.OrderNumber,
		RequesterID: in.RequesterID,
		Department:  in.Department,
		ProductID:   in.Product.ID,
		TotalAmount: in.TotalAmount,
		Status:      StatusDraft,
		Workflow: ApprovalWorkflow{
			IsRequired: len(approvers) > 0,
			TotalSteps: len(approvers),
			Status:     WorkflowPending,
			Approvers:  approvers,
		},
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
	if err := e.store.Insert(ctx, order); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	e.logger.Info(ctx, "order created",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"total_amount", order.TotalAmount,
		"approval_steps", order.Workflow.TotalSteps,
	)
	return order, nil
}

// Submit moves a draft order into the approval workflow. Only the owning
// requester may submit, and only from the draft (or resubmitted) state.
func (e *Engine) Submit(ctx context.Context, orderID, userID string) (*Order, error) {
	order, err := e.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != StatusDraft && order.Status != StatusCreated {
		return nil, fmt.Errorf("submit order %s in status %q: %w", orderID, order.Status, ErrInvalidState)
	}
	if order.RequesterID != userID {
		return nil, fmt.Errorf("user %s is not the requester of order %s: %w", userID, orderID, ErrUnauthorized)
	}

	now := e.now().UTC()
	order.SubmittedAt = &now
	order.Status = StatusSubmitted
	e.appendHistory(order, Action{UserID: userID, Action: ActionSubmit, Timestamp: now})

	if order.Workflow.IsRequired && len(order.Workflow.Approvers) > 0 {
		order.Workflow.Status = WorkflowInProgress
		order.Workflow.CurrentStep = order.Workflow.Approvers[0].Step
		order.Status = pendingStatusForStep(order.Workflow.CurrentStep)
	} else {
		// No applicable approval level: the order auto-approves on submit.
		order.Status = StatusApproved
		order.Workflow.Status = WorkflowCompleted
		order.Workflow.CompletedAt = &now
	}

	if err := e.save(ctx, order); err != nil {
		return nil, err
	}
	e.logger.Info(ctx, "order submitted", "order_id", orderID, "status", order.Status)
	return order, nil
}

// Approve records a sign-off by the active approver at the current step. The
// last required approval completes the workflow and marks the order approved;
// otherwise the current step advances. Approvers outside the current step are
// rejected with ErrUnauthorized and leave no history entry.
func (e *Engine) Approve(ctx context.Context, orderID, approverID, comments string) (*Order, error) {
	order, err := e.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	approver, err := e.activeApprover(order, approverID)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	approver.Status = ApproverApproved
	e.appendHistory(order, Action{
		UserID:    approverID,
		Action:    ActionApprove,
		Step:      approver.Step,
		Comments:  comments,
		Timestamp: now,
	})

	if next, ok := nextPendingStep(order.Workflow.Approvers, approver.Step); ok {
		order.Workflow.CurrentStep = next
		order.Status = pendingStatusForStep(next)
	} else {
		order.Status = StatusApproved
		order.Workflow.Status = WorkflowCompleted
		order.Workflow.CompletedAt = &now
	}

	if err := e.save(ctx, order); err != nil {
		return nil, err
	}
	e.logger.Info(ctx, "order approved at step",
		"order_id", orderID,
		"approver_id", approverID,
		"step", approver.Step,
		"status", order.Status,
	)
	return order, nil
}

// Reject terminates the workflow at the current step. Rejection is final:
// no further steps execute and later approvers remain untouched.
func (e *Engine) Reject(ctx context.Context, orderID, approverID, reason, comments string) (*Order, error) {
	order, err := e.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	approver, err := e.activeApprover(order, approverID)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	approver.Status = ApproverRejected
	e.appendHistory(order, Action{
		UserID:    approverID,
		Action:    ActionReject,
		Step:      approver.Step,
		Reason:    reason,
		Comments:  comments,
		Timestamp: now,
	})
	order.Status = StatusRejected
	order.Workflow.Status = WorkflowRejected
	order.Workflow.CompletedAt = &now

	if err := e.save(ctx, order); err != nil {
		return nil, err
	}
	e.logger.Info(ctx, "order rejected",
		"order_id", orderID,
		"approver_id", approverID,
		"step", approver.Step,
		"reason", reason,
	)
	return order, nil
}

// Cancel short-circuits the order to cancelled. Only the requester may
// cancel, from any non-terminal state.
func (e *Engine) Cancel(ctx context.Context, orderID, userID, reason string) (*Order, error) {
	order, err := e.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.RequesterID != userID {
		return nil, fmt.Errorf("user %s is not the requester of order %s: %w", userID, orderID, ErrUnauthorized)
	}
	if order.Status.Terminal() {
		return nil, fmt.Errorf("cancel order %s in terminal status %q: %w", orderID, order.Status, ErrInvalidState)
	}

	now := e.now().UTC()
	e.appendHistory(order, Action{UserID: userID, Action: ActionCancel, Reason: reason, Timestamp: now})
	order.Status = StatusCancelled
	if order.Workflow.Status == WorkflowInProgress || order.Workflow.Status == WorkflowPending {
		order.Workflow.Status = WorkflowCancelled
		order.Workflow.CompletedAt = &now
	}

	if err := e.save(ctx, order); err != nil {
		return nil, err
	}
	e.logger.Info(ctx, "order cancelled", "order_id", orderID, "user_id", userID, "reason", reason)
	return order, nil
}

// RequestInfo appends an audit entry asking the requester for more detail.
// It never changes the order status; it pauses human attention, not the
// state machine.
func (e *Engine) RequestInfo(ctx context.Context, orderID, approverID, details string) (*Order, error) {
	order, err := e.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	approver, err := e.activeApprover(order, approverID)
	if err != nil {
		return nil, err
	}

	e.appendHistory(order, Action{
		UserID:    approverID,
		Action:    ActionRequestInfo,
		Step:      approver.Step,
		Comments:  details,
		Timestamp: e.now().UTC(),
	})

	if err := e.save(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateAndResubmit resets a rejected order back to its draft-equivalent
// state under the same identity. The approver chain restarts fresh: every
// approver returns to pending and the current step resets for the new
// submission cycle.
func (e *Engine) UpdateAndResubmit(ctx context.Context, orderID, userID string) (*Order, error) {
	order, err := e.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.RequesterID != userID {
		return nil, fmt.Errorf("user %s is not the requester of order %s: %w", userID, orderID, ErrUnauthorized)
	}
	if order.Status != StatusRejected {
		return nil, fmt.Errorf("resubmit order %s in status %q: %w", orderID, order.Status, ErrInvalidState)
	}

	order.Status = StatusCreated
	order.Workflow.Status = WorkflowPending
	order.Workflow.CurrentStep = 0
	order.Workflow.CompletedAt = nil
	for i := range order.Workflow.Approvers {
		order.Workflow.Approvers[i].Status = ApproverPending
	}

	if err := e.save(ctx, order); err != nil {
		return nil, err
	}
	e.logger.Info(ctx, "order reset for resubmission", "order_id", orderID)
	return order, nil
}

// ScanEscalations detects missed approval deadlines on the active step and
// records escalation triggers plus audit entries. Detection only: the
// approver stays pending and no reassignment happens. The scan is idempotent
// per step.
func (e *Engine) ScanEscalations(ctx context.Context, orderID string) (*Order, error) {
	order, err := e.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Workflow.Status != WorkflowInProgress {
		return order, nil
	}

	now := e.now().UTC()
	changed := false
	for i := range order.Workflow.Approvers {
		a := &order.Workflow.Approvers[i]
		if a.Status != ApproverPending || a.Step != order.Workflow.CurrentStep {
			continue
		}
		if a.Deadline.IsZero() || now.Before(a.Deadline) {
			continue
		}
		if hasTrigger(order.Workflow.EscalationTriggers, a.Step) {
			continue
		}
		order.Workflow.EscalationTriggers = append(order.Workflow.EscalationTriggers, EscalationTrigger{
			Step:        a.Step,
			UserID:      a.UserID,
			Reason:      "approval deadline exceeded",
			Deadline:    a.Deadline,
			TriggeredAt: now,
		})
		e.appendHistory(order, Action{
			UserID:    a.UserID,
			Action:    ActionEscalate,
			Step:      a.Step,
			Reason:    "approval deadline exceeded",
			Timestamp: now,
		})
		changed = true
	}
	if !changed {
		return order, nil
	}

	if err := e.save(ctx, order); err != nil {
		return nil, err
	}
	e.logger.Warn(ctx, "approval deadline escalated",
		"order_id", orderID,
		"step", order.Workflow.CurrentStep,
	)
	return order, nil
}

// Order returns the order by id.
func (e *Engine) Order(ctx context.Context, orderID string) (*Order, error) {
	return e.load(ctx, orderID)
}

// OrderByNumber returns the order by its human-facing number.
func (e *Engine) OrderByNumber(ctx context.Context, number string) (*Order, error) {
	order, err := e.store.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", number, ErrOrderNotFound)
	}
	return order, nil
}

// OrdersByRequester lists orders created by the given user.
func (e *Engine) OrdersByRequester(ctx context.Context, requesterID string) ([]*Order, error) {
	return e.store.ListByRequester(ctx, requesterID)
}

func (e *Engine) load(ctx context.Context, orderID string) (*Order, error) {
	order, err := e.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrOrderNotFound)
	}
	return order, nil
}

func (e *Engine) save(ctx context.Context, order *Order) error {
	order.UpdatedAt = e.now().UTC()
	if err := e.store.Update(ctx, order); err != nil {
		return fmt.Errorf("update order %s: %w", order.ID, err)
	}
	return nil
}

// activeApprover authorizes an approval action: the order must be
// non-terminal with a workflow in progress, and the acting user must be the
// pending approver for the current step. Violations produce no history entry.
func (e *Engine) activeApprover(order *Order, approverID string) (*Approver, error) {
	if order.Status.Terminal() {
		return nil, fmt.Errorf("order %s in terminal status %q: %w", order.ID, order.Status, ErrInvalidState)
	}
	if order.Workflow.Status != WorkflowInProgress {
		return nil, fmt.Errorf("order %s workflow is %q: %w", order.ID, order.Workflow.Status, ErrInvalidState)
	}
	active, ok := order.Workflow.ActiveApprover()
	if !ok {
		return nil, fmt.Errorf("order %s has no active approver: %w", order.ID, ErrInvalidState)
	}
	if active.UserID != approverID {
		return nil, fmt.Errorf("user %s is not the active approver for step %d of order %s: %w",
			approverID, order.Workflow.CurrentStep, order.ID, ErrUnauthorized)
	}
	return active, nil
}

func (e *Engine) appendHistory(order *Order, action Action) {
	order.Workflow.History = append(order.Workflow.History, action)
}

func nextPendingStep(approvers []Approver, after int) (int, bool) {
	for _, a := range approvers {
		if a.Step > after && a.Status == ApproverPending {
			return a.Step, true
		}
	}
	return 0, false
}

func hasTrigger(triggers []EscalationTrigger, step int) bool {
	for _, t := range triggers {
		if t.Step == step {
			return true
		}
	}
	return false
}
