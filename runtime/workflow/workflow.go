// Package workflow implements the order approval state machine: building a
// per-order approver chain from product rules, advancing it on approval
// actions, recording the full audit history and detecting escalation
// conditions on missed deadlines.
package workflow

import (
	"context"
	"time"
)

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

// Order lifecycle states. Approved, rejected, cancelled and fulfilled are
// terminal for the approval workflow; created is the draft-equivalent state
// reached by updating and resubmitting a rejected order.
const (
	StatusDraft       OrderStatus = "draft"
	StatusCreated     OrderStatus = "created"
	StatusSubmitted   OrderStatus = "submitted"
	StatusUnderReview OrderStatus = "under_review"
	StatusPendingL1   OrderStatus = "pending_l1"
	StatusPendingL2   OrderStatus = "pending_l2"
	StatusApproved    OrderStatus = "approved"
	StatusRejected    OrderStatus = "rejected"
	StatusCancelled   OrderStatus = "cancelled"
	StatusFulfilled   OrderStatus = "fulfilled"
)

// WorkflowStatus enumerates approval workflow states.
type WorkflowStatus string

// Approval workflow states. Transitions are one-directional toward a
// terminal state (completed, rejected or cancelled).
const (
	WorkflowPending    WorkflowStatus = "pending"
	WorkflowInProgress WorkflowStatus = "in_progress"
	WorkflowCompleted  WorkflowStatus = "completed"
	WorkflowRejected   WorkflowStatus = "rejected"
	WorkflowCancelled  WorkflowStatus = "cancelled"
)

// ApproverStatus enumerates per-approver states within a workflow.
type ApproverStatus string

// Approver states.
const (
	ApproverPending   ApproverStatus = "pending"
	ApproverApproved  ApproverStatus = "approved"
	ApproverRejected  ApproverStatus = "rejected"
	ApproverSkipped   ApproverStatus = "skipped"
	ApproverEscalated ApproverStatus = "escalated"
)

// ActionType enumerates audited workflow actions.
type ActionType string

// Audited action kinds.
const (
	ActionSubmit      ActionType = "submit"
	ActionApprove     ActionType = "approve"
	ActionReject      ActionType = "reject"
	ActionRequestInfo ActionType = "request_info"
	ActionEscalate    ActionType = "escalate"
	ActionCancel      ActionType = "cancel"
)

type (
	// Order is a purchase request moving through the approval workflow. The
	// requester owns it until submission; thereafter the workflow engine
	// co-owns its status.
	Order struct {
		// ID is the storage identity.
		ID string `json:"id" bson:"_id"`
		// OrderNumber is the unique human-facing key (e.g. "ORD-2024-0042").
		OrderNumber string `json:"orderNumber" bson:"order_number"`
		// RequesterID identifies the employee who created the order.
		RequesterID string `json:"requesterId" bson:"requester_id"`
		// Department scopes manager-role approver resolution.
		Department string `json:"department,omitempty" bson:"department,omitempty"`
		// ProductID references the ordered product whose category rules drive
		// the approver chain.
		ProductID string `json:"productId,omitempty" bson:"product_id,omitempty"`
		// TotalAmount is the order value the approval levels trigger on.
		TotalAmount float64 `json:"totalAmount" bson:"total_amount"`
		// Status is the current lifecycle state.
		Status OrderStatus `json:"status" bson:"status"`
		// Workflow is the approval state attached to this order.
		Workflow ApprovalWorkflow `json:"approvalWorkflow" bson:"approval_workflow"`
		// SubmittedAt is set on the first successful submit.
		SubmittedAt *time.Time `json:"submittedAt,omitempty" bson:"submitted_at,omitempty"`
		CreatedAt   time.Time  `json:"createdAt" bson:"created_at"`
		UpdatedAt   time.Time  `json:"updatedAt" bson:"updated_at"`
		// Version is the monotonic revision used for compare-and-swap writes.
		// Stale writers are rejected with ErrConflict.
		Version int64 `json:"version" bson:"version"`
	}

	// ApprovalWorkflow tracks the approver chain and its progress. History is
	// append-only and CurrentStep never decreases within a submission cycle.
	ApprovalWorkflow struct {
		// IsRequired is false when no approval level applies to the order.
		IsRequired bool `json:"isRequired" bson:"is_required"`
		// CurrentStep is the active step number, zero before submission.
		CurrentStep int `json:"currentStep" bson:"current_step"`
		// TotalSteps is the length of the approver chain.
		TotalSteps int `json:"totalSteps" bson:"total_steps"`
		// Status is the workflow state.
		Status WorkflowStatus `json:"status" bson:"status"`
		// Approvers is the ordered chain, one entry per step.
		Approvers []Approver `json:"approvers" bson:"approvers"`
		// History is the append-only audit trail.
		History []Action `json:"history" bson:"history"`
		// EscalationTriggers lists detected deadline breaches, one per step.
		EscalationTriggers []EscalationTrigger `json:"escalationTriggers,omitempty" bson:"escalation_triggers,omitempty"`
		// CompletedAt is stamped when the workflow reaches a terminal state.
		CompletedAt *time.Time `json:"completedAt,omitempty" bson:"completed_at,omitempty"`
	}

	// Approver is one required sign-off in the chain. Exactly one approver is
	// pending per active step; steps are processed in Step order.
	Approver struct {
		UserID string `json:"userId" bson:"user_id"`
		// Step is the 1-based position in the chain.
		Step int `json:"stepNumber" bson:"step_number"`
		// ApprovalLimit is the approver's maximum approval amount.
		ApprovalLimit float64        `json:"approvalLimit" bson:"approval_limit"`
		Status        ApproverStatus `json:"status" bson:"status"`
		// Deadline is when the step escalates if unactioned.
		Deadline time.Time `json:"deadline" bson:"deadline"`
	}

	// Action is an immutable audit record appended to the workflow history.
	Action struct {
		UserID    string     `json:"userId" bson:"user_id"`
		Action    ActionType `json:"action" bson:"action"`
		Step      int        `json:"stepNumber" bson:"step_number"`
		Reason    string     `json:"reason,omitempty" bson:"reason,omitempty"`
		Comments  string     `json:"comments,omitempty" bson:"comments,omitempty"`
		Timestamp time.Time  `json:"timestamp" bson:"timestamp"`
	}

	// EscalationTrigger flags a missed approval deadline. Detection only; no
	// automatic reassignment happens in this design.
	EscalationTrigger struct {
		Step        int       `json:"stepNumber" bson:"step_number"`
		UserID      string    `json:"userId" bson:"user_id"`
		Reason      string    `json:"reason" bson:"reason"`
		Deadline    time.Time `json:"deadline" bson:"deadline"`
		TriggeredAt time.Time `json:"triggeredAt" bson:"triggered_at"`
	}

	// Product carries the ordered approval levels that drive chain
	// construction for orders of that product.
	Product struct {
		ID             string          `json:"id"`
		Name           string          `json:"name"`
		Category       string          `json:"category,omitempty"`
		ApprovalLevels []ApprovalLevel `json:"approvalLevels"`
	}

	// ApprovalLevel declares one approval step rule. A level applies when the
	// order amount falls within [MinAmount, MaxAmount); MaxAmount zero means
	// unbounded.
	ApprovalLevel struct {
		Level        int     `json:"level"`
		Role         string  `json:"role"`
		MinAmount    float64 `json:"minAmount"`
		MaxAmount    float64 `json:"maxAmount,omitempty"`
		TimeoutHours int     `json:"timeoutHours"`
	}

	// User is the directory view of an employee relevant to approver
	// resolution.
	User struct {
		ID                string  `json:"id"`
		Role              string  `json:"role"`
		Department        string  `json:"department"`
		MaxApprovalAmount float64 `json:"maxApprovalAmount"`
	}

	// OrderStore persists orders. Update performs a compare-and-swap on
	// Order.Version and returns ErrConflict for stale writers.
	OrderStore interface {
		Insert(ctx context.Context, order *Order) error
		Get(ctx context.Context, id string) (*Order, error)
		FindByNumber(ctx context.Context, number string) (*Order, error)
		ListByRequester(ctx context.Context, requesterID string) ([]*Order, error)
		Update(ctx context.Context, order *Order) error
	}

	// Directory resolves approver candidates. Implementations back onto the
	// user service; StaticDirectory serves tests and demos.
	Directory interface {
		// ByRole lists users holding the given role. For the manager role the
		// department narrows the search to the requester's own department.
		ByRole(ctx context.Context, role, department string) ([]User, error)
	}
)

// Terminal reports whether the order status admits no further workflow
// actions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled, StatusFulfilled:
		return true
	default:
		return false
	}
}

// ActiveApprover returns the pending approver for the current step.
func (w *ApprovalWorkflow) ActiveApprover() (*Approver, bool) {
	for i := range w.Approvers {
		a := &w.Approvers[i]
		if a.Step == w.CurrentStep && a.Status == ApproverPending {
			return a, true
		}
	}
	return nil, false
}

// PendingSteps lists the step numbers still awaiting action, in order.
func (w *ApprovalWorkflow) PendingSteps() []int {
	var steps []int
	for _, a := range w.Approvers {
		if a.Status == ApproverPending {
			steps = append(steps, a.Step)
		}
	}
	return steps
}

// RoleManager is resolved within the requester's own department.
const RoleManager = "manager"

// StaticDirectory is a fixed in-memory Directory for tests and demos.
type StaticDirectory struct {
	Users []User
}

// ByRole returns the users holding role, narrowed to department for the
// manager role.
func (d StaticDirectory) ByRole(_ context.Context, role, department string) ([]User, error) {
	var out []User
	for _, u := range d.Users {
		if u.Role != role {
			continue
		}
		if role == RoleManager && department != "" && u.Department != department {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}
