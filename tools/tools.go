// Package tools defines the builtin order tools exposed to the chat layer and
// registers them against the tool registry. Each tool wraps one workflow
// engine operation; expected business failures come back as structured tool
// errors, not Go errors.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/orderflow-ai/orderflow/runtime/tool"
	"github.com/orderflow-ai/orderflow/runtime/workflow"
)

// Builtin tool names. They double as intent router actions.
const (
	NameGetUserOrders        = "get_user_orders"
	NameGetOrderDetails      = "get_order_details"
	NameAnalyzeOrderFailures = "analyze_order_failures"
	NameSubmitOrder          = "submit_order"
	NameApproveOrder         = "approve_order"
	NameRejectOrder          = "reject_order"
	NameCancelOrder          = "cancel_order"
)

const (
	categoryOrders   = "orders"
	categoryApproval = "approval"
	toolVersion      = "1.0.0"
)

// Register wires every builtin order tool into the registry, bound to the
// given workflow engine.
func Register(reg *tool.Registry, engine *workflow.Engine) error {
	if reg == nil {
		return errors.New("registry is required")
	}
	if engine == nil {
		return errors.New("workflow engine is required")
	}
	b := binding{engine: engine}
	for _, t := range []struct {
		desc    tool.Descriptor
		handler tool.HandlerFunc
	}{
		{getUserOrdersDescriptor(), b.getUserOrders},
		{getOrderDetailsDescriptor(), b.getOrderDetails},
		{analyzeOrderFailuresDescriptor(), b.analyzeOrderFailures},
		{submitOrderDescriptor(), b.submitOrder},
		{approveOrderDescriptor(), b.approveOrder},
		{rejectOrderDescriptor(), b.rejectOrder},
		{cancelOrderDescriptor(), b.cancelOrder},
	} {
		handler := t.handler
		if err := reg.Register(t.desc, func() (tool.Handler, error) { return handler, nil }); err != nil {
			return fmt.Errorf("register %s: %w", t.desc.Name, err)
		}
	}
	return nil
}

type binding struct {
	engine *workflow.Engine
}

func (b binding) getUserOrders(ctx context.Context, params map[string]any) (any, error) {
	userID, _ := params["userId"].(string)
	orders, err := b.engine.OrdersByRequester(ctx, userID)
	if err != nil {
		return nil, toolError(err)
	}
	return map[string]any{"orders": orders, "count": len(orders)}, nil
}

func (b binding) getOrderDetails(ctx context.Context, params map[string]any) (any, error) {
	order, err := b.lookup(ctx, params)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// analyzeOrderFailures inspects the workflow history and reports why the
// order failed or is stuck: the rejection step and reason when rejected,
// pending approvals past their deadline, and recorded escalations.
func (b binding) analyzeOrderFailures(ctx context.Context, params map[string]any) (any, error) {
	order, err := b.lookup(ctx, params)
	if err != nil {
		return nil, err
	}
	analysis := map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"status":      order.Status,
	}
	var findings []map[string]any
	for _, action := range order.Workflow.History {
		switch action.Action {
		case workflow.ActionReject:
			findings = append(findings, map[string]any{
				"kind":   "rejected",
				"step":   action.Step,
				"userId": action.UserID,
				"reason": action.Reason,
			})
		case workflow.ActionEscalate:
			findings = append(findings, map[string]any{
				"kind":   "deadline_missed",
				"step":   action.Step,
				"userId": action.UserID,
				"reason": action.Reason,
			})
		}
	}
	if len(findings) == 0 && order.Workflow.Status == workflow.WorkflowInProgress {
		if active, ok := order.Workflow.ActiveApprover(); ok {
			findings = append(findings, map[string]any{
				"kind":   "awaiting_approval",
				"step":   active.Step,
				"userId": active.UserID,
			})
		}
	}
	analysis["findings"] = findings
	analysis["pendingSteps"] = order.Workflow.PendingSteps()
	return analysis, nil
}

func (b binding) submitOrder(ctx context.Context, params map[string]any) (any, error) {
	orderID, err := b.resolveOrderID(ctx, params)
	if err != nil {
		return nil, err
	}
	userID, _ := params["userId"].(string)
	order, werr := b.engine.Submit(ctx, orderID, userID)
	if werr != nil {
		return nil, toolError(werr)
	}
	return order, nil
}

func (b binding) approveOrder(ctx context.Context, params map[string]any) (any, error) {
	orderID, err := b.resolveOrderID(ctx, params)
	if err != nil {
		return nil, err
	}
	userID, _ := params["userId"].(string)
	comments, _ := params["comments"].(string)
	order, werr := b.engine.Approve(ctx, orderID, userID, comments)
	if werr != nil {
		return nil, toolError(werr)
	}
	return order, nil
}

func (b binding) rejectOrder(ctx context.Context, params map[string]any) (any, error) {
	orderID, err := b.resolveOrderID(ctx, params)
	if err != nil {
		return nil, err
	}
	userID, _ := params["userId"].(string)
	reason, _ := params["reason"].(string)
	comments, _ := params["comments"].(string)
	order, werr := b.engine.Reject(ctx, orderID, userID, reason, comments)
	if werr != nil {
		return nil, toolError(werr)
	}
	return order, nil
}

func (b binding) cancelOrder(ctx context.Context, params map[string]any) (any, error) {
	orderID, err := b.resolveOrderID(ctx, params)
	if err != nil {
		return nil, err
	}
	userID, _ := params["userId"].(string)
	reason, _ := params["reason"].(string)
	order, werr := b.engine.Cancel(ctx, orderID, userID, reason)
	if werr != nil {
		return nil, toolError(werr)
	}
	return order, nil
}

// lookup resolves the order named by the orderId parameter, accepting either
// the storage id or the human-facing order number.
func (b binding) lookup(ctx context.Context, params map[string]any) (*workflow.Order, error) {
	ref, _ := params["orderId"].(string)
	order, err := b.engine.Order(ctx, ref)
	if err == nil {
		return order, nil
	}
	if errors.Is(err, workflow.ErrOrderNotFound) {
		if byNumber, nerr := b.engine.OrderByNumber(ctx, ref); nerr == nil {
			return byNumber, nil
		}
	}
	return nil, toolError(err)
}

// resolveOrderID maps the orderId parameter onto the storage id, resolving
// order numbers when needed.
func (b binding) resolveOrderID(ctx context.Context, params map[string]any) (string, error) {
	order, err := b.lookup(ctx, params)
	if err != nil {
		return "", err
	}
	return order.ID, nil
}

// toolError maps workflow sentinels onto the structured error codes the chat
// layer understands. Unknown errors pass through for the executor to wrap.
func toolError(err error) error {
	switch {
	case errors.Is(err, workflow.ErrOrderNotFound):
		return tool.NewError(tool.CodeOrderNotFound, err.Error())
	case errors.Is(err, workflow.ErrUnauthorized):
		return tool.NewError(tool.CodeUnauthorized, err.Error())
	case errors.Is(err, workflow.ErrInvalidState):
		return tool.NewError(tool.CodeInvalidState, err.Error())
	case errors.Is(err, workflow.ErrConflict):
		return tool.NewError(tool.CodeConflict, err.Error())
	default:
		return err
	}
}
