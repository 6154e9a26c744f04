package tools

import "github.com/orderflow-ai/orderflow/runtime/tool"

func getUserOrdersDescriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        NameGetUserOrders,
		Description: "List the orders created by a user, newest first.",
		Category:    categoryOrders,
		Version:     toolVersion,
		Schema: tool.Schema{
			Type: "object",
			Properties: []tool.Property{
				{Name: "userId", Type: "string", Description: "Identifier of the requesting user.", Required: true},
			},
			Required: []string{"userId"},
		},
		Examples: []tool.Example{
			{
				Description:    "List orders for user u1",
				Parameters:     map[string]any{"userId": "u1"},
				ExpectedResult: "orders array with count",
			},
		},
	}
}

func getOrderDetailsDescriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        NameGetOrderDetails,
		Description: "Return one order with its approval workflow state and history.",
		Category:    categoryOrders,
		Version:     toolVersion,
		Schema:      orderRefSchema(nil),
	}
}

func analyzeOrderFailuresDescriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        NameAnalyzeOrderFailures,
		Description: "Explain why an order failed or is stuck: rejections, missed deadlines and pending approvals.",
		Category:    "analysis",
		Version:     toolVersion,
		Schema:      orderRefSchema(nil),
		Examples: []tool.Example{
			{
				Description:    "Diagnose a rejected order",
				Parameters:     map[string]any{"orderId": "ORD-2024-0042"},
				ExpectedResult: "findings list naming the rejection step and reason",
			},
		},
	}
}

func submitOrderDescriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        NameSubmitOrder,
		Description: "Submit a draft order into its approval workflow.",
		Category:    categoryApproval,
		Version:     toolVersion,
		Schema: orderRefSchema([]tool.Property{
			{Name: "userId", Type: "string", Description: "Requester performing the submission.", Required: true},
		}, "userId"),
	}
}

func approveOrderDescriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        NameApproveOrder,
		Description: "Approve the current step of an order's approval workflow.",
		Category:    categoryApproval,
		Version:     toolVersion,
		Schema: orderRefSchema([]tool.Property{
			{Name: "userId", Type: "string", Description: "Acting approver.", Required: true},
			{Name: "comments", Type: "string", Description: "Optional approval comments."},
		}, "userId"),
	}
}

func rejectOrderDescriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        NameRejectOrder,
		Description: "Reject an order, terminating its approval workflow.",
		Category:    categoryApproval,
		Version:     toolVersion,
		Schema: orderRefSchema([]tool.Property{
			{Name: "userId", Type: "string", Description: "Acting approver.", Required: true},
			{Name: "reason", Type: "string", Description: "Rejection reason.", Required: true},
			{Name: "comments", Type: "string", Description: "Optional rejection comments."},
		}, "userId", "reason"),
	}
}

func cancelOrderDescriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        NameCancelOrder,
		Description: "Cancel an order from any non-terminal state.",
		Category:    categoryApproval,
		Version:     toolVersion,
		Schema: orderRefSchema([]tool.Property{
			{Name: "userId", Type: "string", Description: "Requester cancelling the order.", Required: true},
			{Name: "reason", Type: "string", Description: "Cancellation reason."},
		}, "userId"),
	}
}

// orderRefSchema builds an object schema with a required orderId plus any
// extra properties. The extra required names follow the orderId entry.
func orderRefSchema(extra []tool.Property, required ...string) tool.Schema {
	props := []tool.Property{
		{Name: "orderId", Type: "string", Description: "Order id or order number (e.g. ORD-2024-0042).", Required: true},
	}
	props = append(props, extra...)
	return tool.Schema{
		Type:       "object",
		Properties: props,
		Required:   append([]string{"orderId"}, required...),
	}
}
