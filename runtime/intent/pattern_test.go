package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func classify(t *testing.T, message string) Decision {
	t.Helper()
	d, err := NewPatternClassifier().Classify(context.Background(), "u1", message, nil)
	require.NoError(t, err)
	return d
}

func TestPatternOrderDetails(t *testing.T) {
	d := classify(t, "order TEAM-FAIL-001 details")
	require.Equal(t, ActionGetOrderDetails, d.Action)
	require.Equal(t, "TEAM-FAIL-001", d.Params["orderId"])
	require.Equal(t, patternConfidence, d.Confidence)
}

// An order id containing failure-looking tokens must not trip the failure
// keywords once a detail keyword is present.
func TestPatternIDTokensDoNotLeakIntoKeywords(t *testing.T) {
	d := classify(t, "show order TEAM-FAIL-001 status")
	require.Equal(t, ActionGetOrderDetails, d.Action)
	require.Equal(t, "TEAM-FAIL-001", d.Params["orderId"])
}

func TestPatternAnalyzeFailures(t *testing.T) {
	for _, msg := range []string{
		"why did order ORD-2024-0042 fail?",
		"order ORD-2024-0042 was rejected",
		"my order ORD-2024-0042 is stuck",
	} {
		d := classify(t, msg)
		require.Equal(t, ActionAnalyzeOrderFailures, d.Action, msg)
		require.Equal(t, "ORD-2024-0042", d.Params["orderId"], msg)
	}
}

func TestPatternOrderNumberForm(t *testing.T) {
	d := classify(t, "ORDER-NUMBER - TEAM-FAIL-001")
	require.Equal(t, ActionGetOrderDetails, d.Action)
	require.Equal(t, "TEAM-FAIL-001", d.Params["orderId"])
}

func TestPatternBareIdentifier(t *testing.T) {
	d := classify(t, "ORD-2024-0042")
	require.Equal(t, ActionGetOrderDetails, d.Action)
	require.Equal(t, "ORD-2024-0042", d.Params["orderId"])
}

func TestPatternCancelApproveSubmit(t *testing.T) {
	d := classify(t, "please cancel order ORD-2024-0042")
	require.Equal(t, ActionCancelOrder, d.Action)

	d = classify(t, "approve order ORD-2024-0042")
	require.Equal(t, ActionApproveOrder, d.Action)

	d = classify(t, "submit order ORD-2024-0042")
	require.Equal(t, ActionSubmitOrder, d.Action)
}

func TestPatternMyOrders(t *testing.T) {
	d := classify(t, "show my orders")
	require.Equal(t, ActionGetUserOrders, d.Action)
	require.Equal(t, "u1", d.Params["userId"])
}

func TestPatternGeneralHelp(t *testing.T) {
	d := classify(t, "what can you do?")
	require.Equal(t, ActionGeneralHelp, d.Action)
	require.Equal(t, fallbackConfidence, d.Confidence)
	require.Nil(t, d.Params)
}

func TestPatternIsDeterministic(t *testing.T) {
	first := classify(t, "order TEAM-FAIL-001 details")
	for i := 0; i < 10; i++ {
		require.Equal(t, first, classify(t, "order TEAM-FAIL-001 details"))
	}
}
