package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orderflow-ai/orderflow/runtime/model"
)

type scriptedClient struct {
	calls int
	errs  []error
}

func (c *scriptedClient) Complete(context.Context, model.Request) (model.Response, error) {
	var err error
	if c.calls < len(c.errs) {
		err = c.errs[c.calls]
	}
	c.calls++
	if err != nil {
		return model.Response{}, err
	}
	return model.Response{Text: "ok"}, nil
}

func rateLimitedErr() error {
	return fmt.Errorf("%w: status 429", model.ErrRateLimited)
}

func userRequest(content string) model.Request {
	return model.Request{Messages: []model.Message{{Role: model.RoleUser, Content: content}}}
}

func TestNewAdaptiveRateLimiterDefaults(t *testing.T) {
	l := NewAdaptiveRateLimiter(0, 0)
	require.Equal(t, float64(60000), l.TPM())
}

func TestNewAdaptiveRateLimiterClampsMax(t *testing.T) {
	l := NewAdaptiveRateLimiter(10000, 500)
	l.probe()
	require.LessOrEqual(t, l.TPM(), float64(10000))
}

func TestMiddlewarePassesThrough(t *testing.T) {
	client := &scriptedClient{}
	wrapped := NewAdaptiveRateLimiter(600000, 600000).Middleware()(client)

	resp, err := wrapped.Complete(context.Background(), userRequest("hi"))
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Text)
	require.Equal(t, 1, client.calls)
}

func TestMiddlewareNilClient(t *testing.T) {
	require.Nil(t, NewAdaptiveRateLimiter(1000, 1000).Middleware()(nil))
}

func TestBackoffHalvesBudget(t *testing.T) {
	client := &scriptedClient{errs: []error{rateLimitedErr()}}
	l := NewAdaptiveRateLimiter(60000, 120000)
	wrapped := l.Middleware()(client)

	_, err := wrapped.Complete(context.Background(), userRequest("hi"))
	require.ErrorIs(t, err, model.ErrRateLimited)
	require.Equal(t, float64(30000), l.TPM())
}

func TestBackoffClampsToMinimum(t *testing.T) {
	l := NewAdaptiveRateLimiter(60000, 60000)
	for i := 0; i < 20; i++ {
		l.backoff()
	}
	require.Equal(t, float64(6000), l.TPM(), "budget must not fall below a tenth of the initial")
}

func TestProbeRecoversAfterSuccess(t *testing.T) {
	client := &scriptedClient{errs: []error{rateLimitedErr(), nil}}
	l := NewAdaptiveRateLimiter(60000, 120000)
	wrapped := l.Middleware()(client)

	_, _ = wrapped.Complete(context.Background(), userRequest("hi"))
	require.Equal(t, float64(30000), l.TPM())

	_, err := wrapped.Complete(context.Background(), userRequest("hi"))
	require.NoError(t, err)
	require.Equal(t, float64(33000), l.TPM(), "each success recovers a slice of the initial budget")
}

func TestProbeClampsToMaximum(t *testing.T) {
	l := NewAdaptiveRateLimiter(60000, 63000)
	for i := 0; i < 10; i++ {
		l.probe()
	}
	require.Equal(t, float64(63000), l.TPM())
}

func TestNonRateLimitErrorsLeaveBudgetAlone(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("bad request")}}
	l := NewAdaptiveRateLimiter(60000, 120000)
	wrapped := l.Middleware()(client)

	_, err := wrapped.Complete(context.Background(), userRequest("hi"))
	require.Error(t, err)
	require.Equal(t, float64(60000), l.TPM())
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	// Budget of 60 TPM with a burst far below the request estimate forces
	// WaitN to fail rather than block for minutes.
	l := NewAdaptiveRateLimiter(60, 60)
	client := &scriptedClient{}
	wrapped := l.Middleware()(client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := wrapped.Complete(ctx, userRequest(strings.Repeat("x", 3000)))
	require.Error(t, err)
	require.Zero(t, client.calls, "the underlying client must not be called when the wait fails")
}

func TestEstimateTokens(t *testing.T) {
	require.Equal(t, 500, estimateTokens(model.Request{}))
	require.Equal(t, 501, estimateTokens(userRequest("abc")))
	require.Equal(t, 500+1000, estimateTokens(userRequest(strings.Repeat("x", 3000))))
}
