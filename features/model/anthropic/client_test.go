package anthropic

import (
	"context"
	"errors"
	"net/http"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/require"

	"github.com/orderflow-ai/orderflow/runtime/model"
)

// fakeMessages records request bodies and replays a canned message.
type fakeMessages struct {
	bodies []sdk.MessageNewParams
	msg    *sdk.Message
	err    error
}

func (f *fakeMessages) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	f.bodies = append(f.bodies, body)
	if f.err != nil {
		return nil, f.err
	}
	return f.msg, nil
}

func textMessage(text string, in, out int64) *sdk.Message {
	return &sdk.Message{
		Content: []sdk.ContentBlockUnion{{Type: "text", Text: text}},
		Usage:   sdk.Usage{InputTokens: in, OutputTokens: out},
	}
}

func newAnthropicClient(t *testing.T, fake *fakeMessages, opts Options) *Client {
	t.Helper()
	if opts.DefaultModel == "" {
		opts.DefaultModel = "claude-sonnet-4-20250514"
	}
	c, err := New(fake, opts)
	require.NoError(t, err)
	return c
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(nil, Options{DefaultModel: "m"})
	require.EqualError(t, err, "anthropic client is required")
	_, err = New(&fakeMessages{}, Options{})
	require.EqualError(t, err, "default model identifier is required")
}

func TestNewFromAPIKeyRequiresKey(t *testing.T) {
	_, err := NewFromAPIKey("", "m")
	require.EqualError(t, err, "api key is required")
}

func TestCompleteReturnsTextAndUsage(t *testing.T) {
	fake := &fakeMessages{msg: textMessage("hello there", 12, 7)}
	c := newAnthropicClient(t, fake, Options{})

	resp, err := c.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "hello there", resp.Text)
	require.Equal(t, model.TokenUsage{InputTokens: 12, OutputTokens: 7, TotalTokens: 19}, resp.Usage)
}

func TestCompleteConcatenatesTextBlocks(t *testing.T) {
	fake := &fakeMessages{msg: &sdk.Message{
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "first "},
			{Type: "tool_use"},
			{Type: "text", Text: "second"},
		},
	}}
	c := newAnthropicClient(t, fake, Options{})

	resp, err := c.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	require.Equal(t, "first second", resp.Text)
}

func TestCompleteSplitsSystemTurns(t *testing.T) {
	fake := &fakeMessages{msg: textMessage("ok", 1, 1)}
	c := newAnthropicClient(t, fake, Options{})

	_, err := c.Complete(context.Background(), model.Request{
		Messages: []model.Message{
			{Role: model.RoleSystem, Content: "you are a router"},
			{Role: model.RoleUser, Content: "question"},
			{Role: model.RoleAssistant, Content: "answer"},
			{Role: model.RoleUser, Content: "followup"},
		},
	})
	require.NoError(t, err)

	require.Len(t, fake.bodies, 1)
	body := fake.bodies[0]
	require.Len(t, body.System, 1)
	require.Equal(t, "you are a router", body.System[0].Text)
	require.Len(t, body.Messages, 3)
	require.Equal(t, "user", string(body.Messages[0].Role))
	require.Equal(t, "assistant", string(body.Messages[1].Role))
	require.Equal(t, "user", string(body.Messages[2].Role))
}

func TestCompleteAppliesDefaults(t *testing.T) {
	fake := &fakeMessages{msg: textMessage("ok", 1, 1)}
	c := newAnthropicClient(t, fake, Options{DefaultModel: "claude-sonnet-4-20250514", Temperature: 0.3})

	_, err := c.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	body := fake.bodies[0]
	require.Equal(t, sdk.Model("claude-sonnet-4-20250514"), body.Model)
	require.Equal(t, int64(1024), body.MaxTokens)
	require.Equal(t, 0.3, body.Temperature.Value)
}

func TestCompleteHonorsRequestOverrides(t *testing.T) {
	fake := &fakeMessages{msg: textMessage("ok", 1, 1)}
	c := newAnthropicClient(t, fake, Options{MaxTokens: 2048})

	_, err := c.Complete(context.Background(), model.Request{
		Model:       "claude-opus-4-20250514",
		MaxTokens:   256,
		Temperature: 0.9,
		Messages:    []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	body := fake.bodies[0]
	require.Equal(t, sdk.Model("claude-opus-4-20250514"), body.Model)
	require.Equal(t, int64(256), body.MaxTokens)
	require.Equal(t, 0.9, body.Temperature.Value)
}

func TestCompleteRejectsEmptyAndUnknownRoles(t *testing.T) {
	c := newAnthropicClient(t, &fakeMessages{}, Options{})

	_, err := c.Complete(context.Background(), model.Request{})
	require.ErrorContains(t, err, "messages are required")

	_, err = c.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: "narrator", Content: "hi"}},
	})
	require.ErrorContains(t, err, `unsupported message role "narrator"`)

	_, err = c.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: model.RoleSystem, Content: "only system"}},
	})
	require.ErrorContains(t, err, "at least one user or assistant message")
}

func TestCompleteWrapsRateLimit(t *testing.T) {
	fake := &fakeMessages{err: &sdk.Error{StatusCode: http.StatusTooManyRequests}}
	c := newAnthropicClient(t, fake, Options{})

	_, err := c.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	require.ErrorIs(t, err, model.ErrRateLimited)
}

func TestCompletePassesThroughOtherErrors(t *testing.T) {
	fake := &fakeMessages{err: errors.New("upstream down")}
	c := newAnthropicClient(t, fake, Options{})

	_, err := c.Complete(context.Background(), model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Content: "hi"}},
	})
	require.NotErrorIs(t, err, model.ErrRateLimited)
	require.ErrorContains(t, err, "upstream down")
}
