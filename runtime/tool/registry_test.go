package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func testDescriptor(name string) Descriptor {
	return Descriptor{
		Name:        name,
		Description: "test tool",
		Schema: Schema{
			Type: "object",
			Properties: []Property{
				{Name: "orderId", Type: "string", Required: true},
			},
			Required: []string{"orderId"},
		},
	}
}

func noopFactory() (Handler, error) {
	return HandlerFunc(func(context.Context, map[string]any) (any, error) {
		return nil, nil
	}), nil
}

func TestRegisterAndResolve(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(testDescriptor("get_order_details"), noopFactory))

	h, ok, err := reg.Resolve("get_order_details")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, h)
}

func TestRegisterDuplicateFails(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(testDescriptor("dup"), noopFactory))
	err := reg.Register(testDescriptor("dup"), noopFactory)
	require.ErrorContains(t, err, "already registered")
}

func TestRegisterRejectsUndeclaredRequired(t *testing.T) {
	reg := NewRegistry()
	d := testDescriptor("broken")
	d.Schema.Required = append(d.Schema.Required, "ghost")
	err := reg.Register(d, noopFactory)
	require.Error(t, err)
}

func TestRegisterRequiresFactory(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(testDescriptor("nofactory"), nil)
	require.ErrorContains(t, err, "factory is required")
}

func TestResolveUnknownTool(t *testing.T) {
	reg := NewRegistry()
	h, ok, err := reg.Resolve("missing")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, h)
}

func TestResolveFactoryError(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(testDescriptor("flaky"), func() (Handler, error) {
		return nil, errors.New("dependency unavailable")
	}))

	h, ok, err := reg.Resolve("flaky")
	require.True(t, ok)
	require.Nil(t, h)
	require.ErrorContains(t, err, "dependency unavailable")
}

func TestReplaceSwapsFactory(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(testDescriptor("swap"), noopFactory))

	require.NoError(t, reg.Replace("swap", func() (Handler, error) {
		return HandlerFunc(func(context.Context, map[string]any) (any, error) {
			return "v2", nil
		}), nil
	}))

	h, ok, err := reg.Resolve("swap")
	require.NoError(t, err)
	require.True(t, ok)
	data, err := h.Handle(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "v2", data)
}

func TestReplaceUnknownToolFails(t *testing.T) {
	reg := NewRegistry()
	err := reg.Replace("missing", noopFactory)
	require.ErrorContains(t, err, "not registered")
}

func TestListSortsByName(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, reg.Register(testDescriptor(name), noopFactory))
	}
	list := reg.List()
	require.Len(t, list, 3)
	require.Equal(t, "alpha", list[0].Name)
	require.Equal(t, "mid", list[1].Name)
	require.Equal(t, "zeta", list[2].Name)
}

func TestWireToolsShape(t *testing.T) {
	reg := NewRegistry()
	minLen := 3
	d := Descriptor{
		Name:        "get_user_orders",
		Description: "List a user's orders.",
		Schema: Schema{
			Type: "object",
			Properties: []Property{
				{Name: "userId", Type: "string", Description: "User id.", Required: true, MinLength: &minLen},
				{Name: "limit", Type: "integer", Description: "Max results."},
			},
			Required: []string{"userId"},
		},
	}
	require.NoError(t, reg.Register(d, noopFactory))

	wire := reg.WireTools()
	require.Len(t, wire, 1)
	wt := wire[0]
	require.Equal(t, "get_user_orders", wt.Name)
	require.Equal(t, "object", wt.Parameters.Type)
	require.Equal(t, []string{"userId"}, wt.Parameters.Required)
	userID, ok := wt.Parameters.Properties["userId"]
	require.True(t, ok)
	require.Equal(t, "string", userID.Type)
	require.NotNil(t, userID.MinLength)
	require.Equal(t, 3, *userID.MinLength)
}
