package container

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	c := New()
	c.Register("answer", 42)

	got, err := c.Get("answer")
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestGetUnknownFails(t *testing.T) {
	c := New()
	_, err := c.Get("missing")
	assert.ErrorIs(t, err, ErrServiceNotFound)
}

func TestFactoryRunsExactlyOnce(t *testing.T) {
	c := New()
	calls := 0
	c.RegisterFactory("lazy", func() (any, error) {
		calls++
		return "built", nil
	})

	for i := 0; i < 3; i++ {
		got, err := c.Get("lazy")
		require.NoError(t, err)
		assert.Equal(t, "built", got)
	}
	assert.Equal(t, 1, calls, "factory must run at most once")
}

func TestFactoryErrorPropagates(t *testing.T) {
	c := New()
	c.RegisterFactory("broken", func() (any, error) {
		return nil, errors.New("boom")
	})

	_, err := c.Get("broken")
	assert.Error(t, err)
}

func TestShutdownRunsHooksInReverseOrder(t *testing.T) {
	c := New()
	var order []string
	c.OnShutdown("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	c.OnShutdown("second", func(context.Context) error {
		order = append(order, "second")
		return nil
	})
	c.OnShutdown("third", func(context.Context) error {
		order = append(order, "third")
		return nil
	})

	c.Shutdown(context.Background())
	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestShutdownContinuesPastFailingHook(t *testing.T) {
	c := New()
	var order []string
	c.OnShutdown("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	c.OnShutdown("failing", func(context.Context) error {
		return errors.New("hook failed")
	})

	c.Shutdown(context.Background())
	assert.Equal(t, []string{"first"}, order, "hooks after a failure still run")
}

func TestShutdownRunsOnce(t *testing.T) {
	c := New()
	calls := 0
	c.OnShutdown("hook", func(context.Context) error {
		calls++
		return nil
	})

	c.Shutdown(context.Background())
	c.Shutdown(context.Background())
	assert.Equal(t, 1, calls)
}

func TestMustGetTyped(t *testing.T) {
	c := New()
	c.Register("text", "hello")

	assert.Equal(t, "hello", MustGet[string](c, "text"))
	assert.Panics(t, func() { MustGet[int](c, "text") })
	assert.Panics(t, func() { MustGet[string](c, "missing") })
}
