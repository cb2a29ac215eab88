package shutdown

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShutdownRunsInReverseOrderOnce(t *testing.T) {
	m := NewManager()
	var order []string
	record := func(name string) Handler {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}

	m.OnShutdown("wallet", record("wallet"))
	m.OnShutdown("sdk", func(context.Context) error {
		order = append(order, "sdk")
		return errors.New("already closed")
	})
	m.OnShutdown("poller", record("poller"))
	m.OnShutdown("nil", nil)

	m.Shutdown(context.Background())
	m.Shutdown(context.Background())

	assert.Equal(t, []string{"poller", "sdk", "wallet"}, order)
}

func TestShutdownWithExpiredContextStillRunsCallbacks(t *testing.T) {
	m := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var got error
	m.OnShutdown("status", func(ctx context.Context) error {
		got = ctx.Err()
		return nil
	})
	m.Shutdown(ctx)
	assert.ErrorIs(t, got, context.Canceled)
}
