package composer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JinTanba/conditional-token-index/pkg/config"
)

func TestAppStartsPollingAfterBatch(t *testing.T) {
	sdk := newMockSDK()
	sdk.PendingIDs = []string{"ord-519068"}
	factory, created := fakeTickers()

	app := NewApp(sdk, config.DefaultOrders(),
		WithPollInterval(config.PollInterval),
		WithVerifierOptions(WithTicker(factory)))
	assert.Equal(t, StateIdle, app.State())

	require.NoError(t, app.Start(context.Background()))
	assert.Equal(t, StatePolling, app.State())
	assert.Equal(t, 5, sdk.count("ExecuteOrder"))

	var ft *fakeTicker
	select {
	case ft = <-created:
	case <-time.After(time.Second):
		t.Fatal("poller was not started")
	}
	assert.Equal(t, config.PollInterval, ft.interval)
	assert.True(t, app.Polling())

	ft.ch <- time.Now().Add(time.Hour)
	require.Eventually(t, func() bool { return sdk.count("ScanPendingPriceData") == 1 }, time.Second, 5*time.Millisecond)

	st := app.Status()
	assert.Equal(t, StatePolling, st.State)
	assert.Equal(t, 5, st.Orders)
	assert.Equal(t, []string{"ord-519068"}, st.PendingOrderIDs)

	app.Stop()
	assert.Equal(t, StateStopped, app.State())
	assert.False(t, app.Polling())
	assert.True(t, ft.stopped.Load())
	app.Stop()

	assert.ErrorIs(t, app.Start(context.Background()), ErrAlreadyStarted)
}

func TestAppBatchFailureNeverStartsPolling(t *testing.T) {
	sdk := newMockSDK()
	sdk.ErrorOnNext["ExecuteOrder:535793"] = errors.New("insufficient balance")
	factory, created := fakeTickers()

	app := NewApp(sdk, config.DefaultOrders(), WithVerifierOptions(WithTicker(factory)))
	err := app.Start(context.Background())
	require.Error(t, err)

	assert.Equal(t, StateBatchFailed, app.State())
	assert.False(t, app.Polling())
	assert.Len(t, created, 0)
	assert.Equal(t, 3, sdk.count("BuildOrder"))
	assert.Equal(t, 3, sdk.count("ExecuteOrder"))
	assert.Equal(t, 0, sdk.count("ScanPendingPriceData"))
	assert.Contains(t, app.Status().BatchError, "insufficient balance")

	app.Stop()
	assert.Equal(t, StateStopped, app.State())
}

func TestAppStopsWhenParentContextCancelled(t *testing.T) {
	sdk := newMockSDK()
	factory, created := fakeTickers()
	app := NewApp(sdk, config.DefaultOrders()[:1], WithVerifierOptions(WithTicker(factory)))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, app.Start(ctx))
	ft := <-created

	cancel()
	require.Eventually(t, func() bool { return app.State() == StateStopped }, time.Second, 5*time.Millisecond)
	assert.False(t, app.Polling())
	assert.True(t, ft.stopped.Load())
	assert.Equal(t, StateStopped, app.Status().State)
	app.Stop()
	assert.Equal(t, StateStopped, app.State())
}
