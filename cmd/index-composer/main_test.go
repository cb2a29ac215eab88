package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JinTanba/conditional-token-index/internal/composer"
	"github.com/JinTanba/conditional-token-index/pkg/config"
	"github.com/JinTanba/conditional-token-index/pkg/polynance"
	"github.com/JinTanba/conditional-token-index/pkg/wallet"
)

const testKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// nopSDK 只用于确认 bootstrap 的装配
type nopSDK struct{}

func (nopSDK) BuildOrder(context.Context, polynance.ExecuteOrderParams) (*polynance.SignedOrder, error) {
	return &polynance.SignedOrder{}, nil
}
func (nopSDK) ExecuteOrder(context.Context, *polynance.SignedOrder) (*polynance.ExecutionResult, error) {
	return &polynance.ExecutionResult{}, nil
}
func (nopSDK) AsContext(*polynance.ExecutionResult) polynance.OrderContext { return polynance.OrderContext{} }
func (nopSDK) ScanPendingPriceData(context.Context) (bool, error)          { return false, nil }
func (nopSDK) GetPendingOrdersIds() []string                               { return nil }
func (nopSDK) VerifyPrice(context.Context) error                           { return nil }

func countingFactory(calls *int) sdkFactory {
	return func(context.Context, *config.Config, *wallet.Wallet) (composer.SDK, func(), error) {
		*calls++
		return nopSDK{}, func() {}, nil
	}
}

func setEnv(t *testing.T, rpc, key string) {
	t.Helper()
	t.Setenv("POLYGON_RPC", rpc)
	t.Setenv("PRIVATE_KEY", key)
	t.Setenv("CHAIN_ID", "137")
	t.Setenv("ORDERS_FILE", "")
}

func TestBootstrapMissingSecretsNeverCreatesSDK(t *testing.T) {
	for _, tc := range []struct{ rpc, key string }{
		{"", ""},
		{"http://127.0.0.1:8545", ""},
		{"", testKey},
	} {
		setEnv(t, tc.rpc, tc.key)
		calls := 0
		app, _, _, err := bootstrap(context.Background(), countingFactory(&calls))
		require.ErrorIs(t, err, config.ErrMissingSecrets)
		assert.Nil(t, app)
		assert.Equal(t, 0, calls)
	}
}

func TestBootstrapInvalidKeyNeverCreatesSDK(t *testing.T) {
	setEnv(t, "http://127.0.0.1:8545", "0xnot-a-key")
	calls := 0
	_, _, _, err := bootstrap(context.Background(), countingFactory(&calls))
	require.Error(t, err)
	assert.Equal(t, 0, calls)
}

func TestBootstrapBuildsIdleApp(t *testing.T) {
	// http RPC 连接是惰性的，CHAIN_ID 固定后不需要节点
	setEnv(t, "http://127.0.0.1:8545", testKey)
	calls := 0
	app, cfg, cleanup, err := bootstrap(context.Background(), countingFactory(&calls))
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(137), cfg.ChainID)
	assert.Equal(t, composer.StateIdle, app.State())
	assert.Equal(t, 5, app.Status().Orders)
}
