package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hardhat 默认账户 #0
const (
	testKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

func newRPCServer(t *testing.T, results map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  results[req.Method],
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFromKeyDerivesAddress(t *testing.T) {
	w, err := FromKey(testKey)
	require.NoError(t, err)
	assert.Equal(t, testAddress, w.Address().Hex())

	noPrefix, err := FromKey(testKey[2:])
	require.NoError(t, err)
	assert.Equal(t, w.Address(), noPrefix.Address())
}

func TestFromKeyRejectsBadKey(t *testing.T) {
	_, err := FromKey("")
	assert.Error(t, err)
	_, err = FromKey("0xnothex")
	assert.Error(t, err)
}

func TestOfflineWallet(t *testing.T) {
	w, err := FromKey(testKey)
	require.NoError(t, err)

	_, err = w.ChainID(context.Background())
	assert.ErrorIs(t, err, ErrOffline)
	_, err = w.TransactionStatus(context.Background(), "0x01")
	assert.ErrorIs(t, err, ErrOffline)
	w.Close()

	pinned, err := FromKey(testKey, WithChainID(137))
	require.NoError(t, err)
	id, err := pinned.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(137), id.Int64())
}

func TestNewResolvesChainIDAndPendingTx(t *testing.T) {
	srv := newRPCServer(t, map[string]any{
		"eth_chainId":               "0x89",
		"eth_getTransactionReceipt": nil,
	})

	w, err := New(context.Background(), testKey, srv.URL)
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, srv.URL, w.RPCURL())

	id, err := w.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(137), id.Int64())

	status, err := w.TransactionStatus(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, TxPending, status)
}
