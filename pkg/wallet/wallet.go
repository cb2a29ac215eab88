package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrOffline 钱包未绑定 RPC 节点
var ErrOffline = errors.New("wallet: no rpc client")

// TxStatus 交易回执状态
type TxStatus string

const (
	TxPending TxStatus = "pending"
	TxSuccess TxStatus = "success"
	TxFailed  TxStatus = "failed"
)

// Wallet 签名身份：私钥 + 绑定的 RPC 节点，构造后不可变
type Wallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	rpcURL     string
	client     *ethclient.Client
	chainID    *big.Int
}

// Option 调整钱包
type Option func(*Wallet)

// WithChainID 固定链 ID，不再通过 RPC 查询
func WithChainID(id int64) Option {
	return func(w *Wallet) {
		if id > 0 {
			w.chainID = big.NewInt(id)
		}
	}
}

// New 解析私钥并连接 RPC 节点
func New(ctx context.Context, privateKeyHex, rpcURL string, opts ...Option) (*Wallet, error) {
	w, err := FromKey(privateKeyHex, opts...)
	if err != nil {
		return nil, err
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接RPC节点失败: %w", err)
	}
	w.rpcURL = rpcURL
	w.client = client
	return w, nil
}

// FromKey 仅从私钥构造离线身份（不连接 RPC）
func FromKey(privateKeyHex string, opts ...Option) (*Wallet, error) {
	key := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if key == "" {
		return nil, errors.New("wallet: empty private key")
	}
	pk, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, fmt.Errorf("解析私钥失败: %w", err)
	}
	w := &Wallet{
		privateKey: pk,
		address:    crypto.PubkeyToAddress(pk.PublicKey),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *Wallet) Address() common.Address { return w.address }

func (w *Wallet) PrivateKey() *ecdsa.PrivateKey { return w.privateKey }

func (w *Wallet) RPCURL() string { return w.rpcURL }

// ChainID 返回固定的链 ID；未固定时通过 eth_chainId 查询
func (w *Wallet) ChainID(ctx context.Context) (*big.Int, error) {
	if w.chainID != nil {
		return new(big.Int).Set(w.chainID), nil
	}
	if w.client == nil {
		return nil, ErrOffline
	}
	id, err := w.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询链ID失败: %w", err)
	}
	return id, nil
}

// TransactionStatus 查询交易回执；回执不存在视为 pending
func (w *Wallet) TransactionStatus(ctx context.Context, txHash string) (TxStatus, error) {
	if w.client == nil {
		return "", ErrOffline
	}
	receipt, err := w.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return TxPending, nil
	}
	if err != nil {
		return "", fmt.Errorf("获取交易回执失败: %w", err)
	}
	if receipt.Status == ethtypes.ReceiptStatusSuccessful {
		return TxSuccess, nil
	}
	return TxFailed, nil
}

// Close 关闭 RPC 连接
func (w *Wallet) Close() {
	if w.client != nil {
		w.client.Close()
	}
}
