package polynance

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/JinTanba/conditional-token-index/pkg/cache"
	"github.com/JinTanba/conditional-token-index/pkg/logger"
	sdkhttp "github.com/JinTanba/conditional-token-index/pkg/sdk/http"
	"github.com/JinTanba/conditional-token-index/pkg/wallet"
)

// 价格数据缓存时间；超时后等待下一次扫描刷新
const priceTTL = 5 * time.Minute

// Options 客户端参数
type Options struct {
	Wallet     *wallet.Wallet
	APIBaseURL string
	// ChainID 为 0 时从钱包（RPC）解析
	ChainID       int64
	SaltGenerator func() int64
	HTTPOptions   []sdkhttp.Option
}

// Client Polynance API 服务的 Go 客户端
type Client struct {
	http    *sdkhttp.Client
	wallet  *wallet.Wallet
	builder *OrderBuilder
	chainID *big.Int
	log     *logrus.Entry

	// pending 订单 id -> 上下文；prices 订单 id -> 待验证价格
	pending *cache.InMemoryCache[string, OrderContext]
	prices  *cache.InMemoryCache[string, PendingPrice]

	newKey func() string
}

// New 解析链 ID 并创建客户端
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.Wallet == nil {
		return nil, errors.New("polynance: wallet is required")
	}
	if strings.TrimSpace(opts.APIBaseURL) == "" {
		return nil, errors.New("polynance: api base url is required")
	}

	var chainID *big.Int
	if opts.ChainID > 0 {
		chainID = big.NewInt(opts.ChainID)
	} else {
		id, err := opts.Wallet.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve chain id: %w", err)
		}
		chainID = id
	}

	httpOpts := append([]sdkhttp.Option{sdkhttp.WithRetry(0)}, opts.HTTPOptions...)
	c := &Client{
		http:    sdkhttp.NewClient(opts.APIBaseURL, httpOpts...),
		wallet:  opts.Wallet,
		builder: NewOrderBuilder(opts.Wallet.PrivateKey(), opts.Wallet.Address(), chainID, opts.SaltGenerator),
		chainID: chainID,
		log:     logger.Component("polynance"),
		pending: cache.NewInMemoryCache[string, OrderContext](0),
		prices:  cache.NewInMemoryCache[string, PendingPrice](priceTTL),
		newKey:  uuid.NewString,
	}
	c.log.Infof("Polynance 客户端已创建: api=%s chainId=%s signer=%s", c.http.BaseURL(), chainID, opts.Wallet.Address().Hex())
	return c, nil
}

func (c *Client) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

// Close 停止缓存清理
func (c *Client) Close() {
	c.pending.Stop()
	c.prices.Stop()
}

// BuildOrder 请求服务端解析市场与数量，然后在本地签名
func (c *Client) BuildOrder(ctx context.Context, params ExecuteOrderParams) (*SignedOrder, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid order %s: %w", params, err)
	}

	var resp prepareOrderResponse
	err := c.http.Do(ctx, http.MethodPost, "/orders/prepare", &sdkhttp.RequestOptions{
		Data: params,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("prepare order %s: %w", params.MarketIDOrSlug, err)
	}

	signed, err := c.builder.Sign(params, resp.Draft)
	if err != nil {
		return nil, fmt.Errorf("sign order %s: %w", params.MarketIDOrSlug, err)
	}
	c.log.Debugf("订单已签名: %s", signed)
	return signed, nil
}

// ExecuteOrder 提交已签名订单；成功后订单进入待验证集合
func (c *Client) ExecuteOrder(ctx context.Context, order *SignedOrder) (*ExecutionResult, error) {
	if order == nil {
		return nil, errors.New("polynance: nil signed order")
	}

	var result ExecutionResult
	err := c.http.Do(ctx, http.MethodPost, "/orders/execute", &sdkhttp.RequestOptions{
		Headers: map[string]string{"Idempotency-Key": c.newKey()},
		Data:    executeOrderRequest{Order: order, Owner: c.wallet.Address().Hex()},
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("execute order %s: %w", order.MarketID, err)
	}
	if !result.Success {
		return nil, fmt.Errorf("execute order %s rejected: %s", order.MarketID, orDefault(result.ErrorMsg, "unknown error"))
	}
	if result.OrderID == "" {
		return nil, fmt.Errorf("execute order %s: empty order id", order.MarketID)
	}

	orderCtx := c.AsContext(&result)
	orderCtx.Provider = order.Request.Provider
	if orderCtx.Market == "" {
		orderCtx.Market = order.Request.MarketIDOrSlug
	}
	if orderCtx.Position == "" {
		orderCtx.Position = order.Request.PositionIDOrName
	}
	c.pending.Set(result.OrderID, orderCtx, 0)
	c.log.WithField("orderId", result.OrderID).Infof("订单已执行: status=%s", result.Status)
	return &result, nil
}

// AsContext 把执行结果投影为可读上下文（抵押品一侧为 usdcFlow）
func (c *Client) AsContext(result *ExecutionResult) OrderContext {
	if result == nil {
		return OrderContext{}
	}
	usdc, shares := result.TakingAmount, result.MakingAmount
	if result.Side == SideBuy {
		usdc, shares = result.MakingAmount, result.TakingAmount
	}
	return OrderContext{
		OrderID:  result.OrderID,
		Market:   result.MarketID,
		Position: result.Outcome,
		Side:     result.Side,
		USDCFlow: usdc,
		Shares:   shares,
		Price:    result.ProposedPrice,
		Status:   result.Status,
		TxHash:   result.TransactionHash,
	}
}

// PendingOrder 返回待验证订单的上下文
func (c *Client) PendingOrder(orderID string) (OrderContext, bool) {
	return c.pending.Get(orderID)
}
