package polynance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/JinTanba/conditional-token-index/pkg/cache"
	sdkhttp "github.com/JinTanba/conditional-token-index/pkg/sdk/http"
	"github.com/JinTanba/conditional-token-index/pkg/wallet"
)

// GetPendingOrdersIds 返回待验证订单 id（排序后的快照）
func (c *Client) GetPendingOrdersIds() []string {
	return cache.SortedKeys(c.pending.Snapshot())
}

// ScanPendingPriceData 拉取待验证订单的价格数据并刷新本地缓存；
// 已结算的订单从待验证集合中移除。返回是否存在可验证的数据
func (c *Client) ScanPendingPriceData(ctx context.Context) (bool, error) {
	ids := c.GetPendingOrdersIds()
	if len(ids) == 0 {
		return false, nil
	}

	var resp pendingPricesResponse
	err := c.http.Do(ctx, http.MethodGet, "/prices/pending", &sdkhttp.RequestOptions{
		Params: map[string]any{"orderIds": ids},
	}, &resp)
	if err != nil {
		return false, fmt.Errorf("scan pending price data: %w", err)
	}

	// 以本次响应为准，响应中缺失的订单不再保留旧价格
	for _, id := range ids {
		c.prices.Delete(id)
	}

	verifiable := false
	for _, p := range resp.Prices {
		if p.OrderID == "" {
			continue
		}
		if p.Settled {
			c.pending.Delete(p.OrderID)
			c.prices.Delete(p.OrderID)
			c.log.WithField("orderId", p.OrderID).Info("订单价格已结算，移出待验证集合")
			continue
		}
		if _, tracked := c.pending.Get(p.OrderID); !tracked {
			continue
		}
		c.prices.Set(p.OrderID, p, 0)
		if p.Verifiable {
			verifiable = true
		}
	}
	return verifiable, nil
}

// verifiablePrices 返回仍在待验证集合中且可验证的价格数据（按订单 id 排序）
func (c *Client) verifiablePrices() []PendingPrice {
	snap := c.prices.Snapshot()
	out := make([]PendingPrice, 0, len(snap))
	for _, id := range cache.SortedKeys(snap) {
		p := snap[id]
		if !p.Verifiable {
			continue
		}
		if _, ok := c.pending.Get(id); !ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

// VerifyPrice 请求服务端发送预言机交易验证价格；
// 验证成功的订单移出待验证集合，返回的交易哈希通过 RPC 查询一次状态
func (c *Client) VerifyPrice(ctx context.Context) error {
	prices := c.verifiablePrices()
	if len(prices) == 0 {
		return ErrNoPendingPrice
	}
	ids := make([]string, len(prices))
	for i, p := range prices {
		ids[i] = p.OrderID
	}

	var resp verifyPriceResponse
	err := c.http.Do(ctx, http.MethodPost, "/prices/verify", &sdkhttp.RequestOptions{
		Data: verifyPriceRequest{OrderIDs: ids, Prices: prices},
	}, &resp)
	if err != nil {
		return fmt.Errorf("verify price: %w", err)
	}

	var failed []string
	for _, r := range resp.Results {
		entry := c.log.WithField("orderId", r.OrderID)
		if r.TxHash != "" {
			entry = entry.WithField("tx", r.TxHash)
			c.logTxStatus(ctx, r.OrderID, r.TxHash)
		}
		if r.Error != "" || !r.Verified {
			failed = append(failed, fmt.Sprintf("%s: %s", r.OrderID, orDefault(r.Error, "not verified")))
			continue
		}
		c.pending.Delete(r.OrderID)
		c.prices.Delete(r.OrderID)
		entry.Info("价格已验证")
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		return fmt.Errorf("verify price: %d/%d orders failed: %s", len(failed), len(resp.Results), strings.Join(failed, "; "))
	}
	return nil
}

func (c *Client) logTxStatus(ctx context.Context, orderID, txHash string) {
	status, err := c.wallet.TransactionStatus(ctx, txHash)
	entry := c.log.WithField("orderId", orderID).WithField("tx", txHash)
	switch {
	case errors.Is(err, wallet.ErrOffline):
		return
	case err != nil:
		entry.Warnf("查询预言机交易状态失败: %v", err)
	default:
		entry.Infof("预言机交易状态: %s", status)
	}
}
