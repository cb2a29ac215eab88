package composer

import (
	"context"

	"github.com/JinTanba/conditional-token-index/pkg/polynance"
)

// SDK 交易后端的能力集合，*polynance.Client 是默认实现
type SDK interface {
	BuildOrder(ctx context.Context, params polynance.ExecuteOrderParams) (*polynance.SignedOrder, error)
	ExecuteOrder(ctx context.Context, order *polynance.SignedOrder) (*polynance.ExecutionResult, error)
	AsContext(result *polynance.ExecutionResult) polynance.OrderContext

	ScanPendingPriceData(ctx context.Context) (bool, error)
	GetPendingOrdersIds() []string
	// VerifyPrice 由服务端发送预言机交易
	VerifyPrice(ctx context.Context) error
}

var _ SDK = (*polynance.Client)(nil)
