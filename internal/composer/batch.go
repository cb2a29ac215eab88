package composer

import (
	"context"
	"fmt"

	"github.com/JinTanba/conditional-token-index/pkg/logger"
	"github.com/JinTanba/conditional-token-index/pkg/polynance"
)

// SubmitBatch 按顺序逐笔构建并执行订单；第 N 笔执行完成前不会开始第 N+1 笔。
// 任一步失败立即返回，后续订单不会被处理
func SubmitBatch(ctx context.Context, sdk SDK, orders []polynance.ExecuteOrderParams) error {
	log := logger.Component("composer")

	for i, order := range orders {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := i + 1

		signed, err := sdk.BuildOrder(ctx, order)
		if err != nil {
			return fmt.Errorf("build order #%d (%s): %w", n, order.MarketIDOrSlug, err)
		}
		log.Infof("Executing order... %s", signed)

		result, err := sdk.ExecuteOrder(ctx, signed)
		if err != nil {
			return fmt.Errorf("execute order #%d (%s): %w", n, order.MarketIDOrSlug, err)
		}
		log.Infof("open order: %s", sdk.AsContext(result))
	}

	log.Infof("批量下单完成: %d 笔", len(orders))
	return nil
}
