package composer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/JinTanba/conditional-token-index/pkg/logger"
)

// Ticker 可替换的定时器（测试中用假时钟驱动）
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker { return timeTicker{t: time.NewTicker(d)} }

// PollerOption 调整 PriceVerifier
type PollerOption func(*PriceVerifier)

// WithTicker 替换定时器工厂
func WithTicker(newTicker func(time.Duration) Ticker) PollerOption {
	return func(v *PriceVerifier) {
		if newTicker != nil {
			v.newTicker = newTicker
		}
	}
}

// WithClock 替换时钟
func WithClock(now func() time.Time) PollerOption {
	return func(v *PriceVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// Stats 轮询统计
type Stats struct {
	Ticks     uint64    `json:"ticks"`
	Dropped   uint64    `json:"dropped"`
	Verifies  uint64    `json:"verifies"`
	Errors    uint64    `json:"errors"`
	LastError string    `json:"lastError,omitempty"`
	LastTick  time.Time `json:"lastTick"`
}

// PriceVerifier 周期性扫描待验证价格，有数据时触发验证。
// 所有 tick 在 Run 的 goroutine 中串行执行；上一个 tick 尚未结束时到达的 tick 直接丢弃
type PriceVerifier struct {
	sdk       SDK
	interval  time.Duration
	newTicker func(time.Duration) Ticker
	now       func() time.Time
	log       *logrus.Entry

	mu       sync.Mutex
	stats    Stats
	lastDone time.Time
}

func NewPriceVerifier(sdk SDK, interval time.Duration, opts ...PollerOption) *PriceVerifier {
	v := &PriceVerifier{
		sdk:       sdk,
		interval:  interval,
		newTicker: newTimeTicker,
		now:       time.Now,
		log:       logger.Component("price-verifier"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Tick 执行一次扫描：scan -> ids -> 有可验证数据时 verify
func (v *PriceVerifier) Tick(ctx context.Context) error {
	verifyAble, err := v.sdk.ScanPendingPriceData(ctx)
	if err != nil {
		return fmt.Errorf("scan pending price data: %w", err)
	}
	orderIDs := v.sdk.GetPendingOrdersIds()
	v.log.Infof("scanPendingPriceData %v", verifyAble)
	v.log.Infof("pendingPriceData %v", orderIDs)

	if !verifyAble {
		v.log.Info("no pending price data")
		return nil
	}

	if err := v.sdk.VerifyPrice(ctx); err != nil {
		return fmt.Errorf("verify price: %w", err)
	}
	v.mu.Lock()
	v.stats.Verifies++
	v.mu.Unlock()
	return nil
}

// Run 按周期执行 Tick 直到 ctx 取消；单个 tick 的错误只记录日志
func (v *PriceVerifier) Run(ctx context.Context) error {
	ticker := v.newTicker(v.interval)
	defer ticker.Stop()

	v.log.Infof("价格验证轮询已启动: interval=%s", v.interval)
	for {
		select {
		case <-ctx.Done():
			v.log.Info("价格验证轮询已停止")
			return ctx.Err()
		case at := <-ticker.C():
			v.handleTick(ctx, at)
		}
	}
}

func (v *PriceVerifier) handleTick(ctx context.Context, at time.Time) {
	v.mu.Lock()
	if !v.lastDone.IsZero() && at.Before(v.lastDone) {
		// 在上一个 tick 执行期间触发
		v.stats.Dropped++
		v.mu.Unlock()
		return
	}
	v.stats.Ticks++
	v.stats.LastTick = at
	v.mu.Unlock()

	err := v.safeTick(ctx)

	v.mu.Lock()
	v.lastDone = v.now()
	if err != nil && !errors.Is(err, context.Canceled) {
		v.stats.Errors++
		v.stats.LastError = err.Error()
	}
	v.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		v.log.Errorf("Error in verification interval: %v", err)
	}
}

// safeTick 单个 tick 的 panic 转为 error，不影响后续 tick
func (v *PriceVerifier) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
		}
	}()
	return v.Tick(ctx)
}

// Stats 返回统计快照
func (v *PriceVerifier) Stats() Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stats
}
