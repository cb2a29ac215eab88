package composer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JinTanba/conditional-token-index/pkg/polynance"
)

// mockSDK 记录调用顺序，支持按 "方法" 或 "方法:市场" 注入错误
type mockSDK struct {
	mu sync.Mutex

	Verifiable bool
	PendingIDs []string

	// Call tracking
	Calls map[string]int
	Log   []string

	// Error injection
	ErrorOnNext map[string]error

	// onVerify 在 VerifyPrice 中调用（阻塞或 panic），需在 Run 之前设置
	onVerify func()
}

func newMockSDK() *mockSDK {
	return &mockSDK{
		Calls:       make(map[string]int),
		ErrorOnNext: make(map[string]error),
	}
}

func (m *mockSDK) trackCall(name, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[name]++
	entry := name
	if key != "" {
		entry = name + ":" + key
	}
	m.Log = append(m.Log, entry)
	for _, k := range []string{entry, name} {
		if err, ok := m.ErrorOnNext[k]; ok {
			delete(m.ErrorOnNext, k)
			return err
		}
	}
	return nil
}

func (m *mockSDK) set(fn func(m *mockSDK)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

func (m *mockSDK) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[name]
}

func (m *mockSDK) log() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Log...)
}

func (m *mockSDK) BuildOrder(_ context.Context, params polynance.ExecuteOrderParams) (*polynance.SignedOrder, error) {
	if err := m.trackCall("BuildOrder", params.MarketIDOrSlug); err != nil {
		return nil, err
	}
	return &polynance.SignedOrder{Request: params, MarketID: params.MarketIDOrSlug}, nil
}

func (m *mockSDK) ExecuteOrder(_ context.Context, order *polynance.SignedOrder) (*polynance.ExecutionResult, error) {
	if err := m.trackCall("ExecuteOrder", order.MarketID); err != nil {
		return nil, err
	}
	return &polynance.ExecutionResult{Success: true, OrderID: "ord-" + order.MarketID, MarketID: order.MarketID}, nil
}

func (m *mockSDK) AsContext(result *polynance.ExecutionResult) polynance.OrderContext {
	return polynance.OrderContext{OrderID: result.OrderID, Market: result.MarketID}
}

func (m *mockSDK) ScanPendingPriceData(context.Context) (bool, error) {
	if err := m.trackCall("ScanPendingPriceData", ""); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Verifiable, nil
}

func (m *mockSDK) GetPendingOrdersIds() []string {
	_ = m.trackCall("GetPendingOrdersIds", "")
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.PendingIDs...)
}

func (m *mockSDK) VerifyPrice(context.Context) error {
	if err := m.trackCall("VerifyPrice", ""); err != nil {
		return err
	}
	if m.onVerify != nil {
		m.onVerify()
	}
	return nil
}

// fakeTicker 由测试手动推送 tick
type fakeTicker struct {
	interval time.Duration
	ch       chan time.Time
	stopped  atomic.Bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               { f.stopped.Store(true) }

// fakeTickers 返回 ticker 工厂以及接收已创建 ticker 的通道
func fakeTickers() (func(time.Duration) Ticker, chan *fakeTicker) {
	created := make(chan *fakeTicker, 4)
	return func(d time.Duration) Ticker {
		ft := &fakeTicker{interval: d, ch: make(chan time.Time)}
		created <- ft
		return ft
	}, created
}
