package composer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/JinTanba/conditional-token-index/pkg/logger"
	"github.com/JinTanba/conditional-token-index/pkg/polynance"
	"github.com/JinTanba/conditional-token-index/pkg/routine"
)

// State App 生命周期状态
type State string

const (
	StateIdle        State = "idle"
	StateSubmitting  State = "submitting"
	StatePolling     State = "polling"
	StateBatchFailed State = "batch_failed"
	StateStopped     State = "stopped"
)

const verifierTaskID = "price-verifier"

// ErrAlreadyStarted Start 只能调用一次
var ErrAlreadyStarted = errors.New("composer: app already started")

// Status App 状态快照
type Status struct {
	State           State    `json:"state"`
	Orders          int      `json:"orders"`
	PendingOrderIDs []string `json:"pendingOrderIds"`
	Poller          Stats    `json:"poller"`
	BatchError      string   `json:"batchError,omitempty"`
}

// AppOption 调整 App
type AppOption func(*App)

// WithPollInterval 设置轮询周期
func WithPollInterval(d time.Duration) AppOption {
	return func(a *App) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithVerifierOptions 透传给 PriceVerifier
func WithVerifierOptions(opts ...PollerOption) AppOption {
	return func(a *App) { a.verifierOpts = append(a.verifierOpts, opts...) }
}

// App 先提交批量订单，成功后启动价格验证轮询
type App struct {
	sdk          SDK
	orders       []polynance.ExecuteOrderParams
	interval     time.Duration
	verifierOpts []PollerOption
	verifier     *PriceVerifier
	log          *logrus.Entry

	mu       sync.RWMutex
	state    State
	batchErr error
	cancel   context.CancelFunc
	routines *routine.Manager
}

func NewApp(sdk SDK, orders []polynance.ExecuteOrderParams, opts ...AppOption) *App {
	a := &App{
		sdk:      sdk,
		orders:   append([]polynance.ExecuteOrderParams(nil), orders...),
		interval: 2 * time.Second,
		log:      logger.Component("composer"),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.verifier = NewPriceVerifier(sdk, a.interval, a.verifierOpts...)
	return a
}

// Start 提交批量订单；全部成功后把轮询注册为后台任务。
// 批量失败时进入 BatchFailed，不启动轮询
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.state != StateIdle {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, a.cancel = context.WithCancel(ctx)
	a.state = StateSubmitting
	a.mu.Unlock()

	if err := SubmitBatch(ctx, a.sdk, a.orders); err != nil {
		a.mu.Lock()
		a.batchErr = err
		a.cancel()
		if a.state == StateSubmitting {
			a.state = StateBatchFailed
		}
		a.mu.Unlock()
		a.log.Errorf("Error in main function: %v", err)
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateSubmitting {
		// 批量执行期间已被 Stop
		return nil
	}

	a.routines = routine.NewManager(ctx)
	err := a.routines.RunTask(&routine.Task{
		ID:      verifierTaskID,
		Handler: a.verifier.Run,
		OnStart: func(id string) { a.log.Infof("后台任务 %s 已启动", id) },
		OnError: func(id string, err error) {
			if !errors.Is(err, context.Canceled) {
				a.log.Errorf("任务 %s 异常退出: %v", id, err)
			}
		},
		OnDone: a.pollerExited,
	})
	if err != nil {
		return err
	}
	a.state = StatePolling
	return nil
}

// Stop 取消轮询任务并等待其退出，可重复调用
func (a *App) Stop() {
	a.mu.Lock()
	if a.state == StateStopped {
		a.mu.Unlock()
		return
	}
	a.state = StateStopped
	cancel, routines := a.cancel, a.routines
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if routines != nil {
		routines.ShutdownAll()
	}
	a.log.Info("composer 已停止")
}

func (a *App) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Polling 轮询任务是否在运行
func (a *App) Polling() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.routines != nil && a.routines.Running(verifierTaskID)
}

// pollerExited 轮询任务退出（父 ctx 取消或异常）后进入 Stopped
func (a *App) pollerExited(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StatePolling {
		return
	}
	a.state = StateStopped
	a.cancel()
	a.log.Warnf("后台任务 %s 已退出，composer 停止", id)
}

// Status 返回状态快照
func (a *App) Status() Status {
	a.mu.RLock()
	st := Status{
		State:  a.state,
		Orders: len(a.orders),
	}
	if a.batchErr != nil {
		st.BatchError = a.batchErr.Error()
	}
	a.mu.RUnlock()

	st.PendingOrderIDs = a.sdk.GetPendingOrdersIds()
	st.Poller = a.verifier.Stats()
	return st
}
