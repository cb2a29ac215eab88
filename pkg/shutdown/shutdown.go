package shutdown

import (
	"context"
	"sync"

	"github.com/JinTanba/conditional-token-index/pkg/logger"
)

// Handler 关闭处理函数
type Handler func(ctx context.Context) error

type namedHandler struct {
	name string
	fn   Handler
}

// Manager 优雅关闭管理器：回调按注册的逆序依次执行，
// 先启动的资源最后释放
type Manager struct {
	callbacks []namedHandler
	mu        sync.Mutex
	once      sync.Once
}

// NewManager 创建新的关闭管理器
func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册关闭回调
func (m *Manager) OnShutdown(name string, handler Handler) {
	if handler == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, namedHandler{name: name, fn: handler})
}

// Shutdown 执行所有关闭回调（阻塞调用，只执行一次）。
// ctx 超时后剩余回调仍会执行，但会拿到已取消的 ctx
func (m *Manager) Shutdown(ctx context.Context) {
	m.once.Do(func() {
		m.mu.Lock()
		callbacks := make([]namedHandler, len(m.callbacks))
		copy(callbacks, m.callbacks)
		m.mu.Unlock()

		if len(callbacks) == 0 {
			logger.Info("没有注册的关闭回调")
			return
		}

		logger.Infof("开始优雅关闭，共 %d 个回调", len(callbacks))
		for i := len(callbacks) - 1; i >= 0; i-- {
			cb := callbacks[i]
			if err := cb.fn(ctx); err != nil {
				logger.Warnf("关闭 %s 失败: %v", cb.name, err)
			}
		}
		if err := ctx.Err(); err != nil {
			logger.Warnf("关闭超时: %v", err)
			return
		}
		logger.Info("所有关闭回调已完成")
	})
}
