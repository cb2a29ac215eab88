package routine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Handler 在任务自己的 ctx 中运行，ctx 取消后应尽快返回
type Handler func(ctx context.Context) error

var (
	ErrNilTask       = errors.New("routine: nil task")
	ErrEmptyID       = errors.New("routine: empty task id")
	ErrNoHandler     = errors.New("routine: task handler not set")
	ErrTaskExists    = errors.New("routine: task already running")
	ErrTaskPanicked  = errors.New("routine: task panicked")
	ErrManagerClosed = errors.New("routine: manager closed")
)

// Task 后台任务及其生命周期回调，回调均在任务 goroutine 中执行。
// OnDone 在任务从 Manager 注销之后调用
type Task struct {
	ID      string
	Handler Handler

	OnStart func(id string)
	OnError func(id string, err error)
	OnDone  func(id string)

	cancel context.CancelFunc
	done   chan struct{}
}

// Manager 按 id 管理可取消的后台任务，同一 id 同时只能运行一个
type Manager struct {
	ctx context.Context

	mu     sync.Mutex
	tasks  map[string]*Task
	closed bool
}

// NewManager 所有任务的 ctx 都派生自 ctx
func NewManager(ctx context.Context) *Manager {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Manager{ctx: ctx, tasks: make(map[string]*Task)}
}

// RunTask 登记并在新 goroutine 中启动任务
func (m *Manager) RunTask(task *Task) error {
	switch {
	case task == nil:
		return ErrNilTask
	case task.ID == "":
		return ErrEmptyID
	case task.Handler == nil:
		return ErrNoHandler
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	if _, ok := m.tasks[task.ID]; ok {
		return fmt.Errorf("%w: %s", ErrTaskExists, task.ID)
	}

	ctx, cancel := context.WithCancel(m.ctx)
	task.cancel = cancel
	task.done = make(chan struct{})
	m.tasks[task.ID] = task

	go m.run(ctx, task)
	return nil
}

// Running 任务是否仍在运行
func (m *Manager) Running(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[id]
	return ok
}

// ShutdownAll 取消所有任务并等待退出，之后不再接受新任务
func (m *Manager) ShutdownAll() {
	m.mu.Lock()
	m.closed = true
	tasks := make([]*Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	m.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}
	for _, t := range tasks {
		<-t.done
	}
}

func (m *Manager) run(ctx context.Context, task *Task) {
	defer func() {
		task.cancel()
		m.mu.Lock()
		if m.tasks[task.ID] == task {
			delete(m.tasks, task.ID)
		}
		m.mu.Unlock()
		close(task.done)
		if task.OnDone != nil {
			task.OnDone(task.ID)
		}
	}()

	if task.OnStart != nil {
		task.OnStart(task.ID)
	}
	if err := safeCall(ctx, task.Handler); err != nil && task.OnError != nil {
		task.OnError(task.ID, err)
	}
}

func safeCall(ctx context.Context, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return h(ctx)
}
