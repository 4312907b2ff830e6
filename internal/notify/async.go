package notify

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("notify: queue full, event dropped")
	ErrClosed    = errors.New("notify: notifier closed")
)

// DefaultQueueSize 异步通知队列的默认容量
const DefaultQueueSize = 1024

// Async 把事件放进有界队列，由后台 worker 逐个交给 next
// Notify 从不阻塞调用方，队列满时丢弃并返回 ErrQueueFull
type Async struct {
	next   Notifier
	logger *zap.Logger
	queue  chan Event
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsync(next Notifier, logger *zap.Logger, size int) *Async {
	if size <= 0 {
		size = DefaultQueueSize
	}
	a := &Async{
		next:   next,
		logger: logger.Named("notify_async"),
		queue:  make(chan Event, size),
		done:   make(chan struct{}),
	}
	go a.worker()
	return a
}

func (a *Async) Notify(_ context.Context, event Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}

	select {
	case a.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

func (a *Async) worker() {
	defer close(a.done)
	for event := range a.queue {
		// 调用方的 ctx 早已结束，这里用独立的 ctx，超时由下游自己控制
		if err := a.next.Notify(context.Background(), event); err != nil {
			a.logger.Warn("notify failed", zap.String("kind", string(event.Kind)), zap.Error(err))
		}
	}
}

// Close stops accepting events and waits until the queued ones are delivered.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}
