package bus

import (
	"sync"

	"go.uber.org/zap"
)

// Loop runs the tasks of one or more browsing contexts one at a time in FIFO
// order, like a browser event loop. Post drains the queue on the calling
// goroutine unless another goroutine is already draining, in which case the
// task is picked up by that goroutine. Tasks may Post further tasks.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	running bool

	// OnPanic receives values recovered from panicking tasks. Without it they
	// are logged to the global zap logger.
	OnPanic func(v any)
}

func NewLoop() *Loop { return &Loop{} }

// Post schedules task.
func (l *Loop) Post(task func()) {
	l.mu.Lock()
	l.queue = append(l.queue, task)
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	for len(l.queue) > 0 {
		next := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()
		l.run(next)
		l.mu.Lock()
	}
	l.running = false
	l.mu.Unlock()
}

// Call runs fn on the loop and waits for it to finish. It must not be called
// from a task running on the same loop.
func (l *Loop) Call(fn func()) {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	<-done
}

func (l *Loop) run(task func()) {
	defer func() {
		if v := recover(); v != nil {
			if l.OnPanic != nil {
				l.OnPanic(v)
				return
			}
			zap.L().Error("bus: task panicked", zap.Any("panic", v), zap.Stack("stack"))
		}
	}()
	task()
}
