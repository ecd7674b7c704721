package async

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/m-mizutani/ctxlog"
)

// Group runs jobs in their own goroutines, detached from the caller's
// cancellation. Shutdown code calls Wait to let in-flight jobs finish.
// The zero value is ready to use.
type Group struct {
	wg sync.WaitGroup
}

// Go runs handler in the background. name identifies the job in logs. A
// panic or a returned error is logged and never reaches the caller.
func (g *Group) Go(ctx context.Context, name string, handler func(ctx context.Context) error) {
	newCtx := NewBackgroundContext(ctx)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				ctxlog.From(newCtx).Error("panic in async handler",
					"job", name,
					"recover", r,
					"stack", string(debug.Stack()))
			}
		}()

		if err := handler(newCtx); err != nil {
			ctxlog.From(newCtx).Error("error in async handler", "job", name, "error", err)
		}
	}()
}

// Wait blocks until all started jobs return or timeout expires, and reports
// whether every job finished
func (g *Group) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// NewBackgroundContext returns a context.Background() carrying the ctxlog
// logger of ctx, for work that must outlive a request
func NewBackgroundContext(ctx context.Context) context.Context {
	return ctxlog.With(context.Background(), ctxlog.From(ctx))
}
