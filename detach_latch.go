package avbranch

import (
	"context"
	"sync"

	"github.com/xaionaro-go/avbranch/logger"
	"go.uber.org/atomic"
)

// detachLatch is a one-shot countdown: it is created sized to the
// number of connections at the moment an unbind starts, counted down by
// each connection's idle probe, and discarded after the unbind
// completes. It is never shared across unbind calls.
type detachLatch struct {
	remaining atomic.Int64
	closeOnce sync.Once
	doneCh    chan struct{}
}

func newDetachLatch(size int) *detachLatch {
	l := &detachLatch{
		doneCh: make(chan struct{}),
	}
	l.remaining.Store(int64(size))
	if size <= 0 {
		l.closeOnce.Do(func() { close(l.doneCh) })
	}
	return l
}

func (l *detachLatch) CountDown(ctx context.Context) {
	left := l.remaining.Dec()
	logger.Debugf(ctx, "detach latch counted down, %d left", left)
	if left <= 0 {
		l.closeOnce.Do(func() { close(l.doneCh) })
	}
}

func (l *detachLatch) DoneChan() <-chan struct{} {
	return l.doneCh
}

func (l *detachLatch) Wait(ctx context.Context) error {
	select {
	case <-l.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
