package avbranch

import (
	"context"

	"github.com/xaionaro-go/avbranch/engine"
	"github.com/xaionaro-go/avbranch/logger"
	"github.com/xaionaro-go/xsync"
)

// Unbind detaches the branch from the recorder. For every bound tee it
// registers an idle probe on the tee's src pad; the probe (invoked by
// the engine once the pad has no data in transit, the only safe moment
// to unlink it) unlinks the tee from the queue, injects EOS so already
// queued data drains, and releases the tee's request pad. Unbind blocks
// until every probe fired, and only then tears down the queues and
// entry pads as one batch, so the branch is never left half-consuming.
//
// If ctx is cancelled during the wait, Unbind returns ctx.Err() and the
// branch stays attached; a repeated Unbind arms probes only for the
// connections still pending and completes the detach.
//
// Unbinding an already detached branch is a no-op.
func (b *Branch) Unbind(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "Unbind")
	defer func() { logger.Tracef(ctx, "/Unbind: %v", _err) }()
	return xsync.DoR1(ctx, &b.locker, func() error {
		return b.unbindLocked(ctx)
	})
}

func (b *Branch) unbindLocked(ctx context.Context) error {
	if !b.attached {
		logger.Warnf(ctx, "branch is already unbound")
		return nil
	}

	// The latch must be armed before any probe can fire.
	var latch *detachLatch
	var teeSrcPads []engine.Pad
	b.padIndexLocker.Do(ctx, func() {
		latch = newDetachLatch(len(b.teeSrcPads))
		b.detachLatch = latch
		teeSrcPads = make([]engine.Pad, 0, len(b.teeSrcPads))
		for pad := range b.teeSrcPads {
			teeSrcPads = append(teeSrcPads, pad)
		}
	})

	for _, teeSrcPad := range teeSrcPads {
		if err := b.eng.AddIdleProbe(ctx, teeSrcPad, b.detachProbe); err != nil {
			logger.Errorf(ctx, "unable to add an idle probe on %v: %v", teeSrcPad, err)
			// a probe that was never registered would never count down
			if _, latch, ok := b.claimTeeSrcPad(ctx, teeSrcPad); ok {
				latch.CountDown(ctx)
			}
		}
	}

	logger.Debugf(ctx, "waiting for %d queue(s) to detach", len(teeSrcPads))
	if err := latch.Wait(ctx); err != nil {
		logger.Errorf(ctx, "interrupted while waiting for the queues to detach: %v", err)
		return err
	}
	logger.Debugf(ctx, "all queues are detached")

	b.hooks.onUnbindBegin(ctx)

	for _, conn := range b.connections {
		b.unbindLower(ctx, conn)
	}
	clear(b.connections)

	b.hooks.onUnbindEnd(ctx)

	b.attached = false
	return nil
}

// detachProbe runs on the engine's execution context when a tee src pad
// went idle. It detaches the upper part of the path: tee -> queue.
func (b *Branch) detachProbe(ctx context.Context, teeSrcPad engine.Pad) engine.ProbeDisposition {
	logger.Tracef(ctx, "detachProbe: %v", teeSrcPad)
	tee, latch, ok := b.claimTeeSrcPad(ctx, teeSrcPad)
	if !ok {
		// an earlier (abandoned) unbind already detached this pad
		logger.Debugf(ctx, "pad %v is already detached", teeSrcPad)
		return engine.ProbeRemove
	}

	quePadSink, err := b.eng.PadPeer(ctx, teeSrcPad)
	if err != nil {
		logger.Errorf(ctx, "unable to get the peer of %v: %v", teeSrcPad, err)
	} else {
		if err := b.eng.UnlinkPads(ctx, teeSrcPad, quePadSink); err != nil {
			logger.Errorf(ctx, "tee and queue unlink failed: %v", err)
		} else {
			logger.Debugf(ctx, "tee and queue unlinked")
		}

		// send EOS to the queue so the data already downstream drains
		// instead of being discarded
		if err := b.eng.SendEOS(ctx, quePadSink); err != nil {
			logger.Errorf(ctx, "unable to send EOS to %v: %v", quePadSink, err)
		}
	}

	logger.Debugf(ctx, "tee pad %v is releasing", teeSrcPad)
	if err := b.eng.ReleaseRequestPad(ctx, tee, teeSrcPad); err != nil {
		logger.Errorf(ctx, "unable to release the tee pad %v: %v", teeSrcPad, err)
	} else {
		logger.Debugf(ctx, "tee pad %v is removed", teeSrcPad)
	}

	latch.CountDown(ctx)
	return engine.ProbeRemove
}

// claimTeeSrcPad removes the pad from the reverse index and returns the
// tee it belonged to together with the latch of the unbind in flight.
// It reports false if the pad was already claimed, which makes probes
// left over from an abandoned unbind harmless.
func (b *Branch) claimTeeSrcPad(
	ctx context.Context,
	teeSrcPad engine.Pad,
) (engine.Element, *detachLatch, bool) {
	var tee engine.Element
	var latch *detachLatch
	var ok bool
	b.padIndexLocker.Do(ctx, func() {
		tee, ok = b.teeSrcPads[teeSrcPad]
		if !ok {
			return
		}
		delete(b.teeSrcPads, teeSrcPad)
		latch = b.detachLatch
	})
	return tee, latch, ok
}

// unbindLower tears down the lower part of the path of one connection:
// queue -> entry pad. Must only run after the connection's tee src pad
// was confirmed idle and unlinked.
func (b *Branch) unbindLower(ctx context.Context, conn connection) {
	logger.Tracef(ctx, "unbindLower: %v", conn.queue)
	defer func() { logger.Tracef(ctx, "/unbindLower: %v", conn.queue) }()

	quePadSrc, err := b.eng.StaticPad(ctx, conn.queue, "src")
	if err != nil {
		logger.Errorf(ctx, "unable to get the src pad of %v: %v", conn.queue, err)
		return
	}

	entryPadSink, err := b.eng.PadPeer(ctx, quePadSrc)
	if err != nil {
		// the queue was never linked to the entry (degraded bind)
		logger.Errorf(ctx, "unable to get the entry pad linked to %v: %v", quePadSrc, err)
	} else {
		if err := b.eng.UnlinkPads(ctx, quePadSrc, entryPadSink); err != nil {
			logger.Errorf(ctx, "branch queue and branch entry unlink failed: %v", err)
		} else {
			logger.Debugf(ctx, "branch queue and branch entry unlinked")
		}
	}

	logger.Debugf(ctx, "branch queue is stopping")
	if err := b.eng.StopElement(ctx, conn.queue); err != nil {
		logger.Errorf(ctx, "unable to stop %v: %v", conn.queue, err)
	}
	if err := b.eng.RemoveFromGraph(ctx, b.graph, conn.queue); err != nil {
		logger.Errorf(ctx, "unable to remove %v from the graph: %v", conn.queue, err)
	}
	logger.Debugf(ctx, "branch queue is removed")

	if entryPadSink != nil {
		logger.Debugf(ctx, "branch entry pad is releasing")
		b.releaseEntryPad(ctx, conn.kind, entryPadSink)
		delete(b.entryPads, entryPadSink)
		logger.Debugf(ctx, "branch entry pad is removed")
	}
}
