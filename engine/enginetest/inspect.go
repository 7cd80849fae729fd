package enginetest

import (
	"context"
	"time"

	"github.com/xaionaro-go/avbranch/engine"
	"github.com/xaionaro-go/xsync"
)

// SetIdleDelay overrides how long the given pad stays busy after an
// idle probe is registered on it.
func (e *Engine) SetIdleDelay(pad engine.Pad, delay time.Duration) {
	e.locker.Do(context.TODO(), func() {
		if fakePad, err := e.pad(pad); err == nil {
			e.idleDelays[fakePad] = delay
		}
	})
}

// FailLinksTo makes every subsequent LinkPads call targeting the given
// sink pad fail.
func (e *Engine) FailLinksTo(sink engine.Pad) {
	e.locker.Do(context.TODO(), func() {
		if fakePad, err := e.pad(sink); err == nil {
			e.failLinkSinks[fakePad] = struct{}{}
		}
	})
}

func (e *Engine) NumElements() int {
	return xsync.DoR1(context.TODO(), &e.locker, func() int {
		return len(e.elements)
	})
}

func (e *Engine) NumInGraph(graph engine.Graph) int {
	return xsync.DoR1(context.TODO(), &e.locker, func() int {
		g, ok := graph.(*Graph)
		if !ok {
			return 0
		}
		return len(e.graphElements[g])
	})
}

func (e *Engine) InGraph(graph engine.Graph, el engine.Element) bool {
	return xsync.DoR1(context.TODO(), &e.locker, func() bool {
		g, fake, err := e.graphAndElement(graph, el)
		if err != nil {
			return false
		}
		_, ok := e.graphElements[g][fake]
		return ok
	})
}

func (e *Engine) IsLinked(src, sink engine.Pad) bool {
	return xsync.DoR1(context.TODO(), &e.locker, func() bool {
		srcPad, err := e.pad(src)
		if err != nil {
			return false
		}
		sinkPad, err := e.pad(sink)
		if err != nil {
			return false
		}
		return e.peers[srcPad] == sinkPad
	})
}

func (e *Engine) IsPlaying(el engine.Element) bool {
	return xsync.DoR1(context.TODO(), &e.locker, func() bool {
		fake, err := e.element(el)
		if err != nil {
			return false
		}
		return fake.playing
	})
}

func (e *Engine) Property(el engine.Element, name string) any {
	return xsync.DoR1(context.TODO(), &e.locker, func() any {
		fake, err := e.element(el)
		if err != nil {
			return nil
		}
		return fake.props[name]
	})
}

func (e *Engine) NumRequestPads(el engine.Element) int {
	return xsync.DoR1(context.TODO(), &e.locker, func() int {
		fake, err := e.element(el)
		if err != nil {
			return 0
		}
		return len(fake.requestPads)
	})
}

func (e *Engine) NumEOSSent() int {
	return xsync.DoR1(context.TODO(), &e.locker, func() int {
		return len(e.eosSent)
	})
}

func (e *Engine) NumLinks() int {
	return xsync.DoR1(context.TODO(), &e.locker, func() int {
		return e.numLinks
	})
}

func (e *Engine) NumUnlinks() int {
	return xsync.DoR1(context.TODO(), &e.locker, func() int {
		return e.numUnlinks
	})
}
