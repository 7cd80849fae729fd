// Package enginetest provides an in-memory implementation of
// engine.Abstract for tests and demos. Idle probes fire asynchronously
// on the fake engine's own goroutines after a configurable per-pad
// delay, which mimics how a real engine invokes probes from its own
// execution context.
package enginetest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xaionaro-go/avbranch/engine"
	"github.com/xaionaro-go/avbranch/logger"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xsync"
)

type Element struct {
	TypeName string
	ID       int

	props       engine.Properties
	playing     bool
	padSeq      int
	staticPads  map[string]*Pad
	requestPads map[*Pad]struct{}
}

var _ engine.Element = (*Element)(nil)

func (e *Element) String() string {
	return fmt.Sprintf("%s#%d", e.TypeName, e.ID)
}

type Pad struct {
	Owner *Element
	Name  string
}

var _ engine.Pad = (*Pad)(nil)

func (p *Pad) String() string {
	return fmt.Sprintf("%v:%s", p.Owner, p.Name)
}

type Graph struct {
	Name string
}

var _ engine.Graph = (*Graph)(nil)

func (g *Graph) String() string {
	return g.Name
}

type Engine struct {
	// DefaultIdleDelay is how long a pad stays busy after an idle probe
	// was registered on it, unless overridden via SetIdleDelay.
	DefaultIdleDelay time.Duration

	locker        xsync.Mutex
	elemSeq       int
	elements      map[*Element]struct{}
	graphElements map[*Graph]map[*Element]struct{}
	peers         map[*Pad]*Pad
	idleDelays    map[*Pad]time.Duration
	failLinkSinks map[*Pad]struct{}
	eosSent       []*Pad
	numLinks      int
	numUnlinks    int
}

var _ engine.Abstract = (*Engine)(nil)

func New() *Engine {
	return &Engine{
		elements:      map[*Element]struct{}{},
		graphElements: map[*Graph]map[*Element]struct{}{},
		peers:         map[*Pad]*Pad{},
		idleDelays:    map[*Pad]time.Duration{},
		failLinkSinks: map[*Pad]struct{}{},
	}
}

func (e *Engine) NewGraph(name string) *Graph {
	g := &Graph{Name: name}
	e.locker.Do(context.TODO(), func() {
		e.graphElements[g] = map[*Element]struct{}{}
	})
	return g
}

func (e *Engine) NewElement(ctx context.Context, typeName string) (engine.Element, error) {
	return xsync.DoR2(ctx, &e.locker, func() (engine.Element, error) {
		e.elemSeq++
		el := &Element{
			TypeName:    typeName,
			ID:          e.elemSeq,
			props:       engine.Properties{},
			staticPads:  map[string]*Pad{},
			requestPads: map[*Pad]struct{}{},
		}
		e.elements[el] = struct{}{}
		return el, nil
	})
}

func (e *Engine) SetProperty(ctx context.Context, el engine.Element, name string, value any) error {
	return xsync.DoR1(ctx, &e.locker, func() error {
		fake, err := e.element(el)
		if err != nil {
			return err
		}
		fake.props[name] = value
		return nil
	})
}

func (e *Engine) PlayElement(ctx context.Context, el engine.Element) error {
	return xsync.DoR1(ctx, &e.locker, func() error {
		fake, err := e.element(el)
		if err != nil {
			return err
		}
		fake.playing = true
		return nil
	})
}

func (e *Engine) StopElement(ctx context.Context, el engine.Element) error {
	return xsync.DoR1(ctx, &e.locker, func() error {
		fake, err := e.element(el)
		if err != nil {
			return err
		}
		fake.playing = false
		return nil
	})
}

func (e *Engine) RequestPad(ctx context.Context, el engine.Element, template string) (engine.Pad, error) {
	return xsync.DoR2(ctx, &e.locker, func() (engine.Pad, error) {
		fake, err := e.element(el)
		if err != nil {
			return nil, err
		}
		name := strings.ReplaceAll(template, "%u", strconv.Itoa(fake.padSeq))
		fake.padSeq++
		pad := &Pad{Owner: fake, Name: name}
		fake.requestPads[pad] = struct{}{}
		return pad, nil
	})
}

func (e *Engine) ReleaseRequestPad(ctx context.Context, el engine.Element, pad engine.Pad) error {
	return xsync.DoR1(ctx, &e.locker, func() error {
		fake, err := e.element(el)
		if err != nil {
			return err
		}
		fakePad, err := e.pad(pad)
		if err != nil {
			return err
		}
		if _, ok := fake.requestPads[fakePad]; !ok {
			return ErrNoSuchPad{Element: fake, Pad: fakePad}
		}
		if peer, ok := e.peers[fakePad]; ok {
			logger.Debugf(ctx, "releasing a still-linked pad %v, unlinking from %v", fakePad, peer)
			delete(e.peers, fakePad)
			delete(e.peers, peer)
		}
		delete(fake.requestPads, fakePad)
		return nil
	})
}

func (e *Engine) StaticPad(ctx context.Context, el engine.Element, name string) (engine.Pad, error) {
	return xsync.DoR2(ctx, &e.locker, func() (engine.Pad, error) {
		fake, err := e.element(el)
		if err != nil {
			return nil, err
		}
		pad, ok := fake.staticPads[name]
		if !ok {
			pad = &Pad{Owner: fake, Name: name}
			fake.staticPads[name] = pad
		}
		return pad, nil
	})
}

func (e *Engine) LinkPads(ctx context.Context, src, sink engine.Pad) error {
	return xsync.DoR1(ctx, &e.locker, func() error {
		srcPad, err := e.pad(src)
		if err != nil {
			return err
		}
		sinkPad, err := e.pad(sink)
		if err != nil {
			return err
		}
		if _, ok := e.failLinkSinks[sinkPad]; ok {
			return ErrLinkFailed{Src: srcPad, Sink: sinkPad}
		}
		if _, ok := e.peers[srcPad]; ok {
			return ErrLinkFailed{Src: srcPad, Sink: sinkPad}
		}
		if _, ok := e.peers[sinkPad]; ok {
			return ErrLinkFailed{Src: srcPad, Sink: sinkPad}
		}
		e.peers[srcPad] = sinkPad
		e.peers[sinkPad] = srcPad
		e.numLinks++
		return nil
	})
}

func (e *Engine) UnlinkPads(ctx context.Context, src, sink engine.Pad) error {
	return xsync.DoR1(ctx, &e.locker, func() error {
		srcPad, err := e.pad(src)
		if err != nil {
			return err
		}
		sinkPad, err := e.pad(sink)
		if err != nil {
			return err
		}
		if e.peers[srcPad] != sinkPad {
			return ErrNotLinked{Pad: srcPad}
		}
		delete(e.peers, srcPad)
		delete(e.peers, sinkPad)
		e.numUnlinks++
		return nil
	})
}

func (e *Engine) PadPeer(ctx context.Context, pad engine.Pad) (engine.Pad, error) {
	return xsync.DoR2(ctx, &e.locker, func() (engine.Pad, error) {
		fakePad, err := e.pad(pad)
		if err != nil {
			return nil, err
		}
		peer, ok := e.peers[fakePad]
		if !ok {
			return nil, ErrNotLinked{Pad: fakePad}
		}
		return peer, nil
	})
}

func (e *Engine) SendEOS(ctx context.Context, pad engine.Pad) error {
	return xsync.DoR1(ctx, &e.locker, func() error {
		fakePad, err := e.pad(pad)
		if err != nil {
			return err
		}
		e.eosSent = append(e.eosSent, fakePad)
		return nil
	})
}

func (e *Engine) AddIdleProbe(ctx context.Context, pad engine.Pad, probe engine.IdleProbe) error {
	fakePad, err := xsync.DoR2(ctx, &e.locker, func() (*Pad, error) {
		return e.pad(pad)
	})
	if err != nil {
		return err
	}
	delay := xsync.DoR1(ctx, &e.locker, func() time.Duration {
		if d, ok := e.idleDelays[fakePad]; ok {
			return d
		}
		return e.DefaultIdleDelay
	})
	observability.Go(ctx, func(ctx context.Context) {
		for {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				logger.Debugf(ctx, "idle probe on %v cancelled: %v", fakePad, ctx.Err())
				return
			}
			if probe(ctx, fakePad) == engine.ProbeRemove {
				return
			}
		}
	})
	return nil
}

func (e *Engine) AddToGraph(ctx context.Context, graph engine.Graph, el engine.Element) error {
	return xsync.DoR1(ctx, &e.locker, func() error {
		g, fake, err := e.graphAndElement(graph, el)
		if err != nil {
			return err
		}
		e.graphElements[g][fake] = struct{}{}
		return nil
	})
}

func (e *Engine) RemoveFromGraph(ctx context.Context, graph engine.Graph, el engine.Element) error {
	return xsync.DoR1(ctx, &e.locker, func() error {
		g, fake, err := e.graphAndElement(graph, el)
		if err != nil {
			return err
		}
		delete(e.graphElements[g], fake)
		return nil
	})
}

func (e *Engine) element(el engine.Element) (*Element, error) {
	fake, ok := el.(*Element)
	if !ok || fake == nil {
		return nil, ErrNoSuchElement{Element: el}
	}
	if _, ok := e.elements[fake]; !ok {
		return nil, ErrNoSuchElement{Element: el}
	}
	return fake, nil
}

func (e *Engine) pad(pad engine.Pad) (*Pad, error) {
	fakePad, ok := pad.(*Pad)
	if !ok || fakePad == nil {
		return nil, ErrNoSuchPad{Pad: pad}
	}
	return fakePad, nil
}

func (e *Engine) graphAndElement(graph engine.Graph, el engine.Element) (*Graph, *Element, error) {
	g, ok := graph.(*Graph)
	if !ok || g == nil {
		return nil, nil, fmt.Errorf("unknown graph: %v", graph)
	}
	if _, ok := e.graphElements[g]; !ok {
		return nil, nil, fmt.Errorf("unknown graph: %v", graph)
	}
	fake, err := e.element(el)
	if err != nil {
		return nil, nil, err
	}
	return g, fake, nil
}
