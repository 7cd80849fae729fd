package avbranch

import (
	"context"

	"github.com/xaionaro-go/avbranch/engine"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

// connection is the metadata recorded per bound tee: the queue element
// decoupling the tee from the branch entry, and the media kind the
// connection was bound as. It exists only while the branch is attached.
type connection struct {
	queue engine.Element
	kind  Capability
}

// Branch owns the attached/detached lifecycle of one downstream
// processing path of a live graph. It creates (and owns) a queue
// element per bound tee; the tees themselves are owned by the recorder.
//
// Bind and Unbind are serialized by a single branch-wide lock: at most
// one of them is in flight per branch at any time.
type Branch struct {
	capability Capability
	eng        engine.Abstract
	graph      engine.Graph
	entry      EntryPorts
	hooks      Hooks

	locker      xsync.Mutex
	connections map[engine.Element]connection
	entryPads   map[engine.Pad]struct{}
	attached    bool

	// padIndexLocker guards the state shared with idle probes, which
	// run on the engine's execution context while `locker` is held by
	// the unbinding goroutine.
	padIndexLocker xsync.Mutex
	teeSrcPads     map[engine.Pad]engine.Element
	detachLatch    *detachLatch

	autoBind atomic.Bool
}

func NewBranch(
	cap Capability,
	eng engine.Abstract,
	graph engine.Graph,
	entry EntryPorts,
	hooks Hooks,
) *Branch {
	b := &Branch{
		capability:  cap,
		eng:         eng,
		graph:       graph,
		entry:       entry,
		hooks:       hooks,
		connections: map[engine.Element]connection{},
		entryPads:   map[engine.Pad]struct{}{},
		teeSrcPads:  map[engine.Pad]engine.Element{},
	}
	b.autoBind.Store(true)
	return b
}

func (b *Branch) Capability() Capability {
	return b.capability
}

func (b *Branch) IsAttached(ctx context.Context) bool {
	return xsync.DoR1(ctx, &b.locker, func() bool {
		return b.attached
	})
}

// ConnectionCount reports how many tee connections are currently bound.
func (b *Branch) ConnectionCount(ctx context.Context) int {
	return xsync.DoR1(ctx, &b.locker, func() int {
		return len(b.connections)
	})
}

// IsAutoBind reports whether the owning recorder should attach this
// branch automatically. The flag is advisory and is not enforced here.
func (b *Branch) IsAutoBind() bool {
	return b.autoBind.Load()
}

func (b *Branch) SetAutoBind(toBind bool) {
	b.autoBind.Store(toBind)
}
