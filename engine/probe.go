package engine

import (
	"context"
)

// ProbeDisposition tells the engine what to do with a probe after it
// was invoked.
type ProbeDisposition int

const (
	ProbeUndefined = ProbeDisposition(iota)
	ProbeRemove
	ProbeKeep
)

func (d ProbeDisposition) String() string {
	switch d {
	case ProbeRemove:
		return "remove"
	case ProbeKeep:
		return "keep"
	default:
		return "undefined"
	}
}

// IdleProbe is invoked by the engine on its own execution context when
// the pad it was registered on has no data in transit. That is the only
// moment the pad may safely be unlinked from its peer.
//
// The engine invokes the probe at most once per registration if the
// probe returns ProbeRemove.
type IdleProbe func(ctx context.Context, pad Pad) ProbeDisposition

type ProbeController interface {
	AddIdleProbe(ctx context.Context, pad Pad, probe IdleProbe) error
}
