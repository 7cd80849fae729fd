package avbranch

import (
	"context"

	"github.com/xaionaro-go/avbranch/engine"
)

// EntryPorts is implemented by a concrete branch variant (e.g. a
// file-writing branch or a live-upload branch). It supplies the
// branch-owned pads that connections' queue elements link into, so that
// the variant can wire its own muxer and sink while reusing the generic
// attach/detach protocol.
type EntryPorts interface {
	AcquireVideoPad(ctx context.Context) (engine.Pad, error)
	AcquireAudioPad(ctx context.Context) (engine.Pad, error)
	ReleaseVideoPad(ctx context.Context, pad engine.Pad) error
	ReleaseAudioPad(ctx context.Context, pad engine.Pad) error
}

// Hooks are optional lifecycle notifications invoked while the branch
// lock is held. A nil field is a no-op.
type Hooks struct {
	OnBindBegin   func(ctx context.Context)
	OnBindEnd     func(ctx context.Context)
	OnUnbindBegin func(ctx context.Context)
	OnUnbindEnd   func(ctx context.Context)
}

func (h Hooks) onBindBegin(ctx context.Context) {
	if h.OnBindBegin != nil {
		h.OnBindBegin(ctx)
	}
}

func (h Hooks) onBindEnd(ctx context.Context) {
	if h.OnBindEnd != nil {
		h.OnBindEnd(ctx)
	}
}

func (h Hooks) onUnbindBegin(ctx context.Context) {
	if h.OnUnbindBegin != nil {
		h.OnUnbindBegin(ctx)
	}
}

func (h Hooks) onUnbindEnd(ctx context.Context) {
	if h.OnUnbindEnd != nil {
		h.OnUnbindEnd(ctx)
	}
}
