package avbranch

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaionaro-go/avbranch/engine"
	"github.com/xaionaro-go/avbranch/logger"
	"github.com/xaionaro-go/xsync"
)

// Bind links the given tees to this branch: video tees first, then
// audio tees. Tees whose kind the branch capability does not include
// are skipped with a warning. A link failure on one connection does not
// unwind the others; it is reported in the returned (joined) error
// while the branch still transitions to attached.
//
// Binding an already attached branch is a no-op.
func (b *Branch) Bind(ctx context.Context, teeVideos, teeAudios []engine.Element) (_err error) {
	logger.Tracef(ctx, "Bind")
	defer func() { logger.Tracef(ctx, "/Bind: %v", _err) }()
	return xsync.DoR1(ctx, &b.locker, func() error {
		return b.bindLocked(ctx, teeVideos, teeAudios)
	})
}

func (b *Branch) bindLocked(
	ctx context.Context,
	teeVideos, teeAudios []engine.Element,
) error {
	if b.attached {
		logger.Warnf(ctx, "branch is already bound to the recorder")
		return nil
	}
	logger.Debugf(ctx, "binding the branch to %d video and %d audio tee(s)", len(teeVideos), len(teeAudios))

	b.hooks.onBindBegin(ctx)

	var errs []error
	for _, tee := range teeVideos {
		if err := b.bindPath(ctx, tee, CapabilityVideoOnly); err != nil {
			errs = append(errs, fmt.Errorf("unable to bind video tee %v: %w", tee, err))
		}
	}
	for _, tee := range teeAudios {
		if err := b.bindPath(ctx, tee, CapabilityAudioOnly); err != nil {
			errs = append(errs, fmt.Errorf("unable to bind audio tee %v: %w", tee, err))
		}
	}

	b.hooks.onBindEnd(ctx)

	b.attached = true
	return errors.Join(errs...)
}

// bindPath connects one tee to this branch: it requests a fresh src pad
// on the tee, creates a queue element, and links
// tee -> queue -> entry pad.
func (b *Branch) bindPath(
	ctx context.Context,
	tee engine.Element,
	kind Capability,
) (_err error) {
	logger.Tracef(ctx, "bindPath: %v, %v", tee, kind)
	defer func() { logger.Tracef(ctx, "/bindPath: %v, %v: %v", tee, kind, _err) }()

	// only a video or an audio pad can be bound at each request
	var entryPadSink engine.Pad
	var err error
	switch kind {
	case CapabilityVideoOnly:
		if !b.capability.HasVideo() {
			logger.Warnf(ctx, "unsupported capability when binding branch: %v", kind)
			return nil
		}
		entryPadSink, err = b.entry.AcquireVideoPad(ctx)
	case CapabilityAudioOnly:
		if !b.capability.HasAudio() {
			logger.Warnf(ctx, "unsupported capability when binding branch: %v", kind)
			return nil
		}
		entryPadSink, err = b.entry.AcquireAudioPad(ctx)
	default:
		return fmt.Errorf("a binding request must be %v or %v, got %v",
			CapabilityVideoOnly, CapabilityAudioOnly, kind)
	}
	if err != nil {
		return fmt.Errorf("unable to acquire an entry pad: %w", err)
	}

	teeSrcPad, err := b.eng.RequestPad(ctx, tee, "src_%u")
	if err != nil {
		b.releaseEntryPad(ctx, kind, entryPadSink)
		return fmt.Errorf("unable to request a src pad on %v: %w", tee, err)
	}

	queue, err := b.eng.NewElement(ctx, "queue")
	if err != nil {
		if relErr := b.eng.ReleaseRequestPad(ctx, tee, teeSrcPad); relErr != nil {
			logger.Errorf(ctx, "unable to release the tee pad %v: %v", teeSrcPad, relErr)
		}
		b.releaseEntryPad(ctx, kind, entryPadSink)
		return fmt.Errorf("unable to create a queue element: %w", err)
	}
	quePadSrc, err := b.eng.StaticPad(ctx, queue, "src")
	if err != nil {
		return fmt.Errorf("unable to get the src pad of %v: %w", queue, err)
	}
	quePadSink, err := b.eng.StaticPad(ctx, queue, "sink")
	if err != nil {
		return fmt.Errorf("unable to get the sink pad of %v: %w", queue, err)
	}

	if err := b.eng.SetProperty(ctx, queue, "flush-on-eos", true); err != nil {
		logger.Errorf(ctx, "unable to set 'flush-on-eos' on %v: %v", queue, err)
	}
	if err := b.eng.SetProperty(ctx, queue, "leaky", 2); err != nil {
		logger.Errorf(ctx, "unable to set 'leaky' on %v: %v", queue, err)
	}

	if err := b.eng.AddToGraph(ctx, b.graph, queue); err != nil {
		return fmt.Errorf("unable to add %v to the graph: %w", queue, err)
	}

	// a failed link does not unwind the connection: the partially
	// linked state is kept and reported, the remaining tees still bind
	var linkErrs []error
	if err := b.eng.LinkPads(ctx, teeSrcPad, quePadSink); err != nil {
		logger.Errorf(ctx, "recorder tee and branch queue link failed: %v", err)
		linkErrs = append(linkErrs, fmt.Errorf("unable to link %v to %v: %w", teeSrcPad, quePadSink, err))
	} else {
		logger.Debugf(ctx, "recorder tee and branch queue linked")
	}
	if err := b.eng.LinkPads(ctx, quePadSrc, entryPadSink); err != nil {
		logger.Errorf(ctx, "branch queue and branch entry link failed: %v", err)
		linkErrs = append(linkErrs, fmt.Errorf("unable to link %v to %v: %w", quePadSrc, entryPadSink, err))
	} else {
		logger.Debugf(ctx, "branch queue and branch entry linked")
	}

	if err := b.eng.PlayElement(ctx, queue); err != nil {
		logger.Errorf(ctx, "unable to play %v: %v", queue, err)
	}

	b.connections[tee] = connection{queue: queue, kind: kind}
	b.padIndexLocker.Do(ctx, func() {
		b.teeSrcPads[teeSrcPad] = tee
	})
	b.entryPads[entryPadSink] = struct{}{}
	return errors.Join(linkErrs...)
}

func (b *Branch) releaseEntryPad(
	ctx context.Context,
	kind Capability,
	pad engine.Pad,
) {
	var err error
	if kind == CapabilityAudioOnly {
		err = b.entry.ReleaseAudioPad(ctx, pad)
	} else {
		err = b.entry.ReleaseVideoPad(ctx, pad)
	}
	if err != nil {
		logger.Errorf(ctx, "unable to release the entry pad %v: %v", pad, err)
	}
}
