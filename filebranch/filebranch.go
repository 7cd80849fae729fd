// Package filebranch provides a branch variant that muxes the bound
// streams into a container file on local storage.
package filebranch

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avbranch"
	"github.com/xaionaro-go/avbranch/engine"
	"github.com/xaionaro-go/avbranch/logger"
	"github.com/xaionaro-go/avbranch/muxer"
)

// Branch muxes everything bound to it into a single container file:
// tee(s) -> queue(s) -> muxer -> filesink. The entry pads handed to the
// generic protocol are request pads of the muxer.
type Branch struct {
	*avbranch.Branch

	eng   engine.Abstract
	graph engine.Graph
	muxer engine.Element
	sink  engine.Element
}

var _ avbranch.EntryPorts = (*Branch)(nil)

func New(
	ctx context.Context,
	eng engine.Abstract,
	graph engine.Graph,
	format muxer.ContainerFormat,
	pathPrefix string,
) (*Branch, error) {
	ext, err := muxer.FileExtension(format)
	if err != nil {
		return nil, err
	}

	muxElm, err := muxer.New(ctx, eng, format, muxer.RouteFile)
	if err != nil {
		return nil, fmt.Errorf("unable to create a muxer: %w", err)
	}

	sink, err := engine.NewElementWithProps(ctx, eng, "filesink", engine.Properties{
		"location": pathPrefix + "." + ext,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create a filesink: %w", err)
	}

	if err := eng.AddToGraph(ctx, graph, muxElm); err != nil {
		return nil, fmt.Errorf("unable to add %v to the graph: %w", muxElm, err)
	}
	if err := eng.AddToGraph(ctx, graph, sink); err != nil {
		return nil, fmt.Errorf("unable to add %v to the graph: %w", sink, err)
	}

	muxSrcPad, err := eng.StaticPad(ctx, muxElm, "src")
	if err != nil {
		return nil, fmt.Errorf("unable to get the src pad of %v: %w", muxElm, err)
	}
	sinkPad, err := eng.StaticPad(ctx, sink, "sink")
	if err != nil {
		return nil, fmt.Errorf("unable to get the sink pad of %v: %w", sink, err)
	}
	if err := eng.LinkPads(ctx, muxSrcPad, sinkPad); err != nil {
		return nil, fmt.Errorf("unable to link %v to %v: %w", muxSrcPad, sinkPad, err)
	}

	b := &Branch{
		eng:   eng,
		graph: graph,
		muxer: muxElm,
		sink:  sink,
	}
	b.Branch = avbranch.NewBranch(
		avbranch.CapabilityVideoAudio,
		eng,
		graph,
		b,
		avbranch.Hooks{
			OnBindBegin: b.start,
			OnUnbindEnd: b.stop,
		},
	)
	return b, nil
}

func (b *Branch) AcquireVideoPad(ctx context.Context) (engine.Pad, error) {
	return b.eng.RequestPad(ctx, b.muxer, "video_%u")
}

func (b *Branch) AcquireAudioPad(ctx context.Context) (engine.Pad, error) {
	return b.eng.RequestPad(ctx, b.muxer, "audio_%u")
}

func (b *Branch) ReleaseVideoPad(ctx context.Context, pad engine.Pad) error {
	return b.eng.ReleaseRequestPad(ctx, b.muxer, pad)
}

func (b *Branch) ReleaseAudioPad(ctx context.Context, pad engine.Pad) error {
	return b.eng.ReleaseRequestPad(ctx, b.muxer, pad)
}

func (b *Branch) start(ctx context.Context) {
	for _, el := range []engine.Element{b.muxer, b.sink} {
		if err := b.eng.PlayElement(ctx, el); err != nil {
			logger.Errorf(ctx, "unable to play %v: %v", el, err)
		}
	}
}

func (b *Branch) stop(ctx context.Context) {
	// the muxer first, so nothing keeps pushing into a stopped sink
	for _, el := range []engine.Element{b.muxer, b.sink} {
		if err := b.eng.StopElement(ctx, el); err != nil {
			logger.Errorf(ctx, "unable to stop %v: %v", el, err)
		}
	}
}
