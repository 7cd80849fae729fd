// Package engine defines the narrow primitive interface this module
// requires from a media pipeline engine. The engine itself (scheduling,
// buffering, encoding) is an external collaborator; everything here is
// expressed over opaque element/pad handles so that any GStreamer-like
// implementation can be plugged in.
package engine

import (
	"context"
	"fmt"
)

// Properties is a property bag applied to an element at creation or later.
type Properties map[string]any

// Element is an opaque handle to a processing node owned by the engine.
type Element interface {
	fmt.Stringer
}

// Pad is an opaque handle to an input or output port of an Element.
type Pad interface {
	fmt.Stringer
}

// Graph is an opaque handle to the shared graph elements are added to.
type Graph interface {
	fmt.Stringer
}

type Abstract interface {
	ElementController
	PadController
	ProbeController
	GraphController
}

type ElementController interface {
	NewElement(ctx context.Context, typeName string) (Element, error)
	SetProperty(ctx context.Context, el Element, name string, value any) error
	PlayElement(ctx context.Context, el Element) error
	StopElement(ctx context.Context, el Element) error
}

type PadController interface {
	// RequestPad asks el for a new dynamic pad matching the given
	// template (e.g. "src_%u"). The pad must later be handed back via
	// ReleaseRequestPad.
	RequestPad(ctx context.Context, el Element, template string) (Pad, error)
	ReleaseRequestPad(ctx context.Context, el Element, pad Pad) error

	// StaticPad fetches an always-existing named pad of el (e.g. "sink").
	StaticPad(ctx context.Context, el Element, name string) (Pad, error)

	LinkPads(ctx context.Context, src, sink Pad) error
	UnlinkPads(ctx context.Context, src, sink Pad) error

	// PadPeer returns the pad currently linked to the given pad.
	PadPeer(ctx context.Context, pad Pad) (Pad, error)

	// SendEOS injects an end-of-stream signal into the given pad, so
	// that whatever is queued downstream of it drains instead of being
	// discarded.
	SendEOS(ctx context.Context, pad Pad) error
}

type GraphController interface {
	AddToGraph(ctx context.Context, graph Graph, el Element) error
	RemoveFromGraph(ctx context.Context, graph Graph, el Element) error
}

// NewElementWithProps creates an element and applies the given properties
// one by one (the order of application within one Properties map is
// unspecified).
func NewElementWithProps(
	ctx context.Context,
	eng Abstract,
	typeName string,
	props Properties,
) (Element, error) {
	el, err := eng.NewElement(ctx, typeName)
	if err != nil {
		return nil, fmt.Errorf("unable to create a '%s' element: %w", typeName, err)
	}
	for name, value := range props {
		if err := eng.SetProperty(ctx, el, name, value); err != nil {
			return nil, fmt.Errorf("unable to set property '%s' on %v: %w", name, el, err)
		}
	}
	return el, nil
}
