// Package muxer resolves a container format into a fully configured
// container-writer element description and the matching file extension.
package muxer

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avbranch/engine"
)

type ContainerFormat int

const (
	FormatUndefined = ContainerFormat(iota)
	FormatMatroska
	FormatMP4
	FormatQuickTime
)

func ContainerFormats() []ContainerFormat {
	return []ContainerFormat{
		FormatMatroska,
		FormatMP4,
		FormatQuickTime,
	}
}

func (f ContainerFormat) String() string {
	switch f {
	case FormatMatroska:
		return "matroska"
	case FormatMP4:
		return "mp4"
	case FormatQuickTime:
		return "quicktime"
	default:
		return fmt.Sprintf("unknown_format_%d", int(f))
	}
}

// RoutingMode selects which property set the muxer is configured with:
// writing to a file target or handing buffers to an in-process consumer.
type RoutingMode int

const (
	RouteUndefined = RoutingMode(iota)
	RouteFile
	RouteApp
)

func (m RoutingMode) String() string {
	switch m {
	case RouteFile:
		return "file"
	case RouteApp:
		return "app"
	default:
		return fmt.Sprintf("unknown_routing_mode_%d", int(m))
	}
}

// Spec describes how to build a muxer element for one container format.
type Spec struct {
	ElementName  string
	GeneralProps engine.Properties
	FileProps    engine.Properties
	AppProps     engine.Properties
	FileExt      string
}

var containerInfo = map[ContainerFormat]Spec{
	FormatMatroska: {
		ElementName: "matroskamux",
		GeneralProps: engine.Properties{
			"writing-app": "avbranch",
		},
		FileProps: engine.Properties{
			"streamable": false,
		},
		AppProps: engine.Properties{
			"streamable": true,
		},
		FileExt: "mkv",
	},
	FormatMP4: {
		ElementName: "mp4mux",
		GeneralProps: engine.Properties{
			"faststart": false,
		},
		FileProps: engine.Properties{
			"fragment-duration": 0,
		},
		AppProps: engine.Properties{
			"fragment-duration": 2000,
			"streamable":        true,
		},
		FileExt: "mp4",
	},
	FormatQuickTime: {
		ElementName: "qtmux",
		GeneralProps: engine.Properties{
			"faststart": false,
		},
		FileProps: engine.Properties{
			"fragment-duration": 0,
		},
		AppProps: engine.Properties{
			"fragment-duration": 2000,
			"streamable":        true,
		},
		FileExt: "mov",
	},
}

type ErrUnsupportedFormat struct {
	Format ContainerFormat
}

func (e ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("unsupported muxer container format: %v", e.Format)
}

// Resolve returns the element type name and the merged property set for
// the given format and routing mode. It is pure and safe for concurrent
// use.
func Resolve(format ContainerFormat, mode RoutingMode) (string, engine.Properties, error) {
	spec, ok := containerInfo[format]
	if !ok {
		return "", nil, ErrUnsupportedFormat{Format: format}
	}

	props := engine.Properties{}
	for name, value := range spec.GeneralProps {
		props[name] = value
	}
	var modeProps engine.Properties
	switch mode {
	case RouteApp:
		modeProps = spec.AppProps
	default:
		modeProps = spec.FileProps
	}
	for name, value := range modeProps {
		props[name] = value
	}

	return spec.ElementName, props, nil
}

// FileExtension returns the file extension (without the dot) for the
// given container format.
func FileExtension(format ContainerFormat) (string, error) {
	spec, ok := containerInfo[format]
	if !ok {
		return "", ErrUnsupportedFormat{Format: format}
	}
	return spec.FileExt, nil
}

// New creates a muxer element for the given format and configures it
// for the given routing mode.
func New(
	ctx context.Context,
	eng engine.Abstract,
	format ContainerFormat,
	mode RoutingMode,
) (engine.Element, error) {
	elementName, props, err := Resolve(format, mode)
	if err != nil {
		return nil, err
	}
	return engine.NewElementWithProps(ctx, eng, elementName, props)
}
