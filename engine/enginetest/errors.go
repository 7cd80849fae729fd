package enginetest

import (
	"fmt"

	"github.com/xaionaro-go/avbranch/engine"
)

type ErrNoSuchElement struct {
	Element engine.Element
}

func (e ErrNoSuchElement) Error() string {
	return fmt.Sprintf("no such element: %v", e.Element)
}

type ErrNoSuchPad struct {
	Element engine.Element
	Pad     engine.Pad
}

func (e ErrNoSuchPad) Error() string {
	if e.Element != nil {
		return fmt.Sprintf("element %v has no pad %v", e.Element, e.Pad)
	}
	return fmt.Sprintf("no such pad: %v", e.Pad)
}

type ErrLinkFailed struct {
	Src  engine.Pad
	Sink engine.Pad
}

func (e ErrLinkFailed) Error() string {
	return fmt.Sprintf("unable to link %v to %v", e.Src, e.Sink)
}

type ErrNotLinked struct {
	Pad engine.Pad
}

func (e ErrNotLinked) Error() string {
	return fmt.Sprintf("pad %v is not linked", e.Pad)
}
