// capability.go defines the Capability enum and its methods.

package avbranch

import "fmt"

// Capability declares which media kinds a branch (or a single binding
// request) supports.
type Capability int

const (
	CapabilityUndefined = Capability(iota)
	CapabilityAudioOnly
	CapabilityVideoOnly
	CapabilityVideoAudio
)

func Capabilities() []Capability {
	return []Capability{
		CapabilityAudioOnly,
		CapabilityVideoOnly,
		CapabilityVideoAudio,
	}
}

func (c Capability) HasAudio() bool {
	return c == CapabilityAudioOnly || c == CapabilityVideoAudio
}

func (c Capability) HasVideo() bool {
	return c == CapabilityVideoOnly || c == CapabilityVideoAudio
}

func (c Capability) String() string {
	switch c {
	case CapabilityAudioOnly:
		return "audio_only"
	case CapabilityVideoOnly:
		return "video_only"
	case CapabilityVideoAudio:
		return "video_audio"
	default:
		return fmt.Sprintf("unknown_capability_%d", int(c))
	}
}
