package avbranch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCapabilityKinds(t *testing.T) {
	require.True(t, CapabilityAudioOnly.HasAudio())
	require.False(t, CapabilityAudioOnly.HasVideo())

	require.True(t, CapabilityVideoOnly.HasVideo())
	require.False(t, CapabilityVideoOnly.HasAudio())

	require.True(t, CapabilityVideoAudio.HasVideo())
	require.True(t, CapabilityVideoAudio.HasAudio())

	require.False(t, CapabilityUndefined.HasVideo())
	require.False(t, CapabilityUndefined.HasAudio())
}

func TestCapabilityString(t *testing.T) {
	for _, cap := range Capabilities() {
		require.NotContains(t, cap.String(), "unknown")
	}
	require.Contains(t, CapabilityUndefined.String(), "unknown")
}
