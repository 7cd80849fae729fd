// Package avbranch implements a protocol for safely attaching and
// detaching a downstream branch of a live media-processing graph while
// the graph keeps producing data on its other branches.
//
// The upstream fan-out point (tee) of a branch is actively written to
// by a realtime producer, so a branch connection may only be unlinked
// at a moment the engine itself confirms the connection is idle. The
// protocol defers every unlink to an engine idle probe, signals
// draining explicitly via EOS, and coordinates an arbitrary number of
// such detachments so the caller can block until all of them completed
// before releasing the branch's resources.
//
// The media engine itself is an external collaborator accessed through
// the narrow interface in the engine subpackage.
package avbranch
