package playback

import (
	"fmt"
)

// Events receives the lifecycle of one clip. Players may call it from any
// goroutine, any number of times; the session ignores what no longer
// applies.
type Events interface {
	// Ready reports the clip can play and audio is starting.
	Ready()
	// Ended reports natural completion.
	Ended()
	// LoadFailed reports the resource could not be loaded or decoded.
	LoadFailed(err error)
	// StartFailed reports the platform refused to start playback.
	StartFailed(err error)
}

// Clip is a handle on one underlying playback.
type Clip interface {
	// Stop silences the clip before returning. Safe to call more than once.
	Stop() error
}

// Player starts clips. A returned error means the start was rejected.
type Player interface {
	Play(resource string, ev Events) (Clip, error)
}

// Dispatcher moves callbacks onto the control loop.
type Dispatcher interface {
	Post(fn func()) bool
}

// AudioLoadError is shown when a resource fails to load.
type AudioLoadError struct {
	Resource string
	Err      error
}

func (e *AudioLoadError) Error() string {
	return fmt.Sprintf("cannot load audio file: %s", e.Resource)
}

func (e *AudioLoadError) Unwrap() error { return e.Err }

// AudioPlaybackError is shown when playback start is rejected.
type AudioPlaybackError struct {
	Resource string
	Err      error
}

func (e *AudioPlaybackError) Error() string {
	reason := "unknown error"
	if e.Err != nil {
		reason = e.Err.Error()
	}
	return fmt.Sprintf("audio playback failed: %s", reason)
}

func (e *AudioPlaybackError) Unwrap() error { return e.Err }
