package playback

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"scankiosk/internal/panel"
)

type Phase string

const (
	PhaseLoading Phase = "loading"
	PhasePlaying Phase = "playing"
	PhaseEnded   Phase = "ended"
	PhaseFailed  Phase = "failed"
)

// Display is the part of the status panel a session writes.
type Display interface {
	SetStatus(panel.Status)
	ShowInfo(text string)
	ShowError(text string)
}

// Snapshot describes the active clip.
type Snapshot struct {
	ID          uint64 `json:"id"`
	Trace       string `json:"trace"`
	Resource    string `json:"resource"`
	Description string `json:"description"`
	Phase       Phase  `json:"phase"`
}

type clip struct {
	id          uint64
	trace       string
	resource    string
	description string
	phase       Phase
	handle      Clip
}

// Session keeps at most one clip alive. All methods, and every callback it
// hands to the player, run on the dispatcher's goroutine.
type Session struct {
	player   Player
	display  Display
	dispatch Dispatcher
	log      zerolog.Logger

	seq    uint64
	active *clip
}

func NewSession(player Player, display Display, dispatch Dispatcher, log zerolog.Logger) *Session {
	return &Session{
		player:   player,
		display:  display,
		dispatch: dispatch,
		log:      log,
	}
}

// Play tears down the current clip, if any, and starts a new one.
func (s *Session) Play(resource, description string) {
	s.discard()

	s.seq++
	c := &clip{
		id:          s.seq,
		trace:       uuid.NewString(),
		resource:    resource,
		description: description,
		phase:       PhaseLoading,
	}
	s.active = c
	s.display.SetStatus(panel.StatusLoading)
	s.log.Debug().Uint64("clip", c.id).Str("trace", c.trace).Str("resource", resource).Msg("clip loading")

	handle, err := s.player.Play(resource, &clipEvents{s: s, id: c.id})
	if err != nil {
		if s.active == c {
			s.fail(c, &AudioPlaybackError{Resource: resource, Err: err})
		}
		return
	}
	if s.active != c {
		// terminal before Play returned
		_ = handle.Stop()
		return
	}
	c.handle = handle
}

// Stop silences the current clip without touching the display.
func (s *Session) Stop() {
	s.discard()
}

func (s *Session) Current() (Snapshot, bool) {
	c := s.active
	if c == nil {
		return Snapshot{}, false
	}
	return Snapshot{
		ID:          c.id,
		Trace:       c.trace,
		Resource:    c.resource,
		Description: c.description,
		Phase:       c.phase,
	}, true
}

func (s *Session) discard() {
	c := s.active
	if c == nil {
		return
	}
	s.active = nil
	if c.handle != nil {
		if err := c.handle.Stop(); err != nil {
			s.log.Warn().Err(err).Uint64("clip", c.id).Msg("stopping superseded clip")
		}
	}
	s.log.Debug().Uint64("clip", c.id).Str("phase", string(c.phase)).Msg("clip superseded")
}

// current returns the clip for id only while it is still the active one.
func (s *Session) current(id uint64) *clip {
	if s.active == nil || s.active.id != id {
		return nil
	}
	return s.active
}

func (s *Session) ready(id uint64) {
	c := s.current(id)
	if c == nil || c.phase != PhaseLoading {
		return
	}
	c.phase = PhasePlaying
	s.display.SetStatus(panel.StatusPlaying)
	s.display.ShowInfo(c.description)
	s.log.Info().Uint64("clip", c.id).Str("resource", c.resource).Msg("clip playing")
}

func (s *Session) ended(id uint64) {
	c := s.current(id)
	if c == nil {
		return
	}
	c.phase = PhaseEnded
	s.active = nil
	s.display.SetStatus(panel.StatusIdle)
	s.log.Info().Uint64("clip", c.id).Msg("clip ended")
}

func (s *Session) loadFailed(id uint64, err error) {
	if c := s.current(id); c != nil {
		s.fail(c, &AudioLoadError{Resource: c.resource, Err: err})
	}
}

func (s *Session) startFailed(id uint64, err error) {
	if c := s.current(id); c != nil {
		s.fail(c, &AudioPlaybackError{Resource: c.resource, Err: err})
	}
}

func (s *Session) fail(c *clip, err error) {
	c.phase = PhaseFailed
	if s.active == c {
		s.active = nil
	}
	if c.handle != nil {
		_ = c.handle.Stop()
	}
	s.display.SetStatus(panel.StatusIdle)
	s.display.ShowError(err.Error())
	s.log.Warn().Err(err).Uint64("clip", c.id).Str("resource", c.resource).Msg("clip failed")
}

// clipEvents binds player callbacks to one clip id.
type clipEvents struct {
	s  *Session
	id uint64
}

func (e *clipEvents) Ready() {
	e.s.dispatch.Post(func() { e.s.ready(e.id) })
}

func (e *clipEvents) Ended() {
	e.s.dispatch.Post(func() { e.s.ended(e.id) })
}

func (e *clipEvents) LoadFailed(err error) {
	e.s.dispatch.Post(func() { e.s.loadFailed(e.id, err) })
}

func (e *clipEvents) StartFailed(err error) {
	e.s.dispatch.Post(func() { e.s.startFailed(e.id, err) })
}
