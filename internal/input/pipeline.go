// Package input turns raw text-change notifications from the scan field into
// codes. A scanner in keyboard-wedge mode, a keypad and a person typing all
// look the same here.
package input

import (
	"github.com/rs/zerolog"

	"scankiosk/internal/mapping"
)

type Router interface {
	Route(code string) error
}

// Focuser puts keyboard focus back on the scan field.
type Focuser interface {
	Focus()
}

type FocusFunc func()

func (f FocusFunc) Focus() { f() }

// Scheduler runs fn on the next tick of the control loop.
type Scheduler interface {
	Post(fn func()) bool
}

type Config struct {
	KeepFocus bool
}

// Pipeline must be driven from the control loop.
type Pipeline struct {
	cfg     Config
	router  Router
	focuser Focuser
	sched   Scheduler
	log     zerolog.Logger

	refocusPending bool
	refocusGen     uint64
}

func NewPipeline(cfg Config, router Router, focuser Focuser, sched Scheduler, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		router:  router,
		focuser: focuser,
		sched:   sched,
		log:     log,
	}
}

// Change handles the field's new raw value and returns what the field
// should now contain: the digits typed so far, or empty once a code has
// been dispatched. Digits past the third are dropped with the clear.
func (p *Pipeline) Change(raw string) string {
	digits := mapping.Digits(raw)
	if len(digits) < mapping.CodeLen {
		return digits
	}

	code := digits[:mapping.CodeLen]
	if len(digits) > mapping.CodeLen {
		p.log.Debug().Str("code", code).Str("dropped", digits[mapping.CodeLen:]).Msg("extra digits discarded")
	}
	if err := p.router.Route(code); err != nil {
		p.log.Debug().Err(err).Str("code", code).Msg("route finished with error")
	}
	return ""
}

// Blur schedules one refocus for the next tick. Repeated blurs before the
// tick coalesce; a Focus in between cancels it.
func (p *Pipeline) Blur() {
	if !p.cfg.KeepFocus || p.focuser == nil || p.refocusPending {
		return
	}
	p.refocusPending = true
	p.refocusGen++
	gen := p.refocusGen
	if !p.sched.Post(func() { p.refocus(gen) }) {
		p.refocusPending = false
	}
}

// Focus records that the field has focus again.
func (p *Pipeline) Focus() {
	p.refocusPending = false
}

func (p *Pipeline) refocus(gen uint64) {
	if !p.refocusPending || gen != p.refocusGen {
		return
	}
	p.refocusPending = false
	p.focuser.Focus()
}
