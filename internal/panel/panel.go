// Package panel holds the kiosk's display state: a short status word and an
// info line that is either normal text or an error.
package panel

import (
	"sync"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusPlaying Status = "playing"
)

// State is the whole display. Sinks always receive a full copy.
type State struct {
	Status      Status `json:"status"`
	Info        string `json:"info"`
	InfoIsError bool   `json:"info_is_error"`
	Version     uint64 `json:"version"`
}

// Sink observes every write to the panel.
type Sink interface {
	PanelChanged(State)
}

type SinkFunc func(State)

func (f SinkFunc) PanelChanged(s State) { f(s) }

// Panel is written from the control loop and snapshotted from anywhere.
// Sinks are called outside the lock, in write order.
type Panel struct {
	mu    sync.Mutex
	state State
	sinks []Sink
}

func New() *Panel {
	return &Panel{state: State{Status: StatusIdle}}
}

func (p *Panel) Subscribe(s Sink) {
	p.mu.Lock()
	p.sinks = append(p.sinks, s)
	p.mu.Unlock()
}

func (p *Panel) SetStatus(s Status) {
	p.update(func(st *State) { st.Status = s })
}

func (p *Panel) ShowInfo(text string) {
	p.update(func(st *State) {
		st.Info = text
		st.InfoIsError = false
	})
}

func (p *Panel) ShowError(text string) {
	p.update(func(st *State) {
		st.Info = text
		st.InfoIsError = true
	})
}

func (p *Panel) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Panel) update(fn func(*State)) {
	p.mu.Lock()
	fn(&p.state)
	p.state.Version++
	st := p.state
	sinks := append([]Sink(nil), p.sinks...)
	p.mu.Unlock()

	for _, s := range sinks {
		s.PanelChanged(st)
	}
}

// Labels maps statuses to display words.
type Labels map[Status]string

func DefaultLabels() Labels {
	return Labels{
		StatusIdle:    "Ready",
		StatusLoading: "Loading",
		StatusPlaying: "Playing",
	}
}

// NewLabels overlays configured words (keyed by status name) on the defaults.
func NewLabels(overrides map[string]string) Labels {
	l := DefaultLabels()
	for k, v := range overrides {
		if v == "" {
			continue
		}
		switch s := Status(k); s {
		case StatusIdle, StatusLoading, StatusPlaying:
			l[s] = v
		}
	}
	return l
}

func (l Labels) Label(s Status) string {
	if v, ok := l[s]; ok {
		return v
	}
	return string(s)
}
