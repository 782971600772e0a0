// Package kiosk assembles the scan-to-playback pipeline and exposes it to
// the input surfaces (HTTP page, terminal). Every call is marshalled onto
// one control loop.
package kiosk

import (
	"context"

	"github.com/rs/zerolog"

	"scankiosk/internal/input"
	"scankiosk/internal/loop"
	"scankiosk/internal/mapping"
	"scankiosk/internal/panel"
	"scankiosk/internal/playback"
	"scankiosk/internal/router"
)

const msgConfigLoad = "configuration file could not be loaded"

type Config struct {
	KeepFocus bool
	QueueSize int
}

type App struct {
	store    *mapping.Store
	panel    *panel.Panel
	loop     *loop.Loop
	session  *playback.Session
	router   *router.Router
	pipeline *input.Pipeline
	log      zerolog.Logger
}

// New wires the pipeline. focuser may be nil when no surface can take focus.
func New(cfg Config, store *mapping.Store, player playback.Player, focuser input.Focuser, log zerolog.Logger) *App {
	p := panel.New()
	l := loop.New(cfg.QueueSize, log.With().Str("component", "loop").Logger())
	session := playback.NewSession(player, p, l, log.With().Str("component", "playback").Logger())
	r := router.New(store, session, p, log.With().Str("component", "router").Logger())
	pipeline := input.NewPipeline(input.Config{KeepFocus: cfg.KeepFocus}, r, focuser, l, log.With().Str("component", "input").Logger())

	return &App{
		store:    store,
		panel:    p,
		loop:     l,
		session:  session,
		router:   r,
		pipeline: pipeline,
		log:      log,
	}
}

func (a *App) Panel() *panel.Panel { return a.panel }

// Run loads the mapping, then serves queued input until ctx is done. A
// failed load leaves the kiosk running with every scan reporting the
// missing configuration.
func (a *App) Run(ctx context.Context) error {
	a.applyLoad(a.store.Load(ctx))
	a.panel.SetStatus(panel.StatusIdle)

	err := a.loop.Run(ctx)
	a.session.Stop()
	return err
}

func (a *App) applyLoad(err error) {
	if err != nil {
		a.panel.ShowError(msgConfigLoad)
		return
	}
	a.log.Info().Int("codes", a.store.Len()).Msg("kiosk armed")
}

// Input feeds one raw change of the scan field and returns the value the
// field should show.
func (a *App) Input(ctx context.Context, raw string) (string, error) {
	var out string
	err := a.loop.Do(ctx, func() { out = a.pipeline.Change(raw) })
	return out, err
}

func (a *App) Blur(ctx context.Context) error {
	return a.loop.Do(ctx, a.pipeline.Blur)
}

func (a *App) Focus(ctx context.Context) error {
	return a.loop.Do(ctx, a.pipeline.Focus)
}

// Reload re-reads the mapping on request. There is no automatic retry.
func (a *App) Reload(ctx context.Context) error {
	loadErr := a.store.Load(ctx)
	if err := a.loop.Do(ctx, func() {
		a.applyLoad(loadErr)
		if loadErr == nil && a.showsConfigError() {
			a.panel.ShowInfo("")
		}
	}); err != nil {
		return err
	}
	return loadErr
}

// showsConfigError reports whether the info line is about the mapping
// rather than playback.
func (a *App) showsConfigError() bool {
	st := a.panel.Snapshot()
	if !st.InfoIsError {
		return false
	}
	return st.Info == msgConfigLoad || st.Info == router.ErrConfigUnavailable.Error()
}

func (a *App) Display() panel.State {
	return a.panel.Snapshot()
}

// Clip reports the active clip, if any.
func (a *App) Clip(ctx context.Context) (playback.Snapshot, bool, error) {
	var (
		snap playback.Snapshot
		ok   bool
	)
	err := a.loop.Do(ctx, func() { snap, ok = a.session.Current() })
	return snap, ok, err
}
