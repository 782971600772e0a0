package kiosk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"scankiosk/internal/input"
	"scankiosk/internal/mapping"
	"scankiosk/internal/panel"
	"scankiosk/internal/playback"
)

type fakeClip struct {
	mu    sync.Mutex
	stops int
}

func (c *fakeClip) Stop() error {
	c.mu.Lock()
	c.stops++
	c.mu.Unlock()
	return nil
}

type started struct {
	resource string
	events   playback.Events
	clip     *fakeClip
}

// fakePlayer is called on the loop goroutine; the test reads it through Do.
type fakePlayer struct {
	mu    sync.Mutex
	plays []started
}

func (p *fakePlayer) Play(resource string, ev playback.Events) (playback.Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := &fakeClip{}
	p.plays = append(p.plays, started{resource: resource, events: ev, clip: c})
	return c, nil
}

func (p *fakePlayer) get(i int) started {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays[i]
}

func (p *fakePlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.plays)
}

type harness struct {
	app    *App
	player *fakePlayer
	focus  chan struct{}
	ctx    context.Context
}

func start(t *testing.T, doc string) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	h := &harness{player: &fakePlayer{}, focus: make(chan struct{}, 4)}
	store := mapping.NewStore(path, zerolog.Nop())
	h.app = New(Config{KeepFocus: true}, store, h.player, input.FocusFunc(func() { h.focus <- struct{}{} }), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	h.ctx = ctx
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.app.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

// sync waits until everything posted so far has run.
func (h *harness) sync(t *testing.T) {
	t.Helper()
	_, _, err := h.app.Clip(h.ctx)
	require.NoError(t, err)
}

const zoneA = `{"mappings": {"007": {"file": "a.mp3", "description": "Zone A"}, "123": {"file": "b.mp3", "description": "Zone B"}}}`

func TestScanPlaysMappedClip(t *testing.T) {
	h := start(t, zoneA)

	v, err := h.app.Input(h.ctx, "00")
	require.NoError(t, err)
	require.Equal(t, "00", v)
	require.Zero(t, h.player.count())

	v, err = h.app.Input(h.ctx, "007")
	require.NoError(t, err)
	require.Empty(t, v)
	require.Equal(t, 1, h.player.count())
	require.Equal(t, "a.mp3", h.player.get(0).resource)
	require.Equal(t, panel.StatusLoading, h.app.Display().Status)

	h.player.get(0).events.Ready()
	h.sync(t)
	st := h.app.Display()
	require.Equal(t, panel.StatusPlaying, st.Status)
	require.Equal(t, "Zone A", st.Info)

	h.player.get(0).events.Ended()
	h.sync(t)
	require.Equal(t, panel.StatusIdle, h.app.Display().Status)
	_, ok, err := h.app.Clip(h.ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// a fresh session starts right away
	_, err = h.app.Input(h.ctx, "007")
	require.NoError(t, err)
	require.Equal(t, 2, h.player.count())
}

func TestScanUnknownCode(t *testing.T) {
	h := start(t, zoneA)

	v, err := h.app.Input(h.ctx, "008")
	require.NoError(t, err)
	require.Empty(t, v)
	require.Zero(t, h.player.count())

	st := h.app.Display()
	require.True(t, st.InfoIsError)
	require.Contains(t, st.Info, "008")
	require.Equal(t, panel.StatusIdle, st.Status)
}

func TestBurstOfFourDigits(t *testing.T) {
	h := start(t, zoneA)

	v, err := h.app.Input(h.ctx, "1234")
	require.NoError(t, err)
	require.Empty(t, v)
	require.Equal(t, 1, h.player.count())
	require.Equal(t, "b.mp3", h.player.get(0).resource)
}

func TestRescanSupersedesAndIgnoresStaleCallbacks(t *testing.T) {
	h := start(t, zoneA)

	_, err := h.app.Input(h.ctx, "007")
	require.NoError(t, err)
	_, err = h.app.Input(h.ctx, "123")
	require.NoError(t, err)

	first, second := h.player.get(0), h.player.get(1)
	first.clip.mu.Lock()
	require.Equal(t, 1, first.clip.stops)
	first.clip.mu.Unlock()

	second.events.Ready()
	first.events.LoadFailed(errors.New("late decode error"))
	first.events.Ended()
	h.sync(t)

	st := h.app.Display()
	require.Equal(t, panel.StatusPlaying, st.Status)
	require.Equal(t, "Zone B", st.Info)
	require.False(t, st.InfoIsError)
}

func TestFailedLoadBlocksPlayback(t *testing.T) {
	h := start(t, `{"mappings": `)

	for _, raw := range []string{"007", "123"} {
		v, err := h.app.Input(h.ctx, raw)
		require.NoError(t, err)
		require.Empty(t, v)
	}
	require.Zero(t, h.player.count())
	st := h.app.Display()
	require.True(t, st.InfoIsError)
	require.Equal(t, "configuration is not loaded", st.Info)
}

func TestReloadRecovers(t *testing.T) {
	h := start(t, `not json`)
	h.sync(t)
	require.Equal(t, msgConfigLoad, h.app.Display().Info)

	path := h.app.store.Path()
	require.NoError(t, os.WriteFile(path, []byte(zoneA), 0o644))
	// a scan while unloaded replaces the load message
	_, err := h.app.Input(h.ctx, "007")
	require.NoError(t, err)
	require.Equal(t, "configuration is not loaded", h.app.Display().Info)

	require.NoError(t, h.app.Reload(h.ctx))
	require.False(t, h.app.Display().InfoIsError)
	require.Empty(t, h.app.Display().Info)

	_, err = h.app.Input(h.ctx, "007")
	require.NoError(t, err)
	require.Equal(t, 1, h.player.count())
}

func TestReloadKeepsPlaybackError(t *testing.T) {
	h := start(t, zoneA)

	_, err := h.app.Input(h.ctx, "007")
	require.NoError(t, err)
	h.player.get(0).events.LoadFailed(errors.New("decode error"))
	h.sync(t)
	require.Equal(t, "cannot load audio file: a.mp3", h.app.Display().Info)

	require.NoError(t, h.app.Reload(h.ctx))
	st := h.app.Display()
	require.True(t, st.InfoIsError)
	require.Equal(t, "cannot load audio file: a.mp3", st.Info)
}

func TestReloadFailureReported(t *testing.T) {
	h := start(t, zoneA)
	h.sync(t)
	require.NoError(t, os.Remove(h.app.store.Path()))

	err := h.app.Reload(h.ctx)
	require.ErrorIs(t, err, mapping.ErrConfigLoad)
	require.Equal(t, msgConfigLoad, h.app.Display().Info)
}

func TestBlurRequestsFocus(t *testing.T) {
	h := start(t, zoneA)

	require.NoError(t, h.app.Blur(h.ctx))
	h.sync(t)
	select {
	case <-h.focus:
	default:
		t.Fatal("expected a refocus after blur")
	}
	require.Empty(t, h.focus, "one blur, one refocus")
}
