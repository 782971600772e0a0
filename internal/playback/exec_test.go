package playback

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type event struct {
	kind string
	err  error
}

type recorder struct{ ch chan event }

func newRecorder() *recorder { return &recorder{ch: make(chan event, 8)} }

func (r *recorder) Ready()                { r.ch <- event{kind: "ready"} }
func (r *recorder) Ended()                { r.ch <- event{kind: "ended"} }
func (r *recorder) LoadFailed(err error)  { r.ch <- event{kind: "load", err: err} }
func (r *recorder) StartFailed(err error) { r.ch <- event{kind: "start", err: err} }

func (r *recorder) next(t *testing.T) event {
	t.Helper()
	select {
	case ev := <-r.ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for player event")
		return event{}
	}
}

func (r *recorder) none(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-r.ch:
		t.Fatalf("unexpected event %q", ev.kind)
	case <-time.After(wait):
	}
}

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func clipFile(t *testing.T) (dir, name string) {
	t.Helper()
	dir = t.TempDir()
	name = "a.mp3"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("ID3"), 0o644))
	return dir, name
}

func TestExecPlayerEnded(t *testing.T) {
	sh := requireShell(t)
	dir, name := clipFile(t)
	p := NewExecPlayer(ExecConfig{
		Command: sh,
		Args:    []string{"-c", `test -f "$0"`, FilePlaceholder},
		BaseDir: dir,
	}, zerolog.Nop())

	rec := newRecorder()
	_, err := p.Play(name, rec)
	require.NoError(t, err)
	require.Equal(t, "ready", rec.next(t).kind)
	require.Equal(t, "ended", rec.next(t).kind)
}

func TestExecPlayerNonZeroExitIsLoadFailure(t *testing.T) {
	sh := requireShell(t)
	dir, name := clipFile(t)
	p := NewExecPlayer(ExecConfig{
		Command: sh,
		Args:    []string{"-c", "echo cannot decode >&2; exit 3", FilePlaceholder},
		BaseDir: dir,
	}, zerolog.Nop())

	rec := newRecorder()
	_, err := p.Play(name, rec)
	require.NoError(t, err)
	require.Equal(t, "ready", rec.next(t).kind)
	ev := rec.next(t)
	require.Equal(t, "load", ev.kind)
	require.Contains(t, ev.err.Error(), "cannot decode")
}

func TestExecPlayerMissingFile(t *testing.T) {
	sh := requireShell(t)
	p := NewExecPlayer(ExecConfig{Command: sh, Args: []string{"-c", "exit 0"}, BaseDir: t.TempDir()}, zerolog.Nop())

	rec := newRecorder()
	_, err := p.Play("nope.mp3", rec)
	require.NoError(t, err)
	ev := rec.next(t)
	require.Equal(t, "load", ev.kind)
	require.ErrorIs(t, ev.err, os.ErrNotExist)
}

func TestExecPlayerStartFailure(t *testing.T) {
	dir, name := clipFile(t)
	p := NewExecPlayer(ExecConfig{Command: filepath.Join(dir, "no-such-player"), Args: []string{}, BaseDir: dir}, zerolog.Nop())

	rec := newRecorder()
	_, err := p.Play(name, rec)
	require.NoError(t, err)
	require.Equal(t, "start", rec.next(t).kind)
}

func TestExecPlayerStopSilencesClip(t *testing.T) {
	sh := requireShell(t)
	dir, name := clipFile(t)
	p := NewExecPlayer(ExecConfig{
		Command:     sh,
		Args:        []string{"-c", "exec sleep 30", FilePlaceholder},
		BaseDir:     dir,
		StopTimeout: 3 * time.Second,
	}, zerolog.Nop())

	rec := newRecorder()
	clip, err := p.Play(name, rec)
	require.NoError(t, err)
	require.Equal(t, "ready", rec.next(t).kind)

	start := time.Now()
	require.NoError(t, clip.Stop())
	require.Less(t, time.Since(start), 3*time.Second)
	require.NoError(t, clip.Stop())
	rec.none(t, 100*time.Millisecond)
}

func TestExecPlayerNoCommand(t *testing.T) {
	orig := lookPath
	lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	t.Cleanup(func() { lookPath = orig })

	p := NewExecPlayer(ExecConfig{}, zerolog.Nop())
	require.Empty(t, p.Command())
	_, err := p.Play("a.mp3", newRecorder())
	require.ErrorIs(t, err, ErrNoPlayer)
}

func TestExecPlayerResolveAndArgs(t *testing.T) {
	orig := lookPath
	lookPath = func(name string) (string, error) {
		if name == "mpv" {
			return "/usr/bin/mpv", nil
		}
		return "", exec.ErrNotFound
	}
	t.Cleanup(func() { lookPath = orig })

	p := NewExecPlayer(ExecConfig{BaseDir: "/srv/kiosk"}, zerolog.Nop())
	require.Equal(t, "/usr/bin/mpv", p.Command())
	require.Equal(t, "/srv/kiosk/sounds/a.mp3", p.Resolve("sounds/a.mp3"))
	require.Equal(t, "/abs/a.mp3", p.Resolve("/abs/a.mp3"))
	require.Equal(t, "https://cdn.example/a.mp3", p.Resolve("https://cdn.example/a.mp3"))
	require.Equal(t, []string{"--no-video", "--really-quiet", "/srv/kiosk/a.mp3"}, p.argv(p.Resolve("a.mp3")))
}
