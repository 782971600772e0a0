package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var ErrNoPlayer = errors.New("no audio player command available")

// FilePlaceholder in ExecConfig.Args is replaced by the resolved resource.
// Without it the resource is appended as the last argument.
const FilePlaceholder = "{file}"

var lookPath = exec.LookPath

var defaultArgs = map[string][]string{
	"ffplay": {"-nodisp", "-autoexit", "-loglevel", "error"},
	"mpv":    {"--no-video", "--really-quiet"},
	"aplay":  {"-q"},
}

type ExecConfig struct {
	Command     string   // empty = first of ffplay, mpv, paplay, afplay, aplay on PATH
	Args        []string // nil = defaults for known commands
	BaseDir     string   // relative resources resolve against this
	StopTimeout time.Duration
}

// ExecPlayer plays each clip with one run of an external command on the
// host's default audio output.
type ExecPlayer struct {
	command string
	args    []string
	baseDir string
	timeout time.Duration
	log     zerolog.Logger
}

func NewExecPlayer(cfg ExecConfig, log zerolog.Logger) *ExecPlayer {
	command := strings.TrimSpace(cfg.Command)
	if command == "" {
		command = detectCommand()
	}
	args := cfg.Args
	if args == nil {
		args = defaultArgs[filepath.Base(command)]
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = time.Second
	}

	if command == "" {
		log.Warn().Msg("no audio player found on PATH; every clip will fail to start")
	} else {
		log.Info().Str("command", command).Strs("args", args).Msg("audio player ready")
	}

	return &ExecPlayer{
		command: command,
		args:    args,
		baseDir: cfg.BaseDir,
		timeout: cfg.StopTimeout,
		log:     log,
	}
}

func (p *ExecPlayer) Command() string { return p.command }

// Resolve turns a mapping file reference into what the command receives.
func (p *ExecPlayer) Resolve(resource string) string {
	if isRemote(resource) || filepath.IsAbs(resource) || p.baseDir == "" {
		return resource
	}
	return filepath.Join(p.baseDir, resource)
}

func (p *ExecPlayer) Play(resource string, ev Events) (Clip, error) {
	if p.command == "" {
		return nil, ErrNoPlayer
	}
	target := p.Resolve(resource)

	ctx, cancel := context.WithCancel(context.Background())
	c := &execClip{
		cancel:  cancel,
		done:    make(chan struct{}),
		timeout: p.timeout,
	}
	go c.run(ctx, p.command, p.argv(target), target, ev)
	return c, nil
}

func (p *ExecPlayer) argv(target string) []string {
	out := make([]string, 0, len(p.args)+1)
	replaced := false
	for _, a := range p.args {
		if a == FilePlaceholder {
			out = append(out, target)
			replaced = true
			continue
		}
		out = append(out, a)
	}
	if !replaced {
		out = append(out, target)
	}
	return out
}

type execClip struct {
	cancel  context.CancelFunc
	done    chan struct{}
	timeout time.Duration

	mu      sync.Mutex
	stopped bool

	stopOnce sync.Once
	stopErr  error
}

func (c *execClip) run(ctx context.Context, command string, args []string, target string, ev Events) {
	defer close(c.done)

	if !isRemote(target) {
		if _, err := os.Stat(target); err != nil {
			if !c.isStopped() {
				ev.LoadFailed(err)
			}
			return
		}
	}

	cmd := exec.CommandContext(ctx, command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = c.timeout / 2

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	err := cmd.Start()
	c.mu.Unlock()
	if err != nil {
		ev.StartFailed(fmt.Errorf("failed to start %s: %w", filepath.Base(command), err))
		return
	}
	ev.Ready()

	err = cmd.Wait()
	if c.isStopped() {
		return
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		ev.LoadFailed(err)
		return
	}
	ev.Ended()
}

func (c *execClip) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Stop kills the process and waits for it to go away.
func (c *execClip) Stop() error {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		c.mu.Unlock()
		c.cancel()

		select {
		case <-c.done:
		case <-time.After(c.timeout):
			c.stopErr = errors.New("audio player did not exit after stop")
		}
	})
	return c.stopErr
}

func detectCommand() string {
	candidates := []string{"ffplay", "mpv", "paplay", "aplay"}
	if runtime.GOOS == "darwin" {
		candidates = []string{"afplay", "ffplay", "mpv"}
	}
	for _, name := range candidates {
		if path, err := lookPath(name); err == nil {
			return path
		}
	}
	return ""
}

func isRemote(resource string) bool {
	return strings.Contains(resource, "://")
}
