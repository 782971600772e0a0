// Package console is the terminal surface: scanner lines in on stdin,
// display changes out as text.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"scankiosk/internal/panel"
)

type Inputter interface {
	Input(ctx context.Context, raw string) (string, error)
}

// Reader delivers every line as one change of the scan field. A scanner in
// keyboard-wedge mode ends each code with Enter, which gives one line per
// scan.
type Reader struct {
	in    io.Reader
	kiosk Inputter
	log   zerolog.Logger
}

func NewReader(in io.Reader, k Inputter, log zerolog.Logger) *Reader {
	return &Reader{in: in, kiosk: k, log: log}
}

// Run returns nil at end of input or when ctx is done.
func (r *Reader) Run(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			rest, err := r.kiosk.Input(ctx, line)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			if rest != "" {
				r.log.Debug().Str("pending", rest).Msg("incomplete code ignored at end of line")
			}
		}
	}
}

// Printer writes "[label] info" for every panel change.
type Printer struct {
	mu     sync.Mutex
	out    io.Writer
	labels panel.Labels
}

func NewPrinter(out io.Writer, labels panel.Labels) *Printer {
	if labels == nil {
		labels = panel.DefaultLabels()
	}
	return &Printer{out: out, labels: labels}
}

func (p *Printer) PanelChanged(st panel.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	info := st.Info
	if st.InfoIsError && info != "" {
		info = "error: " + info
	}
	fmt.Fprintf(p.out, "[%s] %s\n", p.labels.Label(st.Status), info)
}
