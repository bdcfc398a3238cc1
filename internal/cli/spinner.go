package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

var spinnerFrames = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

const spinnerInterval = 80 * time.Millisecond

// spinner draws a one-line progress indicator on stderr while a blocking
// step runs. It draws nothing when stderr is not a terminal.
type spinner struct {
	msg     string
	w       io.Writer
	animate bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func newSpinner(ctx context.Context, msg string) *spinner {
	ctx, cancel := context.WithCancel(ctx)
	return &spinner{
		msg:     msg,
		w:       os.Stderr,
		animate: isatty.IsTerminal(os.Stderr.Fd()),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// startSpinner creates a spinner bound to ctx and starts it.
func startSpinner(ctx context.Context, msg string) *spinner {
	return newSpinner(ctx, msg).start()
}

func (s *spinner) start() *spinner {
	if !s.animate {
		return s
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		tick := time.NewTicker(spinnerInterval)
		defer tick.Stop()
		for i := 0; ; i++ {
			frame := string(spinnerFrames[i%len(spinnerFrames)])
			fmt.Fprintf(s.w, "\r%s %s", styleIconSpinner.Render(frame), StyleDim.Render(s.msg))
			select {
			case <-s.ctx.Done():
				fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", len(s.msg)+4))
				return
			case <-tick.C:
			}
		}
	}()
	return s
}

// Stop halts the animation and clears the line. It is safe to call twice.
func (s *spinner) Stop() {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
	})
}

func (s *spinner) StopWithSuccess(msg string) {
	s.Stop()
	printSuccess("%s", msg)
}

func (s *spinner) StopWithError(msg string) {
	s.Stop()
	printError("%s", msg)
}
