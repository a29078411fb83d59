// Package progress shows activity on the terminal while a backend call that
// has no measurable progress (a solve or sweep) is in flight.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Reporter is the interface for reporting activity around a blocking call.
type Reporter interface {
	Start(description string)
	Finish(err error)
}

// tickInterval is how often the spinner advances.
const tickInterval = 100 * time.Millisecond

// Spinner implements Reporter with an indeterminate progress bar.
type Spinner struct {
	w    io.Writer
	bar  *progressbar.ProgressBar
	stop chan struct{}
	done chan struct{}
	mu   sync.Mutex
}

// NewSpinner creates a spinner writing to w.
func NewSpinner(w io.Writer) *Spinner {
	return &Spinner{w: w}
}

// New returns a Spinner on stderr when stderr is a terminal and a NoOp otherwise.
func New() Reporter {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return NewSpinner(os.Stderr)
	}
	return NoOp{}
}

// Start shows the spinner with description. Calling Start on a running
// spinner only changes the description.
func (s *Spinner) Start(description string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bar != nil {
		s.bar.Describe(description)
		return
	}

	s.bar = progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(s.w),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionThrottle(tickInterval),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func(bar *progressbar.ProgressBar, stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}(s.bar, s.stop, s.done)
}

// Finish stops the spinner and prints the outcome.
func (s *Spinner) Finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bar == nil {
		return
	}
	close(s.stop)
	<-s.done
	_ = s.bar.Finish()
	s.bar = nil

	if err != nil {
		fmt.Fprintf(s.w, "Error: %v\n", err)
	}
}

// NoOp is a reporter that does nothing (for pipes and quiet runs).
type NoOp struct{}

// Start does nothing.
func (NoOp) Start(string) {}

// Finish does nothing.
func (NoOp) Finish(error) {}
