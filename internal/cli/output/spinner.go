package output

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Spinner displays a progress animation.
type Spinner struct {
	w        io.Writer
	message  string
	frames   []string
	interval time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	stopped   chan struct{}
}

// NewSpinner creates a new spinner.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:        w,
		message:  message,
		frames:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		interval: 100 * time.Millisecond,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start starts the animation. Calling it again has no effect.
func (s *Spinner) Start() {
	s.startOnce.Do(func() {
		go func() {
			defer close(s.stopped)
			ticker := time.NewTicker(s.interval)
			defer ticker.Stop()
			for i := 0; ; i++ {
				fmt.Fprintf(s.w, "\r%s %s", s.frames[i%len(s.frames)], s.message)
				select {
				case <-s.done:
					return
				case <-ticker.C:
				}
			}
		}()
	})
}

// Stop stops the animation and clears the line.
func (s *Spinner) Stop() {
	s.finish("\r\033[K")
}

// Success stops the spinner with a success message.
func (s *Spinner) Success(message string) {
	s.finish("\r✓ " + message + "\033[K\n")
}

// Fail stops the spinner with a failure message.
func (s *Spinner) Fail(message string) {
	s.finish("\r✗ " + message + "\033[K\n")
}

func (s *Spinner) finish(final string) {
	s.stopOnce.Do(func() {
		close(s.done)
		started := true
		s.startOnce.Do(func() { started = false })
		if started {
			<-s.stopped
		}
		fmt.Fprint(s.w, final)
	})
}
