package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// spinnerOut receives spinner frames. It is stderr so that piped command
// output never contains them.
var spinnerOut io.Writer = os.Stderr

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// spinnerTick is the frame interval.
const spinnerTick = 80 * time.Millisecond

// Spinner animates a status line while a solve runs. After the first second
// the elapsed time is appended to the message.
type Spinner struct {
	ctx     context.Context
	message string

	stop      chan struct{}
	finished  chan struct{}
	stopOnce  sync.Once
	running   atomic.Bool
	cancelled atomic.Bool

	mu      sync.Mutex
	started time.Time
	width   int
}

// newSpinner creates a spinner that runs until stopped.
func newSpinner(message string) *Spinner {
	return newSpinnerWithContext(context.Background(), message)
}

// newSpinnerWithContext creates a spinner that also stops, and reports
// Cancelled, when ctx ends.
func newSpinnerWithContext(ctx context.Context, message string) *Spinner {
	return &Spinner{
		ctx:      ctx,
		message:  message,
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Start begins drawing. It must be called at most once.
func (s *Spinner) Start() {
	s.started = time.Now()
	s.running.Store(true)
	go s.loop()
}

func (s *Spinner) loop() {
	defer close(s.finished)
	ticker := time.NewTicker(spinnerTick)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-s.stop:
			return
		case <-s.ctx.Done():
			s.cancelled.Store(true)
			s.clearLine()
			return
		case <-ticker.C:
			s.draw(spinnerFrames[i%len(spinnerFrames)])
		}
	}
}

func (s *Spinner) draw(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := s.message
	if elapsed := time.Since(s.started); elapsed >= time.Second {
		text = fmt.Sprintf("%s (%ds)", text, int(elapsed.Seconds()))
	}
	s.width = max(s.width, len(text))
	fmt.Fprintf(spinnerOut, "\r%s %s", StyleHighlight.Render(frame), StyleDim.Render(text))
}

func (s *Spinner) clearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.width > 0 {
		fmt.Fprintf(spinnerOut, "\r%s\r", strings.Repeat(" ", s.width+2))
	}
}

// Stop halts the animation and clears the line. It is idempotent and safe
// to call on a spinner that never started.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.running.Load() {
		<-s.finished
	}
	s.clearLine()
}

// StopWithSuccess stops the spinner and prints a success line.
func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()
	printSuccess("%s", message)
}

// StopWithError stops the spinner and prints an error line.
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	printError("%s", message)
}

// Cancelled reports whether the spinner stopped because its context ended.
func (s *Spinner) Cancelled() bool {
	return s.cancelled.Load()
}
