package logger

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Spinner represents an animated spinner for long-running operations
type Spinner struct {
	mu       sync.Mutex
	active   bool
	message  string
	frames   []string
	interval time.Duration
	stopChan chan struct{}
	done     chan struct{}
}

// SpinnerDots are the default frames.
var SpinnerDots = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// NewSpinner creates a new spinner with the default frames
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message:  message,
		frames:   SpinnerDots,
		interval: 100 * time.Millisecond,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start starts the spinner animation. It draws nothing when stdout is not
// a terminal.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.mu.Unlock()

	w := stdout()
	animate := ColorEnabled()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for i := 0; ; i++ {
			s.mu.Lock()
			msg := s.message
			s.mu.Unlock()

			if animate {
				frame := paint(colorPrefix, false, s.frames[i%len(s.frames)])
				_, _ = fmt.Fprintf(w, "\r%s %s", frame, msg)
			}

			select {
			case <-s.stopChan:
				if animate {
					_, _ = fmt.Fprintf(w, "\r%s\r", strings.Repeat(" ", len(msg)+10))
				}
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop stops the spinner and waits for the line to be cleared
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.mu.Unlock()

	close(s.stopChan)
	<-s.done
}

// Success stops the spinner and shows a success message
func (s *Spinner) Success(message string) {
	s.Stop()
	Success(message)
}

// Error stops the spinner and shows an error message
func (s *Spinner) Error(message string) {
	s.Stop()
	Error(message)
}

// UpdateMessage updates the spinner message
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// WithSpinner runs a function with a spinner
func WithSpinner(message string, fn func() error) error {
	spinner := NewSpinner(message)
	spinner.Start()

	err := fn()

	if err != nil {
		spinner.Error(fmt.Sprintf("%s failed: %v", message, err))
	} else {
		spinner.Success(fmt.Sprintf("%s completed", message))
	}

	return err
}
