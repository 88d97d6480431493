package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// SimpleSpinner draws a one-line spinner until stopped.
type SimpleSpinner struct {
	message  string
	spinner  spinner.Spinner
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSpinner creates a spinner for general loading operations (Dot style)
func NewSpinner(message string) *SimpleSpinner {
	return newSpinner(message, spinner.Dot)
}

// NewConnectionSpinner creates a spinner for network operations (Globe style)
func NewConnectionSpinner(message string) *SimpleSpinner {
	return newSpinner(message, spinner.Globe)
}

func newSpinner(message string, s spinner.Spinner) *SimpleSpinner {
	return &SimpleSpinner{
		message: message,
		spinner: s,
		done:    make(chan struct{}),
	}
}

func (s *SimpleSpinner) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.spinner.FPS)
		defer ticker.Stop()

		frames := s.spinner.Frames
		for i := 0; ; i++ {
			frame := SpinnerStyle.Render(frames[i%len(frames)])
			fmt.Fprintf(Out, "\r%s %s", frame, s.message)
			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop halts the spinner and clears its line. It is safe to call twice.
func (s *SimpleSpinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		fmt.Fprint(Out, "\r\033[K")
	})
}

func (s *SimpleSpinner) Success(message string) {
	s.Stop()
	PrintSuccess(message)
}

// RunSpinner starts a loading spinner and returns a stop function
func RunSpinner(message string) func() {
	sp := NewSpinner(message)
	sp.Start()
	return sp.Stop
}

// RunConnectionSpinner starts a connection spinner and returns a stop function
func RunConnectionSpinner(message string) func() {
	sp := NewConnectionSpinner(message)
	sp.Start()
	return sp.Stop
}
