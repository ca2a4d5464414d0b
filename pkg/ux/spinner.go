// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// SpinnerType selects a frame set.
type SpinnerType int

const (
	SpinnerDots SpinnerType = iota
	SpinnerCompass
)

var spinnerFrames = map[SpinnerType][]string{
	SpinnerDots:    {"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	SpinnerCompass: {"◐", "◓", "◑", "◒"},
}

const spinnerInterval = 80 * time.Millisecond

// Spinner shows an animated progress line on a terminal. On anything else
// it writes nothing, so it is safe to start unconditionally.
type Spinner struct {
	w          io.Writer
	message    string
	frames     []string
	style      Styles
	animate    bool
	stop       chan struct{}
	done       chan struct{}
	mu         sync.Mutex
	isRunning  bool
	frameIndex int
}

// NewSpinner creates a spinner writing to w.
func NewSpinner(w io.Writer, message string, styles Styles) *Spinner {
	return &Spinner{
		w:       w,
		message: message,
		frames:  spinnerFrames[SpinnerDots],
		style:   styles,
		animate: IsTerminal(w),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// WithType selects the frame set.
func (s *Spinner) WithType(t SpinnerType) *Spinner {
	if frames, ok := spinnerFrames[t]; ok {
		s.frames = frames
	}
	return s
}

// Start begins the animation. Calling Start twice is a no-op.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning || !s.animate {
		return
	}
	s.isRunning = true

	go func() {
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()
		defer close(s.done)

		for {
			select {
			case <-s.stop:
				fmt.Fprint(s.w, "\r\033[K")
				return
			case <-ticker.C:
				s.mu.Lock()
				frame := s.style.Success.Render(s.frames[s.frameIndex])
				fmt.Fprintf(s.w, "\r%s %s", frame, s.message)
				s.frameIndex = (s.frameIndex + 1) % len(s.frames)
				s.mu.Unlock()
			}
		}
	}()
}

// Stop halts the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	close(s.stop)
	<-s.done
}

// UpdateMessage changes the message while running.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}
