// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the apexlint CLI.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Aleutian color palette
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // rule names
	ColorTealDeep    = lipgloss.Color("#16858E") // positions
	ColorSlate       = lipgloss.Color("#2C4A54") // muted text

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorInfo    = lipgloss.Color("#1D9EA3")
)

// ColorMode selects when output is coloured.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode parses "auto", "always" or "never". Empty means auto.
func ParseColorMode(s string) (ColorMode, error) {
	switch m := ColorMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ColorAuto, nil
	case ColorAuto, ColorAlways, ColorNever:
		return m, nil
	default:
		return "", fmt.Errorf("unknown color mode %q (want auto, always or never)", s)
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NewRenderer returns a lipgloss renderer for w honouring mode. In auto
// mode colour is used only on a terminal and only when NO_COLOR is unset.
func NewRenderer(w io.Writer, mode ColorMode) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	switch {
	case mode == ColorNever:
		r.SetColorProfile(termenv.Ascii)
	case mode == ColorAuto && (os.Getenv("NO_COLOR") != "" || !IsTerminal(w)):
		r.SetColorProfile(termenv.Ascii)
	case mode == ColorAlways && r.ColorProfile() == termenv.Ascii:
		r.SetColorProfile(termenv.ANSI256)
	}
	return r
}

// Styles are the pre-configured styles for lint output. Only style
// single-line fragments; lipgloss pads multi-line blocks.
type Styles struct {
	Path        lipgloss.Style
	Position    lipgloss.Style
	Error       lipgloss.Style
	Warning     lipgloss.Style
	Info        lipgloss.Style
	Rule        lipgloss.Style
	Arrow       lipgloss.Style
	Description lipgloss.Style
	Success     lipgloss.Style
	Bold        lipgloss.Style
	Muted       lipgloss.Style
}

// NewStyles builds Styles bound to r.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Path:        r.NewStyle().Bold(true),
		Position:    r.NewStyle().Foreground(ColorTealDeep),
		Error:       r.NewStyle().Bold(true).Foreground(ColorError),
		Warning:     r.NewStyle().Bold(true).Foreground(ColorWarning),
		Info:        r.NewStyle().Bold(true).Foreground(ColorInfo),
		Rule:        r.NewStyle().Foreground(ColorTealPrimary),
		Arrow:       r.NewStyle().Foreground(ColorError),
		Description: r.NewStyle().Foreground(ColorSlate),
		Success:     r.NewStyle().Foreground(ColorSuccess),
		Bold:        r.NewStyle().Bold(true),
		Muted:       r.NewStyle().Foreground(ColorSlate),
	}
}

// PlainStyles renders everything without escape sequences.
func PlainStyles() Styles {
	return NewStyles(NewRenderer(io.Discard, ColorNever))
}

// Severity returns the style for a severity label.
func (s Styles) Severity(label string) lipgloss.Style {
	switch label {
	case "error":
		return s.Error
	case "warning":
		return s.Warning
	default:
		return s.Info
	}
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
)

// Render returns the icon with appropriate styling
func (i Icon) Render(s Styles) string {
	switch i {
	case IconSuccess:
		return s.Success.Render(string(i))
	case IconWarning:
		return s.Warning.Render(string(i))
	case IconError:
		return s.Error.Render(string(i))
	default:
		return string(i)
	}
}
