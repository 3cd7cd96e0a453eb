// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package responder

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Indicator kinds accepted by NewIndicator
const (
	IndicatorNone = "none"
	IndicatorLED  = "led"
	IndicatorRGB  = "rgb_led"
)

// Indicator is a status lamp. Red marks a rejected frame, blue an accepted
// one, and green is used by the startup heartbeat.
type Indicator interface {
	FlashRed()
	FlashGreen()
	FlashBlue()
	HeartBeat(n int, delay time.Duration)
}

// Color is a lamp color
type Color int

const (
	ColorRed Color = iota
	ColorGreen
	ColorBlue
)

// String returns the color name
func (c Color) String() string {
	switch c {
	case ColorRed:
		return "red"
	case ColorGreen:
		return "green"
	case ColorBlue:
		return "blue"
	default:
		return "unknown"
	}
}

// NewIndicator builds an indicator of the given kind that renders to w
func NewIndicator(kind string, w io.Writer) (Indicator, error) {
	switch kind {
	case "", IndicatorNone:
		return Nop{}, nil
	case IndicatorLED:
		return NewMono(w), nil
	case IndicatorRGB:
		return NewRGB(w), nil
	default:
		return nil, fmt.Errorf("unknown indicator %q (want %s, %s or %s)", kind, IndicatorNone, IndicatorLED, IndicatorRGB)
	}
}

// Nop discards every flash
type Nop struct{}

func (Nop) FlashRed() {}
func (Nop) FlashGreen() {}
func (Nop) FlashBlue() {}
func (Nop) HeartBeat(n int, d time.Duration) {}

// ColorFunc adapts a function to Indicator, e.g. to feed a dashboard
type ColorFunc func(Color)

func (f ColorFunc) FlashRed() { f(ColorRed) }
func (f ColorFunc) FlashGreen() { f(ColorGreen) }
func (f ColorFunc) FlashBlue() { f(ColorBlue) }

// HeartBeat sends n green flashes
func (f ColorFunc) HeartBeat(n int, d time.Duration) {
	for i := 0; i < n; i++ {
		f(ColorGreen)
	}
}

// lamp draws flashes as colored dots on a terminal
type lamp struct {
	mu     sync.Mutex
	w      io.Writer
	styles [3]lipgloss.Style
}

func (l *lamp) flash(c Color) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprint(l.w, l.styles[c].Render("●"))
}

func (l *lamp) FlashRed() { l.flash(ColorRed) }
func (l *lamp) FlashGreen() { l.flash(ColorGreen) }
func (l *lamp) FlashBlue() { l.flash(ColorBlue) }

// HeartBeat flashes three bursts of n, cycling red, green and blue within a
// burst and pausing delay/2 between bursts.
func (l *lamp) HeartBeat(n int, delay time.Duration) {
	for burst := 0; burst < 3; burst++ {
		for i := 0; i < n; i++ {
			l.flash(Color(i % 3))
		}
		if burst < 2 {
			time.Sleep(delay / 2)
		}
	}
	l.mu.Lock()
	fmt.Fprintln(l.w)
	l.mu.Unlock()
}

// Mono is a single-color LED: every flash looks the same
type Mono struct {
	lamp
}

// NewMono creates a single-color lamp writing to w
func NewMono(w io.Writer) *Mono {
	on := lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	return &Mono{lamp{w: w, styles: [3]lipgloss.Style{on, on, on}}}
}

// RGB is a three-color LED
type RGB struct {
	lamp
}

// NewRGB creates a three-color lamp writing to w
func NewRGB(w io.Writer) *RGB {
	return &RGB{lamp{w: w, styles: [3]lipgloss.Style{
		lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	}}}
}
