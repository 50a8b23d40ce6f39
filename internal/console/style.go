package console

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type renderFn func(strs ...string) string

// Colors stay in the bright ANSI range so they read the same on dark and
// light terminals.
var (
	greyColor  = lipgloss.Color("8")
	redColor   = lipgloss.Color("9")
	greenColor = lipgloss.Color("10")
	blueColor  = lipgloss.Color("12")
	cyanColor  = lipgloss.Color("14")
)

var (
	timestampStyle = lipgloss.NewStyle().Foreground(greyColor).Render
	noteStyle      = lipgloss.NewStyle().Foreground(greyColor).Render
	alertStyle     = lipgloss.NewStyle().Foreground(redColor).Render
	successStyle   = lipgloss.NewStyle().Foreground(greenColor).Render
	bannerStyle    = lipgloss.NewStyle().Foreground(cyanColor).Bold(true).Render
)

// palette maps the color names a persona may pick in its config.
var palette = map[string]lipgloss.Color{
	"red":     redColor,
	"green":   greenColor,
	"yellow":  lipgloss.Color("11"),
	"blue":    blueColor,
	"purple":  lipgloss.Color("13"),
	"magenta": lipgloss.Color("13"),
	"cyan":    cyanColor,
	"white":   lipgloss.Color("15"),
	"grey":    greyColor,
	"gray":    greyColor,
}

// fallbackColors keeps the two sides apart when a persona names no color or
// one the palette does not know.
var fallbackColors = []lipgloss.Color{blueColor, greenColor}

func personaColor(name string, slot int) lipgloss.Color {
	if color, ok := palette[strings.ToLower(strings.TrimSpace(name))]; ok {
		return color
	}
	return fallbackColors[slot%len(fallbackColors)]
}

func labelStyle(color lipgloss.Color) renderFn {
	return lipgloss.NewStyle().Foreground(color).Bold(true).Render
}

func textStyle(color lipgloss.Color) renderFn {
	return lipgloss.NewStyle().Foreground(color).Render
}
