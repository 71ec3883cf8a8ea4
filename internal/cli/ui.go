package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Palette. Numbers are ANSI 256 colors.
var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorBlue   = lipgloss.Color("75")
	colorWhite  = lipgloss.Color("255")
	colorGray   = lipgloss.Color("245")
	colorDim    = lipgloss.Color("240")
)

var (
	// StyleTitle renders headings such as placeholder names.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleHighlight renders identifiers such as product IDs.
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleLink renders URLs.
	StyleLink = lipgloss.NewStyle().Foreground(colorBlue).Underline(true)

	// StyleDim renders secondary text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue renders values next to a label.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleWarning renders warning text.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleLabel   = lipgloss.NewStyle().Foreground(colorGray).Width(12)
	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
	styleCached  = lipgloss.NewStyle().Foreground(colorGreen)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconCached  = "cached"
	iconFresh   = "fresh"
)

// status prints one line led by a colored icon.
func status(icon string, iconStyle lipgloss.Style, msg string) {
	fmt.Println(iconStyle.Render(icon) + " " + msg)
}

func printSuccess(format string, args ...any) {
	status(iconSuccess, styleIconSuccess, fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	status(iconError, styleIconError, fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	status(iconWarning, styleIconWarning, StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	status(iconInfo, styleIconInfo, fmt.Sprintf(format, args...))
}

// printDetail prints an indented dim line under a status line.
func printDetail(format string, args ...any) {
	fmt.Println("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints the path of a written output.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	fmt.Println(styleLabel.Render(key) + " " + StyleValue.Render(value))
}

// printStats prints the canvas size, layer count, elapsed time and cache
// state of one render, e.g. "2000x2000 · 7 layers · 412ms · fresh".
func printStats(width, height, layers int, elapsed time.Duration, cached bool) {
	var parts []string
	if width > 0 && height > 0 {
		parts = append(parts, StyleDim.Render(fmt.Sprintf("%dx%d", width, height)))
	}
	if layers > 0 {
		parts = append(parts, StyleDim.Render(fmt.Sprintf("%d layers", layers)))
	}
	if elapsed > 0 {
		parts = append(parts, StyleDim.Render(elapsed.Round(time.Millisecond).String()))
	}
	if cached {
		parts = append(parts, styleCached.Render(iconCached))
	} else {
		parts = append(parts, StyleDim.Render(iconFresh))
	}
	fmt.Println("  " + strings.Join(parts, StyleDim.Render(" · ")))
}

// printNextStep suggests a follow-up command.
func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

func printNewline() {
	fmt.Println()
}
