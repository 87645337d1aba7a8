// ============================
// File: internal/tui/styles.go
// ============================
// Package tui renders the interactive terminal dashboard: live price
// header, history sparkline, route probe panel and a log tail, all
// driven by the same monitor, router and history components the
// headless daemon runs.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette shared by every pane.
var (
	// Primary colors
	Cyan    = lipgloss.Color("#00E5FF") // Primary highlight
	Magenta = lipgloss.Color("#FF1B6B") // Accent
	Yellow  = lipgloss.Color("#FFB500") // Warnings
	Green   = lipgloss.Color("#2AFFAA") // Success / savings
	Red     = lipgloss.Color("#FF5555") // Errors / disabled venues
	Blue    = lipgloss.Color("#3B82F6") // Info

	// Base colors
	Base03 = lipgloss.Color("#1B1D23") // Background
	Base02 = lipgloss.Color("#262831") // Darker background
	Base01 = lipgloss.Color("#6C7280") // Muted text
	Base2  = lipgloss.Color("#ECEFF4") // Primary text
	Base1  = lipgloss.Color("#B4BCC8") // Secondary text

	// Venue colors
	MintColor   = Green
	RedeemColor = Blue
	SwapColor   = Yellow
)

// Palette provides centralized color management.
type Palette struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Error     lipgloss.Color
	Warning   lipgloss.Color
	Info      lipgloss.Color

	Background    lipgloss.Color
	BackgroundAlt lipgloss.Color
	Text          lipgloss.Color
	TextMuted     lipgloss.Color
	TextSecondary lipgloss.Color

	Mint   lipgloss.Color
	Redeem lipgloss.Color
	Swap   lipgloss.Color
}

// DefaultPalette returns the default color palette.
func DefaultPalette() Palette {
	return Palette{
		Primary:   Cyan,
		Secondary: Magenta,
		Success:   Green,
		Error:     Red,
		Warning:   Yellow,
		Info:      Blue,

		Background:    Base03,
		BackgroundAlt: Base02,
		Text:          Base2,
		TextMuted:     Base01,
		TextSecondary: Base1,

		Mint:   MintColor,
		Redeem: RedeemColor,
		Swap:   SwapColor,
	}
}

// VenueColor maps a route venue name to its display color.
func (p Palette) VenueColor(route string) lipgloss.Color {
	switch route {
	case "mint":
		return p.Mint
	case "redeem":
		return p.Redeem
	case "swap":
		return p.Swap
	default:
		return p.TextMuted
	}
}
