// ===============================
// File: internal/tui/sparkline.go
// ===============================
package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// sparkChars from lowest to highest.
var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders a mini price chart out of USD-scaled samples.
type Sparkline struct {
	data  []uint64
	width int
	style lipgloss.Style
	color lipgloss.Color
}

// NewSparkline creates a sparkline of the given character width.
func NewSparkline(width int) *Sparkline {
	return &Sparkline{
		data:  make([]uint64, 0),
		width: width,
		style: lipgloss.NewStyle(),
		color: DefaultPalette().Primary,
	}
}

// SetData replaces the data points. Only the newest width points are
// rendered; older ones are dropped.
func (s *Sparkline) SetData(data []uint64) *Sparkline {
	s.data = make([]uint64, len(data))
	copy(s.data, data)
	s.trim()
	return s
}

// AddDataPoint appends a single sample.
func (s *Sparkline) AddDataPoint(value uint64) *Sparkline {
	s.data = append(s.data, value)
	s.trim()
	return s
}

// SetWidth resizes the sparkline.
func (s *Sparkline) SetWidth(width int) *Sparkline {
	s.width = width
	s.trim()
	return s
}

// SetColor sets the block color.
func (s *Sparkline) SetColor(color lipgloss.Color) *Sparkline {
	s.color = color
	return s
}

func (s *Sparkline) trim() {
	if s.width > 0 && len(s.data) > s.width {
		s.data = s.data[len(s.data)-s.width:]
	}
}

// View renders the sparkline.
func (s *Sparkline) View() string {
	return s.style.Foreground(s.color).Render(s.blocks())
}

// blocks builds the raw spark characters without styling.
func (s *Sparkline) blocks() string {
	if len(s.data) == 0 {
		return strings.Repeat("▁", s.width)
	}

	lo, hi := s.minMax()

	// All values equal renders as a flat mid line.
	if lo == hi {
		return strings.Repeat("▄", min(len(s.data), s.width))
	}

	var result strings.Builder
	for i, value := range s.data {
		if i >= s.width {
			break
		}
		normalized := float64(value-lo) / float64(hi-lo)
		index := int(normalized * float64(len(sparkChars)-1))
		if index < 0 {
			index = 0
		} else if index >= len(sparkChars) {
			index = len(sparkChars) - 1
		}
		result.WriteRune(sparkChars[index])
	}
	return result.String()
}

func (s *Sparkline) minMax() (uint64, uint64) {
	if len(s.data) == 0 {
		return 0, 0
	}
	lo, hi := s.data[0], s.data[0]
	for _, value := range s.data {
		lo = min(lo, value)
		hi = max(hi, value)
	}
	return lo, hi
}

// Trend returns an arrow describing the first-to-last move.
func (s *Sparkline) Trend() string {
	change := s.ChangePercent()
	switch {
	case math.Abs(change) < 0.1:
		return "→"
	case change > 0:
		return "↗"
	default:
		return "↘"
	}
}

// ChangePercent returns the percentage change from the first to the
// last rendered data point.
func (s *Sparkline) ChangePercent() float64 {
	if len(s.data) < 2 {
		return 0
	}
	first := s.data[0]
	last := s.data[len(s.data)-1]
	if first == 0 {
		return 0
	}
	return (float64(last) - float64(first)) / float64(first) * 100
}

// Clear removes all data points.
func (s *Sparkline) Clear() *Sparkline {
	s.data = make([]uint64, 0)
	return s
}
