// ==========================
// File: internal/tui/view.go
// ==========================
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/holiman/uint256"
	"go.uber.org/zap/zapcore"

	"uusd-router/internal/router"
	"uusd-router/internal/uusd"
)

// logTailLines is how many ring entries the log pane shows.
const logTailLines = 8

// View renders the dashboard.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var content strings.Builder

	content.WriteString(m.renderHeader())
	content.WriteString("\n")
	content.WriteString(m.renderChart())
	content.WriteString("\n\n")
	content.WriteString(m.renderRoutes())
	content.WriteString("\n")

	if m.showLogs {
		content.WriteString(m.renderLogs())
		content.WriteString("\n")
	}

	content.WriteString(m.renderHelp())

	return content.String()
}

// renderHeader renders the status line: title, prices, collateral
// ratio, monitor state and clock joined into one bordered bar.
func (m *Model) renderHeader() string {
	titleStyle := lipgloss.NewStyle().Foreground(m.palette.Primary).Bold(true)
	textStyle := lipgloss.NewStyle().Foreground(m.palette.Text)
	mutedStyle := lipgloss.NewStyle().Foreground(m.palette.TextMuted)

	title := titleStyle.Render("UUSD Router")

	spot := "Spot —"
	if m.spot > 0 {
		spot = fmt.Sprintf("Spot %s", uusd.FormatUsd(m.spot))
	}

	amm := "AMM —"
	if m.implied > 0 {
		amm = fmt.Sprintf("AMM %s", uusd.FormatUsd(m.implied))
	}

	change := ""
	if m.change != 0 {
		changeStyle := lipgloss.NewStyle().Foreground(m.palette.Success)
		if m.change < 0 {
			changeStyle = changeStyle.Foreground(m.palette.Error)
		}
		change = changeStyle.Render(fmt.Sprintf("%+.2f%%", m.change))
	}

	ratio := "CR —"
	if m.ratio > 0 {
		ratio = fmt.Sprintf("CR %.2f%%", float64(m.ratio)/uusd.PricePrecision*100)
	}

	monitorStatus := m.renderMonitorStatus()
	clock := mutedStyle.Render(m.now.Format("15:04:05"))

	segments := []string{title, textStyle.Render(spot), textStyle.Render(amm)}
	if change != "" {
		segments = append(segments, change)
	}
	segments = append(segments,
		textStyle.Render(ratio),
		m.renderGate("Mint", m.mintGate),
		m.renderGate("Redeem", m.redeemGate),
		monitorStatus, clock)

	parts := make([]string, 0, len(segments)*2-1)
	for i, seg := range segments {
		if i > 0 {
			parts = append(parts, " | ")
		}
		parts = append(parts, seg)
	}
	content := lipgloss.JoinHorizontal(lipgloss.Left, parts...)

	container := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.palette.Primary).
		Padding(0, 2).
		MarginBottom(1)
	if m.width > 4 {
		container = container.Width(m.width - 4)
	}

	return container.Render(content)
}

// renderGate shows whether the latest TWAP clears one protocol gate.
// Both gates open when the TWAP sits at or above their threshold.
func (m *Model) renderGate(label string, gate uint64) string {
	name := lipgloss.NewStyle().Foreground(m.palette.Text).Render(label + " ")
	if gate == 0 || m.twap == 0 {
		return name + lipgloss.NewStyle().Foreground(m.palette.TextMuted).Render("—")
	}
	if m.twap >= gate {
		return name + lipgloss.NewStyle().Foreground(m.palette.Success).Bold(true).Render("open")
	}
	return name + lipgloss.NewStyle().Foreground(m.palette.Error).Bold(true).Render("closed")
}

// renderMonitorStatus renders the monitor state with emoji.
func (m *Model) renderMonitorStatus() string {
	if m.monitorOn {
		style := lipgloss.NewStyle().Foreground(m.palette.Success).Bold(true)
		return style.Render("🟢 Monitor: ON")
	}
	style := lipgloss.NewStyle().Foreground(m.palette.Error).Bold(true)
	return style.Render("🔴 Monitor: OFF")
}

// renderChart renders the history sparkline with its summary line.
func (m *Model) renderChart() string {
	headerStyle := lipgloss.NewStyle().Foreground(m.palette.Secondary).Bold(true).Padding(0, 2)
	statusStyle := lipgloss.NewStyle().Foreground(m.palette.Text).Padding(0, 2)
	mutedStyle := lipgloss.NewStyle().Foreground(m.palette.TextMuted)
	errorStyle := lipgloss.NewStyle().Foreground(m.palette.Error).Padding(0, 2)

	title := headerStyle.Render(fmt.Sprintf("Price History (%dh x %d)",
		m.deps.Chart.TimeRangeHours, m.deps.Chart.MaxDataPoints))

	switch {
	case m.loadingChart:
		return title + "\n" + statusStyle.Render(m.spin.View()+" Loading history...")
	case m.chartErr != nil:
		return title + "\n" + errorStyle.Render("History unavailable: "+m.chartErr.Error())
	case len(m.chart) == 0:
		return title + "\n" + statusStyle.Render("No history points in range")
	}

	lo, hi := m.spark.minMax()
	summary := mutedStyle.Render(fmt.Sprintf("%s  min %s  max %s  %+.2f%%",
		m.spark.Trend(), uusd.FormatUsd(lo), uusd.FormatUsd(hi), m.spark.ChangePercent()))

	return title + "\n" + statusStyle.Render(m.spark.View()+"  "+summary)
}

// renderRoutes renders the two probe panels side by side.
func (m *Model) renderRoutes() string {
	panelWidth := (m.width - 6) / 2
	if panelWidth < 26 {
		panelWidth = 26
	}

	deposit := m.renderRoutePanel("Deposit", m.deposit, m.depositErr, m.depositProbing, panelWidth)
	withdraw := m.renderRoutePanel("Withdraw", m.withdraw, m.withdrawErr, m.withdrawProbing, panelWidth)

	return lipgloss.JoinHorizontal(lipgloss.Top, deposit, " ", withdraw)
}

// renderRoutePanel renders one direction's latest probe. While a probe
// is in flight the panel keeps showing the previous result with a
// spinner next to the title.
func (m *Model) renderRoutePanel(title string, res *router.RouteResult, err error, probing bool, width int) string {
	headerStyle := lipgloss.NewStyle().Foreground(m.palette.Secondary).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(m.palette.TextMuted)
	valueStyle := lipgloss.NewStyle().Foreground(m.palette.Text)
	errorStyle := lipgloss.NewStyle().Foreground(m.palette.Error)
	successStyle := lipgloss.NewStyle().Foreground(m.palette.Success)

	var body strings.Builder
	body.WriteString(headerStyle.Render(title))
	if probing {
		body.WriteString(" ")
		body.WriteString(m.spin.View())
	}
	body.WriteString("\n")

	switch {
	case err != nil:
		body.WriteString(errorStyle.Render("✗ " + truncate(err.Error(), width-6)))
	case res == nil:
		body.WriteString(labelStyle.Render("Probing..."))
	default:
		venueStyle := lipgloss.NewStyle().Foreground(m.palette.VenueColor(string(res.Route))).Bold(true)
		body.WriteString(labelStyle.Render("Route:  "))
		body.WriteString(venueStyle.Render(string(res.Route)))
		body.WriteString("\n")

		body.WriteString(labelStyle.Render("Input:  "))
		body.WriteString(valueStyle.Render(formatTokens(res.InputAmount)))
		body.WriteString("\n")

		body.WriteString(labelStyle.Render("Output: "))
		body.WriteString(valueStyle.Render(formatTokens(res.ExpectedOutput)))
		body.WriteString("\n")

		body.WriteString(labelStyle.Render("Saves:  "))
		if res.Savings.Bps > 0 {
			body.WriteString(successStyle.Render(
				fmt.Sprintf("%d bps (%.2f%%)", res.Savings.Bps, res.Savings.Percentage)))
		} else {
			body.WriteString(valueStyle.Render("—"))
		}
		body.WriteString("\n")

		body.WriteString(labelStyle.Render("Gate:   "))
		if res.DisabledReason != "" {
			body.WriteString(errorStyle.Render(truncate(res.DisabledReason, width-12)))
		} else {
			body.WriteString(successStyle.Render("open"))
		}
		body.WriteString("\n")

		body.WriteString(labelStyle.Render(fmt.Sprintf("Took:   %s", res.Elapsed.Round(time.Millisecond))))
	}

	container := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.palette.TextMuted).
		Padding(0, 1).
		Width(width)

	return container.Render(body.String())
}

// renderLogs renders the tail of the shared log ring.
func (m *Model) renderLogs() string {
	titleStyle := lipgloss.NewStyle().Foreground(m.palette.Info).Bold(true).Padding(0, 2)
	mutedStyle := lipgloss.NewStyle().Foreground(m.palette.TextMuted)

	title := titleStyle.Render("Recent Logs [l]")
	if m.deps.Ring == nil {
		return title + "\n" + mutedStyle.Padding(0, 2).Render("No log ring attached")
	}

	entries := m.deps.Ring.Recent(logTailLines)
	if len(entries) == 0 {
		return title + "\n" + mutedStyle.Padding(0, 2).Render("No log entries yet")
	}

	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		timestamp := mutedStyle.Render(entry.Time.Format("15:04:05"))
		level := m.levelStyle(entry.Level).Render(fmt.Sprintf("%-5s", entry.Level.CapitalString()))
		line := fmt.Sprintf("  %s %s %s", timestamp, level, entry.Message)
		if entry.Fields != "" {
			line += " " + mutedStyle.Render(truncate(entry.Fields, 60))
		}
		lines = append(lines, line)
	}

	return title + "\n" + strings.Join(lines, "\n")
}

func (m *Model) levelStyle(level zapcore.Level) lipgloss.Style {
	switch {
	case level >= zapcore.ErrorLevel:
		return lipgloss.NewStyle().Foreground(m.palette.Error).Bold(true)
	case level == zapcore.WarnLevel:
		return lipgloss.NewStyle().Foreground(m.palette.Warning).Bold(true)
	case level == zapcore.InfoLevel:
		return lipgloss.NewStyle().Foreground(m.palette.Info)
	default:
		return lipgloss.NewStyle().Foreground(m.palette.TextMuted)
	}
}

// renderHelp renders the key binding bar.
func (m *Model) renderHelp() string {
	keyStyle := lipgloss.NewStyle().Foreground(m.palette.Primary).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(m.palette.TextMuted)
	sepStyle := lipgloss.NewStyle().Foreground(m.palette.TextMuted)

	bindings := m.keys.ShortHelp()
	if m.showHelp {
		bindings = nil
		for _, row := range m.keys.FullHelp() {
			bindings = append(bindings, row...)
		}
	}

	items := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		if !binding.Enabled() {
			continue
		}
		help := binding.Help()
		if help.Key == "" || help.Desc == "" {
			continue
		}
		items = append(items, keyStyle.Render(help.Key)+" "+descStyle.Render(help.Desc))
	}

	container := lipgloss.NewStyle().Padding(0, 1).MarginTop(1)
	return container.Render(strings.Join(items, sepStyle.Render(" • ")))
}

// formatTokens renders an 18-decimal token amount with four fractional
// digits. Quantizing through uint64 keeps the digits exact where a
// float64 conversion of the raw amount would not be.
func formatTokens(amount *uint256.Int) string {
	if amount == nil {
		return "—"
	}
	quantized := new(uint256.Int).Div(amount, uint256.NewInt(100_000_000_000_000))
	if !quantized.IsUint64() {
		return amount.String()
	}
	return fmt.Sprintf("%.4f", float64(quantized.Uint64())/1e4)
}

func truncate(s string, n int) string {
	if n < 4 {
		n = 4
	}
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
