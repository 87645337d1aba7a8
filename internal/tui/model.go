// ===========================
// File: internal/tui/model.go
// ===========================
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"uusd-router/internal/history"
	"uusd-router/internal/logger"
	"uusd-router/internal/router"
)

const (
	// probeTimeout bounds one route probe or chart reload.
	probeTimeout = 15 * time.Second
	// tickInterval drives the clock and the log tail refresh.
	tickInterval = time.Second
)

// RoutePlanner is the slice of the route selector the dashboard
// drives. Probes run with the same semantics as any other caller.
type RoutePlanner interface {
	OptimalDepositRoute(ctx context.Context, amount *uint256.Int, forceCollateralOnly bool) (*router.RouteResult, error)
	OptimalWithdrawRoute(ctx context.Context, amount *uint256.Int, lusdOnly bool) (*router.RouteResult, error)
}

var _ RoutePlanner = (*router.Selector)(nil)

// HistoryProvider loads the chart series.
type HistoryProvider interface {
	PriceHistory(ctx context.Context, cfg history.Config) ([]history.PriceDataPoint, error)
}

// Deps wires the dashboard to the rest of the stack. Planner and
// History may be nil in tests; the affected panes degrade to an error
// line instead of panicking.
type Deps struct {
	Planner RoutePlanner
	History HistoryProvider
	Ring    *logger.Ring
	Bridge  *Bridge

	// ProbeAmount is the input amount both route probes quote,
	// raw token units. Defaults to 100 tokens.
	ProbeAmount *uint256.Int
	// Chart selects the history window. Defaults to 24h x 60 points.
	Chart  history.Config
	Logger *zap.Logger
}

// Model is the single-screen dashboard.
type Model struct {
	deps    Deps
	keys    KeyMap
	palette Palette
	logger  *zap.Logger

	width  int
	height int
	now    time.Time

	// Live price state fed by the monitor.
	spot      uint64
	implied   uint64
	ratio     uint64
	change    float64
	priceAt   time.Time
	monitorOn bool

	// Gate state. The thresholds arrive over the bridge; the TWAP the
	// gates compare against comes from the latest successful probe.
	mintGate   uint64
	redeemGate uint64
	twap       uint64

	// Chart state.
	spark        *Sparkline
	chart        []history.PriceDataPoint
	chartErr     error
	loadingChart bool

	// Route probes.
	deposit         *router.RouteResult
	depositErr      error
	withdraw        *router.RouteResult
	withdrawErr     error
	routesAt        time.Time
	depositProbing  bool
	withdrawProbing bool

	spin     spinner.Model
	showLogs bool
	showHelp bool
}

// NewModel creates the dashboard model.
func NewModel(deps Deps) *Model {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Bridge == nil {
		deps.Bridge = NewBridge(0, deps.Logger)
	}
	if deps.ProbeAmount == nil {
		deps.ProbeAmount = new(uint256.Int).Mul(
			uint256.NewInt(100), uint256.NewInt(1_000_000_000_000_000_000))
	}
	if deps.Chart.MaxDataPoints <= 0 || deps.Chart.TimeRangeHours <= 0 {
		deps.Chart = history.Config{MaxDataPoints: 60, TimeRangeHours: 24}
	}

	palette := DefaultPalette()
	spin := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(palette.Secondary)))

	return &Model{
		deps:            deps,
		keys:            DefaultKeyMap(),
		palette:         palette,
		logger:          deps.Logger.Named("tui"),
		spark:           NewSparkline(60),
		spin:            spin,
		loadingChart:    true,
		depositProbing:  true,
		withdrawProbing: true,
		showLogs:        true,
		now:             time.Now(),
	}
}

// Init starts the bridge listener, the first chart load and one probe
// per direction.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.deps.Bridge.Wait(),
		m.loadChart(),
		m.probe(router.DirectionDeposit),
		m.probe(router.DirectionWithdraw),
		m.spin.Tick,
		tickCmd(),
	)
}

// Update handles all dashboard messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Deposit):
			m.depositProbing = true
			cmds = append(cmds, m.probe(router.DirectionDeposit))

		case key.Matches(msg, m.keys.Withdraw):
			m.withdrawProbing = true
			cmds = append(cmds, m.probe(router.DirectionWithdraw))

		case key.Matches(msg, m.keys.Refresh):
			m.loadingChart = true
			m.depositProbing = true
			m.withdrawProbing = true
			cmds = append(cmds,
				m.loadChart(),
				m.probe(router.DirectionDeposit),
				m.probe(router.DirectionWithdraw))

		case key.Matches(msg, m.keys.ToggleLogs):
			m.showLogs = !m.showLogs

		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
		}

	case PriceMsg:
		m.spot = msg.Update.SpotUsd
		m.implied = msg.Update.ImpliedUsd
		m.ratio = msg.Update.CollateralRatio
		m.change = msg.Update.ChangePercent
		m.priceAt = msg.Update.Time
		// Keep listening for bridged messages.
		cmds = append(cmds, m.deps.Bridge.Wait())

	case MonitorStatusMsg:
		m.monitorOn = msg.Running
		cmds = append(cmds, m.deps.Bridge.Wait())

	case GatesMsg:
		m.mintGate = msg.Mint
		m.redeemGate = msg.Redeem
		cmds = append(cmds, m.deps.Bridge.Wait())

	case RouteMsg:
		m.routesAt = time.Now()
		if msg.Direction == router.DirectionWithdraw {
			m.withdraw, m.withdrawErr = msg.Result, msg.Err
			m.withdrawProbing = false
		} else {
			m.deposit, m.depositErr = msg.Result, msg.Err
			m.depositProbing = false
		}
		if msg.Result != nil && msg.Result.OraclePrice > 0 {
			m.twap = msg.Result.OraclePrice
		}

	case HistoryMsg:
		m.loadingChart = false
		m.chart, m.chartErr = msg.Points, msg.Err
		m.refreshSpark()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		m.now = time.Time(msg)
		if m.deps.Bridge != nil {
			m.deps.Bridge.FlushPending()
		}
		cmds = append(cmds, tickCmd())
	}

	return m, tea.Batch(cmds...)
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// loadChart reloads the history series off the update loop.
func (m *Model) loadChart() tea.Cmd {
	provider := m.deps.History
	cfg := m.deps.Chart
	return func() tea.Msg {
		if provider == nil {
			return HistoryMsg{Err: errors.New("history source not configured")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		defer cancel()
		points, err := provider.PriceHistory(ctx, cfg)
		return HistoryMsg{Points: points, Err: err}
	}
}

// probe quotes one direction for the configured amount.
func (m *Model) probe(direction router.Direction) tea.Cmd {
	planner := m.deps.Planner
	amount := m.deps.ProbeAmount.Clone()
	return func() tea.Msg {
		if planner == nil {
			return RouteMsg{Direction: direction, Err: errors.New("route planner not configured")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		defer cancel()

		var (
			res *router.RouteResult
			err error
		)
		if direction == router.DirectionWithdraw {
			res, err = planner.OptimalWithdrawRoute(ctx, amount, false)
		} else {
			res, err = planner.OptimalDepositRoute(ctx, amount, false)
		}
		return RouteMsg{Direction: direction, Result: res, Err: err}
	}
}

func (m *Model) resizeChart() {
	width := m.width - 8
	if width < 10 {
		width = 10
	}
	if width > m.deps.Chart.MaxDataPoints {
		width = m.deps.Chart.MaxDataPoints
	}
	m.spark.SetWidth(width)
	m.refreshSpark()
}

func (m *Model) refreshSpark() {
	prices := make([]uint64, len(m.chart))
	for i, p := range m.chart {
		prices[i] = p.PriceUsd
	}
	m.spark.SetData(prices)
}
