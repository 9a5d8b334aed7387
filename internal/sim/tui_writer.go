package sim

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"soilpulse-sim/internal/config"
	"soilpulse-sim/internal/soil"
	"soilpulse-sim/internal/visual"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// Controls are the session operations the dashboard can trigger.
type Controls struct {
	Simulate func(soil.Status) error
	Reset    func()
}

// sessionMsg carries a published session snapshot.
type sessionMsg struct{ soil.Session }

// logMsg carries a log line for the viewport.
type logMsg struct{ line string }

// adminMsg reports the admin UI address; empty when disabled.
type adminMsg struct{ addr string }

type setControlsMsg struct{ controls Controls }

// frameMsg advances the rod animation.
type frameMsg time.Time

// opDoneMsg reports the outcome of a control action.
type opDoneMsg struct {
	op  string
	err error
}

const (
	rodPanelWidth  = 24
	minRodHeight   = 12
	logPanelHeight = 6
	barWidth       = 30
	maxLogLines    = 200
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f4f4f5"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#71717a"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#27272a")).Padding(0, 1)
	levelColors = map[soil.Level]string{
		soil.LevelSafe:    "#34d399",
		soil.LevelDanger:  "#ef4444",
		soil.LevelNeutral: "#a1a1aa",
	}
	barColors = []string{"#ef4444", "#fbbf24", "#34d399", "#3b82f6"}
)

// TUIWriter renders the probe session using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter. When the
// user quits, the process receives an interrupt so the caller's context ends.
func NewTUIWriter(cfg *config.Config) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(cfg), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// Observe forwards a session snapshot to the dashboard. It is meant to be
// registered with Controller.Subscribe.
func (w *TUIWriter) Observe(s soil.Session) {
	w.program.Send(sessionMsg{s})
}

// WriteResult implements ResultWriter.
func (w *TUIWriter) WriteResult(rec ScanRecord) error {
	w.program.Send(logMsg{line: fmt.Sprintf("[%s] scan %s resolved %s in %s",
		rec.ResolvedAt.Format(time.TimeOnly), shortID(rec.ScanID), rec.Status,
		rec.ResolvedAt.Sub(rec.StartedAt).Round(time.Millisecond))})
	return nil
}

// Log appends a line to the event log.
func (w *TUIWriter) Log(line string) {
	w.program.Send(logMsg{line: line})
}

// SetControls registers the session operations bound to keys.
func (w *TUIWriter) SetControls(c Controls) {
	w.program.Send(setControlsMsg{controls: c})
}

// SetAdminStatus updates the admin UI indicator.
func (w *TUIWriter) SetAdminStatus(addr string) {
	w.program.Send(adminMsg{addr: addr})
}

// Done is closed once the program has exited.
func (w *TUIWriter) Done() <-chan struct{} { return w.done }

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type keyMap struct {
	Insert     key.Binding
	Unsafe     key.Binding
	Recovering key.Binding
	Ready      key.Binding
	Retract    key.Binding
	Wrap       key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Insert, k.Retract, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Insert, k.Unsafe, k.Recovering, k.Ready},
		{k.Retract, k.Wrap, k.Help, k.Quit},
	}
}

var defaultKeys = keyMap{
	Insert:     key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "insert probe & scan")),
	Unsafe:     key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "sim: unsafe")),
	Recovering: key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "sim: recovering")),
	Ready:      key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "sim: ready")),
	Retract:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retract probe")),
	Wrap:       key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "toggle log wrap")),
	Help:       key.NewBinding(key.WithKeys("?", "h"), key.WithHelp("?", "toggle help")),
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type tuiModel struct {
	driver   *visual.Driver
	frame    visual.Frame
	interval time.Duration
	lastTick time.Time

	session  soil.Session
	controls Controls
	admin    string
	provider string

	spinner spinner.Model
	bars    []progress.Model
	profile table.Model
	vp      viewport.Model
	help    help.Model
	keys    keyMap

	logs   []string
	wrap   bool
	width  int
	height int
}

func newTUIModel(cfg *config.Config) tuiModel {
	if cfg == nil {
		cfg = config.Default()
	}
	d := visual.NewDriver()
	bars := make([]progress.Model, len(barColors))
	for i, c := range barColors {
		bars[i] = progress.New(progress.WithSolidFill(c), progress.WithoutPercentage(), progress.WithWidth(barWidth))
	}
	profile := table.New(
		table.WithColumns([]table.Column{{Title: "Axis", Width: 10}, {Title: "Value", Width: 6}}),
		table.WithHeight(len(soil.Axes(soil.Reading{}))+1),
	)
	return tuiModel{
		driver:   d,
		frame:    d.Frame(),
		interval: cfg.Session.FrameInterval,
		session:  soil.Session{Status: soil.StatusIdle},
		provider: cfg.Narration.Provider,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(visual.Colors[soil.StatusScanning]))),
		),
		bars:    bars,
		profile: profile,
		vp:      viewport.New(0, logPanelHeight),
		help:    help.New(),
		keys:    defaultKeys,
	}
}

func frameTick(d time.Duration) tea.Cmd {
	if d <= 0 {
		d = 33 * time.Millisecond
	}
	return tea.Tick(d, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, frameTick(m.interval))
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.Width = msg.Width
		m.help.Width = msg.Width
		m.refreshViewport()
	case frameMsg:
		now := time.Time(msg)
		var dt time.Duration
		if !m.lastTick.IsZero() {
			dt = now.Sub(m.lastTick)
		}
		m.lastTick = now
		m.frame = m.driver.Tick(dt)
		return m, frameTick(m.interval)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case sessionMsg:
		if msg.Version < m.session.Version {
			return m, nil
		}
		if msg.Status != m.session.Status {
			m.appendLog(fmt.Sprintf("[%s] status %s -> %s", time.Now().Format(time.TimeOnly), m.session.Status, msg.Status))
		}
		m.session = msg.Session
		m.driver.Apply(msg.Status, msg.Inserted)
		m.frame = m.driver.Frame()
		if msg.Result != nil {
			m.profile.SetRows(profileRows(msg.Result.Data))
		}
	case logMsg:
		m.appendLog(msg.line)
	case setControlsMsg:
		m.controls = msg.controls
	case adminMsg:
		m.admin = msg.addr
	case opDoneMsg:
		if msg.err != nil {
			m.appendLog(fmt.Sprintf("%s rejected: %v", msg.op, msg.err))
		}
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Wrap):
		m.wrap = !m.wrap
		m.refreshViewport()
	case key.Matches(msg, m.keys.Insert):
		if !m.session.Inserted {
			return m, m.simulate(soil.StatusRecovering)
		}
	case key.Matches(msg, m.keys.Unsafe):
		return m, m.simulate(soil.StatusUnsafe)
	case key.Matches(msg, m.keys.Recovering):
		return m, m.simulate(soil.StatusRecovering)
	case key.Matches(msg, m.keys.Ready):
		return m, m.simulate(soil.StatusReady)
	case key.Matches(msg, m.keys.Retract):
		if m.controls.Reset != nil && m.session.Inserted {
			reset := m.controls.Reset
			return m, func() tea.Msg {
				reset()
				return opDoneMsg{op: "retract"}
			}
		}
	default:
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd
	}
	return m, nil
}

// simulate runs the scan outside the update loop; controller callbacks
// deliver the resulting snapshots back through the program.
func (m tuiModel) simulate(target soil.Status) tea.Cmd {
	if m.controls.Simulate == nil || m.session.Status == soil.StatusScanning {
		return nil
	}
	fn := m.controls.Simulate
	return func() tea.Msg {
		return opDoneMsg{op: "scan " + strings.ToLower(target.String()), err: fn(target)}
	}
}

func (m *tuiModel) appendLog(line string) {
	m.logs = append(m.logs, line)
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
	m.refreshViewport()
}

func (m *tuiModel) refreshViewport() {
	var lines []string
	for _, l := range m.logs {
		if m.wrap && m.vp.Width > 0 {
			lines = append(lines, wordwrap.String(l, m.vp.Width))
		} else {
			lines = append(lines, l)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	m.vp.GotoBottom()
}

func profileRows(r soil.Reading) []table.Row {
	axes := soil.Axes(r)
	rows := make([]table.Row, 0, len(axes))
	for _, a := range axes {
		rows = append(rows, table.Row{a.Subject, fmt.Sprintf("%.0f", a.Value)})
	}
	return rows
}

func (m tuiModel) View() string {
	rodHeight := m.height - logPanelHeight - 8
	if rodHeight < minRodHeight {
		rodHeight = minRodHeight
	}
	rod := panelStyle.Render(visual.Render(m.frame, rodPanelWidth, rodHeight))

	rightWidth := m.width - lipgloss.Width(rod) - 4
	if rightWidth < 40 {
		rightWidth = 40
	}
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderControls(),
		"",
		m.renderAnalysis(rightWidth),
	)
	body := lipgloss.JoinHorizontal(lipgloss.Top, rod, "  ", right)

	divider := strings.Repeat("─", max(m.width, 20))
	return strings.Join([]string{
		m.renderHeader(),
		divider,
		body,
		divider,
		"Events:",
		m.vp.View(),
		m.help.View(m.keys),
	}, "\n")
}

func (m tuiModel) renderHeader() string {
	badge := lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(visual.ColorFor(m.session.Status))).
		Foreground(lipgloss.Color(visual.ColorFor(m.session.Status))).
		Render(m.session.Status.String())
	title := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("SOILPULSE v2.4"),
		subtleStyle.Render("Fallout Harvest // Eco-Restoration System"),
	)
	status := []string{"narration: " + m.provider}
	if m.admin != "" {
		status = append(status, "admin: http://"+m.admin)
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "   ", badge, "   ", subtleStyle.Render(strings.Join(status, "  ")))
}

func (m tuiModel) renderControls() string {
	lines := []string{subtleStyle.Render("SIMULATION CONTROLS")}
	switch {
	case !m.session.Inserted:
		lines = append(lines, "[i] INSERT PROBE & SCAN")
	case m.session.Status == soil.StatusScanning:
		lines = append(lines, subtleStyle.Render("[1] SIM: UNSAFE  [2] SIM: RECOVERING  [3] SIM: READY"), "[r] RETRACT PROBE")
	default:
		lines = append(lines,
			lipgloss.NewStyle().Foreground(lipgloss.Color(visual.Colors[soil.StatusUnsafe])).Render("[1] SIM: UNSAFE")+"  "+
				lipgloss.NewStyle().Foreground(lipgloss.Color(visual.Colors[soil.StatusRecovering])).Render("[2] SIM: RECOVERING")+"  "+
				lipgloss.NewStyle().Foreground(lipgloss.Color(visual.Colors[soil.StatusReady])).Render("[3] SIM: READY"),
			"[r] RETRACT PROBE")
	}
	return strings.Join(lines, "\n")
}

func (m tuiModel) renderAnalysis(width int) string {
	res := m.session.Result
	if res == nil || m.session.Status == soil.StatusScanning {
		if m.session.Status == soil.StatusScanning {
			return m.spinner.View() + " " + lipgloss.NewStyle().Foreground(lipgloss.Color(visual.Colors[soil.StatusScanning])).Render("ACQUIRING BIOSIGNATURES...")
		}
		return "WAITING FOR INPUT\n" + subtleStyle.Render("Insert probe to begin analysis sequence.")
	}

	text := res.Narration
	if !res.Narrated {
		text = "Computing..."
	}
	analysis := subtleStyle.Render("SYSTEM ANALYSIS") + "\n" + wordwrap.String(text, width)

	var cards []string
	for _, mt := range soil.Metrics(res.Data) {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(levelColors[mt.Level]))
		cards = append(cards, panelStyle.Render(subtleStyle.Render(mt.Label)+"\n"+style.Render(mt.Display())))
	}
	grid := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1]),
		lipgloss.JoinHorizontal(lipgloss.Top, cards[2], cards[3]),
	)

	values := []struct {
		label string
		v     float64
	}{
		{"Radiation", res.Data.RadiationLevel},
		{"Mycelium", res.Data.MyceliumDensity},
		{"Structure", res.Data.SoilStructure},
		{"H2O", res.Data.WaterRetention},
	}
	var chart []string
	for i, v := range values {
		chart = append(chart, fmt.Sprintf("%-10s %s %3.0f", v.label, m.bars[i].ViewAs(v.v/100), v.v))
	}

	charts := lipgloss.JoinHorizontal(lipgloss.Top, strings.Join(chart, "\n"), "  ", m.profile.View())
	return lipgloss.JoinVertical(lipgloss.Left, analysis, "", grid, "", charts)
}
