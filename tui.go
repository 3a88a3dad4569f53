package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cogentcore.org/core/math32"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tomaslejdung/stagesync/pkg/control"
	"github.com/tomaslejdung/stagesync/pkg/ink"
	"github.com/tomaslejdung/stagesync/pkg/scene"
	"github.com/tomaslejdung/stagesync/pkg/session"
)

const (
	moveStep = 0.25
	turnStep = 0.1

	// map extent in scene units around the origin
	mapExtent = 10
	mapCols   = 41
	mapRows   = 21
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10"))

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	urlStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("13"))

	viewerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	toggleActiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("10"))

	toggleInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("8"))

	mapBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)

	listBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)

	boxTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))
)

type keyMap struct {
	Forward   key.Binding
	Back      key.Binding
	Left      key.Binding
	Right     key.Binding
	TurnLeft  key.Binding
	TurnRight key.Binding
	Control   key.Binding
	Inking    key.Binding
	Draw      key.Binding
	FPS       key.Binding
	Rate      key.Binding
	Pen       key.Binding
	Reconnect key.Binding
	Quit      key.Binding
}

var defaultKeys = keyMap{
	Forward: key.NewBinding(
		key.WithKeys("up", "w"),
		key.WithHelp("w/↑", "forward"),
	),
	Back: key.NewBinding(
		key.WithKeys("down", "s"),
		key.WithHelp("s/↓", "back"),
	),
	Left: key.NewBinding(
		key.WithKeys("left", "a"),
		key.WithHelp("a/←", "left"),
	),
	Right: key.NewBinding(
		key.WithKeys("right", "d"),
		key.WithHelp("d/→", "right"),
	),
	TurnLeft: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "turn left"),
	),
	TurnRight: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "turn right"),
	),
	Control: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "control"),
	),
	Inking: key.NewBinding(
		key.WithKeys("i"),
		key.WithHelp("i", "inking"),
	),
	Draw: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "draw"),
	),
	FPS: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "fps"),
	),
	Rate: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "rate"),
	),
	Pen: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "pen"),
	),
	Reconnect: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reconnect"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("^c", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Forward, k.Back, k.Left, k.Right, k.TurnLeft, k.TurnRight, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Control, k.Inking, k.Draw, k.FPS, k.Rate, k.Pen}}
}

// Messages
type tickMsg time.Time

// reconnectedMsg indicates the room was rejoined
type reconnectedMsg struct {
	sess *session.Session
}

// reconnectFailedMsg indicates rejoining failed
type reconnectFailedMsg struct {
	err string
}

// runner owns a running session and its Run goroutine
type runner struct {
	sess   *session.Session
	cancel context.CancelFunc
	done   chan struct{}
}

func startRunner(sess *session.Session, logger *slog.Logger) *runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &runner{sess: sess, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(r.done)
		if err := sess.Run(ctx); err != nil {
			logger.Warn("session stopped", slog.Any("error", err))
		}
	}()
	return r
}

func (r *runner) stop(logger *slog.Logger) {
	r.cancel()
	<-r.done
	if err := r.sess.Close(); err != nil {
		logger.Debug("session close", slog.Any("error", err))
	}
}

type model struct {
	conn   *connector
	run    *runner
	logger *slog.Logger

	keys keyMap
	help help.Model
	view session.View

	reconnecting bool
	lastError    string

	// Terminal dimensions
	width  int
	height int
}

func initialModel(conn *connector, sess *session.Session, logger *slog.Logger) model {
	return model{
		conn:   conn,
		run:    startRunner(sess, logger),
		logger: logger,
		keys:   defaultKeys,
		help:   help.New(),
		view:   sess.View(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.SetWindowTitle("StageSync - "+m.view.Room),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(33*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		if m.run != nil {
			m.view = m.run.sess.View()
		}
		return m, tickCmd()

	case reconnectedMsg:
		m.reconnecting = false
		m.lastError = ""
		m.run = startRunner(msg.sess, m.logger)
		m.view = msg.sess.View()
		return m, nil

	case reconnectFailedMsg:
		m.reconnecting = false
		m.lastError = msg.err
		return m, nil
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	if m.run == nil || m.view.Disconnected {
		if key.Matches(msg, m.keys.Reconnect) && !m.reconnecting {
			return m.reconnect()
		}
		return m, nil
	}

	sess := m.run.sess
	switch {
	case key.Matches(msg, m.keys.Forward):
		sess.Input(m.move(0, moveStep, 0))
	case key.Matches(msg, m.keys.Back):
		sess.Input(m.move(0, -moveStep, 0))
	case key.Matches(msg, m.keys.Left):
		sess.Input(m.move(-moveStep, 0, 0))
	case key.Matches(msg, m.keys.Right):
		sess.Input(m.move(moveStep, 0, 0))
	case key.Matches(msg, m.keys.TurnLeft):
		sess.Input(m.move(0, 0, -turnStep))
	case key.Matches(msg, m.keys.TurnRight):
		sess.Input(m.move(0, 0, turnStep))
	case key.Matches(msg, m.keys.Control):
		sess.Input(session.InputEvent{Action: session.ActionToggleControl})
	case key.Matches(msg, m.keys.Inking):
		sess.Input(session.InputEvent{Action: session.ActionToggleInking})
	case key.Matches(msg, m.keys.Draw):
		cam := m.view.Camera.Position
		sess.Input(session.InputEvent{
			Action: session.ActionDraw,
			Points: []ink.Point{{X: cam.X, Z: cam.Z}},
		})
	case key.Matches(msg, m.keys.FPS):
		m.applyFPS(nextFPS(m.conn.stage.settings.FPS))
	case key.Matches(msg, m.keys.Rate):
		m.applyRate(nextRate(m.sampleInterval()))
	case key.Matches(msg, m.keys.Pen):
		m.applyPenColor(ink.NextPenColor(m.view.PenColor))
	}
	return m, nil
}

// nextFPS returns the preset after fps; values off the preset list continue
// from the default
func nextFPS(fps int) int {
	return FPSPresets[(FPSIndexForValue(fps)+1)%len(FPSPresets)].Value
}

// nextRate returns the sampling preset after d
func nextRate(d time.Duration) time.Duration {
	return RatePresets[(RateIndexForInterval(d)+1)%len(RatePresets)].Interval
}

func (m model) sampleInterval() time.Duration {
	return time.Duration(m.conn.stage.settings.SampleIntervalMs) * time.Millisecond
}

func (m model) applyFPS(fps int) {
	m.conn.stage.settings.FPS = fps
	m.run.sess.SetTiming(float64(fps), 0)
	m.conn.saveSettings()
}

func (m model) applyRate(d time.Duration) {
	m.conn.stage.settings.SampleIntervalMs = int(d / time.Millisecond)
	m.run.sess.SetTiming(0, d)
	m.conn.saveSettings()
}

func (m model) applyPenColor(hex string) {
	m.conn.stage.settings.PenColor = hex
	m.run.sess.SetPenColor(hex)
	m.conn.saveSettings()
}

// move builds a camera delta relative to the current heading
func (m model) move(strafe, forward, turn float32) session.InputEvent {
	yaw := m.view.Camera.Rotation.Y
	sin, cos := math32.Sin(yaw), math32.Cos(yaw)
	return session.InputEvent{
		Action: session.ActionMove,
		Move: scene.Pose{
			Position: math32.Vec3(forward*sin+strafe*cos, 0, forward*cos-strafe*sin),
			Rotation: math32.Vec3(0, turn, 0),
		},
	}
}

func (m model) reconnect() (tea.Model, tea.Cmd) {
	if m.run != nil {
		m.run.stop(m.logger)
		m.run = nil
	}
	m.reconnecting = true
	m.lastError = ""

	conn := m.conn
	return m, func() tea.Msg {
		sess, err := conn.connect(context.Background())
		if err != nil {
			return reconnectFailedMsg{err: err.Error()}
		}
		return reconnectedMsg{sess: sess}
	}
}

func (m model) View() string {
	var b strings.Builder

	// Title
	b.WriteString(titleStyle.Render("StageSync"))
	b.WriteString(dimStyle.Render(" - " + m.conn.stage.preset.Title))
	b.WriteString("\n\n")

	b.WriteString(m.renderStatus())
	b.WriteString("\n")

	if m.run == nil || m.view.Disconnected {
		b.WriteString(m.renderError())
	} else {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.renderMap(), " ", m.renderParticipants()))
	}

	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m model) renderStatus() string {
	var b strings.Builder

	// Mode indicator
	switch {
	case m.reconnecting:
		b.WriteString(errorStyle.Render("[RECONNECTING]"))
	case m.conn.isLocal():
		b.WriteString(statusStyle.Render("[LOCAL]"))
	default:
		b.WriteString(selectedStyle.Render("[INTERNET]"))
	}

	b.WriteString(" ")
	b.WriteString(urlStyle.Render(m.view.Room))
	b.WriteString(dimStyle.Render("  as "))
	b.WriteString(normalStyle.Render(m.view.Name))
	b.WriteString("\n")

	b.WriteString(m.renderToggle("c", m.controlLabel(), m.view.Mode != control.Unowned, m.view.CanToggleControl))
	b.WriteString("   ")
	b.WriteString(m.renderToggle("i", "inking", m.view.Inking, m.view.CanToggleInking))
	b.WriteString("\n")
	b.WriteString(m.renderTiming())
	b.WriteString("\n")
	return b.String()
}

// renderTiming shows the frame rate, sampling rate and pen colour
func (m model) renderTiming() string {
	var b strings.Builder

	b.WriteString(statusStyle.Render(fmt.Sprintf("%d fps", int(m.view.FPS))))
	if preset := FPSByValue(int(m.view.FPS)); preset != nil {
		b.WriteString(dimStyle.Render(" " + preset.Description))
	}

	b.WriteString("   ")
	if preset := RatePresets[RateIndexForInterval(m.view.SampleInterval)]; preset.Interval == m.view.SampleInterval {
		b.WriteString(statusStyle.Render(preset.Name))
		b.WriteString(dimStyle.Render(" " + preset.Description))
	} else {
		b.WriteString(statusStyle.Render(m.view.SampleInterval.String()))
	}

	b.WriteString(dimStyle.Render("   pen "))
	b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(m.view.PenColor)).Render("■"))
	return b.String()
}

func (m model) controlLabel() string {
	switch m.view.Mode {
	case control.LocalOwns:
		return "you have control"
	case control.RemoteOwns:
		return m.displayName(m.view.Controller) + " has control"
	default:
		return "take control"
	}
}

func (m model) displayName(id string) string {
	for _, a := range m.view.Avatars {
		if a.ParticipantID == id {
			return a.Name
		}
	}
	return truncate(id, 8)
}

func (m model) renderError() string {
	var b strings.Builder
	b.WriteString("\n")
	if m.reconnecting {
		b.WriteString(dimStyle.Render("Rejoining " + m.view.Room + "..."))
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString(errorStyle.Render("Relay connection lost."))
	b.WriteString("\n")
	if m.lastError != "" {
		b.WriteString(errorStyle.Render("Error: " + m.lastError))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("Press r to reconnect."))
	b.WriteString("\n")
	return b.String()
}

// renderMap draws a top-down X/Z view of the stage
func (m model) renderMap() string {
	grid := make([][]string, mapRows)
	for r := range grid {
		grid[r] = make([]string, mapCols)
		for c := range grid[r] {
			grid[r][c] = dimStyle.Render("·")
		}
	}

	for _, st := range m.view.Strokes {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(st.Color))
		for _, p := range st.Points {
			if r, c, ok := mapCell(p.X, p.Z); ok {
				grid[r][c] = style.Render("*")
			}
		}
	}

	for _, a := range m.view.Avatars {
		r, c, ok := mapCell(a.Pose.Position.X, a.Pose.Position.Z)
		if !ok {
			continue
		}
		glyph := strings.ToUpper(string([]rune(a.Name + "?")[0]))
		switch {
		case !a.Online:
			grid[r][c] = dimStyle.Render(glyph)
		case a.ParticipantID == m.view.Controller:
			grid[r][c] = selectedStyle.Render(glyph)
		default:
			grid[r][c] = viewerStyle.Render(glyph)
		}
	}

	if r, c, ok := mapCell(m.view.Camera.Position.X, m.view.Camera.Position.Z); ok {
		grid[r][c] = titleStyle.Render("@")
	}

	lines := make([]string, mapRows)
	// +Z is up
	for r := range grid {
		lines[mapRows-1-r] = strings.Join(grid[r], "")
	}

	title := boxTitleStyle.Render("Stage")
	return mapBoxStyle.Render(title + "\n" + strings.Join(lines, "\n"))
}

func mapCell(x, z float32) (row, col int, ok bool) {
	col = int(math32.Round((x + mapExtent) / (2 * mapExtent) * (mapCols - 1)))
	row = int(math32.Round((z + mapExtent) / (2 * mapExtent) * (mapRows - 1)))
	if col < 0 || col >= mapCols || row < 0 || row >= mapRows {
		return 0, 0, false
	}
	return row, col, true
}

func (m model) renderParticipants() string {
	var b strings.Builder
	b.WriteString(boxTitleStyle.Render(fmt.Sprintf("People (%d)", len(m.view.Avatars)+1)))
	b.WriteString("\n")
	b.WriteString(titleStyle.Render("@ "))
	b.WriteString(normalStyle.Render(m.view.Name + " (you)"))

	for _, a := range m.view.Avatars {
		b.WriteString("\n")
		line := truncate(a.Name, 20)
		switch {
		case !a.Online:
			b.WriteString(dimStyle.Render("  " + line + " (left)"))
		case a.ParticipantID == m.view.Controller:
			b.WriteString(selectedStyle.Render("▸ " + line))
		default:
			b.WriteString(viewerStyle.Render("  " + line))
		}
	}

	cam := m.view.Camera.Position
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("x %.1f  z %.1f", cam.X, cam.Z)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("strokes %d", len(m.view.Strokes))))
	return listBoxStyle.Render(b.String())
}

func (m model) renderHelp() string {
	return m.help.FullHelpView(m.keys.FullHelp())
}

// renderToggle renders a toggle keybind with active/inactive indicator
func (m model) renderToggle(key, label string, active, enabled bool) string {
	if !enabled {
		return dimStyle.Render(" " + key + " " + label)
	}
	if active {
		return toggleActiveStyle.Render(" "+key) + " " + toggleActiveStyle.Render(label)
	}
	return toggleInactiveStyle.Render(" "+key) + " " + normalStyle.Render(label)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// RunTUI joins the room and runs the terminal UI until the user quits
func RunTUI(stage stageConfig) error {
	// Write logs to file instead of corrupting TUI display
	var out io.Writer = io.Discard
	if logFile, err := os.Create("stagesync-debug.log"); err == nil {
		defer logFile.Close()
		out = logFile
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: stage.level}))
	logger.Info("stagesync started", slog.String("room", stage.room), slog.String("participantID", stage.participantID))

	conn := newConnector(stage, logger)
	sess, err := conn.connect(context.Background())
	if err != nil {
		conn.shutdown()
		return fmt.Errorf("join %s: %w", conn.host(), err)
	}

	p := tea.NewProgram(
		initialModel(conn, sess, logger),
		tea.WithAltScreen(),
	)

	final, runErr := p.Run()
	if fm, ok := final.(model); ok && fm.run != nil {
		fm.run.stop(logger)
	}
	conn.shutdown()
	return runErr
}
