// Package display provides the terminal UI using Bubble Tea.
//
// The [UI] renders a status bar (voice state, turn mode and the latest
// sensor readings), the live response line and an input prompt at the
// bottom of the terminal. Completed exchanges are printed above the
// rendered area so concurrent output never garbles the display.
//
// UI implements domain.Observer: orchestrator events are queued on a
// channel and folded into the model by the Bubble Tea event loop.
package display

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hammamikhairi/astra/internal/domain"
	"github.com/hammamikhairi/astra/internal/logger"
)

// ── Styles ───────────────────────────────────────────────────────

var (
	barBg = lipgloss.NewStyle().
		Background(lipgloss.Color("#27272a")).
		Foreground(lipgloss.Color("#a1a1aa"))

	stateStyles = map[domain.VoiceState]lipgloss.Style{
		domain.StateInactive:   lipgloss.NewStyle().Foreground(lipgloss.Color("#71717a")),
		domain.StateListening:  lipgloss.NewStyle().Foreground(lipgloss.Color("#bbf7d0")).Bold(true),
		domain.StateResponding: lipgloss.NewStyle().Foreground(lipgloss.Color("#bae6fd")).Bold(true),
	}

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a1a1aa"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fde68a"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fca5a5"))

	sepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#52525b"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	// BannerStyle is used for the startup banner.
	BannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	chatStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd"))

	primaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4d4d8"))

	secondaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	urgentOutputStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#fca5a5"))

	userInputEchoStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#a1a1aa"))
)

// holdGap is how long after the last Space repeat a hold-to-talk press
// counts as released. Terminals report no key-up events, so a held key
// is recognised by its auto-repeat.
const holdGap = 600 * time.Millisecond

// Controller is the part of the orchestrator the UI drives.
type Controller interface {
	StartCapture(ctx context.Context) error
	StopCapture() error
	Submit(ctx context.Context, text string) error
	Confirm(ctx context.Context) error
	Discard() error
	Cancel()
	State() domain.VoiceState
	Mode() domain.TurnMode
	SetMode(m domain.TurnMode)
}

// ── UI ───────────────────────────────────────────────────────────

var _ domain.Observer = (*UI)(nil)

// UI manages the terminal through Bubble Tea.
//
// Call [NewUI] then [UI.Run] (blocking). Observer methods and
// [UI.SensorsChanged] may be called from any goroutine.
type UI struct {
	ctrl    Controller
	log     *logger.Logger
	program *tea.Program
	events  chan tea.Msg
	readyCh chan struct{}
	done    atomic.Bool
	initial domain.SensorSnapshot
}

// NewUI creates the display. Call Run to start.
func NewUI(ctrl Controller, sensors domain.SensorSnapshot, log *logger.Logger) *UI {
	return &UI{
		ctrl:    ctrl,
		log:     log,
		events:  make(chan tea.Msg, 256),
		readyCh: make(chan struct{}),
		initial: sensors,
	}
}

// Println prints a line above the prompt. Thread-safe. Falls back to
// fmt.Println when the program is not running.
func (u *UI) Println(a ...any) {
	if u.program != nil && !u.done.Load() {
		u.program.Println(a...)
	} else {
		fmt.Println(a...)
	}
}

// PrintUrgent prints an urgent/error line.
func (u *UI) PrintUrgent(text string) {
	u.Println(urgentOutputStyle.Render("  " + text))
}

// WaitReady blocks until the Bubble Tea event loop is running.
func (u *UI) WaitReady() { <-u.readyCh }

// Run starts the Bubble Tea event loop. Blocks until quit.
func (u *UI) Run(ctx context.Context) error {
	m := newModel(ctx, u.ctrl, u.events, u.initial)
	m.readyCh = u.readyCh

	u.program = tea.NewProgram(m, tea.WithContext(ctx))
	_, err := u.program.Run()
	u.done.Store(true)
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (u *UI) send(msg tea.Msg) {
	select {
	case u.events <- msg:
	default:
		u.log.Warn("display: event queue full, dropping %T", msg)
	}
}

// StateChanged implements domain.Observer.
func (u *UI) StateChanged(s domain.VoiceState) { u.send(stateMsg(s)) }

// Transcript implements domain.Observer.
func (u *UI) Transcript(turnID, text string) { u.send(transcriptMsg{id: turnID, text: text}) }

// ResponseFragment implements domain.Observer.
func (u *UI) ResponseFragment(turnID, frag string) { u.send(fragmentMsg{id: turnID, text: frag}) }

// ResponseDone implements domain.Observer.
func (u *UI) ResponseDone(turnID, final string) { u.send(doneMsg{id: turnID, text: final}) }

// Alert implements domain.Observer.
func (u *UI) Alert(message string) { u.send(alertMsg(message)) }

// SensorsChanged refreshes the status bar. Suitable for Feed.Subscribe.
func (u *UI) SensorsChanged(s domain.SensorSnapshot) { u.send(sensorsMsg(s)) }

// ── Bubble Tea model ─────────────────────────────────────────────

type (
	stateMsg      domain.VoiceState
	transcriptMsg struct{ id, text string }
	fragmentMsg   struct{ id, text string }
	doneMsg       struct{ id, text string }
	alertMsg      string
	sensorsMsg    domain.SensorSnapshot
	holdCheckMsg  int
	actionErrMsg  struct{ err error }
)

type model struct {
	ctx     context.Context
	ctrl    Controller
	events  <-chan tea.Msg
	readyCh chan struct{}
	input   textinput.Model
	width   int

	state   domain.VoiceState
	mode    domain.TurnMode
	sensors domain.SensorSnapshot
	live    strings.Builder
	liveID  string
	pending string
	alert   string

	holding bool
	holdSeq int
}

func newModel(ctx context.Context, ctrl Controller, events <-chan tea.Msg, sensors domain.SensorSnapshot) *model {
	ti := textinput.New()
	ti.Prompt = "astra> "
	ti.PromptStyle = promptStyle
	ti.TextStyle = userInputEchoStyle
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8"))
	ti.Placeholder = "Espacio para hablar, o escribe y pulsa Enter"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	return &model{
		ctx:     ctx,
		ctrl:    ctrl,
		events:  events,
		input:   ti,
		state:   ctrl.State(),
		mode:    ctrl.Mode(),
		sensors: sensors,
	}
}

func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, listen(m.events), tea.SetWindowTitle("Astra")}
	if m.readyCh != nil {
		cmds = append(cmds, signalReady(m.readyCh))
	}
	return tea.Batch(cmds...)
}

func signalReady(ch chan struct{}) tea.Cmd {
	return func() tea.Msg {
		close(ch)
		return nil
	}
}

// listen waits for the next observer event.
func listen(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg { return <-events }
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		if w := msg.Width - len(m.input.Prompt); w > 0 {
			m.input.Width = w
		}
		return m, nil

	case holdCheckMsg:
		if m.holding && int(msg) == m.holdSeq {
			m.holding = false
			return m, m.do(func() error { return m.ctrl.StopCapture() })
		}
		return m, nil

	case actionErrMsg:
		switch {
		case errors.Is(msg.err, domain.ErrAlreadyListening),
			errors.Is(msg.err, domain.ErrNotListening),
			errors.Is(msg.err, domain.ErrNoPendingTranscript),
			errors.Is(msg.err, domain.ErrEmptyInput),
			errors.Is(msg.err, domain.ErrMicrophoneUnavailable):
		default:
			m.alert = msg.err.Error()
		}
		return m, nil
	}

	if cmd, ok := m.handleEvent(msg); ok {
		return m, tea.Batch(cmd, listen(m.events))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleEvent folds an observer event into the model. ok is false when
// msg is not an observer event.
func (m *model) handleEvent(msg tea.Msg) (cmd tea.Cmd, ok bool) {
	switch msg := msg.(type) {
	case stateMsg:
		m.state = domain.VoiceState(msg)
		if m.state == domain.StateListening {
			m.alert = ""
		}
		if m.state != domain.StateListening {
			m.pending = ""
		}
		return nil, true

	case transcriptMsg:
		if m.state == domain.StateListening && m.mode == domain.ModeConfirm {
			m.pending = msg.text
			return nil, true
		}
		m.pending = ""
		return tea.Println(formatUser(msg.text)), true

	case fragmentMsg:
		if msg.id != m.liveID {
			m.live.Reset()
			m.liveID = msg.id
		}
		m.live.WriteString(msg.text)
		return nil, true

	case doneMsg:
		m.live.Reset()
		m.liveID = ""
		if msg.text == "" {
			return nil, true
		}
		return tea.Println(formatAssistant(msg.text)), true

	case alertMsg:
		m.alert = string(msg)
		return tea.Println(urgentOutputStyle.Render("  " + string(msg))), true

	case sensorsMsg:
		m.sensors = domain.SensorSnapshot(msg)
		return nil, true
	}
	return nil, false
}

func (m *model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyCtrlC:
		return tea.Quit

	case tea.KeyTab:
		m.mode = (m.mode + 1) % 3
		m.ctrl.SetMode(m.mode)
		m.holding = false
		return nil

	case tea.KeyEsc:
		if m.pending != "" {
			return m.do(m.ctrl.Discard)
		}
		return m.do(func() error { m.ctrl.Cancel(); return nil })

	case tea.KeyEnter:
		text := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if text == "" {
			if m.pending != "" {
				return m.do(func() error { return m.ctrl.Confirm(m.ctx) })
			}
			return nil
		}
		return m.do(func() error { return m.ctrl.Submit(m.ctx, text) })

	case tea.KeySpace:
		if m.input.Value() != "" {
			break
		}
		return m.talk()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// talk handles the talk key according to the turn mode.
func (m *model) talk() tea.Cmd {
	if m.mode == domain.ModeHold {
		m.holdSeq++
		check := holdTimer(m.holdSeq)
		if m.holding {
			return check
		}
		m.holding = true
		return tea.Batch(m.do(func() error { return m.ctrl.StartCapture(m.ctx) }), check)
	}

	if m.state == domain.StateListening && m.pending == "" {
		return m.do(func() error { return m.ctrl.StopCapture() })
	}
	return m.do(func() error { return m.ctrl.StartCapture(m.ctx) })
}

func holdTimer(seq int) tea.Cmd {
	return tea.Tick(holdGap, func(time.Time) tea.Msg { return holdCheckMsg(seq) })
}

// do runs a controller action off the event loop.
func (m *model) do(action func() error) tea.Cmd {
	return func() tea.Msg {
		if err := action(); err != nil {
			return actionErrMsg{err: err}
		}
		return nil
	}
}

func (m *model) View() string {
	var b strings.Builder

	b.WriteString(m.renderBar())
	b.WriteByte('\n')

	switch {
	case m.live.Len() > 0:
		b.WriteString(chatStyle.Render("  " + m.live.String()))
		b.WriteByte('\n')
	case m.pending != "":
		b.WriteString(primaryStyle.Render("  ¿Enviar? \"" + m.pending + "\""))
		b.WriteString(secondaryStyle.Render("  (Enter confirma, Esc descarta)"))
		b.WriteByte('\n')
	case m.alert != "":
		b.WriteString(warnStyle.Render("  " + m.alert))
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	b.WriteString(m.input.View())
	return b.String()
}

func (m *model) renderBar() string {
	s := m.sensors
	parts := []string{
		stateStyles[m.state].Render("● " + stateLabel(m.state)),
		labelStyle.Render("modo: ") + valueStyle.Render(m.mode.String()),
		valueStyle.Render(fmt.Sprintf("%.1f°C", s.Temperature)) + labelStyle.Render(fmt.Sprintf(" %.0f%%", s.Humidity)),
		labelStyle.Render("CO2 ") + valueStyle.Render(fmt.Sprintf("%.0f", s.CO2)),
		labelStyle.Render("luz ") + valueStyle.Render(fmt.Sprintf("%.0f", s.Light)),
		labelStyle.Render("energía ") + valueStyle.Render(fmt.Sprintf("%.1f kWh", s.Energy)),
	}
	var flags []string
	if s.DoorOpen {
		flags = append(flags, "puerta abierta")
	}
	if s.WindowOpen {
		flags = append(flags, "ventana abierta")
	}
	if s.Motion {
		flags = append(flags, "movimiento")
	}
	if s.Smoke {
		flags = append(flags, "¡HUMO!")
	}
	if len(flags) > 0 {
		parts = append(parts, warnStyle.Render(strings.Join(flags, ", ")))
	}

	content := " " + strings.Join(parts, sepStyle.Render("  │  ")) + " "

	w := m.width
	if w <= 0 {
		w = 80
	}
	return barBg.Width(w).Render(content)
}

// ── Helpers ──────────────────────────────────────────────────────

func stateLabel(s domain.VoiceState) string {
	switch s {
	case domain.StateListening:
		return "escuchando"
	case domain.StateResponding:
		return "respondiendo"
	default:
		return "en espera"
	}
}

func formatUser(text string) string {
	return promptStyle.Render("tú") + secondaryStyle.Render("> ") + userInputEchoStyle.Render(text)
}

func formatAssistant(text string) string {
	return promptStyle.Render("astra") + secondaryStyle.Render("> ") + chatStyle.Render(text)
}
