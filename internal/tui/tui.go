// Package tui provides the terminal host page: it renders a modal's title
// bar and state, and drives the modal from the keyboard.
package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/x/ansi"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/sadsciencee/modalkit/internal/bridge"
	"github.com/sadsciencee/modalkit/internal/envelope"
	"github.com/sadsciencee/modalkit/internal/events"
	"github.com/sadsciencee/modalkit/internal/pubsub"
	"github.com/sadsciencee/modalkit/internal/tui/components/logo"
	"github.com/sadsciencee/modalkit/internal/tui/components/markdown"
	"github.com/sadsciencee/modalkit/internal/tui/components/titlebar"
	"github.com/sadsciencee/modalkit/internal/tui/styles"
)

const (
	maxLogLines = 200
	toastTTL    = 4 * time.Second
)

// Controller is the host page the TUI drives.
type Controller interface {
	ID() string
	Remote() bool
	Open()
	Close()
	Visible() bool
	Connected() bool
	TitleBar() envelope.TitleBarState
	TriggerAction(envelope.Action) error
	TogglePrimaryDisabled() envelope.TitleBarState
	Remount() error
	Mounts() int
}

type toast struct {
	id      int
	message string
	isError bool
}

type toastExpiredMsg struct{ id int }

type clipboardMsg struct {
	text string
	err  error
}

// Model is the main TUI model.
type Model struct {
	ctrl   Controller
	logger *zap.Logger
	keyMap KeyMap
	help   help.Model
	md     *markdown.Renderer
	copyFn func(string) error

	titleBar  envelope.TitleBarState
	visible   bool
	connected bool
	loaded    bool
	mounts    int

	toasts    []toast
	nextToast int
	log       []string
	statusMsg string
	showHelp  bool

	width  int
	height int
	ready  bool
}

// New creates the host page model.
func New(ctrl Controller, logger *zap.Logger) *Model {
	if logger == nil {
		logger = zap.L()
	}
	m := &Model{
		ctrl:   ctrl,
		logger: logger.Named("tui"),
		keyMap: DefaultKeyMap(),
		help:   help.New(),
		md:     markdown.New(),
		copyFn: clipboard.WriteAll,
	}
	m.refresh()
	return m
}

// Init initializes the TUI.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case tea.KeyPressMsg:
		m.logger.Debug("key", zap.String("key", msg.String()))
		return m, m.handleKey(msg)

	case bridge.ModalEventMsg:
		m.handleModalEvent(msg.Event.Payload)
		return m, nil

	case bridge.ToastEventMsg:
		return m, m.addToast(msg.Event.Payload)

	case toastExpiredMsg:
		for i, t := range m.toasts {
			if t.id == msg.id {
				m.toasts = append(m.toasts[:i], m.toasts[i+1:]...)
				break
			}
		}
		return m, nil

	case clipboardMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Copy failed: %v", msg.err)
		} else {
			m.statusMsg = fmt.Sprintf("Copied %s", msg.text)
		}
		return m, nil

	case bridge.StoppedMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyPressMsg) tea.Cmd {
	k := m.keyMap
	switch {
	case key.Matches(msg, k.Quit):
		return tea.Quit
	case key.Matches(msg, k.Open):
		m.ctrl.Open()
		m.statusMsg = "Opening " + m.ctrl.ID()
	case key.Matches(msg, k.Close):
		m.ctrl.Close()
		m.statusMsg = "Closed " + m.ctrl.ID()
	case key.Matches(msg, k.Primary):
		m.trigger(envelope.ActionPrimary)
	case key.Matches(msg, k.Secondary):
		m.trigger(envelope.ActionSecondary)
	case key.Matches(msg, k.ToggleDisabled):
		state := m.ctrl.TogglePrimaryDisabled()
		if state.PrimaryButton != nil && state.PrimaryButton.Disabled {
			m.statusMsg = "Primary button disabled"
		} else {
			m.statusMsg = "Primary button enabled"
		}
	case key.Matches(msg, k.Remount):
		if err := m.ctrl.Remount(); err != nil {
			m.statusMsg = fmt.Sprintf("Remount failed: %v", err)
		} else {
			m.loaded = false
			m.statusMsg = "Host remounted"
		}
	case key.Matches(msg, k.CopyID):
		id := m.ctrl.ID()
		copyFn := m.copyFn
		return func() tea.Msg {
			return clipboardMsg{text: id, err: copyFn(id)}
		}
	case key.Matches(msg, k.Help):
		m.showHelp = !m.showHelp
	}
	m.refresh()
	return nil
}

func (m *Model) trigger(action envelope.Action) {
	state := m.ctrl.TitleBar()
	b := state.PrimaryButton
	if action == envelope.ActionSecondary {
		b = state.SecondaryButton
	}
	if b == nil || b.Disabled {
		m.statusMsg = fmt.Sprintf("The %s button is not available", action)
		return
	}
	if err := m.ctrl.TriggerAction(action); err != nil {
		m.statusMsg = fmt.Sprintf("Action failed: %v", err)
		return
	}
	m.statusMsg = "Clicked " + b.Label
}

func (m *Model) handleModalEvent(e events.ModalEvent) {
	if e.SessionID != m.ctrl.ID() {
		return
	}
	switch e.Type {
	case events.ModalHandshake:
		m.loaded = false
	case events.ModalLoaded:
		m.loaded = true
	}
	m.appendLog(e)
	m.refresh()
}

func (m *Model) addToast(e events.ToastEvent) tea.Cmd {
	m.nextToast++
	id := m.nextToast
	m.toasts = append(m.toasts, toast{id: id, message: e.Message, isError: e.IsError})
	return tea.Tick(toastTTL, func(time.Time) tea.Msg { return toastExpiredMsg{id: id} })
}

func (m *Model) appendLog(e events.ModalEvent) {
	line := fmt.Sprintf("%s %-5s %-9s", e.Timestamp.Format("15:04:05"), e.Side, e.Type)
	if e.Kind != "" {
		line += " " + e.Kind
	}
	if e.Detail != "" {
		line += " (" + e.Detail + ")"
	}
	m.log = append(m.log, line)
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}

func (m *Model) refresh() {
	m.titleBar = m.ctrl.TitleBar()
	m.visible = m.ctrl.Visible()
	m.connected = m.ctrl.Connected()
	m.mounts = m.ctrl.Mounts()
}

// View renders the TUI.
func (m *Model) View() tea.View {
	var view tea.View
	view.AltScreen = true

	if !m.ready {
		view.Content = "Loading..."
		return view
	}
	view.Content = m.render()
	return view
}

func (m *Model) render() string {
	t := styles.CurrentTheme()
	inner := m.width - 4
	if inner < 20 {
		inner = 20
	}

	where := "in-process"
	if m.ctrl.Remote() {
		where = "over relay"
	}
	header := logo.RenderWithTagline(fmt.Sprintf("%s · %s", m.ctrl.ID(), where))

	bar := t.S().Panel.Width(inner + 2).Render(titlebar.Render(m.titleBar, inner))

	sections := []string{header, "", bar, m.renderStatus()}

	if len(m.toasts) > 0 {
		var lines []string
		for _, ts := range m.toasts {
			if ts.isError {
				lines = append(lines, t.S().Error.Render("✗ "+ts.message))
			} else {
				lines = append(lines, t.S().Success.Render("✓ "+ts.message))
			}
		}
		sections = append(sections, "", strings.Join(lines, "\n"))
	}

	if m.showHelp {
		sections = append(sections, "", m.renderHelp(inner))
	} else {
		sections = append(sections, "", t.S().Subtitle.Render("Messages"), m.renderLog(inner))
	}

	if m.statusMsg != "" {
		sections = append(sections, "", t.S().Info.Render(m.statusMsg))
	}
	sections = append(sections, "", m.help.ShortHelpView(m.keyMap.ShortHelp()))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderStatus() string {
	t := styles.CurrentTheme()
	flag := func(on bool, yes, no string) string {
		if on {
			return t.S().Success.Render("● " + yes)
		}
		return t.S().Muted.Render("○ " + no)
	}

	guest := flag(m.loaded, "loaded", "waiting")
	if m.ctrl.Remote() && !m.loaded {
		guest = t.S().Muted.Render("○ remote")
	}

	return strings.Join([]string{
		"Modal " + flag(m.visible, "visible", "hidden"),
		"Channel " + flag(m.connected, "connected", "none"),
		"Guest " + guest,
		t.S().Muted.Render(fmt.Sprintf("mounts %d", m.mounts)),
	}, "   ")
}

func (m *Model) renderLog(width int) string {
	t := styles.CurrentTheme()
	if len(m.log) == 0 {
		return t.S().Muted.Render("No messages yet. Press o to open the modal.")
	}

	rows := m.height - 20
	if rows < 3 {
		rows = 3
	}
	start := len(m.log) - rows
	if start < 0 {
		start = 0
	}

	lines := make([]string, 0, rows)
	for _, line := range m.log[start:] {
		lines = append(lines, t.S().Text.Render(ansi.Truncate(line, width, "…")))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderHelp(width int) string {
	var sb strings.Builder
	sb.WriteString("## Host page\n\n")
	fmt.Fprintf(&sb, "Drives **%s** (`%s`).\n\n", m.ctrl.ID(), m.titleBar.Variant)
	for _, b := range m.keyMap.ShortHelp() {
		h := b.Help()
		fmt.Fprintf(&sb, "- **%s** %s\n", h.Key, h.Desc)
	}
	out, err := m.md.Render(sb.String(), width)
	if err != nil {
		m.logger.Debug("markdown render failed", zap.Error(err))
	}
	return strings.TrimRight(out, "\n")
}

// Run starts the TUI program and forwards hub events to it until it exits.
func Run(ctrl Controller, hub *pubsub.Hub, logger *zap.Logger) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("modalkit requires an interactive terminal: stdin/stdout must be connected to a TTY")
	}

	styles.NewManager()

	model := New(ctrl, logger)
	p := tea.NewProgram(model)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tuiBridge := bridge.NewTUIBridge(hub, p, bridge.WithModalFilter(ctrl.ID()), bridge.WithLogger(logger))
	tuiBridge.Start(ctx)
	defer tuiBridge.Stop()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}
