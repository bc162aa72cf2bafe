package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chis/regman/internal/logging"
	"github.com/chis/regman/internal/registry"
)

type screen int

const (
	screenMenu screen = iota
	screenPrompt
	screenConfirm
	screenRunning
	screenResult
)

// Model is the interactive menu. It owns all terminal state; the registry
// client it calls is stateless.
type Model struct {
	ctx      context.Context
	services Services

	screen   screen
	action   *menuAction
	inputs   []string
	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	result   ActionCompleteMsg
	cancel   context.CancelFunc

	logs    []LogMsg
	maxLogs int
	notice  string
	width   int
	height  int
}

// NewModel creates the main menu.
func NewModel(ctx context.Context, services Services) Model {
	ti := textinput.New()
	ti.CharLimit = 255
	ti.Width = 48

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ColorInfo)

	return Model{
		ctx:      ctx,
		services: services,
		screen:   screenMenu,
		input:    ti,
		spinner:  sp,
		viewport: viewport.New(0, 0),
		logs:     make([]LogMsg, 0),
		maxLogs:  50,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()
		return m, nil

	case LogMsg:
		m.logs = append(m.logs, msg)
		if len(m.logs) > m.maxLogs {
			m.logs = m.logs[len(m.logs)-m.maxLogs:]
		}
		return m, nil

	case spinner.TickMsg:
		if m.screen != screenRunning {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ActionCompleteMsg:
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.result = msg
		m.screen = screenResult
		m.viewport.SetContent(m.resultBody())
		m.viewport.GotoTop()
		m.resizeViewport()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m.handleKey(msg)
	}

	if m.screen == screenPrompt {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenMenu:
		return m.handleMenuKey(msg)
	case screenPrompt:
		return m.handlePromptKey(msg)
	case screenConfirm:
		if strings.EqualFold(msg.String(), "y") {
			return m.start()
		}
		return m.backToMenu("Cancelled."), nil
	case screenRunning:
		// Keys are ignored until the action completes; ctrl+c is handled above.
		return m, nil
	case screenResult:
		switch msg.Type {
		case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m.backToMenu(""), nil
	}
	return m, nil
}

func (m Model) handleMenuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "q" || key == quitKey {
		return m, tea.Quit
	}

	action := findAction(key)
	if action == nil {
		m.notice = "Invalid selection. Please try again."
		return m, nil
	}

	m.notice = ""
	m.action = action
	m.inputs = make([]string, 0, len(action.prompts))
	if len(action.prompts) == 0 {
		return m.start()
	}
	return m.prompt()
}

func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		return m.backToMenu(""), nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		if value == "" {
			m.notice = fmt.Sprintf("%s is required.", m.action.prompts[len(m.inputs)])
			return m, nil
		}
		m.notice = ""
		m.inputs = append(m.inputs, value)
		if len(m.inputs) < len(m.action.prompts) {
			return m.prompt()
		}
		if m.action.confirm != nil {
			m.input.Blur()
			m.screen = screenConfirm
			return m, nil
		}
		return m.start()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// prompt shows the text input for the next missing value.
func (m Model) prompt() (tea.Model, tea.Cmd) {
	m.screen = screenPrompt
	m.input.Reset()
	m.input.Placeholder = m.action.prompts[len(m.inputs)]
	m.input.Focus()
	return m, textinput.Blink
}

// start runs the selected action in the background. Every action gets its
// own correlation ID so its registry requests can be traced together.
func (m Model) start() (tea.Model, tea.Cmd) {
	m.input.Blur()
	m.screen = screenRunning

	ctx, cancel := context.WithCancel(m.ctx)
	ctx = logging.WithCorrelationID(ctx, logging.NewCorrelationID())
	m.cancel = cancel

	action, services, inputs := m.action, m.services, append([]string(nil), m.inputs...)
	run := func() tea.Msg {
		return action.run(ctx, services, inputs)
	}
	return m, tea.Batch(m.spinner.Tick, run)
}

func (m Model) backToMenu(notice string) Model {
	m.input.Blur()
	m.screen = screenMenu
	m.action = nil
	m.inputs = nil
	m.notice = notice
	return m
}

func (m *Model) resizeViewport() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	m.viewport.Width = m.width
	// Leave room for the title, status line and help footer
	m.viewport.Height = max(m.height-8, 3)
}

// View renders the current screen
func (m Model) View() string {
	var sections []string

	switch m.screen {
	case screenMenu:
		sections = append(sections, m.menuView())
	case screenPrompt:
		sections = append(sections, m.promptView())
	case screenConfirm:
		sections = append(sections,
			TitleStyle.Render(m.action.label),
			WarningBadge.Render("CONFIRM")+" "+m.action.confirm(m.inputs)+" [y/N]",
		)
	case screenRunning:
		sections = append(sections,
			TitleStyle.Render(m.action.label),
			InfoBadge.Render("RUNNING")+" "+fmt.Sprintf("%s Talking to %s...", m.spinner.View(), m.services.Endpoint),
		)
	case screenResult:
		sections = append(sections, m.resultView())
	}

	if m.notice != "" {
		sections = append(sections, NoticeStyle.Render(m.notice))
	}
	if logs := m.renderLogs(); logs != "" {
		sections = append(sections, logs)
	}
	sections = append(sections, m.helpView())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) menuView() string {
	lines := []string{TitleStyle.Render("Docker Registry CLI")}
	if m.services.Endpoint != "" {
		lines = append(lines, MutedStyle.Render("Registry: "+m.services.Endpoint), "")
	}
	for _, a := range menuActions {
		lines = append(lines, formatMenuItem(a.key, a.label))
	}
	lines = append(lines, formatMenuItem(quitKey, "Quit"))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) promptView() string {
	var lines []string
	lines = append(lines, TitleStyle.Render(m.action.label))
	for i, value := range m.inputs {
		lines = append(lines, MutedStyle.Render(fmt.Sprintf("%s: %s", m.action.prompts[i], value)))
	}
	lines = append(lines, fmt.Sprintf("Enter %s:", strings.ToLower(m.action.prompts[len(m.inputs)])))
	lines = append(lines, m.input.View())
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) resultView() string {
	title := TitleStyle.Render(m.result.Title)
	status := SuccessBadge.Render("OK")
	switch {
	case m.result.Err != nil:
		status = kindBadge(registry.KindOf(m.result.Err))
	case m.result.Partial:
		status = WarningBadge.Render("PARTIAL")
	}

	body := m.resultBody()
	if m.height > 0 {
		body = m.viewport.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, status, "", body)
}

func (m Model) resultBody() string {
	if m.result.Err != nil {
		return lipgloss.NewStyle().Foreground(ColorError).Render(m.result.Err.Error())
	}
	return m.result.Body
}

// renderLogs shows the most recent captured log lines
func (m Model) renderLogs() string {
	if len(m.logs) == 0 {
		return ""
	}

	maxVisible := 5
	start := 0
	if len(m.logs) > maxVisible {
		start = len(m.logs) - maxVisible
	}

	lines := make([]string, 0, maxVisible)
	for _, l := range m.logs[start:] {
		color := ColorMuted
		if strings.Contains(l.Message, "ERRO") || strings.Contains(l.Message, "WARN") {
			color = ColorWarning
		}
		lines = append(lines, lipgloss.NewStyle().
			Foreground(color).
			Render(fmt.Sprintf("[%s] %s", l.Timestamp.Format("15:04:05"), l.Message)))
	}
	return "\n" + strings.Join(lines, "\n")
}

func (m Model) helpView() string {
	switch m.screen {
	case screenMenu:
		return formatHelp([]KeyBinding{{"1-6", "select"}, {"q/7", "quit"}})
	case screenPrompt:
		return formatHelp([]KeyBinding{{"enter", "confirm"}, {"esc", "back to menu"}})
	case screenConfirm:
		return formatHelp([]KeyBinding{{"y", "delete"}, {"any other key", "cancel"}})
	case screenRunning:
		return formatHelp([]KeyBinding{{"ctrl+c", "abort and quit"}})
	default:
		return formatHelp([]KeyBinding{{"↑/↓", "scroll"}, {"any other key", "return to menu"}})
	}
}
