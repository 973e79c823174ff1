// Package tui is the terminal presentation layer. It owns no game logic:
// every mutation goes through the session's two entry points plus the
// best-effort illustration refresh.
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

	"github.com/mirellag/gemini-adventure/internal/engine"
	"github.com/mirellag/gemini-adventure/internal/models"
)

type sessionState int

const (
	stateMenu sessionState = iota
	stateCustomForm
	stateLoading
	statePlaying
)

type activeTab int

const (
	tabScene activeTab = iota
	tabInventory
	tabCharacter
	tabWorld
	tabCount
)

var tabNames = [tabCount]string{"Scene", "Inventory", "Character Sheet", "World Info"}

// The custom-scenario wizard collects these fields in order.
var formSteps = []struct {
	label       string
	placeholder string
}{
	{"Starting location", "e.g. Sunken Library Entrance"},
	{"Opening scene", "Describe the scene your adventure opens on..."},
	{"Starting items (comma separated)", "e.g. Worn Cloak, Cracked Lute"},
	{"Character bio", "A few sentences about who you are..."},
}

type model struct {
	state   sessionState
	session *engine.Session

	textInput textinput.Model
	viewport  viewport.Model
	spin      spinner.Model

	tab      activeTab
	formStep int
	form     models.CustomScenario

	snapshot models.GameState
	width    int
	height   int
	ready    bool
	err      error
}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)

	actionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#5F5F87")).
			Bold(true).
			PaddingLeft(1)

	narrationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	eventStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	currencyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	gameOverStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	tabActiveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")).
			Bold(true).
			Underline(true)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#666666"))
)

// NewModel builds the initial TUI model around a session.
func NewModel(session *engine.Session) model {
	ti := textinput.New()
	ti.Placeholder = "Press Enter for a random adventure, or type 'custom'..."
	ti.Focus()
	ti.CharLimit = 300
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB"))

	return model{
		state:     stateMenu,
		session:   session,
		textInput: ti,
		spin:      sp,
		snapshot:  session.Snapshot(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick)
}

type adventureStartedMsg struct{ err error }

type turnFinishedMsg struct {
	result engine.TurnResult
	err    error
}

type imageRefreshedMsg struct{}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.state == stateCustomForm && msg.Type == tea.KeyEsc {
				m.state = stateMenu
				m.formStep = 0
				m.form = models.CustomScenario{}
				m.resetInput("Press Enter for a random adventure, or type 'custom'...")
				return m, nil
			}
			return m, tea.Quit

		case tea.KeyTab:
			if m.state == statePlaying {
				m.tab = (m.tab + 1) % tabCount
				return m, nil
			}

		case tea.KeyEnter:
			return m.handleEnter()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = m.logWidth()
		m.viewport.Height = msg.Height - 6
		if m.state == statePlaying {
			m.viewport.SetContent(m.renderLog())
		}

	case spinner.TickMsg:
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case adventureStartedMsg:
		m.snapshot = m.session.Snapshot()
		if msg.err != nil {
			m.err = msg.err
			m.state = stateMenu
			m.resetInput("Press Enter to try again, or type 'custom'...")
			return m, nil
		}
		m.err = nil
		m.state = statePlaying
		m.tab = tabScene
		if !m.ready {
			m.viewport = viewport.New(m.logWidth(), m.height-6)
			m.ready = true
		}
		m.viewport.SetContent(m.renderLog())
		m.viewport.GotoBottom()
		m.resetInput("What do you do?")
		return m, nil

	case turnFinishedMsg:
		m.snapshot = m.session.Snapshot()
		m.viewport.SetContent(m.renderLog())
		m.viewport.GotoBottom()
		if msg.err == nil && msg.result.SceneChanged {
			return m, m.refreshImage()
		}
		return m, nil

	case imageRefreshedMsg:
		m.snapshot = m.session.Snapshot()
		return m, nil
	}

	if m.state == stateMenu || m.state == stateCustomForm || m.state == statePlaying {
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m model) handleEnter() (tea.Model, tea.Cmd) {
	switch m.state {
	case stateMenu:
		choice := strings.ToLower(strings.TrimSpace(m.textInput.Value()))
		if choice == "custom" {
			m.state = stateCustomForm
			m.formStep = 0
			m.resetInput(formSteps[0].placeholder)
			return m, nil
		}
		m.state = stateLoading
		m.err = nil
		return m, tea.Batch(m.startAdventure(nil), m.spin.Tick)

	case stateCustomForm:
		value := strings.TrimSpace(m.textInput.Value())
		switch m.formStep {
		case 0:
			m.form.LocationName = value
		case 1:
			m.form.SceneDescription = value
		case 2:
			m.form.Inventory = splitItems(value)
		case 3:
			m.form.CharacterBio = value
		}
		m.formStep++
		if m.formStep < len(formSteps) {
			m.resetInput(formSteps[m.formStep].placeholder)
			return m, nil
		}
		custom := m.form
		m.state = stateLoading
		m.err = nil
		return m, tea.Batch(m.startAdventure(&custom), m.spin.Tick)

	case statePlaying:
		text := strings.TrimSpace(m.textInput.Value())
		if text == "" {
			return m, nil
		}
		switch text {
		case "/quit":
			return m, tea.Quit
		case "/restart":
			m.session.Reset()
			m.snapshot = m.session.Snapshot()
			m.state = stateMenu
			m.form = models.CustomScenario{}
			m.formStep = 0
			m.resetInput("Press Enter for a random adventure, or type 'custom'...")
			return m, nil
		}
		if m.snapshot.GameOver || m.session.Busy() {
			return m, nil
		}
		m.textInput.Reset()
		return m, m.submitCommand(text)
	}
	return m, nil
}

func (m model) View() string {
	switch m.state {
	case stateMenu:
		var b strings.Builder
		b.WriteString(titleStyle.Render("Gemini Text Adventure"))
		b.WriteString("\n\n")
		if m.err != nil {
			b.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n\n")
		}
		b.WriteString("Start a randomly generated adventure, or build your own scenario.\n\n")
		b.WriteString(m.textInput.View())
		b.WriteString("\n\n" + helpStyle.Render("Enter: random adventure · 'custom': build your own · Esc: quit"))
		return "\n" + b.String() + "\n"

	case stateCustomForm:
		var b strings.Builder
		b.WriteString(titleStyle.Render("Custom Scenario"))
		b.WriteString("\n\n")
		for i := 0; i < m.formStep; i++ {
			b.WriteString(systemStyle.Render(formSteps[i].label+": done") + "\n")
		}
		b.WriteString(fmt.Sprintf("\n%s:\n%s", formSteps[m.formStep].label, m.textInput.View()))
		b.WriteString("\n\n" + helpStyle.Render("Enter: next · Esc: back to menu"))
		return "\n" + b.String() + "\n"

	case stateLoading:
		return fmt.Sprintf("\n  %s %s\n", m.spin.View(), loadingMessage(m.session.Phase()))

	case statePlaying:
		logView := m.viewport.View()
		panel := m.renderPanel()
		mainView := lipgloss.JoinHorizontal(lipgloss.Top, logView, panel)

		var bottom string
		if m.snapshot.GameOver {
			text := "The Adventure Has Concluded."
			if entry, ok := m.snapshot.Log.LastOfKind(models.LogGameOver); ok {
				text = entry.Text
			}
			bottom = gameOverStyle.Render(text) + "\n" +
				helpStyle.Render("Type /restart for a new adventure, /quit to leave.")
		} else {
			status := ""
			if flags := m.session.Flags(); flags.Acting {
				status = m.spin.View() + " AI is pondering...\n"
			} else if flags.ImageBusy {
				status = m.spin.View() + " Illustrating the scene...\n"
			}
			bottom = status + m.textInput.View() + "\n" +
				helpStyle.Render("Tab: switch panel · /restart, /quit, or just type what you want to do.")
		}

		return "\n" + lipgloss.JoinVertical(lipgloss.Left, mainView, "\n"+bottom) + "\n"
	}
	return ""
}

func loadingMessage(phase engine.Phase) string {
	switch phase {
	case engine.PhaseSceneGenerating:
		return "Crafting your adventure..."
	case engine.PhaseCharacterReady:
		return "Forging your hero's destiny..."
	case engine.PhaseAssetsGenerating:
		return "Unveiling the world's secrets..."
	case engine.PhasePortraitGenerating:
		return "Painting your portrait..."
	case engine.PhaseSceneImageGenerating:
		return "Illustrating the opening scene..."
	}
	return "Please wait..."
}

func (m model) renderLog() string {
	width := m.logWidth()
	var b strings.Builder
	for _, entry := range m.snapshot.Log.Entries() {
		var line string
		switch entry.Kind {
		case models.LogPlayerAction:
			line = actionStyle.Width(width).Render("> " + entry.Text)
		case models.LogNarration:
			line = narrationStyle.Width(width).Render(entry.Text)
		case models.LogEvent:
			line = eventStyle.Width(width).Render(entry.Text)
		case models.LogError:
			line = errorStyle.Width(width).Render(entry.Text)
		case models.LogCurrencyUpdate:
			line = currencyStyle.Width(width).Render(entry.Text)
		case models.LogGameOver:
			line = gameOverStyle.Width(width).Render(entry.Text)
		default:
			line = systemStyle.Width(width).Render(entry.Text)
		}
		b.WriteString(line + "\n\n")
	}
	return b.String()
}

func (m model) renderPanel() string {
	var tabs []string
	for i := activeTab(0); i < tabCount; i++ {
		if i == m.tab {
			tabs = append(tabs, tabActiveStyle.Render(tabNames[i]))
		} else {
			tabs = append(tabs, tabInactiveStyle.Render(tabNames[i]))
		}
	}
	header := strings.Join(tabs, "  ") + "\n\n"

	var content string
	switch m.tab {
	case tabScene:
		content = m.renderScene()
	case tabInventory:
		content = m.renderInventory()
	case tabCharacter:
		content = m.renderCharacter()
	case tabWorld:
		content = m.renderWorld()
	}

	panelWidth := int(float64(m.width) * 0.3)
	return panelStyle.Width(panelWidth).Height(m.viewport.Height).Render(header + content)
}

func (m model) renderScene() string {
	st := m.snapshot
	s := titleStyle.Render("LOCATION") + "\n" + st.LocationName + "\n\n" +
		st.SceneDescription + "\n"
	if st.SceneImagePath != "" {
		s += "\n" + systemStyle.Render("Illustration: "+st.SceneImagePath) + "\n"
	}
	return s
}

func (m model) renderInventory() string {
	st := m.snapshot
	s := titleStyle.Render("WEALTH") + "\n" +
		fmt.Sprintf("%d %s\n\n", st.CurrencyAmount, st.CurrencyName) +
		titleStyle.Render("INVENTORY") + "\n"
	if len(st.Inventory) == 0 {
		return s + "(empty)"
	}
	for _, item := range st.Inventory {
		s += "- " + item + "\n"
	}
	return s
}

func (m model) renderCharacter() string {
	ch := m.snapshot.Character
	if ch == nil {
		return "No character yet."
	}
	s := titleStyle.Render(ch.Name) + "\n" +
		fmt.Sprintf("%s %s\n\n", ch.Age, ch.Class) +
		titleStyle.Render("SKILLS") + "\n" + bulleted(ch.Skills) + "\n" +
		titleStyle.Render("PERSONALITY") + "\n" + bulleted(ch.PersonalityTraits) + "\n" +
		titleStyle.Render("BACKGROUND") + "\n" + ch.Background + "\n"
	if m.snapshot.CharacterImagePath != "" {
		s += "\n" + systemStyle.Render("Portrait: "+m.snapshot.CharacterImagePath) + "\n"
	}
	return s
}

func (m model) renderWorld() string {
	w := m.snapshot.World
	if w == nil {
		return "The world is still taking shape."
	}
	return titleStyle.Render("THE WORLD") + "\n" + w.Background + "\n\n" +
		titleStyle.Render("CURRENCY") + "\n" + w.CurrencySystem + "\n"
}

func bulleted(items []string) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- " + item + "\n")
	}
	return b.String()
}

func (m model) logWidth() int {
	return int(float64(m.width) * 0.68)
}

func (m *model) resetInput(placeholder string) {
	m.textInput.Reset()
	m.textInput.Placeholder = placeholder
}

func splitItems(raw string) []string {
	var items []string
	for _, part := range strings.Split(raw, ",") {
		if item := strings.TrimSpace(part); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func (m model) startAdventure(custom *models.CustomScenario) tea.Cmd {
	return func() tea.Msg {
		err := m.session.StartAdventure(context.Background(), custom)
		return adventureStartedMsg{err}
	}
}

func (m model) submitCommand(text string) tea.Cmd {
	return func() tea.Msg {
		result, err := m.session.SubmitCommand(context.Background(), text)
		return turnFinishedMsg{result, err}
	}
}

func (m model) refreshImage() tea.Cmd {
	return func() tea.Msg {
		m.session.RefreshSceneImage(context.Background())
		return imageRefreshedMsg{}
	}
}

// Run starts the terminal UI around the session.
func Run(session *engine.Session) error {
	p := tea.NewProgram(NewModel(session), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
