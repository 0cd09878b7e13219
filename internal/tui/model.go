package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mediguide/internal/models"
)

// ChatPort is the TUI-facing subset of the assistant session.
type ChatPort interface {
	Ask(ctx context.Context, question string) (*models.ChatTurn, error)
	History() []models.ChatTurn
	Profile() models.UserProfile
}

type answerMsg struct {
	turn *models.ChatTurn
	err  error
}

// Model is the Bubble Tea model for the consultation chat.
type Model struct {
	session  ChatPort
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	status   string
	inFlight bool
	ready    bool
}

func New(session ChatPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "請輸入您的訊息"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		session:  session,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Enter 送出，Ctrl+C 離開",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, profile, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil
	case answerMsg:
		m.inFlight = false
		m.input.Focus()
		switch {
		case errors.Is(msg.err, models.ErrProfileIncomplete):
			m.status = "請先填寫基本資料（--name --birthdate --blood-type）"
		case msg.err != nil:
			m.status = "Error: " + msg.err.Error()
		default:
			m.status = fmt.Sprintf("已回覆，引用 %d 筆資料", len(msg.turn.References))
		}
		m.refresh()
		return m, textinput.Blink
	case spinner.TickMsg:
		if !m.inFlight {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if m.inFlight {
			// input stays locked until the current turn returns
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		if msg.Type == tea.KeyEnter {
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			m.input.Reset()
			m.input.Blur()
			m.inFlight = true
			m.status = "思考中..."
			return m, tea.Batch(m.ask(q), m.spinner.Tick)
		}
		switch msg.String() {
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		turn, err := m.session.Ask(context.Background(), question)
		return answerMsg{turn: turn, err: err}
	}
}

// refresh re-renders the transcript; the session may have appended the user
// turn before the answer arrived.
func (m *Model) refresh() {
	m.viewport.SetContent(renderTranscript(m.session.History(), m.viewport.Width))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("MediGuide 醫療諮詢")
	profile := mutedStyle.Render(m.session.Profile().Text())
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.inFlight {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + profile + "\n" + transcript + "\n" + input + "\n" + status
}

func renderTranscript(history []models.ChatTurn, width int) string {
	if len(history) == 0 {
		return mutedStyle.Render("尚無對話，描述您的症狀開始諮詢。")
	}
	wrap := lipgloss.NewStyle().Width(max(10, width-4))
	var b strings.Builder
	for i, turn := range history {
		if i > 0 {
			b.WriteString("\n")
		}
		switch turn.Role {
		case models.RoleUser:
			b.WriteString(userStyle.Render("你") + "\n")
		default:
			b.WriteString(doctorStyle.Render("醫生") + "\n")
		}
		b.WriteString(wrap.Render(turn.Content) + "\n")
		for n, ref := range turn.References {
			cite := fmt.Sprintf("[%d] %s／%s：%s", n+1, ref.Department, ref.Symptom, ref.QuestionText)
			b.WriteString(citeStyle.Render(wrap.Render(cite)) + "\n")
			if answer := ref.DisplayAnswer(); answer != "" {
				b.WriteString(mutedStyle.Render(wrap.Render("    "+answer)) + "\n")
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

var (
	headerStyle        = lipgloss.NewStyle().Bold(true)
	mutedStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	doctorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	citeStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
