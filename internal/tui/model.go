// Package tui implements the interactive symptom chat.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"symptomrag/internal/config"
	"symptomrag/internal/domain"
	"symptomrag/internal/service"
)

// ChatPort is the TUI-facing subset of the RAG service.
type ChatPort interface {
	Ask(ctx context.Context, query string, history []domain.Message, topK int) (service.Reply, error)
}

// Info is shown in the status line.
type Info struct {
	Documents int
	Model     string
	TopK      int
}

// answerMsg carries the result of one asynchronous turn.
type answerMsg struct {
	query string
	reply service.Reply
	err   error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	ctx         context.Context
	service     ChatPort
	logger      *zap.Logger
	session     string
	input       textinput.Model
	viewport    viewport.Model
	spinner     spinner.Model
	history     []domain.Message
	sources     []domain.SearchResult
	lastQuery   string
	showSources bool
	thinking    bool
	topK        int
	info        Info
	status      string
	ready       bool
}

// New creates a chat model. ctx bounds every request made from the UI.
func New(ctx context.Context, svc ChatPort, info Info, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Describe your symptoms and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(thinkingStyle))
	topK := info.TopK
	if topK == 0 {
		topK = config.DefaultTopK
	}
	session := uuid.NewString()
	return Model{
		ctx:      ctx,
		service:  svc,
		logger:   logger.With(zap.String("session", session)),
		session:  session,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		topK:     config.ClampTopK(topK),
		info:     info,
		status:   "Ask about symptoms. ctrl+↑/↓ top-K, ctrl+s sources, ctrl+l clear, ctrl+c quit.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := historyBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		// header + status
		reserved := 2 + ih + 1
		m.viewport.Width = max(20, msg.Width-historyBoxStyle.GetHorizontalFrameSize())
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.refresh()
		return m, nil
	case spinner.TickMsg:
		if !m.thinking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case answerMsg:
		m.thinking = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.logger.Warn("turn failed", zap.Error(msg.err))
			return m, nil
		}
		m.history = append(m.history,
			domain.Message{Role: domain.RoleUser, Content: msg.query},
			domain.Message{Role: domain.RoleAssistant, Content: msg.reply.Text},
		)
		m.sources = msg.reply.Sources
		m.lastQuery = msg.query
		m.status = fmt.Sprintf("Answered from %d documents.", len(msg.reply.Sources))
		m.logger.Info("turn answered", zap.Int("sources", len(msg.reply.Sources)), zap.Int("turns", len(m.history)/2))
		m.refresh()
		m.viewport.GotoBottom()
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d", "esc":
			return m, tea.Quit
		case "ctrl+up":
			m.topK = config.ClampTopK(m.topK + 1)
			return m, nil
		case "ctrl+down":
			m.topK = config.ClampTopK(m.topK - 1)
			return m, nil
		case "ctrl+l":
			m.history, m.sources, m.lastQuery = nil, nil, ""
			m.status = "Conversation cleared."
			m.refresh()
			return m, nil
		case "ctrl+s":
			m.showSources = !m.showSources
			m.refresh()
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.thinking {
				return m, nil
			}
			m.input.Reset()
			m.thinking = true
			m.status = ""
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask runs one turn off the UI goroutine.
func (m Model) ask(query string) tea.Cmd {
	history := append([]domain.Message(nil), m.history...)
	topK := m.topK
	return func() tea.Msg {
		reply, err := m.service.Ask(m.ctx, query, history, topK)
		return answerMsg{query: query, reply: reply, err: err}
	}
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("Symptom Checker") + " " + dimStyle.Render(disclaimer)
	status := m.status
	if m.thinking {
		status = m.spinner.View() + " Thinking..."
	}
	line := dimStyle.Render(fmt.Sprintf("docs=%d  model=%s  top-k=%d  session=%s",
		m.info.Documents, m.info.Model, m.topK, m.session[:8]))
	return header + "\n" +
		historyBoxStyle.Render(m.viewport.View()) + "\n" +
		inputBoxStyle.Render(m.input.View()) + "\n" +
		statusStyle.Render(status) + "  " + line
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
}

func (m Model) renderHistory() string {
	if len(m.history) == 0 {
		return dimStyle.Render("No conversation yet.")
	}
	width := max(10, m.viewport.Width)
	var b strings.Builder
	for _, msg := range m.history {
		label, style := "You", userStyle
		if msg.Role == domain.RoleAssistant {
			label, style = "Assistant", assistantStyle
		}
		b.WriteString(style.Render(label+":") + "\n")
		b.WriteString(lipgloss.NewStyle().Width(width).Render(msg.Content) + "\n\n")
	}
	if m.showSources && len(m.sources) > 0 {
		b.WriteString(titleStyle.Render("Sources") + "\n")
		for i, r := range m.sources {
			title := fmt.Sprintf("%d. %s  score=%.3f", i+1, r.Document.ID, r.Score)
			b.WriteString(dimStyle.Render(title) + "\n")
			b.WriteString(lipgloss.NewStyle().Width(width).Render(highlightBestSentence(r.Document.Text, m.lastQuery)) + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

const disclaimer = "Not medical advice. For educational purposes only."

var (
	titleStyle      = lipgloss.NewStyle().Bold(true)
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	thinkingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	historyBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe   = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	// symptom lists are comma separated, so commas split highlight spans too
	clauseRe = regexp.MustCompile(`[^.,!?]*[.,!?]+|[^.,!?]+`)
)

// highlightBestSentence emphasizes the clause of text sharing the most words
// with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	clauses := clauseRe.FindAllString(text, -1)
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 || len(clauses) == 0 {
		return text
	}
	bestIdx, bestScore := -1, 0
	for i, c := range clauses {
		if score := tokenOverlapScore(qTokens, c); score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx < 0 {
		return text
	}
	clauses[bestIdx] = highlightStyle.Render(clauses[bestIdx])
	return strings.Join(clauses, "")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, clause string) int {
	score := 0
	seen := make(map[string]struct{})
	for _, t := range unicodeWordRe.FindAllString(strings.ToLower(clause), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
