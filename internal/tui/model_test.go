package tui

import (
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symptomrag/internal/domain"
	"symptomrag/internal/service"
)

type fakePort struct {
	history [][]domain.Message
	topKs   []int
	reply   service.Reply
	err     error
}

func (f *fakePort) Ask(_ context.Context, _ string, history []domain.Message, topK int) (service.Reply, error) {
	f.history = append(f.history, history)
	f.topKs = append(f.topKs, topK)
	return f.reply, f.err
}

func newTestModel(port ChatPort) Model {
	m := New(context.Background(), port, Info{Documents: 42, Model: "gpt-test", TopK: 5}, nil)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(Model)
}

// submit types q, presses enter and delivers the answer.
func submit(t *testing.T, m Model, q string) Model {
	t.Helper()
	m.input.SetValue(q)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.thinking)
	assert.Contains(t, m.View(), "Thinking...")

	for _, msg := range drain(cmd) {
		if _, ok := msg.(answerMsg); ok {
			updated, _ = m.Update(msg)
			return updated.(Model)
		}
	}
	t.Fatal("no answer message produced")
	return m
}

func drain(cmd tea.Cmd) []tea.Msg {
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			if c != nil {
				out = append(out, c())
			}
		}
		return out
	}
	return []tea.Msg{msg}
}

func key(m Model, k tea.KeyType) Model {
	updated, _ := m.Update(tea.KeyMsg{Type: k})
	return updated.(Model)
}

func TestChat_TurnsAccumulateHistory(t *testing.T) {
	port := &fakePort{reply: service.Reply{
		Text:    "It may be the flu.",
		Sources: []domain.SearchResult{{Document: domain.Document{ID: "Flu", Text: "Flu can present with symptoms such as fever, cough."}, Score: 0.8}},
	}}
	m := newTestModel(port)

	m = submit(t, m, "I have a fever")
	assert.False(t, m.thinking)
	require.Len(t, m.history, 2)
	assert.Equal(t, domain.Message{Role: domain.RoleUser, Content: "I have a fever"}, m.history[0])
	assert.Equal(t, domain.Message{Role: domain.RoleAssistant, Content: "It may be the flu."}, m.history[1])
	assert.Empty(t, m.input.Value())

	m = submit(t, m, "and a cough")
	require.Len(t, port.history, 2)
	assert.Empty(t, port.history[0])
	assert.Len(t, port.history[1], 2)
	assert.Len(t, m.history, 4)
	assert.Contains(t, m.renderHistory(), "It may be the flu.")
}

func TestChat_ErrorKeepsHistory(t *testing.T) {
	port := &fakePort{err: domain.ErrStoreUnavailable}
	m := newTestModel(port)

	m = submit(t, m, "fever")
	assert.Empty(t, m.history)
	assert.Contains(t, m.status, domain.ErrStoreUnavailable.Error())
	assert.False(t, m.thinking)
}

func TestChat_TopKKeysAreClamped(t *testing.T) {
	port := &fakePort{}
	m := newTestModel(port)

	for i := 0; i < 20; i++ {
		m = key(m, tea.KeyCtrlUp)
	}
	assert.Equal(t, 10, m.topK)
	for i := 0; i < 20; i++ {
		m = key(m, tea.KeyCtrlDown)
	}
	assert.Equal(t, 1, m.topK)

	m = key(m, tea.KeyCtrlUp)
	submit(t, m, "rash")
	assert.Equal(t, []int{2}, port.topKs)
	assert.Contains(t, m.View(), "top-k=2")
}

func TestChat_ClearResetsConversation(t *testing.T) {
	m := newTestModel(&fakePort{reply: service.Reply{Text: "ok"}})
	m = submit(t, m, "fever")
	require.NotEmpty(t, m.history)

	m = key(m, tea.KeyCtrlL)
	assert.Empty(t, m.history)
	assert.Contains(t, m.renderHistory(), "No conversation yet.")
}

func TestChat_EnterIgnoredWhileThinkingOrBlank(t *testing.T) {
	m := newTestModel(&fakePort{})
	m.input.SetValue("   ")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, updated.(Model).thinking)

	m.thinking = true
	m.input.SetValue("fever")
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestChat_SpinnerStopsWhenIdle(t *testing.T) {
	m := newTestModel(&fakePort{})
	_, cmd := m.Update(spinner.TickMsg{})
	assert.Nil(t, cmd)
}

func TestChat_SourcesToggle(t *testing.T) {
	port := &fakePort{reply: service.Reply{
		Text:    "maybe eczema",
		Sources: []domain.SearchResult{{Document: domain.Document{ID: "Eczema", Text: "Eczema can present with symptoms such as rash, itching."}}},
	}}
	m := submit(t, newTestModel(port), "itching")
	assert.NotContains(t, m.renderHistory(), "Sources")

	m = key(m, tea.KeyCtrlS)
	out := m.renderHistory()
	assert.Contains(t, out, "Sources")
	assert.Contains(t, out, "Eczema")
}

func TestChat_Quit(t *testing.T) {
	m := newTestModel(&fakePort{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestHighlightBestSentence(t *testing.T) {
	text := "Flu can present with symptoms such as fever, cough, sore throat."
	out := highlightBestSentence(text, "my throat is sore")
	assert.Contains(t, out, "sore throat.")
	assert.Equal(t, text, highlightBestSentence(text, ""))
	assert.Equal(t, text, highlightBestSentence(text, "zzz"))
	assert.True(t, strings.HasPrefix(out, "Flu can present"))
}

func TestView_BeforeResize(t *testing.T) {
	m := New(context.Background(), &fakePort{}, Info{}, nil)
	assert.Equal(t, "Loading...", m.View())
	assert.Equal(t, 5, m.topK)
	assert.Len(t, m.session, 36)
}
