package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikirag/internal/domain"
)

type fakePort struct {
	results []domain.SearchResult
	answer  *domain.AnswerResult
	err     error
	gotK    int
}

func (f *fakePort) Search(_ context.Context, _ string, k int) ([]domain.SearchResult, error) {
	f.gotK = k
	return f.results, f.err
}

func (f *fakePort) Ask(context.Context, string) (*domain.AnswerResult, error) {
	return f.answer, f.err
}

func (f *fakePort) Resolve(sourcePath string) domain.Source {
	return domain.Source{DisplayName: sourcePath, URL: "https://wiki/" + sourcePath}
}

func (f *fakePort) DefaultK() int { return 5 }

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func sized(t *testing.T, port RAGPort) Model {
	m, _ := update(t, New(port, "3 pages indexed"), tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

func TestChatRoundTrip(t *testing.T) {
	port := &fakePort{answer: &domain.AnswerResult{
		Answer:  "Install the client.",
		Sources: []domain.Source{{DisplayName: "Setup/VPN", URL: "https://wiki/vpn"}},
	}}
	m := sized(t, port)
	m.input.SetValue("How do I set up VPN?")

	m, cmd := update(t, m, key("enter"))
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	assert.Empty(t, m.input.Value())

	m, _ = update(t, m, cmd())
	assert.False(t, m.busy)
	require.Len(t, m.history, 1)
	chat := m.renderChat()
	assert.Contains(t, chat, "How do I set up VPN?")
	assert.Contains(t, chat, "Install the client.")
	assert.Contains(t, chat, "📄 Setup/VPN (https://wiki/vpn)")
	assert.Contains(t, m.View(), "3 pages indexed")
}

func TestChatError(t *testing.T) {
	m := sized(t, &fakePort{err: errors.New("index missing")})
	m.input.SetValue("anything")
	m, cmd := update(t, m, key("enter"))
	m, _ = update(t, m, cmd())
	assert.Contains(t, m.status, "index missing")
	assert.Contains(t, m.renderChat(), "Error: index missing")
}

func TestSearchTab(t *testing.T) {
	port := &fakePort{results: []domain.SearchResult{
		{Content: "Install the VPN. Then reboot.", SourcePath: "wiki_repo/VPN.md", Score: 0.75},
		{Content: "Payroll dates.", SourcePath: "wiki_repo/Payroll.md", Score: 0.25},
	}}
	m := sized(t, port)
	m, _ = update(t, m, key("tab"))
	assert.Equal(t, searchTab, m.tab)

	m, _ = update(t, m, key("+"))
	m, _ = update(t, m, key("+"))
	assert.Equal(t, 7, m.k)

	m.input.SetValue("vpn")
	m, cmd := update(t, m, key("enter"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Equal(t, 7, port.gotK)
	require.Len(t, m.results, 2)

	view := m.renderCurrentResult()
	assert.Contains(t, view, "Result 1/2 | Score: 0.750 | wiki_repo/VPN.md")

	m, _ = update(t, m, key("down"))
	assert.Equal(t, 1, m.cursor)
	assert.Contains(t, m.renderCurrentResult(), "Result 2/2")
}

func TestKClamped(t *testing.T) {
	m := sized(t, &fakePort{})
	m, _ = update(t, m, key("tab"))
	for range 20 {
		m, _ = update(t, m, key("+"))
	}
	assert.Equal(t, maxK, m.k)
	for range 20 {
		m, _ = update(t, m, key("-"))
	}
	assert.Equal(t, minK, m.k)
}

func TestPlusTypesInChat(t *testing.T) {
	m := sized(t, &fakePort{})
	m, _ = update(t, m, key("+"))
	assert.Equal(t, 5, m.k)
	assert.Equal(t, "+", m.input.Value())
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("Payroll runs monthly. The VPN client needs a badge.", "vpn badge")
	assert.True(t, strings.HasPrefix(out, "Payroll runs monthly."))
	assert.Contains(t, out, "The VPN client needs a badge.")
}
