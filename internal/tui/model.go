package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"wikirag/internal/domain"
)

// RAGPort is the TUI-facing subset of the RAG service.
type RAGPort interface {
	Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
	Ask(ctx context.Context, query string) (*domain.AnswerResult, error)
	Resolve(sourcePath string) domain.Source
	DefaultK() int
}

type tab int

const (
	chatTab tab = iota
	searchTab
)

const (
	minK = 1
	maxK = 10
)

type chatEntry struct {
	question string
	answer   string
	sources  []domain.Source
	err      error
}

type answerMsg struct {
	question string
	result   *domain.AnswerResult
	err      error
}

type searchMsg struct {
	query   string
	results []domain.SearchResult
	err     error
}

// Model is the Bubble Tea model with a chat tab and a search debug tab.
type Model struct {
	service  RAGPort
	input    textinput.Model
	viewport viewport.Model
	tab      tab
	summary  string
	status   string
	ready    bool
	busy     bool

	history []chatEntry

	results   []domain.SearchResult
	cursor    int
	k         int
	lastQuery string
}

// New creates a new TUI model. summary is shown under the title.
func New(service RAGPort, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about the wiki and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	k := service.DefaultK()
	if k < minK || k > maxK {
		k = 5
	}
	return Model{
		service:  service,
		input:    ti,
		viewport: viewport.New(0, 0),
		summary:  summary,
		status:   "Ready. Tab switches between chat and search.",
		k:        k,
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and query result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 3 + 1 + qh + 1 // title+summary+tabs, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.refresh()
		return m, nil

	case answerMsg:
		m.busy = false
		entry := chatEntry{question: msg.question, err: msg.err}
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			entry.answer = msg.result.Answer
			entry.sources = msg.result.Sources
			m.status = fmt.Sprintf("Answered with %d sources", len(entry.sources))
		}
		m.history = append(m.history, entry)
		m.refresh()
		m.viewport.GotoBottom()
		return m, nil

	case searchMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.results = nil
		} else {
			m.status = fmt.Sprintf("%d results for %q (k=%d)", len(msg.results), msg.query, m.k)
			m.results = msg.results
			m.cursor = 0
			m.lastQuery = msg.query
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "tab":
			if m.tab == chatTab {
				m.tab = searchTab
				m.input.Placeholder = "Type a search query and press Enter"
			} else {
				m.tab = chatTab
				m.input.Placeholder = "Ask a question about the wiki and press Enter"
			}
			m.refresh()
			return m, nil
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.input.SetValue("")
			if m.tab == chatTab {
				m.status = "Searching wiki..."
				return m, m.askCmd(q)
			}
			m.status = "Searching..."
			return m, m.searchCmd(q, m.k)
		case "+", "-":
			if m.tab == searchTab && m.input.Value() == "" {
				if msg.String() == "+" {
					m.k = min(maxK, m.k+1)
				} else {
					m.k = max(minK, m.k-1)
				}
				m.status = fmt.Sprintf("k=%d", m.k)
				return m, nil
			}
		case "down":
			if m.tab == searchTab && len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.refresh()
				return m, nil
			}
		case "up":
			if m.tab == searchTab && len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.refresh()
				return m, nil
			}
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

func (m Model) askCmd(q string) tea.Cmd {
	svc := m.service
	return func() tea.Msg {
		res, err := svc.Ask(context.Background(), q)
		return answerMsg{question: q, result: res, err: err}
	}
}

func (m Model) searchCmd(q string, k int) tea.Cmd {
	svc := m.service
	return func() tea.Msg {
		res, err := svc.Search(context.Background(), q, k)
		return searchMsg{query: q, results: res, err: err}
	}
}

func (m *Model) refresh() {
	if m.tab == chatTab {
		m.viewport.SetContent(m.renderChat())
	} else {
		m.viewport.SetContent(m.renderCurrentResult())
	}
}

// View renders the TUI layout for the active tab.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Wiki Assistant")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	tabs := m.renderTabs()
	results := resultBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + summary + "\n" + tabs + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderTabs() string {
	chat, search := inactiveTabStyle, inactiveTabStyle
	if m.tab == chatTab {
		chat = activeTabStyle
	} else {
		search = activeTabStyle
	}
	help := helpStyle.Render("tab: switch  enter: send  ctrl+c: quit")
	if m.tab == searchTab {
		help = helpStyle.Render(fmt.Sprintf("k=%d  +/-: adjust k  up/down: browse", m.k))
	}
	return chat.Render("Chat") + " " + search.Render("Search Debug") + "  " + help
}

func (m Model) renderChat() string {
	if len(m.history) == 0 {
		return "Ask me anything about the wiki."
	}
	var b strings.Builder
	for i, e := range m.history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(userStyle.Render("You: "))
		b.WriteString(e.question)
		b.WriteString("\n")
		if e.err != nil {
			b.WriteString(errorStyle.Render("Error: " + e.err.Error()))
			continue
		}
		b.WriteString(e.answer)
		if line := formatSources(e.sources); line != "" {
			b.WriteString("\n\n")
			b.WriteString(sourceStyle.Render(line))
		}
	}
	return b.String()
}

// formatSources renders "📄 name (url) | 📄 ...".
func formatSources(sources []domain.Source) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = fmt.Sprintf("📄 %s (%s)", s.DisplayName, s.URL)
	}
	return strings.Join(parts, " | ")
}

func (m Model) renderCurrentResult() string {
	if len(m.results) == 0 {
		return "No results yet."
	}
	r := m.results[m.cursor]
	src := m.service.Resolve(r.SourcePath)
	title := fmt.Sprintf("Result %d/%d | Score: %.3f | %s", m.cursor+1, len(m.results), r.Score, r.SourcePath)
	link := sourceStyle.Render(src.URL)
	body := highlightBestSentence(r.Content, m.lastQuery)
	return title + "\n" + link + "\n\n" + body
}

var (
	resultBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	activeTabStyle   = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("12"))
	inactiveTabStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	userStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	sourceStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	unicodeWordRe    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe       = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
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
