package mcpserver

import (
	"context"
	"fmt"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"wikirag/internal/domain"
)

const serverName = "wikirag"

// Service is the query surface exposed as MCP tools.
type Service interface {
	Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
	Ask(ctx context.Context, query string) (*domain.AnswerResult, error)
	Resolve(sourcePath string) domain.Source
	DefaultK() int
}

type SearchWikiInput struct {
	Query string `json:"query" jsonschema:"Natural language search query"`
	K     int    `json:"k,omitempty" jsonschema:"Number of chunks to return (optional, 1-20)"`
}

type SearchWikiResult struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Page    string  `json:"page"`
	URL     string  `json:"url"`
	Score   float64 `json:"score"`
}

type SearchWikiOutput struct {
	Query   string             `json:"query"`
	Results []SearchWikiResult `json:"results"`
}

type AskWikiInput struct {
	Question string `json:"question" jsonschema:"Question to answer from the company wiki"`
}

type WikiSource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type AskWikiOutput struct {
	Answer  string       `json:"answer"`
	Sources []WikiSource `json:"sources"`
}

// Tools binds the MCP tool handlers to a service.
type Tools struct {
	svc Service
}

func NewTools(svc Service) *Tools {
	return &Tools{svc: svc}
}

// SearchWiki returns the raw chunks closest to the query.
func (t *Tools) SearchWiki(ctx context.Context, req *mcp.CallToolRequest, input SearchWikiInput) (*mcp.CallToolResult, SearchWikiOutput, error) {
	k := input.K
	if k <= 0 || k > 20 {
		k = t.svc.DefaultK()
	}
	results, err := t.svc.Search(ctx, input.Query, k)
	if err != nil {
		return nil, SearchWikiOutput{}, fmt.Errorf("search failed: %w", err)
	}
	out := SearchWikiOutput{Query: input.Query, Results: make([]SearchWikiResult, 0, len(results))}
	for _, r := range results {
		src := t.svc.Resolve(r.SourcePath)
		out.Results = append(out.Results, SearchWikiResult{
			Content: r.Content,
			Source:  r.SourcePath,
			Page:    src.DisplayName,
			URL:     src.URL,
			Score:   r.Score,
		})
	}
	return nil, out, nil
}

// AskWiki answers a question and cites up to three wiki pages.
func (t *Tools) AskWiki(ctx context.Context, req *mcp.CallToolRequest, input AskWikiInput) (*mcp.CallToolResult, AskWikiOutput, error) {
	res, err := t.svc.Ask(ctx, input.Question)
	if err != nil {
		return nil, AskWikiOutput{}, fmt.Errorf("ask failed: %w", err)
	}
	out := AskWikiOutput{Answer: res.Answer, Sources: make([]WikiSource, 0, len(res.Sources))}
	for _, s := range res.Sources {
		out.Sources = append(out.Sources, WikiSource{Name: s.DisplayName, URL: s.URL})
	}
	return nil, out, nil
}

// NewServer creates an MCP server with the wiki tools registered.
func NewServer(svc Service, version string) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version,
		},
		nil,
	)
	tools := NewTools(svc)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "search_wiki",
			Description: "Search the company wiki and return the most relevant text chunks with their page links.",
		},
		tools.SearchWiki,
	)
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "ask_wiki",
			Description: "Answer a question using only the company wiki. Returns the answer and up to three source pages.",
		},
		tools.AskWiki,
	)

	log.Printf("Server initialized: %s v%s", serverName, version)
	return server
}

// Run serves the tools over stdio until the client disconnects or ctx ends.
func Run(ctx context.Context, svc Service, version string) error {
	server := NewServer(svc, version)
	log.Printf("✓ Server ready and waiting for connections")
	return server.Run(ctx, &mcp.StdioTransport{})
}
