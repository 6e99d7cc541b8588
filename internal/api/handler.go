package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"wikirag/internal/domain"
	"wikirag/internal/indexer"
	"wikirag/internal/keyword"
	"wikirag/internal/service"
	"wikirag/internal/vectorstore"
)

// Service is the part of service.RAGService the HTTP API uses.
type Service interface {
	Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
	Ask(ctx context.Context, query string) (*domain.AnswerResult, error)
	KeywordSearch(ctx context.Context, query string, k int) ([]keyword.Hit, error)
	Manifest(ctx context.Context) (*vectorstore.Manifest, error)
	Reload(ctx context.Context) error
	Resolve(sourcePath string) domain.Source
	Metrics() service.MetricsSnapshot
	DefaultK() int
}

const maxK = 50

type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

type SourceResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type AskResponse struct {
	RequestID string           `json:"request_id"`
	Answer    string           `json:"answer"`
	Sources   []SourceResponse `json:"sources"`
}

type SearchResult struct {
	Content  string  `json:"content"`
	Source   string  `json:"source"`
	Page     string  `json:"page"`
	URL      string  `json:"url"`
	Score    float64 `json:"score"`
	Distance float64 `json:"distance,omitempty"`
}

type SearchResponse struct {
	RequestID string         `json:"request_id"`
	Query     string         `json:"query"`
	Mode      string         `json:"mode"`
	K         int            `json:"k"`
	Results   []SearchResult `json:"results"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Index     string    `json:"index"`
	Chunks    int       `json:"chunks,omitempty"`
	Embedder  string    `json:"embedder,omitempty"`
}

type Handler struct {
	svc     Service
	version string
}

func NewHandler(svc Service, version string) *Handler {
	return &Handler{svc: svc, version: version}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/healthz", h.Health)

	v1 := r.Group("/api/v1")
	v1.POST("/ask", h.Ask)
	v1.GET("/search", h.Search)
	v1.GET("/metrics", h.Metrics)
	v1.POST("/index/reload", h.Reload)
}

// Health reports the service as healthy even when no index is loadable yet;
// the index field says why queries would fail.
func (h *Handler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Service:   "wikirag",
		Version:   h.version,
		Index:     "ready",
	}
	m, err := h.svc.Manifest(c.Request.Context())
	switch {
	case errors.Is(err, vectorstore.ErrNotFound):
		resp.Index = "missing"
	case errors.Is(err, indexer.ErrLocked):
		resp.Index = "rebuilding"
	case err != nil:
		resp.Index = "error"
	case m != nil:
		resp.Chunks = m.Chunks
		resp.Embedder = m.Embedder
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	res, err := h.svc.Ask(c.Request.Context(), req.Question)
	if err != nil {
		writeError(c, err)
		return
	}
	sources := make([]SourceResponse, len(res.Sources))
	for i, s := range res.Sources {
		sources[i] = SourceResponse{Name: s.DisplayName, URL: s.URL}
	}
	c.JSON(http.StatusOK, AskResponse{
		RequestID: c.GetString("request_id"),
		Answer:    res.Answer,
		Sources:   sources,
	})
}

// Search serves GET /api/v1/search?q=...&k=5[&mode=keyword].
func (h *Handler) Search(c *gin.Context) {
	query := c.Query("q")
	k := h.svc.DefaultK()
	if raw := c.Query("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxK {
			c.JSON(http.StatusBadRequest, gin.H{"error": "k must be an integer between 1 and " + strconv.Itoa(maxK)})
			return
		}
		k = n
	}
	mode := c.DefaultQuery("mode", "vector")

	var results []SearchResult
	switch mode {
	case "vector":
		hits, err := h.svc.Search(c.Request.Context(), query, k)
		if err != nil {
			writeError(c, err)
			return
		}
		results = make([]SearchResult, len(hits))
		for i, r := range hits {
			src := h.svc.Resolve(r.SourcePath)
			results[i] = SearchResult{
				Content:  r.Content,
				Source:   r.SourcePath,
				Page:     src.DisplayName,
				URL:      src.URL,
				Score:    r.Score,
				Distance: r.Distance,
			}
		}
	case "keyword":
		hits, err := h.svc.KeywordSearch(c.Request.Context(), query, k)
		if err != nil {
			writeError(c, err)
			return
		}
		results = make([]SearchResult, len(hits))
		for i, r := range hits {
			src := h.svc.Resolve(r.SourcePath)
			results[i] = SearchResult{
				Content: r.Content,
				Source:  r.SourcePath,
				Page:    src.DisplayName,
				URL:     src.URL,
				Score:   r.Score,
			}
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be vector or keyword"})
		return
	}

	c.JSON(http.StatusOK, SearchResponse{
		RequestID: c.GetString("request_id"),
		Query:     query,
		Mode:      mode,
		K:         k,
		Results:   results,
	})
}

func (h *Handler) Metrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Metrics())
}

func (h *Handler) Reload(c *gin.Context) {
	if err := h.svc.Reload(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrEmptyQuery):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrKeywordDisabled):
		status = http.StatusNotFound
	case errors.Is(err, vectorstore.ErrNotFound),
		errors.Is(err, vectorstore.ErrModelMismatch),
		errors.Is(err, indexer.ErrLocked):
		status = http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrEmbedding), errors.Is(err, domain.ErrGeneration):
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, gin.H{"error": err.Error(), "request_id": c.GetString("request_id")})
}
