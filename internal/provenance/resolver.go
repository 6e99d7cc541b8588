package provenance

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"wikirag/internal/domain"
)

const (
	DefaultHost     = "dev.azure.com"
	DefaultRepoRoot = "wiki_repo"
)

// Resolver maps chunk source paths back to Azure DevOps wiki pages.
type Resolver struct {
	Host         string
	Organization string
	Project      string
	// RepoRoot is the checkout directory prefix stripped from source paths.
	RepoRoot string
}

func NewResolver(organization, project, repoRoot string) *Resolver {
	if repoRoot == "" {
		repoRoot = DefaultRepoRoot
	}
	return &Resolver{Host: DefaultHost, Organization: organization, Project: project, RepoRoot: repoRoot}
}

// PageName returns the wiki-relative page path without the .md suffix,
// e.g. "wiki_repo/Team-Guide/Onboarding.md" -> "Team-Guide/Onboarding".
func (r *Resolver) PageName(sourcePath string) string {
	p := path.Clean(toSlash(sourcePath))
	root := strings.Trim(path.Clean(toSlash(r.RepoRoot)), "/")
	if root != "" && root != "." {
		trimmed := strings.TrimPrefix(p, "/")
		switch {
		case trimmed == root:
			p = ""
		case strings.HasPrefix(trimmed, root+"/"):
			p = trimmed[len(root)+1:]
		}
	}
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimPrefix(p, "/")
	if ext := path.Ext(p); strings.EqualFold(ext, ".md") {
		p = strings.TrimSuffix(p, ext)
	}
	return p
}

// Resolve returns the display name and page URL for a source path.
func (r *Resolver) Resolve(sourcePath string) domain.Source {
	name := r.PageName(sourcePath)
	return domain.Source{
		DisplayName: strings.ReplaceAll(name, "-", " "),
		URL:         r.PageURL(name),
	}
}

// PageURL builds the wiki URL for a page name. The page path is
// percent-encoded as a single query value, so "/" becomes %2F.
func (r *Resolver) PageURL(pageName string) string {
	host := r.Host
	if host == "" {
		host = DefaultHost
	}
	pagePath := strings.ReplaceAll(url.QueryEscape("/"+pageName), "+", "%20")
	return fmt.Sprintf("https://%s/%s/%s/_wiki/wikis/%s.wiki?pagePath=%s",
		host,
		url.PathEscape(r.Organization),
		url.PathEscape(r.Project),
		url.PathEscape(r.Project),
		pagePath,
	)
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
