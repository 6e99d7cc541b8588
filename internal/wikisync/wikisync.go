package wikisync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"wikirag/internal/domain"
)

// Config describes where the wiki lives and where to check it out.
type Config struct {
	Organization string
	Project      string
	// PAT is an Azure DevOps personal access token; empty means anonymous.
	PAT      string
	RepoPath string
	// URL overrides the clone URL derived from Organization and Project.
	URL string
}

// CloneURL returns the git URL of a project's wiki repository.
func CloneURL(organization, project string) string {
	return fmt.Sprintf("https://dev.azure.com/%s/%s/_git/%s.wiki",
		url.PathEscape(organization), url.PathEscape(project), url.PathEscape(project))
}

// Syncer clones the wiki on first use and pulls afterwards.
type Syncer struct {
	cfg Config
}

func New(cfg Config) *Syncer {
	return &Syncer{cfg: cfg}
}

// Sync brings RepoPath up to date with the remote wiki.
func (s *Syncer) Sync(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(s.cfg.RepoPath, ".git")); err == nil {
		return s.pull(ctx)
	}
	return s.clone(ctx)
}

func (s *Syncer) remoteURL() string {
	if s.cfg.URL != "" {
		return s.cfg.URL
	}
	return CloneURL(s.cfg.Organization, s.cfg.Project)
}

func (s *Syncer) auth() transport.AuthMethod {
	if s.cfg.PAT == "" {
		return nil
	}
	// Azure DevOps ignores the user name for PAT authentication.
	return &githttp.BasicAuth{Username: "pat", Password: s.cfg.PAT}
}

func (s *Syncer) clone(ctx context.Context) error {
	log.Printf("Cloning wiki into %s...", s.cfg.RepoPath)
	_, err := git.PlainCloneContext(ctx, s.cfg.RepoPath, false, &git.CloneOptions{
		URL:  s.remoteURL(),
		Auth: s.auth(),
	})
	if err != nil {
		// a failed clone leaves a partial checkout that would be pulled next time
		os.RemoveAll(s.cfg.RepoPath)
		return fmt.Errorf("%w: clone wiki: %w", domain.ErrIngestion, err)
	}
	return nil
}

func (s *Syncer) pull(ctx context.Context) error {
	log.Printf("Pulling latest wiki changes in %s...", s.cfg.RepoPath)
	repo, err := git.PlainOpen(s.cfg.RepoPath)
	if err != nil {
		return fmt.Errorf("%w: open wiki checkout: %w", domain.ErrIngestion, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("%w: wiki worktree: %w", domain.ErrIngestion, err)
	}
	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: git.DefaultRemoteName, Auth: s.auth()})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("%w: pull wiki: %w", domain.ErrIngestion, err)
	}
	return nil
}
