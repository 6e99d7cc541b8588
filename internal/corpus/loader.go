package corpus

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"wikirag/internal/domain"
)

// AttachmentsDir holds images and binaries uploaded to an Azure DevOps wiki.
const AttachmentsDir = ".attachments"

// Load reads every .md file under root in lexical order. Files below an
// .attachments directory and the .git directory are skipped.
// Source paths are root-joined and slash-separated.
func Load(root string) ([]domain.Document, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIngestion, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrIngestion, root)
	}

	var docs []domain.Document
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == AttachmentsDir || d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if excluded(rel) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		docs = append(docs, domain.Document{
			Text:       string(data),
			SourcePath: filepath.ToSlash(filepath.Join(root, rel)),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk %s: %w", domain.ErrIngestion, root, err)
	}
	return docs, nil
}

func excluded(rel string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if seg == AttachmentsDir {
			return true
		}
	}
	return false
}
