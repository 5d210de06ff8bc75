package weights

import (
	"context"
	"fmt"
	"os"

	"github.com/creditx-oss/creditx/internal/domain"
)

// FileSource loads a weights document from a YAML file on disk.
type FileSource struct {
	Path string
}

// Load reads the file. The path comes from operator configuration.
func (s FileSource) Load(ctx context.Context) ([]byte, string, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", s.Path, err)
	}
	return raw, "file:" + s.Path, nil
}

// RepositorySource loads the latest stored weights document.
type RepositorySource struct {
	Repo domain.Repository
}

// Load fetches the most recent document from the repository.
func (s RepositorySource) Load(ctx context.Context) ([]byte, string, error) {
	doc, err := s.Repo.LatestWeightsDocument(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load weights from repository: %w", err)
	}
	return doc.Document, "repository:" + doc.Version, nil
}

// BytesSource serves an in-memory document. Used by tests and by the
// admin API when a document is posted directly.
type BytesSource struct {
	Raw    []byte
	Origin string
}

// Load returns the raw bytes unchanged.
func (s BytesSource) Load(ctx context.Context) ([]byte, string, error) {
	origin := s.Origin
	if origin == "" {
		origin = "inline"
	}
	return s.Raw, origin, nil
}
