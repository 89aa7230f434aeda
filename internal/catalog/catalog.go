// Package catalog provides the read-only list of islands the service ranks.
package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/kjstillabower/island-getaway-service/internal/models"
)

// ErrLoad is returned when the catalog cannot be read or parsed.
var ErrLoad = errors.New("catalog load failed")

//go:embed islands.json
var embeddedIslands []byte

// Source supplies the island catalog.
type Source interface {
	Islands(ctx context.Context) ([]models.Island, error)
}

// FileSource reads islands from a JSON file on every call so edits take effect without a restart.
type FileSource struct {
	Path string
}

// NewFileSource returns a Source backed by the JSON file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Islands reads and parses the catalog file.
func (s *FileSource) Islands(ctx context.Context) ([]models.Island, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrLoad, s.Path, err)
	}
	return parse(data)
}

type embeddedSource struct {
	once    sync.Once
	islands []models.Island
	err     error
}

// Embedded returns the built-in Caribbean catalog. The data is parsed once.
func Embedded() Source {
	return &embeddedSource{}
}

func (s *embeddedSource) Islands(ctx context.Context) ([]models.Island, error) {
	s.once.Do(func() {
		s.islands, s.err = parse(embeddedIslands)
	})
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.Island, len(s.islands))
	copy(out, s.islands)
	return out, nil
}

// StaticSource serves a fixed list. Used by tests and tooling.
type StaticSource []models.Island

func (s StaticSource) Islands(context.Context) ([]models.Island, error) {
	out := make([]models.Island, len(s))
	copy(out, s)
	return out, nil
}

// Find returns the island with the given id.
func Find(islands []models.Island, id string) (models.Island, bool) {
	for _, is := range islands {
		if is.ID == id {
			return is, true
		}
	}
	return models.Island{}, false
}

func parse(data []byte) ([]models.Island, error) {
	var islands []models.Island
	if err := json.Unmarshal(data, &islands); err != nil {
		return nil, fmt.Errorf("%w: parse: %v", ErrLoad, err)
	}
	for i, is := range islands {
		if is.ID == "" {
			return nil, fmt.Errorf("%w: island at index %d has no id", ErrLoad, i)
		}
	}
	return islands, nil
}
