// Package registry resolves feed identifiers to their configuration.
package registry

import (
	"errors"
	"fmt"

	"github.com/johnrirwin/feedformatter/internal/models"
	"github.com/johnrirwin/feedformatter/internal/render"
)

var (
	ErrDuplicateFeed = errors.New("duplicate feed id")
	ErrEmptyFeedID   = errors.New("empty feed id")
)

// Entry is a feed configuration with its preprocessor already resolved.
type Entry struct {
	Config       models.FeedConfig
	Preprocessor render.Preprocessor
}

// Registry is built once and only read afterwards, so it needs no locking.
type Registry struct {
	feeds    map[string]Entry
	defaults models.FeedDefaults
}

// New builds a registry. Unknown preprocessor names and duplicate ids are
// configuration errors.
func New(feeds []models.FeedConfig, defaults models.FeedDefaults) (*Registry, error) {
	r := &Registry{
		feeds:    make(map[string]Entry, len(feeds)),
		defaults: defaults,
	}

	for _, cfg := range feeds {
		if cfg.ID == "" {
			return nil, ErrEmptyFeedID
		}
		if _, exists := r.feeds[cfg.ID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateFeed, cfg.ID)
		}

		pre, err := render.LookupPreprocessor(cfg.Preprocessor)
		if err != nil {
			return nil, fmt.Errorf("feed %q: %w", cfg.ID, err)
		}

		r.feeds[cfg.ID] = Entry{Config: cfg, Preprocessor: pre}
	}

	return r, nil
}

// Lookup finds a feed by exact id.
func (r *Registry) Lookup(id string) (Entry, bool) {
	e, ok := r.feeds[id]
	return e, ok
}

func (r *Registry) Defaults() models.FeedDefaults {
	return r.defaults
}

func (r *Registry) Len() int {
	return len(r.feeds)
}
