package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Provider identifies the upstream platform a feed is pulled from.
type Provider string

const (
	ProviderJW Provider = "jw"
)

var providerURLPatterns = map[Provider]string{
	ProviderJW: "https://content.jwplatform.com/feeds/%s.json",
}

var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrEmptyProviderID = errors.New("empty provider id")
)

// Valid reports whether the provider has a known URL pattern.
func (p Provider) Valid() bool {
	_, ok := providerURLPatterns[p]
	return ok
}

// FeedConfig is the immutable per-feed configuration.
type FeedConfig struct {
	ID           string   `yaml:"id"`
	Title        string   `yaml:"title"`
	Description  string   `yaml:"description"`
	Link         string   `yaml:"link"`
	Provider     Provider `yaml:"provider"`
	ProviderID   string   `yaml:"provider_id"`
	Template     string   `yaml:"template"`
	Preprocessor string   `yaml:"preprocessor"`
}

// ProviderURL builds the upstream URL for the feed.
func (c FeedConfig) ProviderURL() (string, error) {
	pattern, ok := providerURLPatterns[c.Provider]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider)
	}
	id := strings.TrimSpace(c.ProviderID)
	if id == "" {
		return "", ErrEmptyProviderID
	}

	raw := fmt.Sprintf(pattern, url.PathEscape(id))
	if _, err := url.Parse(raw); err != nil {
		return "", fmt.Errorf("invalid provider url %q: %w", raw, err)
	}
	return raw, nil
}

// TemplateName resolves the template for the feed, falling back to the defaults.
func (c FeedConfig) TemplateName(defaults FeedDefaults) string {
	if c.Template != "" {
		return c.Template
	}
	if defaults.Template != "" {
		return defaults.Template
	}
	return DefaultTemplateName
}

// LinkOr returns the configured link or the defaults' link.
func (c FeedConfig) LinkOr(defaults FeedDefaults) string {
	if c.Link != "" {
		return c.Link
	}
	return defaults.Link
}

const DefaultTemplateName = "default"

// FeedDefaults carries values used when a FeedConfig omits them.
type FeedDefaults struct {
	Link         string `yaml:"link"`
	Template     string `yaml:"template"`
	DefaultImage string `yaml:"default_image"`
}
