// Package testutil provides utilities for testing
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Playlist is a small upstream document with one rendition-rich item.
const Playlist = `{
  "feedid": "Xy12",
  "title": "Upstream playlist",
  "kind": "MANUAL",
  "playlist": [
    {
      "mediaid": "m1",
      "title": "First clip",
      "description": "<p>Opening <b>highlights</b></p>",
      "pubdate": 1700000000,
      "duration": 95,
      "image": "https://cdn.example.com/thumbs/m1-720.jpg",
      "link": "https://example.com/videos/m1",
      "tags": "sports,highlights",
      "sources": [
        {"type": "video/mp4", "file": "https://cdn.example.com/m1-640.mp4", "width": 640, "height": 360},
        {"type": "video/mp4", "file": "https://cdn.example.com/m1-1280.mp4", "width": 1280, "height": 720, "duration": 95},
        {"type": "video/webm", "file": "https://cdn.example.com/m1-1920.webm", "width": 1920, "height": 1080}
      ],
      "tracks": [{"kind": "captions", "file": "https://cdn.example.com/m1.vtt"}],
      "custom": {"sponsor": "ACME"}
    }
  ]
}`

// FeedTemplate renders the feed context as RSS 2.0.
const FeedTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>{{title}}</title>
    <link>{{link}}</link>
    <description>{{description}}</description>
    {{#playlist}}
    <item>
      <guid isPermaLink="false">{{mediaID}}</guid>
      <title>{{title}}</title>
      <link>{{link}}</link>
      <description>{{description}}</description>
      <pubDate>{{pubdate}}</pubDate>
      <enclosure url="{{source.url}}" type="{{source.type}}" length="0"/>
    </item>
    {{/playlist}}
  </channel>
</rss>
`

// TemplateDir creates a temporary template directory holding the given files.
func TemplateDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write template %s: %v", name, err)
		}
	}
	return dir
}
