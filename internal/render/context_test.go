package render

import (
	"testing"
	"time"

	"github.com/johnrirwin/feedformatter/internal/models"
)

func uptr(v uint) *uint     { return &v }
func sptr(s string) *string { return &s }

func TestBestSource(t *testing.T) {
	tests := []struct {
		name      string
		sources   []models.Source
		wantFile  string
		wantFound bool
	}{
		{
			name: "widest mp4 wins over wider webm",
			sources: []models.Source{
				{Type: "video/mp4", File: "640.mp4", Width: uptr(640)},
				{Type: "video/mp4", File: "1280.mp4", Width: uptr(1280)},
				{Type: "video/webm", File: "1920.webm", Width: uptr(1920)},
			},
			wantFile:  "1280.mp4",
			wantFound: true,
		},
		{
			name: "missing width sorts as zero",
			sources: []models.Source{
				{Type: "video/mp4", File: "nowidth.mp4"},
				{Type: "video/mp4", File: "320.mp4", Width: uptr(320)},
			},
			wantFile:  "320.mp4",
			wantFound: true,
		},
		{
			name: "ties keep upstream order",
			sources: []models.Source{
				{Type: "video/mp4", File: "a.mp4", Width: uptr(720)},
				{Type: "video/mp4", File: "b.mp4", Width: uptr(720)},
			},
			wantFile:  "a.mp4",
			wantFound: true,
		},
		{
			name: "no mp4",
			sources: []models.Source{
				{Type: "application/vnd.apple.mpegurl", File: "x.m3u8"},
			},
			wantFound: false,
		},
		{
			name:      "empty",
			sources:   nil,
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := BestSource(tt.sources)
			if found != tt.wantFound {
				t.Fatalf("BestSource() found = %v, want %v", found, tt.wantFound)
			}
			if got.File != tt.wantFile {
				t.Errorf("BestSource() = %q, want %q", got.File, tt.wantFile)
			}
		})
	}
}

func TestFormatPubDate(t *testing.T) {
	ts := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	if got := FormatPubDate(ts); got != "2023-11-14T22:13:20+00:00" {
		t.Errorf("FormatPubDate() = %q, want %q", got, "2023-11-14T22:13:20+00:00")
	}

	est := time.FixedZone("EST", -5*3600)
	if got := FormatPubDate(ts.In(est)); got != "2023-11-14T22:13:20+00:00" {
		t.Errorf("FormatPubDate() = %q, want UTC rendering", got)
	}
}

func TestItemContext_EmptySourceBlock(t *testing.T) {
	item := models.Item{
		MediaID: "m1",
		Title:   "No renditions",
		PubDate: time.Unix(0, 0),
		Sources: []models.Source{{Type: "video/webm", File: "a.webm"}},
		Link:    "https://example.com/m1",
	}

	ctx := ItemContext(item, models.FeedDefaults{})

	source, ok := ctx["source"].(Context)
	if !ok {
		t.Fatalf("source = %T, want Context", ctx["source"])
	}
	want := Context{"url": "", "type": "", "label": "", "duration": 0, "width": 0, "height": 0}
	for k, v := range want {
		if source[k] != v {
			t.Errorf("source[%q] = %v, want %v", k, source[k], v)
		}
	}
	if ctx["description"] != "" {
		t.Errorf("description = %v, want empty string", ctx["description"])
	}
}

func TestItemContext_Thumbnail(t *testing.T) {
	defaults := models.FeedDefaults{DefaultImage: "https://example.com/default.jpg"}

	withThumb := ItemContext(models.Item{Thumbnail: sptr("https://cdn.example.com/a.jpg")}, defaults)
	if withThumb["thumbnail"] != "https://cdn.example.com/a.jpg" {
		t.Errorf("thumbnail = %v", withThumb["thumbnail"])
	}

	withoutThumb := ItemContext(models.Item{}, defaults)
	if withoutThumb["thumbnail"] != "https://example.com/default.jpg" {
		t.Errorf("thumbnail = %v, want default image", withoutThumb["thumbnail"])
	}
}

func TestBuildContext(t *testing.T) {
	feed := &models.Feed{
		ID:    "Xy12",
		Title: "Upstream title",
		Kind:  "MANUAL",
		Playlist: []models.Item{
			{
				MediaID:  "m1",
				Title:    "Clip",
				PubDate:  time.Unix(1700000000, 0),
				Duration: 61,
				Sources: []models.Source{
					{Type: "video/mp4", File: "https://cdn/m1.mp4", Width: uptr(1920), Height: uptr(1080), Duration: uptr(61)},
				},
				Tags:   []string{"a", "b"},
				Link:   "https://example.com/m1",
				Custom: map[string]string{"sponsor": "ACME"},
			},
		},
	}
	cfg := models.FeedConfig{ID: "news", Title: "News"}
	defaults := models.FeedDefaults{Link: "https://example.com"}

	ctx := BuildContext(feed, cfg, defaults, nil)

	if ctx["title"] != "News" {
		t.Errorf("title = %v, want News", ctx["title"])
	}
	if ctx["description"] != "" {
		t.Errorf("description = %v, want empty", ctx["description"])
	}
	if ctx["link"] != "https://example.com" {
		t.Errorf("link = %v, want defaults link", ctx["link"])
	}
	playlist, ok := ctx["playlist"].([]Context)
	if !ok || len(playlist) != 1 {
		t.Fatalf("playlist = %#v", ctx["playlist"])
	}
	item := playlist[0]
	if item["pubdate"] != "2023-11-14T22:13:20+00:00" {
		t.Errorf("pubdate = %v", item["pubdate"])
	}
	if item["duration"] != 61 || item["durationSeconds"] != 61 {
		t.Errorf("duration = %v, durationSeconds = %v, want 61", item["duration"], item["durationSeconds"])
	}
	if item["source"].(Context)["url"] != "https://cdn/m1.mp4" {
		t.Errorf("source.url = %v", item["source"].(Context)["url"])
	}
	if item["custom"].(Context)["sponsor"] != "ACME" {
		t.Errorf("custom.sponsor = %v", item["custom"].(Context)["sponsor"])
	}
}

func TestBuildContext_AppliesPreprocessorWithoutMutatingInput(t *testing.T) {
	feed := &models.Feed{Playlist: []models.Item{{MediaID: "m1", PubDate: time.Unix(0, 0)}}}

	var seen Context
	pre := func(ctx Context, item models.Item) Context {
		seen = ctx
		return With(ctx, "marker", item.MediaID)
	}

	ctx := BuildContext(feed, models.FeedConfig{}, models.FeedDefaults{}, pre)

	item := ctx["playlist"].([]Context)[0]
	if item["marker"] != "m1" {
		t.Errorf("marker = %v, want m1", item["marker"])
	}
	if _, ok := seen["marker"]; ok {
		t.Error("preprocessor input should not be modified")
	}
}
