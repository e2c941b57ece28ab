// Package render turns a parsed feed into template output. BuildContext
// projects the domain model into a value tree, preprocessors adjust the tree
// for specific consumers, and templates turn it into bytes.
package render

import (
	"maps"
	"time"

	"github.com/samber/lo"

	"github.com/johnrirwin/feedformatter/internal/models"
)

// Context is the value tree handed to templates. Values are strings, ints,
// nested Contexts or slices of them. Stages never modify a Context they
// received; they return an updated copy.
type Context = map[string]interface{}

// ProgressiveVideoType is the only media type eligible as an item's source.
const ProgressiveVideoType = "video/mp4"

// PubDateLayout renders publish dates as ISO-8601 with a numeric UTC offset.
const PubDateLayout = "2006-01-02T15:04:05-07:00"

// With returns a copy of ctx with key set to value.
func With(ctx Context, key string, value interface{}) Context {
	out := maps.Clone(ctx)
	if out == nil {
		out = Context{}
	}
	out[key] = value
	return out
}

// Merge returns a copy of ctx with every entry of updates applied.
func Merge(ctx Context, updates Context) Context {
	out := maps.Clone(ctx)
	if out == nil {
		out = Context{}
	}
	maps.Copy(out, updates)
	return out
}

// BestSource picks the widest progressive MP4 rendition. Sources without a
// width count as zero; ties keep upstream order.
func BestSource(sources []models.Source) (models.Source, bool) {
	candidates := lo.Filter(sources, func(s models.Source, _ int) bool {
		return s.Type == ProgressiveVideoType
	})
	if len(candidates) == 0 {
		return models.Source{}, false
	}
	return lo.MaxBy(candidates, func(a, b models.Source) bool {
		return a.WidthOrZero() > b.WidthOrZero()
	}), true
}

// FormatPubDate renders t in UTC using PubDateLayout.
func FormatPubDate(t time.Time) string {
	return t.UTC().Format(PubDateLayout)
}

func sourceContext(s models.Source) Context {
	return Context{
		"url":      s.File,
		"type":     s.Type,
		"label":    s.LabelOrEmpty(),
		"duration": int(s.DurationOrZero()),
		"width":    int(s.WidthOrZero()),
		"height":   int(s.HeightOrZero()),
	}
}

// ItemContext builds the per-item part of the tree.
func ItemContext(item models.Item, defaults models.FeedDefaults) Context {
	best, _ := BestSource(item.Sources)

	thumbnail := defaults.DefaultImage
	if item.Thumbnail != nil {
		thumbnail = *item.Thumbnail
	}

	tracks := lo.Map(item.Tracks, func(t models.Track, _ int) Context {
		return Context{"kind": t.Kind, "file": t.File}
	})

	custom := make(Context, len(item.Custom))
	for k, v := range item.Custom {
		custom[k] = v
	}

	// duration may be reformatted by a preprocessor; durationSeconds may not.
	return Context{
		"mediaID":         item.MediaID,
		"title":           item.Title,
		"description":     item.DescriptionOrEmpty(),
		"pubdate":         FormatPubDate(item.PubDate),
		"source":          sourceContext(best),
		"duration":        int(item.Duration),
		"durationSeconds": int(item.Duration),
		"thumbnail":       thumbnail,
		"link":            item.Link,
		"tags":            append([]string{}, item.Tags...),
		"tracks":          tracks,
		"custom":          custom,
	}
}

// BuildContext projects a feed and its configuration into a render context.
// When pre is non-nil it is applied to every item context.
func BuildContext(feed *models.Feed, cfg models.FeedConfig, defaults models.FeedDefaults, pre Preprocessor) Context {
	playlist := make([]Context, 0, len(feed.Playlist))
	for _, item := range feed.Playlist {
		ctx := ItemContext(item, defaults)
		if pre != nil {
			ctx = pre(ctx, item)
		}
		playlist = append(playlist, ctx)
	}

	return Context{
		"feedID":        cfg.ID,
		"id":            feed.ID,
		"kind":          feed.Kind,
		"title":         cfg.Title,
		"upstreamTitle": feed.Title,
		"description":   cfg.Description,
		"link":          cfg.LinkOr(defaults),
		"playlist":      playlist,
	}
}
