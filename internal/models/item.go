package models

import "time"

// Feed is one upstream media playlist after normalisation.
type Feed struct {
	ID       string `json:"feedid"`
	Title    string `json:"title"`
	Kind     string `json:"kind"`
	Playlist []Item `json:"playlist"`
}

// Item is a single playable entry of a Feed.
type Item struct {
	MediaID     string            `json:"mediaid"`
	Title       string            `json:"title"`
	Description *string           `json:"description,omitempty"`
	PubDate     time.Time         `json:"pubdate"`
	Sources     []Source          `json:"sources"`
	Duration    uint              `json:"duration"`
	Thumbnail   *string           `json:"image,omitempty"`
	Tracks      []Track           `json:"tracks"`
	Tags        []string          `json:"tags"`
	Link        string            `json:"link"`
	Custom      map[string]string `json:"custom"`
}

// DescriptionOrEmpty returns the description, or "" when upstream omitted it.
func (i Item) DescriptionOrEmpty() string {
	if i.Description == nil {
		return ""
	}
	return *i.Description
}

// Source is one encoded rendition of an Item. Width, Height and Duration
// are independently optional.
type Source struct {
	Label    *string `json:"label,omitempty"`
	Type     string  `json:"type"`
	File     string  `json:"file"`
	Width    *uint   `json:"width,omitempty"`
	Height   *uint   `json:"height,omitempty"`
	Duration *uint   `json:"duration,omitempty"`
}

// Track is a subtitle or caption file attached to an Item.
type Track struct {
	Kind string `json:"kind"`
	File string `json:"file"`
}

func uintOrZero(v *uint) uint {
	if v == nil {
		return 0
	}
	return *v
}

func (s Source) WidthOrZero() uint    { return uintOrZero(s.Width) }
func (s Source) HeightOrZero() uint   { return uintOrZero(s.Height) }
func (s Source) DurationOrZero() uint { return uintOrZero(s.Duration) }

func (s Source) LabelOrEmpty() string {
	if s.Label == nil {
		return ""
	}
	return *s.Label
}
