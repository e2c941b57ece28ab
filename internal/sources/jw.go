package sources

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/johnrirwin/feedformatter/internal/models"
)

var (
	// ErrInvalidEncoding means the payload bytes could not be decoded as text.
	ErrInvalidEncoding = errors.New("payload is not valid UTF-8")
	// ErrMalformedPayload means the payload is text but not the expected JSON shape.
	ErrMalformedPayload = errors.New("malformed upstream payload")
)

// ParseError locates a mapping failure inside the upstream document.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

func malformed(path, format string, args ...interface{}) error {
	return &ParseError{Path: path, Err: fmt.Errorf("%w: %s", ErrMalformedPayload, fmt.Sprintf(format, args...))}
}

// sizedImage matches a thumbnail file name carrying a width suffix, e.g. poster-320.jpg.
var sizedImage = regexp.MustCompile(`-\d+(\.[A-Za-z0-9]+)$`)

type object map[string]json.RawMessage

// ParseFeed maps a JW-style playlist document into a Feed.
func ParseFeed(data []byte) (*models.Feed, error) {
	if !utf8.Valid(data) {
		return nil, &ParseError{Err: ErrInvalidEncoding}
	}

	root, err := decodeObject(data, "$")
	if err != nil {
		return nil, err
	}

	feed := &models.Feed{}
	if feed.ID, err = requiredString(root, "feedid", "$"); err != nil {
		return nil, err
	}
	if feed.Title, err = requiredString(root, "title", "$"); err != nil {
		return nil, err
	}
	if feed.Kind, err = requiredString(root, "kind", "$"); err != nil {
		return nil, err
	}

	rawItems, err := requiredArray(root, "playlist", "$")
	if err != nil {
		return nil, err
	}

	feed.Playlist = make([]models.Item, 0, len(rawItems))
	for i, raw := range rawItems {
		item, err := parseItem(raw, fmt.Sprintf("$.playlist[%d]", i))
		if err != nil {
			return nil, err
		}
		feed.Playlist = append(feed.Playlist, item)
	}

	return feed, nil
}

func parseItem(raw json.RawMessage, path string) (models.Item, error) {
	var item models.Item

	obj, err := decodeObject(raw, path)
	if err != nil {
		return item, err
	}

	if item.MediaID, err = requiredString(obj, "mediaid", path); err != nil {
		return item, err
	}
	if item.Title, err = requiredString(obj, "title", path); err != nil {
		return item, err
	}
	item.Description = optionalString(obj, "description")

	pubdate, err := requiredUint(obj, "pubdate", path)
	if err != nil {
		return item, err
	}
	item.PubDate = time.Unix(int64(pubdate), 0).UTC()

	if item.Duration, err = requiredUint(obj, "duration", path); err != nil {
		return item, err
	}

	rawSources, err := requiredArray(obj, "sources", path)
	if err != nil {
		return item, err
	}
	item.Sources = make([]models.Source, 0, len(rawSources))
	for i, rs := range rawSources {
		source, err := parseSource(rs, fmt.Sprintf("%s.sources[%d]", path, i))
		if err != nil {
			return item, err
		}
		item.Sources = append(item.Sources, source)
	}

	item.Tracks = []models.Track{}
	if present(obj, "tracks") {
		rawTracks, err := requiredArray(obj, "tracks", path)
		if err != nil {
			return item, err
		}
		for i, rt := range rawTracks {
			track, err := parseTrack(rt, fmt.Sprintf("%s.tracks[%d]", path, i))
			if err != nil {
				return item, err
			}
			item.Tracks = append(item.Tracks, track)
		}
	}

	link, err := requiredString(obj, "link", path)
	if err != nil {
		return item, err
	}
	if item.Link, err = normalizeURL(link); err != nil {
		return item, malformed(path+".link", "%v", err)
	}

	if image := optionalString(obj, "image"); image != nil {
		if u, err := normalizeURL(*image); err == nil && u != "" {
			thumb := LargestThumbnail(u)
			item.Thumbnail = &thumb
		}
	}

	item.Tags = []string{}
	if tags := optionalString(obj, "tags"); tags != nil {
		item.Tags = SplitTags(*tags)
	}

	item.Custom = flattenCustom(obj["custom"])

	return item, nil
}

func parseSource(raw json.RawMessage, path string) (models.Source, error) {
	var source models.Source

	obj, err := decodeObject(raw, path)
	if err != nil {
		return source, err
	}

	if source.Type, err = requiredString(obj, "type", path); err != nil {
		return source, err
	}
	file, err := requiredString(obj, "file", path)
	if err != nil {
		return source, err
	}
	if source.File, err = normalizeURL(file); err != nil {
		return source, malformed(path+".file", "%v", err)
	}

	source.Label = optionalString(obj, "label")
	source.Width = optionalUint(obj, "width")
	source.Height = optionalUint(obj, "height")
	source.Duration = optionalUint(obj, "duration")

	return source, nil
}

func parseTrack(raw json.RawMessage, path string) (models.Track, error) {
	var track models.Track

	obj, err := decodeObject(raw, path)
	if err != nil {
		return track, err
	}
	if track.Kind, err = requiredString(obj, "kind", path); err != nil {
		return track, err
	}
	file, err := requiredString(obj, "file", path)
	if err != nil {
		return track, err
	}
	if track.File, err = normalizeURL(file); err != nil {
		return track, malformed(path+".file", "%v", err)
	}
	return track, nil
}

// SplitTags turns the upstream comma-separated tag string into a list,
// dropping empty entries.
func SplitTags(s string) []string {
	return lo.Compact(strings.Split(s, ","))
}

// LargestThumbnail rewrites a sized thumbnail URL (".../abc-480.jpg") to the
// unsized variant (".../abc.jpg"). Only the size suffix of the last path
// segment changes; escapes, query and fragment are kept as written. Other
// URLs are returned unchanged.
func LargestThumbnail(raw string) string {
	path, rest := raw, ""
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		path, rest = raw[:i], raw[i:]
	}
	if !sizedImage.MatchString(path) {
		return raw
	}
	return sizedImage.ReplaceAllString(path, "$1") + rest
}

// normalizeURL upgrades scheme-relative URLs to https and checks they parse.
func normalizeURL(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "//") {
		s = "https:" + s
	}
	if _, err := url.Parse(s); err != nil {
		return "", err
	}
	return s, nil
}

func decodeObject(raw []byte, path string) (object, error) {
	var obj object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, malformed(path, "expected object: %v", err)
	}
	if obj == nil {
		return nil, malformed(path, "expected object, got null")
	}
	return obj, nil
}

// present reports whether key exists with a non-null value.
func present(obj object, key string) bool {
	raw, ok := obj[key]
	return ok && !isNull(raw)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func requiredString(obj object, key, path string) (string, error) {
	if !present(obj, key) {
		return "", malformed(path+"."+key, "missing required field")
	}
	var s string
	if err := json.Unmarshal(obj[key], &s); err != nil {
		return "", malformed(path+"."+key, "expected string")
	}
	return s, nil
}

func optionalString(obj object, key string) *string {
	if !present(obj, key) {
		return nil
	}
	var s string
	if err := json.Unmarshal(obj[key], &s); err != nil {
		return nil
	}
	return &s
}

func requiredArray(obj object, key, path string) ([]json.RawMessage, error) {
	if !present(obj, key) {
		return nil, malformed(path+"."+key, "missing required field")
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(obj[key], &arr); err != nil {
		return nil, malformed(path+"."+key, "expected array")
	}
	return arr, nil
}

func requiredUint(obj object, key, path string) (uint, error) {
	if !present(obj, key) {
		return 0, malformed(path+"."+key, "missing required field")
	}
	n, err := coerceUint(obj[key])
	if err != nil {
		return 0, malformed(path+"."+key, "%v", err)
	}
	return n, nil
}

func optionalUint(obj object, key string) *uint {
	if !present(obj, key) {
		return nil
	}
	n, err := coerceUint(obj[key])
	if err != nil {
		return nil
	}
	return &n
}

// coerceUint accepts JSON integers, whole floats and numeric strings.
func coerceUint(raw json.RawMessage) (uint, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}

	switch t := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			if i < 0 {
				return 0, fmt.Errorf("negative value %d", i)
			}
			return uint(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", t.String())
		}
		if f < 0 || f != math.Trunc(f) || f >= math.MaxInt64 {
			return 0, fmt.Errorf("not a non-negative integer: %v", f)
		}
		return uint(f), nil
	case string:
		u, err := strconv.ParseUint(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not a non-negative integer: %q", t)
		}
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("out of range: %q", t)
		}
		return uint(u), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

// flattenCustom converts the custom object into string pairs. Values that have
// no natural string form become "".
func flattenCustom(raw json.RawMessage) map[string]string {
	out := map[string]string{}
	if len(raw) == 0 || isNull(raw) {
		return out
	}

	var obj object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return out
	}

	for key, value := range obj {
		out[key] = customString(value)
	}
	return out
}

func customString(raw json.RawMessage) string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return ""
	}

	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
