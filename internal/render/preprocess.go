package render

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"github.com/johnrirwin/feedformatter/internal/models"
)

// Preprocessor adjusts an item context for a particular consumer. It must
// return a new Context rather than modify the one it was given.
type Preprocessor func(ctx Context, item models.Item) Context

var ErrUnknownPreprocessor = errors.New("unknown preprocessor")

const (
	PreprocessorLightWorkers = "lightworkers"
	PreprocessorMailChimp    = "mailchimp"
	PreprocessorExcerpt      = "excerpt"
)

// DescriptionBudget is the character budget used by the excerpt preprocessor.
const DescriptionBudget = 200

const ellipsis = "…"

var preprocessors = map[string]Preprocessor{
	PreprocessorLightWorkers: LightWorkers,
	PreprocessorMailChimp:    MailChimp,
	PreprocessorExcerpt:      Excerpt,
}

// LookupPreprocessor resolves a configured name. The empty name means no
// preprocessing and yields a nil Preprocessor.
func LookupPreprocessor(name string) (Preprocessor, error) {
	if name == "" {
		return nil, nil
	}
	p, ok := preprocessors[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownPreprocessor, name, strings.Join(PreprocessorNames(), ", "))
	}
	return p, nil
}

// PreprocessorNames lists the registered preprocessors in sorted order.
func PreprocessorNames() []string {
	names := make([]string, 0, len(preprocessors))
	for name := range preprocessors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LightWorkers formats dates as M/DD/YYYY and derives a clock-style
// duration, the frame dimensions and a quality label from the chosen source.
func LightWorkers(ctx Context, item models.Item) Context {
	pubdate := item.PubDate.UTC().Format("1/02/2006")

	source, _ := ctx["source"].(Context)

	seconds := intValue(source, "duration")
	if seconds == 0 {
		seconds = int(item.Duration)
	}

	width := intValue(source, "width")
	height := intValue(source, "height")

	dimensions := "1280x720"
	quality := "HD"
	if width > 0 && height > 0 {
		dimensions = fmt.Sprintf("%dx%d", width, height)
		quality = QualityLabel(height)
	}

	return Merge(ctx, Context{
		"creationDate": pubdate,
		"publishDate":  pubdate,
		"duration":     ClockDuration(seconds),
		"dimensions":   dimensions,
		"videoQuality": quality,
	})
}

// MailChimp renders the publish date in RFC 822 form with a numeric zone.
func MailChimp(ctx Context, item models.Item) Context {
	return With(ctx, "pubdate", item.PubDate.UTC().Format("Mon, 02 Jan 2006 15:04:05 -0700"))
}

// Excerpt reduces a description longer than DescriptionBudget characters to
// truncated plain text. Descriptions within budget are left as they are. The
// raw markup stays available as descriptionHTML.
func Excerpt(ctx Context, item models.Item) Context {
	raw := item.DescriptionOrEmpty()
	description := raw
	if plain := PlainText(raw); charCount(plain) > DescriptionBudget {
		description = Truncate(plain, DescriptionBudget)
	}
	return Merge(ctx, Context{
		"description":     description,
		"descriptionHTML": raw,
	})
}

// QualityLabel maps a frame height to a marketing label.
func QualityLabel(height int) string {
	switch {
	case height >= 1080:
		return "Full HD"
	case height >= 720:
		return "HD"
	default:
		return "SD"
	}
}

// ClockDuration formats seconds as H:MM:SS.
func ClockDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds%60)
}

// Truncate shortens s to budget-2 characters plus an ellipsis when it is
// longer than budget characters. Characters are counted after NFC
// normalisation; s is returned untouched when it fits.
func Truncate(s string, budget int) string {
	if budget < 2 || charCount(s) <= budget {
		return s
	}
	runes := []rune(norm.NFC.String(s))
	return strings.TrimSpace(string(runes[:budget-2])) + ellipsis
}

func charCount(s string) int {
	return utf8.RuneCountInString(norm.NFC.String(s))
}

// PlainText strips markup from an HTML fragment. Input without markup is
// returned unchanged.
func PlainText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return fragment
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return strings.TrimSpace(doc.Text())
}

func intValue(ctx Context, key string) int {
	if ctx == nil {
		return 0
	}
	switch v := ctx[key].(type) {
	case int:
		return v
	case uint:
		return int(v)
	case int64:
		return int(v)
	default:
		return 0
	}
}
