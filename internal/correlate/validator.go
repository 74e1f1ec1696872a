package correlate

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	media_courier "github.com/dmaltsev/media-courier"
	"github.com/dmaltsev/media-courier/internal/webdoc"
)

const (
	// shareAnchorLabel is the link text of the detail page's share anchor, which encodes the
	// full title in its href.
	shareAnchorLabel = "Telegram"
	// shareTitleMarker precedes the URL-escaped title inside the share anchor's href.
	shareTitleMarker = "&text="
)

// Validator fetches a ResultReference's detail page, extracts the title and canonical asset
// link, and applies the normalization-equality rule against the originating Candidate's key.
type Validator struct {
	fetcher webdoc.Fetcher
	log     *zap.SugaredLogger
}

func NewValidator(fetcher webdoc.Fetcher) *Validator {
	return &Validator{
		fetcher: fetcher,
		log:     zap.S().Named("validator"),
	}
}

// Validate returns a ValidatedMatch when the detail page verifies against the candidate, or
// (nil, nil) when the page is missing a field or fails the matching rule. The returned error
// is only ever a fetch failure.
func (v *Validator) Validate(ctx context.Context, ref media_courier.ResultReference, candidate media_courier.Candidate) (*media_courier.ValidatedMatch, error) {
	doc, err := v.fetcher.Fetch(ctx, ref.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("detail page %s: %w", ref.SourceURL, err)
	}

	title, ok := extractTitle(doc)
	if !ok {
		v.log.Debugw("no title on detail page", "url", ref.SourceURL)
		return nil, nil
	}
	canonical, ok := canonicalLink(doc)
	if !ok {
		v.log.Debugw("no canonical asset link on detail page", "url", ref.SourceURL)
		return nil, nil
	}

	// Exact-token rule: strict on purpose. A missed true match is acceptable, a false
	// positive is not.
	if NormalizeTitle(title) != candidate.Key {
		v.log.Debugw("title does not match key", "title", title, "key", candidate.Key)
		return nil, nil
	}

	return &media_courier.ValidatedMatch{
		Title:         title,
		Key:           candidate.Key,
		ThumbnailRef:  candidate.ThumbnailRef,
		CanonicalLink: canonical,
	}, nil
}

// Inspect extracts the detail-page fields without verifying them against a candidate. Unlike
// Validate, a page missing a field is an error here: the caller asked about this exact page.
func (v *Validator) Inspect(ctx context.Context, detailURL string) (*media_courier.ValidatedMatch, error) {
	doc, err := v.fetcher.Fetch(ctx, detailURL)
	if err != nil {
		return nil, fmt.Errorf("detail page %s: %w", detailURL, err)
	}
	title, ok := extractTitle(doc)
	if !ok {
		return nil, fmt.Errorf("no title found on %s", detailURL)
	}
	canonical, ok := canonicalLink(doc)
	if !ok {
		return nil, fmt.Errorf("no asset link found on %s", detailURL)
	}
	return &media_courier.ValidatedMatch{
		Title:         title,
		Key:           NormalizeTitle(title),
		CanonicalLink: canonical,
	}, nil
}

// NormalizeTitle reduces a title to its comparison form: the first whitespace-separated token
// with hyphens stripped. Comparison against candidate keys is case-sensitive.
func NormalizeTitle(title string) string {
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return ""
	}
	return strings.ReplaceAll(fields[0], "-", "")
}

// extractTitle recovers the title from the share anchor: the href fragment after the marker,
// percent-decoded, with literal '+' replaced by space.
func extractTitle(doc *webdoc.Document) (string, bool) {
	for _, link := range doc.Links {
		if !link.External || link.Text != shareAnchorLabel {
			continue
		}
		idx := strings.LastIndex(link.Href, shareTitleMarker)
		if idx < 0 {
			continue
		}
		decoded, err := url.PathUnescape(link.Href[idx+len(shareTitleMarker):])
		if err != nil {
			continue
		}
		title := strings.TrimSpace(strings.ReplaceAll(decoded, "+", " "))
		if title != "" {
			return title, true
		}
	}
	return "", false
}

// canonicalLink is the first video entry with a non-empty source.
func canonicalLink(doc *webdoc.Document) (string, bool) {
	for _, video := range doc.Videos {
		if video.Src != "" {
			return video.Src, true
		}
	}
	return "", false
}
