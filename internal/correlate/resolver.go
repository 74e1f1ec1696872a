// Package correlate cross-references listing Candidates against the second site's search
// results, validates the matches, and coordinates the concurrent fan-out with dedup on
// canonical links.
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

type ResolverConfig struct {
	// SearchBaseURL is the search endpoint; the candidate key is appended as a path segment.
	SearchBaseURL string
	// DetailBaseURL is the prefix detail page URLs are built against.
	DetailBaseURL string
	// MediaCDNPrefix allow-lists which search result media count as hits.
	MediaCDNPrefix string
}

// Resolver queries the second site's search endpoint for one Candidate and extracts
// ResultReferences from the hits.
type Resolver struct {
	fetcher webdoc.Fetcher
	config  ResolverConfig
	log     *zap.SugaredLogger
}

func NewResolver(fetcher webdoc.Fetcher, config ResolverConfig) *Resolver {
	return &Resolver{
		fetcher: fetcher,
		config:  config,
		log:     zap.S().Named("resolver"),
	}
}

// Resolve returns the detail page references the search surfaced for the candidate. Zero
// references is a normal outcome, not an error: the returned error is only ever a fetch
// failure.
func (r *Resolver) Resolve(ctx context.Context, candidate media_courier.Candidate) ([]media_courier.ResultReference, error) {
	searchURL := fmt.Sprintf("%s/%s", strings.TrimRight(r.config.SearchBaseURL, "/"), url.PathEscape(candidate.Key))
	doc, err := r.fetcher.Fetch(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("search for %q: %w", candidate.Key, err)
	}

	var refs []media_courier.ResultReference
	for _, image := range doc.Images {
		if !strings.HasPrefix(image.Src, r.config.MediaCDNPrefix) {
			continue
		}
		slug, ok := detailSlug(image.Src)
		if !ok {
			continue
		}
		refs = append(refs, media_courier.ResultReference{
			SourceURL: fmt.Sprintf("%s/%s", strings.TrimRight(r.config.DetailBaseURL, "/"), slug),
		})
	}
	if len(refs) == 0 {
		r.log.Debugw("no search hits", "key", candidate.Key)
	}
	return refs, nil
}

// detailSlug recovers the detail page slug from a CDN media URL, which embeds it as the
// second-to-last path segment (…/<slug>/cover.jpg).
func detailSlug(src string) (string, bool) {
	parts := strings.Split(src, "/")
	if len(parts) < 5 {
		// Too short to contain a path segment beyond the scheme and host.
		return "", false
	}
	slug := parts[len(parts)-2]
	if slug == "" {
		return "", false
	}
	return slug, true
}
