// Package listing turns the source site's listing pages into Candidates for correlation.
package listing

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	media_courier "github.com/dmaltsev/media-courier"
	"github.com/dmaltsev/media-courier/internal/webdoc"
)

// nonContentMarker identifies media entries that are site chrome (flag icons and the like)
// rather than listed items.
const nonContentMarker = "flag"

type Fetcher struct {
	fetcher webdoc.Fetcher
	log     *zap.SugaredLogger
}

func NewFetcher(fetcher webdoc.Fetcher) *Fetcher {
	return &Fetcher{
		fetcher: fetcher,
		log:     zap.S().Named("listing"),
	}
}

// FetchCandidates walks pages 1..pages of the listing and extracts Candidates in page order
// then DOM order. A page that fails to fetch is logged and skipped; partial results are fine.
// Duplicate keys across pages are kept, dedup happens downstream on canonical links. limit
// caps the total number of candidates (0 = no cap).
func (f *Fetcher) FetchCandidates(ctx context.Context, baseURL string, pages int, limit int) []media_courier.Candidate {
	var candidates []media_courier.Candidate
	for page := 1; page <= pages; page++ {
		if ctx.Err() != nil {
			break
		}
		pageURL := fmt.Sprintf("%s?page=%d", baseURL, page)
		doc, err := f.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			f.log.Warnw("listing page failed, skipping", "url", pageURL, "error", err)
			continue
		}
		for _, image := range doc.Images {
			if limit > 0 && len(candidates) >= limit {
				return candidates
			}
			if c, ok := candidateFromImage(image); ok {
				candidates = append(candidates, c)
			}
		}
	}
	return candidates
}

func candidateFromImage(image webdoc.MediaEntry) (media_courier.Candidate, bool) {
	if image.Src == "" || strings.Contains(image.Src, nonContentMarker) {
		return media_courier.Candidate{}, false
	}
	fields := strings.Fields(image.Alt)
	if len(fields) == 0 {
		return media_courier.Candidate{}, false
	}
	return media_courier.Candidate{
		Key:          fields[0],
		DisplayName:  image.Alt,
		ThumbnailRef: image.Src,
	}, true
}
