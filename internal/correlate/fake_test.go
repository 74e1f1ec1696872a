package correlate

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmaltsev/media-courier/internal/webdoc"
)

// fakeFetcher serves canned documents and records how often each URL was fetched. URLs with
// no document fail, which doubles as a way to simulate transient fetch errors.
type fakeFetcher struct {
	mu     sync.Mutex
	docs   map[string]*webdoc.Document
	visits map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		docs:   make(map[string]*webdoc.Document),
		visits: make(map[string]int),
	}
}

func (f *fakeFetcher) add(url string, doc *webdoc.Document) {
	f.docs[url] = doc
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*webdoc.Document, error) {
	f.mu.Lock()
	f.visits[url]++
	doc, ok := f.docs[url]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("fetch failed: %s", url)
	}
	return doc, nil
}

func (f *fakeFetcher) FetchFresh(ctx context.Context, url string) (*webdoc.Document, error) {
	return f.Fetch(ctx, url)
}

// searchDoc builds a search results page whose hits point at the given detail slugs.
func searchDoc(cdnPrefix string, slugs ...string) *webdoc.Document {
	doc := &webdoc.Document{}
	for _, slug := range slugs {
		doc.Images = append(doc.Images, webdoc.MediaEntry{
			Src: fmt.Sprintf("%s/%s/cover.jpg", cdnPrefix, slug),
		})
	}
	return doc
}

// detailDoc builds a detail page with a share anchor encoding the title and one video source.
func detailDoc(encodedTitle, videoSrc string) *webdoc.Document {
	doc := &webdoc.Document{
		Links: []webdoc.Link{
			{Href: "https://share.example.com/url?u=x" + shareTitleMarker + encodedTitle, Text: shareAnchorLabel, External: true},
		},
	}
	if videoSrc != "" {
		doc.Videos = []webdoc.MediaEntry{{Src: videoSrc}}
	}
	return doc
}
