package webdoc

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// A Link is an anchor extracted from a page, with its href resolved against the page URL.
type Link struct {
	Href string
	Text string
	// External is true when the link points at a different host than the page it was found on.
	External bool
}

// A MediaEntry is an image or video reference extracted from a page.
type MediaEntry struct {
	Src string
	Alt string
}

// A Document is the structured result of fetching one page: the extracted links, media
// entries and visible text. Extraction is a pure function of the HTML, so cached content
// yields the same Document as a fresh fetch.
type Document struct {
	URL    string
	Links  []Link
	Images []MediaEntry
	Videos []MediaEntry
	Text   string
}

// Parse extracts a Document from raw HTML. Relative URLs are resolved against pageURL.
func Parse(pageURL string, html []byte) (*Document, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	d := &Document{URL: pageURL}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		resolved := resolve(base, href)
		if resolved == "" {
			return
		}
		target, err := url.Parse(resolved)
		if err != nil {
			return
		}
		d.Links = append(d.Links, Link{
			Href:     resolved,
			Text:     strings.TrimSpace(s.Text()),
			External: target.Host != base.Host,
		})
	})

	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || src == "" {
			return
		}
		alt, _ := s.Attr("alt")
		d.Images = append(d.Images, MediaEntry{Src: resolve(base, src), Alt: strings.TrimSpace(alt)})
	})

	doc.Find("video").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && src != "" {
			d.Videos = append(d.Videos, MediaEntry{Src: resolve(base, src)})
			return
		}
		s.Find("source[src]").EachWithBreak(func(_ int, source *goquery.Selection) bool {
			src, ok := source.Attr("src")
			if !ok || src == "" {
				return true
			}
			d.Videos = append(d.Videos, MediaEntry{Src: resolve(base, src)})
			return false
		})
	})

	d.Text = strings.Join(strings.Fields(doc.Find("body").Text()), " ")

	return d, nil
}

func resolve(base *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(parsed).String()
}
