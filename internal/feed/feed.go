// Package feed renders accepted matches as consumable output: an RSS 2.0 document and a
// publish-ready HTML fragment. Items without a canonical link are never rendered.
package feed

import (
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	media_courier "github.com/dmaltsev/media-courier"
)

const rssTimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// An Item is one renderable feed entry.
type Item struct {
	Title         string
	Key           string
	ThumbnailURL  string
	CanonicalLink string
	Published     time.Time
}

// ItemFromMatch converts a ValidatedMatch into a feed Item.
func ItemFromMatch(m media_courier.ValidatedMatch, published time.Time) Item {
	return Item{
		Title:         m.Title,
		Key:           m.Key,
		ThumbnailURL:  m.ThumbnailRef,
		CanonicalLink: m.CanonicalLink,
		Published:     published,
	}
}

// complete drops items with no canonical link; they have nothing to point a reader at.
func complete(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if item.CanonicalLink != "" {
			out = append(out, item)
		}
	}
	return out
}

// ChannelConfig is the RSS channel metadata.
type ChannelConfig struct {
	Title       string
	Link        string
	Description string
	Language    string
}

func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		Title:       "media-courier feed",
		Link:        "https://example.com/",
		Description: "Latest correlated media links.",
		Language:    "en-us",
	}
}

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
}

// WriteRSS writes the items as an RSS 2.0 document. The canonical link doubles as the item
// guid; the description embeds the key and thumbnail.
func WriteRSS(w io.Writer, config ChannelConfig, items []Item, now time.Time) error {
	doc := rssDocument{
		Version: "2.0",
		Channel: rssChannel{
			Title:         config.Title,
			Link:          config.Link,
			Description:   config.Description,
			Language:      config.Language,
			LastBuildDate: now.UTC().Format(rssTimeFormat),
		},
	}
	for _, item := range complete(items) {
		published := item.Published
		if published.IsZero() {
			published = now
		}
		doc.Channel.Items = append(doc.Channel.Items, rssItem{
			Title:       item.Title,
			Link:        item.CanonicalLink,
			Description: fmt.Sprintf("Name: %s<br><img src='%s'/>", item.Key, item.ThumbnailURL),
			GUID:        item.CanonicalLink,
			PubDate:     published.UTC().Format(rssTimeFormat),
		})
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	encoder := xml.NewEncoder(w)
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("encoding rss: %w", err)
	}
	return nil
}

// RenderPage renders the items as a publish-ready HTML fragment: thumbnail, numbered heading,
// watch link per item.
func RenderPage(items []Item) string {
	var b strings.Builder
	for i, item := range complete(items) {
		fmt.Fprintf(&b, `<img src="%s"/><br>`, html.EscapeString(item.ThumbnailURL))
		fmt.Fprintf(&b, "<h4>%d. %s</h4>", i+1, html.EscapeString(item.Title))
		fmt.Fprintf(&b, `<a href="%s">Watch Video</a><br><br>`, html.EscapeString(item.CanonicalLink))
	}
	return b.String()
}
