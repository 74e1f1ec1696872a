// Package raw provides a provider for direct links to media files, downloaded with a plain
// HTTP GET.
package raw

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"

	media_courier "github.com/dmaltsev/media-courier"
	"github.com/dmaltsev/media-courier/generic"
)

type Config struct {
	Protocols  generic.Set[string]
	Extensions generic.Set[string]
}

func NewConfig() Config {
	return Config{
		Protocols: generic.NewSet(
			"http",
			"https",
		),
		Extensions: generic.NewSet(
			".flv",
			".m4v",
			".mkv",
			".mp4",
			".webm",
		),
	}
}

func (c *Config) Match(s string) (media_courier.Source, error) {
	parsedURL, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if !c.Protocols.Contains(parsedURL.Scheme) {
		return nil, fmt.Errorf("unknown URL scheme %v", parsedURL.Scheme)
	}
	filename := path.Base(parsedURL.Path)
	extension := path.Ext(filename)
	if extension == "" {
		return nil, fmt.Errorf("no file extension found")
	}
	if !c.Extensions.Contains(extension) {
		return nil, fmt.Errorf("unknown file extension %v", extension)
	}
	return &source{url: s, filename: filename}, nil
}

func (c Config) Provider() media_courier.Provider {
	return media_courier.Provider{
		Name:  "raw",
		Match: c.Match,
	}
}

type source struct {
	url      string
	filename string
}

func (s *source) URL() string {
	return s.url
}

func (s *source) String() string {
	return s.URL()
}

func (s *source) Recon(ctx context.Context) (media_courier.ResolvedSource, error) {
	return s, nil
}

func (s *source) Download(d media_courier.Download) error {
	client := &http.Client{}
	req, err := http.NewRequestWithContext(d.Context(), http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: unexpected status %s", resp.Status)
	}

	d.AddExpectedBytes(int(resp.ContentLength))
	return d.SaveStream(s.saveFilename(d), resp.Body)
}

func (s *source) saveFilename(d media_courier.Download) string {
	if stem := d.Stem(); stem != "" {
		return stem + path.Ext(s.filename)
	}
	return s.filename
}
