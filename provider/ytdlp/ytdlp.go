// Package ytdlp provides the catch-all provider: any http(s) link is handed to the yt-dlp
// binary, optionally delegating the transfer itself to an external downloader such as aria2c.
package ytdlp

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"path/filepath"
	"strings"

	media_courier "github.com/dmaltsev/media-courier"
	"github.com/dmaltsev/media-courier/generic"
)

type Config struct {
	// Binary is the yt-dlp executable to run, defaulting to "yt-dlp" on $PATH.
	Binary string
	// ExternalDownloader is passed as --external-downloader when set.
	ExternalDownloader string
	Protocols          generic.Set[string]
}

func NewConfig() Config {
	return Config{
		Protocols: generic.NewSet(
			"http",
			"https",
		),
	}
}

func (c Config) Match(s string) (media_courier.Source, error) {
	parsedURL, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if !c.Protocols.Contains(parsedURL.Scheme) {
		return nil, fmt.Errorf("unknown URL scheme %v", parsedURL.Scheme)
	}
	return &source{config: c, url: s}, nil
}

func (c Config) Provider() media_courier.Provider {
	return media_courier.Provider{
		Name:  "ytdlp",
		Match: c.Match,
	}
}

type source struct {
	config Config
	url    string
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
	binary := s.config.Binary
	if binary == "" {
		binary = "yt-dlp"
	}
	stem := d.Stem()
	if stem == "" {
		stem = "video"
	}
	var args []string
	if s.config.ExternalDownloader != "" {
		args = append(args, "--external-downloader", s.config.ExternalDownloader)
	}
	args = append(args,
		"--output", filepath.Join(d.Dir(), stem+".%(ext)s"),
		s.url,
	)
	cmd := exec.CommandContext(d.Context(), binary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("yt-dlp: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
