package webdoc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; media-courier/1.0)"

// A Fetcher turns URLs into structured Documents. Every component that touches the network
// consumes this interface, so tests can substitute canned documents.
type Fetcher interface {
	// Fetch retrieves the page, consulting the content cache first.
	Fetch(ctx context.Context, url string) (*Document, error)
	// FetchFresh retrieves the page bypassing the cache (the cache is still updated).
	FetchFresh(ctx context.Context, url string) (*Document, error)
}

// A Cache stores raw page content keyed by URL. Entries expire on the cache's own schedule;
// a missing or stale entry is simply a miss.
type Cache interface {
	Get(url string) ([]byte, bool)
	Put(url string, content []byte) error
}

// NilCache caches nothing.
type NilCache struct{}

func (NilCache) Get(string) ([]byte, bool) { return nil, false }
func (NilCache) Put(string, []byte) error  { return nil }

type Config struct {
	Cache     Cache
	Timeout   time.Duration
	UserAgent string
	// MaxBodySize caps how much of a response body is read (0 = no cap).
	MaxBodySize int64
}

var DefaultConfig = Config{
	Cache:       NilCache{},
	Timeout:     30 * time.Second,
	UserAgent:   defaultUserAgent,
	MaxBodySize: 8 << 20,
}

type Service struct {
	config Config
	client *http.Client
	log    *zap.SugaredLogger
}

func NewService(config Config) *Service {
	if config.Cache == nil {
		config.Cache = NilCache{}
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig.Timeout
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultConfig.UserAgent
	}
	return &Service{
		config: config,
		client: &http.Client{},
		log:    zap.S().Named("webdoc"),
	}
}

func (s *Service) Fetch(ctx context.Context, url string) (*Document, error) {
	if content, ok := s.config.Cache.Get(url); ok {
		s.log.Debugw("cache hit", "url", url)
		return Parse(url, content)
	}
	return s.FetchFresh(ctx, url)
}

func (s *Service) FetchFresh(ctx context.Context, url string) (*Document, error) {
	content, err := s.get(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := s.config.Cache.Put(url, content); err != nil {
		// A broken cache degrades to uncached operation, it never fails a fetch.
		s.log.Warnw("cache write failed", "url", url, "error", err)
	}
	return Parse(url, content)
}

func (s *Service) get(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch failed: unexpected status %s", resp.Status)
	}

	var body io.Reader = resp.Body
	if s.config.MaxBodySize > 0 {
		body = io.LimitReader(resp.Body, s.config.MaxBodySize)
	}
	content, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return content, nil
}
