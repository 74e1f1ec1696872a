package media_courier

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every deployment-time parameter of the courier. Values come from the
// environment (optionally seeded from a .env file) with sensible defaults; the CLI may
// override individual fields through flags.
type Config struct {
	// ListingBaseURL is the default listing page correlation runs start from.
	ListingBaseURL string
	// DefaultPages is how many listing pages a run covers when not told otherwise.
	DefaultPages int
	// SearchBaseURL is the second site's search endpoint; the candidate key is appended as a
	// path segment.
	SearchBaseURL string
	// DetailBaseURL is the prefix that detail page URLs are built against.
	DetailBaseURL string
	// MediaCDNPrefix is the allow-listed host prefix search result media must match.
	MediaCDNPrefix string
	// ListingLimit caps how many candidates one correlation run will consider (0 = no cap).
	ListingLimit int
	// MaxInFlight bounds concurrent candidate fan-out (0 = unbounded).
	MaxInFlight int64

	// FetchTimeout applies to every external page fetch.
	FetchTimeout time.Duration
	// CachePath is the bbolt content cache file; empty disables caching.
	CachePath string
	// CacheTTL is how long cached page content stays fresh.
	CacheTTL time.Duration

	// WorkRoot is where acquisition jobs create their work directories.
	WorkRoot string
	// TitleMaxLen bounds the sanitized title used in file names.
	TitleMaxLen int
	// ThumbnailOffset is how far into the video the preview frame is taken.
	ThumbnailOffset time.Duration
	// ToolTimeout applies to every external tool invocation.
	ToolTimeout time.Duration
	// YTDLPPath and FFmpegPath locate the external tools.
	YTDLPPath  string
	FFmpegPath string
	// ExternalDownloader is passed to yt-dlp as its transfer backend (empty = yt-dlp native).
	ExternalDownloader string

	// ArchivePath is the sqlite database recording accepted matches; empty disables the
	// archive.
	ArchivePath string
	// FeedPath is where the RSS feed is written.
	FeedPath string
	// PublishDir is where published HTML pages are written.
	PublishDir string

	// Messaging transport credentials. Only required when running against a real transport.
	TelegramAPIID    string
	TelegramAPIHash  string
	TelegramBotToken string
}

func DefaultConfig() Config {
	return Config{
		ListingBaseURL:  "https://onejav.com/",
		DefaultPages:    1,
		SearchBaseURL:   "https://missav.com/en/search",
		DetailBaseURL:   "https://missav.com/en",
		MediaCDNPrefix:  "https://fivetiu.com",
		ListingLimit:    30,
		MaxInFlight:     8,
		FetchTimeout:    30 * time.Second,
		CacheTTL:        24 * time.Hour,
		WorkRoot:        filepathJoinCwd("downloads"),
		TitleMaxLen:     25,
		ThumbnailOffset: 4 * time.Second,
		ToolTimeout:     30 * time.Minute,
		YTDLPPath:       "yt-dlp",
		FFmpegPath:      "ffmpeg",
		FeedPath:        "feed.xml",
		PublishDir:      "pages",
	}
}

// LoadConfig reads the environment (seeded from .env when present) over DefaultConfig.
func LoadConfig() (Config, error) {
	// A missing .env file is fine; the environment may already be populated.
	_ = godotenv.Load()

	c := DefaultConfig()
	stringVar(&c.ListingBaseURL, "COURIER_LISTING_BASE_URL")
	stringVar(&c.SearchBaseURL, "COURIER_SEARCH_BASE_URL")
	stringVar(&c.DetailBaseURL, "COURIER_DETAIL_BASE_URL")
	stringVar(&c.MediaCDNPrefix, "COURIER_MEDIA_CDN_PREFIX")
	stringVar(&c.WorkRoot, "COURIER_WORK_ROOT")
	stringVar(&c.CachePath, "COURIER_CACHE_PATH")
	stringVar(&c.ArchivePath, "COURIER_ARCHIVE_PATH")
	stringVar(&c.YTDLPPath, "COURIER_YTDLP_PATH")
	stringVar(&c.FFmpegPath, "COURIER_FFMPEG_PATH")
	stringVar(&c.ExternalDownloader, "COURIER_EXTERNAL_DOWNLOADER")
	stringVar(&c.FeedPath, "COURIER_FEED_PATH")
	stringVar(&c.PublishDir, "COURIER_PUBLISH_DIR")
	stringVar(&c.TelegramAPIID, "TELEGRAM_API_ID")
	stringVar(&c.TelegramAPIHash, "TELEGRAM_API_HASH")
	stringVar(&c.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	if err := intVar(&c.ListingLimit, "COURIER_LISTING_LIMIT"); err != nil {
		return c, err
	}
	if err := intVar(&c.DefaultPages, "COURIER_DEFAULT_PAGES"); err != nil {
		return c, err
	}
	if err := int64Var(&c.MaxInFlight, "COURIER_MAX_IN_FLIGHT"); err != nil {
		return c, err
	}
	if err := durationVar(&c.FetchTimeout, "COURIER_FETCH_TIMEOUT"); err != nil {
		return c, err
	}
	if err := durationVar(&c.CacheTTL, "COURIER_CACHE_TTL"); err != nil {
		return c, err
	}
	if err := durationVar(&c.ToolTimeout, "COURIER_TOOL_TIMEOUT"); err != nil {
		return c, err
	}
	return c, c.Validate()
}

// Validate checks the invariants every mode of operation relies on. Transport credentials are
// checked separately by ValidateTransport, because single-shot CLI use doesn't need them.
func (c *Config) Validate() error {
	if c.SearchBaseURL == "" {
		return fmt.Errorf("config: search base URL must not be empty")
	}
	if c.DetailBaseURL == "" {
		return fmt.Errorf("config: detail base URL must not be empty")
	}
	if c.MediaCDNPrefix == "" {
		return fmt.Errorf("config: media CDN prefix must not be empty")
	}
	if c.WorkRoot == "" {
		return fmt.Errorf("config: work root must not be empty")
	}
	if c.TitleMaxLen <= 0 {
		return fmt.Errorf("config: title max length must be positive")
	}
	if c.FetchTimeout <= 0 || c.ToolTimeout <= 0 {
		return fmt.Errorf("config: timeouts must be positive")
	}
	if c.MaxInFlight < 0 {
		return fmt.Errorf("config: max in-flight must not be negative")
	}
	if c.DefaultPages < 1 {
		return fmt.Errorf("config: default pages must be at least 1")
	}
	return nil
}

// ValidateTransport checks the credentials a real messaging transport needs.
func (c *Config) ValidateTransport() error {
	if c.TelegramAPIID == "" || c.TelegramAPIHash == "" || c.TelegramBotToken == "" {
		return fmt.Errorf("config: missing transport credentials, set TELEGRAM_API_ID, TELEGRAM_API_HASH and TELEGRAM_BOT_TOKEN")
	}
	return nil
}

func filepathJoinCwd(name string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return name
	}
	return cwd + string(os.PathSeparator) + name
}

func stringVar(dest *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dest = v
	}
}

func intVar(dest *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: invalid %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func int64Var(dest *int64, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("config: invalid %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func durationVar(dest *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: invalid %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
