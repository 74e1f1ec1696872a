// Package bot parses chat commands and drives the correlation and acquisition machinery,
// reporting progress over the transport. Every command ends in exactly one terminal status
// message; progress along the way is best-effort edit-in-place.
package bot

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	media_courier "github.com/dmaltsev/media-courier"
	"github.com/dmaltsev/media-courier/generic"
	"github.com/dmaltsev/media-courier/internal/acquire"
	"github.com/dmaltsev/media-courier/internal/correlate"
	"github.com/dmaltsev/media-courier/internal/feed"
	"github.com/dmaltsev/media-courier/internal/pubsub"
	"github.com/dmaltsev/media-courier/internal/transport"
)

// Chat services keep replies within common message length limits.
const maxReplyRunes = 4000

const helpText = `👋 media-courier

Commands:
/list [base] [pages] - correlate the listing and show matches
/resolve [link] - extract title and asset link from a detail page
/acquire [link] [title] - download and deliver an asset
/publish [base] [pages] - correlate and publish an HTML page
/feed [base] [pages] - correlate and write an RSS feed
/help - show this help message`

// A Correlator performs one correlation pass over a listing.
type Correlator interface {
	Run(ctx context.Context, baseURL string, pages int) (*correlate.Report, error)
}

// An Inspector extracts fields from a single detail page.
type Inspector interface {
	Inspect(ctx context.Context, detailURL string) (*media_courier.ValidatedMatch, error)
}

// An Acquirer runs acquisition jobs and publishes their state transitions.
type Acquirer interface {
	Run(ctx context.Context, chat string, link string, title string) (acquire.JobState, error)
	Events() pubsub.ReceiverCloser[acquire.Event]
}

// An Archiver records accepted matches; failures are the archiver's to log, never the run's.
type Archiver interface {
	RecordMatches(runID string, matches []media_courier.ValidatedMatch, logger *zap.SugaredLogger) int
}

type Services struct {
	Correlator Correlator
	Inspector  Inspector
	Acquirer   Acquirer
	Publisher  feed.Publisher
	// Archive may be nil, in which case runs are not recorded.
	Archive Archiver
}

type Config struct {
	DefaultBaseURL string
	DefaultPages   int
	// FeedPath is where /feed writes the RSS document.
	FeedPath string
	Channel  feed.ChannelConfig
}

type Router struct {
	transport transport.Transport
	services  Services
	config    Config
	log       *zap.SugaredLogger
}

func NewRouter(t transport.Transport, services Services, config Config) *Router {
	return &Router{
		transport: t,
		services:  services,
		config:    config,
		log:       zap.S().Named("bot"),
	}
}

// Handle parses one incoming message and executes it. Unknown commands and bad arguments get
// a usage reply; non-command messages are ignored.
func (r *Router) Handle(ctx context.Context, chat string, text string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return
	}
	command := strings.TrimPrefix(fields[0], "/")
	// Group chats address commands as /command@botname.
	if idx := strings.Index(command, "@"); idx >= 0 {
		command = command[:idx]
	}
	args := fields[1:]
	r.log.Infow("handling command", "chat", chat, "command", command)

	switch command {
	case "start", "help":
		r.reply(ctx, chat, helpText)
	case "list":
		r.handleList(ctx, chat, args)
	case "resolve":
		r.handleResolve(ctx, chat, args)
	case "acquire":
		r.handleAcquire(ctx, chat, args)
	case "publish":
		r.handlePublish(ctx, chat, args)
	case "feed":
		r.handleFeed(ctx, chat, args)
	default:
		r.reply(ctx, chat, "Unknown command. Use /help to see what I can do.")
	}
}

func (r *Router) reply(ctx context.Context, chat string, text string) {
	if _, err := r.transport.Send(ctx, chat, transport.TextContent(clip(text))); err != nil {
		r.log.Warnw("failed to send reply", "chat", chat, "error", err)
	}
}

// listingArgs parses the optional [base] [pages] pair shared by /list, /publish and /feed.
func (r *Router) listingArgs(args []string) (baseURL string, pages int, err error) {
	baseURL = r.config.DefaultBaseURL
	pages = r.config.DefaultPages
	if pages < 1 {
		pages = 1
	}
	if len(args) >= 1 {
		if !isValidURL(args[0]) {
			return "", 0, fmt.Errorf("%q is not a valid URL", args[0])
		}
		baseURL = args[0]
	}
	if baseURL == "" {
		return "", 0, fmt.Errorf("no listing URL given and no default configured")
	}
	if len(args) >= 2 {
		pages, err = strconv.Atoi(args[1])
		if err != nil || pages < 1 {
			return "", 0, fmt.Errorf("%q is not a valid page count", args[1])
		}
	}
	return baseURL, pages, nil
}

func (r *Router) handleList(ctx context.Context, chat string, args []string) {
	baseURL, pages, err := r.listingArgs(args)
	if err != nil {
		r.reply(ctx, chat, fmt.Sprintf("%v\nUsage: /list [base] [pages]", err))
		return
	}
	status := transport.NewStatus(r.transport, chat)
	status.Update(ctx, "🔄 Fetching and correlating...")

	report, err := r.services.Correlator.Run(ctx, baseURL, pages)
	if err != nil {
		status.Update(ctx, fmt.Sprintf("❌ Run aborted: %v", err))
		return
	}
	if len(report.Matches) == 0 {
		status.Update(ctx, fmt.Sprintf("No matches found (%d candidates, %d duplicates).", report.Candidates, report.Duplicates))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ %d matches (%d candidates, %d duplicates):\n", len(report.Matches), report.Candidates, report.Duplicates)
	for i, m := range report.Matches {
		fmt.Fprintf(&b, "\n%d. %s\n%s\n", i+1, m.Title, m.CanonicalLink)
	}
	status.Update(ctx, b.String())
}

func (r *Router) handleResolve(ctx context.Context, chat string, args []string) {
	if len(args) < 1 || !isValidURL(args[0]) {
		r.reply(ctx, chat, "Please provide a valid URL.\nUsage: /resolve [link]")
		return
	}
	status := transport.NewStatus(r.transport, chat)
	status.Update(ctx, "🔄 Resolving detail page...")

	match, err := r.services.Inspector.Inspect(ctx, args[0])
	if err != nil {
		status.Update(ctx, fmt.Sprintf("❌ Resolve failed: %v", err))
		return
	}
	status.Update(ctx, fmt.Sprintf("✅ %s\nKey: %s\nAsset: %s", match.Title, match.Key, match.CanonicalLink))
}

func (r *Router) handleAcquire(ctx context.Context, chat string, args []string) {
	if len(args) < 1 || !isValidURL(args[0]) {
		r.reply(ctx, chat, "Please provide a valid URL.\nUsage: /acquire [link] [title]")
		return
	}
	link := args[0]
	title := titleFromLink(link)
	if len(args) >= 2 {
		title = strings.Join(args[1:], " ")
	}

	status := transport.NewStatus(r.transport, chat)
	status.Update(ctx, "🔄 Queued...")

	sub := r.services.Acquirer.Events()
	reporterDone := make(chan struct{})
	go func() {
		defer close(reporterDone)
		for event := range sub.Receive() {
			if updated, ok := event.(acquire.JobUpdated); ok && updated.Job().Status.IsRunning() {
				status.Update(ctx, fmt.Sprintf("🔄 %s: %s...", title, updated.Job().Status))
			}
		}
	}()

	state, err := r.services.Acquirer.Run(ctx, chat, link, title)
	sub.Close()
	<-reporterDone

	if err != nil {
		status.Update(ctx, fmt.Sprintf("❌ Acquisition failed: %v", err))
		return
	}
	if state.ThumbnailFailed {
		status.Update(ctx, fmt.Sprintf("✅ Delivered %s (without thumbnail).", title))
		return
	}
	status.Update(ctx, fmt.Sprintf("✅ Delivered %s.", title))
}

func (r *Router) handlePublish(ctx context.Context, chat string, args []string) {
	baseURL, pages, err := r.listingArgs(args)
	if err != nil {
		r.reply(ctx, chat, fmt.Sprintf("%v\nUsage: /publish [base] [pages]", err))
		return
	}
	status := transport.NewStatus(r.transport, chat)
	status.Update(ctx, "🔄 Fetching links...")

	report, items, err := r.correlateItems(ctx, baseURL, pages)
	if err != nil {
		status.Update(ctx, fmt.Sprintf("❌ Run aborted: %v", err))
		return
	}
	if len(items) == 0 {
		status.Update(ctx, fmt.Sprintf("No matches to publish (%d candidates).", report.Candidates))
		return
	}

	location, err := r.services.Publisher.Publish(ctx, r.config.Channel.Title, feed.RenderPage(items))
	if err != nil {
		status.Update(ctx, fmt.Sprintf("❌ Publish failed: %v", err))
		return
	}
	status.Update(ctx, fmt.Sprintf("✅ Links fetched! View them here:\n\n%s", location))
}

func (r *Router) handleFeed(ctx context.Context, chat string, args []string) {
	baseURL, pages, err := r.listingArgs(args)
	if err != nil {
		r.reply(ctx, chat, fmt.Sprintf("%v\nUsage: /feed [base] [pages]", err))
		return
	}
	status := transport.NewStatus(r.transport, chat)
	status.Update(ctx, "🔄 Fetching links...")

	report, items, err := r.correlateItems(ctx, baseURL, pages)
	if err != nil {
		status.Update(ctx, fmt.Sprintf("❌ Run aborted: %v", err))
		return
	}
	if len(items) == 0 {
		status.Update(ctx, fmt.Sprintf("No matches for the feed (%d candidates).", report.Candidates))
		return
	}

	if err := r.writeFeed(items); err != nil {
		status.Update(ctx, fmt.Sprintf("❌ Feed generation failed: %v", err))
		return
	}
	status.Update(ctx, fmt.Sprintf("✅ RSS feed written: %s (%d items)", r.config.FeedPath, len(items)))
}

// correlateItems runs a correlation pass, archives the outcome and converts matches to feed
// items.
func (r *Router) correlateItems(ctx context.Context, baseURL string, pages int) (*correlate.Report, []feed.Item, error) {
	report, err := r.services.Correlator.Run(ctx, baseURL, pages)
	if err != nil {
		return nil, nil, err
	}
	if r.services.Archive != nil && len(report.Matches) > 0 {
		runID := generic.Unwrap(uuid.NewRandom()).String()
		r.services.Archive.RecordMatches(runID, report.Matches, r.log)
	}
	now := time.Now()
	items := make([]feed.Item, 0, len(report.Matches))
	for _, m := range report.Matches {
		items = append(items, feed.ItemFromMatch(m, now))
	}
	return report, items, nil
}

func (r *Router) writeFeed(items []feed.Item) error {
	f, err := os.Create(r.config.FeedPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return feed.WriteRSS(f, r.config.Channel, items, time.Now())
}

func isValidURL(s string) bool {
	parsed, err := url.Parse(s)
	return err == nil && parsed.Scheme != "" && parsed.Host != ""
}

func titleFromLink(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return link
	}
	base := path.Base(parsed.Path)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." || base == "/" {
		return parsed.Host
	}
	return base
}

func clip(text string) string {
	runes := []rune(text)
	if len(runes) <= maxReplyRunes {
		return text
	}
	return string(runes[:maxReplyRunes])
}
