package bot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	media_courier "github.com/dmaltsev/media-courier"
	"github.com/dmaltsev/media-courier/internal/acquire"
	"github.com/dmaltsev/media-courier/internal/correlate"
	"github.com/dmaltsev/media-courier/internal/feed"
	"github.com/dmaltsev/media-courier/internal/pubsub"
	"github.com/dmaltsev/media-courier/internal/transport"
)

type fakeCorrelator struct {
	report *correlate.Report
	err    error
	runs   int
}

func (c *fakeCorrelator) Run(_ context.Context, baseURL string, pages int) (*correlate.Report, error) {
	c.runs++
	return c.report, c.err
}

type fakeInspector struct {
	match *media_courier.ValidatedMatch
	err   error
}

func (i *fakeInspector) Inspect(_ context.Context, detailURL string) (*media_courier.ValidatedMatch, error) {
	return i.match, i.err
}

type fakeAcquirer struct {
	state  acquire.JobState
	err    error
	events *pubsub.Publisher[acquire.Event]
}

func newFakeAcquirer(state acquire.JobState, err error) *fakeAcquirer {
	return &fakeAcquirer{state: state, err: err, events: pubsub.NewPublisher[acquire.Event]()}
}

func (a *fakeAcquirer) Run(_ context.Context, chat string, link string, title string) (acquire.JobState, error) {
	return a.state, a.err
}

func (a *fakeAcquirer) Events() pubsub.ReceiverCloser[acquire.Event] {
	return a.events.Subscribe()
}

type fakePublisher struct {
	location string
	err      error
	content  string
}

func (p *fakePublisher) Publish(_ context.Context, title string, htmlContent string) (string, error) {
	p.content = htmlContent
	return p.location, p.err
}

type fakeArchiver struct {
	runs    int
	matches int
}

func (a *fakeArchiver) RecordMatches(runID string, matches []media_courier.ValidatedMatch, _ *zap.SugaredLogger) int {
	a.runs++
	a.matches += len(matches)
	return len(matches)
}

func testReport() *correlate.Report {
	return &correlate.Report{
		Matches: []media_courier.ValidatedMatch{
			{
				Title:         "abc123 Some Title",
				Key:           "abc123",
				ThumbnailRef:  "https://cdn.example.com/abc123.jpg",
				CanonicalLink: "https://watch.example.com/abc123-a",
			},
		},
		Candidates: 3,
		Duplicates: 1,
	}
}

func newTestRouter(recorder *transport.Recorder, services Services, feedPath string) *Router {
	config := Config{
		DefaultBaseURL: "https://listing.example.com/",
		DefaultPages:   1,
		FeedPath:       feedPath,
		Channel:        feed.DefaultChannelConfig(),
	}
	return NewRouter(recorder, services, config)
}

func lastVisible(t *testing.T, recorder *transport.Recorder) transport.RecordedMessage {
	t.Helper()
	visible := recorder.Visible()
	require.NotEmpty(t, visible)
	return visible[len(visible)-1]
}

func TestHandleHelp(t *testing.T) {
	recorder := transport.NewRecorder()
	r := newTestRouter(recorder, Services{}, "")

	for _, command := range []string{"/help", "/start", "/help@courierbot"} {
		r.Handle(context.Background(), "chat1", command)
	}

	messages := recorder.Visible()
	require.Len(t, messages, 3)
	for _, m := range messages {
		assert.Contains(t, m.Content.Text, "/acquire [link]")
	}
}

func TestHandleIgnoresNonCommands(t *testing.T) {
	recorder := transport.NewRecorder()
	r := newTestRouter(recorder, Services{}, "")

	r.Handle(context.Background(), "chat1", "just chatting")
	r.Handle(context.Background(), "chat1", "")

	assert.Empty(t, recorder.Visible())
}

func TestHandleUnknownCommand(t *testing.T) {
	recorder := transport.NewRecorder()
	r := newTestRouter(recorder, Services{}, "")

	r.Handle(context.Background(), "chat1", "/dance")

	messages := recorder.Visible()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Content.Text, "Unknown command")
}

func TestHandleList(t *testing.T) {
	recorder := transport.NewRecorder()
	correlator := &fakeCorrelator{report: testReport()}
	r := newTestRouter(recorder, Services{Correlator: correlator}, "")

	r.Handle(context.Background(), "chat1", "/list")

	assert.Equal(t, 1, correlator.runs)
	// Progress and the result share one edited message.
	messages := recorder.Visible()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Content.Text, "1. abc123 Some Title")
	assert.Contains(t, messages[0].Content.Text, "https://watch.example.com/abc123-a")
	assert.Greater(t, messages[0].Edits, 0)
}

func TestHandleListNoMatches(t *testing.T) {
	recorder := transport.NewRecorder()
	correlator := &fakeCorrelator{report: &correlate.Report{Candidates: 5}}
	r := newTestRouter(recorder, Services{Correlator: correlator}, "")

	r.Handle(context.Background(), "chat1", "/list https://other.example.com/ 2")

	assert.Contains(t, lastVisible(t, recorder).Content.Text, "No matches found")
}

func TestHandleListBadArgs(t *testing.T) {
	recorder := transport.NewRecorder()
	correlator := &fakeCorrelator{report: testReport()}
	r := newTestRouter(recorder, Services{Correlator: correlator}, "")

	r.Handle(context.Background(), "chat1", "/list https://other.example.com/ zero")

	assert.Equal(t, 0, correlator.runs)
	assert.Contains(t, lastVisible(t, recorder).Content.Text, "Usage: /list")
}

func TestHandleResolve(t *testing.T) {
	recorder := transport.NewRecorder()
	inspector := &fakeInspector{match: &media_courier.ValidatedMatch{
		Title:         "abc123 Some Title",
		Key:           "abc123",
		CanonicalLink: "https://watch.example.com/abc123-a",
	}}
	r := newTestRouter(recorder, Services{Inspector: inspector}, "")

	r.Handle(context.Background(), "chat1", "/resolve https://detail.example.com/abc123-a")

	text := lastVisible(t, recorder).Content.Text
	assert.Contains(t, text, "abc123 Some Title")
	assert.Contains(t, text, "Key: abc123")
	assert.Contains(t, text, "Asset: https://watch.example.com/abc123-a")
}

func TestHandleResolveInvalidURL(t *testing.T) {
	recorder := transport.NewRecorder()
	r := newTestRouter(recorder, Services{Inspector: &fakeInspector{}}, "")

	r.Handle(context.Background(), "chat1", "/resolve not-a-url")

	assert.Contains(t, lastVisible(t, recorder).Content.Text, "Usage: /resolve")
}

func TestHandleAcquire(t *testing.T) {
	recorder := transport.NewRecorder()
	acquirer := newFakeAcquirer(acquire.JobState{Status: acquire.StatusDone}, nil)
	r := newTestRouter(recorder, Services{Acquirer: acquirer}, "")

	r.Handle(context.Background(), "chat1", "/acquire https://watch.example.com/abc123-a.mp4 My Title")

	text := lastVisible(t, recorder).Content.Text
	assert.Contains(t, text, "✅ Delivered My Title.")
}

func TestHandleAcquireDegraded(t *testing.T) {
	recorder := transport.NewRecorder()
	acquirer := newFakeAcquirer(acquire.JobState{Status: acquire.StatusDone, ThumbnailFailed: true}, nil)
	r := newTestRouter(recorder, Services{Acquirer: acquirer}, "")

	r.Handle(context.Background(), "chat1", "/acquire https://watch.example.com/abc123-a.mp4")

	text := lastVisible(t, recorder).Content.Text
	assert.Contains(t, text, "without thumbnail")
	// Title falls back to the link's path stem.
	assert.Contains(t, text, "abc123-a")
}

func TestHandleAcquireFailure(t *testing.T) {
	recorder := transport.NewRecorder()
	acquirer := newFakeAcquirer(acquire.JobState{Status: acquire.StatusFailed}, errors.New("tool exploded"))
	r := newTestRouter(recorder, Services{Acquirer: acquirer}, "")

	r.Handle(context.Background(), "chat1", "/acquire https://watch.example.com/abc123-a.mp4")

	text := lastVisible(t, recorder).Content.Text
	assert.Contains(t, text, "❌ Acquisition failed")
	assert.Contains(t, text, "tool exploded")
}

func TestHandlePublish(t *testing.T) {
	recorder := transport.NewRecorder()
	correlator := &fakeCorrelator{report: testReport()}
	publisher := &fakePublisher{location: "/var/pages/latest.html"}
	archiver := &fakeArchiver{}
	r := newTestRouter(recorder, Services{Correlator: correlator, Publisher: publisher, Archive: archiver}, "")

	r.Handle(context.Background(), "chat1", "/publish")

	text := lastVisible(t, recorder).Content.Text
	assert.Contains(t, text, "/var/pages/latest.html")
	assert.Contains(t, publisher.content, "abc123 Some Title")
	assert.Equal(t, 1, archiver.runs)
	assert.Equal(t, 1, archiver.matches)
}

func TestHandleFeed(t *testing.T) {
	recorder := transport.NewRecorder()
	correlator := &fakeCorrelator{report: testReport()}
	feedPath := filepath.Join(t.TempDir(), "feed.xml")
	r := newTestRouter(recorder, Services{Correlator: correlator}, feedPath)

	r.Handle(context.Background(), "chat1", "/feed")

	assert.Contains(t, lastVisible(t, recorder).Content.Text, feedPath)
	content, err := os.ReadFile(feedPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "<title>abc123 Some Title</title>")
}

func TestHandleFeedRunAborted(t *testing.T) {
	recorder := transport.NewRecorder()
	correlator := &fakeCorrelator{err: context.Canceled}
	r := newTestRouter(recorder, Services{Correlator: correlator}, "")

	r.Handle(context.Background(), "chat1", "/feed")

	assert.Contains(t, lastVisible(t, recorder).Content.Text, "Run aborted")
}
