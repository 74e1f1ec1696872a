package acquire

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	media_courier "github.com/dmaltsev/media-courier"
	"github.com/dmaltsev/media-courier/internal/transport"
)

type fakeSource struct {
	url         string
	reconErr    error
	downloadErr error
	ext         string
}

func (s *fakeSource) URL() string { return s.url }

func (s *fakeSource) Recon(_ context.Context) (media_courier.ResolvedSource, error) {
	if s.reconErr != nil {
		return nil, s.reconErr
	}
	return s, nil
}

func (s *fakeSource) Download(d media_courier.Download) error {
	if s.downloadErr != nil {
		return s.downloadErr
	}
	f, err := d.CreateFile(d.Stem() + s.ext)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte("video bytes"))
	return err
}

func fakeRegistry(src *fakeSource) *media_courier.ProviderRegistry {
	registry := &media_courier.ProviderRegistry{}
	registry.MustAdd(media_courier.Provider{
		Name: "fake",
		Match: func(s string) (media_courier.Source, error) {
			src.url = s
			return src, nil
		},
	})
	return registry
}

type fakeThumbnailer struct {
	err   error
	calls int
}

func (t *fakeThumbnailer) Thumbnail(_ context.Context, videoPath string, imagePath string) error {
	t.calls++
	if t.err != nil {
		return t.err
	}
	if _, err := os.Stat(videoPath); err != nil {
		return err
	}
	return os.WriteFile(imagePath, []byte("jpeg bytes"), 0o644)
}

func testConfig(t *testing.T) Config {
	return Config{
		WorkRoot:    t.TempDir(),
		TitleMaxLen: 25,
	}
}

func requireWorkRootEmpty(t *testing.T, workRoot string) {
	t.Helper()
	entries, err := os.ReadDir(workRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "work directory should have been removed")
}

func TestPipelineSuccess(t *testing.T) {
	config := testConfig(t)
	src := &fakeSource{ext: ".mp4"}
	recorder := transport.NewRecorder()
	p := NewPipeline(config, fakeRegistry(src), recorder, &fakeThumbnailer{})
	defer p.Close()

	state, err := p.Run(context.Background(), "chat1", "https://example.com/v/abc", "My Title")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, state.Status)
	assert.Equal(t, "fake", state.Provider)
	assert.False(t, state.ThumbnailFailed)
	assert.False(t, state.FinishedAt.IsZero())

	messages := recorder.Visible()
	require.Len(t, messages, 1)
	video := messages[0].Content.Video
	require.NotNil(t, video)
	assert.Equal(t, "My Title", video.Caption)
	assert.True(t, strings.HasPrefix(filepath.Base(video.Path), "My Title"))
	assert.Equal(t, thumbnailFilename, filepath.Base(video.ThumbnailPath))

	requireWorkRootEmpty(t, config.WorkRoot)
}

func TestPipelineNoMatchingProvider(t *testing.T) {
	config := testConfig(t)
	recorder := transport.NewRecorder()
	p := NewPipeline(config, &media_courier.ProviderRegistry{}, recorder, &fakeThumbnailer{})
	defer p.Close()

	state, err := p.Run(context.Background(), "chat1", "https://example.com/v/abc", "My Title")
	require.Error(t, err)
	assert.Equal(t, StatusFailed, state.Status)
	assert.NotEmpty(t, state.Error)
	assert.Empty(t, recorder.Visible())
}

func TestPipelineDownloadFailure(t *testing.T) {
	config := testConfig(t)
	src := &fakeSource{downloadErr: errors.New("network down")}
	recorder := transport.NewRecorder()
	p := NewPipeline(config, fakeRegistry(src), recorder, &fakeThumbnailer{})
	defer p.Close()

	state, err := p.Run(context.Background(), "chat1", "https://example.com/v/abc", "My Title")
	require.ErrorContains(t, err, "network down")
	assert.Equal(t, StatusFailed, state.Status)
	assert.Empty(t, recorder.Visible())
	requireWorkRootEmpty(t, config.WorkRoot)
}

func TestPipelineNoArtifactProduced(t *testing.T) {
	config := testConfig(t)
	// A source that "succeeds" without creating any file.
	registry := &media_courier.ProviderRegistry{}
	registry.MustAdd(media_courier.Provider{
		Name: "empty",
		Match: func(s string) (media_courier.Source, error) {
			return &emptySource{url: s}, nil
		},
	})
	recorder := transport.NewRecorder()
	p := NewPipeline(config, registry, recorder, &fakeThumbnailer{})
	defer p.Close()

	state, err := p.Run(context.Background(), "chat1", "https://example.com/v/abc", "My Title")
	require.ErrorContains(t, err, "no file")
	assert.Equal(t, StatusFailed, state.Status)
	requireWorkRootEmpty(t, config.WorkRoot)
}

type emptySource struct{ url string }

func (s *emptySource) URL() string { return s.url }
func (s *emptySource) Recon(_ context.Context) (media_courier.ResolvedSource, error) {
	return s, nil
}
func (s *emptySource) Download(_ media_courier.Download) error { return nil }

func TestPipelineThumbnailFailureDegrades(t *testing.T) {
	config := testConfig(t)
	src := &fakeSource{ext: ".mp4"}
	recorder := transport.NewRecorder()
	thumbnailer := &fakeThumbnailer{err: errors.New("ffmpeg exploded")}
	p := NewPipeline(config, fakeRegistry(src), recorder, thumbnailer)
	defer p.Close()

	state, err := p.Run(context.Background(), "chat1", "https://example.com/v/abc", "My Title")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, state.Status)
	assert.True(t, state.ThumbnailFailed)
	assert.Equal(t, 1, thumbnailer.calls)

	messages := recorder.Visible()
	require.Len(t, messages, 1)
	require.NotNil(t, messages[0].Content.Video)
	assert.Empty(t, messages[0].Content.Video.ThumbnailPath)
	requireWorkRootEmpty(t, config.WorkRoot)
}

func TestPipelineDeliveryFailure(t *testing.T) {
	config := testConfig(t)
	src := &fakeSource{ext: ".mp4"}
	recorder := transport.NewRecorder()
	recorder.FailSend = true
	p := NewPipeline(config, fakeRegistry(src), recorder, &fakeThumbnailer{})
	defer p.Close()

	state, err := p.Run(context.Background(), "chat1", "https://example.com/v/abc", "My Title")
	require.ErrorIs(t, err, transport.ErrRecorderRefused)
	assert.Equal(t, StatusFailed, state.Status)
	requireWorkRootEmpty(t, config.WorkRoot)
}

func TestPipelineEvents(t *testing.T) {
	config := testConfig(t)
	src := &fakeSource{ext: ".mp4"}
	p := NewPipeline(config, fakeRegistry(src), transport.NewRecorder(), &fakeThumbnailer{})

	sub := p.Events()
	defer sub.Close()

	_, err := p.Run(context.Background(), "chat1", "https://example.com/v/abc", "My Title")
	require.NoError(t, err)
	p.Close()

	var statuses []Status
	for event := range sub.Receive() {
		if updated, ok := event.(JobUpdated); ok {
			statuses = append(statuses, updated.Job().Status)
		}
	}
	assert.Equal(t, []Status{
		StatusQueued,
		StatusDownloading,
		StatusThumbnailing,
		StatusDelivering,
		StatusDone,
	}, statuses)
}

func TestPipelineCanceledContext(t *testing.T) {
	config := testConfig(t)
	src := &fakeSource{ext: ".mp4"}
	recorder := transport.NewRecorder()
	p := NewPipeline(config, fakeRegistry(src), recorder, &fakeThumbnailer{})
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src.reconErr = ctx.Err()

	state, err := p.Run(ctx, "chat1", "https://example.com/v/abc", "My Title")
	require.Error(t, err)
	assert.Equal(t, StatusFailed, state.Status)
	requireWorkRootEmpty(t, config.WorkRoot)
}
