// Package acquire runs acquisition jobs: match a canonical link to a provider, download the
// asset into a private work directory, grab a preview thumbnail, deliver the artifact over the
// transport, and always remove the work directory afterwards.
package acquire

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	media_courier "github.com/dmaltsev/media-courier"
	"github.com/dmaltsev/media-courier/generic"
	"github.com/dmaltsev/media-courier/internal/pubsub"
	"github.com/dmaltsev/media-courier/internal/transport"
)

const thumbnailFilename = "thumbnail.jpg"

type JobID string

func NewJobID() JobID {
	return JobID(generic.Unwrap(uuid.NewRandom()).String())
}

// JobState is a snapshot of an acquisition job, published on every transition.
type JobState struct {
	ID     JobID
	Chat   string
	Link   string
	Title  string
	Status Status
	// Provider is set once the link has been matched.
	Provider string
	// ThumbnailFailed records that the artifact was delivered without a preview image.
	ThumbnailFailed bool
	Error           string
	StartedAt       time.Time
	FinishedAt      time.Time
}

func (s JobState) String() string {
	return fmt.Sprintf("JobState{ID:%q, Link:%q, Status:%q}", s.ID, s.Link, s.Status)
}

type Config struct {
	// WorkRoot is where per-job work directories are created.
	WorkRoot string
	// TitleMaxLen bounds the file-name stem derived from the title, in runes.
	TitleMaxLen int
	// ToolTimeout bounds the external download step; zero means no bound beyond the caller's
	// context.
	ToolTimeout time.Duration
}

type Pipeline struct {
	config      Config
	registry    *media_courier.ProviderRegistry
	transport   transport.Transport
	thumbnailer Thumbnailer
	events      *pubsub.Publisher[Event]
}

func NewPipeline(config Config, registry *media_courier.ProviderRegistry, t transport.Transport, thumbnailer Thumbnailer) *Pipeline {
	return &Pipeline{
		config:      config,
		registry:    registry,
		transport:   t,
		thumbnailer: thumbnailer,
		events:      pubsub.NewPublisher[Event](),
	}
}

// Events subscribes to job state transitions and progress updates. The caller must Close the
// subscription when done with it.
func (p *Pipeline) Events() pubsub.ReceiverCloser[Event] {
	return p.events.Subscribe()
}

func (p *Pipeline) Close() {
	p.events.Close()
}

func (p *Pipeline) log(state *JobState) *zap.SugaredLogger {
	return zap.S().Named("acquire").With("job_id", state.ID, "link", state.Link)
}

func (p *Pipeline) setStatus(state *JobState, status Status) {
	old := *state
	state.Status = status
	if status.IsTerminal() {
		state.FinishedAt = time.Now()
	}
	p.events.Send(JobUpdated{jobEvent{*state}, old})
}

func (p *Pipeline) fail(state *JobState, err error) (JobState, error) {
	p.log(state).Errorw("job failed", "error", err)
	state.Error = err.Error()
	p.setStatus(state, StatusFailed)
	return *state, err
}

// Run executes one acquisition job to completion. The returned JobState is always terminal; the
// error is non-nil exactly when the status is StatusFailed. The job's work directory is removed
// before Run returns, whatever the outcome.
func (p *Pipeline) Run(ctx context.Context, chat string, link string, title string) (JobState, error) {
	state := JobState{
		ID:        NewJobID(),
		Chat:      chat,
		Link:      link,
		Title:     title,
		StartedAt: time.Now(),
	}
	p.setStatus(&state, StatusQueued)
	log := p.log(&state)

	match, err := p.registry.Match(link)
	if err != nil {
		return p.fail(&state, fmt.Errorf("matching link: %w", err))
	}
	state.Provider = match.ProviderName
	log.Debugw("matched link", "provider", match.ProviderName)

	if p.config.ToolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.ToolTimeout)
		defer cancel()
	}

	stem := SanitizeStem(title, p.config.TitleMaxLen)
	dl, err := media_courier.NewDownloadBuilder().
		WithContext(ctx).
		WithWorkRoot(p.config.WorkRoot).
		WithWorkDir(string(state.ID)).
		WithStem(stem).
		WithProgressCallback(func(downloaded int, expected int) {
			p.events.Send(JobProgress{jobEvent{state}, downloaded, expected})
		}).
		Build()
	if err != nil {
		return p.fail(&state, fmt.Errorf("creating work directory: %w", err))
	}
	defer func() {
		if err := dl.Close(); err != nil {
			log.Warnw("failed to clean up work directory", "error", err)
		}
	}()

	p.setStatus(&state, StatusDownloading)
	resolved, err := match.Source.Recon(ctx)
	if err != nil {
		return p.fail(&state, fmt.Errorf("resolving source: %w", err))
	}
	if err := resolved.Download(dl); err != nil {
		return p.fail(&state, fmt.Errorf("downloading: %w", err))
	}
	artifact := dl.FindFile(stem)
	if artifact == "" {
		return p.fail(&state, fmt.Errorf("download produced no file named %q", stem))
	}
	log.Debugw("downloaded artifact", "path", artifact)

	p.setStatus(&state, StatusThumbnailing)
	thumbnail := dl.Path(thumbnailFilename)
	if err := p.thumbnailer.Thumbnail(ctx, artifact, thumbnail); err != nil {
		// A missing preview degrades the delivery, it never fails the job.
		log.Warnw("thumbnail generation failed", "error", err)
		state.ThumbnailFailed = true
		thumbnail = ""
	}

	p.setStatus(&state, StatusDelivering)
	content := transport.Content{Video: &transport.Video{
		Path:          artifact,
		ThumbnailPath: thumbnail,
		Caption:       title,
	}}
	if _, err := p.transport.Send(ctx, chat, content); err != nil {
		return p.fail(&state, fmt.Errorf("delivering artifact: %w", err))
	}

	p.setStatus(&state, StatusDone)
	log.Infow("job complete", "provider", state.Provider, "thumbnail_failed", state.ThumbnailFailed)
	return state, nil
}
