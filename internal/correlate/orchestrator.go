package correlate

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	media_courier "github.com/dmaltsev/media-courier"
	"github.com/dmaltsev/media-courier/internal/listing"
	"github.com/dmaltsev/media-courier/internal/sync_"
)

type RunState string

const (
	RunStateIdle        RunState = "idle"
	RunStateFetching    RunState = "fetching"
	RunStateResolving   RunState = "resolving"
	RunStateAggregating RunState = "aggregating"
	RunStateDone        RunState = "done"
)

type OrchestratorConfig struct {
	// MaxInFlight bounds concurrent candidate processing (0 = unbounded). Changing it never
	// changes the result set, only the throughput.
	MaxInFlight int64
	// ListingLimit caps how many candidates a run considers (0 = no cap).
	ListingLimit int
}

// A Report is the outcome of one correlation run. Failures aggregates per-item errors that
// were skipped; they never abort a run.
type Report struct {
	Matches    []media_courier.ValidatedMatch
	Candidates int
	Duplicates int
	Failures   error
}

// Orchestrator fans Candidates out to the Resolver and Validator concurrently, gates results
// through a run-scoped ClaimSet, and collects accepted matches in arrival order.
type Orchestrator struct {
	listing   *listing.Fetcher
	resolver  *Resolver
	validator *Validator
	config    OrchestratorConfig
	state     *sync_.Mutexed[RunState]
	log       *zap.SugaredLogger
}

func NewOrchestrator(listingFetcher *listing.Fetcher, resolver *Resolver, validator *Validator, config OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		listing:   listingFetcher,
		resolver:  resolver,
		validator: validator,
		config:    config,
		state:     sync_.NewMutexed(RunStateIdle),
		log:       zap.S().Named("orchestrator"),
	}
}

// State returns the orchestrator's current run state.
func (o *Orchestrator) State() RunState {
	return o.state.Get()
}

// Run performs one correlation pass over the listing. Per-candidate failures are recorded in
// the report and skipped; only cancellation ends a run early, and even then the partial
// report is returned.
func (o *Orchestrator) Run(ctx context.Context, baseURL string, pages int) (*Report, error) {
	o.state.Set(RunStateFetching)
	defer o.state.Set(RunStateDone)

	candidates := o.listing.FetchCandidates(ctx, baseURL, pages, o.config.ListingLimit)
	report := &Report{Candidates: len(candidates)}
	if len(candidates) == 0 {
		o.state.Set(RunStateAggregating)
		return report, ctx.Err()
	}

	o.state.Set(RunStateResolving)

	var sem *semaphore.Weighted
	if o.config.MaxInFlight > 0 {
		sem = semaphore.NewWeighted(o.config.MaxInFlight)
	}

	claims := NewClaimSet()
	accepted := make(chan media_courier.ValidatedMatch)

	var mu sync.Mutex // guards report.Duplicates and report.Failures
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		report.Failures = multierror.Append(report.Failures, err)
	}

	// The fan-out loop runs off the collecting goroutine: a bounded semaphore would otherwise
	// deadlock against workers waiting to deliver into the accepted channel.
	go func() {
		var wg sync.WaitGroup
		for _, candidate := range candidates {
			if sem != nil {
				if err := sem.Acquire(ctx, 1); err != nil {
					break
				}
			}
			wg.Add(1)
			go func(candidate media_courier.Candidate) {
				defer wg.Done()
				if sem != nil {
					defer sem.Release(1)
				}
				o.processCandidate(ctx, candidate, claims, accepted, &mu, report, fail)
			}(candidate)
		}
		wg.Wait()
		close(accepted)
	}()

	for match := range accepted {
		report.Matches = append(report.Matches, match)
	}

	o.state.Set(RunStateAggregating)
	if report.Failures != nil {
		o.log.Warnw("run finished with skipped items", "failures", report.Failures)
	}
	o.log.Infow("correlation run complete",
		"candidates", report.Candidates,
		"matches", len(report.Matches),
		"duplicates", report.Duplicates,
	)
	return report, ctx.Err()
}

func (o *Orchestrator) processCandidate(
	ctx context.Context,
	candidate media_courier.Candidate,
	claims *ClaimSet,
	accepted chan<- media_courier.ValidatedMatch,
	mu *sync.Mutex,
	report *Report,
	fail func(error),
) {
	refs, err := o.resolver.Resolve(ctx, candidate)
	if err != nil {
		fail(fmt.Errorf("%v: %w", candidate, err))
		return
	}
	for _, ref := range refs {
		if ctx.Err() != nil {
			return
		}
		match, err := o.validator.Validate(ctx, ref, candidate)
		if err != nil {
			fail(fmt.Errorf("%v: %w", candidate, err))
			continue
		}
		if match == nil {
			continue
		}
		if !claims.Claim(match.CanonicalLink) {
			mu.Lock()
			report.Duplicates++
			mu.Unlock()
			o.log.Debugw("duplicate canonical link discarded", "link", match.CanonicalLink)
			continue
		}
		select {
		case accepted <- *match:
		case <-ctx.Done():
			return
		}
	}
}
