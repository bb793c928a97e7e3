// Package pipeline runs one analysis pass for the selected location: capture,
// classify, fetch weather, normalize history, forecast, and commit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/wildfire-analysis/internal/capture"
	"github.com/couchcryptid/wildfire-analysis/internal/domain"
	"github.com/couchcryptid/wildfire-analysis/internal/observability"
	"github.com/couchcryptid/wildfire-analysis/internal/store"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// ImageAcquirer rasterizes the render surface after it settles.
type ImageAcquirer interface {
	Acquire(ctx context.Context, region capture.Region) (domain.Image, error)
}

// Classifier labels a captured image.
type Classifier interface {
	Classify(ctx context.Context, img domain.Image) (domain.ClassificationResult, error)
}

// WeatherSource provides current and historical conditions at a point.
type WeatherSource interface {
	CurrentWeather(ctx context.Context, lat, lon float64) (domain.CurrentWeatherSnapshot, error)
	HistoricalWeather(ctx context.Context, lat, lon float64, days int) (domain.HistoricalResponse, error)
}

// Forecaster predicts temperature from normalized history.
type Forecaster interface {
	Forecast(ctx context.Context, in domain.ForecastRequest) (domain.ForecastResult, error)
}

// LocationStore is the shared selection and result state.
type LocationStore interface {
	Snapshot() store.Snapshot
	CommitResult(locationVersion uint64, r domain.AnalysisResult) bool
	Subscribe() (<-chan store.Snapshot, func())
}

// Stages bundles the collaborators a run drives.
type Stages struct {
	Region     capture.Region
	Acquirer   ImageAcquirer
	Classifier Classifier
	Weather    WeatherSource
	Forecaster Forecaster
}

// Progress is emitted on every phase transition.
type Progress struct {
	RunID       string
	Phase       Phase
	Description string
}

// Status is the orchestrator state for UI polling.
type Status struct {
	RunID      string           `json:"run_id,omitempty"`
	Phase      Phase            `json:"phase"`
	Location   *domain.GeoPoint `json:"location,omitempty"`
	StartedAt  time.Time        `json:"started_at,omitzero"`
	FinishedAt time.Time        `json:"finished_at,omitzero"`
	LastError  *Failure         `json:"-"`
}

var (
	errSuperseded      = fmt.Errorf("%w: superseded by a newer run", domain.ErrRunCancelled)
	errLocationChanged = fmt.Errorf("%w: selected location changed", domain.ErrRunCancelled)
	errCancelledByUser = fmt.Errorf("%w: cancelled by user", domain.ErrRunCancelled)
	errStaleResult     = fmt.Errorf("%w: result arrived after the run was invalidated", domain.ErrRunCancelled)
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProgress registers a callback for phase transitions. It is called from
// the run's goroutine and must not block.
func WithProgress(fn func(Progress)) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// WithHistoryDays overrides the history length requested and required.
func WithHistoryDays(days int) Option {
	return func(o *Orchestrator) { o.historyDays = days }
}

// WithClock sets the clock used for status timestamps.
func WithClock(clk clockwork.Clock) Option {
	return func(o *Orchestrator) { o.clock = clk }
}

// Orchestrator drives analysis runs. At most one run is active; starting a new
// one cancels the previous.
type Orchestrator struct {
	store       LocationStore
	stages      Stages
	logger      *slog.Logger
	metrics     *observability.Metrics
	historyDays int
	progress    func(Progress)
	clock       clockwork.Clock

	mu     sync.Mutex
	active *run
	status Status
}

// run is one orchestration pass. phase and phaseStart are owned by the run's
// goroutine.
type run struct {
	id              string
	location        domain.GeoPoint
	locationVersion uint64
	cancel          context.CancelCauseFunc

	phase      Phase
	phaseStart time.Time
}

// New creates an Orchestrator over the given store and stages.
func New(s LocationStore, stages Stages, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       s,
		stages:      stages,
		logger:      logger,
		metrics:     metrics,
		historyDays: domain.HistoryDays,
		progress:    func(Progress) {},
		clock:       clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one analysis synchronously and returns the committed result.
// Errors are *Failure.
func (o *Orchestrator) Run(ctx context.Context) (domain.AnalysisResult, error) {
	r, runCtx, err := o.begin(ctx)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	defer r.cancel(nil)
	return o.finish(r, o.execute(runCtx, r))
}

// Start launches an analysis in the background and returns its run ID. The
// precondition check happens before Start returns.
func (o *Orchestrator) Start(ctx context.Context) (string, error) {
	r, runCtx, err := o.begin(ctx)
	if err != nil {
		return "", err
	}
	go func() {
		defer r.cancel(nil)
		_, _ = o.finish(r, o.execute(runCtx, r))
	}()
	return r.id, nil
}

// Cancel aborts the active run. It reports false when nothing is running.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return false
	}
	o.active.cancel(errCancelledByUser)
	return true
}

// Status returns the current or most recent run state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.status
	if s.Location != nil {
		loc := *s.Location
		s.Location = &loc
	}
	return s
}

// Watch cancels the active run whenever the selected location changes. It
// blocks until ctx is done.
func (o *Orchestrator) Watch(ctx context.Context) {
	updates, unsubscribe := o.store.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			o.mu.Lock()
			if o.active != nil && snap.LocationVersion > o.active.locationVersion {
				o.logger.Info("location changed, cancelling run", "run_id", o.active.id)
				o.active.cancel(errLocationChanged)
			}
			o.mu.Unlock()
		}
	}
}

// begin validates the precondition and installs a new active run, cancelling
// any predecessor.
func (o *Orchestrator) begin(ctx context.Context) (*run, context.Context, error) {
	snap := o.store.Snapshot()
	if snap.Location == nil {
		return nil, nil, &Failure{Phase: PhaseIdle, Step: StepPrecondition, Err: domain.ErrNoLocationSelected}
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	r := &run{
		id:              uuid.NewString(),
		location:        *snap.Location,
		locationVersion: snap.LocationVersion,
		cancel:          cancel,
		phase:           PhaseCapturingArea,
		phaseStart:      o.clock.Now(),
	}

	o.mu.Lock()
	if prev := o.active; prev != nil {
		o.logger.Info("superseding active run", "run_id", prev.id, "new_run_id", r.id)
		prev.cancel(errSuperseded)
	}
	o.active = r
	loc := r.location
	o.status = Status{RunID: r.id, Phase: PhaseCapturingArea, Location: &loc, StartedAt: r.phaseStart}
	// Watch only sees r from here on; catch a selection made since the snapshot.
	if o.store.Snapshot().LocationVersion > r.locationVersion {
		o.logger.Info("location changed, cancelling run", "run_id", r.id)
		r.cancel(errLocationChanged)
	}
	o.mu.Unlock()

	o.metrics.RunActive.Set(1)
	o.logger.Info("analysis started", "run_id", r.id, "location", r.location.Label(),
		"lat", r.location.Latitude, "lon", r.location.Longitude)
	o.progress(Progress{RunID: r.id, Phase: PhaseCapturingArea, Description: PhaseCapturingArea.Description()})
	return r, runCtx, nil
}

// stepError tags an errgroup failure with the step that produced it.
type stepError struct {
	step Step
	err  error
}

func (e *stepError) Error() string { return e.err.Error() }

type outcome struct {
	result domain.AnalysisResult
	err    *Failure
}

// execute walks the phases. It never writes the store except through commit.
func (o *Orchestrator) execute(ctx context.Context, r *run) outcome {
	loc := r.location

	// Capturing area.
	if o.stages.Region == nil || o.stages.Acquirer == nil {
		return o.fail(ctx, r, StepCapture, domain.ErrRegionNotReady)
	}
	if err := o.stages.Region.ZoomTo(ctx, loc.Latitude, loc.Longitude); err != nil {
		return o.fail(ctx, r, StepCapture, &domain.CaptureError{Err: err})
	}
	img, err := o.stages.Acquirer.Acquire(ctx, o.stages.Region)
	if err != nil {
		return o.fail(ctx, r, StepCapture, err)
	}
	if f := o.checkpoint(ctx, r, StepCapture); f != nil {
		return outcome{err: f}
	}

	// Classification and current weather are independent; run them together.
	o.enter(r, PhaseClassifying)
	var (
		classification domain.ClassificationResult
		current        domain.CurrentWeatherSnapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := o.stages.Classifier.Classify(gctx, img)
		if err != nil {
			return &stepError{step: StepClassification, err: err}
		}
		classification = c
		return nil
	})
	g.Go(func() error {
		w, err := o.stages.Weather.CurrentWeather(gctx, loc.Latitude, loc.Longitude)
		if err != nil {
			return &stepError{step: StepCurrentWeather, err: err}
		}
		current = w
		return nil
	})
	if err := g.Wait(); err != nil {
		se := err.(*stepError)
		return o.fail(ctx, r, se.step, se.err)
	}

	// History starts only after both calls above succeed.
	o.enter(r, PhaseFetchingWeather)
	hist, err := o.stages.Weather.HistoricalWeather(ctx, loc.Latitude, loc.Longitude, o.historyDays)
	if err != nil {
		return o.fail(ctx, r, StepHistory, err)
	}
	if f := o.checkpoint(ctx, r, StepHistory); f != nil {
		return outcome{err: f}
	}

	o.enter(r, PhaseNormalizing)
	vectors, err := domain.NormalizeHistory(hist.HistoricalData, o.historyDays)
	if err != nil {
		o.logger.Warn("weather history rejected", "run_id", r.id, "data_source", hist.DataSource, "error", err)
		return o.fail(ctx, r, StepNormalization, err)
	}

	o.enter(r, PhaseForecasting)
	forecast, err := o.stages.Forecaster.Forecast(ctx, domain.ForecastRequest{
		Data:        vectors,
		CurrentTemp: current.Temperature.Current,
	})
	if err != nil {
		return o.fail(ctx, r, StepForecast, err)
	}

	result := domain.NewAnalysisResult(r.id, loc, classification, current, forecast)
	if f := o.commit(ctx, r, result); f != nil {
		return outcome{err: f}
	}
	return outcome{result: result}
}

// commit writes the result if this run is still the active one and the
// location has not moved. A stale result is dropped, not merged.
func (o *Orchestrator) commit(ctx context.Context, r *run, result domain.AnalysisResult) *Failure {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.active != r || ctx.Err() != nil || !o.store.CommitResult(r.locationVersion, result) {
		o.metrics.StaleResultsDropped.Inc()
		o.logger.Info("dropping stale result", "run_id", r.id)
		cause := errStaleResult
		if c := context.Cause(ctx); ctx.Err() != nil && errors.Is(c, domain.ErrRunCancelled) {
			cause = c
		}
		return &Failure{RunID: r.id, Phase: PhaseCancelled, Step: StepCommit, Err: cause}
	}
	return nil
}

// checkpoint stops a run whose context ended between phases.
func (o *Orchestrator) checkpoint(ctx context.Context, r *run, step Step) *Failure {
	if ctx.Err() == nil {
		return nil
	}
	return o.fail(ctx, r, step, ctx.Err()).err
}

// fail classifies err. A run whose context was cancelled ends Cancelled, with
// the cancellation cause as the error.
func (o *Orchestrator) fail(ctx context.Context, r *run, step Step, err error) outcome {
	if ctx.Err() != nil {
		cause := context.Cause(ctx)
		switch {
		case errors.Is(cause, domain.ErrRunCancelled):
			return outcome{err: &Failure{RunID: r.id, Phase: PhaseCancelled, Step: step, Err: cause}}
		case errors.Is(cause, context.Canceled):
			return outcome{err: &Failure{RunID: r.id, Phase: PhaseCancelled, Step: step, Err: fmt.Errorf("%w: %w", domain.ErrRunCancelled, cause)}}
		}
	}
	return outcome{err: &Failure{RunID: r.id, Phase: PhaseFailed, Step: step, Err: err}}
}

// enter records a phase transition for the run.
func (o *Orchestrator) enter(r *run, phase Phase) {
	now := o.clock.Now()
	o.metrics.PhaseDuration.WithLabelValues(r.phase.String()).Observe(now.Sub(r.phaseStart).Seconds())
	r.phase, r.phaseStart = phase, now

	o.mu.Lock()
	if o.active == r {
		o.status.Phase = phase
	}
	o.mu.Unlock()

	o.logger.Debug("analysis phase", "run_id", r.id, "phase", phase.String())
	o.progress(Progress{RunID: r.id, Phase: phase, Description: phase.Description()})
}

// finish tears the run down and publishes its terminal state. A superseded run
// leaves the status of its successor alone.
func (o *Orchestrator) finish(r *run, out outcome) (domain.AnalysisResult, error) {
	terminal := PhaseCompleted
	if out.err != nil {
		terminal = out.err.Phase
	}

	now := o.clock.Now()
	o.metrics.PhaseDuration.WithLabelValues(r.phase.String()).Observe(now.Sub(r.phaseStart).Seconds())
	r.phase = terminal

	o.mu.Lock()
	if o.active == r {
		o.active = nil
		o.status.Phase = terminal
		o.status.FinishedAt = now
		o.status.LastError = out.err
		o.metrics.RunActive.Set(0)
	}
	o.mu.Unlock()

	o.metrics.RunsTotal.WithLabelValues(terminal.String()).Inc()
	o.progress(Progress{RunID: r.id, Phase: terminal, Description: terminal.Description()})

	if out.err != nil {
		if terminal == PhaseCancelled {
			o.logger.Info("analysis cancelled", "run_id", r.id, "step", string(out.err.Step), "reason", out.err.Err)
		} else {
			o.logger.Error("analysis failed", "run_id", r.id, "step", string(out.err.Step), "error", out.err.Err)
		}
		return domain.AnalysisResult{}, out.err
	}

	o.logger.Info("analysis completed", "run_id", r.id,
		"is_wildfire", out.result.IsWildfire, "confidence", out.result.Confidence)
	return out.result, nil
}
