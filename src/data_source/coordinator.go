package datasource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"alphatrak-observer/src/analysis"
	"alphatrak-observer/src/helpers"
	"alphatrak-observer/src/interfaces"
	"alphatrak-observer/src/logger"
	"alphatrak-observer/src/models"
	"alphatrak-observer/src/utils"
)

// CoordinatorOptions tunes a Coordinator; zero values mean defaults.
type CoordinatorOptions struct {
	Interval time.Duration
	Window   time.Duration
	Now      func() time.Time
}

// Coordinator drives the poll cycles of one pet/session pair. At most one
// cycle runs at a time; the most recent result and the last good snapshot
// are kept for callers.
type Coordinator struct {
	petID    int64
	client   interfaces.IActivityClient
	newAuth  func() interfaces.IAuthenticator
	analyzer *analysis.AnalysisFacade
	Logger   *logger.Logger

	interval time.Duration
	window   time.Duration
	now      func() time.Time

	cycleMu sync.Mutex
	group   singleflight.Group

	mu       sync.RWMutex
	state    models.MCoordinatorState
	latest   *models.MCycleResult
	snapshot *models.MSnapshot

	runMu      sync.Mutex
	isRunning  atomic.Bool
	cancelFunc context.CancelFunc
	ctx        context.Context
	outputChan chan<- models.MCycleResult
	refreshCh  chan struct{}
}

// -----------------------------------------------------------------------------

// NewCoordinator wires a coordinator for petID. newAuth returns a client to
// log in with during re-authentication; the resulting token is installed on
// client.
func NewCoordinator(
	petID int64,
	client interfaces.IActivityClient,
	newAuth func() interfaces.IAuthenticator,
	analyzer *analysis.AnalysisFacade,
	opts CoordinatorOptions,
	log *logger.Logger,
) *Coordinator {
	if opts.Interval <= 0 {
		opts.Interval = utils.DefaultPollInterval
	}
	if opts.Window <= 0 {
		opts.Window = utils.DefaultFetchWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.NewLogger(nil, fmt.Sprintf("Coordinator[%d]", petID))
	}

	return &Coordinator{
		petID:     petID,
		client:    client,
		newAuth:   newAuth,
		analyzer:  analyzer,
		Logger:    log,
		interval:  opts.Interval,
		window:    opts.Window,
		now:       opts.Now,
		state:     models.StateIdle,
		refreshCh: make(chan struct{}, 1),
	}
}

// -----------------------------------------------------------------------------

// Name returns the unique identifier of the source
func (c *Coordinator) Name() string {
	return fmt.Sprintf("pet-%d", c.petID)
}

func (c *Coordinator) PetID() int64 { return c.petID }

// -----------------------------------------------------------------------------

func (c *Coordinator) State() models.MCoordinatorState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Latest returns the most recent completed cycle.
func (c *Coordinator) Latest() (models.MCycleResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.latest == nil {
		return models.MCycleResult{}, false
	}
	return *c.latest, true
}

// Snapshot returns the last successfully built snapshot, or nil.
func (c *Coordinator) Snapshot() *models.MSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// -----------------------------------------------------------------------------

// Validate runs the short connectivity check used at setup.
func (c *Coordinator) Validate(ctx context.Context) (bool, error) {
	return c.client.ValidateConnection(ctx)
}

// -----------------------------------------------------------------------------

// Refresh runs one cycle now. Calls that arrive while a cycle is in flight
// share its result. The error is non-nil only when ctx ended first.
func (c *Coordinator) Refresh(ctx context.Context) (models.MCycleResult, error) {
	v, err, shared := c.group.Do("cycle", func() (interface{}, error) {
		return c.cycle(ctx)
	})
	if shared {
		c.Logger.Debug("Refresh joined an in-flight cycle")
	}
	if err != nil {
		return models.MCycleResult{}, err
	}
	return v.(models.MCycleResult), nil
}

// -----------------------------------------------------------------------------

// cycle fetches the trailing window, builds a snapshot and records the
// classified outcome. On cancellation the previous state is restored and
// nothing is recorded or published.
func (c *Coordinator) cycle(ctx context.Context) (models.MCycleResult, error) {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	prev := c.setState(models.StateFetching)
	start := time.Now()

	to := c.now().UTC()
	from := to.Add(-c.window)

	var snap *models.MSnapshot
	payload, err := c.client.FetchActivity(ctx, from, to, "")
	if err == nil {
		snap, err = c.analyzer.BuildSnapshot(c.petID, payload, to)
	}

	if err != nil && ctx.Err() != nil {
		c.setState(prev)
		c.Logger.Debug("Cycle cancelled: %v", ctx.Err())
		return models.MCycleResult{}, ctx.Err()
	}

	result := classify(c.petID, snap, err)
	result.At = to
	result.Metrics = cycleMetrics(payload, time.Since(start))

	c.record(result)
	c.logResult(result)
	c.publish(result)
	return result, nil
}

// -----------------------------------------------------------------------------

// classify maps a cycle outcome onto the result kinds. Only the error
// taxonomy is consulted, never raw status codes.
func classify(petID int64, snap *models.MSnapshot, err error) models.MCycleResult {
	result := models.MCycleResult{PetID: petID}
	switch {
	case err == nil:
		result.Kind = models.ResultSnapshot
		result.Snapshot = snap
	case helpers.IsAuthError(err):
		result.Kind = models.ResultAuthRequired
		result.Reason = "authentication failed: " + err.Error()
	case helpers.IsConnectionError(err):
		result.Kind = models.ResultTransient
		result.Reason = "connection error: " + err.Error()
	case helpers.IsApiError(err):
		result.Kind = models.ResultTransient
		result.Reason = "API error: " + err.Error()
	case errors.Is(err, analysis.ErrNoGlucoseReadings):
		result.Kind = models.ResultTransient
		result.Reason = err.Error()
	default:
		result.Kind = models.ResultFatal
		result.Reason = err.Error()
	}
	return result
}

func stateFor(kind models.MResultKind) models.MCoordinatorState {
	switch kind {
	case models.ResultSnapshot:
		return models.StateReady
	case models.ResultAuthRequired:
		return models.StateAuthRequired
	default:
		return models.StateFailed
	}
}

func cycleMetrics(p *models.MActivityPayload, elapsed time.Duration) models.MProcessingMetrics {
	m := models.MProcessingMetrics{FetchTimeSeconds: elapsed.Seconds()}
	if p != nil {
		m.Categories = len(p.Categories)
		for _, entries := range p.Categories {
			m.Entries += len(entries)
		}
	}
	return m
}

// -----------------------------------------------------------------------------

func (c *Coordinator) setState(s models.MCoordinatorState) models.MCoordinatorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.state
	c.state = s
	return prev
}

func (c *Coordinator) record(result models.MCycleResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = stateFor(result.Kind)
	c.latest = &result
	if result.OK() {
		c.snapshot = result.Snapshot
	}
}

func (c *Coordinator) logResult(result models.MCycleResult) {
	switch result.Kind {
	case models.ResultSnapshot:
		c.Logger.Info("Cycle ok: %d readings, %d entries in %.2fs",
			len(result.Snapshot.RecentReadings), result.Metrics.Entries, result.Metrics.FetchTimeSeconds)
	case models.ResultAuthRequired:
		c.Logger.Warning("Credentials rejected, waiting for new ones: %s", result.Reason)
	case models.ResultTransient:
		c.Logger.Warning("Cycle failed, retrying next tick: %s", result.Reason)
	default:
		c.Logger.Error("Cycle failed: %s", result.Reason)
	}
}

// -----------------------------------------------------------------------------

// publish pushes a result to the output channel of a running loop.
func (c *Coordinator) publish(result models.MCycleResult) {
	c.runMu.Lock()
	out, ctx := c.outputChan, c.ctx
	c.runMu.Unlock()
	if out == nil || ctx == nil {
		return
	}

	select {
	case out <- result:
	case <-ctx.Done():
	}
}

// -----------------------------------------------------------------------------

// Reauthenticate logs in with new credentials, installs the token on the
// live client and runs a fresh cycle. A transient failure of that cycle is
// logged only; the credential swap already succeeded.
func (c *Coordinator) Reauthenticate(ctx context.Context, username, password string) (models.MCycleResult, error) {
	if c.newAuth == nil {
		return models.MCycleResult{}, errors.New("re-authentication is not configured")
	}

	res, err := c.newAuth().Login(ctx, username, password)
	if err != nil {
		return models.MCycleResult{}, err
	}
	if res.Token == "" {
		return models.MCycleResult{}, helpers.NewAuthError("login returned no access token", 0, nil)
	}

	c.client.SetToken(res.Token)
	c.Logger.Info("Access token replaced")

	// Bypasses singleflight so an in-flight cycle with the old token is not
	// mistaken for this one.
	result, err := c.cycle(ctx)
	if err != nil {
		return result, err
	}
	if result.Kind == models.ResultTransient {
		c.Logger.Warning("Refresh after re-authentication failed: %s", result.Reason)
	}
	return result, nil
}

// -----------------------------------------------------------------------------

// Start begins the polling loop with an immediate first cycle.
func (c *Coordinator) Start(parentCtx context.Context, outputChan chan<- models.MCycleResult, wg *sync.WaitGroup) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.isRunning.Load() {
		return fmt.Errorf("source %s is already running", c.Name())
	}

	ctx, cancel := context.WithCancel(parentCtx)
	c.ctx = ctx
	c.cancelFunc = cancel
	c.outputChan = outputChan
	c.isRunning.Store(true)

	wg.Add(1)
	go c.runLoop(ctx, wg)
	c.Logger.Info("Started polling every %v", c.interval)
	return nil
}

// -----------------------------------------------------------------------------

// Stop signals the run loop to exit
func (c *Coordinator) Stop() error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if !c.isRunning.Load() {
		return fmt.Errorf("source %s is not running", c.Name())
	}

	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.isRunning.Store(false)
	c.Logger.Info("Stopped polling")
	return nil
}

// -----------------------------------------------------------------------------

// RequestRefresh queues one extra cycle on the running loop. Requests made
// while one is already queued are merged.
func (c *Coordinator) RequestRefresh() {
	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
}

// -----------------------------------------------------------------------------

func (c *Coordinator) runLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.tick(ctx, true)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx, false)
		case <-c.refreshCh:
			c.tick(ctx, true)
		}
	}
}

// tick runs a cycle unless credentials are known bad; only explicit
// requests go through in that state.
func (c *Coordinator) tick(ctx context.Context, manual bool) {
	if !manual && c.State() == models.StateAuthRequired {
		c.Logger.Debug("Skipping tick until credentials are updated")
		return
	}
	if _, err := c.Refresh(ctx); err != nil {
		c.Logger.Debug("Cycle aborted: %v", err)
	}
}
