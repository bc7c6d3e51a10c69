package datasource

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"alphatrak-observer/src/helpers"
	"alphatrak-observer/src/interfaces"
	"alphatrak-observer/src/logger"
	"alphatrak-observer/src/models"
)

var _ interfaces.IObserverControl = (*MultiPetManager)(nil)

// MultiPetManager owns one Coordinator per configured pet. Pets poll
// independently; a failure for one never affects another.
type MultiPetManager struct {
	Coordinators map[int64]*Coordinator
	Logger       *logger.Logger
	mu           sync.RWMutex
	outputChan   chan<- models.MCycleResult // Send-only, managed by parent
	ctx          context.Context            // Lifecycle context (derived)
	cancelFunc   context.CancelFunc         // To stop all coordinators
	wg           *sync.WaitGroup            // Shared WaitGroup (ptr)
}

// -----------------------------------------------------------------------------

func NewMultiPetManager(coordinators []*Coordinator, log *logger.Logger) *MultiPetManager {
	m := &MultiPetManager{
		Coordinators: make(map[int64]*Coordinator),
		Logger:       log,
	}
	for _, c := range coordinators {
		m.Coordinators[c.PetID()] = c
	}
	return m
}

// -----------------------------------------------------------------------------

// AddCoordinator registers a pet and starts it if the manager is running
func (m *MultiPetManager) AddCoordinator(c *Coordinator) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := c.PetID()
	if _, exists := m.Coordinators[id]; exists {
		return fmt.Errorf("pet %d already exists", id)
	}
	m.Coordinators[id] = c
	m.Logger.Info("Added pet: %d", id)

	if m.outputChan != nil && m.ctx != nil {
		if err := c.Start(m.ctx, m.outputChan, m.wg); err != nil {
			return fmt.Errorf("failed to start pet %d: %w", id, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// RemoveCoordinator stops and removes a pet
func (m *MultiPetManager) RemoveCoordinator(petID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, exists := m.Coordinators[petID]
	if !exists {
		return fmt.Errorf("pet %d not found", petID)
	}
	if m.ctx != nil {
		if err := c.Stop(); err != nil {
			m.Logger.Error("Error stopping pet %d: %v", petID, err)
		}
	}
	delete(m.Coordinators, petID)
	m.Logger.Info("Removed pet: %d", petID)
	return nil
}

// -----------------------------------------------------------------------------

func (m *MultiPetManager) Get(petID int64) (*Coordinator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, exists := m.Coordinators[petID]
	if !exists {
		return nil, fmt.Errorf("pet %d: %w", petID, helpers.ErrUnknownPet)
	}
	return c, nil
}

// -----------------------------------------------------------------------------

// All returns every coordinator ordered by pet id.
func (m *MultiPetManager) All() []*Coordinator {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]*Coordinator, 0, len(m.Coordinators))
	for _, c := range m.Coordinators {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].PetID() < list[j].PetID() })
	return list
}

// -----------------------------------------------------------------------------

// Start starts all coordinators
func (m *MultiPetManager) Start(parentCtx context.Context, outputChan chan<- models.MCycleResult, wg *sync.WaitGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx != nil {
		return fmt.Errorf("MultiPetManager is already running")
	}

	ctx, cancel := context.WithCancel(parentCtx)
	m.ctx = ctx
	m.cancelFunc = cancel
	m.outputChan = outputChan
	m.wg = wg

	for id, c := range m.Coordinators {
		if err := c.Start(m.ctx, m.outputChan, m.wg); err != nil {
			m.Logger.Error("Failed to start pet %d: %v", id, err)
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop stops all coordinators by cancelling the internal context
func (m *MultiPetManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return nil
	}

	m.Logger.Info("Stopping MultiPetManager...")
	for _, c := range m.Coordinators {
		_ = c.Stop()
	}
	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	m.cancelFunc = nil
	m.ctx = nil
	m.Logger.Info("MultiPetManager Stopped.")
	return nil
}

// -----------------------------------------------------------------------------

// RefreshAll runs one cycle for every pet concurrently. Cancellation of ctx
// is the only error returned.
func (m *MultiPetManager) RefreshAll(ctx context.Context) (map[int64]models.MCycleResult, error) {
	coords := m.All()
	results := make(map[int64]models.MCycleResult, len(coords))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range coords {
		g.Go(func() error {
			res, err := c.Refresh(gctx)
			if err != nil {
				return err
			}
			mu.Lock()
			results[c.PetID()] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// -----------------------------------------------------------------------------

// UpdateCredentials re-authenticates every pet with the same account.
// Returns the first login error; cycle outcomes are in the result map.
func (m *MultiPetManager) UpdateCredentials(ctx context.Context, username, password string) (map[int64]models.MCycleResult, error) {
	coords := m.All()
	results := make(map[int64]models.MCycleResult, len(coords))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range coords {
		g.Go(func() error {
			res, err := c.Reauthenticate(gctx, username, password)
			if err != nil {
				return fmt.Errorf("pet %d: %w", c.PetID(), err)
			}
			mu.Lock()
			results[c.PetID()] = res
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

// -----------------------------------------------------------------------------

// Status describes one coordinator.
func (c *Coordinator) Status() models.MPetStatus {
	st := models.MPetStatus{PetID: c.petID, State: c.State()}
	if res, ok := c.Latest(); ok {
		at := res.At
		st.LastKind = res.Kind
		st.LastReason = res.Reason
		st.LastAt = &at
	}
	if snap := c.Snapshot(); snap != nil {
		st.SnapshotID = snap.ID
	}
	return st
}

// -----------------------------------------------------------------------------

func (m *MultiPetManager) Statuses() []models.MPetStatus {
	coords := m.All()
	out := make([]models.MPetStatus, 0, len(coords))
	for _, c := range coords {
		out = append(out, c.Status())
	}
	return out
}

// -----------------------------------------------------------------------------

func (m *MultiPetManager) LastSnapshot(petID int64) (*models.MSnapshot, error) {
	c, err := m.Get(petID)
	if err != nil {
		return nil, err
	}
	return c.Snapshot(), nil
}

// -----------------------------------------------------------------------------

func (m *MultiPetManager) RefreshPet(ctx context.Context, petID int64) (models.MCycleResult, error) {
	c, err := m.Get(petID)
	if err != nil {
		return models.MCycleResult{}, err
	}
	return c.Refresh(ctx)
}
