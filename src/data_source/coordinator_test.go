package datasource

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"alphatrak-observer/src/analysis"
	"alphatrak-observer/src/helpers"
	"alphatrak-observer/src/interfaces"
	"alphatrak-observer/src/logger"
	"alphatrak-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchFunc func(ctx context.Context, token string, from, to time.Time) (*models.MActivityPayload, error)

// fakeClient records the token and window of every fetch.
type fakeClient struct {
	mu     sync.Mutex
	token  string
	fetch  fetchFunc
	tokens []string
	froms  []time.Time
	tos    []time.Time
}

func (f *fakeClient) FetchActivity(ctx context.Context, from, to time.Time, _ string) (*models.MActivityPayload, error) {
	f.mu.Lock()
	token := f.token
	f.tokens = append(f.tokens, token)
	f.froms = append(f.froms, from)
	f.tos = append(f.tos, to)
	fn := f.fetch
	f.mu.Unlock()
	return fn(ctx, token, from, to)
}

func (f *fakeClient) ValidateConnection(ctx context.Context) (bool, error) {
	_, err := f.FetchActivity(ctx, time.Time{}, time.Time{}, "")
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return err == nil, nil
}

func (f *fakeClient) SetToken(token string) {
	f.mu.Lock()
	f.token = token
	f.mu.Unlock()
}

func (f *fakeClient) seenTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...)
}

type fakeAuth struct {
	result *models.MLoginResult
	err    error
	calls  int
}

func (a *fakeAuth) Login(ctx context.Context, username, password string) (*models.MLoginResult, error) {
	a.calls++
	return a.result, a.err
}

func payloadWithGlucose() *models.MActivityPayload {
	return &models.MActivityPayload{
		Success: true,
		Categories: map[models.MCategory][]models.MEntry{
			models.CategoryBloodGlucose: {{"GlucoseEntryDateTime": "2024-01-02T08:00:00", "GlucoseLevel": 95.0}},
		},
	}
}

func ok(ctx context.Context, token string, from, to time.Time) (*models.MActivityPayload, error) {
	return payloadWithGlucose(), nil
}

func quietLogger() *logger.Logger {
	log := logger.NewLogger(nil, "CoordinatorTest")
	log.SetOutput(io.Discard)
	return log
}

var fixedNow = time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)

func newTestCoordinator(client *fakeClient, auth *fakeAuth) *Coordinator {
	log := quietLogger()
	var newAuth func() interfaces.IAuthenticator
	if auth != nil {
		newAuth = func() interfaces.IAuthenticator { return auth }
	}
	return NewCoordinator(7, client, newAuth, analysis.NewAnalysisFacade(&models.MConfig{}, log),
		CoordinatorOptions{Interval: time.Hour, Now: func() time.Time { return fixedNow }}, log)
}

// -----------------------------------------------------------------------------

func TestRefresh_Snapshot(t *testing.T) {
	client := &fakeClient{token: "t", fetch: ok}
	c := newTestCoordinator(client, nil)
	assert.Equal(t, models.StateIdle, c.State())

	res, err := c.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.ResultSnapshot, res.Kind)
	assert.True(t, res.OK())
	assert.Equal(t, int64(7), res.Snapshot.PetID)
	assert.Equal(t, models.StateReady, c.State())
	assert.Same(t, res.Snapshot, c.Snapshot())
	assert.Equal(t, 1, res.Metrics.Entries)

	assert.Equal(t, fixedNow, client.tos[0])
	assert.Equal(t, fixedNow.Add(-7*24*time.Hour), client.froms[0])

	latest, found := c.Latest()
	assert.True(t, found)
	assert.Equal(t, res.Snapshot.ID, latest.Snapshot.ID)
}

func TestRefresh_Classification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		data  *models.MActivityPayload
		kind  models.MResultKind
		state models.MCoordinatorState
	}{
		{"auth", helpers.NewAuthError("expired", 401, nil), nil, models.ResultAuthRequired, models.StateAuthRequired},
		{"connection", helpers.NewConnectionError("timeout", context.DeadlineExceeded), nil, models.ResultTransient, models.StateFailed},
		{"api", helpers.NewApiError("bad", 500, nil), nil, models.ResultTransient, models.StateFailed},
		{"no glucose", nil, &models.MActivityPayload{Categories: map[models.MCategory][]models.MEntry{
			models.CategoryFeeding: {{"FeedingEntryDateTime": "2024-01-01T00:00:00"}},
		}}, models.ResultTransient, models.StateFailed},
		{"unexpected", errors.New("boom"), nil, models.ResultFatal, models.StateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{fetch: func(context.Context, string, time.Time, time.Time) (*models.MActivityPayload, error) {
				return tt.data, tt.err
			}}
			c := newTestCoordinator(client, nil)

			res, err := c.Refresh(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.kind, res.Kind)
			assert.Equal(t, tt.state, c.State())
			assert.NotEmpty(t, res.Reason)
			assert.Nil(t, res.Snapshot)
			assert.Nil(t, c.Snapshot())
		})
	}
}

func TestRefresh_KeepsLastGoodSnapshot(t *testing.T) {
	fail := false
	client := &fakeClient{fetch: func(ctx context.Context, token string, from, to time.Time) (*models.MActivityPayload, error) {
		if fail {
			return nil, helpers.NewConnectionError("down", nil)
		}
		return payloadWithGlucose(), nil
	}}
	c := newTestCoordinator(client, nil)

	first, err := c.Refresh(context.Background())
	require.NoError(t, err)
	fail = true
	second, err := c.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.ResultTransient, second.Kind)
	assert.Same(t, first.Snapshot, c.Snapshot())
	latest, _ := c.Latest()
	assert.Equal(t, models.ResultTransient, latest.Kind)
}

func TestRefresh_CancellationRestoresState(t *testing.T) {
	client := &fakeClient{fetch: ok}
	c := newTestCoordinator(client, nil)
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	client.fetch = func(ctx context.Context, token string, from, to time.Time) (*models.MActivityPayload, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	out := make(chan models.MCycleResult, 4)
	c.runMu.Lock()
	c.outputChan, c.ctx = out, context.Background()
	c.runMu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = c.Refresh(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.StateReady, c.State())
	assert.Empty(t, out, "cancelled cycles are not published")
	latest, _ := c.Latest()
	assert.Equal(t, models.ResultSnapshot, latest.Kind)
}

func TestRefresh_ConcurrentCallsAreSerialized(t *testing.T) {
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	release := make(chan struct{})
	client := &fakeClient{fetch: func(ctx context.Context, token string, from, to time.Time) (*models.MActivityPayload, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		<-release
		mu.Lock()
		inFlight--
		mu.Unlock()
		return payloadWithGlucose(), nil
	}}
	c := newTestCoordinator(client, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Refresh(context.Background())
			assert.NoError(t, err)
		}()
	}
	time.Sleep(30 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, maxInFlight)
}

// -----------------------------------------------------------------------------

func TestReauthenticate_SwapsTokenOnLiveClient(t *testing.T) {
	client := &fakeClient{token: "old", fetch: func(ctx context.Context, token string, from, to time.Time) (*models.MActivityPayload, error) {
		if token != "new" {
			return nil, helpers.NewAuthError("expired", 401, nil)
		}
		return payloadWithGlucose(), nil
	}}
	auth := &fakeAuth{result: &models.MLoginResult{Token: "new"}}
	c := newTestCoordinator(client, auth)

	res, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ResultAuthRequired, res.Kind)

	res, err = c.Reauthenticate(context.Background(), "u", "p")
	require.NoError(t, err)
	assert.Equal(t, models.ResultSnapshot, res.Kind)
	assert.Equal(t, models.StateReady, c.State())
	assert.Equal(t, []string{"old", "new"}, client.seenTokens())
	assert.Equal(t, 1, auth.calls)
}

func TestReauthenticate_TransientRefreshIsSwallowed(t *testing.T) {
	client := &fakeClient{fetch: func(context.Context, string, time.Time, time.Time) (*models.MActivityPayload, error) {
		return nil, helpers.NewConnectionError("down", nil)
	}}
	c := newTestCoordinator(client, &fakeAuth{result: &models.MLoginResult{Token: "new"}})

	res, err := c.Reauthenticate(context.Background(), "u", "p")
	require.NoError(t, err)
	assert.Equal(t, models.ResultTransient, res.Kind)
	assert.Equal(t, []string{"new"}, client.seenTokens())
}

func TestReauthenticate_LoginFailureKeepsToken(t *testing.T) {
	client := &fakeClient{token: "old", fetch: ok}
	c := newTestCoordinator(client, &fakeAuth{err: helpers.NewAuthError("invalid credentials", 401, nil)})

	_, err := c.Reauthenticate(context.Background(), "u", "bad")
	assert.True(t, helpers.IsAuthError(err))
	assert.Empty(t, client.seenTokens())
	assert.Equal(t, "old", client.token)

	c = newTestCoordinator(client, &fakeAuth{result: &models.MLoginResult{Body: map[string]any{}}})
	_, err = c.Reauthenticate(context.Background(), "u", "p")
	assert.True(t, helpers.IsAuthError(err))
	assert.Equal(t, "old", client.token)

	c = newTestCoordinator(client, nil)
	_, err = c.Reauthenticate(context.Background(), "u", "p")
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestStart_PublishesAndStops(t *testing.T) {
	client := &fakeClient{token: "t", fetch: ok}
	c := newTestCoordinator(client, nil)

	out := make(chan models.MCycleResult, 4)
	var wg sync.WaitGroup
	require.NoError(t, c.Start(context.Background(), out, &wg))
	assert.Error(t, c.Start(context.Background(), out, &wg))

	select {
	case res := <-out:
		assert.Equal(t, models.ResultSnapshot, res.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial cycle")
	}

	c.RequestRefresh()
	c.RequestRefresh()
	select {
	case res := <-out:
		assert.Equal(t, int64(7), res.PetID)
	case <-time.After(2 * time.Second):
		t.Fatal("manual refresh did not run")
	}

	require.NoError(t, c.Stop())
	wg.Wait()
	assert.Error(t, c.Stop())
}

func TestTick_SkipsWhileAuthRequired(t *testing.T) {
	client := &fakeClient{fetch: func(context.Context, string, time.Time, time.Time) (*models.MActivityPayload, error) {
		return nil, helpers.NewAuthError("expired", 401, nil)
	}}
	c := newTestCoordinator(client, nil)

	c.tick(context.Background(), false)
	assert.Equal(t, models.StateAuthRequired, c.State())
	c.tick(context.Background(), false)
	assert.Len(t, client.seenTokens(), 1)

	c.tick(context.Background(), true)
	assert.Len(t, client.seenTokens(), 2)
}

func TestValidate(t *testing.T) {
	c := newTestCoordinator(&fakeClient{fetch: ok}, nil)
	valid, err := c.Validate(context.Background())
	require.NoError(t, err)
	assert.True(t, valid)
}
