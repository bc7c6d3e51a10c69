package datasource

import (
	"context"
	"sync"
	"testing"
	"time"

	"alphatrak-observer/src/analysis"
	"alphatrak-observer/src/helpers"
	"alphatrak-observer/src/interfaces"
	"alphatrak-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPetCoordinator(petID int64, client *fakeClient, auth *fakeAuth) *Coordinator {
	log := quietLogger()
	return NewCoordinator(petID, client, func() interfaces.IAuthenticator { return auth },
		analysis.NewAnalysisFacade(&models.MConfig{}, log), CoordinatorOptions{Interval: time.Hour}, log)
}

func TestMultiPetManager_RefreshAllIsIndependent(t *testing.T) {
	good := newPetCoordinator(1, &fakeClient{fetch: ok}, nil)
	bad := newPetCoordinator(2, &fakeClient{fetch: func(context.Context, string, time.Time, time.Time) (*models.MActivityPayload, error) {
		return nil, helpers.NewApiError("bad", 500, nil)
	}}, nil)
	m := NewMultiPetManager([]*Coordinator{bad, good}, quietLogger())

	results, err := m.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ResultSnapshot, results[1].Kind)
	assert.Equal(t, models.ResultTransient, results[2].Kind)

	all := m.All()
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].PetID())

	got, err := m.Get(2)
	require.NoError(t, err)
	assert.Same(t, bad, got)
	_, err = m.Get(3)
	assert.Error(t, err)
}

func TestMultiPetManager_UpdateCredentials(t *testing.T) {
	auth := &fakeAuth{result: &models.MLoginResult{Token: "fresh"}}
	c1 := &fakeClient{fetch: ok}
	m := NewMultiPetManager([]*Coordinator{newPetCoordinator(1, c1, auth)}, quietLogger())

	results, err := m.UpdateCredentials(context.Background(), "u", "p")
	require.NoError(t, err)
	assert.Equal(t, models.ResultSnapshot, results[1].Kind)
	assert.Equal(t, []string{"fresh"}, c1.seenTokens())

	failing := &fakeAuth{err: helpers.NewAuthError("invalid credentials", 401, nil)}
	m = NewMultiPetManager([]*Coordinator{newPetCoordinator(1, &fakeClient{fetch: ok}, failing)}, quietLogger())
	_, err = m.UpdateCredentials(context.Background(), "u", "bad")
	assert.True(t, helpers.IsAuthError(err))
}

func TestMultiPetManager_StartAddRemoveStop(t *testing.T) {
	m := NewMultiPetManager([]*Coordinator{newPetCoordinator(1, &fakeClient{fetch: ok}, nil)}, quietLogger())

	out := make(chan models.MCycleResult, 8)
	var wg sync.WaitGroup
	require.NoError(t, m.Start(context.Background(), out, &wg))
	assert.Error(t, m.Start(context.Background(), out, &wg))

	require.NoError(t, m.AddCoordinator(newPetCoordinator(2, &fakeClient{fetch: ok}, nil)))
	assert.Error(t, m.AddCoordinator(newPetCoordinator(2, &fakeClient{fetch: ok}, nil)))

	seen := map[int64]bool{}
	deadline := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case res := <-out:
			seen[res.PetID] = true
		case <-deadline:
			t.Fatalf("only saw results for %v", seen)
		}
	}

	require.NoError(t, m.RemoveCoordinator(2))
	assert.Error(t, m.RemoveCoordinator(2))

	require.NoError(t, m.Stop())
	wg.Wait()
	require.NoError(t, m.Stop())
}

func TestMultiPetManager_ControlSurface(t *testing.T) {
	m := NewMultiPetManager([]*Coordinator{
		newPetCoordinator(2, &fakeClient{fetch: ok}, nil),
		newPetCoordinator(1, &fakeClient{fetch: ok}, nil),
	}, quietLogger())

	statuses := m.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, int64(1), statuses[0].PetID)
	assert.Equal(t, models.StateIdle, statuses[0].State)
	assert.Nil(t, statuses[0].LastAt)

	snap, err := m.LastSnapshot(1)
	require.NoError(t, err)
	assert.Nil(t, snap)

	res, err := m.RefreshPet(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.ResultSnapshot, res.Kind)

	snap, err = m.LastSnapshot(1)
	require.NoError(t, err)
	require.NotNil(t, snap)

	st := m.Statuses()[0]
	assert.Equal(t, models.StateReady, st.State)
	assert.Equal(t, models.ResultSnapshot, st.LastKind)
	require.NotNil(t, st.LastAt)
	assert.Equal(t, snap.ID, st.SnapshotID)

	_, err = m.RefreshPet(context.Background(), 9)
	assert.ErrorIs(t, err, helpers.ErrUnknownPet)
	_, err = m.LastSnapshot(9)
	assert.Error(t, err)
}
