package grpc_control

import (
	"context"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"alphatrak-observer/src/config"
	"alphatrak-observer/src/helpers"
	"alphatrak-observer/src/logger"
	"alphatrak-observer/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakeControl struct {
	mu      sync.Mutex
	creds   []string
	credErr error
}

func (f *fakeControl) Statuses() []models.MPetStatus {
	return []models.MPetStatus{{PetID: 7, State: models.StateReady}}
}

func (f *fakeControl) LastSnapshot(petID int64) (*models.MSnapshot, error) {
	return nil, nil
}

func (f *fakeControl) RefreshPet(ctx context.Context, petID int64) (models.MCycleResult, error) {
	if petID != 7 {
		return models.MCycleResult{}, helpers.ErrUnknownPet
	}
	return models.MCycleResult{
		Kind:     models.ResultSnapshot,
		PetID:    7,
		At:       time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC),
		Snapshot: &models.MSnapshot{ID: "snap-7", PetID: 7},
	}, nil
}

func (f *fakeControl) UpdateCredentials(ctx context.Context, username, password string) (map[int64]models.MCycleResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = append(f.creds, username)
	if f.credErr != nil {
		return nil, f.credErr
	}
	return map[int64]models.MCycleResult{7: {Kind: models.ResultTransient, PetID: 7, Reason: "API error"}}, nil
}

func startService(t *testing.T, control *fakeControl, cfg *config.Config, cfgPath string) (ObserverControlClient, healthpb.HealthClient, *ControlService) {
	t.Helper()
	log := logger.NewLogger(nil, "ControlTest")
	log.SetOutput(io.Discard)

	svc := NewControlService(cfg, control, cfgPath, log)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterObserverControlServer(srv, svc)
	healthpb.RegisterHealthServer(srv, svc.Health)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewObserverControlClient(conn), healthpb.NewHealthClient(conn), svc
}

func testConfig() *config.Config {
	c := &config.Config{MConfig: &models.MConfig{
		Credentials: models.MCredentialsConfig{Username: "old@example.com", Token: "tok"},
		Pets:        []int64{7},
	}}
	c.ApplyDefaults()
	return c
}

func TestGetStatus(t *testing.T) {
	client, _, _ := startService(t, &fakeControl{}, testConfig(), "")

	resp, err := client.GetStatus(context.Background(), &emptypb.Empty{})
	require.NoError(t, err)

	pets := resp.GetFields()["pets"].GetListValue().GetValues()
	require.Len(t, pets, 1)
	pet := pets[0].GetStructValue().GetFields()
	assert.Equal(t, float64(7), pet["pet_id"].GetNumberValue())
	assert.Equal(t, "ready", pet["state"].GetStringValue())
}

func TestRefresh(t *testing.T) {
	client, healthClient, _ := startService(t, &fakeControl{}, testConfig(), "")
	ctx := context.Background()
	check := &healthpb.HealthCheckRequest{Service: HealthServiceName(7)}

	h, err := healthClient.Check(ctx, check)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, h.GetStatus())

	req, err := structpb.NewStruct(map[string]any{"pet_id": 7})
	require.NoError(t, err)
	resp, err := client.Refresh(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "snapshot", resp.GetFields()["kind"].GetStringValue())
	assert.Equal(t, "snap-7", resp.GetFields()["snapshot"].GetStructValue().GetFields()["id"].GetStringValue())

	h, err = healthClient.Check(ctx, check)
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, h.GetStatus())

	_, err = client.Refresh(ctx, &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	req, _ = structpb.NewStruct(map[string]any{"pet_id": 9})
	_, err = client.Refresh(ctx, req)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestUpdateCredentials(t *testing.T) {
	cfg := testConfig()
	path := filepath.Join(t.TempDir(), "config.yaml")
	control := &fakeControl{}
	client, _, _ := startService(t, control, cfg, path)
	ctx := context.Background()

	req, err := structpb.NewStruct(map[string]any{"username": "new@example.com", "password": "pw"})
	require.NoError(t, err)
	resp, err := client.UpdateCredentials(ctx, req)
	require.NoError(t, err)
	result := resp.GetFields()["results"].GetStructValue().GetFields()["7"].GetStructValue().GetFields()
	assert.Equal(t, "transient", result["kind"].GetStringValue())

	assert.Equal(t, "new@example.com", cfg.Credentials.Username)
	assert.FileExists(t, path)

	_, err = client.UpdateCredentials(ctx, &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	control.credErr = helpers.NewAuthError("invalid credentials", 401, nil)
	_, err = client.UpdateCredentials(ctx, req)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	control.credErr = helpers.NewConnectionError("timeout", nil)
	_, err = client.UpdateCredentials(ctx, req)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestToStatus(t *testing.T) {
	assert.Equal(t, codes.Canceled, status.Code(toStatus(context.Canceled)))
	assert.Equal(t, codes.DeadlineExceeded, status.Code(toStatus(context.DeadlineExceeded)))
	assert.Equal(t, codes.Unavailable, status.Code(toStatus(helpers.NewApiError("bad", 500, nil))))
	assert.Equal(t, codes.Internal, status.Code(toStatus(assert.AnError)))
}
