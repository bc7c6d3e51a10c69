package grpc_control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"alphatrak-observer/src/config"
	"alphatrak-observer/src/helpers"
	"alphatrak-observer/src/interfaces"
	"alphatrak-observer/src/logger"
	"alphatrak-observer/src/models"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ControlService implements the ObserverControlServer interface
type ControlService struct {
	UnimplementedObserverControlServer
	Config     *config.Config
	Control    interfaces.IObserverControl
	ConfigPath string
	Logger     *logger.Logger
	Health     *health.Server
}

// NewControlService creates a new instance of ControlService
func NewControlService(
	cfg *config.Config,
	control interfaces.IObserverControl,
	cfgPath string,
	log *logger.Logger,
) *ControlService {
	s := &ControlService{
		Config:     cfg,
		Control:    control,
		ConfigPath: cfgPath,
		Logger:     log,
		Health:     health.NewServer(),
	}
	for _, st := range control.Statuses() {
		s.Health.SetServingStatus(HealthServiceName(st.PetID), healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return s
}

// -----------------------------------------------------------------------------

// HealthServiceName is the health-check service name of one pet.
func HealthServiceName(petID int64) string {
	return fmt.Sprintf("%s/pet-%d", ObserverControl_ServiceName, petID)
}

// UpdateHealth mirrors a cycle outcome into the health service: a pet serves
// while its latest cycle produced a snapshot.
func (s *ControlService) UpdateHealth(result models.MCycleResult) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if result.OK() {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.Health.SetServingStatus(HealthServiceName(result.PetID), st)
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(map[string]any{"pets": s.Control.Statuses()})
}

// -----------------------------------------------------------------------------

// Refresh runs one cycle for {"pet_id": n} and returns its result.
func (s *ControlService) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	petID, ok := models.AsInt64(req.GetFields()["pet_id"].AsInterface())
	if !ok || petID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "pet_id is required")
	}

	result, err := s.Control.RefreshPet(ctx, petID)
	if err != nil {
		return nil, toStatus(err)
	}
	s.UpdateHealth(result)
	s.Logger.Info("gRPC: Refresh for pet %d finished with %s", petID, result.Kind)
	return toStruct(result)
}

// -----------------------------------------------------------------------------

// UpdateCredentials re-authenticates every pet with {"username", "password"}.
// Only the username is persisted.
func (s *ControlService) UpdateCredentials(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	username := fields["username"].GetStringValue()
	password := fields["password"].GetStringValue()
	if username == "" || password == "" {
		return nil, status.Error(codes.InvalidArgument, "username and password are required")
	}

	results, err := s.Control.UpdateCredentials(ctx, username, password)
	if err != nil {
		s.Logger.Warning("gRPC: UpdateCredentials failed: %v", err)
		return nil, toStatus(err)
	}
	for _, r := range results {
		s.UpdateHealth(r)
	}

	if s.Config != nil && s.Config.Credentials.Username != username {
		s.Config.Credentials.Username = username
		if s.ConfigPath != "" {
			if err := s.Config.Save(s.ConfigPath); err != nil {
				s.Logger.Error("gRPC: Failed to save config: %v", err)
			}
		}
	}

	byPet := make(map[string]models.MCycleResult, len(results))
	for id, r := range results {
		byPet[fmt.Sprint(id)] = r
	}
	return toStruct(map[string]any{"results": byPet})
}

// -----------------------------------------------------------------------------

// toStruct converts any JSON-encodable value through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return out, nil
}

// toStatus maps the error taxonomy onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, helpers.ErrUnknownPet):
		return status.Error(codes.NotFound, err.Error())
	case helpers.IsAuthError(err):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, helpers.ErrAPIFailure):
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
