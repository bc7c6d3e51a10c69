package main

import (
	"context"
	"fmt"
	"net"

	"alphatrak-observer/src/config"
	pb "alphatrak-observer/src/grpc_control"
	"alphatrak-observer/src/interfaces"
	"alphatrak-observer/src/logger"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const defaultGrpcPort = 50051

// -----------------------------------------------------------------------------

// startServers runs the HTTP API and the gRPC control server until ctx ends.
// The returned context is cancelled as soon as either server fails.
func startServers(
	ctx context.Context,
	srv interfaces.IDataExchanger,
	controlService *pb.ControlService,
	config *config.Config,
	appLogger *logger.Logger,
) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)

	// 1. REST / WebSocket server
	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return srv.Stop()
	})

	// 2. gRPC Control Server
	port := config.GrpcPort
	if port == 0 {
		port = defaultGrpcPort
	}
	addr := fmt.Sprintf("%s:%d", config.GrpcHost, port)

	grpcServer := grpc.NewServer()
	pb.RegisterObserverControlServer(grpcServer, controlService)
	healthpb.RegisterHealthServer(grpcServer, controlService.Health)

	g.Go(func() error {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen for gRPC: %w", err)
		}
		appLogger.Info("Starting gRPC Control Server on %s", addr)
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("failed to serve gRPC: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		controlService.Health.Shutdown()
		grpcServer.GracefulStop()
		return nil
	})

	return g, gctx
}
