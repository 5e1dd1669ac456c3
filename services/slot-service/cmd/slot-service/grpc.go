package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/md-rashed-zaman/apptslots/libs/grpcx"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/config"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/grpcserver"
	"google.golang.org/grpc"
)

func startGrpcServer(ctx context.Context, cfg config.Config, logger *slog.Logger, engine grpcserver.SlotQuerier) error {
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(grpcx.ServerOptions(logger.Log)...)
	health := grpcserver.Register(srv, engine, logger)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		health.Shutdown()
		srv.GracefulStop()
		logger.Info("grpc server stopped")
	}()

	return nil
}
