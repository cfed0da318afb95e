package worker

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"

	"github.com/GoSim-25-26J-441/fitter-core/pkg/logger"
)

// Serve runs srv on lis until ctx is done, then stops gracefully.
func Serve(ctx context.Context, lis net.Listener, srv *Server, opts ...grpc.ServerOption) error {
	grpcServer := grpc.NewServer(opts...)
	Register(grpcServer, srv)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gRPC worker listening", "addr", lis.Addr().String())
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("worker shutdown requested")
		grpcServer.GracefulStop()
		if err := <-errCh; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	}
}

// ServeHTTP exposes the status endpoints on addr until ctx is done.
func ServeHTTP(ctx context.Context, addr string, srv *Server) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           NewHTTPHandler(srv),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP status server listening", "addr", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
