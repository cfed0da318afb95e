package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/GoSim-25-26J-441/fitter-core/internal/worker"
)

func newWorkerCmd() *cobra.Command {
	var listenAddr string
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Serve simulator evaluations over gRPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			lis, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveWorker(ctx, lis, httpAddr)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", ":50051", "gRPC listen address")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP status listen address (disabled when empty)")
	return cmd
}

func serveWorker(ctx context.Context, lis net.Listener, httpAddr string) error {
	srv := worker.NewServer(worker.DefaultEvaluatorFactory)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Serve(ctx, lis, srv)
	})
	if httpAddr != "" {
		g.Go(func() error {
			return worker.ServeHTTP(ctx, httpAddr, srv)
		})
	}
	return g.Wait()
}
