package worker

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/fitter-core/internal/backend"
	"github.com/GoSim-25-26J-441/fitter-core/internal/fitness"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/config"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/logger"
)

// ErrNoWorkers is returned when a client is created without addresses.
var ErrNoWorkers = errors.New("no worker addresses")

// Client is a pool of worker connections usable as a backend.Runner. Lane
// i of the executor is served by worker i modulo the pool size, which is
// also the reported engine id.
type Client struct {
	addrs []string
	conns []*grpc.ClientConn
}

// Dial connects to every address. Connections use insecure transport
// credentials unless opts override them.
func Dial(addrs []string, opts ...grpc.DialOption) (*Client, error) {
	if len(addrs) == 0 {
		return nil, ErrNoWorkers
	}
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	c := &Client{addrs: append([]string(nil), addrs...)}
	for _, addr := range addrs {
		conn, err := grpc.NewClient(addr, opts...)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to dial worker %s: %w", addr, err)
		}
		c.conns = append(c.conns, conn)
	}
	return c, nil
}

// Size returns the number of workers.
func (c *Client) Size() int {
	return len(c.conns)
}

// Broadcast pushes the shared resource to every worker.
func (c *Client) Broadcast(ctx context.Context, shared fitness.Shared) error {
	payload, err := shared.Struct()
	if err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	for i, conn := range c.conns {
		g.Go(func() error {
			if err := conn.Invoke(ctx, broadcastMethod, payload, new(structpb.Struct)); err != nil {
				return fmt.Errorf("broadcast to worker %d (%s): %w", i, c.addrs[i], err)
			}
			logger.Info("shared resource broadcast", "engine_id", i, "addr", c.addrs[i])
			return nil
		})
	}
	return g.Wait()
}

// Run evaluates job on the worker owning slot.
func (c *Client) Run(ctx context.Context, slot int, job *config.Tree) (backend.Outcome, error) {
	engineID := slot % len(c.conns)
	req, err := job.Struct()
	if err != nil {
		return backend.Outcome{EngineID: engineID}, err
	}
	resp := new(structpb.Struct)
	if err := c.conns[engineID].Invoke(ctx, evaluateMethod, req, resp); err != nil {
		return backend.Outcome{EngineID: engineID}, err
	}
	fit, artifact := decodeOutcome(resp)
	return backend.Outcome{Fitness: fit, Artifact: artifact, EngineID: engineID}, nil
}

// Close closes every connection.
func (c *Client) Close() error {
	var errs []error
	for _, conn := range c.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
