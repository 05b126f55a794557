// Package grpc runs the operations endpoint: a gRPC health service whose
// per-dependency statuses are kept current by periodic probes.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/yggkeeper/internal/logging"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const defaultProbeInterval = 10 * time.Second

// Probe checks one dependency. Name is the health service name clients
// query; the empty name reports the server as a whole.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsServer serves the gRPC health service and keeps it in sync with the
// dependency probes.
type OpsServer struct {
	address  string
	logger   logging.Logger
	health   *health.Server
	probes   []Probe
	interval time.Duration
	timeout  time.Duration
}

type Option func(*OpsServer)

// WithProbeInterval sets how often probes run. Non-positive values keep
// the default.
func WithProbeInterval(d time.Duration) Option {
	return func(s *OpsServer) {
		if d > 0 {
			s.interval = d
		}
	}
}

// NewOpsServer creates the ops server.
//
// Parameters:
//   - address: listen address, e.g. ":3200"
//   - l: base logger
//   - probes: dependency checks folded into the overall serving status
//   - opts: optional overrides
func NewOpsServer(address string, l logging.Logger, probes []Probe, opts ...Option) *OpsServer {
	s := &OpsServer{
		address:  address,
		logger:   l.With("module", "ops_server"),
		health:   health.NewServer(),
		probes:   probes,
		interval: defaultProbeInterval,
	}
	for _, o := range opts {
		o(s)
	}
	s.timeout = s.interval / 2
	return s
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *OpsServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "Starting ops gRPC server", "address", listen.Addr().String())
	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is cancelled, then marks every service as
// not serving and stops gracefully.
func (s *OpsServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.recoverInterceptor, s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	s.probe(ctx)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info(ctx, "Stopping ops gRPC server...")
				s.health.Shutdown()
				srv.GracefulStop()
				return
			case <-ticker.C:
				s.probe(ctx)
			}
		}
	}()

	return srv.Serve(lis)
}

// probe runs every check concurrently and publishes the results. The
// overall status is serving only when every probe passed.
func (s *OpsServer) probe(ctx context.Context) {
	results := make([]error, len(s.probes))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range s.probes {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, s.timeout)
			defer cancel()
			results[i] = p.Check(cctx)
			return nil
		})
	}
	_ = g.Wait()

	overall := healthpb.HealthCheckResponse_SERVING
	for i, p := range s.probes {
		status := healthpb.HealthCheckResponse_SERVING
		if err := results[i]; err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = status
			s.logger.Warn(ctx, "probe failed", "probe", p.Name, "error", err)
		}
		if p.Name != "" {
			s.health.SetServingStatus(p.Name, status)
		}
	}
	s.health.SetServingStatus("", overall)
}
