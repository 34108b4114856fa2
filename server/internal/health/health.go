package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/sasilab/sasi/pkg/viability"
	"github.com/sasilab/sasi/server/internal/auth"
	"github.com/sasilab/sasi/server/internal/store"
)

// ViabilityService is the health service name that follows the newest run.
const ViabilityService = "sasi.viability"

// NewServer returns a gRPC server that enforces authn on unary and streaming
// calls.
func NewServer(authn auth.Authenticator) *grpc.Server {
	return grpc.NewServer(
		grpc.ChainUnaryInterceptor(authn.UnaryInterceptor()),
		grpc.ChainStreamInterceptor(authn.StreamInterceptor()),
	)
}

// Reporter keeps the health server's statuses in line with the run store.
type Reporter struct {
	store    *store.Store
	interval time.Duration
	srv      *grpchealth.Server

	mu   sync.Mutex
	last healthpb.HealthCheckResponse_ServingStatus
}

// NewReporter returns a Reporter with both services SERVING.
func NewReporter(st *store.Store, interval time.Duration) *Reporter {
	srv := grpchealth.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	srv.SetServingStatus(ViabilityService, healthpb.HealthCheckResponse_SERVING)
	return &Reporter{
		store:    st,
		interval: interval,
		srv:      srv,
		last:     healthpb.HealthCheckResponse_SERVING,
	}
}

// Register adds the health service to s.
func (r *Reporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, r.srv)
}

// Update sets the viability status from the newest live run and returns it.
func (r *Reporter) Update() healthpb.HealthCheckResponse_ServingStatus {
	var newest *store.Run
	if runs := r.store.List(); len(runs) > 0 {
		newest = runs[0]
	}
	st := Status(newest)

	r.mu.Lock()
	changed := st != r.last
	r.last = st
	r.mu.Unlock()

	if changed {
		r.srv.SetServingStatus(ViabilityService, st)
		attrs := []any{"status", st.String()}
		if newest != nil {
			attrs = append(attrs, "run", newest.ID, "state", newest.Final.State)
		}
		slog.Info("health: viability status changed", attrs...)
	}
	return st
}

// Run refreshes the status every interval until ctx is cancelled, then marks
// every service NOT_SERVING.
func (r *Reporter) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	r.Update()
	for {
		select {
		case <-ctx.Done():
			r.srv.Shutdown()
			return
		case <-t.C:
			r.Update()
		}
	}
}

// Status maps a run to a serving status. No run counts as SERVING.
func Status(run *store.Run) healthpb.HealthCheckResponse_ServingStatus {
	if run != nil && viability.State(run.Final.State).Collapsed() {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}
