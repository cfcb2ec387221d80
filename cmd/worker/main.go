// Package main implements one rank of a hopgraph worker group.
//
// Every rank of a group loads the same fixture graph, selected by WORKER_ID,
// and runs the distributed relaxation from START_NODE together with the
// other ranks. When the group has converged, rank 0 reports the distance
// vector to the aggregator. A failed report is logged and the process still
// exits cleanly; a failed collective exits with status 1 because the whole
// group is then unusable.
//
// Configuration:
//   - WORKER_ID: worker identity and fixture selector (required)
//   - GROUP_RANK: rank within the group (default: 0)
//   - GROUP_SIZE: number of ranks (default: 1)
//   - GROUP_PEERS: comma-separated host:port per rank (required when GROUP_SIZE > 1)
//   - COLLECTIVE_TIMEOUT: give up on a stalled collective after this long (default: 0, never)
//   - START_NODE: source node (default: 0)
//   - AGGREGATOR_HOST: aggregator host (default: "master")
//   - AGGREGATOR_PORT: aggregator port (default: 12345)
//   - REPORT_ATTEMPTS: delivery attempts (default: 3)
//   - REPORT_BACKOFF: base delay between attempts (default: 1s)
//
// Example usage:
//
//	# two-rank group for worker 1
//	WORKER_ID=1 GROUP_SIZE=2 GROUP_RANK=0 GROUP_PEERS=w0:7000,w1:7000 ./worker
//	WORKER_ID=1 GROUP_SIZE=2 GROUP_RANK=1 GROUP_PEERS=w0:7000,w1:7000 ./worker
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/dreamware/hopgraph/internal/cluster"
	"github.com/dreamware/hopgraph/internal/collective"
	"github.com/dreamware/hopgraph/internal/graph"
	"github.com/dreamware/hopgraph/internal/relax"
	"github.com/dreamware/hopgraph/internal/report"
	"github.com/dreamware/hopgraph/internal/results"
)

// logFatal is a variable to allow mocking log.Fatal in tests.
// This indirection enables test code to intercept fatal errors
// without actually terminating the test process.
var logFatal = log.Fatalf

type config struct {
	aggregator        string
	group             cluster.GroupConfig
	workerID          int
	start             int
	reportAttempts    int
	reportBackoff     time.Duration
	collectiveTimeout time.Duration
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		logFatal("config: %v", err)
		return
	}

	ex, err := newExchanger(cfg)
	if err != nil {
		logFatal("worker[%d] rank %d: %v", cfg.workerID, cfg.group.Rank, err)
		return
	}
	ch := collective.NewChannel(ex)
	defer ch.Close()

	if err := run(context.Background(), cfg, ch); err != nil {
		logFatal("worker[%d] rank %d: %v", cfg.workerID, cfg.group.Rank, err)
	}
}

func loadConfig() (config, error) {
	var cfg config
	var err error

	if cfg.workerID, err = strconv.Atoi(mustGetenv("WORKER_ID")); err != nil {
		return cfg, fmt.Errorf("WORKER_ID: %w", err)
	}
	if cfg.group.Rank, err = getenvInt("GROUP_RANK", 0); err != nil {
		return cfg, err
	}
	if cfg.group.Size, err = getenvInt("GROUP_SIZE", 1); err != nil {
		return cfg, err
	}
	if cfg.group.Peers, err = cluster.ParsePeers(os.Getenv("GROUP_PEERS")); err != nil {
		return cfg, err
	}
	if err := cfg.group.Validate(); err != nil {
		return cfg, err
	}
	if cfg.collectiveTimeout, err = getenvDuration("COLLECTIVE_TIMEOUT", 0); err != nil {
		return cfg, err
	}
	if cfg.start, err = getenvInt("START_NODE", 0); err != nil {
		return cfg, err
	}
	port, err := getenvInt("AGGREGATOR_PORT", 12345)
	if err != nil {
		return cfg, err
	}
	cfg.aggregator = net.JoinHostPort(getenv("AGGREGATOR_HOST", "master"), strconv.Itoa(port))
	if cfg.reportAttempts, err = getenvInt("REPORT_ATTEMPTS", 3); err != nil {
		return cfg, err
	}
	if cfg.reportBackoff, err = getenvDuration("REPORT_BACKOFF", time.Second); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newExchanger returns the group transport: a lone in-process member for a
// single-rank group, an HTTP peer listening on this rank's port otherwise.
func newExchanger(cfg config) (collective.Exchanger, error) {
	if cfg.group.Size == 1 {
		return collective.NewGroup(1).Member(0), nil
	}
	addr, err := cfg.group.ListenAddr()
	if err != nil {
		return nil, err
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	log.Printf("worker[%d] rank %d/%d listening on %s", cfg.workerID, cfg.group.Rank, cfg.group.Size, l.Addr())
	p, err := collective.NewPeer(cfg.group.Rank, cfg.group.Peers, l, collective.WithTimeout(cfg.collectiveTimeout))
	if err != nil {
		l.Close()
		return nil, err
	}
	return p, nil
}

// run computes the distances on comm and, on the coordinator rank, reports
// them. Only a computation failure is returned.
func run(ctx context.Context, cfg config, comm relax.Collective) error {
	if comm.Rank() != cfg.group.Rank {
		return fmt.Errorf("configured as rank %d but transport is rank %d", cfg.group.Rank, comm.Rank())
	}
	g, err := graph.Fixture(cfg.workerID)
	if err != nil {
		return err
	}
	log.Printf("worker[%d] rank %d/%d relaxing %d nodes from %d", cfg.workerID, comm.Rank(), comm.Size(), g.N(), cfg.start)

	d, err := relax.Relax(g, cfg.start, comm, relax.WithRoundObserver(func(round int, d graph.Distances) {
		log.Printf("worker[%d] rank %d round %d: %v", cfg.workerID, comm.Rank(), round, d)
	}))
	if err != nil {
		return err
	}
	log.Printf("worker[%d] rank %d converged: %v", cfg.workerID, comm.Rank(), d)

	if !cfg.group.IsCoordinator() {
		return nil
	}
	r := report.New(cfg.aggregator,
		report.WithMaxAttempts(cfg.reportAttempts),
		report.WithBackoff(cfg.reportBackoff),
	)
	if err := r.Report(ctx, results.Record{WorkerID: cfg.workerID, Distances: d}); err != nil {
		log.Printf("worker[%d] result not delivered: %v", cfg.workerID, err)
	}
	return nil
}

// getenv retrieves an environment variable value with a fallback default.
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// mustGetenv retrieves a required environment variable, failing if not set.
func mustGetenv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		logFatal("missing env %s", k)
	}
	return v
}

func getenvInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func getenvDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}
