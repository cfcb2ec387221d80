// Package main implements the hopgraph aggregator, the process every worker
// group reports its converged distance vector to.
//
// The aggregator accepts one framed JSON record per TCP connection,
// acknowledges it with "OK" and keeps the latest vector per worker. Once the
// expected number of distinct workers has reported it prints the results
// and keeps serving late or repeated reports until it is stopped.
//
// Configuration:
//   - AGGREGATOR_LISTEN: listen address (default: ":12345")
//   - EXPECTED_WORKERS: distinct workers to wait for (default: 2)
//
// Example usage:
//
//	AGGREGATOR_LISTEN=:12345 EXPECTED_WORKERS=2 ./aggregator
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pterm/pterm"

	"github.com/dreamware/hopgraph/internal/aggregator"
	"github.com/dreamware/hopgraph/internal/results"
)

// logFatal is a variable to allow mocking log.Fatal in tests.
var logFatal = log.Fatalf

func main() {
	addr := getenv("AGGREGATOR_LISTEN", aggregator.DefaultAddr)
	expected, err := getenvInt("EXPECTED_WORKERS", 2)
	if err != nil {
		logFatal("config: %v", err)
	}
	if expected < 1 {
		logFatal("config: EXPECTED_WORKERS must be at least 1, got %d", expected)
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		logFatal("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		cancel()
	}()

	if err := run(ctx, l, expected, os.Stdout); err != nil {
		logFatal("aggregator: %v", err)
	}
	log.Println("aggregator stopped")
}

// run serves on l until ctx is done. The results table is written to out as
// soon as expected distinct workers have reported.
func run(ctx context.Context, l net.Listener, expected int, out io.Writer) error {
	store := results.NewStore()
	srv := aggregator.New(store)

	waitCtx, cancelWait := context.WithCancel(ctx)
	defer cancelWait()

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ctx, l)
		cancelWait()
	}()

	log.Printf("aggregator waiting for %d workers", expected)
	if err := store.Wait(waitCtx, expected); err == nil {
		log.Printf("aggregator: all %d workers reported", expected)
		if err := renderResults(out, store); err != nil {
			log.Printf("aggregator: render results: %v", err)
		}
	}

	select {
	case <-ctx.Done():
	case err := <-errc:
		return serveResult(err)
	}
	srv.Close()
	err := serveResult(<-errc)
	st := srv.Stats()
	log.Printf("aggregator: accepted=%d stored=%d rejected=%d", st.Accepted, st.Stored, st.Rejected)
	return err
}

func serveResult(err error) error {
	if errors.Is(err, aggregator.ErrServerClosed) {
		return nil
	}
	return err
}

// resultsTable lays out one row per stored worker, ordered by worker ID.
func resultsTable(store *results.Store) pterm.TableData {
	data := pterm.TableData{{"Worker", "Nodes", "Reachable", "Distances"}}
	for _, id := range store.WorkerIDs() {
		d, ok := store.Get(id)
		if !ok {
			continue
		}
		reachable := 0
		for i := range d {
			if d.IsReachable(i) {
				reachable++
			}
		}
		data = append(data, []string{
			strconv.Itoa(id),
			strconv.Itoa(len(d)),
			strconv.Itoa(reachable),
			d.String(),
		})
	}
	return data
}

func renderResults(out io.Writer, store *results.Store) error {
	table, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(resultsTable(store)).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, table)
	return err
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
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
