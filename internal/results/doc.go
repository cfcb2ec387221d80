// Package results defines the record a worker group reports once its
// distance vector has converged, the JSON payload carried inside a frame, and
// the aggregator-side Store that collects one record per worker.
//
// # Payload
//
// A record travels as a JSON object:
//
//	{"worker_id": 1, "distances": [0, 1, 2, null]}
//
// Unreachable entries (positive infinity) have no JSON number form and are
// written as null; Unmarshal turns null back into graph.Unreachable.
//
// # Store
//
// Store maps worker ID to distance vector. A single mutex serializes every
// insert and every query, so connection handlers may share one Store by
// pointer. A later record for the same worker replaces the earlier one and
// entries are never removed during a run.
//
// Completion is event driven: every Insert wakes the goroutines blocked in
// Wait, which return as soon as enough distinct workers have reported.
//
//	store := results.NewStore()
//	go srv.Serve(ctx, l) // handlers call store.Insert
//	if err := store.Wait(ctx, 2); err != nil {
//	    return err
//	}
//	snapshot := store.Snapshot()
package results
