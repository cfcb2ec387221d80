// Package aggregator implements the server that collects converged results
// from worker groups.
//
// # Protocol
//
// A worker opens a TCP connection, sends exactly one frame (see package
// frame) whose payload is a JSON record (see package results), and waits for
// the two ASCII bytes "OK". The server then closes the connection.
//
//	worker                          aggregator
//	  | ---- header (8 bytes) -------> |
//	  | ---- payload (len bytes) ----> |  decode, parse, store.Insert
//	  | <--------------- "OK" -------- |
//	  |            close               |
//
// # Failure isolation
//
// A bad magic, an oversized length, a truncated payload or an unparsable
// record closes only the offending connection. Nothing is stored and nothing
// is written back; the accept loop and every other handler carry on.
//
// # Lifecycle
//
// Every accepted connection is handled in its own goroutine, all tracked by
// the Server. Close stops accepting, closes in-flight connections and returns
// only after every handler has finished, so the server's lifetime is
// deterministic. Canceling the context passed to Serve has the same effect.
//
// There is no bound on concurrent connections and, unless WithReadTimeout is
// given, no deadline on a connection that stops sending.
package aggregator
