package aggregator

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dreamware/hopgraph/internal/frame"
	"github.com/dreamware/hopgraph/internal/results"
)

// ErrServerClosed is returned by Serve after Close.
var ErrServerClosed = errors.New("aggregator: server closed")

// DefaultAddr is the endpoint the aggregator binds on all interfaces.
const DefaultAddr = ":12345"

// Stats counts connection outcomes since the server started.
type Stats struct {
	Accepted int64 // connections accepted
	Stored   int64 // records inserted and acknowledged
	Rejected int64 // connections closed on a framing or parse error
}

// Server accepts result connections and feeds a shared Store.
// Thread-safe: Close may be called from any goroutine.
type Server struct {
	store       *results.Store
	listener    net.Listener
	conns       map[net.Conn]string // in-flight connection -> id
	decoder     frame.Decoder
	readTimeout time.Duration
	mu          sync.Mutex // protects listener, conns, closed
	wg          sync.WaitGroup
	accepted    atomic.Int64
	stored      atomic.Int64
	rejected    atomic.Int64
	closed      bool
}

// Option configures a Server.
type Option func(*Server)

// WithMaxPayload overrides the frame size bound (default frame.MaxPayload).
func WithMaxPayload(n uint32) Option {
	return func(s *Server) {
		s.decoder.Max = n
	}
}

// WithReadTimeout bounds how long a connection may take to deliver its frame.
// The default of zero waits indefinitely.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = d
	}
}

// New creates a server that inserts into store.
func New(store *results.Store, opts ...Option) *Server {
	s := &Server{
		store: store,
		conns: make(map[net.Conn]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListenAndServe binds addr and serves until Close or ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l until Close or ctx is done. It returns
// ErrServerClosed after a clean shutdown, once all handlers have finished.
// Other accept errors are retried; a listener closed underneath the server
// ends Serve with that error.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	log.Printf("aggregator listening on %s", l.Addr())

	var delay time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if s.isClosed() {
				s.wg.Wait()
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				s.Close()
				return err
			}
			// Descriptor exhaustion and the like clear up once handlers finish.
			delay = nextDelay(delay)
			log.Printf("aggregator accept error: %v; retrying in %v", err, delay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		id := uuid.NewString()
		if !s.track(conn, id) {
			conn.Close()
			continue
		}
		s.accepted.Add(1)
		go s.handle(conn, id)
	}
}

// Close stops accepting, closes in-flight connections and waits for every
// handler to return.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.wg.Wait()
		return nil
	}
	s.closed = true
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

// Addr returns the listening address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stats returns a snapshot of the connection counters.
func (s *Server) Stats() Stats {
	return Stats{
		Accepted: s.accepted.Load(),
		Stored:   s.stored.Load(),
		Rejected: s.rejected.Load(),
	}
}

// handle processes the single frame carried by conn.
func (s *Server) handle(conn net.Conn, id string) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	if s.readTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			log.Printf("aggregator[%s] set deadline: %v", id, err)
		}
	}

	payload, err := s.decoder.Decode(conn)
	if err != nil {
		s.rejected.Add(1)
		log.Printf("aggregator[%s] rejected %s: %v", id, conn.RemoteAddr(), err)
		return
	}
	rec, err := results.Unmarshal(payload)
	if err != nil {
		s.rejected.Add(1)
		log.Printf("aggregator[%s] rejected %s: %v", id, conn.RemoteAddr(), err)
		return
	}

	s.store.Insert(rec.WorkerID, rec.Distances)
	s.stored.Add(1)
	log.Printf("aggregator[%s] received results from worker %d", id, rec.WorkerID)

	if _, err := conn.Write([]byte(frame.Ack)); err != nil {
		log.Printf("aggregator[%s] acknowledge worker %d: %v", id, rec.WorkerID, err)
	}
}

// track registers conn as in flight; false once the server is closed.
func (s *Server) track(conn net.Conn, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = id
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func nextDelay(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}
