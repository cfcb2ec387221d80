// Package report delivers a worker group's converged result to the
// aggregator.
//
// Each attempt opens a fresh TCP connection with keepalive probing, sends one
// frame and waits for the two byte acknowledgement "OK". A failed attempt is
// retried after attempt*backoff, up to the configured number of attempts.
// Running out of attempts is not fatal: the caller logs ErrNotDelivered and
// the run carries on without this worker's contribution.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"github.com/dreamware/hopgraph/internal/frame"
	"github.com/dreamware/hopgraph/internal/results"
)

var (
	// ErrConnection is returned when the aggregator cannot be reached.
	ErrConnection = errors.New("connection error")

	// ErrBadAck is returned when the aggregator answers with anything but frame.Ack.
	ErrBadAck = errors.New("unexpected acknowledgement")

	// ErrNotDelivered is returned once every attempt has failed.
	ErrNotDelivered = errors.New("result not delivered")
)

// DialFunc opens a connection to addr.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Reporter sends results to one aggregator address.
// Safe for concurrent use; every Report call dials its own connections.
type Reporter struct {
	dial        DialFunc
	addr        string
	keepAlive   net.KeepAliveConfig
	maxAttempts int
	baseBackoff time.Duration
	dialTimeout time.Duration
	ackTimeout  time.Duration // zero relies on keepalive alone
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithMaxAttempts sets how many connections Report opens before giving up.
func WithMaxAttempts(n int) Option {
	return func(r *Reporter) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay; attempt k waits k*d before the next try.
func WithBackoff(d time.Duration) Option {
	return func(r *Reporter) {
		r.baseBackoff = d
	}
}

// WithKeepAlive sets TCP keepalive probing for every connection.
func WithKeepAlive(cfg net.KeepAliveConfig) Option {
	return func(r *Reporter) {
		r.keepAlive = cfg
	}
}

// WithAckTimeout bounds the wait for the acknowledgement.
func WithAckTimeout(d time.Duration) Option {
	return func(r *Reporter) {
		r.ackTimeout = d
	}
}

// New creates a Reporter for addr ("host:port"). Defaults: 3 attempts,
// 1s base backoff, keepalive idle 10s / interval 5s / 3 probes.
func New(addr string, opts ...Option) *Reporter {
	r := &Reporter{
		addr:        addr,
		maxAttempts: 3,
		baseBackoff: time.Second,
		dialTimeout: 10 * time.Second,
		keepAlive: net.KeepAliveConfig{
			Enable:   true,
			Idle:     10 * time.Second,
			Interval: 5 * time.Second,
			Count:    3,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetDialFunc replaces how connections are opened. Intended for tests.
func (r *Reporter) SetDialFunc(fn DialFunc) {
	r.dial = fn
}

// Addr returns the aggregator address.
func (r *Reporter) Addr() string { return r.addr }

// Report sends rec, retrying per the configured policy. It returns nil once
// the aggregator acknowledged, or an error wrapping ErrNotDelivered and the
// last attempt's failure.
func (r *Reporter) Report(ctx context.Context, rec results.Record) error {
	payload, err := results.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotDelivered, err)
	}
	if len(payload) > frame.MaxPayload {
		return fmt.Errorf("%w: %w: record is %d bytes", ErrNotDelivered, frame.ErrOversize, len(payload))
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		lastErr = r.attempt(ctx, payload)
		if lastErr == nil {
			log.Printf("report[%d] delivered to %s (attempt %d)", rec.WorkerID, r.addr, attempt)
			return nil
		}
		log.Printf("report[%d] attempt %d/%d failed: %v", rec.WorkerID, attempt, r.maxAttempts, lastErr)
		if attempt == r.maxAttempts {
			break
		}
		if err := sleep(ctx, time.Duration(attempt)*r.baseBackoff); err != nil {
			return fmt.Errorf("%w: %w", ErrNotDelivered, err)
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrNotDelivered, r.maxAttempts, lastErr)
}

// attempt runs one connect-send-acknowledge exchange on a new connection.
func (r *Reporter) attempt(ctx context.Context, payload []byte) error {
	conn, err := r.dialContext(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer conn.Close()

	// Unblock the acknowledgement read if the caller gives up.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := frame.Write(conn, payload); err != nil {
		return err
	}
	if r.ackTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(r.ackTimeout)); err != nil {
			return err
		}
	}
	ack := make([]byte, len(frame.Ack))
	if _, err := io.ReadFull(conn, ack); err != nil {
		return fmt.Errorf("read acknowledgement: %w", err)
	}
	if string(ack) != frame.Ack {
		return fmt.Errorf("%w: %q", ErrBadAck, ack)
	}
	return nil
}

func (r *Reporter) dialContext(ctx context.Context) (net.Conn, error) {
	if r.dial != nil {
		return r.dial(ctx, "tcp", r.addr)
	}
	d := net.Dialer{
		Timeout:         r.dialTimeout,
		KeepAliveConfig: r.keepAlive,
	}
	return d.DialContext(ctx, "tcp", r.addr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Delivered reports whether a Report error means the record arrived.
func Delivered(err error) bool { return err == nil }
