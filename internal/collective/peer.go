package collective

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/exp/slices"
)

const clockHeader = "Clock"

var errNotAccepted = errors.New("message not accepted")

// Peer is an Exchanger for ranks living in separate processes. Every rank
// serves HTTP on its own listener; addresses[i] is the host:port of rank i.
//
// Each primitive call advances a logical clock that is identical on every
// rank because all ranks issue the same sequence of calls. A message is only
// accepted by a receiver waiting for the same clock value, so a root that is
// ahead of its receivers simply retries until they catch up.
//
// Not safe for concurrent calls from several goroutines of the same rank.
type Peer struct {
	addresses  map[int]string
	ranks      []int
	server     *http.Server
	client     *http.Client
	inbox      *inbox
	rank       int
	clock      uint64
	timeout    time.Duration // zero waits forever
	retryDelay time.Duration
}

// PeerOption configures a Peer.
type PeerOption func(*Peer)

// WithTimeout bounds how long a single primitive waits for the group.
// The default of zero never gives up.
func WithTimeout(timeout time.Duration) PeerOption {
	return func(p *Peer) {
		p.timeout = timeout
	}
}

// WithRetryDelay sets the pause between delivery attempts to a receiver
// that is not yet waiting.
func WithRetryDelay(d time.Duration) PeerOption {
	return func(p *Peer) {
		p.retryDelay = d
	}
}

// WithHTTPClient replaces the client used to deliver messages.
func WithHTTPClient(c *http.Client) PeerOption {
	return func(p *Peer) {
		p.client = c
	}
}

// NewPeer starts serving rank's endpoint on l and returns the transport.
// addresses must hold exactly the ranks 0..len(addresses)-1.
func NewPeer(rank int, addresses map[int]string, l net.Listener, opts ...PeerOption) (*Peer, error) {
	ranks := make([]int, 0, len(addresses))
	for r := range addresses {
		ranks = append(ranks, r)
	}
	slices.Sort(ranks)
	for i, r := range ranks {
		if r != i {
			return nil, fmt.Errorf("peer addresses must cover ranks 0..%d, missing %d", len(ranks)-1, i)
		}
	}
	if _, ok := addresses[rank]; !ok {
		return nil, fmt.Errorf("rank %d has no address", rank)
	}

	in := &inbox{content: make(chan []byte, 1)}
	p := &Peer{
		rank:       rank,
		addresses:  copyMap(addresses),
		ranks:      ranks,
		inbox:      in,
		client:     &http.Client{Timeout: 5 * time.Second},
		retryDelay: 10 * time.Millisecond,
		server: &http.Server{
			Handler:           in,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(p)
	}

	go func() {
		if err := p.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("collective[%d] serve: %v", rank, err)
		}
	}()
	return p, nil
}

// Rank implements Exchanger.
func (p *Peer) Rank() int { return p.rank }

// Size implements Exchanger.
func (p *Peer) Size() int { return len(p.ranks) }

// Close stops the endpoint.
func (p *Peer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.server.Shutdown(ctx)
}

// Broadcast implements Exchanger. The trailing barrier keeps the root from
// running ahead into the next call before every rank has received.
func (p *Peer) Broadcast(buf []byte, root int) ([]byte, error) {
	if _, ok := p.addresses[root]; !ok {
		return nil, fmt.Errorf("root %d outside group of %d", root, p.Size())
	}
	recv, err := p.broadcastNoBarrier(buf, root)
	if err != nil {
		return nil, err
	}
	if err := p.barrier(); err != nil {
		return nil, err
	}
	return recv, nil
}

// AllToAll implements Exchanger. Every rank broadcasts in rank order; no
// rank can finish before all ranks have sent, which makes it a barrier.
func (p *Peer) AllToAll(buf []byte) ([][]byte, error) {
	out := make([][]byte, len(p.ranks))
	for _, r := range p.ranks {
		recv, err := p.broadcastNoBarrier(buf, r)
		if err != nil {
			return nil, err
		}
		out[r] = recv
	}
	return out, nil
}

func (p *Peer) barrier() error {
	_, err := p.AllToAll(nil)
	return err
}

func (p *Peer) broadcastNoBarrier(buf []byte, root int) ([]byte, error) {
	p.clock++
	if root != p.rank {
		return p.receive(p.clock)
	}
	for _, r := range p.ranks {
		if r == p.rank {
			continue
		}
		if err := p.deliver(r, p.clock, buf); err != nil {
			return nil, err
		}
	}
	return slices.Clone(buf), nil
}

// deliver posts buf to rank until the receiver accepts it.
func (p *Peer) deliver(rank int, clock uint64, buf []byte) error {
	url := "http://" + p.addresses[rank] + "/collective"
	start := time.Now()
	for {
		err := p.post(url, clock, buf)
		if err == nil {
			return nil
		}
		if p.timeout > 0 && time.Since(start) > p.timeout {
			return fmt.Errorf("deliver clock %d to rank %d timed out: %w", clock, rank, err)
		}
		time.Sleep(p.retryDelay)
	}
}

func (p *Peer) post(url string, clock uint64, buf []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set(clockHeader, strconv.FormatUint(clock, 10))
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("%w: status %d", errNotAccepted, resp.StatusCode)
	}
	return nil
}

func (p *Peer) receive(clock uint64) ([]byte, error) {
	p.inbox.open(clock)
	var timeout <-chan time.Time
	if p.timeout > 0 {
		t := time.NewTimer(p.timeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case recv := <-p.inbox.content:
		return recv, nil
	case <-timeout:
		if !p.inbox.cancel(clock) {
			// Claimed just before the deadline; the message is on its way.
			return <-p.inbox.content, nil
		}
		return nil, fmt.Errorf("waiting for clock %d timed out after %v", clock, p.timeout)
	}
}

// inbox hands exactly one message per open clock to the receiving call.
type inbox struct {
	content chan []byte
	mu      sync.Mutex
	want    uint64 // clock of the open receive, zero when none
	done    uint64 // highest clock accepted
}

func (in *inbox) open(clock uint64) {
	in.mu.Lock()
	in.want = clock
	in.mu.Unlock()
}

// cancel closes the open receive; false means a sender already claimed it.
func (in *inbox) cancel(clock uint64) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.want != clock {
		return false
	}
	in.want = 0
	return true
}

// claim reserves the open receive for a message carrying clock. A clock
// that was already accepted is reported as delivered so a sender retrying
// after a lost response does not wait forever.
func (in *inbox) claim(clock uint64) (accept, duplicate bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if clock != 0 && clock <= in.done {
		return false, true
	}
	if clock == 0 || in.want != clock {
		return false, false
	}
	in.want = 0
	in.done = clock
	return true, false
}

func (in *inbox) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	clock, err := strconv.ParseUint(req.Header.Get(clockHeader), 10, 64)
	if err != nil {
		http.Error(rw, "missing or invalid Clock header", http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	accept, duplicate := in.claim(clock)
	if duplicate {
		rw.WriteHeader(http.StatusAccepted)
		return
	}
	if !accept {
		rw.WriteHeader(http.StatusNotAcceptable)
		return
	}
	in.content <- body
	rw.WriteHeader(http.StatusAccepted)
}

func copyMap(original map[int]string) map[int]string {
	copied := make(map[int]string, len(original))
	for k, v := range original {
		copied[k] = v
	}
	return copied
}
