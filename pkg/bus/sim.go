// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bus

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"
)

// DefaultReadTimeout bounds how long a status read waits for a responder
const DefaultReadTimeout = 100 * time.Millisecond

// Faults configures byte corruption on a simulated bus
type Faults struct {
	FlipProbability float64 // chance a written byte gets one random bit flipped
	DropProbability float64 // chance a written byte is lost
	Seed            int64
}

// SimBus is an in-memory bus shared by one controller and any number of
// attached responders. It implements Controller; each attached SimPort
// implements Responder.
type SimBus struct {
	mu          sync.Mutex
	ports       map[Address]*SimPort
	faults      Faults
	rng         *rand.Rand
	readTimeout time.Duration
	closed      bool
}

// SimOption configures a SimBus
type SimOption func(*SimBus)

// WithFaults enables byte corruption on writes
func WithFaults(f Faults) SimOption {
	return func(b *SimBus) {
		b.faults = f
		b.rng = rand.New(rand.NewSource(f.Seed))
	}
}

// WithReadTimeout sets how long a status read waits for a reply
func WithReadTimeout(d time.Duration) SimOption {
	return func(b *SimBus) {
		b.readTimeout = d
	}
}

// NewSimBus creates an empty simulated bus
func NewSimBus(opts ...SimOption) *SimBus {
	b := &SimBus{
		ports:       make(map[Address]*SimPort),
		readTimeout: DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach connects a responder at addr and returns its endpoint
func (b *SimBus) Attach(addr Address) (*SimPort, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if addr > MaxAddress {
		return nil, fmt.Errorf("bus address %s out of 7-bit range", addr)
	}
	if _, exists := b.ports[addr]; exists {
		return nil, fmt.Errorf("bus address %s already attached", addr)
	}
	p := &SimPort{addr: addr, reply: make(chan byte, 1)}
	b.ports[addr] = p
	return p, nil
}

// Detach disconnects the responder at addr
func (b *SimBus) Detach(addr Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.ports, addr)
}

// Addresses returns the attached addresses in ascending order
func (b *SimBus) Addresses() []Address {
	b.mu.Lock()
	defer b.mu.Unlock()

	addrs := make([]Address, 0, len(b.ports))
	for addr := range b.ports {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// Scan implements Scanner
func (b *SimBus) Scan(ctx context.Context) ([]Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.Addresses(), nil
}

// Close fails every later transaction with ErrClosed
func (b *SimBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *SimBus) port(op string, addr Address) (*SimPort, error) {
	if b.closed {
		return nil, &TransportError{Op: op, Addr: addr, Err: ErrClosed}
	}
	p, ok := b.ports[addr]
	if !ok {
		return nil, &TransportError{Op: op, Addr: addr, Err: ErrNoDevice}
	}
	return p, nil
}

// WriteFrame implements Controller
func (b *SimBus) WriteFrame(ctx context.Context, addr Address, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return &TransportError{Op: "write", Addr: addr, Err: err}
	}

	b.mu.Lock()
	p, err := b.port("write", addr)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	data := b.corrupt(frame)
	b.mu.Unlock()

	p.push(data)
	return nil
}

// corrupt applies the configured faults; the caller holds b.mu
func (b *SimBus) corrupt(frame []byte) []byte {
	out := make([]byte, 0, len(frame))
	if b.rng == nil {
		return append(out, frame...)
	}
	for _, c := range frame {
		if b.rng.Float64() < b.faults.DropProbability {
			continue
		}
		if b.rng.Float64() < b.faults.FlipProbability {
			c ^= 1 << uint(b.rng.Intn(8))
		}
		out = append(out, c)
	}
	return out
}

// ReadStatusByte implements Controller. It raises a read request on the
// responder and waits for Respond, ctx, or the read timeout.
func (b *SimBus) ReadStatusByte(ctx context.Context, addr Address) (byte, error) {
	b.mu.Lock()
	p, err := b.port("read", addr)
	timeout := b.readTimeout
	b.mu.Unlock()
	if err != nil {
		return 0, err
	}

	p.request()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-p.reply:
		return v, nil
	case <-ctx.Done():
		p.cancel()
		return 0, &TransportError{Op: "read", Addr: addr, Err: ctx.Err()}
	case <-timer.C:
		p.cancel()
		return 0, &TransportError{Op: "read", Addr: addr, Err: ErrTimeout}
	}
}

// SimPort is the responder endpoint of a SimBus
type SimPort struct {
	addr    Address
	mu      sync.Mutex
	rx      []byte
	pending bool
	reply   chan byte
}

// Address returns the port's bus address
func (p *SimPort) Address() Address {
	return p.addr
}

func (p *SimPort) push(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rx = append(p.rx, data...)
}

func (p *SimPort) request() {
	p.mu.Lock()
	defer p.mu.Unlock()
	// Discard a reply that arrived after an earlier read gave up
	select {
	case <-p.reply:
	default:
	}
	p.pending = true
}

func (p *SimPort) cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = false
}

// ByteAvailable implements Responder
func (p *SimPort) ByteAvailable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rx) > 0
}

// NextByte implements Responder. It returns 0 when nothing is buffered.
func (p *SimPort) NextByte() byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.rx) == 0 {
		return 0
	}
	b := p.rx[0]
	p.rx = p.rx[1:]
	return b
}

// StatusRequestPending implements Responder
func (p *SimPort) StatusRequestPending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// Respond implements Responder. Without a pending request it does nothing.
func (p *SimPort) Respond(b byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.pending {
		return
	}
	p.pending = false
	select {
	case p.reply <- b:
	default:
	}
}
