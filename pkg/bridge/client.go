// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Thermoquad/framelink/pkg/bus"
	"github.com/fxamacker/cbor/v2"
)

// Client is a bus.Controller that forwards transactions to a Server.
// Transactions are serialized. A cancelled transaction leaves the stream
// out of step, so the client refuses further use and the connection should
// be closed.
type Client struct {
	mu     sync.Mutex
	w      io.Writer
	dec    *cbor.Decoder
	nextID uint32
	broken error
}

// NewClient creates a client over rw
func NewClient(rw io.ReadWriter) *Client {
	return &Client{
		w:   rw,
		dec: cbor.NewDecoder(rw),
	}
}

type result struct {
	reply Reply
	err   error
}

func (c *Client) do(ctx context.Context, req Request) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken != nil {
		return Reply{}, c.broken
	}
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}

	c.nextID++
	req.ID = c.nextID
	data, err := cbor.Marshal(req)
	if err != nil {
		return Reply{}, fmt.Errorf("failed to encode request: %w", err)
	}

	done := make(chan result, 1)
	go func() {
		if _, err := c.w.Write(data); err != nil {
			done <- result{err: fmt.Errorf("failed to send request: %w", err)}
			return
		}
		for {
			var rep Reply
			if err := c.dec.Decode(&rep); err != nil {
				done <- result{err: fmt.Errorf("failed to decode reply: %w", err)}
				return
			}
			// Replies to abandoned requests are skipped
			if rep.ID == req.ID {
				done <- result{reply: rep}
				return
			}
		}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			c.broken = r.err
		}
		return r.reply, r.err
	case <-ctx.Done():
		c.broken = fmt.Errorf("bridge transaction %d abandoned: %w", req.ID, ctx.Err())
		return Reply{}, ctx.Err()
	}
}

// WriteFrame implements bus.Controller
func (c *Client) WriteFrame(ctx context.Context, addr bus.Address, frame []byte) error {
	rep, err := c.do(ctx, Request{Op: OpWrite, Addr: uint8(addr), Frame: frame})
	if err != nil {
		return &bus.TransportError{Op: "write", Addr: addr, Err: err}
	}
	if err := replyError(rep); err != nil {
		return &bus.TransportError{Op: "write", Addr: addr, Err: err}
	}
	return nil
}

// ReadStatusByte implements bus.Controller
func (c *Client) ReadStatusByte(ctx context.Context, addr bus.Address) (byte, error) {
	rep, err := c.do(ctx, Request{Op: OpRead, Addr: uint8(addr)})
	if err != nil {
		return 0, &bus.TransportError{Op: "read", Addr: addr, Err: err}
	}
	if err := replyError(rep); err != nil {
		return 0, &bus.TransportError{Op: "read", Addr: addr, Err: err}
	}
	return rep.Status, nil
}

// Scan implements bus.Scanner by scanning the bus behind the server
func (c *Client) Scan(ctx context.Context) ([]bus.Address, error) {
	rep, err := c.do(ctx, Request{Op: OpScan})
	if err != nil {
		return nil, fmt.Errorf("bridge scan failed: %w", err)
	}
	if err := replyError(rep); err != nil {
		return nil, fmt.Errorf("bridge scan failed: %w", err)
	}
	addrs := make([]bus.Address, len(rep.Found))
	for i, b := range rep.Found {
		addrs[i] = bus.Address(b)
	}
	return addrs, nil
}
