// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Thermoquad/framelink/pkg/bus"
	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Server executes bridged requests against a local bus
type Server struct {
	bus    bus.Controller
	logger zerolog.Logger
}

// NewServer creates a server for b
func NewServer(b bus.Controller, logger zerolog.Logger) *Server {
	return &Server{bus: b, logger: logger}
}

// Serve handles requests on rw until the peer disconnects. A blocked read
// does not observe ctx; close the connection to stop it.
func (s *Server) Serve(ctx context.Context, rw io.ReadWriter) error {
	dec := cbor.NewDecoder(rw)
	enc := cbor.NewEncoder(rw)

	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to decode request: %w", err)
		}

		rep := s.handle(ctx, req)
		if err := enc.Encode(rep); err != nil {
			return fmt.Errorf("failed to send reply %d: %w", rep.ID, err)
		}
	}
}

func (s *Server) handle(ctx context.Context, req Request) Reply {
	addr := bus.Address(req.Addr)
	rep := Reply{ID: req.ID}

	var err error
	switch req.Op {
	case OpWrite:
		err = s.bus.WriteFrame(ctx, addr, req.Frame)
	case OpRead:
		rep.Status, err = s.bus.ReadStatusByte(ctx, addr)
	case OpScan:
		rep.Found, err = s.scan(ctx)
	default:
		err = fmt.Errorf("%w %d", ErrBadOp, req.Op)
	}

	if err != nil {
		rep.Code = errorCode(err)
		rep.Message = err.Error()
		s.logger.Warn().
			Uint32("id", req.ID).
			Uint8("op", req.Op).
			Stringer("address", addr).
			Err(err).
			Msg("bridged transaction failed")
	}
	return rep
}

func (s *Server) scan(ctx context.Context) ([]byte, error) {
	scanner, ok := s.bus.(bus.Scanner)
	if !ok {
		return nil, ErrNoScan
	}
	addrs, err := scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}
	found := make([]byte, len(addrs))
	for i, addr := range addrs {
		found[i] = byte(addr)
	}
	return found, nil
}

// Handler upgrades HTTP requests to WebSocket and serves each connection
func (s *Server) Handler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Error().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
			return
		}
		ws := NewWebSocketConn(conn)
		defer ws.Close()

		s.logger.Info().Str("remote", r.RemoteAddr).Msg("bridge client connected")
		if err := s.Serve(r.Context(), ws); err != nil {
			s.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("bridge client dropped")
			return
		}
		s.logger.Info().Str("remote", r.RemoteAddr).Msg("bridge client disconnected")
	})
}
