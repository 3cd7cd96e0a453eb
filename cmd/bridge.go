// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/Thermoquad/framelink/pkg/bridge"
	"github.com/Thermoquad/framelink/pkg/bus"
	"github.com/Thermoquad/framelink/pkg/controller"
	"github.com/Thermoquad/framelink/pkg/responder"
	"github.com/spf13/cobra"
)

var (
	bridgeListen    string
	bridgeServePort string
	bridgeSimulate  int
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Expose a local bus to remote controllers",
	Long: `Serve bus transactions from remote controllers.

The local bus is the i2c-dev node given by --i2c, or --simulate N in-process
responders. Remote controllers connect with --url (WebSocket, served on
--listen) or --port (serial, served on --serve-port).

Examples:
  framelink bridge --i2c /dev/i2c-1 --listen :8080
  framelink bridge --simulate 2 --serve-port /dev/ttyGS0`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.Flags().StringVar(&bridgeListen, "listen", "", "WebSocket listen address (e.g. :8080)")
	bridgeCmd.Flags().StringVar(&bridgeServePort, "serve-port", "", "Serial port to serve on")
	bridgeCmd.Flags().IntVar(&bridgeSimulate, "simulate", 0, "Serve N simulated responders instead of a real bus")
}

func runBridge(cmd *cobra.Command, args []string) error {
	listen := cfg.Bridge.Listen
	if cmd.Flags().Changed("listen") {
		listen = bridgeListen
	}
	servePort := cfg.Bridge.ServePort
	if cmd.Flags().Changed("serve-port") {
		servePort = bridgeServePort
	}
	if (listen == "") == (servePort == "") {
		return fmt.Errorf("exactly one of --listen or --serve-port must be specified")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var local bus.Controller
	var info string
	switch {
	case bridgeSimulate > 0:
		sim := bus.NewSimBus()
		defer sim.Close()
		ind, err := responder.NewIndicator(cfg.Responder.Indicator, os.Stdout)
		if err != nil {
			return err
		}
		nodes, wg, err := startSimNodes(ctx, sim, bridgeSimulate, func(controller.Target) responder.Indicator { return ind }, logger)
		if err != nil {
			return err
		}
		defer haltSimNodes(nodes, wg)
		local = sim
		info = fmt.Sprintf("simulated bus with %d responders from %s", len(nodes), cfg.Responder.Address)
	case cfg.Bus.I2C != "":
		dev, err := bus.OpenI2C(cfg.Bus.I2C)
		if err != nil {
			return err
		}
		defer dev.Close()
		local = dev
		info = fmt.Sprintf("I2C: %s", cfg.Bus.I2C)
	default:
		return fmt.Errorf("either --i2c or --simulate must be specified")
	}

	server := bridge.NewServer(local, logger)
	fmt.Printf("Framelink - Bridge\n")
	fmt.Printf("Local bus: %s\n", info)

	if servePort != "" {
		return serveSerialBridge(ctx, server, servePort)
	}
	return serveWebSocketBridge(ctx, server, listen)
}

func serveSerialBridge(ctx context.Context, server *bridge.Server, port string) error {
	conn, err := bridge.OpenSerial(port, cfg.Bus.Baud)
	if err != nil {
		return err
	}
	fmt.Printf("Serving on serial %s @ %d baud\n", port, cfg.Bus.Baud)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if err := server.Serve(ctx, conn); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func serveWebSocketBridge(ctx context.Context, server *bridge.Server, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/", server.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	fmt.Printf("Serving WebSocket on %s\n", addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
