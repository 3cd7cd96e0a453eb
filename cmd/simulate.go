// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/Thermoquad/framelink/pkg/bus"
	"github.com/Thermoquad/framelink/pkg/controller"
	"github.com/Thermoquad/framelink/pkg/registers"
	"github.com/Thermoquad/framelink/pkg/responder"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	simResponders int
	simFlip       float64
	simDrop       float64
	simIndicator  string
	simNoTUI      bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run controller and responders against an in-memory bus",
	Long: `Run the transaction loop against simulated responders in this process.

Each responder gets its own registers and receive loop, starting at the
configured responder address. Bytes on the simulated bus can be corrupted with
--flip (bit flip chance per byte) and --drop (loss chance per byte) to watch
resynchronization and error tallies.

A live dashboard is shown unless --no-tui is given. Press 'q' to stop.`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	addLoopFlags(simulateCmd)
	simulateCmd.Flags().IntVar(&simResponders, "responders", 2, "Number of simulated responders")
	simulateCmd.Flags().Float64Var(&simFlip, "flip", 0, "Per-byte bit flip probability")
	simulateCmd.Flags().Float64Var(&simDrop, "drop", 0, "Per-byte drop probability")
	simulateCmd.Flags().StringVar(&simIndicator, "indicator", "", "Responder indicator (none, led, rgb_led)")
	simulateCmd.Flags().BoolVar(&simNoTUI, "no-tui", false, "Print rounds instead of the dashboard")
}

// simNode is one simulated responder
type simNode struct {
	target    controller.Target
	regs      *registers.Registers
	responder *responder.Responder
}

// startSimNodes attaches n responders to sim and starts their receive loops.
// Stopping them is done through each node's halt register.
func startSimNodes(ctx context.Context, sim *bus.SimBus, n int, indicator func(controller.Target) responder.Indicator, log zerolog.Logger) ([]*simNode, *sync.WaitGroup, error) {
	base := cfg.Responder.Address
	if int(base)+n-1 > int(bus.MaxAddress) {
		return nil, nil, fmt.Errorf("%d responders from %s exceed the address range", n, base)
	}

	addrs := make([]bus.Address, n)
	for i := range addrs {
		addrs[i] = base + bus.Address(i)
	}

	var wg sync.WaitGroup
	nodes := make([]*simNode, 0, n)
	for _, target := range controller.LabelTargets(addrs) {
		port, err := sim.Attach(target.Address)
		if err != nil {
			return nil, nil, err
		}

		nodeLog := zerolog.Nop()
		if cfg.Responder.Printout {
			nodeLog = log.With().Str("device", target.Name).Logger()
		}

		regs := registers.New(cfg.Fields)
		r, err := responder.New(port, regs, responder.Config{
			Address:      target.Address,
			Fields:       cfg.Fields,
			PollInterval: cfg.Responder.PollInterval,
			Indicator:    indicator(target),
			Logger:       nodeLog,
		})
		if err != nil {
			return nil, nil, err
		}

		nodes = append(nodes, &simNode{target: target, regs: regs, responder: r})
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Run(ctx)
		}()
	}
	return nodes, &wg, nil
}

// haltSimNodes sets every halt flag and waits for the receive loops to exit
func haltSimNodes(nodes []*simNode, wg *sync.WaitGroup) {
	for _, node := range nodes {
		node.regs.WriteHalt(true)
	}
	wg.Wait()
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("indicator") {
		cfg.Responder.Indicator = simIndicator
	}

	opts := []bus.SimOption{}
	if simFlip > 0 || simDrop > 0 {
		seed := cfg.Controller.Seed
		opts = append(opts, bus.WithFaults(bus.Faults{FlipProbability: simFlip, DropProbability: simDrop, Seed: seed}))
	}
	sim := bus.NewSimBus(opts...)
	defer sim.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	lc := loopConfig(cmd)

	if simNoTUI {
		return runSimulatePlain(ctx, sim, lc)
	}
	return runSimulateTUI(ctx, sim, lc)
}

func runSimulatePlain(ctx context.Context, sim *bus.SimBus, lc controller.Config) error {
	ind, err := responder.NewIndicator(cfg.Responder.Indicator, os.Stdout)
	if err != nil {
		return err
	}
	ind.HeartBeat(3, 0)

	nodes, wg, err := startSimNodes(ctx, sim, simResponders, func(controller.Target) responder.Indicator { return ind }, logger)
	if err != nil {
		return err
	}
	defer haltSimNodes(nodes, wg)

	fmt.Printf("Framelink - Simulate\n")
	fmt.Printf("Responders: %d | Fields: %d | Flip: %.3f | Drop: %.3f\n\n", len(nodes), cfg.Fields, simFlip, simDrop)

	lc.Targets = nodeTargets(nodes)
	lc.OnRound = func(r controller.RoundResult, _ *controller.Statistics) { printRound(r) }

	loop, err := controller.New(sim, lc)
	if err != nil {
		return err
	}
	stats, runErr := loop.Run(ctx)

	fmt.Printf("\nTotal of %d positive datasets sent in %.3f secs\n", stats.OKRounds, stats.Elapsed().Seconds())
	fmt.Printf("Total errors: %d\n\n", stats.Errors())
	fmt.Print(stats.String())
	printNodeSummary(os.Stdout, nodes)

	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return nil
}

func runSimulateTUI(ctx context.Context, sim *bus.SimBus, lc controller.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Flashes are dropped when the dashboard falls behind
	flashes := make(chan flashMsg, 256)
	flash := func(t controller.Target) responder.Indicator {
		return responder.ColorFunc(func(c responder.Color) {
			select {
			case flashes <- flashMsg{device: t.Name, color: c}:
			default:
			}
		})
	}

	// The dashboard owns the terminal, so responder logs stay quiet
	nodes, wg, err := startSimNodes(ctx, sim, simResponders, flash, zerolog.Nop())
	if err != nil {
		return err
	}
	defer haltSimNodes(nodes, wg)

	lc.Targets = nodeTargets(nodes)
	lc.Logger = zerolog.Nop()

	m := initialSimModel(nodes, lc, simFlip, simDrop, flashes, cancel)
	p := tea.NewProgram(m, tea.WithAltScreen())
	lc.OnRound = func(r controller.RoundResult, s *controller.Statistics) {
		p.Send(roundMsg{result: r, stats: *s})
	}

	loop, err := controller.New(sim, lc)
	if err != nil {
		return err
	}

	final := make(chan *controller.Statistics, 1)
	go func() {
		stats, err := loop.Run(ctx)
		final <- stats
		p.Send(doneMsg{stats: *stats, err: err})
	}()

	_, tuiErr := p.Run()
	cancel()
	stats := <-final

	fmt.Print(stats.String())
	printNodeSummary(os.Stdout, nodes)
	if tuiErr != nil {
		return fmt.Errorf("dashboard failed: %w", tuiErr)
	}
	return nil
}

func nodeTargets(nodes []*simNode) []controller.Target {
	targets := make([]controller.Target, len(nodes))
	for i, node := range nodes {
		targets[i] = node.target
	}
	return targets
}

func printNodeSummary(w io.Writer, nodes []*simNode) {
	for _, node := range nodes {
		s := node.responder.Stats()
		fmt.Fprintf(w, "%s (%s): %d bytes, %d valid, %d invalid, %d status reads, registers %s\n",
			node.target.Name, node.target.Address, s.Bytes, s.Valid, s.Invalid, s.StatusReads,
			formatValues(node.regs.Snapshot()))
	}
}

func formatValues(values []uint16) string {
	return fmt.Sprint(values)
}
