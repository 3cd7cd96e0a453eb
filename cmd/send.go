// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/Thermoquad/framelink/pkg/bus"
	"github.com/Thermoquad/framelink/pkg/controller"
	"github.com/spf13/cobra"
)

var (
	sendRuns      int
	sendMaxErrors int
	sendTimeout   time.Duration
	sendTargets   []string
	sendSeed      int64
	sendQuiet     bool
)

var sendCmd = &cobra.Command{
	Use:   "send [values...]",
	Short: "Send dataframes to responders and tally their status replies",
	Long: `Run the controller transaction loop.

Every round encodes one dataset, writes it to each target and reads back the
target's status byte. Without values a random dataset is drawn every round;
with values the same dataset is sent each time (values accept 0x prefixes).

Targets come from --target, then the config file, then a bus scan. Scanned
devices are labelled A, B, C, ... in address order.

The loop stops when --runs rounds were accepted by every target, when the
error tally (checksum errors plus incomplete frames) reaches --max-errors,
when --timeout elapses, or on Ctrl+C.`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	addLoopFlags(sendCmd)
	sendCmd.Flags().BoolVarP(&sendQuiet, "quiet", "q", false, "Only print the final summary")
}

// addLoopFlags registers the transaction loop flags shared by send and simulate
func addLoopFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&sendRuns, "runs", 200, "Stop after this many positive rounds")
	cmd.Flags().IntVar(&sendMaxErrors, "max-errors", 0, "Stop after this many errors (default: --runs)")
	cmd.Flags().DurationVar(&sendTimeout, "timeout", 3*time.Minute, "Stop after this long (0 disables)")
	cmd.Flags().StringSliceVarP(&sendTargets, "target", "t", nil, "Responder address (repeatable, e.g. 0x41)")
	cmd.Flags().Int64Var(&sendSeed, "seed", 0, "Random payload seed (default: time based)")
}

// loopConfig merges the loop flags over the configured controller settings
func loopConfig(cmd *cobra.Command) controller.Config {
	cc := cfg.Controller
	if cmd.Flags().Changed("runs") {
		cc.Runs = sendRuns
	}
	if cmd.Flags().Changed("max-errors") {
		cc.MaxErrors = sendMaxErrors
	}
	if cmd.Flags().Changed("timeout") {
		cc.Timeout = sendTimeout
	}
	if cmd.Flags().Changed("seed") {
		cc.Seed = sendSeed
	} else if cc.Seed == 0 {
		cc.Seed = time.Now().UnixNano()
	}

	return controller.Config{
		Fields:    cfg.Fields,
		Runs:      cc.Runs,
		MaxErrors: cc.MaxErrors,
		Timeout:   cc.Timeout,
		Seed:      cc.Seed,
		Logger:    logger,
	}
}

// parseValues parses dataset values from arguments
func parseValues(args []string) ([]uint16, error) {
	values := make([]uint16, 0, len(args))
	for _, arg := range args {
		v, err := strconv.ParseUint(arg, 0, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid field value %q: %w", arg, err)
		}
		values = append(values, uint16(v))
	}
	return values, nil
}

// resolveTargets picks targets from the flags, the config file or a bus scan
func resolveTargets(ctx context.Context, b bus.Controller) ([]controller.Target, error) {
	var addrs []bus.Address
	for _, s := range sendTargets {
		addr, err := bus.ParseAddress(s)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	if len(addrs) == 0 {
		addrs = cfg.Controller.Targets
	}
	if len(addrs) == 0 {
		scanner, ok := b.(bus.Scanner)
		if !ok {
			return nil, fmt.Errorf("no targets given and the bus cannot be scanned; use --target")
		}
		found, err := scanner.Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bus: %w", err)
		}
		addrs = found
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no devices found on the bus")
	}
	return controller.LabelTargets(addrs), nil
}

// printRound prints one round the way the loop sees it
func printRound(r controller.RoundResult) {
	for _, tr := range r.Results {
		switch {
		case tr.Err != nil:
			fmt.Printf("Device %s (%s): %v\n", tr.Target.Name, tr.Target.Address, tr.Err)
		case tr.OK():
			fmt.Printf("Send data to device %s: %v\n", tr.Target.Name, r.Values)
		case tr.Status == controller.StatusChecksumError:
			fmt.Printf("Send data to device %s: %v -> checksum error\n", tr.Target.Name, r.Values)
		case tr.Status == controller.StatusIncomplete:
			fmt.Printf("Send data to device %s: %v -> incomplete dataframe\n", tr.Target.Name, r.Values)
		default:
			fmt.Printf("Send data to device %s: %v -> status %d\n", tr.Target.Name, r.Values, tr.Status)
		}
	}
}

func runSend(cmd *cobra.Command, args []string) error {
	values, err := parseValues(args)
	if err != nil {
		return err
	}
	if len(values) > 0 && len(values) != cfg.Fields {
		return fmt.Errorf("got %d values for %d fields", len(values), cfg.Fields)
	}

	b, closer, connInfo, err := OpenBus()
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	targets, err := resolveTargets(ctx, b)
	if err != nil {
		return err
	}

	lc := loopConfig(cmd)
	lc.Targets = targets
	if len(values) > 0 {
		lc.Payload = func() []uint16 { return values }
	}
	if !sendQuiet {
		lc.OnRound = func(r controller.RoundResult, _ *controller.Statistics) { printRound(r) }
	}

	fmt.Printf("Framelink - Send\n")
	fmt.Printf("Connection: %s\n", connInfo)
	for _, t := range targets {
		fmt.Printf("Device found %s: %s\n", t.Name, t.Address)
	}
	fmt.Printf("Sending %d dataframes (of %d fields each) to the devices ...\n\n", lc.Runs, lc.Fields)

	loop, err := controller.New(b, lc)
	if err != nil {
		return err
	}
	stats, runErr := loop.Run(ctx)

	fmt.Printf("\nTotal of %d positive datasets sent in %.3f secs\n", stats.OKRounds, stats.Elapsed().Seconds())
	fmt.Printf("Total errors: %d\n\n", stats.Errors())
	fmt.Print(stats.String())

	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return nil
}
