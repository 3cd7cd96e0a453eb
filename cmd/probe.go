// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/framelink/pkg/controller"
	"github.com/Thermoquad/framelink/pkg/dataframe"
	"github.com/spf13/cobra"
)

var (
	probeTimeout int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the link by sending one dataframe to every target",
	Long: `Send a single dataframe to each target and check its status reply.

Targets come from --target, the config file, or a bus scan. The dataframe
carries values that exercise byte stuffing (STX, ETX and escape bytes).

Exit codes:
  0 - Every target accepted the dataframe
  1 - A target reported a checksum error or an incomplete dataframe
  2 - Connection or transport error

Useful for testing wiring before a long send run.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds for the whole probe")
	probeCmd.Flags().StringSliceVarP(&sendTargets, "target", "t", nil, "Responder address (repeatable, e.g. 0x41)")
}

// probeValues returns n values covering every control byte
func probeValues(n int) []uint16 {
	pattern := []uint16{0x0203, 0x5C02, 0x035C, 0x1234}
	return pattern[:n]
}

func runProbe(cmd *cobra.Command, args []string) error {
	b, closer, connInfo, err := OpenBus()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(probeTimeout)*time.Second)
	defer cancel()

	fmt.Printf("Framelink - Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n\n", probeTimeout)

	targets, err := resolveTargets(ctx, b)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Target error: %v\n", err)
		os.Exit(2)
	}

	loop, err := controller.New(b, controller.Config{
		Fields:  cfg.Fields,
		Runs:    1,
		Targets: targets,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	values := probeValues(cfg.Fields)
	result, err := loop.RunRound(ctx, 1, values)
	if err != nil {
		return err
	}
	fmt.Printf("Dataframe: %s\n", dataframe.FormatHex(result.Frame))

	exitCode := 0
	for _, tr := range result.Results {
		switch {
		case tr.Err != nil:
			fmt.Printf("  %s (%s): ERROR %v\n", tr.Target.Name, tr.Target.Address, tr.Err)
			exitCode = 2
		case tr.OK():
			fmt.Printf("  %s (%s): %s\n", tr.Target.Name, tr.Target.Address, dataframe.Status(tr.Status))
		case tr.Status > controller.StatusIncomplete:
			fmt.Printf("  %s (%s): ERROR unexpected status byte %d\n", tr.Target.Name, tr.Target.Address, tr.Status)
			exitCode = 2
		default:
			fmt.Printf("  %s (%s): %s\n", tr.Target.Name, tr.Target.Address, dataframe.Status(tr.Status))
			if exitCode == 0 {
				exitCode = 1
			}
		}
	}

	if exitCode == 0 {
		fmt.Printf("\nSUCCESS: every target accepted the dataframe\n")
	}
	closer.Close()
	os.Exit(exitCode)
	return nil
}
