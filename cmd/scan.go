// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/framelink/pkg/bus"
	"github.com/Thermoquad/framelink/pkg/controller"
	"github.com/spf13/cobra"
)

var (
	scanTimeout int
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List responders present on the bus",
	Long: `Probe every address from 0x08 to 0x77 and list the ones that answer.

Modes:
  I2C (--i2c): Read one byte from each address on the local adapter.
  Bridge (--port or --url): Ask the bridge to scan the bus behind it.

Responders are labelled in address order, the same way send labels
targets found by a scan.

Examples:
  framelink scan --i2c /dev/i2c-1
  framelink scan --url ws://bridge.local/framelink

Exit codes:
  0 - At least one responder found
  1 - No responders found
  2 - Connection error or the bus cannot be scanned`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 5, "Timeout in seconds for the scan")
}

func runScan(cmd *cobra.Command, args []string) error {
	b, closer, connInfo, err := OpenBus()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer closer.Close()

	fmt.Printf("Framelink - Bus Scan\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Range: %s-%s\n", bus.ScanFirst, bus.ScanLast)
	fmt.Printf("Timeout: %d seconds\n\n", scanTimeout)

	scanner, ok := b.(bus.Scanner)
	if !ok {
		fmt.Fprintf(os.Stderr, "Scan error: %s cannot be scanned\n", connInfo)
		closer.Close()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(scanTimeout)*time.Second)
	defer cancel()

	start := time.Now()
	addrs, err := scanner.Scan(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scan error: %v\n", err)
		cancel()
		closer.Close()
		os.Exit(2)
	}

	for _, t := range controller.LabelTargets(addrs) {
		fmt.Printf("Device found %s: %s\n", t.Name, t.Address)
	}

	fmt.Printf("\n--- Scan summary ---\n")
	fmt.Printf("Devices found: %d in %v\n", len(addrs), time.Since(start).Round(time.Millisecond))

	if len(addrs) == 0 {
		fmt.Printf("No devices found. Check wiring, pull-ups and device power.\n")
		cancel()
		closer.Close()
		os.Exit(1)
	}
	return nil
}
