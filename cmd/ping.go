// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/framelink/pkg/bus"
	"github.com/Thermoquad/framelink/pkg/dataframe"
	"github.com/spf13/cobra"
)

var (
	pingTimeout int
	pingCount   int
	pingTarget  string
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure status read round trips to one responder",
	Long: `Read the status byte of a responder repeatedly and report round trip times.

No dataframe is written, so the responder's registers are left untouched.
The status reported is whatever the responder's assembler holds, which is
"incomplete" until it has seen a dataframe.

This is useful for verifying:
  - The responder is present at the address
  - A bridge forwards transactions
  - Latency of the link before a send run

Exit codes:
  0 - All pings answered
  1 - One or more pings failed or timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
	pingCmd.Flags().StringVarP(&pingTarget, "target", "t", "", "Responder address (default: responder.address from config)")
}

func runPing(cmd *cobra.Command, args []string) error {
	addr := cfg.Responder.Address
	if pingTarget != "" {
		var err error
		addr, err = bus.ParseAddress(pingTarget)
		if err != nil {
			return err
		}
	}

	b, closer, connInfo, err := OpenBus()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer closer.Close()

	fmt.Printf("Framelink - Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Target: %s\n", addr)
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	successCount := 0
	failCount := 0
	var total time.Duration

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(pingTimeout)*time.Second)
		startTime := time.Now()
		status, err := b.ReadStatusByte(ctx, addr)
		rtt := time.Since(startTime)
		cancel()

		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			failCount++
		} else {
			fmt.Printf("status=%s from %s, rtt=%v\n", dataframe.Status(status), addr, rtt.Round(time.Microsecond))
			total += rtt
			successCount++
		}

		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)
	if successCount > 0 {
		fmt.Printf("average rtt=%v\n", (total / time.Duration(successCount)).Round(time.Microsecond))
	}

	if failCount > 0 {
		closer.Close()
		os.Exit(1)
	}
	return nil
}
