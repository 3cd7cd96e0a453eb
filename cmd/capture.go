// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Thermoquad/framelink/pkg/bridge"
	"github.com/Thermoquad/framelink/pkg/dataframe"
	"github.com/spf13/cobra"
)

var (
	captureRecord string
	captureReplay string
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Decode dataframes from a raw byte stream",
	Long: `Continuously decode dataframes from a serial port or WebSocket byte stream.

Every byte is fed to the receive assembler exactly as a responder would see
it, so framing errors and resynchronization are visible. Each closed frame is
printed with its fields, checksum verdict and raw bytes.

With --record, frames are also appended to a CBOR file. --replay prints a
recorded file instead of opening a connection.`,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().StringVar(&captureRecord, "record", "", "Append captured frames to this CBOR file")
	captureCmd.Flags().StringVar(&captureReplay, "replay", "", "Print frames from a recorded CBOR file")
}

func runCapture(cmd *cobra.Command, args []string) error {
	if captureReplay != "" {
		return replayCapture(captureReplay)
	}

	conn, connInfo, err := OpenStream()
	if err != nil {
		return err
	}
	defer conn.Close()

	var recorder *dataframe.RecordWriter
	if captureRecord != "" {
		f, err := os.OpenFile(captureRecord, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open record file: %w", err)
		}
		defer f.Close()
		recorder = dataframe.NewRecordWriter(f)
	}

	asm, err := dataframe.NewAssembler(cfg.Fields)
	if err != nil {
		return err
	}

	fmt.Printf("Framelink - Capture\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Fields: %d\n", cfg.Fields)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	buf := make([]byte, 128)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			// A WebSocket read error means the connection is gone
			if errors.Is(err, bridge.ErrConnectionClosed) || errors.Is(err, io.EOF) {
				logger.Info().Msg("connection closed")
				return nil
			}
			logger.Error().Err(err).Msg("read error")
			continue
		}

		for i := 0; i < n; i++ {
			frame := asm.Feed(buf[i])
			if frame == nil {
				continue
			}
			fmt.Print(dataframe.FormatFrame(frame))
			if recorder != nil {
				if err := recorder.Write(frame); err != nil {
					return err
				}
			}
		}
	}
}

func replayCapture(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open record file: %w", err)
	}
	defer f.Close()

	records, err := dataframe.ReadRecords(f)
	if err != nil {
		return err
	}

	valid := 0
	for _, rec := range records {
		frame := rec.Frame()
		if frame.ChecksumValid() {
			valid++
		}
		fmt.Print(dataframe.FormatFrame(frame))
	}
	fmt.Printf("\n%d frames, %d with valid checksum\n", len(records), valid)
	return nil
}
