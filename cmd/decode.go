// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/Thermoquad/framelink/pkg/dataframe"
	"github.com/spf13/cobra"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <hex bytes...>",
	Short: "Decode dataframes from hex bytes",
	Long: `Feed hex bytes through the receive assembler and print every frame it closes.

Bytes may be separated by spaces or commas and may carry 0x prefixes. The
field count comes from --fields. The status a responder would report after the
last byte is printed at the end.

Example:
  framelink decode -n 2 "02 00 01 01 2C 30 03"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	data, err := dataframe.ParseHex(strings.Join(args, " "))
	if err != nil {
		return err
	}

	asm, err := dataframe.NewAssembler(cfg.Fields)
	if err != nil {
		return err
	}

	frames := 0
	for _, b := range data {
		if frame := asm.Feed(b); frame != nil {
			fmt.Print(dataframe.FormatFrame(frame))
			frames++
		}
	}

	if frames == 0 {
		fmt.Printf("No complete dataframe in %d bytes\n", len(data))
	}
	if buffered := asm.Buffered(); len(buffered) > 0 {
		fmt.Printf("Buffered: %s\n", dataframe.FormatHex(buffered))
	}
	fmt.Printf("Status: %d (%s)\n", asm.Status(), asm.Status())
	return nil
}
