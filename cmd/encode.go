// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/framelink/pkg/dataframe"
	"github.com/spf13/cobra"
)

var encodeCmd = &cobra.Command{
	Use:   "encode <value> [value...]",
	Short: "Encode field values into a dataframe",
	Long: `Print the escaped wire bytes of a dataframe holding the given values.

Values are 16-bit and accept decimal or 0x-prefixed hex. The field count is
the number of values (1-4).

Example:
  framelink encode 1 300
  02 00 01 01 2C 30 03`,
	Args: cobra.RangeArgs(dataframe.MinFields, dataframe.MaxFields),
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)
}

func runEncode(cmd *cobra.Command, args []string) error {
	values, err := parseValues(args)
	if err != nil {
		return err
	}

	enc, err := dataframe.NewEncoder(len(values))
	if err != nil {
		return err
	}
	frame, err := enc.Encode(values)
	if err != nil {
		return err
	}

	fmt.Println(dataframe.FormatHex(frame))
	return nil
}
