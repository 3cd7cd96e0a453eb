// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Framelink - STX/ETX dataframe link tool
//
// A CLI tool for sending, receiving and analyzing checksummed dataframes
// exchanged between a bus controller and its responders.

package main

import (
	"os"

	"github.com/Thermoquad/framelink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
