// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

// Command meshpilot is the installable entrypoint for the MeshPilot CLI.
package main

import (
	"os"

	"github.com/voxaero/meshpilot/ui/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
