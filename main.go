// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for MeshPilot.
//
// Usage:
//
//	go run . [flags]
//	./meshpilot [flags]
//
// This launches the MeshPilot CLI. See --help for options.
package main

import (
	"log"
	"os"

	"github.com/voxaero/meshpilot/ui/cli"
)

// main is the entrypoint for the MeshPilot CLI.
func main() {
	if err := cli.Execute(); err != nil {
		log.Printf("MeshPilot CLI error: %v", err)
		os.Exit(1)
	}
}
