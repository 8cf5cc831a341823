// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import "github.com/voxaero/meshpilot/internal/logging"

// dbLogf routes database diagnostics through the application's debug logger.
func dbLogf(format string, v ...any) {
	logging.Debugf(format, v...)
}
