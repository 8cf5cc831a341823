// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package nx

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/voxaero/meshpilot/internal/logging"
)

//go:embed journals/*.py
var journalFS embed.FS

// Known install locations of run_journal.exe, newest release first. The
// /mnt/c variants cover WSL, where NX runs on the Windows side.
var runJournalPaths = []string{
	`C:\Program Files\Siemens\NX2406\NXBIN\run_journal.exe`,
	`C:\Program Files\Siemens\NX2306\NXBIN\run_journal.exe`,
	`C:\Program Files\Siemens\NX2207\NXBIN\run_journal.exe`,
	`C:\Program Files\Siemens\NX1980\NXBIN\run_journal.exe`,
	"/mnt/c/Program Files/Siemens/NX2406/NXBIN/run_journal.exe",
	"/mnt/c/Program Files/Siemens/NX2306/NXBIN/run_journal.exe",
	"/mnt/c/Program Files/Siemens/NX2207/NXBIN/run_journal.exe",
	"/mnt/c/Program Files/Siemens/NX1980/NXBIN/run_journal.exe",
}

// LocateRunJournal finds the NX batch executable. An explicit configured
// path wins; otherwise the known install locations are probed.
func LocateRunJournal(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("configured NX executable not found at %s", configured)
		}
		return configured, nil
	}
	for _, p := range runJournalPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("run_journal.exe not found; NX automation needs Siemens NX installed on Windows or reachable through /mnt/c")
}

// Journal drives NX part updates through run_journal.exe.
type Journal struct {
	Exe string
}

// NewJournal locates the NX executable and returns a Journal. exePath may
// be empty to use autodetection.
func NewJournal(exePath string) (*Journal, error) {
	exe, err := LocateRunJournal(exePath)
	if err != nil {
		return nil, err
	}
	return &Journal{Exe: exe}, nil
}

// run materializes an embedded journal script and executes it with args.
func (j *Journal) run(ctx context.Context, script string, args ...string) error {
	src, err := fs.ReadFile(journalFS, "journals/"+script)
	if err != nil {
		return fmt.Errorf("embedded journal %s: %w", script, err)
	}

	dir, err := os.MkdirTemp("", "meshpilot-nx-")
	if err != nil {
		return fmt.Errorf("failed to create journal dir: %w", err)
	}
	defer os.RemoveAll(dir)

	scriptPath := filepath.Join(dir, script)
	if err := os.WriteFile(scriptPath, src, 0o644); err != nil {
		return fmt.Errorf("failed to write journal script: %w", err)
	}

	cmdArgs := append([]string{scriptPath, "-args"}, args...)
	cmd := exec.CommandContext(ctx, j.Exe, cmdArgs...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	logging.Debugf("nx: running %s %s", j.Exe, strings.Join(cmdArgs, " "))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run_journal failed: %w: %s", err, strings.TrimSpace(out.String()))
	}
	return nil
}

// ExportStep applies the expressions to the part, regenerates the model and
// exports STEP geometry to stepFile. The output file is verified to exist
// and be non-empty, since run_journal can exit zero on a failed update.
func (j *Journal) ExportStep(ctx context.Context, partFile string, exprs []Expression, stepFile string) error {
	if _, err := os.Stat(partFile); err != nil {
		return fmt.Errorf("part file not found: %s", partFile)
	}

	expFile := strings.TrimSuffix(stepFile, filepath.Ext(stepFile)) + ".exp"
	if _, err := WriteExpFile(exprs, expFile, false); err != nil {
		return err
	}

	if err := j.run(ctx, "update_export.py", hostPath(partFile), hostPath(expFile), hostPath(stepFile)); err != nil {
		return err
	}

	fi, err := os.Stat(stepFile)
	if err != nil {
		return fmt.Errorf("NX reported success but STEP output %s is missing", stepFile)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("NX produced an empty STEP file at %s", stepFile)
	}
	logging.Infof("nx: exported %s (%d bytes)", stepFile, fi.Size())
	return nil
}

// ExportExpressions dumps the part's current expressions to expFile.
func (j *Journal) ExportExpressions(ctx context.Context, partFile, expFile string) error {
	if _, err := os.Stat(partFile); err != nil {
		return fmt.Errorf("part file not found: %s", partFile)
	}
	return j.run(ctx, "export_expressions.py", hostPath(partFile), hostPath(expFile))
}

// hostPath translates a WSL /mnt/<drive>/ path to the Windows form NX
// expects. Paths already in Windows form, or plain POSIX paths outside
// /mnt, pass through unchanged.
func hostPath(p string) string {
	if !strings.HasPrefix(p, "/mnt/") || len(p) < 7 {
		return p
	}
	drive := p[5]
	rest := p[6:]
	if drive < 'a' || drive > 'z' || (rest != "" && rest[0] != '/') {
		return p
	}
	return string(drive-'a'+'A') + ":" + strings.ReplaceAll(rest, "/", `\`)
}
