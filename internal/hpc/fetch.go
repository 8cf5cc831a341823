// Copyright (c) 2026 VoxAero
// MeshPilot - CFD preprocessing and HPC job orchestration
// This source code is licensed under the MIT license found in the LICENSE file.

package hpc

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/voxaero/meshpilot/internal/logging"
)

// Fetch downloads the contents of a remote job directory into localDir.
// It returns the number of files retrieved.
func (c *Connector) Fetch(ctx context.Context, remoteDir, localDir string) (int, error) {
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", localDir, err)
	}

	count := 0
	walker := c.sftp.Walk(remoteDir)
	for walker.Step() {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if err := walker.Err(); err != nil {
			return count, fmt.Errorf("failed to walk %s: %w", remoteDir, err)
		}

		remotePath := walker.Path()
		rel, err := filepath.Rel(remoteDir, remotePath)
		if err != nil || rel == "." {
			continue
		}
		localPath := filepath.Join(localDir, filepath.FromSlash(rel))

		if walker.Stat().IsDir() {
			if err := os.MkdirAll(localPath, 0o755); err != nil {
				return count, err
			}
			continue
		}

		if err := c.download(remotePath, localPath); err != nil {
			return count, err
		}
		count++
	}

	logging.Infof("hpc: fetched %d files from %s", count, remoteDir)
	return count, nil
}

// FetchArchive downloads a job directory and packs it into a .tar.zst
// archive at archivePath. The intermediate download directory sits next to
// the archive and is removed afterwards.
func (c *Connector) FetchArchive(ctx context.Context, remoteDir, archivePath string) (int, error) {
	stage := strings.TrimSuffix(archivePath, ".tar.zst") + ".fetch"
	defer os.RemoveAll(stage)

	count, err := c.Fetch(ctx, remoteDir, stage)
	if err != nil {
		return count, err
	}
	if err := ArchiveDir(stage, archivePath); err != nil {
		return count, err
	}
	return count, nil
}

func (c *Connector) download(remotePath, localPath string) error {
	src, err := c.sftp.Open(remotePath)
	if err != nil {
		return fmt.Errorf("failed to open remote file %s: %w", remotePath, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to download %s: %w", remotePath, err)
	}
	return nil
}

// ArchiveDir packs srcDir into a zstd-compressed tar at dstPath. Paths
// inside the archive are relative to srcDir.
func ArchiveDir(srcDir, dstPath string) error {
	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create archive %s: %w", dstPath, err)
	}
	defer out.Close()

	zw, err := zstd.NewWriter(out)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(zw)

	err = filepath.Walk(srcDir, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil || rel == "." {
			return nil
		}
		hdr, err := tar.FileInfoHeader(fi, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", srcDir, err)
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return zw.Close()
}

// ExtractArchive unpacks a .tar.zst archive into dstDir.
func ExtractArchive(archivePath, dstDir string) error {
	in, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer in.Close()

	zr, err := zstd.NewReader(in)
	if err != nil {
		return err
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read archive: %w", err)
		}

		// Reject entries that would escape the destination.
		name := path.Clean(hdr.Name)
		if strings.HasPrefix(name, "..") {
			return fmt.Errorf("archive entry %q escapes destination", hdr.Name)
		}
		target := filepath.Join(dstDir, filepath.FromSlash(name))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.Create(target)
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			f.Close()
		}
	}
}
