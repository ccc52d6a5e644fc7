// Package archive moves expired batches out of the published hosting tree.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/payroll-approval-bot/internal/config"
)

// ErrBatchNotFound means the batch file exists neither in the open tree nor
// in the archive.
var ErrBatchNotFound = errors.New("archive: batch not found")

// UsersDir holds the per-recipient files split out of a batch.
const UsersDir = "users"

// FolderMover moves the folder that holds a batch file from the open tree to
// the same relative path under the archive tree.
type FolderMover struct {
	openRoot    string
	archiveRoot string
	log         zerolog.Logger
}

// NewFolderMover builds a mover over <root>/<open> and <root>/<archive>.
func NewFolderMover(cfg config.HostingConfig) *FolderMover {
	return &FolderMover{
		openRoot:    filepath.Join(cfg.Root, cfg.OpenDir),
		archiveRoot: filepath.Join(cfg.Root, cfg.ArchiveDir),
		log:         log.With().Str("component", "archive").Logger(),
	}
}

// OpenRoot is the directory published batches live under.
func (m *FolderMover) OpenRoot() string { return m.openRoot }

// MoveBatch archives the folder containing batchFile. A batch already in the
// archive is a no-op success; a folder left half-moved by an earlier attempt
// is completed.
func (m *FolderMover) MoveBatch(ctx context.Context, batchFile string) error {
	name := filepath.Base(batchFile)
	src, err := findBatchDir(m.openRoot, name)
	if err != nil {
		return err
	}
	if src == "" {
		archived, err := findBatchDir(m.archiveRoot, name)
		if err != nil {
			return err
		}
		if archived != "" {
			m.log.Debug().Str("batch_file", name).Str("path", archived).Msg("batch already archived")
			if archived == m.archiveRoot {
				return m.moveRootUsers(name)
			}
			return nil
		}
		return fmt.Errorf("%w: %s", ErrBatchNotFound, name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rel, err := filepath.Rel(m.openRoot, src)
	if err != nil {
		return fmt.Errorf("relative path of %s: %w", src, err)
	}
	dst := filepath.Join(m.archiveRoot, rel)
	if rel == "." {
		// A batch published directly under the open root shares the folder
		// with other batches; only its own file and user files move.
		src, dst = filepath.Join(src, name), filepath.Join(m.archiveRoot, name)
		if err := m.moveRootUsers(name); err != nil {
			return err
		}
	}

	if err := mergeInto(src, dst); err != nil {
		return err
	}
	m.log.Info().Str("batch_file", name).Str("from", src).Str("to", dst).Msg("batch archived")
	return nil
}

// moveRootUsers moves the user files of a root-level batch into the archive
// root's users folder. Files of other batches stay.
func (m *FolderMover) moveRootUsers(name string) error {
	srcDir := filepath.Join(m.openRoot, UsersDir)
	entries, err := os.ReadDir(srcDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", srcDir, err)
	}
	dstDir := filepath.Join(m.archiveRoot, UsersDir)
	n := 0
	for _, e := range entries {
		if e.IsDir() || !IsUserFileOf(e.Name(), name) {
			continue
		}
		if err := mergeInto(filepath.Join(srcDir, e.Name()), filepath.Join(dstDir, e.Name())); err != nil {
			return err
		}
		n++
	}
	if n > 0 {
		m.log.Debug().Str("batch_file", name).Int("files", n).Msg("user files archived")
	}
	return nil
}

// mergeInto renames src to dst. When dst already exists (an interrupted
// earlier move) the remaining entries of src are moved into it and src is
// removed.
func mergeInto(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
	}
	if _, err := os.Stat(dst); errors.Is(err, fs.ErrNotExist) {
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("move %s: %w", src, err)
		}
		return nil
	} else if err != nil {
		return fmt.Errorf("stat %s: %w", dst, err)
	}

	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if !info.IsDir() {
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("move %s: %w", src, err)
		}
		return nil
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	for _, e := range entries {
		if err := mergeInto(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove %s: %w", src, err)
	}
	return nil
}

// findBatchDir returns the directory under root that directly contains name,
// skipping users folders, or "" when there is none.
func findBatchDir(root, name string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == UsersDir {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == name {
			found = filepath.Dir(path)
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search %s: %w", root, err)
	}
	return found, nil
}
