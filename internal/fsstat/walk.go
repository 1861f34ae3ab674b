// Package fsstat collects per-file metadata below a directory
package fsstat

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// DefaultConcurrency bounds the subdirectories walked at once
const DefaultConcurrency = 8

// FileStat is the metadata of one regular file (symlinks are followed)
type FileStat struct {
	Path   string    `json:"name"`
	Size   int64     `json:"size"`
	Links  int       `json:"links"`
	UID    int       `json:"user_id"`
	GID    int       `json:"group_id"`
	Atime  time.Time `json:"atime"`
	Mtime  time.Time `json:"mtime"`
	Ctime  time.Time `json:"ctime"`
	Device uint64    `json:"device"`
}

// Options tunes Walk. A nil Logger discards warnings.
type Options struct {
	Concurrency int
	Logger      *slog.Logger
}

type walker struct {
	log *slog.Logger

	mu    sync.Mutex
	stats []FileStat
}

// Walk stats every file below root. Files that disappear during the walk are
// skipped, unreadable directories are logged and skipped.
func Walk(ctx context.Context, root string, opts Options) ([]FileStat, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	w := &walker{log: opts.Logger}
	if w.log == nil {
		w.log = slog.New(slog.DiscardHandler)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}

	p := pool.New().WithContext(ctx).WithMaxGoroutines(opts.Concurrency)
	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())
		if entry.IsDir() {
			p.Go(func(ctx context.Context) error {
				return w.walkDir(ctx, path)
			})
			continue
		}
		if err := ctx.Err(); err != nil {
			_ = p.Wait()
			return nil, err
		}
		w.stat(path)
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(w.stats, func(a, b FileStat) int {
		return strings.Compare(a.Path, b.Path)
	})
	return w.stats, nil
}

func (w *walker) walkDir(ctx context.Context, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			w.log.Warn("skipping unreadable entry", "path", path, "err", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		w.stat(path)
		return nil
	})
}

func (w *walker) stat(path string) {
	st, err := statFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.log.Warn("stat failed", "path", path, "err", err)
		}
		return
	}
	if st == nil {
		return
	}

	w.mu.Lock()
	w.stats = append(w.stats, *st)
	w.mu.Unlock()
}
