package lustre

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/LenBoer/distributed-storage-visualization/internal/cache"
)

// Source yields raw report text. Exec captures it from lfs, tests use fixtures.
type Source interface {
	Getstripe(ctx context.Context, path string) ([]byte, error)
	DF(ctx context.Context) ([]byte, error)
}

// Exec runs the lfs client tool and caches what it printed
type Exec struct {
	log     *slog.Logger
	binPath string
	timeout time.Duration
	cache   *cache.Cache[[]byte]
}

// NewExec returns an lfs runner. A nil cache disables caching.
func NewExec(binPath string, timeout time.Duration, c *cache.Cache[[]byte], log *slog.Logger) *Exec {
	return &Exec{
		log:     log,
		binPath: binPath,
		timeout: timeout,
		cache:   c,
	}
}

// Getstripe captures `lfs getstripe <path>`
func (e *Exec) Getstripe(ctx context.Context, path string) ([]byte, error) {
	return e.run(ctx, "getstripe:"+path, cache.TTLLayout, true, "getstripe", path)
}

// DF captures `lfs df`
func (e *Exec) DF(ctx context.Context) ([]byte, error) {
	return e.run(ctx, "df", cache.TTLUsage, false, "df")
}

// run captures stdout only, stderr would shift the positional report lines.
// With diagOnFailure a failing call that printed nothing but a message on
// stderr yields that message, which the getstripe parser turns into an
// empty layout.
func (e *Exec) run(ctx context.Context, key string, ttl time.Duration, diagOnFailure bool, args ...string) ([]byte, error) {
	if e.cache != nil {
		if bs, ok := e.cache.Get(key); ok {
			age, _ := e.cache.Age(key)
			e.log.Debug("using cached output", "key", key, "age", age)
			return bs, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.binPath, args...)
	e.log.Debug("executing", "cmd", cmd.String())

	bs, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || ctx.Err() != nil {
			return nil, fmt.Errorf("error on '%s': %w", cmd, err)
		}
		stderr := bytes.TrimSpace(exitErr.Stderr)
		switch {
		case len(bs) > 0:
			// lfs exits non-zero for files without a layout but still
			// prints what it has
		case diagOnFailure && len(stderr) > 0:
			bs = append(stderr, '\n')
		case len(stderr) > 0:
			return nil, fmt.Errorf("error on '%s': %w: %s", cmd, err, stderr)
		default:
			return nil, fmt.Errorf("error on '%s': %w", cmd, err)
		}
		e.log.Debug("lfs exited non-zero", "cmd", cmd.String(), "code", exitErr.ExitCode())
	}

	if e.cache != nil {
		e.cache.Set(key, bs, ttl)
	}
	return bs, nil
}
