package fsstat

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]int) string {
	t.Helper()
	root := t.TempDir()
	for name, size := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	}
	return root
}

func TestWalk(t *testing.T) {
	root := writeTree(t, map[string]int{
		"top.dat":        3,
		"a/one.dat":      10,
		"a/deep/two.dat": 20,
		"b/three.dat":    0,
		"c/d/e/four.dat": 4,
	})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	for name, concurrency := range map[string]int{"default": 0, "serial": 1, "wide": 16} {
		t.Run(name, func(t *testing.T) {
			stats, err := Walk(context.Background(), root, Options{Concurrency: concurrency})
			require.NoError(t, err)

			var paths []string
			sizes := make(map[string]int64)
			for _, st := range stats {
				rel, err := filepath.Rel(root, st.Path)
				require.NoError(t, err)
				paths = append(paths, filepath.ToSlash(rel))
				sizes[filepath.ToSlash(rel)] = st.Size
				assert.GreaterOrEqual(t, st.Links, 1)
				assert.False(t, st.Mtime.IsZero())
			}

			assert.Equal(t, []string{"a/deep/two.dat", "a/one.dat", "b/three.dat", "c/d/e/four.dat", "top.dat"}, paths)
			assert.Equal(t, int64(20), sizes["a/deep/two.dat"])
			assert.Equal(t, int64(0), sizes["b/three.dat"])
		})
	}
}

func TestWalk_Owner(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("owner ids are read on linux only")
	}
	root := writeTree(t, map[string]int{"f": 1})

	stats, err := Walk(context.Background(), root, Options{})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, os.Getuid(), stats[0].UID)
	assert.Equal(t, os.Getgid(), stats[0].GID)
	assert.NotZero(t, stats[0].Device)
}

func TestWalk_SkipsDanglingSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges")
	}
	root := writeTree(t, map[string]int{"a/real.dat": 1})
	require.NoError(t, os.Symlink(filepath.Join(root, "nowhere"), filepath.Join(root, "a", "gone.dat")))

	stats, err := Walk(context.Background(), root, Options{})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, filepath.Join(root, "a", "real.dat"), stats[0].Path)
}

func TestWalk_SkipsUnreadableDir(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permissions are not enforced")
	}
	root := writeTree(t, map[string]int{"ok/a.dat": 1, "locked/b.dat": 1})
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	stats, err := Walk(context.Background(), root, Options{})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, filepath.Join(root, "ok", "a.dat"), stats[0].Path)
}

func TestWalk_Errors(t *testing.T) {
	_, err := Walk(context.Background(), filepath.Join(t.TempDir(), "missing"), Options{})
	assert.Error(t, err)

	root := writeTree(t, map[string]int{"a/one.dat": 1, "top.dat": 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Walk(ctx, root, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
