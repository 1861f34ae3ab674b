package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	tests := map[string]struct {
		body    string
		want    func(*Config)
		wantErr bool
	}{
		"empty file keeps defaults": {
			body: "",
			want: func(*Config) {},
		},
		"partial override": {
			body: "ceph:\n  tib_scale: 1024\nlustre:\n  timeout: 5s\nstore:\n  path: /tmp/r.db\n",
			want: func(c *Config) {
				c.Ceph.TiBScale = 1024
				c.Lustre.Timeout = 5 * time.Second
				c.Store.Path = "/tmp/r.db"
			},
		},
		"walk and log": {
			body: "walk:\n  concurrency: 2\nlog:\n  level: debug\n",
			want: func(c *Config) {
				c.Walk.Concurrency = 2
				c.Log.Level = "debug"
			},
		},
		"zero epsilon": {
			body:    "ceph:\n  weight_epsilon: 0\n",
			wantErr: true,
		},
		"zero pg preamble": {
			body:    "ceph:\n  pg_preamble_lines: 0\n",
			wantErr: true,
		},
		"zero concurrency": {
			body:    "walk:\n  concurrency: 0\n",
			wantErr: true,
		},
		"bad duration": {
			body:    "lustre:\n  timeout: soon\n",
			wantErr: true,
		},
		"not yaml": {
			body:    "ceph: [\n",
			wantErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, test.body))
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			want := Default()
			test.want(want)
			assert.Equal(t, want, cfg)
		})
	}
}

func TestLoad_MissingExplicitPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault_IsCopy(t *testing.T) {
	cfg := Default()
	cfg.Walk.Concurrency = 99
	assert.Equal(t, 8, Default().Walk.Concurrency)
	assert.Equal(t, 0.1, Default().Ceph.WeightEpsilon)
	assert.Equal(t, 5, Default().Ceph.PGPreambleLines)
}

func TestParseLustreMounts(t *testing.T) {
	mounts := strings.Join([]string{
		"proc /proc proc rw,nosuid 0 0",
		"10.0.0.1@o2ib:/scratch /lustre/scratch lustre rw,flock 0 0",
		"10.0.0.1@o2ib:/home /lustre/my\\040home lustre rw 0 0",
		"10.0.0.1@o2ib:/scratch /lustre/scratch lustre rw,flock 0 0",
		"/dev/sda1 / ext4 rw 0 0",
		"short",
	}, "\n")

	got, err := parseLustreMounts(strings.NewReader(mounts))
	require.NoError(t, err)
	assert.Equal(t, []string{"/lustre/scratch", "/lustre/my home"}, got)
}

func TestFindLFS(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no executable bit")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "lfs")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))

	got, err := FindLFS(bin)
	require.NoError(t, err)
	assert.Equal(t, bin, got)

	_, err = FindLFS(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
