package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// MountsFile lists the mounted filesystems on Linux
const MountsFile = "/proc/mounts"

// lfs lands in one of these when it is not on PATH, e.g. under sudo
var lfsCandidates = []string{"/usr/bin/lfs", "/usr/sbin/lfs", "/usr/local/bin/lfs"}

// FindLFS resolves the configured lfs binary. A bare name is looked up on
// PATH first, then in the usual install locations.
func FindLFS(name string) (string, error) {
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}
	if strings.ContainsRune(name, os.PathSeparator) {
		return "", fmt.Errorf("lfs not found at %s", name)
	}
	for _, c := range lfsCandidates {
		if fi, err := os.Stat(c); err == nil && !fi.IsDir() && fi.Mode()&0o111 != 0 {
			return c, nil
		}
	}
	return "", fmt.Errorf("%s not found in PATH or %s", name, strings.Join(lfsCandidates, ", "))
}

// DiscoverLustreMounts returns the mount points of lustre filesystems
func DiscoverLustreMounts() ([]string, error) {
	f, err := os.Open(MountsFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseLustreMounts(f)
}

// parseLustreMounts reads fstab formatted lines:
// 10.0.0.1@tcp:/scratch /lustre/scratch lustre rw,flock 0 0
func parseLustreMounts(r io.Reader) ([]string, error) {
	var mounts []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || fields[2] != "lustre" {
			continue
		}
		// spaces in mount points are octal escaped
		mount := strings.ReplaceAll(fields[1], `\040`, " ")
		if seen[mount] {
			continue
		}
		seen[mount] = true
		mounts = append(mounts, mount)
	}
	return mounts, scanner.Err()
}
