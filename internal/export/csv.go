// Package export writes record sets as CSV tables and JSON documents
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/LenBoer/distributed-storage-visualization/internal/ceph"
	"github.com/LenBoer/distributed-storage-visualization/internal/fsstat"
	"github.com/LenBoer/distributed-storage-visualization/internal/lustre"
)

// Table writes a header row followed by one row per record
func Table[T any](w io.Writer, header []string, records []T, row func(T) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for i, rec := range records {
		if err := cw.Write(row(rec)); err != nil {
			return fmt.Errorf("writing csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Nodes writes the CRUSH hierarchy, one row per bucket or device
func Nodes(w io.Writer, nodes []ceph.Node) error {
	header := []string{"id", "name", "kind", "type", "class", "parent", "weight", "residual", "status", "reweight", "primary_affinity"}
	return Table(w, header, nodes, func(n ceph.Node) []string {
		return []string{
			n.ID, n.Name, string(n.Kind), n.BucketType, n.DeviceClass, n.ParentID,
			f64(n.Weight), f64(n.Residual), n.Status, f64(n.Reweight), f64(n.PrimaryAffinity),
		}
	})
}

// PlacementGroups writes the pg section of a placement report
func PlacementGroups(w io.Writer, pgs []ceph.PlacementGroup) error {
	header := []string{"pgid", "pool", "pg_number", "objects", "bytes", "disk_log", "state", "up", "up_primary"}
	return Table(w, header, pgs, func(pg ceph.PlacementGroup) []string {
		return []string{
			pg.PGID, pg.Pool, strconv.Itoa(pg.PGNum), i64(pg.Objects), i64(pg.Bytes), i64(pg.DiskLog),
			pg.State, ints(pg.Up), strconv.Itoa(pg.UpPrimary),
		}
	})
}

// Pools writes the per-pool totals of a placement report
func Pools(w io.Writer, pools []ceph.Pool) error {
	header := []string{"pool", "objects", "bytes", "omap_bytes", "omap_keys", "log", "disk_log"}
	return Table(w, header, pools, func(p ceph.Pool) []string {
		return []string{
			strconv.Itoa(p.ID), i64(p.Objects), i64(p.Bytes), i64(p.OmapBytes), i64(p.OmapKeys), i64(p.Log), i64(p.DiskLog),
		}
	})
}

// Devices writes the OSD section with the used percentage added
func Devices(w io.Writer, devs []ceph.Device) error {
	header := []string{"number", "used", "available", "total", "percentage_used", "hb_peers", "pg_sum", "primary_pg_sum"}
	return Table(w, header, devs, func(d ceph.Device) []string {
		return []string{
			strconv.Itoa(d.ID), f64(d.Used), f64(d.Available), f64(d.Total), f64(100 * d.UsedRatio()),
			ints(d.HeartbeatPeers), strconv.Itoa(d.PGs), strconv.Itoa(d.PrimaryPGs),
		}
	})
}

// UsageRows writes one row per MDT or OST of an lfs df report
func UsageRows(w io.Writer, rows []lustre.UsageRow) error {
	header := []string{"id", "blocks", "used", "available", "use_percent", "mounted_on", "partition", "storage_type"}
	return Table(w, header, rows, func(r lustre.UsageRow) []string {
		return []string{
			r.ID, i64(r.Blocks), i64(r.Used), i64(r.Available), strconv.Itoa(r.UsePercent),
			r.MountPoint, r.Partition, string(r.Kind),
		}
	})
}

// Summaries writes the filesystem_summary lines of an lfs df report
func Summaries(w io.Writer, sums []lustre.FilesystemSummary) error {
	header := []string{"summary_name", "avg_blocks", "avg_used", "avg_available", "avg_use_percent"}
	return Table(w, header, sums, func(s lustre.FilesystemSummary) []string {
		return []string{s.Name, i64(s.Blocks), i64(s.Used), i64(s.Available), strconv.Itoa(s.UsePercent)}
	})
}

// FileStats writes walker results with timestamps as epoch seconds
func FileStats(w io.Writer, stats []fsstat.FileStat) error {
	header := []string{"name", "size", "links", "user_id", "group_id", "atime", "mtime", "ctime", "device"}
	return Table(w, header, stats, func(s fsstat.FileStat) []string {
		return []string{
			s.Path, i64(s.Size), strconv.Itoa(s.Links), strconv.Itoa(s.UID), strconv.Itoa(s.GID),
			epoch(s.Atime), epoch(s.Mtime), epoch(s.Ctime), strconv.FormatUint(s.Device, 10),
		}
	})
}

// FileSizes writes the size table of an IO report
func FileSizes(w io.Writer, sizes []lustre.FileSize) error {
	return Table(w, []string{"name", "size"}, sizes, func(s lustre.FileSize) []string {
		return []string{s.Name, i64(s.Size)}
	})
}

func f64(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func i64(v int64) string { return strconv.FormatInt(v, 10) }

// ints renders a list the way ceph prints it: [1,2,3]
func ints(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// epoch renders seconds since the epoch with sub-second precision
func epoch(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', -1, 64)
}
