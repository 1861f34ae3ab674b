package ceph

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/LenBoer/distributed-storage-visualization/internal/report"
)

const reportPGDump = "pg-dump"

// DefaultPGDumpPreamble is the number of header lines before the PG rows:
// version, stamp, last_osdmap_epoch, last_pg_scan and the PG_STAT header.
const DefaultPGDumpPreamble = 5

// Sections in dump order, separated by lines with fewer than two tokens
const (
	sectionPGs = iota
	sectionPools
	sectionDevices
	sectionTrailer
)

// PG_STAT OBJECTS MISSING_ON_PRIMARY DEGRADED MISPLACED UNFOUND BYTES
// OMAP_BYTES* OMAP_KEYS* LOG DISK_LOG STATE STATE_STAMP VERSION REPORTED
// UP UP_PRIMARY ACTING ...
const (
	pgColID        = 0
	pgColObjects   = 1
	pgColBytes     = 6
	pgColDiskLog   = 10
	pgColState     = 11
	pgColUp        = 15
	pgColUpPrimary = 16
	pgMinColumns   = 17
)

// POOLID OBJECTS MISSING_ON_PRIMARY DEGRADED MISPLACED UNFOUND BYTES
// OMAP_BYTES* OMAP_KEYS* LOG DISK_LOG
const (
	poolColID        = 0
	poolColObjects   = 1
	poolColBytes     = 6
	poolColOmapBytes = 7
	poolColOmapKeys  = 8
	poolColLog       = 9
	poolColDiskLog   = 10
	poolMinColumns   = 11
)

// OSD_STAT USED AVAIL USED_RAW TOTAL HB_PEERS PG_SUM PRIMARY_PG_SUM,
// with a unit token after every capacity
const (
	osdColID         = 0
	osdColUsed       = 1
	osdColUsedUnit   = 2
	osdColAvail      = 3
	osdColAvailUnit  = 4
	osdColTotal      = 7
	osdColTotalUnit  = 8
	osdColHBPeers    = 9
	osdColPGSum      = 10
	osdColPrimaryPGs = 11
	osdColumns       = 12
)

// PGDumpOptions tunes placement report parsing
type PGDumpOptions struct {
	// PreambleLines defaults to DefaultPGDumpPreamble
	PreambleLines int
	Units         Units
}

// ParsePGDump parses the plain output of `ceph pg dump` into placement
// group, pool and OSD records. Pools and devices are sorted by id.
// A report that ends before the OSD section is rejected, so a truncated
// dump never passes for a cluster without devices.
func ParsePGDump(text string, opts PGDumpOptions) (*PGDump, error) {
	preamble := opts.PreambleLines
	if preamble <= 0 {
		preamble = DefaultPGDumpPreamble
	}

	doc, err := report.Split(text, report.Policy{
		SkipLines: preamble,
		Separator: report.FewerTokens(2),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", reportPGDump, err)
	}
	if doc.Len() == 0 {
		return nil, fmt.Errorf("%s: %w: nothing after the %d line preamble", reportPGDump, report.ErrEmptyInput, preamble)
	}

	dump := &PGDump{}
	sawDevices := false
	poolIDs := make(map[int]bool)
	deviceIDs := make(map[int]bool)

blocks:
	for section, block := range doc.Blocks() {
		switch section {
		case sectionPGs:
			for _, line := range block.Lines {
				pg, err := parsePGRow(line)
				if err != nil {
					return nil, err
				}
				dump.PlacementGroups = append(dump.PlacementGroups, pg)
			}
		case sectionPools:
			for _, line := range block.Lines {
				pool, err := parsePoolRow(line)
				if err != nil {
					return nil, err
				}
				if poolIDs[pool.ID] {
					return nil, report.Malformed(reportPGDump, line, "duplicate pool %d", pool.ID)
				}
				poolIDs[pool.ID] = true
				dump.Pools = append(dump.Pools, pool)
			}
		case sectionDevices:
			// the OSD_STAT header makes a complete section non-empty
			sawDevices = !block.Empty()
			for _, line := range block.Lines {
				// OSD_STAT header and sum footer
				if line.Len() != osdColumns {
					continue
				}
				dev, err := parseDeviceRow(line, opts.Units)
				if err != nil {
					return nil, err
				}
				if deviceIDs[dev.ID] {
					return nil, report.Malformed(reportPGDump, line, "duplicate osd %d", dev.ID)
				}
				deviceIDs[dev.ID] = true
				dump.Devices = append(dump.Devices, dev)
			}
		default:
			break blocks
		}
	}
	if !sawDevices {
		return nil, &report.MalformedError{
			Report: reportPGDump,
			Reason: "report ends before the osd section",
		}
	}

	slices.SortStableFunc(dump.Pools, func(a, b Pool) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortStableFunc(dump.Devices, func(a, b Device) int { return cmp.Compare(a.ID, b.ID) })

	return dump, nil
}

func parsePGRow(line report.Line) (PlacementGroup, error) {
	if line.Len() < pgMinColumns {
		return PlacementGroup{}, report.Malformed(reportPGDump, line, "pg row wants %d columns, got %d", pgMinColumns, line.Len())
	}

	pgid := line.Token(pgColID)
	pool, num, ok := strings.Cut(pgid, ".")
	if !ok {
		return PlacementGroup{}, report.Malformed(reportPGDump, line, "pg id %q is not <pool>.<seed>", pgid)
	}
	// pg seeds are printed in hex
	pgNum, err := strconv.ParseInt(num, 16, 64)
	if err != nil {
		return PlacementGroup{}, report.Malformed(reportPGDump, line, "bad pg number %q", num)
	}

	ints, err := parseInt64Columns(line, pgColObjects, pgColBytes, pgColDiskLog)
	if err != nil {
		return PlacementGroup{}, err
	}

	up, err := parseIDList(line.Token(pgColUp))
	if err != nil {
		return PlacementGroup{}, report.Malformed(reportPGDump, line, "bad up set: %v", err)
	}
	primary, err := strconv.Atoi(line.Token(pgColUpPrimary))
	if err != nil {
		return PlacementGroup{}, report.Malformed(reportPGDump, line, "bad up primary %q", line.Token(pgColUpPrimary))
	}
	if !slices.Contains(up, primary) {
		return PlacementGroup{}, report.Malformed(reportPGDump, line, "up primary %d not in up set %v", primary, up)
	}

	return PlacementGroup{
		PGID:      pgid,
		Pool:      pool,
		PGNum:     int(pgNum),
		Objects:   ints[0],
		Bytes:     ints[1],
		DiskLog:   ints[2],
		State:     line.Token(pgColState),
		Up:        up,
		UpPrimary: primary,
	}, nil
}

func parsePoolRow(line report.Line) (Pool, error) {
	if line.Len() < poolMinColumns {
		return Pool{}, report.Malformed(reportPGDump, line, "pool row wants %d columns, got %d", poolMinColumns, line.Len())
	}
	id, err := strconv.Atoi(line.Token(poolColID))
	if err != nil {
		return Pool{}, report.Malformed(reportPGDump, line, "bad pool id %q", line.Token(poolColID))
	}
	ints, err := parseInt64Columns(line,
		poolColObjects, poolColBytes, poolColOmapBytes, poolColOmapKeys, poolColLog, poolColDiskLog)
	if err != nil {
		return Pool{}, err
	}
	return Pool{
		ID:        id,
		Objects:   ints[0],
		Bytes:     ints[1],
		OmapBytes: ints[2],
		OmapKeys:  ints[3],
		Log:       ints[4],
		DiskLog:   ints[5],
	}, nil
}

func parseDeviceRow(line report.Line, units Units) (Device, error) {
	id, err := strconv.Atoi(line.Token(osdColID))
	if err != nil {
		return Device{}, report.Malformed(reportPGDump, line, "bad osd id %q", line.Token(osdColID))
	}

	var caps [3]float64
	for i, col := range [][2]int{
		{osdColUsed, osdColUsedUnit},
		{osdColAvail, osdColAvailUnit},
		{osdColTotal, osdColTotalUnit},
	} {
		v, err := units.Normalize(line.Token(col[0]), line.Token(col[1]))
		if err != nil {
			return Device{}, report.Malformed(reportPGDump, line, "%v", err)
		}
		caps[i] = v
	}

	peers, err := parseIDList(line.Token(osdColHBPeers))
	if err != nil {
		return Device{}, report.Malformed(reportPGDump, line, "bad hb peers: %v", err)
	}
	slices.Sort(peers)
	peers = slices.Compact(peers)

	pgs, err := strconv.Atoi(line.Token(osdColPGSum))
	if err != nil {
		return Device{}, report.Malformed(reportPGDump, line, "bad pg sum %q", line.Token(osdColPGSum))
	}
	primaryPGs, err := strconv.Atoi(line.Token(osdColPrimaryPGs))
	if err != nil {
		return Device{}, report.Malformed(reportPGDump, line, "bad primary pg sum %q", line.Token(osdColPrimaryPGs))
	}

	return Device{
		ID:             id,
		Used:           caps[0],
		Available:      caps[1],
		Total:          caps[2],
		HeartbeatPeers: peers,
		PGs:            pgs,
		PrimaryPGs:     primaryPGs,
	}, nil
}

func parseInt64Columns(line report.Line, cols ...int) ([]int64, error) {
	vals := make([]int64, len(cols))
	for i, col := range cols {
		v, err := strconv.ParseInt(line.Token(col), 10, 64)
		if err != nil {
			return nil, report.Malformed(reportPGDump, line, "bad integer %q in column %d", line.Token(col), col)
		}
		vals[i] = v
	}
	return vals, nil
}

// parseIDList parses "[0,1,2]"
func parseIDList(s string) ([]int, error) {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("%q is not a bracketed list", s)
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	ids := []int{}
	if s == "" {
		return ids, nil
	}
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("bad id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
