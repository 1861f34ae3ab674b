package lustre

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/LenBoer/distributed-storage-visualization/internal/report"
)

const reportDF = "df"

// UUID 1K-blocks Used Available Use% Mounted on
const (
	dfColID        = 0
	dfColBlocks    = 1
	dfColUsed      = 2
	dfColAvailable = 3
	dfColUsePct    = 4
	dfColMount     = 5
	dfColumns      = 6

	dfHeaderToken  = "UUID"
	dfSummaryToken = "filesystem_summary:"
	mdtMarker      = "MDT"
)

// ParseDF parses `lfs df` output. Each filesystem is printed as a block of
// target rows followed by a one-line summary block, so blocks are read from
// the end: the summary of a filesystem is known before its rows.
func ParseDF(text string) (*Usage, error) {
	doc, err := report.Split(text, report.Paragraphs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", reportDF, err)
	}

	blocks := doc.Collect()
	var (
		groups    [][]UsageRow
		summaries []FilesystemSummary
		partition string
	)

	for i := len(blocks) - 1; i >= 0; i-- {
		block := blocks[i]
		if (len(blocks)-1-i)%2 == 0 {
			s, err := parseSummaryBlock(block)
			if err != nil {
				return nil, err
			}
			summaries = append(summaries, s)
			partition = s.Name
			continue
		}

		rows, err := parseTargetBlock(block, partition)
		if err != nil {
			return nil, err
		}
		groups = append(groups, rows)
	}

	// back to report order
	slices.Reverse(groups)
	slices.Reverse(summaries)

	usage := &Usage{Summaries: summaries}
	for _, g := range groups {
		usage.Rows = append(usage.Rows, g...)
	}
	return usage, nil
}

func parseSummaryBlock(block report.Block) (FilesystemSummary, error) {
	if len(block.Lines) != 1 {
		return FilesystemSummary{}, report.MalformedBlock(reportDF, block, "summary block wants 1 line, got %d", len(block.Lines))
	}
	line := block.Lines[0]
	if line.Len() != dfColumns || line.Token(0) != dfSummaryToken {
		return FilesystemSummary{}, report.Malformed(reportDF, line, "want %s with %d columns", dfSummaryToken, dfColumns)
	}
	blocks, used, avail, pct, err := parseUsageColumns(line)
	if err != nil {
		return FilesystemSummary{}, err
	}
	return FilesystemSummary{
		Name:       line.Token(dfColMount),
		Blocks:     blocks,
		Used:       used,
		Available:  avail,
		UsePercent: pct,
	}, nil
}

func parseTargetBlock(block report.Block, partition string) ([]UsageRow, error) {
	if block.Lines[0].Token(0) != dfHeaderToken {
		return nil, report.Malformed(reportDF, block.Lines[0], "want %s column header", dfHeaderToken)
	}

	rows := make([]UsageRow, 0, len(block.Lines)-1)
	for _, line := range block.Lines[1:] {
		if line.Len() != dfColumns {
			return nil, report.Malformed(reportDF, line, "target row wants %d columns, got %d", dfColumns, line.Len())
		}
		blocks, used, avail, pct, err := parseUsageColumns(line)
		if err != nil {
			return nil, err
		}
		mount := line.Token(dfColMount)
		kind := KindOST
		if strings.Contains(mount, mdtMarker) {
			kind = KindMDT
		}
		rows = append(rows, UsageRow{
			ID:         line.Token(dfColID),
			Kind:       kind,
			Blocks:     blocks,
			Used:       used,
			Available:  avail,
			UsePercent: pct,
			MountPoint: mount,
			Partition:  partition,
		})
	}
	return rows, nil
}

func parseUsageColumns(line report.Line) (blocks, used, avail int64, pct int, err error) {
	var vals [3]int64
	for i, col := range []int{dfColBlocks, dfColUsed, dfColAvailable} {
		if vals[i], err = strconv.ParseInt(line.Token(col), 10, 64); err != nil {
			return 0, 0, 0, 0, report.Malformed(reportDF, line, "bad integer %q in column %d", line.Token(col), col)
		}
	}
	raw := line.Token(dfColUsePct)
	if !strings.HasSuffix(raw, "%") {
		return 0, 0, 0, 0, report.Malformed(reportDF, line, "bad use%% %q", raw)
	}
	if pct, err = strconv.Atoi(strings.TrimSuffix(raw, "%")); err != nil {
		return 0, 0, 0, 0, report.Malformed(reportDF, line, "bad use%% %q", raw)
	}
	return vals[0], vals[1], vals[2], pct, nil
}
