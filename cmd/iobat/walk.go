package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/LenBoer/distributed-storage-visualization/internal/db"
	"github.com/LenBoer/distributed-storage-visualization/internal/export"
	"github.com/LenBoer/distributed-storage-visualization/internal/fsstat"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var walkCmd = &cobra.Command{
	Use:   "walk <dir>",
	Short: "Collect size, owner and timestamps of every file below a directory",
	Args:  cobra.ExactArgs(1),
	Run:   runWalk,
}

func runWalk(cmd *cobra.Command, args []string) {
	e := mustEnv()

	stats, err := fsstat.Walk(cmd.Context(), args[0], fsstat.Options{
		Concurrency: e.cfg.Walk.Concurrency,
		Logger:      e.log,
	})
	if err != nil {
		fail("walking "+args[0], err)
	}

	e.persist(db.KindWalk, args[0], func(d *db.DB, runID string) error {
		return d.SaveFileStats(runID, stats)
	})

	if err := writeFileStats(stats); err != nil {
		fail("writing output", err)
	}
}

func writeFileStats(stats []fsstat.FileStat) error {
	switch output {
	case outputJSON:
		return export.JSON(os.Stdout, stats)
	case outputCSV:
		return export.FileStats(os.Stdout, stats)
	}
	printFileStats(stats)
	return nil
}

func printFileStats(stats []fsstat.FileStat) {
	fmt.Printf("%-50s %10s %5s %6s %6s %s\n", "FILE", "SIZE", "LINKS", "UID", "GID", "MODIFIED")
	fmt.Println(strings.Repeat("-", 95))

	var total uint64
	for _, s := range stats {
		name := s.Path
		if len(name) > 50 {
			name = "..." + name[len(name)-47:]
		}
		fmt.Printf("%-50s %10s %5d %6d %6d %s\n",
			name, humanize.IBytes(uint64(s.Size)), s.Links, s.UID, s.GID, humanize.Time(s.Mtime))
		total += uint64(s.Size)
	}

	fmt.Println(strings.Repeat("-", 95))
	fmt.Printf("Files: %s | Size: %s\n", humanize.Comma(int64(len(stats))), humanize.IBytes(total))
}
