package main

import (
	"os"
	"path/filepath"

	"github.com/LenBoer/distributed-storage-visualization/internal/db"
	"github.com/LenBoer/distributed-storage-visualization/internal/export"
	"github.com/LenBoer/distributed-storage-visualization/internal/fsstat"
	"github.com/LenBoer/distributed-storage-visualization/internal/lustre"
	"github.com/spf13/cobra"
)

var collectCmd = &cobra.Command{
	Use:   "collect <dir>",
	Short: "Snapshot usage, file metadata and stripe layouts below a directory",
	Long: `Snapshot a Lustre directory for later analysis.

Writes into --out-dir:
  df.csv               per-target usage from lfs df
  df_summary.csv       per-filesystem summaries
  directory_stats.csv  size, owner and timestamps of every file below <dir>
  stripes.json         the stripe layout of every one of those files`,
	Args: cobra.ExactArgs(1),
	Run:  runCollect,
}

func init() {
	collectCmd.Flags().String("out-dir", ".", "directory for the collected files")
}

func runCollect(cmd *cobra.Command, args []string) {
	e := mustEnv()
	outDir, _ := cmd.Flags().GetString("out-dir")
	ctx := cmd.Context()
	src := e.source()

	bs, err := src.DF(ctx)
	if err != nil {
		fail("running lfs df", err)
	}
	usage, err := lustre.ParseDF(string(bs))
	if err != nil {
		fail("parsing lfs df", err)
	}

	stats, err := fsstat.Walk(ctx, args[0], fsstat.Options{
		Concurrency: e.cfg.Walk.Concurrency,
		Logger:      e.log,
	})
	if err != nil {
		fail("walking "+args[0], err)
	}

	paths := make([]string, len(stats))
	for i, s := range stats {
		paths[i] = s.Path
	}
	layouts, layoutErr := lustre.Layouts(ctx, src, paths, e.cfg.Walk.Concurrency)
	e.log.Info("collected", "dir", args[0], "targets", len(usage.Rows), "files", len(stats), "layouts", len(layouts))
	if layoutErr != nil {
		e.log.Warn("skipping layouts", "failed", len(paths)-len(layouts))
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		fail("creating output directory", err)
	}
	files := []struct {
		name  string
		write func(f *os.File) error
	}{
		{"df.csv", func(f *os.File) error { return export.UsageRows(f, usage.Rows) }},
		{"df_summary.csv", func(f *os.File) error { return export.Summaries(f, usage.Summaries) }},
		{"directory_stats.csv", func(f *os.File) error { return export.FileStats(f, stats) }},
		{"stripes.json", func(f *os.File) error { return export.JSON(f, layouts) }},
	}
	for _, file := range files {
		if err := writeFile(filepath.Join(outDir, file.name), file.write); err != nil {
			fail("writing "+file.name, err)
		}
	}

	e.persist(db.KindCollect, args[0], func(d *db.DB, runID string) error {
		if err := d.SaveUsage(runID, usage); err != nil {
			return err
		}
		if err := d.SaveFileStats(runID, stats); err != nil {
			return err
		}
		return d.SaveLayouts(runID, layouts)
	})
	if layoutErr != nil {
		fail("collecting layouts", layoutErr)
	}
}
