package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/LenBoer/distributed-storage-visualization/internal/cache"
	"github.com/LenBoer/distributed-storage-visualization/internal/config"
	"github.com/LenBoer/distributed-storage-visualization/internal/db"
	"github.com/LenBoer/distributed-storage-visualization/internal/export"
	"github.com/LenBoer/distributed-storage-visualization/internal/lustre"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var lustreCmd = &cobra.Command{
	Use:   "lustre",
	Short: "Parse Lustre client reports",
}

var lustreGetstripeCmd = &cobra.Command{
	Use:   "getstripe <path>...",
	Short: "Show the stripe layout of files",
	Long: `Show the stripe layout of files.

Runs 'lfs getstripe' on every path. With --from-file the arguments are
files holding captured 'lfs getstripe' output instead. Files without a
layout (directories, unstriped files) are reported with the tool's message.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runLustreGetstripe,
}

var lustreDFCmd = &cobra.Command{
	Use:   "df",
	Short: "Show per-target usage from `lfs df`",
	Args:  cobra.NoArgs,
	Run:   runLustreDF,
}

var lustreIOCmd = &cobra.Command{
	Use:   "io",
	Short: "Compare the OST placement of a job's input and output files",
	Long: `Compare the OST placement of a job's input and output files.

Collects the stripe layouts of both groups and counts per OST how many
inputs and outputs have objects on it. With --out-dir the layouts are
written to inputs.json and outputs.json and file sizes to sizes.csv.`,
	Args: cobra.NoArgs,
	Run:  runLustreIO,
}

var lustreMountsCmd = &cobra.Command{
	Use:   "mounts",
	Short: "List mounted Lustre filesystems",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		mounts, err := config.DiscoverLustreMounts()
		if err != nil {
			fail("reading mounts", err)
		}
		if len(mounts) == 0 {
			fmt.Println("No Lustre filesystems mounted.")
			return
		}
		for _, m := range mounts {
			fmt.Println(m)
		}
	},
}

func init() {
	lustreCmd.AddCommand(lustreGetstripeCmd)
	lustreCmd.AddCommand(lustreDFCmd)
	lustreCmd.AddCommand(lustreIOCmd)
	lustreCmd.AddCommand(lustreMountsCmd)

	lustreGetstripeCmd.Flags().Bool("from-file", false, "arguments are files with captured lfs getstripe output")
	lustreGetstripeCmd.Flags().IntSlice("ost", nil, "only show files with objects on these OST indexes")
	lustreGetstripeCmd.Flags().Bool("canonical", false, "print layouts in lfs getstripe format")

	lustreDFCmd.Flags().String("from-file", "", "file with captured lfs df output, - for stdin")
	lustreDFCmd.Flags().Bool("summaries", false, "print the filesystem summaries instead of the targets")

	lustreIOCmd.Flags().StringSlice("inputs", nil, "files the job reads")
	lustreIOCmd.Flags().StringSlice("outputs", nil, "files the job writes")
	lustreIOCmd.Flags().String("out-dir", "", "directory for inputs.json, outputs.json and sizes.csv")
	_ = lustreIOCmd.MarkFlagRequired("inputs")
	_ = lustreIOCmd.MarkFlagRequired("outputs")
}

// source runs lfs as configured
func (e *env) source() *lustre.Exec {
	bin, err := config.FindLFS(e.cfg.Lustre.LFSPath)
	if err != nil {
		fail("locating lfs", err)
	}
	return lustre.NewExec(bin, e.cfg.Lustre.Timeout, cache.New[[]byte](), e.log)
}

// fileSource serves captured reports: getstripe reads the named file
type fileSource struct {
	df string
}

func (s fileSource) Getstripe(_ context.Context, path string) ([]byte, error) {
	text, err := readInput(path)
	return []byte(text), err
}

func (s fileSource) DF(context.Context) ([]byte, error) {
	text, err := readInput(s.df)
	return []byte(text), err
}

func runLustreGetstripe(cmd *cobra.Command, args []string) {
	e := mustEnv()
	fromFile, _ := cmd.Flags().GetBool("from-file")
	osts, _ := cmd.Flags().GetIntSlice("ost")
	canonical, _ := cmd.Flags().GetBool("canonical")

	if output == outputCSV {
		fail("parsing flags", fmt.Errorf("stripe layouts have no csv form, use json"))
	}

	var src lustre.Source = fileSource{}
	if !fromFile {
		src = e.source()
	}

	// paths that failed are reported once the rest is written
	layouts, layoutErr := lustre.Layouts(cmd.Context(), src, args, e.cfg.Walk.Concurrency)
	if layoutErr != nil {
		e.log.Warn("skipping layouts", "failed", len(args)-len(layouts), "total", len(args))
	}
	for _, l := range layouts {
		if err := l.Validate(); err != nil {
			e.log.Warn("inconsistent layout", "file", l.Filename, "err", err)
		}
	}

	if len(osts) > 0 {
		keep := lustre.FilesOnOSTs(layouts, osts...)
		layouts = slices.DeleteFunc(layouts, func(l *lustre.StripeLayout) bool {
			return !slices.Contains(keep, l.Filename)
		})
	}

	e.persist(db.KindLustreFile, strings.Join(args, ","), func(d *db.DB, runID string) error {
		return d.SaveLayouts(runID, layouts)
	})

	if err := writeLayouts(layouts, canonical); err != nil {
		fail("writing output", err)
	}
	if layoutErr != nil {
		fail("collecting layouts", layoutErr)
	}
}

func writeLayouts(layouts []*lustre.StripeLayout, canonical bool) error {
	switch {
	case canonical:
		for _, l := range layouts {
			fmt.Print(l.Format())
		}
		return nil
	case output == outputJSON:
		return export.JSON(os.Stdout, layouts)
	case output == outputCSV:
		return fmt.Errorf("stripe layouts have no csv form, use json")
	}
	printLayouts(layouts)
	return nil
}

func printLayouts(layouts []*lustre.StripeLayout) {
	fmt.Printf("%-50s %-12s %-10s %s\n", "FILE", "LAYOUT", "COMPONENTS", "OSTS")
	fmt.Println(strings.Repeat("-", 90))
	for _, l := range layouts {
		if l.IsEmpty() {
			fmt.Printf("%-50s %-12s %-10s %s\n", "-", "none", "-", strings.TrimSpace(l.Error))
			continue
		}
		kind := "raid0"
		if l.Progressive {
			kind = "composite"
		}
		var idx []string
		for _, obj := range l.Objects() {
			idx = append(idx, fmt.Sprint(obj.DeviceIndex))
		}
		fmt.Printf("%-50s %-12s %-10d %s\n", l.Filename, kind, len(l.Components), strings.Join(idx, ","))
	}
}

func runLustreDF(cmd *cobra.Command, args []string) {
	e := mustEnv()
	fromFile, _ := cmd.Flags().GetString("from-file")
	summaries, _ := cmd.Flags().GetBool("summaries")

	var src lustre.Source = fileSource{df: fromFile}
	if fromFile == "" {
		src = e.source()
	}

	bs, err := src.DF(cmd.Context())
	if err != nil {
		fail("running lfs df", err)
	}
	usage, err := lustre.ParseDF(string(bs))
	if err != nil {
		fail("parsing lfs df", err)
	}

	e.persist(db.KindLustreDF, fromFile, func(d *db.DB, runID string) error {
		return d.SaveUsage(runID, usage)
	})

	if err := writeUsage(usage, summaries); err != nil {
		fail("writing output", err)
	}
}

func writeUsage(usage *lustre.Usage, summaries bool) error {
	switch {
	case output == outputJSON:
		return export.JSON(os.Stdout, usage)
	case output == outputCSV && summaries:
		return export.Summaries(os.Stdout, usage.Summaries)
	case output == outputCSV:
		return export.UsageRows(os.Stdout, usage.Rows)
	case summaries:
		printSummaries(usage.Summaries)
	default:
		printUsage(usage.Rows)
	}
	return nil
}

func printUsage(rows []lustre.UsageRow) {
	fmt.Printf("%-24s %-4s %10s %10s %10s %5s %s\n", "TARGET", "TYPE", "SIZE", "USED", "AVAIL", "USE%", "FILESYSTEM")
	fmt.Println(strings.Repeat("-", 85))
	for _, r := range rows {
		fmt.Printf("%-24s %-4s %10s %10s %10s %4d%% %s\n",
			r.ID, r.Kind, kib(r.Blocks), kib(r.Used), kib(r.Available), r.UsePercent, r.Partition)
	}
}

func printSummaries(sums []lustre.FilesystemSummary) {
	fmt.Printf("%-24s %10s %10s %10s %5s\n", "FILESYSTEM", "SIZE", "USED", "AVAIL", "USE%")
	fmt.Println(strings.Repeat("-", 63))
	for _, s := range sums {
		fmt.Printf("%-24s %10s %10s %10s %4d%%\n", s.Name, kib(s.Blocks), kib(s.Used), kib(s.Available), s.UsePercent)
	}
}

// kib renders a count of 1K blocks
func kib(blocks int64) string {
	return humanize.IBytes(uint64(blocks) * 1024)
}

func runLustreIO(cmd *cobra.Command, args []string) {
	e := mustEnv()
	inputs, _ := cmd.Flags().GetStringSlice("inputs")
	outputs, _ := cmd.Flags().GetStringSlice("outputs")
	outDir, _ := cmd.Flags().GetString("out-dir")

	rep, layoutErr := lustre.CollectIO(cmd.Context(), e.source(), inputs, outputs, e.cfg.Walk.Concurrency)
	if rep == nil {
		fail("collecting io layouts", layoutErr)
	}
	if layoutErr != nil {
		e.log.Warn("skipping layouts", "failed", len(inputs)+len(outputs)-len(rep.Inputs)-len(rep.Outputs))
	}

	if outDir != "" {
		if err := writeIOReport(outDir, rep); err != nil {
			fail("writing io report", err)
		}
		e.log.Info("wrote io report", "dir", outDir)
	}

	var err error
	switch output {
	case outputJSON:
		err = export.JSON(os.Stdout, rep)
	case outputCSV:
		err = export.FileSizes(os.Stdout, rep.Sizes)
	default:
		printIOOverlap(rep)
	}
	if err != nil {
		fail("writing output", err)
	}
	if layoutErr != nil {
		fail("collecting io layouts", layoutErr)
	}
}

func writeIOReport(dir string, rep *lustre.IOReport) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	files := []struct {
		name  string
		write func(f *os.File) error
	}{
		{"inputs.json", func(f *os.File) error { return export.JSON(f, rep.Inputs) }},
		{"outputs.json", func(f *os.File) error { return export.JSON(f, rep.Outputs) }},
		{"sizes.csv", func(f *os.File) error { return export.FileSizes(f, rep.Sizes) }},
	}
	for _, file := range files {
		if err := writeFile(filepath.Join(dir, file.name), file.write); err != nil {
			return err
		}
	}
	return nil
}

// writeFile creates path and hands it to write
func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

func printIOOverlap(rep *lustre.IOReport) {
	ostCount := 0
	for _, l := range slices.Concat(rep.Inputs, rep.Outputs) {
		for _, obj := range l.Objects() {
			ostCount = max(ostCount, obj.DeviceIndex+1)
		}
	}
	in := lustre.FilesPerOST(rep.Inputs, ostCount)
	out := lustre.FilesPerOST(rep.Outputs, ostCount)

	fmt.Printf("%-6s %8s %8s\n", "OST", "INPUTS", "OUTPUTS")
	fmt.Println(strings.Repeat("-", 24))
	for i := range ostCount {
		if in[i] == 0 && out[i] == 0 {
			continue
		}
		fmt.Printf("%-6d %8d %8d\n", i, in[i], out[i])
	}

	var total uint64
	for _, s := range rep.Sizes {
		total += uint64(s.Size)
	}
	fmt.Println(strings.Repeat("-", 24))
	fmt.Printf("Files: %d | Size: %s\n", len(rep.Sizes), humanize.IBytes(total))
}
