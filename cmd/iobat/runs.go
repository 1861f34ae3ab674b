package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/LenBoer/distributed-storage-visualization/internal/db"
	"github.com/LenBoer/distributed-storage-visualization/internal/export"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List reports kept in the database",
	Args:  cobra.NoArgs,
	Run:   runRunsList,
}

var runsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete stored runs older than a given age",
	Args:  cobra.NoArgs,
	Run:   runRunsPrune,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the records of a stored run",
	Long: `Print the records of a stored run.

The output matches the command that stored the run. A collect run prints
its usage, file and layout tables one after another; as JSON all records
come in one document.`,
	Args: cobra.ExactArgs(1),
	Run:  runRunsShow,
}

func init() {
	runsCmd.AddCommand(runsPruneCmd)
	runsCmd.AddCommand(runsShowCmd)

	runsCmd.Flags().String("kind", "", "only list runs of this kind (ceph-tree, ceph-pgdump, lustre-df, ...)")
	runsCmd.Flags().Int("limit", 50, "maximum number of runs to show")

	runsShowCmd.Flags().String("section", "", "pg dump section to print: pgs, pools or osds")

	runsPruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "age of the runs to delete")
}

func runRunsList(cmd *cobra.Command, args []string) {
	e := mustEnv()
	kind, _ := cmd.Flags().GetString("kind")
	limit, _ := cmd.Flags().GetInt("limit")

	database, err := e.openDB()
	if err != nil {
		fail("opening database", err)
	}
	defer database.Close()

	runs, err := database.ListRuns(kind, limit)
	if err != nil {
		fail("querying runs", err)
	}

	if output == outputJSON {
		if err := export.JSON(os.Stdout, runs); err != nil {
			fail("writing output", err)
		}
		return
	}

	if len(runs) == 0 {
		fmt.Println("No runs stored. Pass --store to keep parsed reports.")
		return
	}

	fmt.Printf("%-36s %-16s %-16s %s\n", "ID", "KIND", "WHEN", "SOURCE")
	fmt.Println(strings.Repeat("-", 90))
	for _, r := range runs {
		source := r.Source
		if source == "" {
			source = "-"
		}
		fmt.Printf("%-36s %-16s %-16s %s\n", r.ID, r.Kind, humanize.Time(r.CreatedAt), source)
	}
}

func runRunsPrune(cmd *cobra.Command, args []string) {
	e := mustEnv()
	olderThan, _ := cmd.Flags().GetDuration("older-than")

	database, err := e.openDB()
	if err != nil {
		fail("opening database", err)
	}
	defer database.Close()

	n, err := database.DeleteRunsBefore(time.Now().Add(-olderThan))
	if err != nil {
		fail("pruning runs", err)
	}
	fmt.Printf("Deleted %d runs older than %s\n", n, olderThan)
}

func runRunsShow(cmd *cobra.Command, args []string) {
	e := mustEnv()
	section, _ := cmd.Flags().GetString("section")

	database, err := e.openDB()
	if err != nil {
		fail("opening database", err)
	}
	defer database.Close()

	rec, err := database.LoadRun(args[0])
	if err != nil {
		fail("loading run", err)
	}
	if err := writeRecords(rec, section); err != nil {
		fail("writing output", err)
	}
}

func writeRecords(rec *db.Records, section string) error {
	if output == outputJSON {
		return export.JSON(os.Stdout, rec)
	}
	if output == outputTable {
		fmt.Printf("Run %s: %s of %s, %s\n\n",
			rec.Run.ID, rec.Run.Kind, rec.Run.Source, humanize.Time(rec.Run.CreatedAt))
	}

	switch rec.Run.Kind {
	case db.KindCephTree:
		if len(rec.Tree.Nodes) == 0 {
			return fmt.Errorf("run %s holds no nodes", rec.Run.ID)
		}
		return writeTree(rec.Tree)
	case db.KindCephPGDump:
		if err := checkSection(section); err != nil {
			return err
		}
		return writePGDump(rec.PGDump, section)
	case db.KindLustreDF:
		return writeUsage(rec.Usage, false)
	case db.KindLustreFile:
		return writeLayouts(rec.Layouts, false)
	case db.KindWalk:
		return writeFileStats(rec.Files)
	}

	if output == outputCSV {
		return fmt.Errorf("a %s run holds several tables, use json", rec.Run.Kind)
	}
	printUsage(rec.Usage.Rows)
	fmt.Println()
	printFileStats(rec.Files)
	fmt.Println()
	printLayouts(rec.Layouts)
	return nil
}
