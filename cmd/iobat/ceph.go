package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/LenBoer/distributed-storage-visualization/internal/ceph"
	"github.com/LenBoer/distributed-storage-visualization/internal/db"
	"github.com/LenBoer/distributed-storage-visualization/internal/export"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var cephCmd = &cobra.Command{
	Use:   "ceph",
	Short: "Parse Ceph cluster dumps",
}

var cephTreeCmd = &cobra.Command{
	Use:   "tree <file|->",
	Short: "Rebuild the CRUSH hierarchy from `ceph osd tree` output",
	Long: `Rebuild the CRUSH hierarchy from captured 'ceph osd tree' output.

Every bucket claims weight from the bucket above it; a bucket is closed
once its children have claimed its whole weight (within ceph.weight_epsilon).
The residual column shows weight left unclaimed at the end of the dump.`,
	Args: cobra.ExactArgs(1),
	Run:  runCephTree,
}

var cephPGDumpCmd = &cobra.Command{
	Use:   "pgdump <file|->",
	Short: "Parse placement groups, pools and OSDs from `ceph pg dump` output",
	Args:  cobra.ExactArgs(1),
	Run:   runCephPGDump,
}

// pg dump sections
const (
	sectionPGs   = "pgs"
	sectionPools = "pools"
	sectionOSDs  = "osds"
)

func init() {
	cephCmd.AddCommand(cephTreeCmd)
	cephCmd.AddCommand(cephPGDumpCmd)

	cephPGDumpCmd.Flags().String("section", "", "only print one section: pgs, pools or osds (required for csv)")
}

func runCephTree(cmd *cobra.Command, args []string) {
	e := mustEnv()

	text, err := readInput(args[0])
	if err != nil {
		fail("reading input", err)
	}
	tree, err := ceph.ParseTree(text, ceph.TreeOptions{WeightEpsilon: e.cfg.Ceph.WeightEpsilon})
	if err != nil {
		fail("parsing osd tree", err)
	}
	e.log.Debug("parsed osd tree", "nodes", len(tree.Nodes), "leaves", len(tree.Leaves()))

	e.persist(db.KindCephTree, args[0], func(d *db.DB, runID string) error {
		return d.SaveTree(runID, tree)
	})

	if err := writeTree(tree); err != nil {
		fail("writing output", err)
	}
}

func writeTree(tree *ceph.Tree) error {
	switch output {
	case outputJSON:
		return export.JSON(os.Stdout, tree)
	case outputCSV:
		return export.Nodes(os.Stdout, tree.Nodes)
	}
	printTree(tree)
	return nil
}

func printTree(tree *ceph.Tree) {
	fmt.Printf("%-6s %-30s %-6s %10s %10s %-8s %s\n", "ID", "NAME", "CLASS", "WEIGHT", "RESIDUAL", "STATUS", "REWEIGHT")
	fmt.Println(strings.Repeat("-", 85))

	var walk func(n ceph.Node, depth int)
	walk = func(n ceph.Node, depth int) {
		name := strings.Repeat("  ", depth) + n.Label()
		if n.Kind == ceph.KindBucket {
			fmt.Printf("%-6s %-30s %-6s %10.5f %10.5f\n", n.ID, name, "", n.Weight, n.Residual)
		} else {
			fmt.Printf("%-6s %-30s %-6s %10.5f %10s %-8s %.5f\n",
				n.ID, name, n.DeviceClass, n.Weight, "", n.Status, n.Reweight)
		}
		for _, c := range tree.Children(n.ID) {
			walk(c, depth+1)
		}
	}
	walk(tree.Root(), 0)

	fmt.Println(strings.Repeat("-", 85))
	fmt.Printf("Nodes: %d | Devices: %d\n", len(tree.Nodes), len(tree.Leaves()))
}

func runCephPGDump(cmd *cobra.Command, args []string) {
	e := mustEnv()
	section, _ := cmd.Flags().GetString("section")

	if err := checkSection(section); err != nil {
		fail("parsing flags", err)
	}

	text, err := readInput(args[0])
	if err != nil {
		fail("reading input", err)
	}
	dump, err := ceph.ParsePGDump(text, ceph.PGDumpOptions{
		PreambleLines: e.cfg.Ceph.PGPreambleLines,
		Units:         ceph.Units{TiBScale: e.cfg.Ceph.TiBScale},
	})
	if err != nil {
		fail("parsing pg dump", err)
	}
	e.log.Debug("parsed pg dump",
		"pgs", len(dump.PlacementGroups), "pools", len(dump.Pools), "osds", len(dump.Devices))

	e.persist(db.KindCephPGDump, args[0], func(d *db.DB, runID string) error {
		return d.SavePGDump(runID, dump)
	})

	if err := writePGDump(dump, section); err != nil {
		fail("writing output", err)
	}
}

func checkSection(section string) error {
	switch section {
	case "", sectionPGs, sectionPools, sectionOSDs:
	default:
		return fmt.Errorf("unknown section %q", section)
	}
	if output == outputCSV && section == "" {
		return fmt.Errorf("csv output needs --section")
	}
	return nil
}

func writePGDump(dump *ceph.PGDump, section string) error {
	switch output {
	case outputJSON:
		return export.JSON(os.Stdout, pgDumpSection(dump, section))
	case outputCSV:
		switch section {
		case sectionPGs:
			return export.PlacementGroups(os.Stdout, dump.PlacementGroups)
		case sectionPools:
			return export.Pools(os.Stdout, dump.Pools)
		}
		return export.Devices(os.Stdout, dump.Devices)
	}

	if section == "" || section == sectionPGs {
		printPGs(dump.PlacementGroups)
	}
	if section == "" || section == sectionPools {
		printPools(dump.Pools)
	}
	if section == "" || section == sectionOSDs {
		printOSDs(dump.Devices)
	}
	return nil
}

func pgDumpSection(dump *ceph.PGDump, section string) any {
	switch section {
	case sectionPGs:
		return dump.PlacementGroups
	case sectionPools:
		return dump.Pools
	case sectionOSDs:
		return dump.Devices
	}
	return dump
}

func printPGs(pgs []ceph.PlacementGroup) {
	fmt.Printf("%-10s %-6s %10s %10s %-28s %-12s %s\n", "PGID", "POOL", "OBJECTS", "BYTES", "STATE", "UP", "PRIMARY")
	fmt.Println(strings.Repeat("-", 90))
	for _, pg := range pgs {
		up := make([]string, len(pg.Up))
		for i, id := range pg.Up {
			up[i] = fmt.Sprint(id)
		}
		fmt.Printf("%-10s %-6s %10s %10s %-28s %-12s %d\n",
			pg.PGID, pg.Pool, humanize.Comma(pg.Objects), humanize.IBytes(uint64(pg.Bytes)),
			pg.State, "["+strings.Join(up, ",")+"]", pg.UpPrimary)
	}
	fmt.Println()
}

func printPools(pools []ceph.Pool) {
	fmt.Printf("%-6s %10s %10s %12s %10s %10s\n", "POOL", "OBJECTS", "BYTES", "OMAP BYTES", "OMAP KEYS", "LOG")
	fmt.Println(strings.Repeat("-", 63))
	for _, p := range pools {
		fmt.Printf("%-6d %10s %10s %12s %10s %10s\n",
			p.ID, humanize.Comma(p.Objects), humanize.IBytes(uint64(p.Bytes)),
			humanize.IBytes(uint64(p.OmapBytes)), humanize.Comma(p.OmapKeys), humanize.Comma(p.Log))
	}
	fmt.Println()
}

func printOSDs(devs []ceph.Device) {
	fmt.Printf("%-6s %10s %10s %10s %7s %6s %8s\n", "OSD", "USED", "AVAIL", "TOTAL", "USE%", "PGS", "PRIMARY")
	fmt.Println(strings.Repeat("-", 63))
	for _, d := range devs {
		fmt.Printf("%-6d %10s %10s %10s %6.1f%% %6d %8d\n",
			d.ID, humanize.CommafWithDigits(d.Used, 1), humanize.CommafWithDigits(d.Available, 1),
			humanize.CommafWithDigits(d.Total, 1), 100*d.UsedRatio(), d.PGs, d.PrimaryPGs)
	}
}
