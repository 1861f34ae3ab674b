package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/LenBoer/distributed-storage-visualization/internal/config"
	"github.com/LenBoer/distributed-storage-visualization/internal/db"
	"github.com/LenBoer/distributed-storage-visualization/internal/logger"
	"github.com/LenBoer/distributed-storage-visualization/internal/version"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	output   string
	store    bool
	logLevel string
)

// Output formats
const (
	outputTable = "table"
	outputJSON  = "json"
	outputCSV   = "csv"
)

var rootCmd = &cobra.Command{
	Use:   "iobat",
	Short: "Normalize Ceph and Lustre storage reports",
	Long: `iobat turns the text reports of storage cluster tools into typed records.

It reads the Ceph topology (ceph osd tree) and placement (ceph pg dump)
dumps, the Lustre stripe (lfs getstripe) and usage (lfs df) reports, and
walks directories for per-file metadata. Results print as a table, JSON or
CSV and can be kept in a SQLite database.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the iobat version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("iobat", version.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/iobat/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or csv")
	rootCmd.PersistentFlags().BoolVar(&store, "store", false, "keep the parsed records in the database")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (default from config, info)")

	rootCmd.AddCommand(cephCmd)
	rootCmd.AddCommand(lustreCmd)
	rootCmd.AddCommand(walkCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(versionCmd)
}

// env is what every command needs: settings and a logger
type env struct {
	cfg *config.Config
	log *slog.Logger
}

// mustEnv loads the config and builds the logger or exits
func mustEnv() *env {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fail("loading config", err)
	}

	lvl := cfg.Log.Level
	if logLevel != "" {
		lvl = logLevel
	}
	level, err := logger.ParseLevel(lvl)
	if err != nil {
		fail("parsing log level", err)
	}

	switch output {
	case outputTable, outputJSON, outputCSV:
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown output format %q\n", output)
		os.Exit(1)
	}

	return &env{cfg: cfg, log: logger.New(os.Stderr, level)}
}

// openDB opens the configured database, or the default one
func (e *env) openDB() (*db.DB, error) {
	path := e.cfg.Store.Path
	if path == "" {
		path = db.DefaultPath
	}
	return db.New(path)
}

// persist records a run and its records when --store is set
func (e *env) persist(kind, source string, save func(d *db.DB, runID string) error) {
	if !store {
		return
	}

	database, err := e.openDB()
	if err != nil {
		fail("opening database", err)
	}
	defer database.Close()

	run, err := database.CreateRun(kind, source)
	if err == nil {
		err = save(database, run.ID)
	}
	if err != nil {
		fail("storing results", err)
	}
	e.log.Info("stored run", "id", run.ID, "kind", kind, "db", database.Path())
}

// readInput reads a captured report from a file, or stdin for "-"
func readInput(name string) (string, error) {
	var r io.Reader = os.Stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	bs, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(bs), nil
}

// fail reports err the way every command does and exits
func fail(doing string, err error) {
	fmt.Fprintf(os.Stderr, "Error %s: %v\n", doing, err)
	os.Exit(1)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
