package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/elnmigrate/labfolder2elabftw/internal/coordinator"
	"github.com/elnmigrate/labfolder2elabftw/internal/logger"
)

var cfg coordinator.Config

var (
	logLevel   string
	logFile    string
	retryDelay time.Duration
	noReuse    bool
)

var rootCmd = &cobra.Command{
	Use:   "labfolder2elabftw",
	Short: "Import Labfolder projects into eLabFTW",
	Long: `labfolder2elabftw migrates laboratory notebook entries from Labfolder
into eLabFTW. It fetches entries with their elements (tables, well plates,
text, files, images, generic data), groups them by Labfolder project and
creates one eLabFTW experiment per project with the converted content,
uploaded attachments and provenance metadata.

Credentials come from the environment (or a .env file):
  LABFOLDER_EMAIL, LABFOLDER_PASSWORD, ELABFTW_API_KEY
and optionally LABFOLDER_URL, ELABFTW_URL.`,
	Example: `  # Full migration, snapshotting entries for later re-runs
  labfolder2elabftw --cache entries.parquet

  # Re-run from the snapshot without contacting Labfolder
  labfolder2elabftw --cache entries.parquet --from-cache

  # Only entries authored by Emma or Max
  labfolder2elabftw -a Emma -a Max --cache entries.jsonl.gz`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&cfg.LabfolderURL, "labfolder-url", "https://eln.labfolder.com/api/v2", "Labfolder API base URL")
	rootCmd.Flags().StringVar(&cfg.ElabURL, "elabftw-url", "", "eLabFTW API base URL (e.g. https://elab.example.org/api/v2)")
	rootCmd.Flags().StringArrayVarP(&cfg.Authors, "author", "a", nil, "Author first name to include (repeatable)")
	rootCmd.Flags().StringVar(&cfg.CachePath, "cache", "", "Entry snapshot path (.parquet or .jsonl.gz)")
	rootCmd.Flags().BoolVar(&cfg.FromCache, "from-cache", false, "Read entries from the snapshot instead of fetching")
	rootCmd.Flags().StringVar(&cfg.ISAPath, "isa-ids", "", "YAML file mapping Labfolder project IDs to ISA identifiers")
	rootCmd.Flags().StringVar(&cfg.NameMapPath, "name-map", "", "YAML file mapping author names to eLabFTW user IDs")
	rootCmd.Flags().IntVar(&cfg.DefaultUserID, "default-user", 0, "Fallback eLabFTW user ID when no name mapping matches")
	rootCmd.Flags().IntVar(&cfg.Category, "category", 0, "eLabFTW experiment category ID")
	rootCmd.Flags().BoolVar(&noReuse, "no-reuse", false, "Always create new experiments instead of reusing ones already imported for a project")
	rootCmd.Flags().IntVar(&cfg.RetryAttempts, "retry-attempts", 3, "Upload/create retry attempts")
	rootCmd.Flags().DurationVar(&retryDelay, "retry-delay", time.Second, "Initial delay between retries")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "Also write logs to this file")
}

func run(cmd *cobra.Command, args []string) error {
	// A .env file is optional; the environment may carry everything.
	_ = godotenv.Load()

	if err := logger.Init(logLevel, logFile); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg.Email = os.Getenv("LABFOLDER_EMAIL")
	cfg.Password = os.Getenv("LABFOLDER_PASSWORD")
	cfg.APIKey = os.Getenv("ELABFTW_API_KEY")
	if v := os.Getenv("LABFOLDER_URL"); v != "" && !cmd.Flags().Changed("labfolder-url") {
		cfg.LabfolderURL = v
	}
	if v := os.Getenv("ELABFTW_URL"); v != "" && cfg.ElabURL == "" {
		cfg.ElabURL = v
	}
	cfg.Reuse = !noReuse
	cfg.RetryDelay = retryDelay

	if !cfg.FromCache && (cfg.Email == "" || cfg.Password == "") {
		return fmt.Errorf("LABFOLDER_EMAIL and LABFOLDER_PASSWORD are not set")
	}
	if cfg.ElabURL == "" {
		return fmt.Errorf("eLabFTW URL is not set (--elabftw-url or ELABFTW_URL)")
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("ELABFTW_API_KEY is not set")
	}
	if cfg.FromCache && cfg.CachePath == "" {
		return fmt.Errorf("--from-cache requires --cache")
	}

	coord, err := coordinator.New(cfg)
	if err != nil {
		return err
	}

	report, err := coord.Run(context.Background())

	// The report is emitted regardless of outcome.
	fields := map[string]interface{}{
		"entries_fetched":      report.EntriesFetched,
		"groups_imported":      report.GroupsImported,
		"attachments_uploaded": report.AttachmentsUploaded,
		"failures":             len(report.Failures),
	}
	for _, failure := range report.Failures {
		logger.Warn("Recorded failure", map[string]interface{}{
			"stage":      failure.Stage,
			"entry_id":   failure.EntryID,
			"element_id": failure.ElementID,
			"project_id": failure.ProjectID,
			"message":    failure.Message,
		})
	}

	if err != nil {
		logger.Error("Migration aborted", err, fields)
		return err
	}

	logger.Info("Migration completed", fields)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
