// Package coordinator sequences the migration run: load-or-fetch the source
// entries, snapshot them to the cache, group them by project, then import
// each group into the destination.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/elnmigrate/labfolder2elabftw/internal/cache"
	"github.com/elnmigrate/labfolder2elabftw/internal/elabftw"
	"github.com/elnmigrate/labfolder2elabftw/internal/grouper"
	"github.com/elnmigrate/labfolder2elabftw/internal/labfolder"
	"github.com/elnmigrate/labfolder2elabftw/internal/logger"
	"github.com/elnmigrate/labfolder2elabftw/internal/mapping"
	"github.com/elnmigrate/labfolder2elabftw/internal/models"
	"github.com/elnmigrate/labfolder2elabftw/internal/transform"
)

// Config carries the already-parsed run configuration
type Config struct {
	LabfolderURL string
	Email        string
	Password     string

	ElabURL string
	APIKey  string

	Authors   []string
	CachePath string
	FromCache bool

	ISAPath       string
	NameMapPath   string
	DefaultUserID int

	Category      int
	Reuse         bool
	RetryAttempts int
	RetryDelay    time.Duration
}

type entrySource interface {
	FetchEntries(ctx context.Context, authors []string) ([]models.Entry, []models.Failure, error)
}

type snapshotStore interface {
	Save(entries []models.Entry) error
	Load() ([]models.Entry, error)
}

type groupImporter interface {
	ImportGroup(ctx context.Context, projectID string, entries []models.Entry) (elabftw.Result, error)
}

// Coordinator owns the run's state machine and its final report
type Coordinator struct {
	cfg      Config
	fetcher  entrySource
	store    snapshotStore
	importer groupImporter
}

// New wires the real fetcher, cache store and importer from cfg
func New(cfg Config) (*Coordinator, error) {
	tables, err := mapping.Load(cfg.ISAPath, cfg.NameMapPath, cfg.DefaultUserID)
	if err != nil {
		return nil, err
	}

	var store snapshotStore
	if cfg.CachePath != "" {
		store = cache.NewStore(cfg.CachePath)
	}

	importer := elabftw.NewImporter(
		elabftw.NewClient(cfg.ElabURL, cfg.APIKey),
		transform.New(),
		tables,
		elabftw.ImporterConfig{
			Category:      cfg.Category,
			Reuse:         cfg.Reuse,
			RetryAttempts: cfg.RetryAttempts,
			RetryDelay:    cfg.RetryDelay,
		},
	)

	return &Coordinator{
		cfg:      cfg,
		fetcher:  labfolder.NewFetcher(labfolder.NewClient(cfg.LabfolderURL, cfg.Email, cfg.Password)),
		store:    store,
		importer: importer,
	}, nil
}

// newWith injects test doubles
func newWith(cfg Config, fetcher entrySource, store snapshotStore, importer groupImporter) *Coordinator {
	return &Coordinator{cfg: cfg, fetcher: fetcher, store: store, importer: importer}
}

// Run drives FETCH_OR_LOAD → CACHE_WRITE → GROUP → TRANSFORM → IMPORT → DONE.
// A fatal failure before the import stage returns a non-nil error and makes
// no destination writes; import failures are per-group and recorded in the
// report. The report is valid in both cases.
func (c *Coordinator) Run(ctx context.Context) (models.RunReport, error) {
	report := models.RunReport{}

	// FETCH_OR_LOAD
	entries, err := c.loadOrFetch(ctx, &report)
	if err != nil {
		return report, err
	}
	report.EntriesFetched = len(entries)

	// GROUP
	groups := grouper.Group(entries)
	logger.Info("Grouped entries by project", map[string]interface{}{
		"entries": len(entries),
		"groups":  len(groups),
	})

	// TRANSFORM + IMPORT, per group
	for _, projectID := range grouper.SortedIDs(groups) {
		groupEntries := groups[projectID]
		logger.Info("Importing project group", map[string]interface{}{
			"project_id": projectID,
			"entries":    len(groupEntries),
		})

		result, err := c.importer.ImportGroup(ctx, projectID, groupEntries)
		if err != nil {
			logger.Error("Project group skipped", err, map[string]interface{}{
				"project_id": projectID,
			})
			report.Failures = append(report.Failures, models.Failure{
				Stage:     "import",
				ProjectID: projectID,
				Message:   err.Error(),
			})
			continue
		}

		report.GroupsImported++
		report.AttachmentsUploaded += result.AttachmentsUploaded
		report.Failures = append(report.Failures, result.Failures...)
	}

	// DONE
	return report, nil
}

func (c *Coordinator) loadOrFetch(ctx context.Context, report *models.RunReport) ([]models.Entry, error) {
	if c.cfg.FromCache {
		if c.store == nil {
			return nil, fmt.Errorf("%w: no cache path configured", cache.ErrUnavailable)
		}
		entries, err := c.store.Load()
		if err != nil {
			return nil, err
		}
		return entries, nil
	}

	entries, failures, err := c.fetcher.FetchEntries(ctx, c.cfg.Authors)
	if err != nil {
		return nil, err
	}
	report.Failures = append(report.Failures, failures...)

	// CACHE_WRITE: the snapshot is best effort; the fetched entries are
	// already in memory, so a failed save only costs the next resume.
	if c.store != nil {
		if err := c.store.Save(entries); err != nil {
			logger.Warn("Failed to save entry snapshot", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return entries, nil
}
