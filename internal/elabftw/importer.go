package elabftw

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"

	"github.com/elnmigrate/labfolder2elabftw/internal/logger"
	"github.com/elnmigrate/labfolder2elabftw/internal/mapping"
	"github.com/elnmigrate/labfolder2elabftw/internal/models"
	"github.com/elnmigrate/labfolder2elabftw/internal/transform"
)

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = time.Second
)

// ImporterConfig tunes one Importer
type ImporterConfig struct {
	// Category is the destination experiment category; 0 leaves it unset
	Category int
	// Reuse looks an experiment up by its Labfolder project ID before
	// creating a new one, so re-runs patch instead of duplicating.
	Reuse bool
	// RetryAttempts and RetryDelay bound the upload/create retry policy
	RetryAttempts int
	RetryDelay    time.Duration
	// Clock drives the retry backoff; defaults to the wall clock
	Clock clock.Clock
}

// Importer writes one experiment per project group to eLabFTW
type Importer struct {
	api         API
	transformer *transform.Transformer
	tables      mapping.Tables
	cfg         ImporterConfig
}

// Result reports the outcome of importing one group
type Result struct {
	ExperimentID        string
	Reused              bool
	AttachmentsUploaded int
	Failures            []models.Failure
}

// NewImporter creates an Importer over the given API
func NewImporter(api API, transformer *transform.Transformer, tables mapping.Tables, cfg ImporterConfig) *Importer {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	return &Importer{api: api, transformer: transformer, tables: tables, cfg: cfg}
}

// ImportGroup runs the per-group protocol: create (or reuse) the experiment,
// upload attachments and resolve their body references, patch the body once
// in entry-then-element order, then patch metadata. A creation failure is
// fatal for the group and returned as an error; everything downstream is
// recorded in the Result and never rolls back the created experiment.
func (im *Importer) ImportGroup(ctx context.Context, projectID string, entries []models.Entry) (Result, error) {
	if len(entries) == 0 {
		return Result{}, fmt.Errorf("group %s has no entries", projectID)
	}
	first := entries[0]

	result := Result{}
	experimentID, reused, err := im.createOrReuse(ctx, projectID, entries)
	if err != nil {
		return Result{}, fmt.Errorf("experiment creation failed for project %s: %w", projectID, err)
	}
	result.ExperimentID = experimentID
	result.Reused = reused

	// Assemble the body, uploading each attachment before resolving the
	// fragment that references it.
	var parts []string
	for _, entry := range entries {
		parts = append(parts, transform.EntryHeader(entry))

		units, failures := im.transformer.TransformEntry(entry)
		result.Failures = append(result.Failures, failures...)

		for _, unit := range units {
			fragment := unit.HTML
			if unit.Attachment != nil {
				longName, err := im.upload(ctx, experimentID, *unit.Attachment)
				if err != nil {
					logger.Error("Attachment upload failed", err, map[string]interface{}{
						"entry_id":   unit.EntryID,
						"element_id": unit.ElementID,
						"filename":   unit.Attachment.Filename,
					})
					result.Failures = append(result.Failures, models.Failure{
						Stage:     "upload",
						EntryID:   unit.EntryID,
						ElementID: unit.ElementID,
						ProjectID: projectID,
						Message:   err.Error(),
					})
				} else {
					fragment = strings.ReplaceAll(fragment,
						transform.Placeholder(unit.ElementID), "app/download.php?f="+longName)
					result.AttachmentsUploaded++
				}
			}
			parts = append(parts, fragment)
		}

		parts = append(parts, transform.EntryTrailer(entry))
	}
	parts = append(parts, transform.GroupFooter(first))
	body := strings.Join(parts, "\n")

	if err := im.api.PatchBody(ctx, experimentID, body, im.cfg.Category); err != nil {
		logger.Error("Body patch failed, experiment left partially populated", err, map[string]interface{}{
			"experiment_id": experimentID,
			"project_id":    projectID,
		})
		result.Failures = append(result.Failures, models.Failure{
			Stage:     "import",
			ProjectID: projectID,
			Message:   fmt.Sprintf("body patch failed: %v", err),
		})
	}

	im.patchMetadata(ctx, experimentID, projectID, first, &result)

	logger.Info("Imported project group", map[string]interface{}{
		"project_id":    projectID,
		"experiment_id": experimentID,
		"entries":       len(entries),
		"uploads":       result.AttachmentsUploaded,
		"reused":        reused,
	})

	return result, nil
}

func (im *Importer) createOrReuse(ctx context.Context, projectID string, entries []models.Entry) (string, bool, error) {
	if im.cfg.Reuse {
		id, err := im.api.FindExperimentByProjectID(ctx, projectID)
		if err != nil {
			logger.Warn("Experiment lookup failed, creating a new one", map[string]interface{}{
				"project_id": projectID,
				"error":      err.Error(),
			})
		} else if id != "" {
			logger.Info("Reusing existing experiment", map[string]interface{}{
				"project_id":    projectID,
				"experiment_id": id,
			})
			return id, true, nil
		}
	}

	title := entries[0].Project.Title
	if title == "" {
		title = "Labfolder project " + projectID
	}
	var tags []string
	for _, entry := range entries {
		tags = append(tags, entry.Tags...)
	}

	var id string
	err := im.withRetry(ctx, "experiment create", func() error {
		var err error
		id, err = im.api.CreateExperiment(ctx, title, tags)
		return err
	})
	return id, false, err
}

func (im *Importer) upload(ctx context.Context, experimentID string, attachment models.Attachment) (string, error) {
	var longName string
	err := im.withRetry(ctx, "upload "+attachment.Filename, func() error {
		var err error
		longName, err = im.api.Upload(ctx, experimentID, attachment)
		return err
	})
	return longName, err
}

func (im *Importer) patchMetadata(ctx context.Context, experimentID, projectID string, first models.Entry, result *Result) {
	owner := first.Author.FullName()
	extra := map[string]ExtraField{
		"Project Owner":         {Type: "text", Value: owner},
		"Project creation date": {Type: "text", Value: first.Project.CreationDate},
		"Labfolder Project ID":  {Type: "text", Value: projectID},
	}

	isaID := im.tables.ISAID(projectID)
	if isaID != "" {
		extra["ISA-Study"] = ExtraField{Type: "items", Value: isaID}
	}

	if err := im.api.PatchMetadata(ctx, experimentID, im.tables.UserID(owner), extra); err != nil {
		logger.Error("Metadata patch failed, experiment left partially populated", err, map[string]interface{}{
			"experiment_id": experimentID,
			"project_id":    projectID,
		})
		result.Failures = append(result.Failures, models.Failure{
			Stage:     "import",
			ProjectID: projectID,
			Message:   fmt.Sprintf("metadata patch failed: %v", err),
		})
		return
	}

	if isaID != "" && isDigits(isaID) {
		if err := im.api.LinkResource(ctx, experimentID, isaID); err != nil {
			logger.Error("ISA-Study link failed", err, map[string]interface{}{
				"experiment_id": experimentID,
				"isa_id":        isaID,
			})
			result.Failures = append(result.Failures, models.Failure{
				Stage:     "import",
				ProjectID: projectID,
				Message:   fmt.Sprintf("ISA-Study link failed: %v", err),
			})
		}
	}
}

func (im *Importer) withRetry(ctx context.Context, what string, f func() error) error {
	return retry.Call(retry.CallArgs{
		Func:        f,
		Attempts:    im.cfg.RetryAttempts,
		Delay:       im.cfg.RetryDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       im.cfg.Clock,
		Stop:        ctx.Done(),
		NotifyFunc: func(lastError error, attempt int) {
			if attempt < im.cfg.RetryAttempts {
				logger.Warn("Retrying "+what, map[string]interface{}{
					"attempt": attempt,
					"error":   lastError.Error(),
				})
			}
		},
	})
}
