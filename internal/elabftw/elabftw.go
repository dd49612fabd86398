package elabftw

import (
	"context"

	"github.com/elnmigrate/labfolder2elabftw/internal/models"
)

// ExtraField is one eLabFTW extra-fields metadata entry
type ExtraField struct {
	Type        string `json:"type"`
	Value       string `json:"value"`
	GroupID     int    `json:"group_id"`
	Description string `json:"description"`
}

//go:generate mockgen -source=elabftw.go -destination=mock_elabftw/mock_elabftw.go -package=mock_elabftw
type API interface {
	// CreateExperiment creates an empty experiment and returns its assigned ID
	CreateExperiment(ctx context.Context, title string, tags []string) (string, error)
	// FindExperimentByProjectID returns the ID of an experiment whose
	// "Labfolder Project ID" extra field matches, or "" when none exists.
	FindExperimentByProjectID(ctx context.Context, projectID string) (string, error)
	// PatchBody replaces the experiment body in one call
	PatchBody(ctx context.Context, experimentID, body string, category int) error
	// PatchMetadata sets owner and extra fields in one call
	PatchMetadata(ctx context.Context, experimentID string, userID int, extra map[string]ExtraField) error
	// Upload attaches a binary payload and returns its destination-assigned
	// location reference.
	Upload(ctx context.Context, experimentID string, attachment models.Attachment) (string, error)
	// LinkResource links an existing resource item to the experiment
	LinkResource(ctx context.Context, experimentID, resourceID string) error
}
