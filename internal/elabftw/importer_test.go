package elabftw_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	"github.com/elnmigrate/labfolder2elabftw/internal/elabftw"
	"github.com/elnmigrate/labfolder2elabftw/internal/elabftw/mock_elabftw"
	"github.com/elnmigrate/labfolder2elabftw/internal/mapping"
	"github.com/elnmigrate/labfolder2elabftw/internal/models"
	"github.com/elnmigrate/labfolder2elabftw/internal/transform"
)

func testTables() mapping.Tables {
	return mapping.Tables{
		ISA:           map[string]string{"92321": "1234"},
		Users:         map[string]int{"emma meyer": 12},
		DefaultUserID: 847,
	}
}

func testEntries() []models.Entry {
	return []models.Entry{
		{
			ID:           "1001",
			Title:        "Lipid extraction",
			EntryNumber:  1,
			CreationDate: "2023-04-12T09:30:00.000+02:00",
			Tags:         []string{"lipids"},
			Author:       models.Author{FirstName: "Emma", LastName: "Meyer"},
			Project: models.Project{
				ID:              "92321",
				Title:           "Example project",
				CreationDate:    "2023-01-01T08:00:00.000+01:00",
				NumberOfEntries: 1,
			},
			Elements: []models.Element{
				{ID: "x1", Kind: models.KindText, Markup: "<p>protocol</p>"},
				{ID: "f1", Kind: models.KindFile, Filename: "raw.csv", MIME: "text/csv", Data: []byte("a,b")},
			},
		},
	}
}

func newTestImporter(api elabftw.API, cfg elabftw.ImporterConfig) *elabftw.Importer {
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Millisecond
	}
	return elabftw.NewImporter(api, transform.New(), testTables(), cfg)
}

func TestImportGroup(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	api := mock_elabftw.NewMockAPI(ctrl)

	var patchedBody string
	gomock.InOrder(
		api.EXPECT().
			CreateExperiment(gomock.Any(), "Example project", []string{"lipids"}).
			Return("42", nil),
		api.EXPECT().
			Upload(gomock.Any(), "42", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, attachment models.Attachment) (string, error) {
				if attachment.Filename != "raw.csv" {
					t.Errorf("Expected raw.csv upload, got %q", attachment.Filename)
				}
				return "ab/cdef.csv", nil
			}),
		api.EXPECT().
			PatchBody(gomock.Any(), "42", gomock.Any(), 7).
			DoAndReturn(func(_ context.Context, _ string, body string, _ int) error {
				patchedBody = body
				return nil
			}),
		api.EXPECT().
			PatchMetadata(gomock.Any(), "42", 12, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, _ int, extra map[string]elabftw.ExtraField) error {
				if extra["Labfolder Project ID"].Value != "92321" {
					t.Errorf("Expected project ID extra field, got %+v", extra)
				}
				if extra["Project Owner"].Value != "Emma Meyer" {
					t.Errorf("Expected owner extra field, got %+v", extra)
				}
				if extra["ISA-Study"].Type != "items" || extra["ISA-Study"].Value != "1234" {
					t.Errorf("Expected ISA-Study items field, got %+v", extra)
				}
				return nil
			}),
		api.EXPECT().
			LinkResource(gomock.Any(), "42", "1234").
			Return(nil),
	)

	importer := newTestImporter(api, elabftw.ImporterConfig{Category: 7})
	result, err := importer.ImportGroup(context.Background(), "92321", testEntries())
	if err != nil {
		t.Fatalf("ImportGroup() error = %v", err)
	}

	if result.ExperimentID != "42" || result.Reused {
		t.Errorf("Unexpected result: %+v", result)
	}
	if result.AttachmentsUploaded != 1 {
		t.Errorf("Expected 1 attachment uploaded, got %d", result.AttachmentsUploaded)
	}
	if len(result.Failures) != 0 {
		t.Errorf("Expected no failures, got %+v", result.Failures)
	}

	for _, want := range []string{
		"----Entry 1 of 1----",
		"<p>protocol</p>",
		`<a href="app/download.php?f=ab/cdef.csv">raw.csv</a>`,
		"Created: 2023-04-12<br>",
		"Labfolder Info",
	} {
		if !strings.Contains(patchedBody, want) {
			t.Errorf("Expected body to contain %q", want)
		}
	}
	if strings.Contains(patchedBody, transform.Placeholder("f1")) {
		t.Error("Expected attachment placeholder to be resolved")
	}
}

// Creation is retried; when every attempt fails the whole group fails
func TestImportGroupCreateFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	api := mock_elabftw.NewMockAPI(ctrl)

	api.EXPECT().
		CreateExperiment(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", errors.New("503 service unavailable")).
		Times(3)

	importer := newTestImporter(api, elabftw.ImporterConfig{RetryAttempts: 3})
	_, err := importer.ImportGroup(context.Background(), "92321", testEntries())
	if err == nil {
		t.Fatal("Expected error when creation fails, got nil")
	}
}

// A failed upload leaves the placeholder in the body and records a failure,
// but the group still imports.
func TestImportGroupUploadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	api := mock_elabftw.NewMockAPI(ctrl)

	var patchedBody string
	api.EXPECT().
		CreateExperiment(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("42", nil)
	api.EXPECT().
		Upload(gomock.Any(), "42", gomock.Any()).
		Return("", errors.New("quota exceeded")).
		Times(3)
	api.EXPECT().
		PatchBody(gomock.Any(), "42", gomock.Any(), 0).
		DoAndReturn(func(_ context.Context, _ string, body string, _ int) error {
			patchedBody = body
			return nil
		})
	api.EXPECT().
		PatchMetadata(gomock.Any(), "42", gomock.Any(), gomock.Any()).
		Return(nil)
	api.EXPECT().
		LinkResource(gomock.Any(), "42", "1234").
		Return(nil)

	importer := newTestImporter(api, elabftw.ImporterConfig{RetryAttempts: 3})
	result, err := importer.ImportGroup(context.Background(), "92321", testEntries())
	if err != nil {
		t.Fatalf("ImportGroup() error = %v", err)
	}

	if result.AttachmentsUploaded != 0 {
		t.Errorf("Expected no uploads counted, got %d", result.AttachmentsUploaded)
	}
	if len(result.Failures) != 1 {
		t.Fatalf("Expected 1 failure, got %+v", result.Failures)
	}
	f := result.Failures[0]
	if f.Stage != "upload" || f.EntryID != "1001" || f.ElementID != "f1" {
		t.Errorf("Failure misses identifying context: %+v", f)
	}
	if !strings.Contains(patchedBody, transform.Placeholder("f1")) {
		t.Error("Expected unresolved placeholder to remain in the body")
	}
}

// With reuse enabled an existing experiment is patched instead of duplicated
func TestImportGroupReuse(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	api := mock_elabftw.NewMockAPI(ctrl)

	api.EXPECT().
		FindExperimentByProjectID(gomock.Any(), "92321").
		Return("99", nil)
	api.EXPECT().
		Upload(gomock.Any(), "99", gomock.Any()).
		Return("ab/cdef.csv", nil)
	api.EXPECT().
		PatchBody(gomock.Any(), "99", gomock.Any(), 0).
		Return(nil)
	api.EXPECT().
		PatchMetadata(gomock.Any(), "99", gomock.Any(), gomock.Any()).
		Return(nil)
	api.EXPECT().
		LinkResource(gomock.Any(), "99", "1234").
		Return(nil)

	importer := newTestImporter(api, elabftw.ImporterConfig{Reuse: true})
	result, err := importer.ImportGroup(context.Background(), "92321", testEntries())
	if err != nil {
		t.Fatalf("ImportGroup() error = %v", err)
	}
	if result.ExperimentID != "99" || !result.Reused {
		t.Errorf("Expected reused experiment 99, got %+v", result)
	}
}

// A failed lookup falls back to creating a fresh experiment
func TestImportGroupReuseLookupFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	api := mock_elabftw.NewMockAPI(ctrl)

	api.EXPECT().
		FindExperimentByProjectID(gomock.Any(), "92321").
		Return("", errors.New("search unavailable"))
	api.EXPECT().
		CreateExperiment(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("42", nil)
	api.EXPECT().
		Upload(gomock.Any(), "42", gomock.Any()).
		Return("ab/cdef.csv", nil)
	api.EXPECT().
		PatchBody(gomock.Any(), "42", gomock.Any(), 0).
		Return(nil)
	api.EXPECT().
		PatchMetadata(gomock.Any(), "42", gomock.Any(), gomock.Any()).
		Return(nil)
	api.EXPECT().
		LinkResource(gomock.Any(), "42", "1234").
		Return(nil)

	importer := newTestImporter(api, elabftw.ImporterConfig{Reuse: true})
	result, err := importer.ImportGroup(context.Background(), "92321", testEntries())
	if err != nil {
		t.Fatalf("ImportGroup() error = %v", err)
	}
	if result.Reused {
		t.Error("Expected a fresh experiment after the lookup failure")
	}
}

// Body and metadata patch failures are recorded but do not abort the group
func TestImportGroupPatchFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	api := mock_elabftw.NewMockAPI(ctrl)

	api.EXPECT().
		CreateExperiment(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("42", nil)
	api.EXPECT().
		Upload(gomock.Any(), "42", gomock.Any()).
		Return("ab/cdef.csv", nil)
	api.EXPECT().
		PatchBody(gomock.Any(), "42", gomock.Any(), 0).
		Return(errors.New("body too large"))
	api.EXPECT().
		PatchMetadata(gomock.Any(), "42", gomock.Any(), gomock.Any()).
		Return(errors.New("bad metadata"))

	importer := newTestImporter(api, elabftw.ImporterConfig{})
	result, err := importer.ImportGroup(context.Background(), "92321", testEntries())
	if err != nil {
		t.Fatalf("ImportGroup() error = %v", err)
	}
	if len(result.Failures) != 2 {
		t.Fatalf("Expected 2 recorded failures, got %+v", result.Failures)
	}
	for _, f := range result.Failures {
		if f.Stage != "import" {
			t.Errorf("Expected import stage failure, got %+v", f)
		}
	}
}

func TestImportGroupEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	api := mock_elabftw.NewMockAPI(ctrl)

	importer := newTestImporter(api, elabftw.ImporterConfig{})
	if _, err := importer.ImportGroup(context.Background(), "92321", nil); err == nil {
		t.Error("Expected error for empty group, got nil")
	}
}
