package cache

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/elnmigrate/labfolder2elabftw/internal/models"
)

func sampleEntries() []models.Entry {
	return []models.Entry{
		{
			ID:           "1001",
			Title:        "Lipid extraction",
			EntryNumber:  1,
			CreationDate: "2023-04-12T09:30:00.000+02:00",
			VersionDate:  "2023-04-13T10:00:00.000+02:00",
			Tags:         []string{"lipids", "extraction"},
			Author:       models.Author{FirstName: "Emma", LastName: "Meyer"},
			LastEditor:   models.Author{FirstName: "Emma", LastName: "Meyer"},
			Project: models.Project{
				ID:              "92321",
				Title:           "Example project",
				CreationDate:    "2023-01-01T08:00:00.000+01:00",
				NumberOfEntries: 2,
			},
			Elements: []models.Element{
				{
					ID:     "t1",
					Kind:   models.KindTable,
					Title:  "Concentrations",
					Sheets: []models.Sheet{{Name: "Sheet1", Rows: [][]string{{"a", "b"}, {"1", "2"}}}},
				},
				{
					ID:     "x1",
					Kind:   models.KindText,
					Markup: "<p>protocol as described</p>",
				},
				{
					ID:       "f1",
					Kind:     models.KindFile,
					Filename: "raw.csv",
					MIME:     "text/csv",
					Data:     []byte("a,b\n1,2\n"),
				},
				{
					ID:        "d1",
					Kind:      models.KindGenericData,
					DataItems: []models.DataItem{{Title: "pH", Value: "7.4", Unit: ""}},
				},
			},
		},
		{
			ID:           "1002",
			Title:        "Empty page",
			EntryNumber:  2,
			CreationDate: "2023-04-14T09:30:00.000+02:00",
			Author:       models.Author{FirstName: "Max", LastName: "Fischer"},
			Project:      models.Project{ID: "92321", Title: "Example project", NumberOfEntries: 2},
		},
	}
}

// load(save(entries)) must yield an equal entry sequence for both formats
func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		filename string
	}{
		{name: "Parquet", filename: "entries.parquet"},
		{name: "JSON lines", filename: "entries.jsonl.gz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(filepath.Join(t.TempDir(), tt.filename))
			want := sampleEntries()

			if err := store.Save(want); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			got, err := store.Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			if !reflect.DeepEqual(got, want) {
				t.Errorf("Round trip mismatch:\ngot  %+v\nwant %+v", got, want)
			}
		})
	}
}

func TestSaveOverwrites(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "entries.jsonl.gz"))

	if err := store.Save(sampleEntries()); err != nil {
		t.Fatalf("First Save() error = %v", err)
	}
	second := sampleEntries()[:1]
	if err := store.Save(second); err != nil {
		t.Fatalf("Second Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Expected snapshot to hold 1 entry after overwrite, got %d", len(got))
	}
	if _, err := os.Stat(store.path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Expected temporary file to be gone after Save")
	}
}

func TestLoadUnavailable(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
	}{
		{
			name: "Missing file",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "missing.parquet")
			},
		},
		{
			name: "Unparsable file",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "garbage.jsonl.gz")
				if err := os.WriteFile(path, []byte("not gzip"), 0644); err != nil {
					t.Fatalf("Failed to write file: %v", err)
				}
				return path
			},
		},
		{
			name: "Unsupported extension",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "entries.csv")
				if err := os.WriteFile(path, []byte("a,b"), 0644); err != nil {
					t.Fatalf("Failed to write file: %v", err)
				}
				return path
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(tt.setup(t))
			_, err := store.Load()
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("Expected ErrUnavailable, got %v", err)
			}
		})
	}
}

func TestSaveUnsupportedFormat(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "entries.csv"))
	if err := store.Save(sampleEntries()); err == nil {
		t.Error("Expected error for unsupported cache format, got nil")
	}
}
