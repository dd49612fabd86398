// Package cache persists one full snapshot of fetched Labfolder entries so a
// migration run can resume without re-contacting the source service. The
// snapshot is a flat table with one row per element; the on-disk format is
// parquet (.parquet) or gzipped JSON lines (.jsonl.gz), selected by the file
// extension. Both loaders read the same logical schema.
package cache

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/elnmigrate/labfolder2elabftw/internal/logger"
	"github.com/elnmigrate/labfolder2elabftw/internal/models"
)

// ErrUnavailable signals that the cache file is missing or unreadable. This
// is fatal only when the run was told to read from cache instead of fetching.
var ErrUnavailable = errors.New("cache unavailable")

// Store reads and writes entry snapshots at a fixed path
type Store struct {
	path string
}

// NewStore returns a Store for the given cache path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// row is the flattened on-disk form of one element (or of one element-less
// entry, with an empty element kind).
type row struct {
	EntryID        string `parquet:"entry_id" json:"entry_id"`
	EntryTitle     string `parquet:"entry_title" json:"entry_title"`
	EntryNumber    int32  `parquet:"entry_number" json:"entry_number"`
	CreationDate   string `parquet:"creation_date" json:"creation_date"`
	VersionDate    string `parquet:"version_date" json:"version_date"`
	Tags           string `parquet:"tags" json:"tags"`
	AuthorFirst    string `parquet:"author_first" json:"author_first"`
	AuthorLast     string `parquet:"author_last" json:"author_last"`
	EditorFirst    string `parquet:"editor_first" json:"editor_first"`
	EditorLast     string `parquet:"editor_last" json:"editor_last"`
	ProjectID      string `parquet:"project_id" json:"project_id"`
	ProjectTitle   string `parquet:"project_title" json:"project_title"`
	ProjectCreated string `parquet:"project_created" json:"project_created"`
	ProjectEntries int32  `parquet:"project_entries" json:"project_entries"`
	ElementID      string `parquet:"element_id" json:"element_id"`
	ElementKind    string `parquet:"element_kind" json:"element_kind"`
	Payload        string `parquet:"payload" json:"payload"`
	Blob           []byte `parquet:"blob" json:"blob,omitempty"`
	Filename       string `parquet:"filename" json:"filename"`
	MIME           string `parquet:"mime" json:"mime"`
}

// elementPayload carries the kind-specific structured payload as JSON
type elementPayload struct {
	Title     string            `json:"title,omitempty"`
	Sheets    []models.Sheet    `json:"sheets,omitempty"`
	Markup    string            `json:"markup,omitempty"`
	DataItems []models.DataItem `json:"data_items,omitempty"`
}

// Save writes the full entry snapshot, atomically replacing any prior file
func (s *Store) Save(entries []models.Entry) error {
	rows, err := flatten(entries)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	switch {
	case strings.HasSuffix(s.path, ".parquet"):
		err = parquet.WriteFile(tmp, rows)
	case strings.HasSuffix(s.path, ".jsonl.gz"):
		err = writeJSONLines(tmp, rows)
	default:
		return fmt.Errorf("unsupported cache format: %s", s.path)
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write cache: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace cache file: %w", err)
	}

	logger.Info("Saved entry snapshot", map[string]interface{}{
		"path":    s.path,
		"entries": len(entries),
		"rows":    len(rows),
	})

	return nil
}

// Load reads the snapshot back. Missing or unparsable files come back as
// ErrUnavailable.
func (s *Store) Load() ([]models.Entry, error) {
	if _, err := os.Stat(s.path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, s.path)
	}

	var rows []row
	var err error
	switch {
	case strings.HasSuffix(s.path, ".parquet"):
		rows, err = parquet.ReadFile[row](s.path)
	case strings.HasSuffix(s.path, ".jsonl.gz"):
		rows, err = readJSONLines(s.path)
	default:
		return nil, fmt.Errorf("%w: unsupported cache format %s", ErrUnavailable, s.path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	entries, err := unflatten(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	logger.Info("Loaded entry snapshot", map[string]interface{}{
		"path":    s.path,
		"entries": len(entries),
	})

	return entries, nil
}

func writeJSONLines(path string, rows []row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(f)
	enc := json.NewEncoder(gz)
	for i := range rows {
		if err := enc.Encode(&rows[i]); err != nil {
			gz.Close()
			f.Close()
			return err
		}
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readJSONLines(path string) ([]row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	var rows []row
	dec := json.NewDecoder(gz)
	for dec.More() {
		var r row
		if err := dec.Decode(&r); err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func flatten(entries []models.Entry) ([]row, error) {
	var rows []row
	for _, entry := range entries {
		tags, err := json.Marshal(entry.Tags)
		if err != nil {
			return nil, err
		}

		base := row{
			EntryID:        entry.ID,
			EntryTitle:     entry.Title,
			EntryNumber:    int32(entry.EntryNumber),
			CreationDate:   entry.CreationDate,
			VersionDate:    entry.VersionDate,
			Tags:           string(tags),
			AuthorFirst:    entry.Author.FirstName,
			AuthorLast:     entry.Author.LastName,
			EditorFirst:    entry.LastEditor.FirstName,
			EditorLast:     entry.LastEditor.LastName,
			ProjectID:      entry.Project.ID,
			ProjectTitle:   entry.Project.Title,
			ProjectCreated: entry.Project.CreationDate,
			ProjectEntries: int32(entry.Project.NumberOfEntries),
		}

		// Entries without elements still get one marker row so they survive
		// the round trip.
		if len(entry.Elements) == 0 {
			rows = append(rows, base)
			continue
		}

		for _, element := range entry.Elements {
			payload, err := json.Marshal(elementPayload{
				Title:     element.Title,
				Sheets:    element.Sheets,
				Markup:    element.Markup,
				DataItems: element.DataItems,
			})
			if err != nil {
				return nil, err
			}

			r := base
			r.ElementID = element.ID
			r.ElementKind = string(element.Kind)
			r.Payload = string(payload)
			r.Blob = element.Data
			r.Filename = element.Filename
			r.MIME = element.MIME
			rows = append(rows, r)
		}
	}
	return rows, nil
}

func unflatten(rows []row) ([]models.Entry, error) {
	var entries []models.Entry
	index := make(map[string]int)

	for _, r := range rows {
		i, seen := index[r.EntryID]
		if !seen {
			var tags []string
			if r.Tags != "" {
				if err := json.Unmarshal([]byte(r.Tags), &tags); err != nil {
					return nil, fmt.Errorf("bad tags for entry %s: %v", r.EntryID, err)
				}
			}
			entries = append(entries, models.Entry{
				ID:           r.EntryID,
				Title:        r.EntryTitle,
				EntryNumber:  int(r.EntryNumber),
				CreationDate: r.CreationDate,
				VersionDate:  r.VersionDate,
				Tags:         tags,
				Author:       models.Author{FirstName: r.AuthorFirst, LastName: r.AuthorLast},
				LastEditor:   models.Author{FirstName: r.EditorFirst, LastName: r.EditorLast},
				Project: models.Project{
					ID:              r.ProjectID,
					Title:           r.ProjectTitle,
					CreationDate:    r.ProjectCreated,
					NumberOfEntries: int(r.ProjectEntries),
				},
			})
			i = len(entries) - 1
			index[r.EntryID] = i
		}

		// Marker row for an element-less entry
		if r.ElementID == "" && r.ElementKind == "" {
			continue
		}

		var payload elementPayload
		if r.Payload != "" {
			if err := json.Unmarshal([]byte(r.Payload), &payload); err != nil {
				return nil, fmt.Errorf("bad payload for element %s: %v", r.ElementID, err)
			}
		}

		// Both loaders may hand back an empty slice for an absent blob
		data := r.Blob
		if len(data) == 0 {
			data = nil
		}

		entries[i].Elements = append(entries[i].Elements, models.Element{
			ID:        r.ElementID,
			Kind:      models.ElementKind(r.ElementKind),
			Title:     payload.Title,
			Sheets:    payload.Sheets,
			Markup:    payload.Markup,
			DataItems: payload.DataItems,
			Filename:  r.Filename,
			MIME:      r.MIME,
			Data:      data,
		})
	}

	return entries, nil
}
