package labfolder

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/elnmigrate/labfolder2elabftw/internal/logger"
	"github.com/elnmigrate/labfolder2elabftw/internal/models"
)

const defaultPageSize = 50

// Fetcher retrieves entries and their elements from Labfolder
type Fetcher struct {
	client   *Client
	pageSize int
}

// NewFetcher creates a Fetcher on top of an authenticated client
func NewFetcher(client *Client) *Fetcher {
	return &Fetcher{client: client, pageSize: defaultPageSize}
}

// listedEntry mirrors the /entries response with author, project and
// last_editor expanded.
type listedEntry struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	EntryNumber  int            `json:"entry_number"`
	CreationDate string         `json:"creation_date"`
	VersionDate  string         `json:"version_date"`
	Tags         []string       `json:"tags"`
	Author       models.Author  `json:"author"`
	LastEditor   models.Author  `json:"last_editor"`
	Project      models.Project `json:"project"`
	Elements     []elementRef   `json:"elements"`
}

type elementRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// FetchEntries authenticates, pages through the entry listing and downloads
// the element payloads for every entry whose author first name matches one of
// authors (all entries when authors is empty). A failed listing is fatal; a
// failed element fetch drops that element, records a failure and keeps the
// rest of the entry.
func (f *Fetcher) FetchEntries(ctx context.Context, authors []string) ([]models.Entry, []models.Failure, error) {
	if err := f.client.Login(ctx); err != nil {
		return nil, nil, fmt.Errorf("authentication failed: %w", err)
	}

	listed, err := f.listEntries(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list entries: %w", err)
	}

	allowed := make(map[string]bool, len(authors))
	for _, a := range authors {
		if name := strings.ToLower(strings.TrimSpace(a)); name != "" {
			allowed[name] = true
		}
	}

	var entries []models.Entry
	var failures []models.Failure

	for _, le := range listed {
		if len(allowed) > 0 && !allowed[strings.ToLower(strings.TrimSpace(le.Author.FirstName))] {
			continue
		}

		entry := models.Entry{
			ID:           le.ID,
			Title:        le.Title,
			EntryNumber:  le.EntryNumber,
			CreationDate: le.CreationDate,
			VersionDate:  le.VersionDate,
			Tags:         le.Tags,
			Author:       le.Author,
			LastEditor:   le.LastEditor,
			Project:      le.Project,
		}

		for _, ref := range le.Elements {
			element, err := f.fetchElement(ctx, ref)
			if err != nil {
				logger.Error("Element fetch failed", err, map[string]interface{}{
					"entry_id":   le.ID,
					"element_id": ref.ID,
					"type":       ref.Type,
				})
				failures = append(failures, models.Failure{
					Stage:     "fetch",
					EntryID:   le.ID,
					ElementID: ref.ID,
					ProjectID: le.Project.ID,
					Message:   err.Error(),
				})
				continue
			}
			entry.Elements = append(entry.Elements, element)
		}

		entries = append(entries, entry)
	}

	logger.Info("Fetched entries from Labfolder", map[string]interface{}{
		"listed":  len(listed),
		"kept":    len(entries),
		"authors": authors,
	})

	return entries, failures, nil
}

// listEntries pages the listing endpoint until a short page signals the end
func (f *Fetcher) listEntries(ctx context.Context) ([]listedEntry, error) {
	var all []listedEntry
	offset := 0

	for {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(f.pageSize))
		params.Set("offset", strconv.Itoa(offset))
		params.Set("include_hidden", "true")
		params.Set("expand", "author,project,last_editor")

		var batch []listedEntry
		if err := f.client.getJSON(ctx, "entries", params, &batch); err != nil {
			return nil, err
		}

		all = append(all, batch...)
		if len(batch) < f.pageSize {
			break
		}
		offset += f.pageSize
	}

	return all, nil
}

// fetchElement downloads the payload for one element, dispatched on its type.
// Types outside the known set are kept payload-free so the transformer can
// report them.
func (f *Fetcher) fetchElement(ctx context.Context, ref elementRef) (models.Element, error) {
	element := models.Element{ID: ref.ID, Kind: models.ElementKind(ref.Type)}

	switch models.ElementKind(ref.Type) {
	case models.KindText:
		var resp struct {
			Content string `json:"content"`
		}
		if err := f.client.getJSON(ctx, "elements/text/"+ref.ID, nil, &resp); err != nil {
			return element, err
		}
		element.Markup = resp.Content

	case models.KindTable:
		title, sheets, err := f.fetchGrid(ctx, "elements/table/"+ref.ID)
		if err != nil {
			return element, err
		}
		element.Title = title
		element.Sheets = sheets

	case models.KindWellPlate:
		title, sheets, err := f.fetchGrid(ctx, "elements/well-plate/"+ref.ID)
		if err != nil {
			return element, err
		}
		element.Title = title
		element.Sheets = sheets

	case models.KindFile:
		data, name, mimeType, err := f.client.getBlob(ctx, "elements/file/"+ref.ID+"/download", "file.bin")
		if err != nil {
			return element, err
		}
		element.Data = data
		element.Filename = name
		element.MIME = mimeType

	case models.KindImage:
		data, name, mimeType, err := f.client.getBlob(ctx, "elements/image/"+ref.ID+"/original-data", "image")
		if err != nil {
			return element, err
		}
		element.Data = data
		element.Filename = name
		element.MIME = mimeType

	case models.KindGenericData:
		var resp struct {
			DataElements []struct {
				Title string      `json:"title"`
				Value interface{} `json:"value"`
				Unit  string      `json:"unit"`
			} `json:"data_elements"`
		}
		if err := f.client.getJSON(ctx, "elements/data/"+ref.ID, nil, &resp); err != nil {
			return element, err
		}
		for _, de := range resp.DataElements {
			element.DataItems = append(element.DataItems, models.DataItem{
				Title: de.Title,
				Value: stringifyCell(de.Value),
				Unit:  de.Unit,
			})
		}
	}

	return element, nil
}

// gridResponse mirrors the table/well-plate payload: sheets of sparse
// dataTable cells keyed by row and column index.
type gridResponse struct {
	Title   string `json:"title"`
	Content struct {
		Sheets map[string]struct {
			Name string `json:"name"`
			Data struct {
				DataTable map[string]map[string]interface{} `json:"dataTable"`
			} `json:"data"`
		} `json:"sheets"`
	} `json:"content"`
}

func (f *Fetcher) fetchGrid(ctx context.Context, endpoint string) (string, []models.Sheet, error) {
	var resp gridResponse
	if err := f.client.getJSON(ctx, endpoint, nil, &resp); err != nil {
		return "", nil, err
	}

	keys := make([]string, 0, len(resp.Content.Sheets))
	for key := range resp.Content.Sheets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	sheets := make([]models.Sheet, 0, len(keys))
	for _, key := range keys {
		raw := resp.Content.Sheets[key]
		name := raw.Name
		if name == "" {
			name = key
		}
		sheets = append(sheets, models.Sheet{
			Name: name,
			Rows: dataTableToRows(raw.Data.DataTable),
		})
	}

	return resp.Title, sheets, nil
}

// dataTableToRows densifies a sparse row-index/column-index cell map into a
// rectangular grid, preserving numeric index order and filling gaps with "".
func dataTableToRows(dataTable map[string]map[string]interface{}) [][]string {
	if len(dataTable) == 0 {
		return nil
	}

	maxRow, maxCol := -1, -1
	for r, cols := range dataTable {
		ri, err := strconv.Atoi(r)
		if err != nil {
			continue
		}
		if ri > maxRow {
			maxRow = ri
		}
		for c := range cols {
			ci, err := strconv.Atoi(c)
			if err != nil {
				continue
			}
			if ci > maxCol {
				maxCol = ci
			}
		}
	}
	if maxRow < 0 || maxCol < 0 {
		return nil
	}

	rows := make([][]string, maxRow+1)
	for i := range rows {
		rows[i] = make([]string, maxCol+1)
	}
	for r, cols := range dataTable {
		ri, err := strconv.Atoi(r)
		if err != nil {
			continue
		}
		for c, cell := range cols {
			ci, err := strconv.Atoi(c)
			if err != nil {
				continue
			}
			rows[ri][ci] = stringifyCell(cell)
		}
	}

	return rows
}

// stringifyCell renders a JSON cell value. Table cells may be wrapped in a
// {"value": ...} object.
func stringifyCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case map[string]interface{}:
		if inner, ok := val["value"]; ok {
			return stringifyCell(inner)
		}
		return fmt.Sprint(val)
	default:
		return fmt.Sprint(val)
	}
}
