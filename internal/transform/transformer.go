// Package transform converts fetched Labfolder elements into their canonical
// destination form: an HTML fragment for the experiment body plus an optional
// binary attachment.
package transform

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/elnmigrate/labfolder2elabftw/internal/logger"
	"github.com/elnmigrate/labfolder2elabftw/internal/models"
)

// ErrUnsupportedKind is returned for element kinds outside the known set
var ErrUnsupportedKind = errors.New("unsupported element kind")

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// previewRows caps the inline preview rendered next to a spreadsheet
// attachment reference.
const previewRows = 10

// TableEncoder serializes sheets into a spreadsheet-format blob
type TableEncoder interface {
	Encode(title string, sheets []models.Sheet) ([]byte, error)
}

// Transformer dispatches elements by kind into TransformedUnits
type Transformer struct {
	encoder TableEncoder
}

// New creates a Transformer using the xlsx encoder
func New() *Transformer {
	return &Transformer{encoder: ExcelEncoder{}}
}

// NewWithEncoder creates a Transformer with a custom table encoder
func NewWithEncoder(encoder TableEncoder) *Transformer {
	return &Transformer{encoder: encoder}
}

// Placeholder returns the marker embedded in fragments that reference an
// attachment. The importer replaces it with the destination-assigned location
// after the upload succeeds; on upload failure it stays in the body as is.
func Placeholder(elementID string) string {
	return "{{attachment:" + elementID + "}}"
}

// Transform converts one element. The result is deterministic for a given
// element; destination-assigned references are resolved later by the
// importer.
func (t *Transformer) Transform(entryID string, element models.Element) (models.TransformedUnit, error) {
	unit := models.TransformedUnit{EntryID: entryID, ElementID: element.ID}

	switch element.Kind {
	case models.KindTable, models.KindWellPlate:
		blob, err := t.encoder.Encode(element.Title, element.Sheets)
		if err != nil {
			return unit, fmt.Errorf("spreadsheet encoding failed: %w", err)
		}
		filename := fmt.Sprintf("%s_%s.xlsx", entryID, element.ID)
		label := "table"
		if element.Kind == models.KindWellPlate {
			label = "well plate"
		}
		title := element.Title
		if title == "" {
			title = element.ID
		}
		unit.HTML = fmt.Sprintf("<p>[Attached %s '%s': %s]</p>%s",
			label, html.EscapeString(title), html.EscapeString(filename), previewHTML(element.Sheets))
		unit.Attachment = &models.Attachment{
			Filename: filename,
			MIME:     xlsxMIME,
			Data:     blob,
		}

	case models.KindText:
		// Stored markup is already HTML, copied verbatim
		if element.Markup == "" {
			unit.HTML = "<p></p>"
		} else {
			unit.HTML = element.Markup
		}

	case models.KindFile:
		name := element.Filename
		if name == "" {
			name = "file.bin"
		}
		unit.HTML = fmt.Sprintf("<p>[Attached file: <a href=\"%s\">%s</a>]</p>",
			Placeholder(element.ID), html.EscapeString(name))
		unit.Attachment = passthrough(element, name)

	case models.KindImage:
		name := element.Filename
		if name == "" {
			name = "image"
		}
		unit.HTML = fmt.Sprintf("<p><img src=\"%s\" alt=\"%s\"></p>",
			Placeholder(element.ID), html.EscapeString(name))
		unit.Attachment = passthrough(element, name)

	case models.KindGenericData:
		unit.HTML = dataTableHTML(element.DataItems)

	default:
		return unit, fmt.Errorf("%w: %q", ErrUnsupportedKind, element.Kind)
	}

	return unit, nil
}

// TransformEntry transforms every element of an entry in display order.
// Failing elements are skipped and reported; siblings are unaffected.
func (t *Transformer) TransformEntry(entry models.Entry) ([]models.TransformedUnit, []models.Failure) {
	var units []models.TransformedUnit
	var failures []models.Failure

	for _, element := range entry.Elements {
		unit, err := t.Transform(entry.ID, element)
		if err != nil {
			logger.Warn("Skipping element", map[string]interface{}{
				"entry_id":   entry.ID,
				"element_id": element.ID,
				"reason":     err.Error(),
			})
			failures = append(failures, models.Failure{
				Stage:     "transform",
				EntryID:   entry.ID,
				ElementID: element.ID,
				ProjectID: entry.Project.ID,
				Message:   err.Error(),
			})
			continue
		}
		units = append(units, unit)
	}

	return units, failures
}

func passthrough(element models.Element, name string) *models.Attachment {
	mimeType := element.MIME
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &models.Attachment{
		Filename: name,
		MIME:     mimeType,
		Data:     element.Data,
	}
}

// dataTableHTML renders generic data as a key/value/unit table
func dataTableHTML(items []models.DataItem) string {
	var b strings.Builder
	b.WriteString("<table><tr><th>Title</th><th>Value</th><th>Unit</th></tr>")
	for _, item := range items {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td></tr>",
			html.EscapeString(item.Title), html.EscapeString(item.Value), html.EscapeString(item.Unit))
	}
	b.WriteString("</table>")
	return b.String()
}

// previewHTML renders the first sheet's leading rows inline so the body
// stays readable without opening the attachment.
func previewHTML(sheets []models.Sheet) string {
	if len(sheets) == 0 || len(sheets[0].Rows) == 0 {
		return ""
	}

	rows := sheets[0].Rows
	truncated := false
	if len(rows) > previewRows {
		rows = rows[:previewRows]
		truncated = true
	}

	var b strings.Builder
	b.WriteString("<table>")
	for _, r := range rows {
		b.WriteString("<tr>")
		for _, cell := range r {
			fmt.Fprintf(&b, "<td>%s</td>", html.EscapeString(cell))
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table>")
	if truncated {
		b.WriteString("<p>[Preview truncated]</p>")
	}
	return b.String()
}

// EntryHeader renders the per-entry heading block in the experiment body
func EntryHeader(entry models.Entry) string {
	formatted := make([]string, 0, len(entry.Tags))
	for _, tag := range entry.Tags {
		formatted = append(formatted, "§"+html.EscapeString(tag))
	}
	return fmt.Sprintf(
		"\n----Entry %d of %d----<br>"+
			"<strong>Entry: %s (labfolder id: %s)</strong><br>"+
			"<strong>Tags:</strong> %s<br>",
		entry.EntryNumber, entry.Project.NumberOfEntries,
		html.EscapeString(entry.Title), entry.ID,
		strings.Join(formatted, " "))
}

// EntryTrailer renders the created-date line and separator closing one entry
func EntryTrailer(entry models.Entry) string {
	created := entry.CreationDate
	// Dates come as RFC 3339 timestamps; the body only shows the day.
	if i := strings.Index(created, "T"); i > 0 {
		created = created[:i]
	}
	return fmt.Sprintf("Created: %s<br><hr><hr>", created)
}

// GroupFooter renders the right-aligned source-provenance block appended
// after the last entry of a group.
func GroupFooter(first models.Entry) string {
	return fmt.Sprintf(
		`<div style="text-align: right; margin-top: 20px;">`+
			`<h5 style="margin:0 0 4px 0;">Labfolder Info</h5>`+
			"Project created: %s<br>"+
			"Labfolder project id: %s<br>"+
			"Author: %s<br>"+
			"Last edited: %s<br>"+
			"</div>",
		html.EscapeString(first.Project.CreationDate),
		first.Project.ID,
		html.EscapeString(first.Author.FullName()),
		html.EscapeString(first.VersionDate))
}
