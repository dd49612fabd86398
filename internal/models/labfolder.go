package models

import "fmt"

// ElementKind identifies the type of a Labfolder entry element.
type ElementKind string

const (
	KindTable       ElementKind = "TABLE"
	KindWellPlate   ElementKind = "WELL_PLATE"
	KindText        ElementKind = "TEXT"
	KindFile        ElementKind = "FILE"
	KindImage       ElementKind = "IMAGE"
	KindGenericData ElementKind = "DATA"
)

// Author represents a Labfolder user name
type Author struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FullName returns "First Last"
func (a Author) FullName() string {
	return fmt.Sprintf("%s %s", a.FirstName, a.LastName)
}

// Project represents the Labfolder project an entry belongs to
type Project struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	CreationDate    string `json:"creation_date"`
	NumberOfEntries int    `json:"number_of_entries"`
}

// Sheet is one named grid of cell values from a table or well plate
type Sheet struct {
	Name string     `json:"name"`
	Rows [][]string `json:"rows"`
}

// DataItem is one key/value pair of a generic data element
type DataItem struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// Element is one typed content unit inside an Entry. Only the payload
// fields matching Kind are populated.
type Element struct {
	ID   string      `json:"id"`
	Kind ElementKind `json:"kind"`

	// Table / WellPlate
	Title  string  `json:"title,omitempty"`
	Sheets []Sheet `json:"sheets,omitempty"`

	// Text: the stored markup, kept verbatim
	Markup string `json:"markup,omitempty"`

	// File / Image
	Filename string `json:"filename,omitempty"`
	MIME     string `json:"mime,omitempty"`
	Data     []byte `json:"data,omitempty"`

	// GenericData
	DataItems []DataItem `json:"data_items,omitempty"`
}

// Entry is one Labfolder notebook page with its elements in display order
type Entry struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	EntryNumber  int       `json:"entry_number"`
	CreationDate string    `json:"creation_date"`
	VersionDate  string    `json:"version_date"`
	Tags         []string  `json:"tags,omitempty"`
	Author       Author    `json:"author"`
	LastEditor   Author    `json:"last_editor"`
	Project      Project   `json:"project"`
	Elements     []Element `json:"elements"`
}

// Attachment is a binary payload to upload alongside an experiment
type Attachment struct {
	Filename string
	MIME     string
	Data     []byte
}

// TransformedUnit is the canonical form of one transformed element: an HTML
// fragment to embed in the experiment body plus an optional attachment.
// Fragments referencing the attachment carry a placeholder that is resolved
// once the destination assigns the upload a location.
type TransformedUnit struct {
	EntryID    string
	ElementID  string
	HTML       string
	Attachment *Attachment
}

// Failure identifies one non-fatal failure with enough context to locate it
type Failure struct {
	Stage     string `json:"stage"`
	EntryID   string `json:"entry_id,omitempty"`
	ElementID string `json:"element_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	Message   string `json:"message"`
}

// RunReport aggregates the outcome of one migration run
type RunReport struct {
	EntriesFetched      int       `json:"entries_fetched"`
	GroupsImported      int       `json:"groups_imported"`
	AttachmentsUploaded int       `json:"attachments_uploaded"`
	Failures            []Failure `json:"failures,omitempty"`
}
