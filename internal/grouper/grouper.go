// Package grouper partitions fetched entries into destination experiment
// units, one group per Labfolder project.
package grouper

import (
	"sort"

	"github.com/elnmigrate/labfolder2elabftw/internal/models"
)

// Ungrouped is the reserved bucket for entries without a project ID
const Ungrouped = "ungrouped"

// Group partitions entries by project ID. The partition is total and
// disjoint: every entry lands in exactly one group, and entries with an empty
// project ID land in the Ungrouped bucket. Entry order within a group follows
// the input order.
func Group(entries []models.Entry) map[string][]models.Entry {
	groups := make(map[string][]models.Entry)
	for _, entry := range entries {
		id := entry.Project.ID
		if id == "" {
			id = Ungrouped
		}
		groups[id] = append(groups[id], entry)
	}
	return groups
}

// SortedIDs returns the group keys in a stable order for deterministic runs
func SortedIDs(groups map[string][]models.Entry) []string {
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
