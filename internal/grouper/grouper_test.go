package grouper

import (
	"reflect"
	"testing"

	"github.com/elnmigrate/labfolder2elabftw/internal/models"
)

func entry(id, projectID string) models.Entry {
	return models.Entry{ID: id, Project: models.Project{ID: projectID}}
}

func TestGroup(t *testing.T) {
	tests := []struct {
		name      string
		entries   []models.Entry
		wantSizes map[string]int
	}{
		{
			name:      "Empty input",
			entries:   nil,
			wantSizes: map[string]int{},
		},
		{
			name: "Two projects",
			entries: []models.Entry{
				entry("e1", "P1"),
				entry("e2", "P1"),
				entry("e3", "P2"),
			},
			wantSizes: map[string]int{"P1": 2, "P2": 1},
		},
		{
			name: "Missing project ID goes to the reserved bucket",
			entries: []models.Entry{
				entry("e1", "P1"),
				entry("e2", ""),
				entry("e3", ""),
			},
			wantSizes: map[string]int{"P1": 1, Ungrouped: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := Group(tt.entries)

			if len(groups) != len(tt.wantSizes) {
				t.Errorf("Expected %d groups, got %d", len(tt.wantSizes), len(groups))
			}
			for id, size := range tt.wantSizes {
				if len(groups[id]) != size {
					t.Errorf("Group %q: expected %d entries, got %d", id, size, len(groups[id]))
				}
			}
		})
	}
}

// The partition must be total and disjoint: every entry appears in exactly
// one group.
func TestGroupPartition(t *testing.T) {
	entries := []models.Entry{
		entry("e1", "P1"),
		entry("e2", "P2"),
		entry("e3", ""),
		entry("e4", "P1"),
		entry("e5", "P3"),
	}

	groups := Group(entries)

	seen := make(map[string]int)
	total := 0
	for _, group := range groups {
		total += len(group)
		for _, e := range group {
			seen[e.ID]++
		}
	}

	if total != len(entries) {
		t.Errorf("Expected union of groups to hold %d entries, got %d", len(entries), total)
	}
	for _, e := range entries {
		if seen[e.ID] != 1 {
			t.Errorf("Entry %s appears %d times across groups, want exactly 1", e.ID, seen[e.ID])
		}
	}
}

func TestGroupPreservesOrder(t *testing.T) {
	entries := []models.Entry{
		entry("e3", "P1"),
		entry("e1", "P1"),
		entry("e2", "P1"),
	}

	groups := Group(entries)

	var got []string
	for _, e := range groups["P1"] {
		got = append(got, e.ID)
	}
	want := []string{"e3", "e1", "e2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected entry order %v, got %v", want, got)
	}
}

func TestSortedIDs(t *testing.T) {
	groups := Group([]models.Entry{
		entry("e1", "P2"),
		entry("e2", "P1"),
		entry("e3", ""),
	})

	got := SortedIDs(groups)
	want := []string{"P1", "P2", Ungrouped}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected sorted IDs %v, got %v", want, got)
	}
}
