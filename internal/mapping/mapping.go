// Package mapping loads the read-only auxiliary lookup files: the ISA
// identifier list keyed by Labfolder project ID and the username map from
// Labfolder author names to eLabFTW user IDs.
package mapping

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/elnmigrate/labfolder2elabftw/internal/logger"
)

// Tables bundles the optional lookup tables used when patching experiment
// metadata. Either table may be nil when the corresponding file was not
// provided.
type Tables struct {
	ISA           map[string]string
	Users         map[string]int
	DefaultUserID int
}

// Load reads the ISA list and username map from the given paths; empty paths
// are skipped.
func Load(isaPath, nameMapPath string, defaultUserID int) (Tables, error) {
	t := Tables{DefaultUserID: defaultUserID}

	if isaPath != "" {
		isa, err := loadISAIDs(isaPath)
		if err != nil {
			return t, fmt.Errorf("failed to load ISA list: %w", err)
		}
		t.ISA = isa
	}

	if nameMapPath != "" {
		users, err := loadNameMap(nameMapPath)
		if err != nil {
			return t, fmt.Errorf("failed to load name map: %w", err)
		}
		t.Users = users
	}

	return t, nil
}

// ISAID looks up the ISA identifier for a project; "" when unknown
func (t Tables) ISAID(projectID string) string {
	id, ok := t.ISA[projectID]
	if !ok {
		logger.Debug("No ISA ID for project", map[string]interface{}{
			"project_id": projectID,
		})
	}
	return id
}

// UserID maps an author full name (case-insensitive) to a destination user
// ID, falling back to the configured default.
func (t Tables) UserID(fullName string) int {
	if id, ok := t.Users[strings.ToLower(strings.TrimSpace(fullName))]; ok {
		return id
	}
	if len(t.Users) > 0 {
		logger.Warn("No user ID mapping found", map[string]interface{}{
			"name": fullName,
		})
	}
	return t.DefaultUserID
}

// loadISAIDs reads a yaml map of project ID to ISA identifier
func loadISAIDs(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var isa map[string]string
	if err := yaml.Unmarshal(data, &isa); err != nil {
		return nil, err
	}
	return isa, nil
}

// loadNameMap reads a yaml map of "First Last" to destination user ID. Keys
// are normalized to lower case for the case-insensitive lookup.
func loadNameMap(path string) (map[string]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]int
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	users := make(map[string]int, len(raw))
	for name, id := range raw {
		users[strings.ToLower(strings.TrimSpace(name))] = id
	}
	return users, nil
}
