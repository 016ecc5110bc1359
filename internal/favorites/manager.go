// Package favorites persists the ordered list of favorite query strings as a
// single JSON document, loaded once at session start and rewritten whole on
// every toggle.
package favorites

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Manager reads and writes the favorites file.
type Manager struct {
	path string
}

// NewManager creates a manager storing favorites under configDir.
func NewManager(configDir string) *Manager {
	return &Manager{path: filepath.Join(configDir, "favorites.json")}
}

// Load returns the persisted list. A missing file is an empty list, not an
// error.
func (m *Manager) Load() ([]string, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read favorites: %w", err)
	}

	var favorites []string
	if err := json.Unmarshal(data, &favorites); err != nil {
		return nil, fmt.Errorf("parse favorites: %w", err)
	}
	return favorites, nil
}

// Save rewrites the whole list.
func (m *Manager) Save(favorites []string) error {
	if favorites == nil {
		favorites = []string{}
	}
	data, err := json.MarshalIndent(favorites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal favorites: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("write favorites: %w", err)
	}
	return nil
}
