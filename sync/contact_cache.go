// ABOUTME: Per-principal contact snapshot files under the XDG data directory
// ABOUTME: Persists the last known contact list so it survives session eviction
package sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/naobregon27/kommo/models"
)

type ContactSnapshot struct {
	dir string
}

func NewContactSnapshot(dir string) *ContactSnapshot {
	return &ContactSnapshot{dir: dir}
}

// Path returns the snapshot file for a principal.
func (s *ContactSnapshot) Path(principal string) string {
	return filepath.Join(s.dir, principal+".json")
}

// Save writes contacts atomically with owner-only permissions.
func (s *ContactSnapshot) Save(principal string, contacts []models.Contact) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create contact cache directory: %w", err)
	}

	f, err := os.CreateTemp(s.dir, principal+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create contact cache file: %w", err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if err := json.NewEncoder(f).Encode(contacts); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode contacts: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write contact cache file: %w", err)
	}
	if err := os.Chmod(tmp, 0600); err != nil {
		return fmt.Errorf("failed to set contact cache permissions: %w", err)
	}

	if err := os.Rename(tmp, s.Path(principal)); err != nil {
		return fmt.Errorf("failed to replace contact cache file: %w", err)
	}
	return nil
}

// Load returns the saved contacts, or nil when there is no snapshot.
func (s *ContactSnapshot) Load(principal string) ([]models.Contact, error) {
	f, err := os.Open(s.Path(principal))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open contact cache file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var contacts []models.Contact
	if err := json.NewDecoder(f).Decode(&contacts); err != nil {
		return nil, fmt.Errorf("failed to decode contact cache file: %w", err)
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	return contacts, nil
}

// Remove deletes the snapshot. A missing file is not an error.
func (s *ContactSnapshot) Remove(principal string) error {
	if err := os.Remove(s.Path(principal)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove contact cache file: %w", err)
	}
	return nil
}
