// ABOUTME: Cache-first contact list for one principal
// ABOUTME: Serves memory, then the snapshot file, then a remote fetch, and merges imports
package sync

import (
	"context"
	"fmt"
	gosync "sync"

	"github.com/naobregon27/kommo/apperr"
	"github.com/naobregon27/kommo/models"
	"go.uber.org/zap"
)

// Fetcher pulls the full contact list from the remote contact source.
type Fetcher interface {
	FetchContacts(ctx context.Context) ([]models.Contact, error)
}

type ContactBook struct {
	principal string
	snapshot  *ContactSnapshot
	logger    *zap.Logger

	mu       gosync.Mutex
	fetcher  Fetcher
	contacts []models.Contact
	loaded   bool
}

// NewContactBook creates an empty book. snapshot may be nil.
func NewContactBook(principal string, snapshot *ContactSnapshot, logger *zap.Logger) *ContactBook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactBook{principal: principal, snapshot: snapshot, logger: logger}
}

// SetFetcher attaches (or, with nil, detaches) the remote source.
func (b *ContactBook) SetFetcher(f Fetcher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fetcher = f
}

// Contacts returns the cached list, loading it on first use.
func (b *ContactBook) Contacts(ctx context.Context) ([]models.Contact, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.load(ctx); err != nil {
		return nil, err
	}
	return b.copyContacts(), nil
}

// Refresh refetches from the remote source, keeping previously imported
// file contacts that the remote list does not already cover.
func (b *ContactBook) Refresh(ctx context.Context) ([]models.Contact, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fetcher == nil {
		return nil, apperr.Auth("contact source not authenticated", nil)
	}
	remote, err := b.fetcher.FetchContacts(ctx)
	if err != nil {
		return nil, err
	}

	kept := b.contacts
	if !b.loaded {
		kept = b.savedContacts()
	}
	merged := append([]models.Contact(nil), remote...)
	b.contacts = Dedupe(append(merged, fileContacts(kept)...))
	b.loaded = true
	b.persist()
	return b.copyContacts(), nil
}

// Merge adds imported contacts behind the existing ones, dropping any whose
// phone is already present. It returns how many were added and the new total.
func (b *ContactBook) Merge(ctx context.Context, imported []models.Contact) (added, total int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.load(ctx); err != nil && !apperr.Is(err, apperr.CodeAuth) {
		return 0, 0, err
	}

	before := len(b.contacts)
	b.contacts = Dedupe(append(b.copyContacts(), imported...))
	b.loaded = true
	b.persist()

	b.logger.Info("contacts: merged import",
		zap.String("principal", b.principal),
		zap.Int("added", len(b.contacts)-before),
		zap.Int("total", len(b.contacts)))
	return len(b.contacts) - before, len(b.contacts), nil
}

// RecordValidation copies the validation fields of contacts onto the cached
// entries with the same id and saves the snapshot.
func (b *ContactBook) RecordValidation(_ context.Context, contacts []models.Contact) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.loaded || len(contacts) == 0 {
		return nil
	}
	byID := make(map[string]models.Contact, len(contacts))
	for _, c := range contacts {
		byID[c.ID] = c
	}
	for i := range b.contacts {
		if v, ok := byID[b.contacts[i].ID]; ok {
			b.contacts[i].IsValid = v.IsValid
			b.contacts[i].ValidatedAt = v.ValidatedAt
		}
	}
	b.persist()
	return nil
}

// Clear drops the cached list and its snapshot.
func (b *ContactBook) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.contacts = nil
	b.loaded = false
	if b.snapshot == nil {
		return nil
	}
	return b.snapshot.Remove(b.principal)
}

func (b *ContactBook) load(ctx context.Context) error {
	if b.loaded {
		return nil
	}

	// A snapshot holding only imported contacts was written before the
	// remote source was connected, so it is not a fetched list.
	saved := b.savedContacts()
	if saved != nil && (b.fetcher == nil || hasRemote(saved)) {
		b.contacts = saved
		b.loaded = true
		return nil
	}

	if b.fetcher == nil {
		return apperr.Auth("contact source not authenticated", nil)
	}
	remote, err := b.fetcher.FetchContacts(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch contacts: %w", err)
	}

	merged := append([]models.Contact(nil), remote...)
	b.contacts = Dedupe(append(merged, fileContacts(saved)...))
	b.loaded = true
	b.persist()
	return nil
}

// savedContacts reads the snapshot, treating an unreadable one as empty.
func (b *ContactBook) savedContacts() []models.Contact {
	if b.snapshot == nil {
		return nil
	}
	saved, err := b.snapshot.Load(b.principal)
	if err != nil {
		b.logger.Warn("contacts: ignoring unreadable snapshot", zap.Error(err))
		return nil
	}
	return saved
}

func hasRemote(contacts []models.Contact) bool {
	for _, c := range contacts {
		if c.Source == models.SourceAPI {
			return true
		}
	}
	return false
}

func fileContacts(contacts []models.Contact) []models.Contact {
	var out []models.Contact
	for _, c := range contacts {
		if c.Source == models.SourceFile {
			out = append(out, c)
		}
	}
	return out
}

func (b *ContactBook) persist() {
	if b.snapshot == nil {
		return
	}
	if err := b.snapshot.Save(b.principal, b.contacts); err != nil {
		b.logger.Warn("contacts: failed to save snapshot", zap.String("principal", b.principal), zap.Error(err))
	}
}

func (b *ContactBook) copyContacts() []models.Contact {
	out := make([]models.Contact, len(b.contacts))
	copy(out, b.contacts)
	return out
}
