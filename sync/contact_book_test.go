package sync

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/naobregon27/kommo/apperr"
	"github.com/naobregon27/kommo/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubFetcher struct {
	contacts []models.Contact
	err      error
	calls    int
}

func (f *stubFetcher) FetchContacts(ctx context.Context) ([]models.Contact, error) {
	f.calls++
	return f.contacts, f.err
}

func TestContactSnapshotRoundTrip(t *testing.T) {
	snap := NewContactSnapshot(t.TempDir())

	missing, err := snap.Load("u1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	contacts := []models.Contact{contact("people-1", "Ana", "5551234567")}
	require.NoError(t, snap.Save("u1", contacts))

	info, err := os.Stat(snap.Path("u1"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := snap.Load("u1")
	require.NoError(t, err)
	assert.Equal(t, contacts, loaded)

	require.NoError(t, snap.Remove("u1"))
	require.NoError(t, snap.Remove("u1"))
}

func TestContactBookIsCacheFirst(t *testing.T) {
	fetcher := &stubFetcher{contacts: []models.Contact{
		contact("people-1", "Ana", "+54 11 2345-6789"),
		contact("people-2", "Ana again", "541123456789"),
	}}
	book := NewContactBook("u1", NewContactSnapshot(t.TempDir()), zap.NewNop())
	book.SetFetcher(fetcher)

	first, err := book.Contacts(context.Background())
	require.NoError(t, err)
	second, err := book.Contacts(context.Background())
	require.NoError(t, err)

	assert.Len(t, first, 1, "remote list is deduplicated")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, fetcher.calls)
}

func TestContactBookFallsBackToSnapshot(t *testing.T) {
	snap := NewContactSnapshot(t.TempDir())
	require.NoError(t, snap.Save("u1", []models.Contact{contact("people-1", "Ana", "5551234567")}))

	book := NewContactBook("u1", snap, zap.NewNop())
	contacts, err := book.Contacts(context.Background())
	require.NoError(t, err)
	assert.Len(t, contacts, 1)
}

func TestContactBookWithoutSourceIsAuthError(t *testing.T) {
	book := NewContactBook("u1", NewContactSnapshot(t.TempDir()), zap.NewNop())

	_, err := book.Contacts(context.Background())
	assert.True(t, apperr.Is(err, apperr.CodeAuth))
}

func TestContactBookFetchFailure(t *testing.T) {
	book := NewContactBook("u1", nil, zap.NewNop())
	book.SetFetcher(&stubFetcher{err: errors.New("quota exceeded")})

	_, err := book.Contacts(context.Background())
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestContactBookMergeDeduplicates(t *testing.T) {
	snap := NewContactSnapshot(t.TempDir())
	book := NewContactBook("u1", snap, zap.NewNop())
	book.SetFetcher(&stubFetcher{contacts: []models.Contact{contact("people-1", "Ana", "+54 11 2345-6789")}})

	imported := []models.Contact{
		{ID: "txt-1", Name: "Ana", PhoneNumber: "541123456789", Source: models.SourceFile},
		{ID: "txt-2", Name: "Luis", PhoneNumber: "5557654321", Source: models.SourceFile},
	}
	added, total, err := book.Merge(context.Background(), imported)
	require.NoError(t, err)

	assert.Equal(t, 1, added)
	assert.Equal(t, 2, total)

	saved, err := snap.Load("u1")
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestContactBookMergeWithoutSource(t *testing.T) {
	book := NewContactBook("u1", nil, zap.NewNop())

	added, total, err := book.Merge(context.Background(), []models.Contact{
		{ID: "txt-1", Name: "Luis", PhoneNumber: "5557654321", Source: models.SourceFile},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, total)

	contacts, err := book.Contacts(context.Background())
	require.NoError(t, err)
	assert.Len(t, contacts, 1)
}

func TestContactBookRefreshKeepsImports(t *testing.T) {
	fetcher := &stubFetcher{contacts: []models.Contact{contact("people-1", "Ana", "5551234567")}}
	book := NewContactBook("u1", nil, zap.NewNop())
	book.SetFetcher(fetcher)

	_, _, err := book.Merge(context.Background(), []models.Contact{
		{ID: "txt-1", Name: "Luis", PhoneNumber: "5557654321", Source: models.SourceFile},
	})
	require.NoError(t, err)

	fetcher.contacts = append(fetcher.contacts, contact("people-2", "Eva", "5550001111"))
	contacts, err := book.Refresh(context.Background())
	require.NoError(t, err)

	ids := []string{}
	for _, c := range contacts {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"people-1", "people-2", "txt-1"}, ids)
}

func TestContactBookClear(t *testing.T) {
	snap := NewContactSnapshot(t.TempDir())
	book := NewContactBook("u1", snap, zap.NewNop())
	_, _, err := book.Merge(context.Background(), []models.Contact{
		{ID: "txt-1", Name: "Luis", PhoneNumber: "5557654321", Source: models.SourceFile},
	})
	require.NoError(t, err)

	require.NoError(t, book.Clear())

	_, err = os.Stat(snap.Path("u1"))
	assert.True(t, os.IsNotExist(err))
	_, err = book.Contacts(context.Background())
	assert.True(t, apperr.Is(err, apperr.CodeAuth))
}

func TestContactBookFetchesOverImportOnlySnapshot(t *testing.T) {
	snap := NewContactSnapshot(t.TempDir())
	early := NewContactBook("u1", snap, zap.NewNop())
	_, _, err := early.Merge(context.Background(), []models.Contact{
		{ID: "txt-1", Name: "Luis", PhoneNumber: "5557654321", Source: models.SourceFile},
	})
	require.NoError(t, err)

	fetcher := &stubFetcher{contacts: []models.Contact{contact("people-1", "Ana", "5551234567")}}
	book := NewContactBook("u1", snap, zap.NewNop())
	book.SetFetcher(fetcher)

	contacts, err := book.Contacts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.calls, "an import-only snapshot is not a fetched list")
	ids := []string{}
	for _, c := range contacts {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"people-1", "txt-1"}, ids)

	saved, err := snap.Load("u1")
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestContactBookRecordValidation(t *testing.T) {
	snap := NewContactSnapshot(t.TempDir())
	book := NewContactBook("u1", snap, zap.NewNop())
	book.SetFetcher(&stubFetcher{contacts: []models.Contact{
		contact("people-1", "Ana", "5551234567"),
		contact("people-2", "Luis", "911"),
	}})
	_, err := book.Contacts(context.Background())
	require.NoError(t, err)

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, book.RecordValidation(context.Background(), []models.Contact{
		{ID: "people-1", IsValid: true, ValidatedAt: &at},
		{ID: "people-2", IsValid: false, ValidatedAt: &at},
	}))

	contacts, err := book.Contacts(context.Background())
	require.NoError(t, err)
	assert.True(t, contacts[0].IsValid)
	assert.False(t, contacts[1].IsValid)
	require.NotNil(t, contacts[1].ValidatedAt)

	saved, err := snap.Load("u1")
	require.NoError(t, err)
	assert.True(t, saved[0].IsValid)
}

func TestContactBookRefreshKeepsSnapshotImports(t *testing.T) {
	snap := NewContactSnapshot(t.TempDir())
	require.NoError(t, snap.Save("u1", []models.Contact{
		{ID: "txt-1", Name: "Luis", PhoneNumber: "5557654321", Source: models.SourceFile},
	}))

	book := NewContactBook("u1", snap, zap.NewNop())
	book.SetFetcher(&stubFetcher{contacts: []models.Contact{contact("people-1", "Ana", "5551234567")}})

	contacts, err := book.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "people-1", contacts[0].ID)
	assert.Equal(t, "txt-1", contacts[1].ID)
}
