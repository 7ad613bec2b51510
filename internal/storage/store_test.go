package storage_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medidesk/clinic-server/internal/errs"
	"github.com/medidesk/clinic-server/internal/storage"
)

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	store := storage.New(t.TempDir())
	assert.NoError(t, store.Init())
	return store
}

func TestInitIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	store := storage.New(dir)

	assert.NoError(t, store.Init())
	assert.NoError(t, store.Insert("Patients", storage.Record{"id": int64(1), "fullName": "John Doe"}))

	// A second Init must not wipe existing collections
	assert.NoError(t, store.Init())
	assert.Len(t, store.List("Patients"), 1)

	for _, name := range storage.Collections {
		_, err := os.Stat(filepath.Join(dir, name+".json"))
		assert.NoError(t, err, "collection %s should exist after Init", name)
	}
}

func TestListMissingCollectionIsEmpty(t *testing.T) {
	store := storage.New(t.TempDir())
	assert.Empty(t, store.List("Nope"))
}

func TestListCorruptCollectionIsEmpty(t *testing.T) {
	dir := t.TempDir()
	store := storage.New(dir)
	assert.NoError(t, store.Init())

	assert.NoError(t, os.WriteFile(filepath.Join(dir, "Patients.json"), []byte("{not json"), 0o644))
	assert.Empty(t, store.List("Patients"))
}

func TestInsertAndList(t *testing.T) {
	store := newStore(t)

	assert.NoError(t, store.Insert("Patients", storage.Record{"id": int64(1), "fullName": "John Doe"}))
	assert.NoError(t, store.Insert("Patients", storage.Record{"id": int64(2), "fullName": "Jane Roe"}))

	records := store.List("Patients")
	assert.Len(t, records, 2)
	assert.Equal(t, "John Doe", records[0]["fullName"])
	assert.Equal(t, "Jane Roe", records[1]["fullName"])
}

func TestUpdateByIDMergesAndStampsUpdatedAt(t *testing.T) {
	store := newStore(t)

	rec := storage.Record{
		"id":        int64(42),
		"fullName":  "John Doe",
		"phone":     "0123456789",
		"createdAt": "2025-01-01T00:00:00Z",
	}
	assert.NoError(t, store.Insert("Patients", rec))

	assert.NoError(t, store.UpdateByID("Patients", 42, storage.Record{"notes": "allergic to penicillin"}))

	records := store.List("Patients")
	assert.Len(t, records, 1)
	got := records[0]
	assert.Equal(t, "allergic to penicillin", got["notes"])
	// fields not present in the partial record are preserved
	assert.Equal(t, "John Doe", got["fullName"])
	assert.Equal(t, "0123456789", got["phone"])
	assert.Equal(t, "2025-01-01T00:00:00Z", got["createdAt"])
	assert.NotEmpty(t, got["updatedAt"])
}

func TestUpdateByIDNotFound(t *testing.T) {
	store := newStore(t)

	err := store.UpdateByID("Patients", 999, storage.Record{"notes": "x"})
	var notFound *errs.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestDeleteByID(t *testing.T) {
	store := newStore(t)

	assert.NoError(t, store.Insert("Patients", storage.Record{"id": int64(1)}))
	assert.NoError(t, store.Insert("Patients", storage.Record{"id": int64(2)}))

	// deleting a nonexistent id fails and leaves the collection unchanged
	err := store.DeleteByID("Patients", 999)
	var notFound *errs.NotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Len(t, store.List("Patients"), 2)

	assert.NoError(t, store.DeleteByID("Patients", 1))
	records := store.List("Patients")
	assert.Len(t, records, 1)
}

func TestReplace(t *testing.T) {
	store := newStore(t)

	assert.NoError(t, store.Insert("LoginAttempts", storage.Record{"username": "alice"}))
	assert.NoError(t, store.Insert("LoginAttempts", storage.Record{"username": "bob"}))

	assert.NoError(t, store.Replace("LoginAttempts", []storage.Record{{"username": "bob"}}))
	records := store.List("LoginAttempts")
	assert.Len(t, records, 1)
	assert.Equal(t, "bob", records[0]["username"])

	assert.NoError(t, store.Replace("LoginAttempts", nil))
	assert.Empty(t, store.List("LoginAttempts"))
}

func TestWithLockSerializesReadModifyWrite(t *testing.T) {
	store := newStore(t)

	const workers = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_ = store.WithLock(func() error {
				if len(store.List("Users")) == 0 {
					return store.Insert("Users", storage.Record{"id": int64(1)})
				}
				return nil
			})
		}()
	}
	close(start)
	wg.Wait()

	// only the first check-then-insert sequence may see an empty collection
	assert.Len(t, store.List("Users"), 1)
}

func TestSessionLifecycle(t *testing.T) {
	store := newStore(t)

	_, ok := store.LoadSession()
	assert.False(t, ok)

	assert.NoError(t, store.SaveSession(storage.Record{"id": "abc", "username": "alice"}))
	rec, ok := store.LoadSession()
	assert.True(t, ok)
	assert.Equal(t, "alice", rec["username"])

	assert.NoError(t, store.ClearSession())
	_, ok = store.LoadSession()
	assert.False(t, ok)

	// clearing an absent session is not an error
	assert.NoError(t, store.ClearSession())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	type thing struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	rec, err := storage.Encode(thing{ID: 7, Name: "x"})
	assert.NoError(t, err)

	var got thing
	assert.NoError(t, storage.Decode(rec, &got))
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "x", got.Name)
}
