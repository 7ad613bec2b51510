// Package storage implements the embedded record store: named collections of
// JSON records persisted one file per collection under a data directory,
// plus a singular key for the current session. It is the analogue of a
// browser-local key-value store and deliberately knows nothing about entity
// semantics; validation and uniqueness are the repositories' job.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/medidesk/clinic-server/internal/errs"
)

// Record is one persisted entity instance, a field-name-to-value mapping.
type Record = map[string]any

// Collections lists every collection the store guarantees to exist after
// Init. The names double as the persisted key-value keys.
var Collections = []string{
	"Users",
	"Patients",
	"Appointments",
	"Incomes",
	"Expenses",
	"LoginAttempts",
}

// sessionKey is the singular key holding the current session record. It is
// absent while logged out.
const sessionKey = "CurrentSession"

// Store persists collections as JSON files under a single directory. Each
// operation takes the store-wide file mutex; sequences spanning several
// operations serialize through WithLock.
type Store struct {
	mu   sync.Mutex
	opMu sync.Mutex
	dir  string
}

// New creates a store rooted at dir. Call Init before first use.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Init ensures the data directory and every required collection exist,
// creating empty collections where absent. It is idempotent and safe to call
// on every start.
func (s *Store) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	for _, name := range Collections {
		path := s.path(name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// List returns all records of a collection in insertion order. A missing or
// unparsable collection reads as empty, never as an error.
func (s *Store) List(collection string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(collection)
}

// Insert appends a record to a collection. It never deduplicates or
// validates fields.
func (s *Store) Insert(collection string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.read(collection)
	records = append(records, rec)
	return s.write(collection, records)
}

// UpdateByID merges partial onto the record with the given id, preserving
// fields not present in partial, and stamps updatedAt. It fails with a
// NotFoundError if no record matches.
func (s *Store) UpdateByID(collection string, id int64, partial Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.read(collection)
	for i, rec := range records {
		if rid, ok := recordID(rec); ok && rid == id {
			for k, v := range partial {
				rec[k] = v
			}
			rec["updatedAt"] = time.Now().UTC().Format(time.RFC3339Nano)
			records[i] = rec
			return s.write(collection, records)
		}
	}
	return &errs.NotFoundError{Resource: "record"}
}

// DeleteByID removes the first record with the given id. It fails with a
// NotFoundError, leaving the collection untouched, if none matches.
func (s *Store) DeleteByID(collection string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.read(collection)
	for i, rec := range records {
		if rid, ok := recordID(rec); ok && rid == id {
			records = append(records[:i], records[i+1:]...)
			return s.write(collection, records)
		}
	}
	return &errs.NotFoundError{Resource: "record"}
}

// WithLock runs fn while holding the store-wide operation lock, so a
// read-check-write sequence spanning several store calls executes as one
// step even with concurrent callers. fn uses the regular store methods,
// which take the inner file mutex per call; WithLock calls must not nest.
func (s *Store) WithLock(fn func() error) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return fn()
}

// Replace overwrites a collection with the given records. The login guard
// uses it for its prune-and-rewrite of the attempts log.
func (s *Store) Replace(collection string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(collection, records)
}

// SaveSession stores the current session record under the singular session
// key, replacing any previous one.
func (s *Store) SaveSession(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(sessionKey), data, 0o644)
}

// LoadSession returns the current session record, or false when logged out
// or when the stored record is unreadable.
func (s *Store) LoadSession() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(sessionKey))
	if err != nil {
		return nil, false
	}
	var rec Record
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return nil, false
	}
	return rec, true
}

// ClearSession removes the session key. It is idempotent: clearing an
// absent session is not an error.
func (s *Store) ClearSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(sessionKey))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// read loads a collection, treating missing files and malformed JSON as an
// empty collection.
func (s *Store) read(collection string) []Record {
	data, err := os.ReadFile(s.path(collection))
	if err != nil {
		return []Record{}
	}
	var records []Record
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&records); err != nil || records == nil {
		return []Record{}
	}
	return records
}

func (s *Store) write(collection string, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(collection), data, 0o644)
}

// recordID extracts the integer id of a record across the representations
// json decoding can produce.
func recordID(rec Record) (int64, bool) {
	switch v := rec["id"].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		id, err := v.Int64()
		return id, err == nil
	default:
		return 0, false
	}
}

// Encode converts a typed entity into a Record via its JSON form.
func Encode(v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var rec Record
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Decode converts a Record back into a typed entity via its JSON form.
func Decode(rec Record, out any) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
