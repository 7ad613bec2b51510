// Package repository implements the typed entity repositories over the
// record store. All business invariants (required fields, uniqueness,
// referential checks, slot conflicts, status transitions) are enforced here
// before anything is written; the store itself never validates.
package repository

import (
	"errors"

	"github.com/medidesk/clinic-server/internal/errs"
	"github.com/medidesk/clinic-server/internal/storage"
)

// asNotFound renames the store's generic not-found error to the entity's
// resource name. Any other storage fault propagates unchanged.
func asNotFound(err error, resource string) error {
	var notFound *errs.NotFoundError
	if errors.As(err, &notFound) {
		return &errs.NotFoundError{Resource: resource}
	}
	return err
}

// decodeAll converts raw store records into typed entities, skipping any
// record that no longer matches the entity shape.
func decodeAll[T any](records []storage.Record) []T {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		var v T
		if err := storage.Decode(rec, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}
