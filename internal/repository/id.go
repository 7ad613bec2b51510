package repository

import (
	"sync"
	"time"
)

var (
	idMu   sync.Mutex
	lastID int64
)

// nextID returns a creation-time-derived identifier. A floor at the last
// issued value keeps ids strictly increasing within the process, so two
// records created in the same clock tick can never collide.
func nextID() int64 {
	idMu.Lock()
	defer idMu.Unlock()

	id := time.Now().UnixMilli()
	if id <= lastID {
		id = lastID + 1
	}
	lastID = id
	return id
}
