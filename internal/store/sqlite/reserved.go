package sqlite

import (
	"time"

	"github.com/warp/vss/internal/store"
)

// absentRecord resolves a Get miss. Every key maps to store.ErrNoSuchKey
// except the reserved global-version key, which reads as version 0 with a
// nil value instead of failing — a store that has never been written to
// still has a well-defined global version.
func absentRecord(key string) (store.Record, error) {
	if key == store.ReservedGlobalVersionKey {
		return store.Record{Key: key, Value: nil, Version: 0}, nil
	}
	return store.Record{}, store.ErrNoSuchKey
}

// nowString is the single place record timestamps are generated, so the
// format stays consistent across every write path.
func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
