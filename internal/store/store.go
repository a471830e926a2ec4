/*
Package store defines the versioned key-value engine contract.

PURPOSE:
  This is the interface between the request dispatcher and whatever
  transactional backing store actually holds records. A concrete engine
  (internal/store/sqlite) implements it against a relational database; the
  contract itself names only the four operations the storage engine
  exposes, matching the component design: get, put, delete, and
  list_key_versions.

RESERVED KEY:
  The literal ReservedGlobalVersionKey behaves like an ordinary record on
  write (so it can be written transactionally alongside others) but is
  special-cased on read (absence means version 0, not NoSuchKey) and on
  list (it never appears in results). Concrete engines must apply both
  special cases; callers of this package never see the reserved key
  treated as ordinary.

SENTINEL VERSIONS:
  Caller-supplied versions are not plain int64s in engine signatures.
  WriteIntent tags the three write modes (non-conditional upsert,
  insert-if-absent, update-if-version) so the -1/0/>=1 sentinel mapping
  happens once, at the wire boundary (internal/api), rather than being
  re-derived inside engine logic.

SEE ALSO:
  - internal/store/sqlite: the SQLite-backed implementation
  - internal/api: translates wire requests into these calls
*/
package store

import (
	"context"
	"errors"
)

// ReservedGlobalVersionKey is the literal key that carries a store's
// monotonic global_version. It is invisible to ListKeyVersions and reads
// as {value: nil, version: 0} when absent.
const ReservedGlobalVersionKey = "vss_global_version"

// InitialRecordVersion is the version a freshly created record carries,
// whether it was inserted conditionally (wire version 0) or by a
// non-conditional upsert (wire version -1). An upsert of an existing
// record also resets its version to this value.
const InitialRecordVersion = 1

// WriteIntent tags how a single write in a batch should be applied.
type WriteIntent int

const (
	// Unconditional inserts or overwrites the record regardless of its
	// current version (wire sentinel version == -1); the stored version
	// is reset to InitialRecordVersion either way.
	Unconditional WriteIntent = iota
	// InsertIfAbsent succeeds only when no record exists yet for the
	// composite key (wire sentinel version == 0); the new record is
	// stored at InitialRecordVersion.
	InsertIfAbsent
	// UpdateIfVersion succeeds only when the stored version equals
	// ExpectVersion (wire version >= 1).
	UpdateIfVersion
)

// Write describes one record mutation within a Put batch.
type Write struct {
	Key           string
	Value         []byte
	Intent        WriteIntent
	ExpectVersion int64 // meaningful only when Intent == UpdateIfVersion
}

// DeleteIntent tags how a single delete in a batch should be applied.
type DeleteIntent int

const (
	// UnconditionalDelete removes the record regardless of version
	// (wire sentinel version == -1).
	UnconditionalDelete DeleteIntent = iota
	// DeleteIfVersion removes the record only if its stored version
	// equals ExpectVersion (wire version >= 0).
	DeleteIfVersion
)

// Delete describes one record removal within a Put batch, or the single
// target of a standalone Delete call.
type Delete struct {
	Key           string
	Intent        DeleteIntent
	ExpectVersion int64 // meaningful only when Intent == DeleteIfVersion
}

// Record is a single stored (key, value, version) tuple.
type Record struct {
	Key     string
	Value   []byte
	Version int64
}

// PutRequest is one atomic batch: every Write and Delete commits together,
// or none of them do. GlobalVersion, when non-nil, appends one more write
// targeting ReservedGlobalVersionKey with an unconditional-style "set to
// exactly this value" semantics (see sqlite.Store.Put).
type PutRequest struct {
	StoreID       string
	Writes        []Write
	Deletes       []Delete
	GlobalVersion *int64
}

// ListRequest pages through a store's keys in lexicographic order.
type ListRequest struct {
	StoreID   string
	KeyPrefix string
	PageToken string
	// PageSize nil means "not supplied" (effective limit is MaxPageSize).
	// A non-nil 0 means the caller explicitly asked for zero rows.
	PageSize *int32
}

// ListResult is one page of ListKeyVersions.
type ListResult struct {
	KeyVersions   []Record // Value is always empty for list results
	NextPageToken string
	GlobalVersion *int64 // set only on the first page
}

// MaxPageSize is the hard ceiling on page_size regardless of what the
// caller asks for.
const MaxPageSize = 100

// MaxBatchSize is the hard ceiling on transaction_items + delete_items in
// a single Put.
const MaxBatchSize = 1000

// Engine is the Storage Engine's capability surface.
type Engine interface {
	// Get returns the current value and version for a single key. Returns
	// ErrNoSuchKey if absent, except for ReservedGlobalVersionKey, which
	// returns {nil, 0} when absent instead of failing.
	Get(ctx context.Context, userToken, storeID, key string) (Record, error)

	// Put executes req's writes and deletes atomically. Any operation,
	// conditional or not, that affects zero rows aborts the whole batch
	// with ErrConflict.
	Put(ctx context.Context, userToken string, req PutRequest) error

	// Delete executes a single delete in its own transaction. Unlike Put,
	// a zero-rows-affected result is not an error: delete is idempotent at
	// the response level.
	Delete(ctx context.Context, userToken, storeID string, del Delete) error

	// ListKeyVersions pages through keys (never including the reserved
	// key) ordered lexicographically ascending.
	ListKeyVersions(ctx context.Context, userToken string, req ListRequest) (ListResult, error)
}

// Engine error kinds. Together with auth.ErrUnauthorized these make up
// the five kinds the Error Mapper consumes.
var (
	ErrNoSuchKey      = errors.New("vss: no such key")
	ErrConflict       = errors.New("vss: version conflict")
	ErrInvalidRequest = errors.New("vss: invalid request")
	ErrInternal       = errors.New("vss: internal storage error")
)
