/*
Package sqlite is the SQLite-backed implementation of store.Engine.

PURPOSE:
  Persists records in a single `records` table keyed by
  (user_token, store_id, key) and enforces optimistic concurrency by
  inspecting sql.Result.RowsAffected() on every conditional statement
  inside one *sql.Tx: a statement that touches zero rows means the
  row wasn't there (insert racing another insert) or its version
  didn't match (update/delete racing another writer), and the whole
  batch rolls back.

CONCURRENCY:
  SQLite is opened with WAL mode so readers don't block writers, and
  with a 5s busy timeout so a writer waits for SQLite's write lock
  rather than failing at once; no additional locking is done here.
  The conditional insert is "INSERT ... SELECT ... WHERE NOT EXISTS";
  the unconditional upsert and the global-version write use
  "INSERT ... ON CONFLICT ... DO UPDATE". Only the SQLite driver is
  wired.

MIGRATION:
  Schema is auto-created on New() via CREATE TABLE IF NOT EXISTS; no
  migration framework is wired (spec's non-goal).

SEE ALSO:
  - internal/store: the Engine contract this type implements
  - internal/store/sqlite/reserved.go: vss_global_version special-casing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/vss/internal/store"
)

// Store implements store.Engine against a SQLite database.
type Store struct {
	db *sql.DB
}

var _ store.Engine = (*Store)(nil)

// New opens (creating if necessary) the SQLite database at dbPath and runs
// its schema migration. Use ":memory:" for an ephemeral database.
func New(dbPath string, maxOpenConns int) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS records (
		user_token      TEXT NOT NULL,
		store_id        TEXT NOT NULL,
		key             TEXT NOT NULL,
		value           BLOB NOT NULL,
		version         INTEGER NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL,
		last_updated_at TEXT NOT NULL,
		PRIMARY KEY (user_token, store_id, key)
	);

	-- supports the ORDER BY key ASC prefix scans ListKeyVersions does;
	-- redundant with the primary key's own index but kept explicit
	-- since the primary key column order matters for the scan.
	CREATE INDEX IF NOT EXISTS idx_records_scan
		ON records(user_token, store_id, key);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the current value and version for key. Absence of the
// reserved global-version key is not an error; every other absence is
// store.ErrNoSuchKey.
func (s *Store) Get(ctx context.Context, userToken, storeID, key string) (store.Record, error) {
	rec, err := s.get(ctx, s.db, userToken, storeID, key)
	if err != nil {
		return store.Record{}, err
	}
	return rec, nil
}

// get runs the single-row lookup against any querier (the plain *sql.DB or
// an in-flight *sql.Tx). Get and ListKeyVersions both call it with s.db.
func (s *Store) get(ctx context.Context, q querier, userToken, storeID, key string) (store.Record, error) {
	var value []byte
	var version int64
	err := q.QueryRowContext(ctx,
		`SELECT value, version FROM records WHERE user_token = ? AND store_id = ? AND key = ?`,
		userToken, storeID, key,
	).Scan(&value, &version)
	switch {
	case err == sql.ErrNoRows:
		return absentRecord(key)
	case err != nil:
		return store.Record{}, fmt.Errorf("%w: %v", store.ErrInternal, err)
	default:
		return store.Record{Key: key, Value: value, Version: version}, nil
	}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Put executes req's writes and deletes, plus the optional global-version
// write, inside a single transaction. Any statement that affects zero rows
// rolls back the whole batch and returns store.ErrConflict.
func (s *Store) Put(ctx context.Context, userToken string, req store.PutRequest) error {
	if len(req.Writes)+len(req.Deletes) > store.MaxBatchSize {
		return fmt.Errorf("%w: batch exceeds %d items", store.ErrInvalidRequest, store.MaxBatchSize)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", store.ErrInternal, err)
	}
	defer tx.Rollback()

	for _, w := range req.Writes {
		if err := s.applyWrite(ctx, tx, userToken, req.StoreID, w); err != nil {
			return err
		}
	}
	for _, d := range req.Deletes {
		if err := s.applyDelete(ctx, tx, userToken, req.StoreID, d, true); err != nil {
			return err
		}
	}
	if req.GlobalVersion != nil {
		if err := s.setGlobalVersion(ctx, tx, userToken, req.StoreID, *req.GlobalVersion); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", store.ErrInternal, err)
	}
	return nil
}

func (s *Store) applyWrite(ctx context.Context, tx *sql.Tx, userToken, storeID string, w store.Write) error {
	now := nowString()
	var res sql.Result
	var err error

	switch w.Intent {
	case store.Unconditional:
		res, err = tx.ExecContext(ctx, `
			INSERT INTO records (user_token, store_id, key, value, version, created_at, last_updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_token, store_id, key)
			DO UPDATE SET value = excluded.value, version = excluded.version, last_updated_at = excluded.last_updated_at
		`, userToken, storeID, w.Key, w.Value, store.InitialRecordVersion, now, now)

	case store.InsertIfAbsent:
		res, err = tx.ExecContext(ctx, `
			INSERT INTO records (user_token, store_id, key, value, version, created_at, last_updated_at)
			SELECT ?, ?, ?, ?, ?, ?, ?
			WHERE NOT EXISTS (
				SELECT 1 FROM records WHERE user_token = ? AND store_id = ? AND key = ?
			)
		`, userToken, storeID, w.Key, w.Value, store.InitialRecordVersion, now, now, userToken, storeID, w.Key)

	case store.UpdateIfVersion:
		res, err = tx.ExecContext(ctx, `
			UPDATE records SET value = ?, version = ?, last_updated_at = ?
			WHERE user_token = ? AND store_id = ? AND key = ? AND version = ?
		`, w.Value, nextVersion(w.ExpectVersion), now, userToken, storeID, w.Key, w.ExpectVersion)

	default:
		return fmt.Errorf("%w: unknown write intent %d", store.ErrInvalidRequest, w.Intent)
	}

	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrInternal, err)
	}
	return requireOneRow(res, w.Key)
}

// applyDelete executes one delete statement. When inBatch is true a
// zero-rows result is a conflict (Put's write-set semantics); a standalone
// Delete passes inBatch=false and tolerates zero rows as success.
func (s *Store) applyDelete(ctx context.Context, tx *sql.Tx, userToken, storeID string, d store.Delete, inBatch bool) error {
	var res sql.Result
	var err error

	switch d.Intent {
	case store.UnconditionalDelete:
		res, err = tx.ExecContext(ctx,
			`DELETE FROM records WHERE user_token = ? AND store_id = ? AND key = ?`,
			userToken, storeID, d.Key,
		)
	case store.DeleteIfVersion:
		res, err = tx.ExecContext(ctx,
			`DELETE FROM records WHERE user_token = ? AND store_id = ? AND key = ? AND version = ?`,
			userToken, storeID, d.Key, d.ExpectVersion,
		)
	default:
		return fmt.Errorf("%w: unknown delete intent %d", store.ErrInvalidRequest, d.Intent)
	}

	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrInternal, err)
	}
	if !inBatch {
		return nil
	}
	return requireOneRow(res, d.Key)
}

func (s *Store) setGlobalVersion(ctx context.Context, tx *sql.Tx, userToken, storeID string, version int64) error {
	now := nowString()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO records (user_token, store_id, key, value, version, created_at, last_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_token, store_id, key)
		DO UPDATE SET version = excluded.version, last_updated_at = excluded.last_updated_at
	`, userToken, storeID, store.ReservedGlobalVersionKey, []byte{}, version, now, now)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrInternal, err)
	}
	return requireOneRow(res, store.ReservedGlobalVersionKey)
}

// nextVersion increments a matched record's version. Versions never wrap;
// they saturate at the positive maximum.
func nextVersion(v int64) int64 {
	if v == math.MaxInt64 {
		return v
	}
	return v + 1
}

// requireOneRow is the RowsAffected check every conditional statement above
// goes through: zero rows means the composite key was already present
// (insert-if-absent), already gone, or its version no longer matched
// (update/delete-if-version) — in every case, a conflict for the caller
// that issued it.
func requireOneRow(res sql.Result, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrInternal, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", store.ErrConflict, key)
	}
	return nil
}

// Delete removes a single record in its own transaction. Unlike Put, a
// zero-rows-affected result is not surfaced as an error: callers always see
// success regardless of whether the key existed or its version matched.
func (s *Store) Delete(ctx context.Context, userToken, storeID string, del store.Delete) error {
	if del.Key == "" {
		return fmt.Errorf("%w: key is required", store.ErrInvalidRequest)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", store.ErrInternal, err)
	}
	defer tx.Rollback()

	if err := s.applyDelete(ctx, tx, userToken, storeID, del, false); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", store.ErrInternal, err)
	}
	return nil
}

// ListKeyVersions pages through keys in lexicographic order, excluding the
// reserved global-version key. The global version is read before the
// listing query runs, and only on the first page (empty page_token).
func (s *Store) ListKeyVersions(ctx context.Context, userToken string, req store.ListRequest) (store.ListResult, error) {
	limit := store.MaxPageSize
	if req.PageSize != nil {
		if int(*req.PageSize) < limit {
			limit = int(*req.PageSize)
		}
	}
	if limit < 0 {
		limit = 0
	}

	var result store.ListResult
	isFirstPage := req.PageToken == ""
	if isFirstPage {
		gv, err := s.get(ctx, s.db, userToken, req.StoreID, store.ReservedGlobalVersionKey)
		if err != nil {
			return store.ListResult{}, err
		}
		v := gv.Version
		result.GlobalVersion = &v
	}

	rows, err := s.queryKeyPage(ctx, userToken, req.StoreID, req.KeyPrefix, req.PageToken, limit)
	if err != nil {
		return store.ListResult{}, err
	}
	result.KeyVersions = rows

	if len(rows) > 0 {
		result.NextPageToken = rows[len(rows)-1].Key
	}
	return result, nil
}

func (s *Store) queryKeyPage(ctx context.Context, userToken, storeID, keyPrefix, pageToken string, limit int) ([]store.Record, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT key, version FROM records WHERE user_token = ? AND store_id = ? AND key > ?`)
	args := []any{userToken, storeID, pageToken}

	if keyPrefix != "" {
		query.WriteString(` AND key LIKE ? ESCAPE '\'`)
		args = append(args, escapeLikePrefix(keyPrefix)+"%")
	}
	query.WriteString(` ORDER BY key ASC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInternal, err)
	}
	defer rows.Close()

	out := make([]store.Record, 0, limit)
	for rows.Next() {
		var key string
		var version int64
		if err := rows.Scan(&key, &version); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrInternal, err)
		}
		// the reserved key is a record like any other on write, but must
		// never surface to ListKeyVersions callers.
		if key == store.ReservedGlobalVersionKey {
			continue
		}
		out = append(out, store.Record{Key: key, Version: version})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInternal, err)
	}
	return out, nil
}

// escapeLikePrefix escapes the three characters that are special to SQL
// LIKE patterns so an arbitrary key_prefix can be matched literally.
func escapeLikePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix)
}
