package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLite keeps documents in a single-file database opened with the
// modernc.org/sqlite driver. The handle must be limited to one open
// connection; see platform/db.OpenSQLite.
type SQLite struct {
	db       *sql.DB
	notifier Notifier
}

// NewSQLite constructs the SQLite backend. notifier may be nil.
func NewSQLite(db *sql.DB, notifier Notifier) *SQLite {
	return &SQLite{db: db, notifier: notifier}
}

func (s *SQLite) Get(ctx context.Context, collection, id string) (Document, error) {
	return sqlGet(ctx, s.db, collection, id)
}

func (s *SQLite) List(ctx context.Context, collection string) ([]Document, error) {
	return sqlList(ctx, s.db, collection)
}

// WithTx executes fn inside a transaction.
func (s *SQLite) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("docstore: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	var log changeLog
	if err := fn(ctx, &sqliteTx{q: tx, log: &log}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("docstore: commit tx: %w", err)
	}
	publish(ctx, s.notifier, log.events)
	return nil
}

type sqliteTx struct {
	q   sqlQuerier
	log *changeLog
}

func (t *sqliteTx) Get(ctx context.Context, collection, id string) (Document, error) {
	return sqlGet(ctx, t.q, collection, id)
}

func (t *sqliteTx) List(ctx context.Context, collection string) ([]Document, error) {
	return sqlList(ctx, t.q, collection)
}

func (t *sqliteTx) Put(ctx context.Context, collection, id string, data json.RawMessage) error {
	if !json.Valid(data) {
		return ErrInvalidDocument
	}
	const stmt = `INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`
	if _, err := t.q.ExecContext(ctx, stmt, collection, id, string(data)); err != nil {
		return fmt.Errorf("docstore: put %s/%s: %w", collection, id, err)
	}
	t.log.add(collection, id, OpPut)
	return nil
}

func (t *sqliteTx) Delete(ctx context.Context, collection, id string) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("docstore: delete %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	t.log.add(collection, id, OpDelete)
	return nil
}

func (t *sqliteTx) NextSequence(ctx context.Context, name string) (int64, error) {
	const stmt = `INSERT INTO counters (name, value) VALUES (?, 1)
ON CONFLICT (name) DO UPDATE SET value = value + 1
RETURNING value`
	var value int64
	if err := t.q.QueryRowContext(ctx, stmt, name).Scan(&value); err != nil {
		return 0, fmt.Errorf("docstore: next sequence %s: %w", name, err)
	}
	return value, nil
}

func sqlGet(ctx context.Context, q sqlQuerier, collection, id string) (Document, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("docstore: get %s/%s: %w", collection, id, err)
	}
	return Document{ID: id, Data: json.RawMessage(data)}, nil
}

func sqlList(ctx context.Context, q sqlQuerier, collection string) ([]Document, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, data FROM documents WHERE collection = ? ORDER BY rowid`, collection)
	if err != nil {
		return nil, fmt.Errorf("docstore: list %s: %w", collection, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var docs []Document
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, err
		}
		docs = append(docs, Document{ID: id, Data: json.RawMessage(data)})
	}
	return docs, rows.Err()
}
