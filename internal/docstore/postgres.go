package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/isc-maritime/stockroom/internal/platform/db"
)

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres keeps documents in a JSONB table.
type Postgres struct {
	pool     *pgxpool.Pool
	notifier Notifier
}

// NewPostgres constructs the PostgreSQL backend. notifier may be nil.
func NewPostgres(pool *pgxpool.Pool, notifier Notifier) *Postgres {
	return &Postgres{pool: pool, notifier: notifier}
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	return pgGet(ctx, p.pool, collection, id, false)
}

func (p *Postgres) List(ctx context.Context, collection string) ([]Document, error) {
	return pgList(ctx, p.pool, collection)
}

// WithTx executes fn inside a repeatable-read transaction.
func (p *Postgres) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	var log changeLog
	err := db.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		log = changeLog{}
		return fn(ctx, &pgTx{q: tx, log: &log})
	})
	if err != nil {
		return err
	}
	publish(ctx, p.notifier, log.events)
	return nil
}

type pgTx struct {
	q   pgQuerier
	log *changeLog
}

func (t *pgTx) Get(ctx context.Context, collection, id string) (Document, error) {
	return pgGet(ctx, t.q, collection, id, true)
}

func (t *pgTx) List(ctx context.Context, collection string) ([]Document, error) {
	return pgList(ctx, t.q, collection)
}

func (t *pgTx) Put(ctx context.Context, collection, id string, data json.RawMessage) error {
	if !json.Valid(data) {
		return ErrInvalidDocument
	}
	const stmt = `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`
	if _, err := t.q.Exec(ctx, stmt, collection, id, data); err != nil {
		return fmt.Errorf("docstore: put %s/%s: %w", collection, id, err)
	}
	t.log.add(collection, id, OpPut)
	return nil
}

func (t *pgTx) Delete(ctx context.Context, collection, id string) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("docstore: delete %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	t.log.add(collection, id, OpDelete)
	return nil
}

func (t *pgTx) NextSequence(ctx context.Context, name string) (int64, error) {
	const stmt = `INSERT INTO counters (name, value) VALUES ($1, 1)
ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
RETURNING value`
	var value int64
	if err := t.q.QueryRow(ctx, stmt, name).Scan(&value); err != nil {
		return 0, fmt.Errorf("docstore: next sequence %s: %w", name, err)
	}
	return value, nil
}

func pgGet(ctx context.Context, q pgQuerier, collection, id string, lock bool) (Document, error) {
	query := `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	var data []byte
	if err := q.QueryRow(ctx, query, collection, id).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("docstore: get %s/%s: %w", collection, id, err)
	}
	return Document{ID: id, Data: data}, nil
}

func pgList(ctx context.Context, q pgQuerier, collection string) ([]Document, error) {
	rows, err := q.Query(ctx, `SELECT id, data FROM documents WHERE collection = $1 ORDER BY seq`, collection)
	if err != nil {
		return nil, fmt.Errorf("docstore: list %s: %w", collection, err)
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		var doc Document
		var data []byte
		if err := rows.Scan(&doc.ID, &data); err != nil {
			return nil, err
		}
		doc.Data = data
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
