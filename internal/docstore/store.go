// Package docstore persists named collections of JSON documents and reports
// every committed write as a change event.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound indicates a missing document.
var ErrNotFound = errors.New("docstore: document not found")

// ErrInvalidDocument indicates data that is not a JSON value.
var ErrInvalidDocument = errors.New("docstore: invalid json document")

// Document is a stored record: an id plus its JSON field bag.
type Document struct {
	ID   string
	Data json.RawMessage
}

// Reader exposes read access shared by stores and transactions.
type Reader interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string) ([]Document, error)
}

// Tx is a unit of work. Reads inside a transaction lock the documents they return.
type Tx interface {
	Reader
	Put(ctx context.Context, collection, id string, data json.RawMessage) error
	Delete(ctx context.Context, collection, id string) error
	NextSequence(ctx context.Context, name string) (int64, error)
}

// Store is implemented by every backend.
type Store interface {
	Reader
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
}

// Op describes the kind of change.
type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
)

// ChangeEvent is emitted after a write commits.
type ChangeEvent struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Op         Op     `json:"op"`
}

// Notifier receives committed change events.
type Notifier interface {
	Notify(ctx context.Context, events []ChangeEvent)
}

// changeLog buffers events of an open transaction.
type changeLog struct {
	events []ChangeEvent
}

func (l *changeLog) add(collection, id string, op Op) {
	l.events = append(l.events, ChangeEvent{Collection: collection, ID: id, Op: op})
}

func publish(ctx context.Context, n Notifier, events []ChangeEvent) {
	if n == nil || len(events) == 0 {
		return
	}
	n.Notify(context.WithoutCancel(ctx), events)
}

// GetAs loads a document and decodes it into T.
func GetAs[T any](ctx context.Context, r Reader, collection, id string) (T, error) {
	var out T
	doc, err := r.Get(ctx, collection, id)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(doc.Data, &out); err != nil {
		return out, fmt.Errorf("docstore: decode %s/%s: %w", collection, id, err)
	}
	return out, nil
}

// ListAs decodes every document of a collection, in insertion order.
// The id of each document is passed to assign so callers can stamp it.
func ListAs[T any](ctx context.Context, r Reader, collection string, assign func(*T, string)) ([]T, error) {
	docs, err := r.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var item T
		if err := json.Unmarshal(doc.Data, &item); err != nil {
			return nil, fmt.Errorf("docstore: decode %s/%s: %w", collection, doc.ID, err)
		}
		if assign != nil {
			assign(&item, doc.ID)
		}
		out = append(out, item)
	}
	return out, nil
}

// PutAs encodes v and writes it under id.
func PutAs(ctx context.Context, tx Tx, collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("docstore: encode %s/%s: %w", collection, id, err)
	}
	return tx.Put(ctx, collection, id, data)
}

// Update merges fields into an existing document. Nil values remove fields.
func Update(ctx context.Context, tx Tx, collection, id string, fields map[string]any) error {
	doc, err := tx.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	merged := map[string]any{}
	if len(doc.Data) > 0 {
		if err := json.Unmarshal(doc.Data, &merged); err != nil {
			return fmt.Errorf("docstore: decode %s/%s: %w", collection, id, err)
		}
	}
	for k, v := range fields {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return PutAs(ctx, tx, collection, id, merged)
}

// Create writes v under a freshly generated id and returns it.
func Create(ctx context.Context, s Store, collection string, v any) (string, error) {
	id := uuid.NewString()
	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return PutAs(ctx, tx, collection, id, v)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Remove deletes a document in its own transaction.
func Remove(ctx context.Context, s Store, collection, id string) error {
	return s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Delete(ctx, collection, id)
	})
}

// FormatSequence renders ids such as CON-001. Values past 999 keep all digits.
func FormatSequence(prefix string, n int64) string {
	return fmt.Sprintf("%s-%03d", prefix, n)
}

// NextID allocates the next free PREFIX-NNN id for a collection, skipping ids
// that already exist (for example rows imported before the counter existed).
func NextID(ctx context.Context, tx Tx, collection, prefix string) (string, error) {
	for {
		n, err := tx.NextSequence(ctx, collection)
		if err != nil {
			return "", err
		}
		id := FormatSequence(prefix, n)
		_, err = tx.Get(ctx, collection, id)
		if errors.Is(err, ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
	}
}
