package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

type memDoc struct {
	data []byte
	seq  int64
}

// Memory is an in-process Store used for tests and single-node development.
// Transactions are serialised and applied only on success.
type Memory struct {
	mu       sync.RWMutex
	txMu     sync.Mutex
	docs     map[string]map[string]memDoc
	counters map[string]int64
	seq      int64
	notifier Notifier
}

// NewMemory constructs an empty Memory store. notifier may be nil.
func NewMemory(notifier Notifier) *Memory {
	return &Memory{
		docs:     make(map[string]map[string]memDoc),
		counters: make(map[string]int64),
		notifier: notifier,
	}
}

// Get returns a copy of the stored document.
func (m *Memory) Get(ctx context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Data: clone(doc.data)}, nil
}

// List returns every document of the collection in insertion order.
func (m *Memory) List(ctx context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedDocs(m.docs[collection], nil), nil
}

// WithTx runs fn against a private write set and commits it when fn succeeds.
func (m *Memory) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &memTx{
		store:    m,
		writes:   make(map[string]map[string]*memDoc),
		counters: make(map[string]int64),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	for collection, writes := range tx.writes {
		bucket, ok := m.docs[collection]
		if !ok {
			bucket = make(map[string]memDoc)
			m.docs[collection] = bucket
		}
		for id, doc := range writes {
			if doc == nil {
				delete(bucket, id)
				continue
			}
			bucket[id] = *doc
		}
	}
	for name, value := range tx.counters {
		m.counters[name] = value
	}
	m.mu.Unlock()

	publish(ctx, m.notifier, tx.log.events)
	return nil
}

type memTx struct {
	store    *Memory
	writes   map[string]map[string]*memDoc
	counters map[string]int64
	log      changeLog
}

func (tx *memTx) lookup(collection, id string) (memDoc, bool) {
	if writes, ok := tx.writes[collection]; ok {
		if doc, seen := writes[id]; seen {
			if doc == nil {
				return memDoc{}, false
			}
			return *doc, true
		}
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	doc, ok := tx.store.docs[collection][id]
	return doc, ok
}

func (tx *memTx) Get(ctx context.Context, collection, id string) (Document, error) {
	doc, ok := tx.lookup(collection, id)
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Data: clone(doc.data)}, nil
}

func (tx *memTx) List(ctx context.Context, collection string) ([]Document, error) {
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	return sortedDocs(tx.store.docs[collection], tx.writes[collection]), nil
}

func (tx *memTx) Put(ctx context.Context, collection, id string, data json.RawMessage) error {
	if !json.Valid(data) {
		return ErrInvalidDocument
	}
	writes, ok := tx.writes[collection]
	if !ok {
		writes = make(map[string]*memDoc)
		tx.writes[collection] = writes
	}
	seq := int64(0)
	if existing, found := tx.lookup(collection, id); found {
		seq = existing.seq
	} else {
		tx.store.mu.Lock()
		tx.store.seq++
		seq = tx.store.seq
		tx.store.mu.Unlock()
	}
	writes[id] = &memDoc{data: clone(data), seq: seq}
	tx.log.add(collection, id, OpPut)
	return nil
}

func (tx *memTx) Delete(ctx context.Context, collection, id string) error {
	if _, found := tx.lookup(collection, id); !found {
		return ErrNotFound
	}
	writes, ok := tx.writes[collection]
	if !ok {
		writes = make(map[string]*memDoc)
		tx.writes[collection] = writes
	}
	writes[id] = nil
	tx.log.add(collection, id, OpDelete)
	return nil
}

func (tx *memTx) NextSequence(ctx context.Context, name string) (int64, error) {
	value, ok := tx.counters[name]
	if !ok {
		tx.store.mu.RLock()
		value = tx.store.counters[name]
		tx.store.mu.RUnlock()
	}
	value++
	tx.counters[name] = value
	return value, nil
}

func sortedDocs(base map[string]memDoc, overlay map[string]*memDoc) []Document {
	type entry struct {
		id  string
		doc memDoc
	}
	entries := make([]entry, 0, len(base)+len(overlay))
	for id, doc := range base {
		if _, shadowed := overlay[id]; shadowed {
			continue
		}
		entries = append(entries, entry{id: id, doc: doc})
	}
	for id, doc := range overlay {
		if doc == nil {
			continue
		}
		entries = append(entries, entry{id: id, doc: *doc})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].doc.seq < entries[j].doc.seq })
	out := make([]Document, 0, len(entries))
	for _, e := range entries {
		out = append(out, Document{ID: e.id, Data: clone(e.doc.data)})
	}
	return out
}

func clone(data []byte) json.RawMessage {
	if data == nil {
		return nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out
}
