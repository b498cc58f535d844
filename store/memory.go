package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/tanushsahu-fisrt/ventApp/models"
)

// Memory is an in-memory Store used by the package tests. Transactions are
// serialized under a single mutex, giving the same exactly-one-committer
// behavior the production store provides at the database level.
type Memory struct {
	mu          sync.Mutex
	collections map[string]map[string]Fields
}

func NewMemory() *Memory {
	return &Memory{
		collections: map[string]map[string]Fields{
			CollectionQueue:    {},
			CollectionSessions: {},
		},
	}
}

type memDoc struct {
	id     string
	fields Fields
}

func (d *memDoc) ID() string { return d.id }

func (d *memDoc) GetString(field string) string {
	v, _ := d.fields[field].(string)
	return v
}

func (d *memDoc) GetInt(field string) int {
	switch v := d.fields[field].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func (d *memDoc) GetInt64(field string) int64 {
	switch v := d.fields[field].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func (d *memDoc) GetBool(field string) bool {
	v, _ := d.fields[field].(bool)
	return v
}

func (d *memDoc) GetTime(field string) time.Time {
	v, _ := d.fields[field].(time.Time)
	return v
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).Get(ctx, collection, id)
}

func (m *Memory) Find(ctx context.Context, q Query) ([]Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).Find(ctx, q)
}

func (m *Memory) Create(ctx context.Context, collection string, fields Fields) (Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).Create(ctx, collection, fields)
}

func (m *Memory) Update(ctx context.Context, collection, id string, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).Update(ctx, collection, id, fields)
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m: m}).Delete(ctx, collection, id)
}

func (m *Memory) Count(_ context.Context, collection string, filter Fields) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, fields := range m.collections[collection] {
		if matches(fields, filter, nil) {
			count++
		}
	}
	return count, nil
}

// RunInTransaction holds the store lock for the whole callback and rolls
// every collection back if fn returns an error.
func (m *Memory) RunInTransaction(_ context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshotLocked()
	if err := fn(&memTx{m: m}); err != nil {
		m.collections = snapshot
		return err
	}
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) snapshotLocked() map[string]map[string]Fields {
	snapshot := make(map[string]map[string]Fields, len(m.collections))
	for name, docs := range m.collections {
		copied := make(map[string]Fields, len(docs))
		for id, fields := range docs {
			fieldsCopy := make(Fields, len(fields))
			for k, v := range fields {
				fieldsCopy[k] = v
			}
			copied[id] = fieldsCopy
		}
		snapshot[name] = copied
	}
	return snapshot
}

// memTx operates on the live maps; the caller must hold the store lock.
type memTx struct {
	m *Memory
}

func (t *memTx) Get(_ context.Context, collection, id string) (Doc, error) {
	fields, ok := t.m.collections[collection][id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &memDoc{id: id, fields: fields}, nil
}

func (t *memTx) Find(_ context.Context, q Query) ([]Doc, error) {
	var docs []*memDoc
	for id, fields := range t.m.collections[q.Collection] {
		if matches(fields, q.Filter, q.Less) {
			docs = append(docs, &memDoc{id: id, fields: fields})
		}
	}

	if q.SortField != "" {
		sort.Slice(docs, func(i, j int) bool {
			less := compareField(docs[i].fields[q.SortField], docs[j].fields[q.SortField])
			if q.SortDesc {
				return !less
			}
			return less
		})
	}

	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}

	out := make([]Doc, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return out, nil
}

func (t *memTx) Create(_ context.Context, collection string, fields Fields) (Doc, error) {
	if t.m.collections[collection] == nil {
		t.m.collections[collection] = map[string]Fields{}
	}

	id := newID()
	stored := make(Fields, len(fields)+1)
	for k, v := range fields {
		stored[k] = v
	}
	if _, ok := stored["created"]; !ok {
		stored["created"] = time.Now()
	}

	t.m.collections[collection][id] = stored
	return &memDoc{id: id, fields: stored}, nil
}

func (t *memTx) Update(_ context.Context, collection, id string, fields Fields) error {
	stored, ok := t.m.collections[collection][id]
	if !ok {
		return models.ErrNotFound
	}
	for k, v := range fields {
		stored[k] = v
	}
	return nil
}

func (t *memTx) Delete(_ context.Context, collection, id string) error {
	if _, ok := t.m.collections[collection][id]; !ok {
		return models.ErrNotFound
	}
	delete(t.m.collections[collection], id)
	return nil
}

func matches(fields, filter, less Fields) bool {
	for k, want := range filter {
		if !equalField(fields[k], want) {
			return false
		}
	}
	for k, bound := range less {
		if !compareField(fields[k], bound) {
			return false
		}
	}
	return true
}

func equalField(got, want any) bool {
	gi, gok := asInt64(got)
	wi, wok := asInt64(want)
	if gok && wok {
		return gi == wi
	}
	return got == want
}

// compareField reports a < b for the field types the queue uses (numeric
// ordering keys and timestamps).
func compareField(a, b any) bool {
	ai, aok := asInt64(a)
	bi, bok := asInt64(b)
	if aok && bok {
		return ai < bi
	}
	at, aok2 := a.(time.Time)
	bt, bok2 := b.(time.Time)
	if aok2 && bok2 {
		return at.Before(bt)
	}
	as, _ := a.(string)
	bs, _ := b.(string)
	return as < bs
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func newID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
