// Package store adapts a transactional document database for the queue and
// session repositories. The production implementation is backed by the
// embedded PocketBase record store; Memory backs the package tests.
package store

import (
	"context"
	"time"
)

const (
	CollectionQueue    = "queue"
	CollectionSessions = "sessions"
)

// Fields is a flat set of document field values.
type Fields map[string]any

// Doc is a read-only view of a stored document.
type Doc interface {
	ID() string
	GetString(field string) string
	GetInt(field string) int
	GetInt64(field string) int64
	GetBool(field string) bool
	GetTime(field string) time.Time
}

// Query is a compound-filtered, ordered lookup. Filter terms are combined
// with AND; Less terms match strictly-less-than.
type Query struct {
	Collection string
	Filter     Fields
	Less       Fields
	SortField  string
	SortDesc   bool
	Limit      int
}

// Tx is the operation set available both standalone and inside a
// transaction.
type Tx interface {
	Get(ctx context.Context, collection, id string) (Doc, error)
	Find(ctx context.Context, q Query) ([]Doc, error)
	Create(ctx context.Context, collection string, fields Fields) (Doc, error)
	Update(ctx context.Context, collection, id string, fields Fields) error
	Delete(ctx context.Context, collection, id string) error
}

// Store is the document store adapter. RunInTransaction executes fn
// atomically; any error aborts the whole batch.
type Store interface {
	Tx
	Count(ctx context.Context, collection string, filter Fields) (int, error)
	RunInTransaction(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}
