package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"github.com/tanushsahu-fisrt/ventApp/models"
)

// PocketBase implements Store on top of the embedded PocketBase record
// store. Transactions map to RunInTransaction on the app, which serializes
// conflicting writers at the database level.
type PocketBase struct {
	app core.App
}

func NewPocketBase(app core.App) *PocketBase {
	return &PocketBase{app: app}
}

type pbDoc struct {
	record *core.Record
}

func (d *pbDoc) ID() string                    { return d.record.Id }
func (d *pbDoc) GetString(field string) string { return d.record.GetString(field) }
func (d *pbDoc) GetInt(field string) int       { return d.record.GetInt(field) }
func (d *pbDoc) GetInt64(field string) int64   { return int64(d.record.GetFloat(field)) }
func (d *pbDoc) GetBool(field string) bool     { return d.record.GetBool(field) }
func (d *pbDoc) GetTime(field string) time.Time {
	return d.record.GetDateTime(field).Time()
}

func (s *PocketBase) Get(_ context.Context, collection, id string) (Doc, error) {
	record, err := s.app.FindRecordById(collection, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &pbDoc{record: record}, nil
}

func (s *PocketBase) Find(_ context.Context, q Query) ([]Doc, error) {
	filter, params := buildFilter(q)

	sortExpr := ""
	if q.SortField != "" {
		if q.SortDesc {
			sortExpr = "-" + q.SortField
		} else {
			sortExpr = "+" + q.SortField
		}
	}

	records, err := s.app.FindRecordsByFilter(q.Collection, filter, sortExpr, q.Limit, 0, params)
	if err != nil {
		return nil, err
	}

	docs := make([]Doc, len(records))
	for i, record := range records {
		docs[i] = &pbDoc{record: record}
	}
	return docs, nil
}

func (s *PocketBase) Create(_ context.Context, collection string, fields Fields) (Doc, error) {
	coll, err := s.app.FindCollectionByNameOrId(collection)
	if err != nil {
		return nil, err
	}

	record := core.NewRecord(coll)
	for k, v := range fields {
		record.Set(k, v)
	}

	if err := s.app.Save(record); err != nil {
		return nil, err
	}
	return &pbDoc{record: record}, nil
}

func (s *PocketBase) Update(_ context.Context, collection, id string, fields Fields) error {
	record, err := s.app.FindRecordById(collection, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		return err
	}

	for k, v := range fields {
		record.Set(k, v)
	}
	return s.app.Save(record)
}

func (s *PocketBase) Delete(_ context.Context, collection, id string) error {
	record, err := s.app.FindRecordById(collection, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		return err
	}
	return s.app.Delete(record)
}

func (s *PocketBase) Count(_ context.Context, collection string, filter Fields) (int, error) {
	total, err := s.app.CountRecords(collection, dbx.HashExp(filter))
	if err != nil {
		return 0, err
	}
	return int(total), nil
}

func (s *PocketBase) RunInTransaction(ctx context.Context, fn func(tx Tx) error) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		return fn(&PocketBase{app: txApp})
	})
}

// Ping issues a single-row query to verify the store is reachable.
func (s *PocketBase) Ping(_ context.Context) error {
	if _, err := s.app.FindRecordsByFilter(CollectionQueue, "id != ''", "", 1, 0); err != nil {
		return fmt.Errorf("%w: %v", models.ErrConnectivity, err)
	}
	return nil
}

// buildFilter renders the query's filter terms as a PocketBase filter
// expression with bound params. Terms are sorted so the expression is
// deterministic.
func buildFilter(q Query) (string, dbx.Params) {
	params := dbx.Params{}
	exprs := make([]string, 0, len(q.Filter)+len(q.Less))

	for i, field := range sortedKeys(q.Filter) {
		p := fmt.Sprintf("f%d", i)
		exprs = append(exprs, fmt.Sprintf("%s = {:%s}", field, p))
		params[p] = q.Filter[field]
	}
	for i, field := range sortedKeys(q.Less) {
		p := fmt.Sprintf("l%d", i)
		exprs = append(exprs, fmt.Sprintf("%s < {:%s}", field, p))
		params[p] = q.Less[field]
	}

	return strings.Join(exprs, " && "), params
}

func sortedKeys(fields Fields) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
