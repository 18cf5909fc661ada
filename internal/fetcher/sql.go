package fetcher

import (
	"context"
	"encoding/json"
	"fmt"

	"cedarguard/internal/db"
	"cedarguard/internal/entity"
)

// SQLFetcher loads entities of a single Cedar entity type out of a
// relational system of record through db.EntityRepository.
type SQLFetcher struct {
	entityType string
	repo       db.EntityRepository
}

// NewSQLFetcher builds a fetcher for entityType backed by repo.
func NewSQLFetcher(entityType string, repo db.EntityRepository) *SQLFetcher {
	return &SQLFetcher{entityType: entityType, repo: repo}
}

// Fetch implements Fetcher.
func (f *SQLFetcher) Fetch(ctx context.Context, id string) (*entity.Entity, error) {
	row, err := f.repo.Get(ctx, f.entityType, id)
	if err != nil {
		return nil, fmt.Errorf("fetcher: sql fetch %s::%q: %w", f.entityType, id, err)
	}
	if row == nil {
		return nil, nil
	}
	return rowToEntity(f.entityType, id, row.Attributes, row.Parents)
}

// FetchBatch implements Fetcher using the repository's native batch query.
func (f *SQLFetcher) FetchBatch(ctx context.Context, ids []string) (map[string]*entity.Entity, error) {
	rows, err := f.repo.GetBatch(ctx, f.entityType, ids)
	if err != nil {
		return nil, fmt.Errorf("fetcher: sql fetch batch %s: %w", f.entityType, err)
	}

	out := make(map[string]*entity.Entity, len(rows))
	for _, row := range rows {
		e, err := rowToEntity(f.entityType, row.EntityID, row.Attributes, row.Parents)
		if err != nil {
			return nil, err
		}
		out[row.EntityID] = e
	}
	return out, nil
}

func rowToEntity(entityType, id, attrsJSON, parentsJSON string) (*entity.Entity, error) {
	attrs, err := decodeAttrs(attrsJSON)
	if err != nil {
		return nil, fmt.Errorf("fetcher: decoding attributes for %s::%q: %w", entityType, id, err)
	}
	parents, err := decodeParents(parentsJSON)
	if err != nil {
		return nil, fmt.Errorf("fetcher: decoding parents for %s::%q: %w", entityType, id, err)
	}

	e := entity.NewEntity(entity.NewUID(entityType, id))
	e.Attrs = attrs
	e.Parents = parents
	return e, nil
}

func decodeAttrs(raw string) (entity.Record, error) {
	if raw == "" {
		return entity.Record{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return jsonToRecord(m), nil
}

func decodeParents(raw string) ([]entity.UID, error) {
	if raw == "" {
		return nil, nil
	}
	var refs []string
	if err := json.Unmarshal([]byte(raw), &refs); err != nil {
		return nil, err
	}
	out := make([]entity.UID, 0, len(refs))
	for _, ref := range refs {
		uid, err := entity.ParseUID(ref)
		if err != nil {
			return nil, err
		}
		out = append(out, uid)
	}
	return out, nil
}

// jsonToRecord converts a decoded JSON object into entity.Record, mapping
// JSON's number/string/bool/array/object primitives onto Cedar value
// types. Numbers are always treated as Long; fetchers needing decimals or
// entity references should set those attributes directly on entity.Entity
// rather than relying on this generic JSON path.
func jsonToRecord(m map[string]any) entity.Record {
	rec := make(entity.Record, len(m))
	for k, v := range m {
		rec[k] = jsonToValue(v)
	}
	return rec
}

func jsonToValue(v any) entity.Value {
	switch t := v.(type) {
	case string:
		return entity.String(t)
	case float64:
		return entity.Long(int64(t))
	case bool:
		return entity.Bool(t)
	case []any:
		items := make(entity.Set, len(t))
		for i, item := range t {
			items[i] = jsonToValue(item)
		}
		return items
	case map[string]any:
		return jsonToRecord(t)
	default:
		return entity.String(fmt.Sprintf("%v", t))
	}
}
