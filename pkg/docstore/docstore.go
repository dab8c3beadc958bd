package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("docstore: document not found")

// FilterOp enumerates the supported query operators.
type FilterOp string

const (
	OpEqual         FilterOp = "=="
	OpArrayContains FilterOp = "array-contains"
)

// Filter constrains a query to documents whose field matches a value.
type Filter struct {
	Field string
	Op    FilterOp
	Value string
}

// Query selects documents from one collection of a tenant.
type Query struct {
	Collection string
	Filters    []Filter
}

// Document is a raw stored document. Data is the JSON body.
type Document struct {
	ID        string
	Data      json.RawMessage
	UpdatedAt time.Time
}

// WriteKind distinguishes batch operations.
type WriteKind string

const (
	WritePut    WriteKind = "put"
	WriteDelete WriteKind = "delete"
)

// WriteOp is a single operation inside an atomic batch.
type WriteOp struct {
	Kind       WriteKind
	Collection string
	ID         string
	Data       json.RawMessage
}

// SnapshotFunc receives the full result set of a subscribed query
// every time a matching collection changes.
type SnapshotFunc func(docs []Document)

// Unsubscribe releases a subscription. Callers must invoke it before
// establishing a replacement listener for the same scope.
type Unsubscribe func()

// Store is the document store adapter. Documents are addressed as
// schools/{tenantID}/{collection}/{docID}.
type Store interface {
	Get(ctx context.Context, tenantID, collection, id string) (*Document, error)
	Query(ctx context.Context, tenantID string, q Query) ([]Document, error)
	Put(ctx context.Context, tenantID, collection, id string, data json.RawMessage) error
	Delete(ctx context.Context, tenantID, collection, id string) error
	// Apply commits all operations atomically: either every op is
	// applied or none of them is.
	Apply(ctx context.Context, tenantID string, ops []WriteOp) error
	Subscribe(ctx context.Context, tenantID string, q Query, fn SnapshotFunc) (Unsubscribe, error)
}

// Matches reports whether a decoded document body satisfies every filter.
// Shared by the in-memory backend and subscription re-query paths.
func Matches(body map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		if !matchesOne(body, f) {
			return false
		}
	}
	return true
}

func matchesOne(body map[string]interface{}, f Filter) bool {
	raw, ok := body[f.Field]
	if !ok {
		return false
	}
	switch f.Op {
	case OpEqual:
		s, ok := raw.(string)
		return ok && s == f.Value
	case OpArrayContains:
		items, ok := raw.([]interface{})
		if !ok {
			return false
		}
		for _, item := range items {
			if s, ok := item.(string); ok && s == f.Value {
				return true
			}
		}
		return false
	default:
		return false
	}
}
