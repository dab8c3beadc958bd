package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store used by unit tests and development
// mode. Subscribers receive full query snapshots synchronously after
// every committed write.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]map[string]Document // tenant -> collection -> id

	subMu  sync.Mutex
	subs   map[int]*memorySub
	nextID int
}

type memorySub struct {
	tenantID string
	query    Query
	fn       SnapshotFunc
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]map[string]map[string]Document),
		subs: make(map[int]*memorySub),
	}
}

func (m *Memory) Get(ctx context.Context, tenantID, collection, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.data[tenantID][collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := doc
	clone.Data = append(json.RawMessage(nil), doc.Data...)
	return &clone, nil
}

func (m *Memory) Query(ctx context.Context, tenantID string, q Query) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queryLocked(tenantID, q), nil
}

func (m *Memory) queryLocked(tenantID string, q Query) []Document {
	var result []Document
	for id, doc := range m.data[tenantID][q.Collection] {
		var body map[string]interface{}
		if err := json.Unmarshal(doc.Data, &body); err != nil {
			continue
		}
		if !Matches(body, q.Filters) {
			continue
		}
		clone := doc
		clone.ID = id
		clone.Data = append(json.RawMessage(nil), doc.Data...)
		result = append(result, clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *Memory) Put(ctx context.Context, tenantID, collection, id string, data json.RawMessage) error {
	m.mu.Lock()
	m.putLocked(tenantID, collection, id, data)
	m.mu.Unlock()

	m.notify(tenantID, collection)
	return nil
}

func (m *Memory) putLocked(tenantID, collection, id string, data json.RawMessage) {
	if m.data[tenantID] == nil {
		m.data[tenantID] = make(map[string]map[string]Document)
	}
	if m.data[tenantID][collection] == nil {
		m.data[tenantID][collection] = make(map[string]Document)
	}
	m.data[tenantID][collection][id] = Document{
		ID:        id,
		Data:      append(json.RawMessage(nil), data...),
		UpdatedAt: time.Now().UTC(),
	}
}

func (m *Memory) Delete(ctx context.Context, tenantID, collection, id string) error {
	m.mu.Lock()
	delete(m.data[tenantID][collection], id)
	m.mu.Unlock()

	m.notify(tenantID, collection)
	return nil
}

// Apply commits every op under one lock acquisition so readers never
// observe a partially applied batch.
func (m *Memory) Apply(ctx context.Context, tenantID string, ops []WriteOp) error {
	m.mu.Lock()
	touched := make(map[string]struct{})
	for _, op := range ops {
		switch op.Kind {
		case WriteDelete:
			delete(m.data[tenantID][op.Collection], op.ID)
		default:
			m.putLocked(tenantID, op.Collection, op.ID, op.Data)
		}
		touched[op.Collection] = struct{}{}
	}
	m.mu.Unlock()

	for collection := range touched {
		m.notify(tenantID, collection)
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, tenantID string, q Query, fn SnapshotFunc) (Unsubscribe, error) {
	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = &memorySub{tenantID: tenantID, query: q, fn: fn}
	m.subMu.Unlock()

	// Initial snapshot, mirroring the behaviour of a real-time store.
	m.mu.RLock()
	docs := m.queryLocked(tenantID, q)
	m.mu.RUnlock()
	fn(docs)

	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}, nil
}

func (m *Memory) notify(tenantID, collection string) {
	m.subMu.Lock()
	var matched []*memorySub
	for _, sub := range m.subs {
		if sub.tenantID == tenantID && sub.query.Collection == collection {
			matched = append(matched, sub)
		}
	}
	m.subMu.Unlock()

	for _, sub := range matched {
		m.mu.RLock()
		docs := m.queryLocked(tenantID, sub.query)
		m.mu.RUnlock()
		sub.fn(docs)
	}
}
