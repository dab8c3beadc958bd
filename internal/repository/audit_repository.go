package repository

import (
	"context"
	"sort"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/docstore"
)

// AuditRepository persists audit log entries.
type AuditRepository struct {
	store docstore.Store
}

// NewAuditRepository builds an audit repository.
func NewAuditRepository(store docstore.Store) *AuditRepository {
	return &AuditRepository{store: store}
}

// Create writes one audit entry.
func (r *AuditRepository) Create(ctx context.Context, tenantID string, log *models.AuditLog) error {
	data, err := encode(log)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, tenantID, ColAuditLogs, log.ID, data)
}

// ListByResource returns entries for one resource, newest first.
func (r *AuditRepository) ListByResource(ctx context.Context, tenantID, resource string) ([]models.AuditLog, error) {
	docs, err := r.store.Query(ctx, tenantID, docstore.Query{
		Collection: ColAuditLogs,
		Filters:    []docstore.Filter{{Field: "resource", Op: docstore.OpEqual, Value: resource}},
	})
	if err != nil {
		return nil, err
	}
	logs, err := decodeAll[models.AuditLog](docs)
	if err != nil {
		return nil, err
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].CreatedAt.After(logs[j].CreatedAt) })
	return logs, nil
}
