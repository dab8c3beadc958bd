package repository

import (
	"context"
	"sort"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/docstore"
)

// NotificationRepository reads and writes inbox notifications.
type NotificationRepository struct {
	store docstore.Store
}

// NewNotificationRepository builds a notification repository.
func NewNotificationRepository(store docstore.Store) *NotificationRepository {
	return &NotificationRepository{store: store}
}

// ListByUser returns the user's inbox, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, tenantID, userID string) ([]models.Notification, error) {
	docs, err := r.store.Query(ctx, tenantID, docstore.Query{
		Collection: ColNotifications,
		Filters:    []docstore.Filter{{Field: "userId", Op: docstore.OpEqual, Value: userID}},
	})
	if err != nil {
		return nil, err
	}
	items, err := decodeAll[models.Notification](docs)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

// FindByID loads one notification.
func (r *NotificationRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Notification, error) {
	doc, err := r.store.Get(ctx, tenantID, ColNotifications, id)
	if err != nil {
		return nil, err
	}
	return decode[models.Notification](doc)
}

// Save writes one notification.
func (r *NotificationRepository) Save(ctx context.Context, tenantID string, n *models.Notification) error {
	data, err := encode(n)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, tenantID, ColNotifications, n.ID, data)
}

// SaveBatch writes many notifications in one atomic batch.
func (r *NotificationRepository) SaveBatch(ctx context.Context, tenantID string, items []models.Notification) error {
	if len(items) == 0 {
		return nil
	}
	ops := make([]docstore.WriteOp, 0, len(items))
	for i := range items {
		op, err := PutOp(ColNotifications, items[i].ID, &items[i])
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}
	return r.store.Apply(ctx, tenantID, ops)
}
