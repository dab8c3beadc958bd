package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/docstore"
	appErrors "github.com/edunik/edunik-api/pkg/errors"
)

type notificationRepository interface {
	ListByUser(ctx context.Context, tenantID, userID string) ([]models.Notification, error)
	FindByID(ctx context.Context, tenantID, id string) (*models.Notification, error)
	Save(ctx context.Context, tenantID string, n *models.Notification) error
}

// NotificationService manages user inboxes. Other services deliver
// through its Notify method.
type NotificationService struct {
	repo   notificationRepository
	logger *zap.Logger
}

// NewNotificationService creates a new notification service.
func NewNotificationService(repo notificationRepository, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, logger: logger}
}

// Notify creates one inbox entry. Missing id and timestamp are filled.
func (s *NotificationService) Notify(ctx context.Context, tenantID string, n models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := s.repo.Save(ctx, tenantID, &n); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save notification")
	}
	return nil
}

// Inbox returns the user's notifications, newest first.
func (s *NotificationService) Inbox(ctx context.Context, tenantID, userID string) ([]models.Notification, error) {
	items, err := s.repo.ListByUser(ctx, tenantID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load inbox")
	}
	return items, nil
}

// MarkRead flags a notification as read. Users can only touch their own
// inbox entries.
func (s *NotificationService) MarkRead(ctx context.Context, tenantID, userID, id string) error {
	n, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	if n.UserID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "notification belongs to another user")
	}
	if n.Read {
		return nil
	}
	n.Read = true
	if err := s.repo.Save(ctx, tenantID, n); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	return nil
}
