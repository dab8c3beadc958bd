// Package sync implements the reference-sync engine: whenever a write
// changes a relationship field, it computes and applies the inverse-side
// updates that keep denormalized lists consistent. Every relationship
// has one implementation here so all call sites agree on the rules.
package sync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/internal/repository"
	"github.com/edunik/edunik-api/pkg/docstore"
)

// Recorder counts sync activity. The metrics service implements it.
type Recorder interface {
	SyncStepApplied(relationship string)
	SyncStepFailed(relationship string)
	CascadeCommitted(role string, ops int)
}

type nopRecorder struct{}

func (nopRecorder) SyncStepApplied(string)       {}
func (nopRecorder) SyncStepFailed(string)        {}
func (nopRecorder) CascadeCommitted(string, int) {}

// Engine applies inverse-side updates for relationship changes.
type Engine struct {
	store    docstore.Store
	users    *repository.UserRepository
	classes  *repository.ClassRepository
	subjects *repository.SubjectRepository
	audit    *repository.AuditRepository
	recorder Recorder
	logger   *zap.Logger
}

// NewEngine builds a sync engine.
func NewEngine(
	store docstore.Store,
	users *repository.UserRepository,
	classes *repository.ClassRepository,
	subjects *repository.SubjectRepository,
	audit *repository.AuditRepository,
	recorder Recorder,
	logger *zap.Logger,
) *Engine {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    store,
		users:    users,
		classes:  classes,
		subjects: subjects,
		audit:    audit,
		recorder: recorder,
		logger:   logger,
	}
}

// diff returns the ids present only in next (added) and only in prev
// (removed).
func diff(prev, next []string) (added, removed []string) {
	prevSet := make(map[string]struct{}, len(prev))
	for _, id := range prev {
		prevSet[id] = struct{}{}
	}
	nextSet := make(map[string]struct{}, len(next))
	for _, id := range next {
		nextSet[id] = struct{}{}
	}
	for _, id := range next {
		if _, ok := prevSet[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range prev {
		if _, ok := nextSet[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (e *Engine) emitAudit(ctx context.Context, tenantID, actorID, action, resource, resourceID string, details interface{}) {
	if e.audit == nil {
		return
	}
	payload, _ := json.Marshal(details)
	entry := &models.AuditLog{
		ID:         uuid.NewString(),
		UserID:     actorID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		NewValues:  payload,
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.audit.Create(ctx, tenantID, entry); err != nil {
		e.logger.Warn("failed to record audit entry", zap.String("action", action), zap.Error(err))
	}
}
