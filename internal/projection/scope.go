// Package projection maintains role-scoped derived views over store
// subscriptions: every snapshot replaces local state wholesale and the
// UI-facing shape (active/past buckets, deduplicated results, the
// flagged-cheaters list) is re-derived from scratch.
package projection

import (
	"context"
	"fmt"
	"sync"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/internal/repository"
	"github.com/edunik/edunik-api/pkg/docstore"
)

// Viewer identifies who is looking at a projection. A parent viewing a
// child's data is resolved to a student viewer first (ForChild).
type Viewer struct {
	UserID          string
	Role            models.UserRole
	HomeroomClassID string
}

// ForChild returns the student viewer a parent's projection resolves to.
func (v Viewer) ForChild(child *models.User) Viewer {
	return Viewer{
		UserID:          child.ID,
		Role:            models.RoleStudent,
		HomeroomClassID: child.HomeroomClassID,
	}
}

// AssignmentQueries returns the store queries that select the viewer's
// assignments. The switch is exhaustive over the role enum so adding a
// role fails here instead of silently showing an empty board.
//
// A student gets two queries (direct targeting and class targeting)
// because the store has no OR; callers merge the snapshots with
// MergeDocs. A parent must be resolved via ForChild before calling.
func AssignmentQueries(v Viewer) ([]docstore.Query, error) {
	switch v.Role {
	case models.RoleAdmin:
		return []docstore.Query{{Collection: repository.ColAssignments}}, nil
	case models.RoleTeacher:
		return []docstore.Query{{
			Collection: repository.ColAssignments,
			Filters:    []docstore.Filter{{Field: "teacherId", Op: docstore.OpEqual, Value: v.UserID}},
		}}, nil
	case models.RoleStudent:
		queries := []docstore.Query{{
			Collection: repository.ColAssignments,
			Filters:    []docstore.Filter{{Field: "studentIds", Op: docstore.OpArrayContains, Value: v.UserID}},
		}}
		if v.HomeroomClassID != "" {
			queries = append(queries, docstore.Query{
				Collection: repository.ColAssignments,
				Filters:    []docstore.Filter{{Field: "classIds", Op: docstore.OpArrayContains, Value: v.HomeroomClassID}},
			})
		}
		return queries, nil
	case models.RoleParent:
		return nil, fmt.Errorf("projection: parent viewer must be resolved to a child first")
	default:
		return nil, fmt.Errorf("projection: unknown role %q", v.Role)
	}
}

// MergeDocs combines the snapshots of a multi-query scope, dropping
// duplicate ids (an assignment can target a student both directly and
// through their class).
func MergeDocs(snapshots ...[]docstore.Document) []docstore.Document {
	seen := make(map[string]struct{})
	var out []docstore.Document
	for _, docs := range snapshots {
		for _, doc := range docs {
			if _, ok := seen[doc.ID]; ok {
				continue
			}
			seen[doc.ID] = struct{}{}
			out = append(out, doc)
		}
	}
	return out
}

// Listener owns at most one active store subscription for a scope.
// Re-listening releases the previous subscription first so a scope can
// never receive duplicate deliveries or leak listeners.
type Listener struct {
	mu    sync.Mutex
	unsub docstore.Unsubscribe
}

// Listen replaces the active subscription with a new one.
func (l *Listener) Listen(ctx context.Context, store docstore.Store, tenantID string, q docstore.Query, fn docstore.SnapshotFunc) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unsub != nil {
		l.unsub()
		l.unsub = nil
	}
	unsub, err := store.Subscribe(ctx, tenantID, q, fn)
	if err != nil {
		return err
	}
	l.unsub = unsub
	return nil
}

// Stop releases the subscription, if any. Safe to call repeatedly.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unsub != nil {
		l.unsub()
		l.unsub = nil
	}
}
