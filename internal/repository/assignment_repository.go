package repository

import (
	"context"
	"sort"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/docstore"
)

// AssignmentRepository reads and writes assignment documents.
type AssignmentRepository struct {
	store docstore.Store
}

// NewAssignmentRepository builds an assignment repository.
func NewAssignmentRepository(store docstore.Store) *AssignmentRepository {
	return &AssignmentRepository{store: store}
}

// List returns assignments matching the filter with the total count.
func (r *AssignmentRepository) List(ctx context.Context, tenantID string, filter models.AssignmentFilter) ([]models.Assignment, int, error) {
	q := docstore.Query{Collection: ColAssignments}
	if filter.TeacherID != "" {
		q.Filters = append(q.Filters, docstore.Filter{Field: "teacherId", Op: docstore.OpEqual, Value: filter.TeacherID})
	}
	if filter.SubjectID != "" {
		q.Filters = append(q.Filters, docstore.Filter{Field: "subjectId", Op: docstore.OpEqual, Value: filter.SubjectID})
	}
	if filter.ClassID != "" {
		q.Filters = append(q.Filters, docstore.Filter{Field: "classIds", Op: docstore.OpArrayContains, Value: filter.ClassID})
	}

	docs, err := r.store.Query(ctx, tenantID, q)
	if err != nil {
		return nil, 0, err
	}
	assignments, err := decodeAll[models.Assignment](docs)
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(assignments, func(i, j int) bool {
		return assignments[i].DueDate.Before(assignments[j].DueDate)
	})
	page, total := paginate(assignments, filter.Page, filter.PageSize)
	return page, total, nil
}

// ListForStudent returns assignments targeting the student directly or
// via their homeroom class. Two queries because the store has no OR.
func (r *AssignmentRepository) ListForStudent(ctx context.Context, tenantID, studentID, homeroomClassID string) ([]models.Assignment, error) {
	direct, err := r.store.Query(ctx, tenantID, docstore.Query{
		Collection: ColAssignments,
		Filters:    []docstore.Filter{{Field: "studentIds", Op: docstore.OpArrayContains, Value: studentID}},
	})
	if err != nil {
		return nil, err
	}

	var byClass []docstore.Document
	if homeroomClassID != "" {
		byClass, err = r.store.Query(ctx, tenantID, docstore.Query{
			Collection: ColAssignments,
			Filters:    []docstore.Filter{{Field: "classIds", Op: docstore.OpArrayContains, Value: homeroomClassID}},
		})
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[string]struct{}, len(direct)+len(byClass))
	merged := make([]docstore.Document, 0, len(direct)+len(byClass))
	for _, doc := range append(direct, byClass...) {
		if _, ok := seen[doc.ID]; ok {
			continue
		}
		seen[doc.ID] = struct{}{}
		merged = append(merged, doc)
	}
	return decodeAll[models.Assignment](merged)
}

// ListAll returns every assignment of the tenant.
func (r *AssignmentRepository) ListAll(ctx context.Context, tenantID string) ([]models.Assignment, error) {
	docs, err := r.store.Query(ctx, tenantID, docstore.Query{Collection: ColAssignments})
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Assignment](docs)
}

// FindByID loads one assignment.
func (r *AssignmentRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Assignment, error) {
	doc, err := r.store.Get(ctx, tenantID, ColAssignments, id)
	if err != nil {
		return nil, err
	}
	return decode[models.Assignment](doc)
}

// Save writes the assignment document.
func (r *AssignmentRepository) Save(ctx context.Context, tenantID string, assignment *models.Assignment) error {
	data, err := encode(assignment)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, tenantID, ColAssignments, assignment.ID, data)
}

// Delete removes the assignment document. Submissions are left in
// place on purpose: history stays addressable by assignmentId.
func (r *AssignmentRepository) Delete(ctx context.Context, tenantID, id string) error {
	return r.store.Delete(ctx, tenantID, ColAssignments, id)
}
