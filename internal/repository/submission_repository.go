package repository

import (
	"context"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/docstore"
)

// SubmissionRepository reads and writes assignment submissions.
type SubmissionRepository struct {
	store docstore.Store
}

// NewSubmissionRepository builds a submission repository.
func NewSubmissionRepository(store docstore.Store) *SubmissionRepository {
	return &SubmissionRepository{store: store}
}

// FindByID loads one submission.
func (r *SubmissionRepository) FindByID(ctx context.Context, tenantID, id string) (*models.AssignmentSubmission, error) {
	doc, err := r.store.Get(ctx, tenantID, ColSubmissions, id)
	if err != nil {
		return nil, err
	}
	return decode[models.AssignmentSubmission](doc)
}

// FindByAssignmentAndStudent returns the student's submission for the
// assignment, or docstore.ErrNotFound.
func (r *SubmissionRepository) FindByAssignmentAndStudent(ctx context.Context, tenantID, assignmentID, studentID string) (*models.AssignmentSubmission, error) {
	docs, err := r.store.Query(ctx, tenantID, docstore.Query{
		Collection: ColSubmissions,
		Filters: []docstore.Filter{
			{Field: "assignmentId", Op: docstore.OpEqual, Value: assignmentID},
			{Field: "studentId", Op: docstore.OpEqual, Value: studentID},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, docstore.ErrNotFound
	}
	return decode[models.AssignmentSubmission](&docs[0])
}

// ListByAssignment returns every submission for an assignment.
func (r *SubmissionRepository) ListByAssignment(ctx context.Context, tenantID, assignmentID string) ([]models.AssignmentSubmission, error) {
	docs, err := r.store.Query(ctx, tenantID, docstore.Query{
		Collection: ColSubmissions,
		Filters:    []docstore.Filter{{Field: "assignmentId", Op: docstore.OpEqual, Value: assignmentID}},
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[models.AssignmentSubmission](docs)
}

// ListByStudent returns every submission by a student.
func (r *SubmissionRepository) ListByStudent(ctx context.Context, tenantID, studentID string) ([]models.AssignmentSubmission, error) {
	docs, err := r.store.Query(ctx, tenantID, docstore.Query{
		Collection: ColSubmissions,
		Filters:    []docstore.Filter{{Field: "studentId", Op: docstore.OpEqual, Value: studentID}},
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[models.AssignmentSubmission](docs)
}

// Save writes the submission document.
func (r *SubmissionRepository) Save(ctx context.Context, tenantID string, submission *models.AssignmentSubmission) error {
	data, err := encode(submission)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, tenantID, ColSubmissions, submission.ID, data)
}
