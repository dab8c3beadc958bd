package repository

import (
	"context"
	"sort"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/docstore"
)

// GradeRepository reads and writes grades and student reviews.
type GradeRepository struct {
	store docstore.Store
}

// NewGradeRepository builds a grade repository.
func NewGradeRepository(store docstore.Store) *GradeRepository {
	return &GradeRepository{store: store}
}

// List returns grades matching the filter, newest first.
func (r *GradeRepository) List(ctx context.Context, tenantID string, filter models.GradeFilter) ([]models.Grade, error) {
	q := docstore.Query{Collection: ColGrades}
	if filter.StudentID != "" {
		q.Filters = append(q.Filters, docstore.Filter{Field: "studentId", Op: docstore.OpEqual, Value: filter.StudentID})
	}
	if filter.SubjectID != "" {
		q.Filters = append(q.Filters, docstore.Filter{Field: "subjectId", Op: docstore.OpEqual, Value: filter.SubjectID})
	}
	if filter.TeacherID != "" {
		q.Filters = append(q.Filters, docstore.Filter{Field: "teacherId", Op: docstore.OpEqual, Value: filter.TeacherID})
	}

	docs, err := r.store.Query(ctx, tenantID, q)
	if err != nil {
		return nil, err
	}
	grades, err := decodeAll[models.Grade](docs)
	if err != nil {
		return nil, err
	}
	sort.Slice(grades, func(i, j int) bool { return grades[i].Date.After(grades[j].Date) })
	return grades, nil
}

// FindByID loads one grade.
func (r *GradeRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Grade, error) {
	doc, err := r.store.Get(ctx, tenantID, ColGrades, id)
	if err != nil {
		return nil, err
	}
	return decode[models.Grade](doc)
}

// Save writes the grade document.
func (r *GradeRepository) Save(ctx context.Context, tenantID string, grade *models.Grade) error {
	data, err := encode(grade)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, tenantID, ColGrades, grade.ID, data)
}

// Delete removes the grade document.
func (r *GradeRepository) Delete(ctx context.Context, tenantID, id string) error {
	return r.store.Delete(ctx, tenantID, ColGrades, id)
}

// ListReviewsByStudent returns the student's feedback notes, newest first.
func (r *GradeRepository) ListReviewsByStudent(ctx context.Context, tenantID, studentID string) ([]models.StudentReview, error) {
	docs, err := r.store.Query(ctx, tenantID, docstore.Query{
		Collection: ColReviews,
		Filters:    []docstore.Filter{{Field: "studentId", Op: docstore.OpEqual, Value: studentID}},
	})
	if err != nil {
		return nil, err
	}
	reviews, err := decodeAll[models.StudentReview](docs)
	if err != nil {
		return nil, err
	}
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].Date.After(reviews[j].Date) })
	return reviews, nil
}

// SaveReview writes the review document.
func (r *GradeRepository) SaveReview(ctx context.Context, tenantID string, review *models.StudentReview) error {
	data, err := encode(review)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, tenantID, ColReviews, review.ID, data)
}
