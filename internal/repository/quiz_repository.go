package repository

import (
	"context"
	"sort"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/docstore"
)

// QuizRepository reads and writes quizzes and quiz results.
type QuizRepository struct {
	store docstore.Store
}

// NewQuizRepository builds a quiz repository.
func NewQuizRepository(store docstore.Store) *QuizRepository {
	return &QuizRepository{store: store}
}

// FindByID loads one quiz.
func (r *QuizRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Quiz, error) {
	doc, err := r.store.Get(ctx, tenantID, ColQuizzes, id)
	if err != nil {
		return nil, err
	}
	return decode[models.Quiz](doc)
}

// ListByTeacher returns a teacher's quizzes.
func (r *QuizRepository) ListByTeacher(ctx context.Context, tenantID, teacherID string) ([]models.Quiz, error) {
	docs, err := r.store.Query(ctx, tenantID, docstore.Query{
		Collection: ColQuizzes,
		Filters:    []docstore.Filter{{Field: "teacherId", Op: docstore.OpEqual, Value: teacherID}},
	})
	if err != nil {
		return nil, err
	}
	quizzes, err := decodeAll[models.Quiz](docs)
	if err != nil {
		return nil, err
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].StartTime.After(quizzes[j].StartTime) })
	return quizzes, nil
}

// ListAll returns every quiz of the tenant.
func (r *QuizRepository) ListAll(ctx context.Context, tenantID string) ([]models.Quiz, error) {
	docs, err := r.store.Query(ctx, tenantID, docstore.Query{Collection: ColQuizzes})
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Quiz](docs)
}

// Save writes the quiz document.
func (r *QuizRepository) Save(ctx context.Context, tenantID string, quiz *models.Quiz) error {
	data, err := encode(quiz)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, tenantID, ColQuizzes, quiz.ID, data)
}

// Delete removes the quiz document.
func (r *QuizRepository) Delete(ctx context.Context, tenantID, id string) error {
	return r.store.Delete(ctx, tenantID, ColQuizzes, id)
}

// ListResults returns the raw result rows of a quiz. Duplicates per
// student are possible; callers reduce them.
func (r *QuizRepository) ListResults(ctx context.Context, tenantID, quizID string) ([]models.LiveQuizResult, error) {
	docs, err := r.store.Query(ctx, tenantID, docstore.Query{
		Collection: ColQuizResults,
		Filters:    []docstore.Filter{{Field: "quizId", Op: docstore.OpEqual, Value: quizID}},
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[models.LiveQuizResult](docs)
}

// SaveResult writes one result row.
func (r *QuizRepository) SaveResult(ctx context.Context, tenantID string, result *models.LiveQuizResult) error {
	data, err := encode(result)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, tenantID, ColQuizResults, result.ID, data)
}
