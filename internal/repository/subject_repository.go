package repository

import (
	"context"
	"sort"
	"strings"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/docstore"
)

// SubjectRepository reads and writes subject documents.
type SubjectRepository struct {
	store docstore.Store
}

// NewSubjectRepository builds a subject repository.
func NewSubjectRepository(store docstore.Store) *SubjectRepository {
	return &SubjectRepository{store: store}
}

// List returns subjects matching the filter with the total count.
func (r *SubjectRepository) List(ctx context.Context, tenantID string, filter models.SubjectFilter) ([]models.Subject, int, error) {
	q := docstore.Query{Collection: ColSubjects}
	if filter.TeacherID != "" {
		q.Filters = append(q.Filters, docstore.Filter{Field: "teacherIds", Op: docstore.OpArrayContains, Value: filter.TeacherID})
	}

	docs, err := r.store.Query(ctx, tenantID, q)
	if err != nil {
		return nil, 0, err
	}
	subjects, err := decodeAll[models.Subject](docs)
	if err != nil {
		return nil, 0, err
	}

	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		filtered := subjects[:0]
		for _, s := range subjects {
			if strings.Contains(strings.ToLower(s.Name), needle) {
				filtered = append(filtered, s)
			}
		}
		subjects = filtered
	}

	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Name < subjects[j].Name })
	page, total := paginate(subjects, filter.Page, filter.PageSize)
	return page, total, nil
}

// FindByID loads one subject.
func (r *SubjectRepository) FindByID(ctx context.Context, tenantID, id string) (*models.Subject, error) {
	doc, err := r.store.Get(ctx, tenantID, ColSubjects, id)
	if err != nil {
		return nil, err
	}
	return decode[models.Subject](doc)
}

// ExistsByName reports whether another subject already uses the name.
// This is an advisory pre-write check, not a store constraint: two
// concurrent creates can both pass it.
func (r *SubjectRepository) ExistsByName(ctx context.Context, tenantID, name, excludeID string) (bool, error) {
	docs, err := r.store.Query(ctx, tenantID, docstore.Query{
		Collection: ColSubjects,
		Filters:    []docstore.Filter{{Field: "name", Op: docstore.OpEqual, Value: name}},
	})
	if err != nil {
		return false, err
	}
	for i := range docs {
		if docs[i].ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

// Save writes the subject document.
func (r *SubjectRepository) Save(ctx context.Context, tenantID string, subject *models.Subject) error {
	data, err := encode(subject)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, tenantID, ColSubjects, subject.ID, data)
}

// Delete removes the subject document.
func (r *SubjectRepository) Delete(ctx context.Context, tenantID, id string) error {
	return r.store.Delete(ctx, tenantID, ColSubjects, id)
}
