package repository

import (
	"context"
	"sort"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/docstore"
)

// ClassRepository reads and writes homeroom class documents.
type ClassRepository struct {
	store docstore.Store
}

// NewClassRepository builds a class repository.
func NewClassRepository(store docstore.Store) *ClassRepository {
	return &ClassRepository{store: store}
}

// List returns classes matching the filter with the total count.
func (r *ClassRepository) List(ctx context.Context, tenantID string, filter models.ClassFilter) ([]models.HomeroomClass, int, error) {
	classes, err := r.ListAll(ctx, tenantID)
	if err != nil {
		return nil, 0, err
	}

	if filter.GradeNumber > 0 {
		filtered := classes[:0]
		for _, c := range classes {
			if c.GradeNumber == filter.GradeNumber {
				filtered = append(filtered, c)
			}
		}
		classes = filtered
	}
	if filter.TeacherID != "" {
		filtered := classes[:0]
		for _, c := range classes {
			for _, pair := range c.TeacherSubjectPairs {
				if pair.TeacherID == filter.TeacherID {
					filtered = append(filtered, c)
					break
				}
			}
		}
		classes = filtered
	}

	page, total := paginate(classes, filter.Page, filter.PageSize)
	return page, total, nil
}

// ListAll returns every class of the tenant, sorted by name.
func (r *ClassRepository) ListAll(ctx context.Context, tenantID string) ([]models.HomeroomClass, error) {
	docs, err := r.store.Query(ctx, tenantID, docstore.Query{Collection: ColClasses})
	if err != nil {
		return nil, err
	}
	classes, err := decodeAll[models.HomeroomClass](docs)
	if err != nil {
		return nil, err
	}
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].GradeNumber != classes[j].GradeNumber {
			return classes[i].GradeNumber < classes[j].GradeNumber
		}
		return classes[i].ClassName < classes[j].ClassName
	})
	return classes, nil
}

// FindByID loads one class.
func (r *ClassRepository) FindByID(ctx context.Context, tenantID, id string) (*models.HomeroomClass, error) {
	doc, err := r.store.Get(ctx, tenantID, ColClasses, id)
	if err != nil {
		return nil, err
	}
	return decode[models.HomeroomClass](doc)
}

// Save writes the class document.
func (r *ClassRepository) Save(ctx context.Context, tenantID string, class *models.HomeroomClass) error {
	data, err := encode(class)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, tenantID, ColClasses, class.ID, data)
}

// Delete removes the class document.
func (r *ClassRepository) Delete(ctx context.Context, tenantID, id string) error {
	return r.store.Delete(ctx, tenantID, ColClasses, id)
}
