package repository

import (
	"context"
	"sort"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/docstore"
)

// TimetableRepository reads and writes timetable entries.
type TimetableRepository struct {
	store docstore.Store
}

// NewTimetableRepository builds a timetable repository.
func NewTimetableRepository(store docstore.Store) *TimetableRepository {
	return &TimetableRepository{store: store}
}

// ListByClass returns a class's weekly slots in schedule order.
func (r *TimetableRepository) ListByClass(ctx context.Context, tenantID, classID string) ([]models.TimetableEntry, error) {
	docs, err := r.store.Query(ctx, tenantID, docstore.Query{
		Collection: ColTimetables,
		Filters:    []docstore.Filter{{Field: "classId", Op: docstore.OpEqual, Value: classID}},
	})
	if err != nil {
		return nil, err
	}
	entries, err := decodeAll[models.TimetableEntry](docs)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].DayOfWeek != entries[j].DayOfWeek {
			return entries[i].DayOfWeek < entries[j].DayOfWeek
		}
		return entries[i].PeriodNumber < entries[j].PeriodNumber
	})
	return entries, nil
}

// ListByTeacher returns every slot taught by a teacher.
func (r *TimetableRepository) ListByTeacher(ctx context.Context, tenantID, teacherID string) ([]models.TimetableEntry, error) {
	docs, err := r.store.Query(ctx, tenantID, docstore.Query{
		Collection: ColTimetables,
		Filters:    []docstore.Filter{{Field: "teacherId", Op: docstore.OpEqual, Value: teacherID}},
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[models.TimetableEntry](docs)
}

// Save writes one timetable entry.
func (r *TimetableRepository) Save(ctx context.Context, tenantID string, entry *models.TimetableEntry) error {
	data, err := encode(entry)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, tenantID, ColTimetables, entry.ID, data)
}
