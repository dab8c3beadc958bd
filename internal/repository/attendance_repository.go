package repository

import (
	"context"
	"sort"
	"strconv"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/docstore"
)

// AttendanceRepository reads and writes attendance records.
type AttendanceRepository struct {
	store docstore.Store
}

// NewAttendanceRepository builds an attendance repository.
func NewAttendanceRepository(store docstore.Store) *AttendanceRepository {
	return &AttendanceRepository{store: store}
}

// ListSession returns the records of one class/subject/date/period
// marking session.
func (r *AttendanceRepository) ListSession(ctx context.Context, tenantID string, key models.AttendanceSessionKey) ([]models.AttendanceRecord, error) {
	docs, err := r.store.Query(ctx, tenantID, docstore.Query{
		Collection: ColAttendance,
		Filters: []docstore.Filter{
			{Field: "classId", Op: docstore.OpEqual, Value: key.ClassID},
			{Field: "subjectId", Op: docstore.OpEqual, Value: key.SubjectID},
			{Field: "date", Op: docstore.OpEqual, Value: key.Date},
		},
	})
	if err != nil {
		return nil, err
	}
	records, err := decodeAll[models.AttendanceRecord](docs)
	if err != nil {
		return nil, err
	}
	// Period is numeric, so it is filtered here instead of in the store.
	filtered := records[:0]
	for _, rec := range records {
		if rec.PeriodNumber == key.PeriodNumber {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

// ListByStudent returns a student's records, newest date first.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, tenantID, studentID string) ([]models.AttendanceRecord, error) {
	docs, err := r.store.Query(ctx, tenantID, docstore.Query{
		Collection: ColAttendance,
		Filters:    []docstore.Filter{{Field: "studentId", Op: docstore.OpEqual, Value: studentID}},
	})
	if err != nil {
		return nil, err
	}
	records, err := decodeAll[models.AttendanceRecord](docs)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date > records[j].Date
		}
		return records[i].PeriodNumber > records[j].PeriodNumber
	})
	return records, nil
}

// SaveBatch commits one record per student atomically: the whole
// session submit either lands or fails as a unit.
func (r *AttendanceRepository) SaveBatch(ctx context.Context, tenantID string, records []models.AttendanceRecord) error {
	ops := make([]docstore.WriteOp, 0, len(records))
	for i := range records {
		op, err := PutOp(ColAttendance, records[i].ID, &records[i])
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}
	return r.store.Apply(ctx, tenantID, ops)
}

// SessionRecordID derives a deterministic record id so resubmitting a
// session overwrites the previous marks instead of duplicating them.
func SessionRecordID(key models.AttendanceSessionKey, studentID string) string {
	return key.ClassID + ":" + key.SubjectID + ":" + key.Date + ":p" + strconv.Itoa(key.PeriodNumber) + ":" + studentID
}
