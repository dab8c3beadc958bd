package sync

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/edunik/edunik-api/pkg/docstore"
)

const relSubjectTeachers = "subject_teachers"

// SyncSubjectTeachers mirrors a change to Subject.teacherIds into each
// affected teacher's teachesSubjects list.
//
// Every per-teacher update is an independent read-modify-write with no
// cross-document transaction: a failure leaves already-updated teachers
// updated, and concurrent edits to the same teacher document can lose
// an update. Callers surface the returned error but never roll back.
func (e *Engine) SyncSubjectTeachers(ctx context.Context, tenantID, subjectID string, oldTeacherIDs, newTeacherIDs []string) error {
	added, removed := diff(oldTeacherIDs, newTeacherIDs)

	var errs []error
	for _, teacherID := range added {
		if err := e.addSubjectToTeacher(ctx, tenantID, subjectID, teacherID); err != nil {
			e.recorder.SyncStepFailed(relSubjectTeachers)
			e.logger.Error("failed to add subject to teacher",
				zap.String("subject_id", subjectID),
				zap.String("teacher_id", teacherID),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		e.recorder.SyncStepApplied(relSubjectTeachers)
	}
	for _, teacherID := range removed {
		if err := e.removeSubjectFromTeacher(ctx, tenantID, subjectID, teacherID); err != nil {
			e.recorder.SyncStepFailed(relSubjectTeachers)
			e.logger.Error("failed to remove subject from teacher",
				zap.String("subject_id", subjectID),
				zap.String("teacher_id", teacherID),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		e.recorder.SyncStepApplied(relSubjectTeachers)
	}
	return errors.Join(errs...)
}

// addSubjectToTeacher appends the subject to the teacher's list only
// when absent, which makes re-running the sync idempotent.
func (e *Engine) addSubjectToTeacher(ctx context.Context, tenantID, subjectID, teacherID string) error {
	teacher, err := e.users.FindByID(ctx, tenantID, teacherID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			// A stale reference to a deleted teacher is not fatal.
			e.logger.Warn("subject references missing teacher",
				zap.String("subject_id", subjectID),
				zap.String("teacher_id", teacherID))
			return nil
		}
		return err
	}
	if contains(teacher.TeachesSubjects, subjectID) {
		return nil
	}
	teacher.TeachesSubjects = append(teacher.TeachesSubjects, subjectID)
	return e.users.Save(ctx, tenantID, teacher)
}

func (e *Engine) removeSubjectFromTeacher(ctx context.Context, tenantID, subjectID, teacherID string) error {
	teacher, err := e.users.FindByID(ctx, tenantID, teacherID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil
		}
		return err
	}
	if !contains(teacher.TeachesSubjects, subjectID) {
		return nil
	}
	teacher.TeachesSubjects = remove(teacher.TeachesSubjects, subjectID)
	return e.users.Save(ctx, tenantID, teacher)
}
