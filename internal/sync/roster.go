package sync

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/docstore"
)

const relClassRoster = "class_roster"

// MoveStudent updates class rosters after a student's homeroomClassId
// changed: the id is removed from the old class and added to the new
// one.
//
// The two class writes are deliberately independent, mirroring the
// original behaviour: if removing from the old class succeeds but
// adding to the new class fails, the student is temporarily on neither
// roster. That soft inconsistency is surfaced to the caller and fixed
// by re-editing the student, not auto-healed.
func (e *Engine) MoveStudent(ctx context.Context, tenantID, studentID, oldClassID, newClassID string) error {
	if oldClassID == newClassID {
		return nil
	}

	var errs []error
	if oldClassID != "" {
		if err := e.removeFromRoster(ctx, tenantID, oldClassID, studentID); err != nil {
			e.recorder.SyncStepFailed(relClassRoster)
			e.logger.Error("failed to remove student from old class",
				zap.String("student_id", studentID),
				zap.String("class_id", oldClassID),
				zap.Error(err))
			errs = append(errs, err)
		} else {
			e.recorder.SyncStepApplied(relClassRoster)
		}
	}
	if newClassID != "" {
		if err := e.addToRoster(ctx, tenantID, newClassID, studentID); err != nil {
			e.recorder.SyncStepFailed(relClassRoster)
			e.logger.Error("failed to add student to new class",
				zap.String("student_id", studentID),
				zap.String("class_id", newClassID),
				zap.Error(err))
			errs = append(errs, err)
		} else {
			e.recorder.SyncStepApplied(relClassRoster)
		}
	}

	if len(errs) == 0 {
		e.emitAudit(ctx, tenantID, "", models.AuditActionRosterMove, "class", newClassID, map[string]string{
			"studentId":  studentID,
			"oldClassId": oldClassID,
			"newClassId": newClassID,
		})
	}
	return errors.Join(errs...)
}

func (e *Engine) addToRoster(ctx context.Context, tenantID, classID, studentID string) error {
	class, err := e.classes.FindByID(ctx, tenantID, classID)
	if err != nil {
		return err
	}
	if class.HasStudent(studentID) {
		return nil
	}
	class.StudentIDs = append(class.StudentIDs, studentID)
	return e.classes.Save(ctx, tenantID, class)
}

func (e *Engine) removeFromRoster(ctx context.Context, tenantID, classID, studentID string) error {
	class, err := e.classes.FindByID(ctx, tenantID, classID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil
		}
		return err
	}
	if !class.HasStudent(studentID) {
		return nil
	}
	class.StudentIDs = remove(class.StudentIDs, studentID)
	return e.classes.Save(ctx, tenantID, class)
}
