package sync

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/pkg/docstore"
)

const relHomeroom = "homeroom"

// ReassignHomeroom moves a teacher's homeroom responsibility from
// oldClassID to newClassID. After it completes, the old class has no
// pair referencing this teacher as homeroom and the new class has
// exactly one isHomeroom pair, with classTeacherId matching it.
//
// The new class's whole pair list is rewritten with every other pair
// forced to isHomeroom=false, so the at-most-one invariant holds even
// if a previous write left the list inconsistent.
func (e *Engine) ReassignHomeroom(ctx context.Context, tenantID, teacherID, oldClassID, newClassID string) error {
	if oldClassID == newClassID {
		return nil
	}

	var errs []error
	if oldClassID != "" {
		if err := e.clearHomeroom(ctx, tenantID, oldClassID, teacherID); err != nil {
			e.recorder.SyncStepFailed(relHomeroom)
			e.logger.Error("failed to clear old homeroom",
				zap.String("teacher_id", teacherID),
				zap.String("class_id", oldClassID),
				zap.Error(err))
			errs = append(errs, err)
		} else {
			e.recorder.SyncStepApplied(relHomeroom)
		}
	}
	if newClassID != "" {
		if err := e.setHomeroom(ctx, tenantID, newClassID, teacherID); err != nil {
			e.recorder.SyncStepFailed(relHomeroom)
			e.logger.Error("failed to set new homeroom",
				zap.String("teacher_id", teacherID),
				zap.String("class_id", newClassID),
				zap.Error(err))
			errs = append(errs, err)
		} else {
			e.recorder.SyncStepApplied(relHomeroom)
		}
	}

	if len(errs) == 0 {
		e.emitAudit(ctx, tenantID, "", models.AuditActionHomeroomChange, "class", newClassID, map[string]string{
			"teacherId":  teacherID,
			"oldClassId": oldClassID,
			"newClassId": newClassID,
		})
	}
	return errors.Join(errs...)
}

func (e *Engine) clearHomeroom(ctx context.Context, tenantID, classID, teacherID string) error {
	class, err := e.classes.FindByID(ctx, tenantID, classID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil
		}
		return err
	}

	changed := false
	for i := range class.TeacherSubjectPairs {
		if class.TeacherSubjectPairs[i].TeacherID == teacherID && class.TeacherSubjectPairs[i].IsHomeroom {
			class.TeacherSubjectPairs[i].IsHomeroom = false
			changed = true
		}
	}
	if class.ClassTeacherID == teacherID {
		class.ClassTeacherID = ""
		changed = true
	}
	if !changed {
		return nil
	}
	return e.classes.Save(ctx, tenantID, class)
}

func (e *Engine) setHomeroom(ctx context.Context, tenantID, classID, teacherID string) error {
	class, err := e.classes.FindByID(ctx, tenantID, classID)
	if err != nil {
		return err
	}

	found := false
	for i := range class.TeacherSubjectPairs {
		if class.TeacherSubjectPairs[i].TeacherID == teacherID {
			class.TeacherSubjectPairs[i].IsHomeroom = !found
			found = true
			continue
		}
		class.TeacherSubjectPairs[i].IsHomeroom = false
	}
	if !found {
		class.TeacherSubjectPairs = append(class.TeacherSubjectPairs, models.TeacherSubjectPair{
			TeacherID:  teacherID,
			SubjectID:  "",
			IsHomeroom: true,
		})
	}
	class.ClassTeacherID = teacherID
	return e.classes.Save(ctx, tenantID, class)
}
