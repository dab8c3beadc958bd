package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/internal/repository"
	"github.com/edunik/edunik-api/pkg/docstore"
)

// The delete cascades below are correctness-by-exhaustive-scan: every
// potentially affected collection of the tenant is read in full, the
// affected documents are mutated in memory, and everything is committed
// in one atomic batch. This is O(total tenant documents) per delete and
// by far the most expensive operation in the system, but within one
// cascade partial failure is impossible.

func scan[T any](ctx context.Context, store docstore.Store, tenantID, collection string) ([]T, error) {
	docs, err := store.Query(ctx, tenantID, docstore.Query{Collection: collection})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}
	out := make([]T, 0, len(docs))
	for i := range docs {
		var item T
		if err := json.Unmarshal(docs[i].Data, &item); err != nil {
			return nil, fmt.Errorf("scan %s: decode %s: %w", collection, docs[i].ID, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// DeleteTeacher removes a teacher and blanks every reference to them
// across the tenant. Historical records (assignments, quizzes,
// timetable slots, attendance, reviews) are kept with the teacher
// replaced by a "Former Teacher" sentinel so history stays inspectable.
func (e *Engine) DeleteTeacher(ctx context.Context, tenantID, actorID string, teacher *models.User) error {
	var ops []docstore.WriteOp

	classes, err := e.classes.ListAll(ctx, tenantID)
	if err != nil {
		return err
	}
	for i := range classes {
		class := classes[i]
		changed := false
		pairs := class.TeacherSubjectPairs[:0]
		for _, pair := range class.TeacherSubjectPairs {
			if pair.TeacherID == teacher.ID {
				changed = true
				continue
			}
			pairs = append(pairs, pair)
		}
		class.TeacherSubjectPairs = pairs
		if class.ClassTeacherID == teacher.ID {
			class.ClassTeacherID = ""
			changed = true
		}
		if changed {
			op, err := repository.PutOp(repository.ColClasses, class.ID, &class)
			if err != nil {
				return err
			}
			ops = append(ops, op)
		}
	}

	subjects, err := scan[models.Subject](ctx, e.store, tenantID, repository.ColSubjects)
	if err != nil {
		return err
	}
	for i := range subjects {
		subject := subjects[i]
		if !subject.HasTeacher(teacher.ID) {
			continue
		}
		subject.TeacherIDs = remove(subject.TeacherIDs, teacher.ID)
		op, err := repository.PutOp(repository.ColSubjects, subject.ID, &subject)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}

	assignments, err := scan[models.Assignment](ctx, e.store, tenantID, repository.ColAssignments)
	if err != nil {
		return err
	}
	for i := range assignments {
		a := assignments[i]
		if a.TeacherID != teacher.ID {
			continue
		}
		a.TeacherID = ""
		op, err := repository.PutOp(repository.ColAssignments, a.ID, &a)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}

	quizzes, err := scan[models.Quiz](ctx, e.store, tenantID, repository.ColQuizzes)
	if err != nil {
		return err
	}
	for i := range quizzes {
		q := quizzes[i]
		if q.TeacherID != teacher.ID {
			continue
		}
		q.TeacherID = ""
		op, err := repository.PutOp(repository.ColQuizzes, q.ID, &q)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}

	timetables, err := scan[models.TimetableEntry](ctx, e.store, tenantID, repository.ColTimetables)
	if err != nil {
		return err
	}
	for i := range timetables {
		t := timetables[i]
		if t.TeacherID != teacher.ID {
			continue
		}
		t.TeacherID = ""
		t.TeacherName = models.FormerTeacherName
		op, err := repository.PutOp(repository.ColTimetables, t.ID, &t)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}

	attendance, err := scan[models.AttendanceRecord](ctx, e.store, tenantID, repository.ColAttendance)
	if err != nil {
		return err
	}
	for i := range attendance {
		rec := attendance[i]
		if rec.TeacherID != teacher.ID {
			continue
		}
		rec.TeacherID = ""
		rec.TeacherName = models.FormerTeacherName
		op, err := repository.PutOp(repository.ColAttendance, rec.ID, &rec)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}

	reviews, err := scan[models.StudentReview](ctx, e.store, tenantID, repository.ColReviews)
	if err != nil {
		return err
	}
	for i := range reviews {
		rev := reviews[i]
		if rev.TeacherID != teacher.ID {
			continue
		}
		rev.TeacherID = ""
		rev.TeacherName = models.FormerTeacherName
		op, err := repository.PutOp(repository.ColReviews, rev.ID, &rev)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}

	notifications, err := scan[models.Notification](ctx, e.store, tenantID, repository.ColNotifications)
	if err != nil {
		return err
	}
	for i := range notifications {
		n := notifications[i]
		switch {
		case n.UserID == teacher.ID:
			ops = append(ops, repository.DeleteOp(repository.ColNotifications, n.ID))
		case n.SenderID == teacher.ID:
			n.SenderID = ""
			op, err := repository.PutOp(repository.ColNotifications, n.ID, &n)
			if err != nil {
				return err
			}
			ops = append(ops, op)
		}
	}

	ops = append(ops, repository.DeleteOp(repository.ColUsers, teacher.ID))

	if err := e.store.Apply(ctx, tenantID, ops); err != nil {
		e.logger.Error("teacher delete cascade failed",
			zap.String("teacher_id", teacher.ID),
			zap.Int("ops", len(ops)),
			zap.Error(err))
		return err
	}
	e.recorder.CascadeCommitted(string(models.RoleTeacher), len(ops))
	e.emitAudit(ctx, tenantID, actorID, models.AuditActionUserDelete, "user", teacher.ID, map[string]interface{}{
		"role": models.RoleTeacher,
		"ops":  len(ops),
	})
	return nil
}

// DeleteStudent removes a student together with their personal records:
// submissions, quiz results, attendance, grades, reviews, inbox, the
// roster entry and parent childrenIds references.
func (e *Engine) DeleteStudent(ctx context.Context, tenantID, actorID string, student *models.User) error {
	var ops []docstore.WriteOp

	classes, err := e.classes.ListAll(ctx, tenantID)
	if err != nil {
		return err
	}
	for i := range classes {
		class := classes[i]
		if !class.HasStudent(student.ID) {
			continue
		}
		class.StudentIDs = remove(class.StudentIDs, student.ID)
		op, err := repository.PutOp(repository.ColClasses, class.ID, &class)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}

	assignments, err := scan[models.Assignment](ctx, e.store, tenantID, repository.ColAssignments)
	if err != nil {
		return err
	}
	for i := range assignments {
		a := assignments[i]
		if !contains(a.StudentIDs, student.ID) {
			continue
		}
		a.StudentIDs = remove(a.StudentIDs, student.ID)
		op, err := repository.PutOp(repository.ColAssignments, a.ID, &a)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}

	submissions, err := scan[models.AssignmentSubmission](ctx, e.store, tenantID, repository.ColSubmissions)
	if err != nil {
		return err
	}
	for i := range submissions {
		if submissions[i].StudentID == student.ID {
			ops = append(ops, repository.DeleteOp(repository.ColSubmissions, submissions[i].ID))
		}
	}

	results, err := scan[models.LiveQuizResult](ctx, e.store, tenantID, repository.ColQuizResults)
	if err != nil {
		return err
	}
	for i := range results {
		if results[i].StudentID == student.ID {
			ops = append(ops, repository.DeleteOp(repository.ColQuizResults, results[i].ID))
		}
	}

	attendance, err := scan[models.AttendanceRecord](ctx, e.store, tenantID, repository.ColAttendance)
	if err != nil {
		return err
	}
	for i := range attendance {
		if attendance[i].StudentID == student.ID {
			ops = append(ops, repository.DeleteOp(repository.ColAttendance, attendance[i].ID))
		}
	}

	grades, err := scan[models.Grade](ctx, e.store, tenantID, repository.ColGrades)
	if err != nil {
		return err
	}
	for i := range grades {
		if grades[i].StudentID == student.ID {
			ops = append(ops, repository.DeleteOp(repository.ColGrades, grades[i].ID))
		}
	}

	reviews, err := scan[models.StudentReview](ctx, e.store, tenantID, repository.ColReviews)
	if err != nil {
		return err
	}
	for i := range reviews {
		if reviews[i].StudentID == student.ID {
			ops = append(ops, repository.DeleteOp(repository.ColReviews, reviews[i].ID))
		}
	}

	for _, parentID := range student.ParentIDs {
		parent, err := e.users.FindByID(ctx, tenantID, parentID)
		if err != nil {
			e.logger.Warn("student references missing parent",
				zap.String("student_id", student.ID),
				zap.String("parent_id", parentID),
				zap.Error(err))
			continue
		}
		if !contains(parent.ChildrenIDs, student.ID) {
			continue
		}
		parent.ChildrenIDs = remove(parent.ChildrenIDs, student.ID)
		op, err := repository.PutOp(repository.ColUsers, parent.ID, parent)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}

	links, err := scan[models.ParentLinkRequest](ctx, e.store, tenantID, repository.ColParentLinks)
	if err != nil {
		return err
	}
	for i := range links {
		if links[i].ChildID == student.ID {
			ops = append(ops, repository.DeleteOp(repository.ColParentLinks, links[i].ID))
		}
	}

	notifications, err := scan[models.Notification](ctx, e.store, tenantID, repository.ColNotifications)
	if err != nil {
		return err
	}
	for i := range notifications {
		if notifications[i].UserID == student.ID {
			ops = append(ops, repository.DeleteOp(repository.ColNotifications, notifications[i].ID))
		}
	}

	ops = append(ops, repository.DeleteOp(repository.ColUsers, student.ID))

	if err := e.store.Apply(ctx, tenantID, ops); err != nil {
		e.logger.Error("student delete cascade failed",
			zap.String("student_id", student.ID),
			zap.Int("ops", len(ops)),
			zap.Error(err))
		return err
	}
	e.recorder.CascadeCommitted(string(models.RoleStudent), len(ops))
	e.emitAudit(ctx, tenantID, actorID, models.AuditActionUserDelete, "user", student.ID, map[string]interface{}{
		"role": models.RoleStudent,
		"ops":  len(ops),
	})
	return nil
}

// DeleteParent removes a parent, unlinking every child and deleting
// pending link requests and the parent's inbox.
func (e *Engine) DeleteParent(ctx context.Context, tenantID, actorID string, parent *models.User) error {
	var ops []docstore.WriteOp

	for _, childID := range parent.ChildrenIDs {
		child, err := e.users.FindByID(ctx, tenantID, childID)
		if err != nil {
			e.logger.Warn("parent references missing child",
				zap.String("parent_id", parent.ID),
				zap.String("child_id", childID),
				zap.Error(err))
			continue
		}
		if !contains(child.ParentIDs, parent.ID) {
			continue
		}
		child.ParentIDs = remove(child.ParentIDs, parent.ID)
		op, err := repository.PutOp(repository.ColUsers, child.ID, child)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}

	links, err := scan[models.ParentLinkRequest](ctx, e.store, tenantID, repository.ColParentLinks)
	if err != nil {
		return err
	}
	for i := range links {
		if links[i].ParentID == parent.ID {
			ops = append(ops, repository.DeleteOp(repository.ColParentLinks, links[i].ID))
		}
	}

	notifications, err := scan[models.Notification](ctx, e.store, tenantID, repository.ColNotifications)
	if err != nil {
		return err
	}
	for i := range notifications {
		n := notifications[i]
		switch {
		case n.UserID == parent.ID:
			ops = append(ops, repository.DeleteOp(repository.ColNotifications, n.ID))
		case n.SenderID == parent.ID:
			n.SenderID = ""
			op, err := repository.PutOp(repository.ColNotifications, n.ID, &n)
			if err != nil {
				return err
			}
			ops = append(ops, op)
		}
	}

	ops = append(ops, repository.DeleteOp(repository.ColUsers, parent.ID))

	if err := e.store.Apply(ctx, tenantID, ops); err != nil {
		e.logger.Error("parent delete cascade failed",
			zap.String("parent_id", parent.ID),
			zap.Int("ops", len(ops)),
			zap.Error(err))
		return err
	}
	e.recorder.CascadeCommitted(string(models.RoleParent), len(ops))
	e.emitAudit(ctx, tenantID, actorID, models.AuditActionUserDelete, "user", parent.ID, map[string]interface{}{
		"role": models.RoleParent,
		"ops":  len(ops),
	})
	return nil
}
