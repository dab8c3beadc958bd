package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/internal/repository"
	"github.com/edunik/edunik-api/pkg/docstore"
)

func TestDeleteTeacher_BlanksEveryReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assignments := repository.NewAssignmentRepository(f.store)
	quizzes := repository.NewQuizRepository(f.store)
	timetables := repository.NewTimetableRepository(f.store)
	attendance := repository.NewAttendanceRepository(f.store)
	grades := repository.NewGradeRepository(f.store)
	notifications := repository.NewNotificationRepository(f.store)

	teacher := &models.User{ID: "t1", Role: models.RoleTeacher, FirstName: "Maria", LastName: "Petrova", TeachesSubjects: []string{"math"}}
	f.seedUser(t, teacher)
	f.seedSubject(t, &models.Subject{ID: "math", Name: "Mathematics", TeacherIDs: []string{"t1", "t2"}})
	f.seedClass(t, &models.HomeroomClass{
		ID:             "7a",
		ClassTeacherID: "t1",
		TeacherSubjectPairs: []models.TeacherSubjectPair{
			{TeacherID: "t1", SubjectID: "math", IsHomeroom: true},
			{TeacherID: "t2", SubjectID: "bio"},
		},
	})
	require.NoError(t, assignments.Save(ctx, testSchool, &models.Assignment{ID: "hw1", TeacherID: "t1", SubjectID: "math"}))
	require.NoError(t, quizzes.Save(ctx, testSchool, &models.Quiz{ID: "q1", TeacherID: "t1", SubjectID: "math"}))
	require.NoError(t, timetables.Save(ctx, testSchool, &models.TimetableEntry{ID: "tt1", ClassID: "7a", TeacherID: "t1", TeacherName: "Maria Petrova", SubjectID: "math", DayOfWeek: 1, PeriodNumber: 2}))
	require.NoError(t, attendance.SaveBatch(ctx, testSchool, []models.AttendanceRecord{
		{ID: "att1", StudentID: "s1", ClassID: "7a", SubjectID: "math", TeacherID: "t1", TeacherName: "Maria Petrova", Date: "2026-03-02", PeriodNumber: 2, Status: models.AttendancePresent},
	}))
	require.NoError(t, grades.SaveReview(ctx, testSchool, &models.StudentReview{ID: "rev1", StudentID: "s1", TeacherID: "t1", TeacherName: "Maria Petrova", Type: models.ReviewPositive}))
	require.NoError(t, notifications.Save(ctx, testSchool, &models.Notification{ID: "n1", UserID: "t1", Type: models.NotificationSystem, Title: "inbox"}))
	require.NoError(t, notifications.Save(ctx, testSchool, &models.Notification{ID: "n2", UserID: "s1", SenderID: "t1", Type: models.NotificationFeedback, Title: "sent"}))

	require.NoError(t, f.engine.DeleteTeacher(ctx, testSchool, "admin-1", teacher))

	_, err := f.users.FindByID(ctx, testSchool, "t1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	subject, err := f.subjects.FindByID(ctx, testSchool, "math")
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, subject.TeacherIDs)

	class, err := f.classes.FindByID(ctx, testSchool, "7a")
	require.NoError(t, err)
	assert.Empty(t, class.ClassTeacherID)
	require.Len(t, class.TeacherSubjectPairs, 1)
	assert.Equal(t, "t2", class.TeacherSubjectPairs[0].TeacherID)

	hw, err := assignments.FindByID(ctx, testSchool, "hw1")
	require.NoError(t, err)
	assert.Empty(t, hw.TeacherID)

	quiz, err := quizzes.FindByID(ctx, testSchool, "q1")
	require.NoError(t, err)
	assert.Empty(t, quiz.TeacherID)

	slots, err := timetables.ListByClass(ctx, testSchool, "7a")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Empty(t, slots[0].TeacherID)
	assert.Equal(t, models.FormerTeacherName, slots[0].TeacherName)

	records, err := attendance.ListByStudent(ctx, testSchool, "s1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].TeacherID)
	assert.Equal(t, models.FormerTeacherName, records[0].TeacherName)

	reviews, err := grades.ListReviewsByStudent(ctx, testSchool, "s1")
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, models.FormerTeacherName, reviews[0].TeacherName)

	_, err = notifications.FindByID(ctx, testSchool, "n1")
	assert.ErrorIs(t, err, docstore.ErrNotFound, "the teacher's inbox is deleted")

	sent, err := notifications.FindByID(ctx, testSchool, "n2")
	require.NoError(t, err)
	assert.Empty(t, sent.SenderID, "received notifications keep the message but lose the sender")

	logs, err := f.audit.ListByResource(ctx, testSchool, "user")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionUserDelete, logs[0].Action)
	assert.Equal(t, "admin-1", logs[0].UserID)
}

func TestDeleteStudent_RemovesPersonalRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assignments := repository.NewAssignmentRepository(f.store)
	submissions := repository.NewSubmissionRepository(f.store)
	quizzes := repository.NewQuizRepository(f.store)
	attendance := repository.NewAttendanceRepository(f.store)
	grades := repository.NewGradeRepository(f.store)
	notifications := repository.NewNotificationRepository(f.store)
	links := repository.NewParentLinkRepository(f.store)

	student := &models.User{ID: "s1", Role: models.RoleStudent, HomeroomClassID: "7a", ParentIDs: []string{"p1"}}
	f.seedUser(t, student)
	f.seedUser(t, &models.User{ID: "p1", Role: models.RoleParent, ChildrenIDs: []string{"s1", "s2"}})
	f.seedClass(t, &models.HomeroomClass{ID: "7a", StudentIDs: []string{"s1", "s2"}})
	require.NoError(t, assignments.Save(ctx, testSchool, &models.Assignment{ID: "hw1", TeacherID: "t1", StudentIDs: []string{"s1", "s2"}}))
	require.NoError(t, submissions.Save(ctx, testSchool, &models.AssignmentSubmission{ID: "sub1", AssignmentID: "hw1", StudentID: "s1", Status: models.SubmissionSubmitted}))
	require.NoError(t, quizzes.SaveResult(ctx, testSchool, &models.LiveQuizResult{ID: "res1", QuizID: "q1", StudentID: "s1", Score: 5}))
	require.NoError(t, attendance.SaveBatch(ctx, testSchool, []models.AttendanceRecord{
		{ID: "att1", StudentID: "s1", ClassID: "7a", SubjectID: "math", TeacherID: "t1", Date: "2026-03-02", PeriodNumber: 1, Status: models.AttendanceAbsent},
	}))
	require.NoError(t, grades.Save(ctx, testSchool, &models.Grade{ID: "g1", StudentID: "s1", SubjectID: "math", TeacherID: "t1", Value: 5.5}))
	require.NoError(t, grades.SaveReview(ctx, testSchool, &models.StudentReview{ID: "rev1", StudentID: "s1", TeacherID: "t1", Type: models.ReviewNegative}))
	require.NoError(t, links.Save(ctx, testSchool, &models.ParentLinkRequest{ID: "lnk1", ParentID: "p2", ChildID: "s1", Status: models.ParentLinkPending}))
	require.NoError(t, notifications.Save(ctx, testSchool, &models.Notification{ID: "n1", UserID: "s1", Type: models.NotificationGrade}))

	require.NoError(t, f.engine.DeleteStudent(ctx, testSchool, "admin-1", student))

	_, err := f.users.FindByID(ctx, testSchool, "s1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	class, err := f.classes.FindByID(ctx, testSchool, "7a")
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, class.StudentIDs)

	hw, err := assignments.FindByID(ctx, testSchool, "hw1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, hw.StudentIDs)

	_, err = submissions.FindByID(ctx, testSchool, "sub1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	results, err := quizzes.ListResults(ctx, testSchool, "q1")
	require.NoError(t, err)
	assert.Empty(t, results)

	records, err := attendance.ListByStudent(ctx, testSchool, "s1")
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = grades.FindByID(ctx, testSchool, "g1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	reviews, err := grades.ListReviewsByStudent(ctx, testSchool, "s1")
	require.NoError(t, err)
	assert.Empty(t, reviews)

	parent, err := f.users.FindByID(ctx, testSchool, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, parent.ChildrenIDs)

	_, err = links.FindByID(ctx, testSchool, "lnk1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	_, err = notifications.FindByID(ctx, testSchool, "n1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestDeleteStudent_MissingParentIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	student := &models.User{ID: "s1", Role: models.RoleStudent, ParentIDs: []string{"gone"}}
	f.seedUser(t, student)

	require.NoError(t, f.engine.DeleteStudent(ctx, testSchool, "admin-1", student))

	_, err := f.users.FindByID(ctx, testSchool, "s1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestDeleteParent_UnlinksChildren(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	notifications := repository.NewNotificationRepository(f.store)
	links := repository.NewParentLinkRepository(f.store)

	parent := &models.User{ID: "p1", Role: models.RoleParent, ChildrenIDs: []string{"s1", "s2"}}
	f.seedUser(t, parent)
	f.seedUser(t, &models.User{ID: "s1", Role: models.RoleStudent, ParentIDs: []string{"p1", "p2"}})
	f.seedUser(t, &models.User{ID: "s2", Role: models.RoleStudent, ParentIDs: []string{"p1"}})
	require.NoError(t, links.Save(ctx, testSchool, &models.ParentLinkRequest{ID: "lnk1", ParentID: "p1", ChildID: "s3", Status: models.ParentLinkPending}))
	require.NoError(t, notifications.Save(ctx, testSchool, &models.Notification{ID: "n1", UserID: "p1", Type: models.NotificationAttendance}))

	require.NoError(t, f.engine.DeleteParent(ctx, testSchool, "admin-1", parent))

	_, err := f.users.FindByID(ctx, testSchool, "p1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	s1, err := f.users.FindByID(ctx, testSchool, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p2"}, s1.ParentIDs)

	s2, err := f.users.FindByID(ctx, testSchool, "s2")
	require.NoError(t, err)
	assert.Empty(t, s2.ParentIDs)

	_, err = links.FindByID(ctx, testSchool, "lnk1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	_, err = notifications.FindByID(ctx, testSchool, "n1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}
