package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edunik/edunik-api/internal/models"
)

func TestMoveStudent_UpdatesBothRosters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedClass(t, &models.HomeroomClass{ID: "7a", ClassName: "7A", StudentIDs: []string{"s1", "s2"}})
	f.seedClass(t, &models.HomeroomClass{ID: "7b", ClassName: "7B", StudentIDs: []string{"s3"}})

	require.NoError(t, f.engine.MoveStudent(ctx, testSchool, "s1", "7a", "7b"))

	old, err := f.classes.FindByID(ctx, testSchool, "7a")
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, old.StudentIDs)

	next, err := f.classes.FindByID(ctx, testSchool, "7b")
	require.NoError(t, err)
	assert.Equal(t, []string{"s3", "s1"}, next.StudentIDs)
}

func TestMoveStudent_SameClassIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedClass(t, &models.HomeroomClass{ID: "7a", StudentIDs: []string{"s1"}})

	require.NoError(t, f.engine.MoveStudent(ctx, testSchool, "s1", "7a", "7a"))

	class, err := f.classes.FindByID(ctx, testSchool, "7a")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, class.StudentIDs)
}

func TestMoveStudent_MissingOldClass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedClass(t, &models.HomeroomClass{ID: "7b"})

	// The old class was deleted in the meantime; the move still lands
	// the student on the new roster.
	require.NoError(t, f.engine.MoveStudent(ctx, testSchool, "s1", "gone", "7b"))

	next, err := f.classes.FindByID(ctx, testSchool, "7b")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, next.StudentIDs)
}

func TestMoveStudent_EnrollAndUnenroll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedClass(t, &models.HomeroomClass{ID: "7a", StudentIDs: []string{"s1"}})

	// Unenroll: new class empty.
	require.NoError(t, f.engine.MoveStudent(ctx, testSchool, "s1", "7a", ""))
	class, err := f.classes.FindByID(ctx, testSchool, "7a")
	require.NoError(t, err)
	assert.Empty(t, class.StudentIDs)

	// Enroll: old class empty.
	require.NoError(t, f.engine.MoveStudent(ctx, testSchool, "s1", "", "7a"))
	class, err = f.classes.FindByID(ctx, testSchool, "7a")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, class.StudentIDs)
}

func TestMoveStudent_AddIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedClass(t, &models.HomeroomClass{ID: "7b", StudentIDs: []string{"s1"}})

	require.NoError(t, f.engine.MoveStudent(ctx, testSchool, "s1", "", "7b"))

	class, err := f.classes.FindByID(ctx, testSchool, "7b")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, class.StudentIDs)
}
