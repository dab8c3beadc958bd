package projection

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edunik/edunik-api/internal/models"
	"github.com/edunik/edunik-api/internal/repository"
	"github.com/edunik/edunik-api/pkg/docstore"
)

func TestAssignmentQueries_Teacher(t *testing.T) {
	queries, err := AssignmentQueries(Viewer{UserID: "t1", Role: models.RoleTeacher})
	require.NoError(t, err)
	require.Len(t, queries, 1)
	require.Len(t, queries[0].Filters, 1)
	assert.Equal(t, "teacherId", queries[0].Filters[0].Field)
	assert.Equal(t, docstore.OpEqual, queries[0].Filters[0].Op)
	assert.Equal(t, "t1", queries[0].Filters[0].Value)
}

func TestAssignmentQueries_StudentGetsBothTargetingModes(t *testing.T) {
	queries, err := AssignmentQueries(Viewer{UserID: "s1", Role: models.RoleStudent, HomeroomClassID: "7a"})
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Equal(t, "studentIds", queries[0].Filters[0].Field)
	assert.Equal(t, docstore.OpArrayContains, queries[0].Filters[0].Op)
	assert.Equal(t, "classIds", queries[1].Filters[0].Field)
	assert.Equal(t, "7a", queries[1].Filters[0].Value)
}

func TestAssignmentQueries_StudentWithoutClass(t *testing.T) {
	queries, err := AssignmentQueries(Viewer{UserID: "s1", Role: models.RoleStudent})
	require.NoError(t, err)
	require.Len(t, queries, 1)
}

func TestAssignmentQueries_AdminUnfiltered(t *testing.T) {
	queries, err := AssignmentQueries(Viewer{UserID: "a1", Role: models.RoleAdmin})
	require.NoError(t, err)
	require.Len(t, queries, 1)
	assert.Empty(t, queries[0].Filters)
}

func TestAssignmentQueries_ParentMustResolveChild(t *testing.T) {
	_, err := AssignmentQueries(Viewer{UserID: "p1", Role: models.RoleParent})
	require.Error(t, err)

	child := &models.User{ID: "s1", Role: models.RoleStudent, HomeroomClassID: "7a"}
	resolved := Viewer{UserID: "p1", Role: models.RoleParent}.ForChild(child)
	queries, err := AssignmentQueries(resolved)
	require.NoError(t, err)
	require.Len(t, queries, 2)
}

func TestAssignmentQueries_UnknownRole(t *testing.T) {
	_, err := AssignmentQueries(Viewer{UserID: "u1", Role: models.UserRole("JANITOR")})
	require.Error(t, err)
}

func TestMergeDocs_DropsDuplicates(t *testing.T) {
	a := []docstore.Document{{ID: "hw1"}, {ID: "hw2"}}
	b := []docstore.Document{{ID: "hw2"}, {ID: "hw3"}}

	merged := MergeDocs(a, b)

	require.Len(t, merged, 3)
	assert.Equal(t, "hw1", merged[0].ID)
	assert.Equal(t, "hw2", merged[1].ID)
	assert.Equal(t, "hw3", merged[2].ID)
}

func TestListener_ReplacesPreviousSubscription(t *testing.T) {
	store := docstore.NewMemory()
	ctx := context.Background()
	tenant := "school-1"

	var firstCount, secondCount int
	var l Listener

	q := docstore.Query{Collection: repository.ColAssignments}
	require.NoError(t, l.Listen(ctx, store, tenant, q, func([]docstore.Document) { firstCount++ }))
	require.NoError(t, l.Listen(ctx, store, tenant, q, func([]docstore.Document) { secondCount++ }))

	firstAfterReplace := firstCount
	data, _ := json.Marshal(models.Assignment{ID: "hw1"})
	require.NoError(t, store.Put(ctx, tenant, repository.ColAssignments, "hw1", data))

	assert.Equal(t, firstAfterReplace, firstCount, "the replaced listener must not receive further snapshots")
	assert.Greater(t, secondCount, 0)

	l.Stop()
	secondAfterStop := secondCount
	require.NoError(t, store.Put(ctx, tenant, repository.ColAssignments, "hw1", data))
	assert.Equal(t, secondAfterStop, secondCount)

	// Stop is idempotent.
	l.Stop()
}
