package docstore

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostgresMock(t *testing.T) (*Postgres, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	pg := NewPostgres(sqlx.NewDb(db, "sqlmock"), PostgresOptions{
		PollInterval: time.Hour,
	})
	return pg, mock, func() {
		pg.Close() //nolint:errcheck
		db.Close()
	}
}

func TestPostgresGetReturnsDocument(t *testing.T) {
	pg, mock, cleanup := newPostgresMock(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "data", "updated_at"}).
		AddRow("u1", []byte(`{"name":"Maria"}`), now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, data, updated_at FROM documents WHERE tenant_id = $1 AND collection = $2 AND id = $3")).
		WithArgs("school-1", "users", "u1").
		WillReturnRows(rows)

	doc, err := pg.Get(context.Background(), "school-1", "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", doc.ID)
	assert.JSONEq(t, `{"name":"Maria"}`, string(doc.Data))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetMissingRowMapsToErrNotFound(t *testing.T) {
	pg, mock, cleanup := newPostgresMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, data, updated_at FROM documents").
		WithArgs("school-1", "users", "nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "updated_at"}))

	_, err := pg.Get(context.Background(), "school-1", "users", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueryBuildsEqualFilter(t *testing.T) {
	pg, mock, cleanup := newPostgresMock(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "data", "updated_at"}).
		AddRow("u1", []byte(`{"role":"TEACHER"}`), now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, data, updated_at FROM documents WHERE tenant_id = $1 AND collection = $2 AND data->>$3 = $4 ORDER BY id")).
		WithArgs("school-1", "users", "role", "TEACHER").
		WillReturnRows(rows)

	docs, err := pg.Query(context.Background(), "school-1", Query{
		Collection: "users",
		Filters:    []Filter{{Field: "role", Op: OpEqual, Value: "TEACHER"}},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "u1", docs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresQueryBuildsArrayContainsFilter(t *testing.T) {
	pg, mock, cleanup := newPostgresMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`AND data->$3 @> $4::jsonb ORDER BY id`)).
		WithArgs("school-1", "subjects", "teacherIds", `["t1"]`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "updated_at"}))

	docs, err := pg.Query(context.Background(), "school-1", Query{
		Collection: "subjects",
		Filters:    []Filter{{Field: "teacherIds", Op: OpArrayContains, Value: "t1"}},
	})
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresApplyRunsBatchInOneTransaction(t *testing.T) {
	pg, mock, cleanup := newPostgresMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM documents").
		WithArgs("school-1", "users", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO documents").
		WithArgs("school-1", "classes", "c1", []byte(`{"studentIds":[]}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_notify($1, $2)")).
		WithArgs("document_changes", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_notify($1, $2)")).
		WithArgs("document_changes", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := pg.Apply(context.Background(), "school-1", []WriteOp{
		{Kind: WriteDelete, Collection: "users", ID: "u1"},
		{Kind: WritePut, Collection: "classes", ID: "c1", Data: json.RawMessage(`{"studentIds":[]}`)},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresApplyRollsBackOnFailure(t *testing.T) {
	pg, mock, cleanup := newPostgresMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO documents").
		WithArgs("school-1", "users", "u1", []byte(`{}`)).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := pg.Apply(context.Background(), "school-1", []WriteOp{
		{Kind: WritePut, Collection: "users", ID: "u1", Data: json.RawMessage(`{}`)},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresApplyEmptyBatchIsNoop(t *testing.T) {
	pg, mock, cleanup := newPostgresMock(t)
	defer cleanup()

	require.NoError(t, pg.Apply(context.Background(), "school-1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSubscribeDeliversInitialSnapshot(t *testing.T) {
	pg, mock, cleanup := newPostgresMock(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("SELECT id, data, updated_at FROM documents").
		WithArgs("school-1", "sessions").
		WillReturnRows(sqlmock.NewRows([]string{"id", "data", "updated_at"}).
			AddRow("q1:s1", []byte(`{"quizId":"q1"}`), now))

	var snapshots [][]Document
	unsub, err := pg.Subscribe(context.Background(), "school-1", Query{Collection: "sessions"}, func(docs []Document) {
		snapshots = append(snapshots, docs)
	})
	require.NoError(t, err)
	defer unsub()

	require.Len(t, snapshots, 1)
	require.Len(t, snapshots[0], 1)
	assert.Equal(t, "q1:s1", snapshots[0][0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
