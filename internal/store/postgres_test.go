package store

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_EnsureSchemaRunsInTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS documents")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS documents_body_gin")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, NewPostgresStore(db).EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetDecodesBody(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT body FROM documents WHERE collection = $1 AND id = $2")).
		WithArgs("customers", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow([]byte(`{"id":"c1","phone_number":"+1555","total_calls":2}`)))

	var got testDoc
	require.NoError(t, NewPostgresStore(db).Get(context.Background(), "customers", "c1", &got))
	assert.Equal(t, "c1", got.ID)
	assert.Equal(t, 2, got.Calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMissingIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT body FROM documents")).
		WithArgs("customers", "nope").
		WillReturnRows(sqlmock.NewRows([]string{"body"}))

	var got testDoc
	err = NewPostgresStore(db).Get(context.Background(), "customers", "nope", &got)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_UpdateWithoutRowIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET body = body || $3::jsonb")).
		WithArgs("customers", "c1", `{"name":"Alice"}`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewPostgresStore(db).Update(context.Background(), "customers", "c1", map[string]any{"name": "Alice"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindUsesContainmentFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT body FROM documents WHERE collection = $1 AND body @> $2::jsonb ORDER BY body ->> $3 DESC, id LIMIT $4",
	)).
		WithArgs("calls", `{"customer_id":"cust-1"}`, "date", int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"body"}).
			AddRow([]byte(`{"id":"b"}`)).
			AddRow([]byte(`{"id":"a"}`)))

	raws, err := NewPostgresStore(db).Find(context.Background(), "calls",
		Where("customer_id", "cust-1").OrderByDesc("date").WithLimit(10))
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.JSONEq(t, `{"id":"b"}`, string(raws[0]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildFindSQL_NumericFilterKeepsJSONType(t *testing.T) {
	q, args := buildFindSQL("customers", Where("total_calls", 3))
	assert.Equal(t, "SELECT body FROM documents WHERE collection = $1 AND body @> $2::jsonb ORDER BY id", q)
	assert.Equal(t, []any{"customers", `{"total_calls":3}`}, args)
}

func TestBuildFindSQL_OneContainmentPerFilter(t *testing.T) {
	q, args := buildFindSQL("events", Where("customer_id", "c1").And("status", "scheduled"))
	assert.Equal(t, "SELECT body FROM documents WHERE collection = $1 AND body @> $2::jsonb AND body @> $3::jsonb ORDER BY id", q)
	assert.Equal(t, []any{"events", `{"customer_id":"c1"}`, `{"status":"scheduled"}`}, args)
}
