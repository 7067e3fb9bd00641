package records

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/symbiobot/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostgresWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

const pgUpsert = `(?s)^INSERT\s+INTO\s+profile_records\s*\(key,\s*value\)\s*VALUES\s*\(\$1,\s*\$2::jsonb\)\s*ON\s+CONFLICT`

func TestPostgres_Set(t *testing.T) {
	repo, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectExec(pgUpsert).
		WithArgs("1001", `{"user_id":1001}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Set(context.Background(), "1001", []byte(`{"user_id":1001}`)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetDBError(t *testing.T) {
	repo, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectExec(pgUpsert).WillReturnError(errors.New("db down"))

	err := repo.Set(context.Background(), "1", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestPostgres_Get(t *testing.T) {
	repo, mock, db := newPostgresWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+value\s+FROM\s+profile_records\s+WHERE\s+key\s*=\s*\$1$`
	mock.ExpectQuery(q).WithArgs("1001").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"a":1}`)))
	mock.ExpectQuery(q).WithArgs("404").WillReturnError(sql.ErrNoRows)

	got, err := repo.Get(context.Background(), "1001")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	_, err = repo.Get(context.Background(), "404")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetManyCommits(t *testing.T) {
	repo, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(pgUpsert).WithArgs("1", `1`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(pgUpsert).WithArgs("2", `2`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SetMany(context.Background(), []Record{
		{Key: "1", Value: []byte(`1`)},
		{Key: "2", Value: []byte(`2`)},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SetManyRollsBack(t *testing.T) {
	repo, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(pgUpsert).WithArgs("1", `1`).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := repo.SetMany(context.Background(), []Record{{Key: "1", Value: []byte(`1`)}})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DeleteAndList(t *testing.T) {
	repo, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+profile_records\s+WHERE\s+key\s*=\s*\$1$`).
		WithArgs("7").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`(?s)^SELECT\s+key,\s*value\s+FROM\s+profile_records\s+ORDER\s+BY\s+seq$`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow("2", []byte(`{}`)).
			AddRow("1", []byte(`{}`)))

	ctx := context.Background()
	require.NoError(t, repo.Delete(ctx, "7"))
	recs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "2", recs[0].Key)
	assert.Equal(t, "1", recs[1].Key)
	require.NoError(t, mock.ExpectationsWereMet())
}
