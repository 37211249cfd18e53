package counters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/postgres"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	client := postgres.Wrap(db)
	t.Cleanup(func() { client.Close() })
	return NewPostgresStore(client), mock
}

func TestPostgresStoreGetCounterData(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"name", "day", "value"}).
		AddRow("a", time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), int64(5)).
		AddRow("a", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), int64(3))
	mock.ExpectQuery("SELECT name, day, value FROM counter_data").
		WithArgs(sqlmock.AnyArg(), "2020-01-01", nil).
		WillReturnRows(rows)

	data, err := store.GetCounterData(context.Background(), []string{"a", "b"}, dayPtr("2020-01-01"), nil)
	require.NoError(t, err)

	assert.Equal(t, []DataPoint{
		{Timestamp: 1577836800, Value: 3},
		{Timestamp: 1577923200, Value: 5},
	}, data["a"])
	assert.Equal(t, []DataPoint{}, data["b"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetCounterDataQueryError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT name, day, value FROM counter_data").WillReturnError(errors.New("connection reset"))

	_, err := store.GetCounterData(context.Background(), []string{"a"}, nil, nil)
	assert.ErrorContains(t, err, "connection reset")
}

func TestPostgresStoreNoNamesSkipsQuery(t *testing.T) {
	store, mock := newMockStore(t)
	data, err := store.GetCounterData(context.Background(), nil, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSaveDays(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO counter_data").WithArgs("a", "2020-01-01", int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO counter_data").WithArgs("a", "2020-01-02", int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.SaveDays(context.Background(), "a", map[string]int64{"2020-01-02": 5, "2020-01-01": 3})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSaveDaysRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO counter_data").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.SaveDays(context.Background(), "a", map[string]int64{"2020-01-01": 1})
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreEnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS counter_data").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
