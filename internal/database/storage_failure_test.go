package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/thereayou/artem-chat/internal/models"
)

func newMockDB(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Discard,
	})
	require.NoError(t, err)
	return NewDatabase(gdb), mock
}

func TestGetUser_StorageFailure(t *testing.T) {
	d, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "users"`).WillReturnError(errors.New("connection reset by peer"))

	_, err := d.GetUser(context.Background(), 1)
	require.ErrorIs(t, err, models.ErrStorage)
	assert.Equal(t, "storage_failure", models.Code(err))
	assert.NotContains(t, models.PublicMessage(err), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUser_NotFound(t *testing.T) {
	d, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "users"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := d.GetUser(context.Background(), 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_StorageFailureRollsBack(t *testing.T) {
	d, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "users"`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := d.CreateUser(context.Background(), &models.User{Username: "a", Tag: "@a", PasswordHash: "h"})
	require.ErrorIs(t, err, models.ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveMessage_StorageFailure(t *testing.T) {
	d, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "users"`).WillReturnError(errors.New("timeout"))
	mock.ExpectRollback()

	_, err := d.SaveMessage(context.Background(), 1, 2, "hi")
	require.ErrorIs(t, err, models.ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeExpiredSessions_StorageFailure(t *testing.T) {
	d, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "sessions"`).WillReturnError(errors.New("read only"))
	mock.ExpectRollback()

	_, err := d.PurgeExpiredSessions(context.Background(), time.Now())
	require.ErrorIs(t, err, models.ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}
