package directory_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skryldev/messenger-directory/credential"
	"github.com/Skryldev/messenger-directory/db"
	"github.com/Skryldev/messenger-directory/directory"
	"github.com/Skryldev/messenger-directory/models"
)

func newMockDirectory(t *testing.T) (*directory.Directory, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = sqldb.Close()
	})

	h, err := credential.NewBcrypt(credential.BcryptConfig{Cost: bcrypt.MinCost})
	require.NoError(t, err)
	return directory.New(db.New(sqldb, db.Config{DriverName: "pgx"}), h), mock
}

func TestStoreFailure_Generic(t *testing.T) {
	d, mock := newMockDirectory(t)
	boom := errors.New("relation \"accounts\" does not exist")
	mock.ExpectQuery(`SELECT username, first_name`).WillReturnError(boom)

	_, err := d.ListAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, directory.ErrStoreFailure)
	assert.ErrorIs(t, err, boom, "the store error must stay reachable")
	assert.Equal(t, http.StatusInternalServerError, directory.HTTPStatus(err))
}

func TestStoreFailure_Unavailable(t *testing.T) {
	d, mock := newMockDirectory(t)
	mock.ExpectQuery(`SELECT password_hash`).WillReturnError(context.DeadlineExceeded)

	ok, err := d.Authenticate(context.Background(), "alice", "pw")
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, directory.ErrStoreFailure)
	assert.ErrorIs(t, err, db.ErrTimeout)
	assert.Equal(t, http.StatusServiceUnavailable, directory.HTTPStatus(err))
}

func TestStoreFailure_NotRetried(t *testing.T) {
	d, mock := newMockDirectory(t)
	// Exactly one statement is expected; a retry would trip ExpectationsWereMet
	// with an unexpected call.
	mock.ExpectExec(`INSERT INTO accounts`).WillReturnError(errors.New("disk full"))

	_, err := d.Register(context.Background(), models.RegisterParams{
		Username: "alice", Password: "pw", FirstName: "A", LastName: "B",
	})
	assert.ErrorIs(t, err, directory.ErrStoreFailure)
}

func TestStoreFailure_Messages(t *testing.T) {
	d, mock := newMockDirectory(t)
	mock.ExpectQuery(`FROM\s+messages`).WillReturnError(errors.New("broken pipe"))

	_, err := d.MessagesTo(context.Background(), "bob")
	var de *directory.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, directory.KindStoreFailure, de.Kind)
	assert.Equal(t, "messages to", de.Op)
	assert.Equal(t, "bob", de.Username)
}

func TestMessages_MockedJoin(t *testing.T) {
	d, mock := newMockDirectory(t)
	rows := sqlmock.NewRows([]string{"id", "body", "sent_at", "read_at", "username", "first_name", "last_name", "phone"}).
		AddRow(int64(1), "hi", mustTime(t, "2024-01-01T10:00:00Z"), nil, "bob", "Bob", "B", nil)
	mock.ExpectQuery(`JOIN\s+accounts a ON a.username = m.to_username`).
		WithArgs("alice").
		WillReturnRows(rows)

	out, err := d.MessagesFrom(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "bob", out[0].ToUser.Username)
	assert.Equal(t, "", out[0].ToUser.Phone)
	assert.Nil(t, out[0].ReadAt)
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return v
}
