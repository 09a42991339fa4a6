package repo_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Skryldev/messenger-directory/db"
	"github.com/Skryldev/messenger-directory/migrations"
	"github.com/Skryldev/messenger-directory/models"
	"github.com/Skryldev/messenger-directory/repo"
	_ "github.com/mattn/go-sqlite3"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test fixture
// ─────────────────────────────────────────────────────────────────────────────

// newTestStore returns a SQLite file database carrying the real schema.
func newTestStore(t *testing.T) *db.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "directory.db")
	if err := migrations.Up(migrations.SQLite, path, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	database, err := db.OpenWithDriver("sqlite3", db.DriverOptions{Database: path}, db.Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func seedAccount(t *testing.T, r repo.AccountRepository, username string) *models.Account {
	t.Helper()
	a, err := r.Insert(context.Background(), models.NewAccountParams{
		Username:     username,
		PasswordHash: "hash-" + username,
		FirstName:    "First " + username,
		LastName:     "Last " + username,
		Phone:        "+1555" + username,
		JoinedAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("seed %s: %v", username, err)
	}
	return a
}

// seedMessage writes a message row directly; the repositories never write
// messages.
func seedMessage(t *testing.T, q db.Querier, from, to, body string, sentAt time.Time, readAt *time.Time) {
	t.Helper()
	var read any
	if readAt != nil {
		read = readAt.UTC()
	}
	_, err := q.Exec(context.Background(),
		`INSERT INTO messages (from_username, to_username, body, sent_at, read_at) VALUES ($1, $2, $3, $4, $5)`,
		from, to, body, sentAt.UTC(), read)
	if err != nil {
		t.Fatalf("seed message %s->%s: %v", from, to, err)
	}
}
