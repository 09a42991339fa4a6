package db_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/Skryldev/messenger-directory/db"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDefaultErrorMapper(t *testing.T) {
	m := db.DefaultErrorMapper()

	cases := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", sql.ErrNoRows, db.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), db.ErrNotFound},
		{"deadline", context.DeadlineExceeded, db.ErrTimeout},
		{"canceled", context.Canceled, db.ErrTimeout},
		{"pq unique", &pq.Error{Code: "23505"}, db.ErrDuplicateKey},
		{"pq foreign key", &pq.Error{Code: "23503"}, db.ErrForeignKeyViolation},
		{"pq connection", &pq.Error{Code: "08006"}, db.ErrConnectionFailed},
		{"pgx unique", &pgconn.PgError{Code: "23505"}, db.ErrDuplicateKey},
		{"pgx check", &pgconn.PgError{Code: "23514"}, db.ErrCheckViolation},
		{"pgx deadlock", &pgconn.PgError{Code: "40P01"}, db.ErrDeadlock},
		{"pgx statement timeout", &pgconn.PgError{Code: "57014"}, db.ErrTimeout},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, db.ErrDuplicateKey},
		{"mysql foreign key", &mysql.MySQLError{Number: 1452}, db.ErrForeignKeyViolation},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, db.ErrDeadlock},
		{"mysql invalid conn", mysql.ErrInvalidConn, db.ErrConnectionFailed},
		{"sqlite unique", errors.New("UNIQUE constraint failed: accounts.username"), db.ErrDuplicateKey},
		{"sqlite foreign key", errors.New("FOREIGN KEY constraint failed"), db.ErrForeignKeyViolation},
		{"sqlite locked", errors.New("database is locked"), db.ErrDeadlock},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := m.Map(tc.in)
			if !errors.Is(got, tc.want) {
				t.Fatalf("Map(%v) = %v, want %v", tc.in, got, tc.want)
			}
			if !errors.Is(got, tc.in) {
				t.Fatalf("Map(%v) lost the original error", tc.in)
			}
		})
	}
}

func TestDefaultErrorMapper_Passthrough(t *testing.T) {
	m := db.DefaultErrorMapper()

	if m.Map(nil) != nil {
		t.Fatal("nil must map to nil")
	}

	plain := errors.New("syntax error near SELEKT")
	if got := m.Map(plain); got != plain {
		t.Fatalf("unknown error should pass through, got %v", got)
	}

	mapped := &db.DBError{Sentinel: db.ErrNotFound, Cause: sql.ErrNoRows}
	if got := m.Map(mapped); got != error(mapped) {
		t.Fatalf("already mapped error should pass through, got %v", got)
	}
}

func TestIsUnavailable(t *testing.T) {
	m := db.DefaultErrorMapper()

	if !db.IsUnavailable(m.Map(context.DeadlineExceeded)) {
		t.Fatal("timeout should be unavailable")
	}
	if !db.IsUnavailable(m.Map(mysql.ErrInvalidConn)) {
		t.Fatal("connection failure should be unavailable")
	}
	if db.IsUnavailable(m.Map(&pq.Error{Code: "23505"})) {
		t.Fatal("constraint violation is not unavailability")
	}
}

func TestChainMapper_FirstMatchWins(t *testing.T) {
	custom := db.ErrorMapperFunc(func(err error) error {
		if err.Error() == "custom" {
			return &db.DBError{Sentinel: db.ErrCheckViolation, Cause: err, Message: "custom rule"}
		}
		return err
	})
	m := db.ChainMapper(custom, db.DefaultErrorMapper())

	if got := m.Map(errors.New("custom")); !db.IsCheckViolation(got) {
		t.Fatalf("custom mapper not applied: %v", got)
	}
	if got := m.Map(sql.ErrNoRows); !db.IsNotFound(got) {
		t.Fatalf("fallback mapper not applied: %v", got)
	}
}
