package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Skryldev/messenger-directory/db"
	"github.com/Skryldev/messenger-directory/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// AccountRepository interface
// ─────────────────────────────────────────────────────────────────────────────

// AccountRepository defines the contract for account persistence.
type AccountRepository interface {
	Insert(ctx context.Context, params models.NewAccountParams) (*models.Account, error)
	GetDetails(ctx context.Context, username string) (*models.AccountDetails, error)
	PasswordHash(ctx context.Context, username string) (string, error)
	TouchLastLogin(ctx context.Context, username string, at time.Time) error
	ListProfiles(ctx context.Context) ([]models.Profile, error)
}

// accountRepo is the production implementation backed by a db.Querier.
type accountRepo struct {
	q db.Querier
}

// NewAccountRepo returns an AccountRepository backed by q.
// q can be a *db.DB or *db.Tx — both satisfy db.Querier.
func NewAccountRepo(q db.Querier) AccountRepository {
	return &accountRepo{q: q}
}

// ─────────────────────────────────────────────────────────────────────────────
// SQL constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	// No RETURNING: MySQL has none, and every column is known up front.
	sqlInsertAccount = `
		INSERT INTO accounts (username, password_hash, first_name, last_name, phone, joined_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`

	sqlGetAccountDetails = `
		SELECT username, first_name, last_name, phone, joined_at, last_login_at
		FROM   accounts
		WHERE  username = $1`

	sqlGetPasswordHash = `
		SELECT password_hash
		FROM   accounts
		WHERE  username = $1`

	// last_login_at only moves forward, whatever the caller's clock says.
	sqlTouchLastLogin = `
		UPDATE accounts
		SET    last_login_at = CASE WHEN last_login_at > $1 THEN last_login_at ELSE $1 END
		WHERE  username = $2`

	sqlListProfiles = `
		SELECT username, first_name, last_name, phone
		FROM   accounts
		ORDER  BY username`
)

// ─────────────────────────────────────────────────────────────────────────────
// Insert
// ─────────────────────────────────────────────────────────────────────────────

// storedTime is t as the stores keep it: UTC, microsecond precision
// (TIMESTAMPTZ, DATETIME(6)).
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Insert persists a new account with joined_at = last_login_at =
// params.JoinedAt. A taken username surfaces as db.ErrDuplicateKey.
func (r *accountRepo) Insert(ctx context.Context, params models.NewAccountParams) (*models.Account, error) {
	joined := storedTime(params.JoinedAt)
	_, err := r.q.Exec(ctx, sqlInsertAccount,
		params.Username,
		db.Sensitive(params.PasswordHash),
		params.FirstName,
		params.LastName,
		nullString(params.Phone),
		joined,
	)
	if err != nil {
		return nil, fmt.Errorf("repo/account: insert: %w", err)
	}
	return &models.Account{
		Username:     params.Username,
		PasswordHash: params.PasswordHash,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Phone:        params.Phone,
		JoinedAt:     joined,
		LastLoginAt:  joined,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Lookups
// ─────────────────────────────────────────────────────────────────────────────

// GetDetails returns the public fields and timestamps of one account.
// Returns db.ErrNotFound when no record matches.
func (r *accountRepo) GetDetails(ctx context.Context, username string) (*models.AccountDetails, error) {
	row := r.q.QueryRow(ctx, sqlGetAccountDetails, username)
	return scanAccountDetails(row)
}

// PasswordHash returns the stored digest for username.
// Returns db.ErrNotFound when no record matches.
func (r *accountRepo) PasswordHash(ctx context.Context, username string) (string, error) {
	var hash string
	if err := r.q.QueryRow(ctx, sqlGetPasswordHash, username).Scan(&hash); err != nil {
		return "", fmt.Errorf("repo/account: password hash: %w", err)
	}
	return hash, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// TouchLastLogin
// ─────────────────────────────────────────────────────────────────────────────

// TouchLastLogin advances last_login_at to at unless it is already later.
// Returns db.ErrNotFound if no row matched.
func (r *accountRepo) TouchLastLogin(ctx context.Context, username string, at time.Time) error {
	res, err := r.q.Exec(ctx, sqlTouchLastLogin, storedTime(at), username)
	if err != nil {
		return fmt.Errorf("repo/account: touch last login: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repo/account: touch last login: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("repo/account: touch last login: %w", db.ErrNotFound)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// ListProfiles
// ─────────────────────────────────────────────────────────────────────────────

// ListProfiles returns every account's public profile ordered by username.
// The result is never nil.
func (r *accountRepo) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	rows, err := r.q.Query(ctx, sqlListProfiles)
	if err != nil {
		return nil, fmt.Errorf("repo/account: list: %w", err)
	}
	defer rows.Close()

	profiles := make([]models.Profile, 0)
	for rows.Next() {
		var p profileRow
		if err := rows.Scan(&p.Username, &p.FirstName, &p.LastName, &p.Phone); err != nil {
			return nil, fmt.Errorf("repo/account: scan: %w", err)
		}
		profiles = append(profiles, p.toProfile())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo/account: list: %w", err)
	}
	return profiles, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Row mapping
// ─────────────────────────────────────────────────────────────────────────────

// profileRow is the raw column set of a public profile.
type profileRow struct {
	Username  string
	FirstName string
	LastName  string
	Phone     sql.NullString
}

func (p profileRow) toProfile() models.Profile {
	return models.Profile{
		Username:  p.Username,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Phone:     p.Phone.String,
	}
}

// scanAccountDetails scans a single details row. Centralising the scan call
// means adding or removing columns only requires a change in one place.
func scanAccountDetails(row *db.Row) (*models.AccountDetails, error) {
	var (
		p         profileRow
		joined    time.Time
		lastLogin time.Time
	)
	err := row.Scan(&p.Username, &p.FirstName, &p.LastName, &p.Phone, &joined, &lastLogin)
	if err != nil {
		return nil, fmt.Errorf("repo/account: %w", err)
	}
	return &models.AccountDetails{
		Profile:     p.toProfile(),
		JoinedAt:    joined.UTC(),
		LastLoginAt: lastLogin.UTC(),
	}, nil
}

// nullString stores an empty optional column as NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ AccountRepository = (*accountRepo)(nil)
