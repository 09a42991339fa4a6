// Package directory is the account directory of the messenger: it registers
// accounts, checks passwords, tracks logins and reads message history joined
// with the other party's public profile.
//
// A Directory holds nothing but its collaborators, so one value can serve
// any number of goroutines.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Skryldev/messenger-directory/credential"
	"github.com/Skryldev/messenger-directory/db"
	"github.com/Skryldev/messenger-directory/models"
	"github.com/Skryldev/messenger-directory/repo"
)

// Directory is the account directory service.
type Directory struct {
	accounts repo.AccountRepository
	messages repo.MessageRepository
	hasher   credential.Hasher
	logger   *slog.Logger
	now      func() time.Time

	dummyMu sync.Mutex
	dummy   string
}

// Option configures a Directory.
type Option func(*Directory)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Directory) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClock replaces time.Now for joined_at and last_login_at.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) {
		if now != nil {
			d.now = now
		}
	}
}

// New returns a Directory reading and writing through q and hashing with h.
// q can be a *db.DB or a *db.Tx.
func New(q db.Querier, h credential.Hasher, opts ...Option) *Directory {
	d := &Directory{
		accounts: repo.NewAccountRepo(q),
		messages: repo.NewMessageRepo(q),
		hasher:   h,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.dummyDigest(context.Background())
	return d
}

// ─────────────────────────────────────────────────────────────────────────────
// Account lifecycle
// ─────────────────────────────────────────────────────────────────────────────

// Register creates an account. joined_at and last_login_at are both set to
// the current time. The returned Account carries the new digest; it is
// tagged out of JSON and must not be passed further.
func (d *Directory) Register(ctx context.Context, p models.RegisterParams) (*models.Account, error) {
	const op = "register"
	if p.Username == "" || p.Password == "" {
		return nil, &Error{Kind: KindInvalid, Op: op, Username: p.Username,
			Err: errors.New("username and password are required")}
	}

	digest, err := d.hasher.Hash(ctx, p.Password)
	if err != nil {
		if errors.Is(err, credential.ErrPasswordTooLong) {
			return nil, &Error{Kind: KindInvalid, Op: op, Username: p.Username, Err: err}
		}
		d.logger.ErrorContext(ctx, "directory: hash failed", "username", p.Username, "error", err)
		return nil, &Error{Kind: KindInternal, Op: op, Username: p.Username, Err: err}
	}

	acc, err := d.accounts.Insert(ctx, models.NewAccountParams{
		Username:     p.Username,
		PasswordHash: digest,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Phone:        p.Phone,
		JoinedAt:     d.now(),
	})
	if err != nil {
		return nil, d.storeError(ctx, op, p.Username, err)
	}

	d.logger.InfoContext(ctx, "directory: account registered", "username", acc.Username)
	return acc, nil
}

// Authenticate reports whether password belongs to username. An unknown
// username is (false, nil), and costs the same bcrypt work as a wrong
// password so the two cannot be told apart by timing.
func (d *Directory) Authenticate(ctx context.Context, username, password string) (bool, error) {
	const op = "authenticate"

	digest, err := d.accounts.PasswordHash(ctx, username)
	if err != nil {
		if db.IsNotFound(err) {
			d.verifyDummy(ctx, password)
			return false, nil
		}
		return false, d.storeError(ctx, op, username, err)
	}

	ok, err := d.hasher.Verify(ctx, password, digest)
	if err != nil {
		d.logger.ErrorContext(ctx, "directory: verify failed", "username", username, "error", err)
		return false, &Error{Kind: KindInternal, Op: op, Username: username, Err: err}
	}
	return ok, nil
}

// RecordLogin stamps username's last_login_at with the current time. The
// stored value never moves backwards. An unknown username is KindNotFound.
func (d *Directory) RecordLogin(ctx context.Context, username string) error {
	if err := d.accounts.TouchLastLogin(ctx, username, d.now()); err != nil {
		return d.storeError(ctx, "record login", username, err)
	}
	return nil
}

// Login runs Authenticate and, on success, RecordLogin. The two steps are
// separate statements; a failure between them leaves last_login_at as it was.
func (d *Directory) Login(ctx context.Context, username, password string) (bool, error) {
	ok, err := d.Authenticate(ctx, username, password)
	if err != nil || !ok {
		return false, err
	}
	if err := d.RecordLogin(ctx, username); err != nil {
		return false, err
	}
	return true, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Lookups
// ─────────────────────────────────────────────────────────────────────────────

// ListAll returns every account's public profile ordered by username.
func (d *Directory) ListAll(ctx context.Context) ([]models.Profile, error) {
	profiles, err := d.accounts.ListProfiles(ctx)
	if err != nil {
		return nil, d.storeError(ctx, "list", "", err)
	}
	return profiles, nil
}

// Get returns one account without its digest.
func (d *Directory) Get(ctx context.Context, username string) (*models.AccountDetails, error) {
	details, err := d.accounts.GetDetails(ctx, username)
	if err != nil {
		return nil, d.storeError(ctx, "get", username, err)
	}
	return details, nil
}

// MessagesFrom returns what username sent, each with the recipient's
// profile. An account with no messages, or no account at all, gives an
// empty slice.
func (d *Directory) MessagesFrom(ctx context.Context, username string) ([]models.OutboundMessage, error) {
	msgs, err := d.messages.ListSent(ctx, username)
	if err != nil {
		return nil, d.storeError(ctx, "messages from", username, err)
	}
	return msgs, nil
}

// MessagesTo returns what username received, each with the sender's profile.
func (d *Directory) MessagesTo(ctx context.Context, username string) ([]models.InboundMessage, error) {
	msgs, err := d.messages.ListReceived(ctx, username)
	if err != nil {
		return nil, d.storeError(ctx, "messages to", username, err)
	}
	return msgs, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

// storeError classifies a repository error. Nothing is retried.
func (d *Directory) storeError(ctx context.Context, op, username string, err error) error {
	switch {
	case db.IsNotFound(err):
		return &Error{Kind: KindNotFound, Op: op, Username: username, Err: err}
	case db.IsDuplicateKey(err):
		d.logger.InfoContext(ctx, "directory: username taken", "username", username)
		return &Error{Kind: KindConflict, Op: op, Username: username, Err: err}
	}
	d.logger.ErrorContext(ctx, "directory: store failure", "op", op, "username", username, "error", err)
	return &Error{Kind: KindStoreFailure, Op: op, Username: username, Err: err}
}

// verifyDummy burns one verification against a digest of the configured
// cost.
func (d *Directory) verifyDummy(ctx context.Context, password string) {
	if digest := d.dummyDigest(ctx); digest != "" {
		_, _ = d.hasher.Verify(ctx, password, digest)
	}
}

// dummyDigest returns the digest verifyDummy compares against. New builds
// it up front; a failed attempt is retried on the next call.
func (d *Directory) dummyDigest(ctx context.Context) string {
	d.dummyMu.Lock()
	defer d.dummyMu.Unlock()
	if d.dummy != "" {
		return d.dummy
	}
	digest, err := d.hasher.Hash(context.WithoutCancel(ctx), "not-a-real-password")
	if err != nil {
		d.logger.WarnContext(ctx, "directory: dummy digest unavailable", "error", err)
		return ""
	}
	d.dummy = digest
	return digest
}
