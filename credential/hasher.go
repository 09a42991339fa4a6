// Package credential turns passwords into slow, salted digests and checks
// them again later.
package credential

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Hasher derives and verifies password digests.
type Hasher interface {
	// Hash returns a salted digest of plaintext.
	Hash(ctx context.Context, plaintext string) (string, error)
	// Verify reports whether plaintext matches digest. A mismatch is
	// (false, nil); err is reserved for a digest that cannot be used.
	Verify(ctx context.Context, plaintext, digest string) (bool, error)
}

var (
	// ErrPasswordTooLong is returned by Hash for passwords bcrypt would
	// silently truncate.
	ErrPasswordTooLong = errors.New("credential: password longer than 72 bytes")

	// ErrInvalidCost is returned by NewBcrypt for a cost outside bcrypt's range.
	ErrInvalidCost = errors.New("credential: invalid bcrypt cost")
)

// ─────────────────────────────────────────────────────────────────────────────
// Bcrypt
// ─────────────────────────────────────────────────────────────────────────────

// BcryptConfig configures NewBcrypt.
type BcryptConfig struct {
	// Cost is the bcrypt work factor, bcrypt.MinCost..bcrypt.MaxCost.
	// Zero means bcrypt.DefaultCost.
	Cost int

	// MaxConcurrent caps how many hash or verify calls run at once. A call
	// over the cap waits for a slot or for its context to end.
	// Zero means runtime.NumCPU().
	MaxConcurrent int
}

// Bcrypt is a Hasher backed by golang.org/x/crypto/bcrypt.
type Bcrypt struct {
	cost  int
	slots *semaphore.Weighted
}

// NewBcrypt validates cfg and returns a ready Bcrypt.
func NewBcrypt(cfg BcryptConfig) (*Bcrypt, error) {
	cost := cfg.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%w: %d (want %d..%d)", ErrInvalidCost, cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	n := cfg.MaxConcurrent
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return &Bcrypt{cost: cost, slots: semaphore.NewWeighted(int64(n))}, nil
}

// maxPasswordBytes is the longest input bcrypt reads.
const maxPasswordBytes = 72

// Cost reports the configured work factor.
func (b *Bcrypt) Cost() int { return b.cost }

// Hash implements Hasher.
func (b *Bcrypt) Hash(ctx context.Context, plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	if err := b.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("credential: hash: %w", err)
	}
	defer b.slots.Release(1)

	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("credential: hash: %w", err)
	}
	return string(digest), nil
}

// Verify implements Hasher. The comparison is constant-time.
//
// bcrypt only reads the first 72 bytes, so a longer plaintext could match a
// digest of its prefix. Such input is never a match; it still pays for one
// comparison so its timing looks like any other wrong password.
func (b *Bcrypt) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	if err := b.slots.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("credential: verify: %w", err)
	}
	defer b.slots.Release(1)

	tooLong := len(plaintext) > maxPasswordBytes
	if tooLong {
		plaintext = plaintext[:maxPasswordBytes]
	}

	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	switch {
	case err == nil:
		return !tooLong, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword),
		errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	}
	return false, fmt.Errorf("credential: verify: %w", err)
}

var _ Hasher = (*Bcrypt)(nil)
