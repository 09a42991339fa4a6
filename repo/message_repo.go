package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Skryldev/messenger-directory/db"
	"github.com/Skryldev/messenger-directory/models"
)

// MessageRepository reads message history joined with the counterpart's
// profile. Messages are written elsewhere; there are no write methods.
type MessageRepository interface {
	ListSent(ctx context.Context, username string) ([]models.OutboundMessage, error)
	ListReceived(ctx context.Context, username string) ([]models.InboundMessage, error)
}

type messageRepo struct {
	q db.Querier
}

// NewMessageRepo returns a MessageRepository backed by q.
func NewMessageRepo(q db.Querier) MessageRepository {
	return &messageRepo{q: q}
}

// Both joins select the counterpart account in the same column positions so
// one scan function serves either direction.
const (
	sqlListSent = `
		SELECT m.id, m.body, m.sent_at, m.read_at,
		       a.username, a.first_name, a.last_name, a.phone
		FROM   messages m
		JOIN   accounts a ON a.username = m.to_username
		WHERE  m.from_username = $1
		ORDER  BY m.sent_at, m.id`

	sqlListReceived = `
		SELECT m.id, m.body, m.sent_at, m.read_at,
		       a.username, a.first_name, a.last_name, a.phone
		FROM   messages m
		JOIN   accounts a ON a.username = m.from_username
		WHERE  m.to_username = $1
		ORDER  BY m.sent_at, m.id`
)

// ListSent returns the messages username sent, oldest first, each carrying
// the recipient's profile. An unknown username yields an empty slice.
func (r *messageRepo) ListSent(ctx context.Context, username string) ([]models.OutboundMessage, error) {
	raw, err := r.list(ctx, sqlListSent, username)
	if err != nil {
		return nil, fmt.Errorf("repo/message: sent: %w", err)
	}
	out := make([]models.OutboundMessage, 0, len(raw))
	for _, m := range raw {
		m.FromUsername, m.ToUsername = username, m.Counterpart.Username
		out = append(out, toOutbound(m))
	}
	return out, nil
}

// ListReceived returns the messages username received, oldest first, each
// carrying the sender's profile. An unknown username yields an empty slice.
func (r *messageRepo) ListReceived(ctx context.Context, username string) ([]models.InboundMessage, error) {
	raw, err := r.list(ctx, sqlListReceived, username)
	if err != nil {
		return nil, fmt.Errorf("repo/message: received: %w", err)
	}
	out := make([]models.InboundMessage, 0, len(raw))
	for _, m := range raw {
		m.FromUsername, m.ToUsername = m.Counterpart.Username, username
		out = append(out, toInbound(m))
	}
	return out, nil
}

func (r *messageRepo) list(ctx context.Context, query, username string) ([]messageJoinRow, error) {
	rows, err := r.q.Query(ctx, query, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []messageJoinRow
	for rows.Next() {
		var m messageJoinRow
		if err := rows.Scan(
			&m.ID, &m.Body, &m.SentAt, &m.ReadAt,
			&m.Counterpart.Username, &m.Counterpart.FirstName,
			&m.Counterpart.LastName, &m.Counterpart.Phone,
		); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Row mapping
// ─────────────────────────────────────────────────────────────────────────────

// messageJoinRow is one row of a message joined with the other party.
// The joins do not select the usernames; the caller fills them in from the
// queried username and the counterpart.
type messageJoinRow struct {
	models.Message
	Counterpart profileRow
}

func toOutbound(r messageJoinRow) models.OutboundMessage {
	return models.OutboundMessage{
		ID:     r.ID,
		Body:   r.Body,
		SentAt: r.SentAt.UTC(),
		ReadAt: utc(r.ReadAt),
		ToUser: r.Counterpart.toProfile(),
	}
}

func toInbound(r messageJoinRow) models.InboundMessage {
	return models.InboundMessage{
		ID:       r.ID,
		Body:     r.Body,
		SentAt:   r.SentAt.UTC(),
		ReadAt:   utc(r.ReadAt),
		FromUser: r.Counterpart.toProfile(),
	}
}

// utc copies a nullable time in UTC; nil stays nil.
func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

var _ MessageRepository = (*messageRepo)(nil)
