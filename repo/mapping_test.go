package repo

import (
	"database/sql"
	"testing"
	"time"

	"github.com/Skryldev/messenger-directory/models"
)

func TestToOutboundAndInbound(t *testing.T) {
	sent := time.Date(2024, 2, 2, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	row := messageJoinRow{
		Message: models.Message{
			ID:     7,
			Body:   "hi",
			SentAt: sent,
		},
		Counterpart: profileRow{
			Username:  "bob",
			FirstName: "Bob",
			LastName:  "Builder",
			Phone:     sql.NullString{String: "+15550100", Valid: true},
		},
	}

	out := toOutbound(row)
	if out.ID != 7 || out.Body != "hi" {
		t.Fatalf("unexpected outbound: %+v", out)
	}
	if out.ToUser.Username != "bob" || out.ToUser.Phone != "+15550100" {
		t.Fatalf("unexpected recipient: %+v", out.ToUser)
	}
	if out.SentAt.Location() != time.UTC || !out.SentAt.Equal(sent) {
		t.Fatalf("sentAt not normalised to UTC: %v", out.SentAt)
	}
	if out.ReadAt != nil {
		t.Fatalf("expected nil readAt, got %v", out.ReadAt)
	}

	read := sent.Add(time.Minute)
	row.ReadAt = &read
	row.Counterpart.Phone = sql.NullString{}
	in := toInbound(row)
	if in.FromUser.Username != "bob" || in.FromUser.Phone != "" {
		t.Fatalf("unexpected sender: %+v", in.FromUser)
	}
	if in.ReadAt == nil || !in.ReadAt.Equal(read) || in.ReadAt.Location() != time.UTC {
		t.Fatalf("unexpected readAt: %v", in.ReadAt)
	}
	if in.ReadAt == row.ReadAt {
		t.Fatal("readAt must be copied, not shared with the row")
	}
}

func TestNullString(t *testing.T) {
	if nullString("").Valid {
		t.Fatal("empty string must map to NULL")
	}
	if ns := nullString("x"); !ns.Valid || ns.String != "x" {
		t.Fatalf("unexpected %+v", ns)
	}
}
