package repo

import (
	"context"
	"testing"
	"time"

	"github.com/storechat/widget-backend/internal/domain"
)

func TestCountMessages_Error_NoTable(t *testing.T) {
	db := newRepoDB(t /* no migrations */)
	if _, err := CountMessages(context.Background(), db, "c1"); err == nil {
		t.Fatal("expected error counting without table")
	}
}

func TestListMessages_ChronologicalOrder(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.Message{})
	ctx := context.Background()

	convo, err := CreateConversation(ctx, db, "acme.myshopify.com", "s1", "", "")
	if err != nil {
		t.Fatalf("seed convo: %v", err)
	}

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	rows := []domain.Message{
		{ID: "m2", ConversationID: convo.ID, Role: domain.RoleAssistant, Content: "second", CreatedAt: base.Add(time.Minute)},
		{ID: "m1", ConversationID: convo.ID, Role: domain.RoleUser, Content: "first", CreatedAt: base},
	}
	for _, m := range rows {
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed %s: %v", m.ID, err)
		}
	}

	got, err := ListMessages(ctx, db, convo.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(got) != 2 || got[0].ID != "m1" || got[1].ID != "m2" {
		t.Fatalf("expected chronological [m1 m2], got %+v", got)
	}
}

func TestCountMessagesSince_UsesMessageTimestamps(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.Message{})
	ctx := context.Background()
	shop := "acme.myshopify.com"

	window := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// The conversation predates the window; only message timestamps decide.
	convo := domain.Conversation{
		ID: "c1", Shop: shop, SessionID: "s1",
		Status: domain.ConversationActive, CreatedAt: window.AddDate(0, -1, 0),
	}
	if err := db.Create(&convo).Error; err != nil {
		t.Fatalf("seed convo: %v", err)
	}
	other := domain.Conversation{
		ID: "cx", Shop: "other.myshopify.com", SessionID: "s1",
		Status: domain.ConversationActive, CreatedAt: window,
	}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("seed other: %v", err)
	}

	msgs := []domain.Message{
		{ID: "old", ConversationID: "c1", Role: domain.RoleUser, Content: "x", CreatedAt: window.Add(-time.Second)},
		{ID: "in1", ConversationID: "c1", Role: domain.RoleUser, Content: "x", CreatedAt: window},
		{ID: "in2", ConversationID: "c1", Role: domain.RoleAssistant, Content: "x", CreatedAt: window.Add(time.Hour)},
		{ID: "foreign", ConversationID: "cx", Role: domain.RoleUser, Content: "x", CreatedAt: window.Add(time.Hour)},
	}
	for _, m := range msgs {
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed %s: %v", m.ID, err)
		}
	}

	n, err := CountMessagesSince(ctx, db, shop, window)
	if err != nil {
		t.Fatalf("CountMessagesSince: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 in-window messages for shop, got %d", n)
	}
}

func TestWindowUsage_CombinesBothCounters(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.Message{})
	ctx := context.Background()
	shop := "acme.myshopify.com"
	window := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	convo := domain.Conversation{
		ID: "c1", Shop: shop, SessionID: "s1",
		Status: domain.ConversationActive, CreatedAt: window.Add(time.Hour),
	}
	if err := db.Create(&convo).Error; err != nil {
		t.Fatalf("seed convo: %v", err)
	}
	msg := domain.Message{ID: "m1", ConversationID: "c1", Role: domain.RoleUser, Content: "x", CreatedAt: window.Add(2 * time.Hour)}
	if err := db.Create(&msg).Error; err != nil {
		t.Fatalf("seed msg: %v", err)
	}

	u, err := WindowUsage(ctx, db, shop, window)
	if err != nil {
		t.Fatalf("WindowUsage: %v", err)
	}
	if u.Conversations != 1 || u.Messages != 1 {
		t.Fatalf("expected 1/1, got %+v", u)
	}
}

func TestConversationsStats_CountAndLatest(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{})
	ctx := context.Background()
	shop := "acme.myshopify.com"

	count, maxTS, err := ConversationsStats(ctx, db, shop)
	if err != nil || count != 0 || maxTS != nil {
		t.Fatalf("empty shop: count=%d max=%v err=%v", count, maxTS, err)
	}

	if _, err := CreateConversation(ctx, db, shop, "s1", "", ""); err != nil {
		t.Fatalf("seed: %v", err)
	}
	count, maxTS, err = ConversationsStats(ctx, db, shop)
	if err != nil {
		t.Fatalf("ConversationsStats: %v", err)
	}
	if count != 1 || maxTS == nil || maxTS.IsZero() {
		t.Fatalf("expected count=1 with timestamp, got count=%d max=%v", count, maxTS)
	}
}
