package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/storechat/widget-backend/internal/domain"
	"github.com/storechat/widget-backend/internal/repo"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// bindPlan seeds the catalog and binds shop to the named tier.
func bindPlan(t *testing.T, db *gorm.DB, shop, plan string) {
	t.Helper()
	ctx := context.Background()
	if err := repo.SeedPlans(ctx, db); err != nil {
		t.Fatalf("seed plans: %v", err)
	}
	p, err := repo.GetPlanByName(ctx, db, plan)
	if err != nil {
		t.Fatalf("lookup %s: %v", plan, err)
	}
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if _, err := repo.BindShopPlan(ctx, db, shop, p.ID, start, start.AddDate(0, 1, 0)); err != nil {
		t.Fatalf("bind plan: %v", err)
	}
}

// fixedClock pins the quota window to June 2025.
func fixedClock() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func TestQuota_NoPlanBinding_Allows(t *testing.T) {
	db := newServiceDB(t)
	svc := NewQuotaService(db)
	svc.Now = fixedClock

	d := svc.CanCreateConversation(context.Background(), "unbound.myshopify.com")
	if !d.Allowed {
		t.Fatalf("no plan binding must allow, got %+v", d)
	}
	d = svc.CanSendMessage(context.Background(), "unbound.myshopify.com")
	if !d.Allowed {
		t.Fatalf("no plan binding must allow messages, got %+v", d)
	}
}

func TestQuota_DatastoreError_FailsOpen(t *testing.T) {
	// No migrations at all: every count and lookup errors.
	dsn := filepath.Join(t.TempDir(), "broken.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	svc := NewQuotaService(db)
	if d := svc.CanCreateConversation(context.Background(), "acme.myshopify.com"); !d.Allowed {
		t.Fatalf("gate must fail open on datastore errors, got %+v", d)
	}
}

func TestQuota_UnlimitedPlan_AlwaysAllows(t *testing.T) {
	db := newServiceDB(t)
	shop := "big.myshopify.com"
	bindPlan(t, db, shop, "enterprise")

	svc := NewQuotaService(db)
	svc.Now = fixedClock
	ctx := context.Background()

	// Far more rows than any finite tier would allow.
	for i := 0; i < 150; i++ {
		if _, err := repo.CreateConversation(ctx, db, shop, fmt.Sprintf("s%d", i), "", ""); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}
	if d := svc.CanCreateConversation(ctx, shop); !d.Allowed {
		t.Fatalf("unlimited plan must allow, got %+v", d)
	}
}

func TestQuota_ConversationLimit_BlocksAtCap(t *testing.T) {
	db := newServiceDB(t)
	shop := "small.myshopify.com"
	ctx := context.Background()

	// A tight custom tier keeps the test fast.
	plan := domain.Plan{
		ID: "tiny", Name: "tiny", DisplayName: "Tiny",
		MaxConversations: 3, MaxMessages: 5, IsActive: true,
	}
	if err := db.Create(&plan).Error; err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if _, err := repo.BindShopPlan(ctx, db, shop, plan.ID, start, start.AddDate(0, 1, 0)); err != nil {
		t.Fatalf("bind: %v", err)
	}

	svc := NewQuotaService(db)
	svc.Now = fixedClock

	for i := 0; i < 3; i++ {
		if d := svc.CanCreateConversation(ctx, shop); !d.Allowed {
			t.Fatalf("conversation %d should be allowed: %+v", i, d)
		}
		if _, err := repo.CreateConversation(ctx, db, shop, fmt.Sprintf("s%d", i), "", ""); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	d := svc.CanCreateConversation(ctx, shop)
	if d.Allowed {
		t.Fatalf("expected block at cap, got %+v", d)
	}
	if d.Reason != ReasonConversationLimit || d.Limit != 3 || d.Used != 3 || d.PlanName != "Tiny" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestQuota_MessageLimit_CountsByMessageTimestamp(t *testing.T) {
	db := newServiceDB(t)
	shop := "small.myshopify.com"
	ctx := context.Background()

	plan := domain.Plan{
		ID: "tiny", Name: "tiny", DisplayName: "Tiny",
		MaxConversations: 10, MaxMessages: 2, IsActive: true,
	}
	if err := db.Create(&plan).Error; err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if _, err := repo.BindShopPlan(ctx, db, shop, plan.ID, start, start.AddDate(0, 1, 0)); err != nil {
		t.Fatalf("bind: %v", err)
	}

	svc := NewQuotaService(db)
	svc.Now = fixedClock

	// Conversation opened last month; only this month's messages count.
	convo := domain.Conversation{
		ID: "c1", Shop: shop, SessionID: "s1",
		Status: domain.ConversationActive, CreatedAt: start.AddDate(0, -1, 0),
	}
	if err := db.Create(&convo).Error; err != nil {
		t.Fatalf("seed convo: %v", err)
	}
	old := domain.Message{ID: "old", ConversationID: "c1", Role: domain.RoleUser, Content: "x", CreatedAt: start.Add(-time.Hour)}
	if err := db.Create(&old).Error; err != nil {
		t.Fatalf("seed old msg: %v", err)
	}

	if d := svc.CanSendMessage(ctx, shop); !d.Allowed {
		t.Fatalf("old messages must not count: %+v", d)
	}

	for i := 0; i < 2; i++ {
		m := domain.Message{
			ID: fmt.Sprintf("m%d", i), ConversationID: "c1",
			Role: domain.RoleUser, Content: "x", CreatedAt: start.Add(time.Duration(i+1) * time.Hour),
		}
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed m%d: %v", i, err)
		}
	}

	d := svc.CanSendMessage(ctx, shop)
	if d.Allowed {
		t.Fatalf("expected message block at cap, got %+v", d)
	}
	if d.Reason != ReasonMessageLimit || d.Used != 2 || d.Limit != 2 {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestQuota_WindowStart_IsCalendarMonthUTC(t *testing.T) {
	svc := NewQuotaService(nil)
	svc.Now = func() time.Time {
		// Late in the month, in a non-UTC zone.
		loc := time.FixedZone("plus13", 13*3600)
		return time.Date(2025, 7, 1, 5, 0, 0, 0, loc) // 2025-06-30T16:00Z
	}
	got := svc.WindowStart()
	want := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("window start: got %v want %v", got, want)
	}
}

func TestQuota_Usage_ReturnsWindowCounters(t *testing.T) {
	db := newServiceDB(t)
	shop := "acme.myshopify.com"
	ctx := context.Background()

	svc := NewQuotaService(db)
	svc.Now = fixedClock

	c, err := repo.CreateConversation(ctx, db, shop, "s1", "", "")
	if err != nil {
		t.Fatalf("seed convo: %v", err)
	}
	if _, err := repo.CreateMessage(ctx, db, c.ID, domain.RoleUser, "hi", nil); err != nil {
		t.Fatalf("seed msg: %v", err)
	}

	// Rows created "now" land after the pinned June window start only if the
	// wall clock is past it; pin the window to the past to be safe.
	svc.Now = func() time.Time { return time.Now().UTC() }
	u, err := svc.Usage(ctx, shop)
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if u.Conversations != 1 || u.Messages != 1 {
		t.Fatalf("expected 1/1, got %+v", u)
	}
}

func TestQuota_BindPlan_NormalizesNameAndAnchorsWindow(t *testing.T) {
	db := newServiceDB(t)
	shop := "acme.myshopify.com"
	ctx := context.Background()

	if err := repo.SeedPlans(ctx, db); err != nil {
		t.Fatalf("seed plans: %v", err)
	}

	svc := NewQuotaService(db)
	svc.Now = fixedClock

	sp, err := svc.BindPlan(ctx, shop, "  Starter ")
	if err != nil {
		t.Fatalf("BindPlan: %v", err)
	}
	if sp.Plan.Name != "starter" {
		t.Fatalf("bound plan = %q, want starter", sp.Plan.Name)
	}
	want := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if !sp.CurrentPeriodStart.Equal(want) {
		t.Fatalf("period start = %v, want %v", sp.CurrentPeriodStart, want)
	}
	if !sp.CurrentPeriodEnd.Equal(want.AddDate(0, 1, 0)) {
		t.Fatalf("period end = %v", sp.CurrentPeriodEnd)
	}

	// Rebinding replaces the tier instead of stacking a second binding.
	if _, err := svc.BindPlan(ctx, shop, "professional"); err != nil {
		t.Fatalf("rebind: %v", err)
	}
	bound, err := repo.GetShopPlan(ctx, db, shop)
	if err != nil {
		t.Fatalf("GetShopPlan: %v", err)
	}
	if bound.Plan.Name != "professional" {
		t.Fatalf("rebound plan = %q, want professional", bound.Plan.Name)
	}
}

func TestQuota_BindPlan_UnknownTier(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	if err := repo.SeedPlans(ctx, db); err != nil {
		t.Fatalf("seed plans: %v", err)
	}

	svc := NewQuotaService(db)
	if _, err := svc.BindPlan(ctx, "acme.myshopify.com", "diamond"); err != ErrPlanNotFound {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}
