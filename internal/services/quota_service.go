// Package services – QuotaService
//
// This file implements the plan quota gate: a pure-read check that derives
// current-period usage from conversation and message rows and decides
// whether new activity may be admitted under the shop's plan.
//
// Design points that matter for correctness:
//   - The usage window is always the current calendar month in UTC,
//     computed from an injectable clock so tests never depend on wall time.
//   - A shop with no plan binding is never blocked; plan assignment happens
//     asynchronously after install, and its absence must not break the chat.
//   - Datastore failures fail OPEN. Quota gating is cost protection, not an
//     authorization mechanism, and must never be a single point of outage
//     for the storefront widget. Failures are logged and the check allows.
//   - The interval is closed: count >= limit blocks the next creation, so a
//     limit of N means at most N successful creations per window.
//
// The gate does not write anything; callers perform the insert after an
// allowed decision. Concurrent racers can therefore transiently exceed the
// cap by the number of in-flight requests (accepted soft-limit design).
package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/storechat/widget-backend/internal/domain"
	"github.com/storechat/widget-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Decision is the quota gate verdict. Limit, Used, and PlanName are only
// meaningful when Allowed is false.
type Decision struct {
	Allowed  bool
	Reason   string
	Limit    int
	Used     int64
	PlanName string
}

// Gate decision reasons.
const (
	reasonNoPlan       = "No plan restrictions"
	reasonUnlimited    = "Unlimited plan"
	reasonWithinLimits = "Within limits"
	reasonGateError    = "Error checking limits"

	// ReasonConversationLimit is the rejection reason for conversation caps.
	ReasonConversationLimit = "Conversation limit reached"
	// ReasonMessageLimit is the rejection reason for message caps.
	ReasonMessageLimit = "Message limit reached"
)

// QuotaService derives per-window usage and admits or rejects new activity.
type QuotaService struct {
	DB *gorm.DB

	// Now supplies the gate's clock; defaults to UTC wall time. The usage
	// window is the first instant of Now()'s calendar month.
	Now func() time.Time
}

// NewQuotaService constructs a QuotaService with the UTC wall clock.
func NewQuotaService(db *gorm.DB) *QuotaService {
	return &QuotaService{DB: db, Now: func() time.Time { return time.Now().UTC() }}
}

// WindowStart returns the first instant of the current calendar month, UTC.
// All usage counts and billing periods are anchored to this instant.
func (s *QuotaService) WindowStart() time.Time {
	now := s.Now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// CanCreateConversation decides whether shop may start another conversation
// in the current window.
func (s *QuotaService) CanCreateConversation(ctx context.Context, shop string) Decision {
	tr := otel.Tracer("services/QuotaService")
	ctx, span := tr.Start(ctx, "CanCreateConversation",
		trace.WithAttributes(attribute.String("shop", shop)),
	)
	defer span.End()

	sp, err := repo.GetShopPlan(ctx, s.DB, shop)
	if err != nil {
		return s.failOpen(shop, "conversation", err)
	}
	if sp.Plan.UnlimitedConversations() {
		return Decision{Allowed: true, Reason: reasonUnlimited}
	}

	used, err := repo.CountConversationsSince(ctx, s.DB, shop, s.WindowStart())
	if err != nil {
		return s.failOpen(shop, "conversation", err)
	}
	if used >= int64(sp.Plan.MaxConversations) {
		return Decision{
			Allowed:  false,
			Reason:   ReasonConversationLimit,
			Limit:    sp.Plan.MaxConversations,
			Used:     used,
			PlanName: sp.Plan.DisplayName,
		}
	}
	return Decision{Allowed: true, Reason: reasonWithinLimits}
}

// CanSendMessage decides whether shop may store another message in the
// current window. Messages are counted by their own timestamps; the join to
// conversations only scopes rows to the tenant.
func (s *QuotaService) CanSendMessage(ctx context.Context, shop string) Decision {
	tr := otel.Tracer("services/QuotaService")
	ctx, span := tr.Start(ctx, "CanSendMessage",
		trace.WithAttributes(attribute.String("shop", shop)),
	)
	defer span.End()

	sp, err := repo.GetShopPlan(ctx, s.DB, shop)
	if err != nil {
		return s.failOpen(shop, "message", err)
	}
	if sp.Plan.UnlimitedMessages() {
		return Decision{Allowed: true, Reason: reasonUnlimited}
	}

	used, err := repo.CountMessagesSince(ctx, s.DB, shop, s.WindowStart())
	if err != nil {
		return s.failOpen(shop, "message", err)
	}
	if used >= int64(sp.Plan.MaxMessages) {
		return Decision{
			Allowed:  false,
			Reason:   ReasonMessageLimit,
			Limit:    sp.Plan.MaxMessages,
			Used:     used,
			PlanName: sp.Plan.DisplayName,
		}
	}
	return Decision{Allowed: true, Reason: reasonWithinLimits}
}

// Usage returns the derived usage counters for the current window.
func (s *QuotaService) Usage(ctx context.Context, shop string) (repo.UsageStats, error) {
	return repo.WindowUsage(ctx, s.DB, shop, s.WindowStart())
}

// BindPlan binds shop to the named plan tier (name matching is
// case-insensitive) with a fresh billing period anchored at the current
// window. Returns ErrPlanNotFound when no such tier exists.
func (s *QuotaService) BindPlan(ctx context.Context, shop, planName string) (*domain.ShopPlan, error) {
	plan, err := repo.GetPlanByName(ctx, s.DB, strings.ToLower(strings.TrimSpace(planName)))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	start := s.WindowStart()
	sp, err := repo.BindShopPlan(ctx, s.DB, shop, plan.ID, start, start.AddDate(0, 1, 0))
	if err != nil {
		return nil, err
	}
	sp.Plan = *plan
	return sp, nil
}

// failOpen converts a lookup failure into an allow decision. A missing plan
// binding is expected (plan assignment is asynchronous after install); real
// datastore errors are surfaced only through logs.
func (s *QuotaService) failOpen(shop, scope string, err error) Decision {
	if err == gorm.ErrRecordNotFound {
		return Decision{Allowed: true, Reason: reasonNoPlan}
	}
	log.Error().
		Err(err).
		Str("shop", shop).
		Str("scope", scope).
		Msg("quota check failed, allowing")
	return Decision{Allowed: true, Reason: reasonGateError}
}
