// Package services – ConversationService
//
// This file implements the conversation ingest operations used by the
// embedded storefront widget: starting (or resuming) a session, appending
// messages, and reading a session back with its history.
//
// Every mutation consults the QuotaService first and performs no write on
// rejection. Conversations are deduplicated by (shop, sessionId): a retried
// or repeated start call returns the existing conversation instead of
// creating a second row, which also makes creation safe to retry.
package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/storechat/widget-backend/internal/domain"
	"github.com/storechat/widget-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ConversationService coordinates quota-gated conversation persistence.
type ConversationService struct {
	DB    *gorm.DB
	Quota *QuotaService

	// MaxContentRunes caps stored message content length. Zero disables
	// the guard.
	MaxContentRunes int
}

// NewConversationService constructs a ConversationService with sane guards.
func NewConversationService(db *gorm.DB, quota *QuotaService) *ConversationService {
	return &ConversationService{DB: db, Quota: quota, MaxContentRunes: 4000}
}

// Start finds or creates the conversation for (shop, sessionID). Creation
// is quota-gated; resuming an existing session is always allowed since it
// adds no usage.
func (s *ConversationService) Start(ctx context.Context, shop, sessionID, customerEmail, customerName string) (*domain.Conversation, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "Start",
		trace.WithAttributes(
			attribute.String("shop", shop),
			attribute.String("session.id", sessionID),
		),
	)
	defer span.End()

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrMissingSession
	}

	if c, err := repo.FindConversationBySession(ctx, s.DB, shop, sessionID); err == nil {
		return c, nil
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	if d := s.Quota.CanCreateConversation(ctx, shop); !d.Allowed {
		return nil, &QuotaError{
			Scope:  "conversations",
			Reason: d.Reason,
			Limit:  d.Limit,
			Used:   d.Used,
			Plan:   d.PlanName,
		}
	}

	convo, err := repo.CreateConversation(ctx, s.DB, shop, sessionID, customerEmail, customerName)
	if err != nil {
		// A concurrent first message may have won the (shop, session_id)
		// unique index between the lookup and the insert; return the row
		// that won instead of surfacing the constraint violation.
		if existing, ferr := repo.FindConversationBySession(ctx, s.DB, shop, sessionID); ferr == nil {
			return existing, nil
		}
		return nil, err
	}
	return convo, nil
}

// AppendMessage validates and stores one message on an existing
// conversation. The quota is keyed by the shop owning the conversation,
// which requires the parent lookup before the gate.
func (s *ConversationService) AppendMessage(ctx context.Context, conversationID, role, content string, metadata domain.JSONMap) (*domain.Message, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "AppendMessage",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("role", role),
		),
	)
	defer span.End()

	if role != domain.RoleUser && role != domain.RoleAssistant {
		return nil, ErrInvalidRole
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, ErrContentTooLong
	}

	convo, err := repo.GetConversation(ctx, s.DB, conversationID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	if d := s.Quota.CanSendMessage(ctx, convo.Shop); !d.Allowed {
		return nil, &QuotaError{
			Scope:  "messages",
			Reason: d.Reason,
			Limit:  d.Limit,
			Used:   d.Used,
			Plan:   d.PlanName,
		}
	}

	return repo.CreateMessage(ctx, s.DB, conversationID, role, content, metadata)
}

// Get returns a conversation and its messages ordered by timestamp
// ascending, or ErrConversationNotFound.
func (s *ConversationService) Get(ctx context.Context, conversationID string) (*domain.Conversation, []domain.Message, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	convo, err := repo.GetConversation(ctx, s.DB, conversationID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, ErrConversationNotFound
		}
		return nil, nil, err
	}
	msgs, err := repo.ListMessages(ctx, s.DB, conversationID)
	if err != nil {
		return nil, nil, err
	}
	return convo, msgs, nil
}

// ListPage returns a page of a shop's conversations (most recent first) and
// the total count. Defaults are applied for invalid page/pageSize.
func (s *ConversationService) ListPage(ctx context.Context, shop string, page, pageSize int) ([]domain.Conversation, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountConversations(ctx, s.DB, shop)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Conversation{}, 0, nil
	}

	items, err := repo.ListConversationsPage(ctx, s.DB, shop, offset, pageSize)
	return items, total, err
}
