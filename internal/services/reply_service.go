// Package services – ReplyService
//
// This file implements the canned assistant responder: the "AI" behind the
// widget is a keyword-matched response table, optionally informed by a
// naive keyword retrieval over the merchant's ingested catalog documents.
// There is no model; the metadata on assistant messages says so honestly.
//
// Respond owns the full chat turn: find-or-create the session (quota
// gated), store the visitor message (quota gated), retrieve context, pick a
// reply, store the assistant message. Quota rejections surface as
// *QuotaError so the transport can render the structured envelope.
package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/storechat/widget-backend/internal/domain"
	"github.com/storechat/widget-backend/internal/repo"
	"github.com/storechat/widget-backend/internal/search"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ReplyModel tags assistant messages with the responder implementation.
const ReplyModel = "keyword-matcher"

// FallbackReply is the apologetic copy shown when a turn fails internally.
// Internal error text never reaches the storefront.
const FallbackReply = "I'm sorry, I'm having trouble processing your request right now. Please try again later."

// cannedResponse pairs a trigger keyword with its reply. Order matters:
// earlier entries win when a message matches several keywords.
type cannedResponse struct {
	keyword string
	reply   string
}

var cannedResponses = []cannedResponse{
	{"hello", "Hello! Welcome to our store! How can I help you today?"},
	{"hi", "Hi there! I'm here to assist you with any questions about our products or services."},
	{"product", "I'd be happy to help you find the perfect product! Could you tell me what you're looking for?"},
	{"price", "I can help you with pricing information. Which product are you interested in?"},
	{"order", "I can help you with your order. Do you have an order number or need help placing a new order?"},
	{"shipping", "Our shipping information: We offer free shipping on orders over $50. Standard delivery takes 3-5 business days."},
	{"return", "Our return policy: You can return items within 30 days of purchase. Please contact us for a return authorization."},
	{"size", "I can help you with sizing information. What type of product are you looking at?"},
	{"color", "We have various colors available. Which product are you interested in?"},
	{"help", "I'm here to help! What would you like to know about our products or services?"},
	{"thank", "You're welcome! Is there anything else I can help you with?"},
	{"bye", "Thank you for visiting! Have a great day!"},
}

const defaultReply = "That's a great question! I'm here to help you with information about our products and services. Could you be more specific about what you're looking for?"

// ChatReply is the result of one chat turn.
type ChatReply struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversationId"`
	SessionID      string `json:"sessionId"`
}

// ReplyService produces assistant replies and persists the exchanged pair.
type ReplyService struct {
	DB     *gorm.DB
	Convos *ConversationService

	// MaxDocs caps how many documents are loaded for retrieval scoring.
	MaxDocs int
	// TopK is how many matched documents inform a reply's metadata.
	TopK int
}

// NewReplyService constructs a ReplyService with retrieval defaults.
func NewReplyService(db *gorm.DB, convos *ConversationService) *ReplyService {
	return &ReplyService{DB: db, Convos: convos, MaxDocs: 50, TopK: 3}
}

// Respond executes one chat turn for shop/sessionID. Quota errors pass
// through untouched; any other persistence failure after the user message
// was stored degrades to the fallback reply.
func (s *ReplyService) Respond(ctx context.Context, shop, sessionID, message, customerEmail, customerName string) (*ChatReply, error) {
	tr := otel.Tracer("services/ReplyService")
	ctx, span := tr.Start(ctx, "Respond",
		trace.WithAttributes(
			attribute.String("shop", shop),
			attribute.String("session.id", sessionID),
		),
	)
	defer span.End()

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyContent
	}

	convo, err := s.Convos.Start(ctx, shop, sessionID, customerEmail, customerName)
	if err != nil {
		return nil, err
	}

	if _, err := s.Convos.AppendMessage(ctx, convo.ID, domain.RoleUser, message, nil); err != nil {
		return nil, err
	}

	matches := s.retrieve(ctx, shop, message)
	reply := pickReply(message)

	meta := domain.JSONMap{
		"model":       ReplyModel,
		"contextDocs": len(matches),
	}
	if titles := matchTitles(matches); len(titles) > 0 {
		meta["sources"] = titles
	}

	if _, err := s.Convos.AppendMessage(ctx, convo.ID, domain.RoleAssistant, reply, meta); err != nil {
		if _, isQuota := AsQuotaError(err); isQuota {
			return nil, err
		}
		// The visitor message is already stored; degrade gracefully.
		return &ChatReply{Reply: FallbackReply, ConversationID: convo.ID, SessionID: convo.SessionID}, nil
	}

	return &ChatReply{Reply: reply, ConversationID: convo.ID, SessionID: convo.SessionID}, nil
}

// retrieve scores the shop's documents against the message. Retrieval
// failures are ignored; replies work without context.
func (s *ReplyService) retrieve(ctx context.Context, shop, message string) []search.Match {
	docs, err := repo.ListDocuments(ctx, s.DB, shop, s.MaxDocs)
	if err != nil || len(docs) == 0 {
		return nil
	}
	return search.TopDocuments(docs, message, s.TopK)
}

// pickReply returns the first canned response whose keyword occurs in the
// message, or the default reply.
func pickReply(message string) string {
	lower := strings.ToLower(message)
	for _, cr := range cannedResponses {
		if strings.Contains(lower, cr.keyword) {
			return cr.reply
		}
	}
	return defaultReply
}

func matchTitles(matches []search.Match) []string {
	if len(matches) == 0 {
		return nil
	}
	titles := make([]string, 0, len(matches))
	for _, m := range matches {
		titles = append(titles, m.Doc.Title)
	}
	return titles
}
