// Package domain defines the persistence models for the multi-tenant widget
// backend: merchants, plans, widget configuration, conversations, messages,
// catalog documents, and ingestion jobs. These types are mapped with GORM
// and form the core data layer of the application.
//
// Every row is partitioned by the shop domain (the tenant key). Plans are
// static reference data seeded at startup; everything else is owned by a
// single merchant.
package domain

import (
	"time"
)

// Conversation status values.
const (
	ConversationActive   = "active"
	ConversationClosed   = "closed"
	ConversationArchived = "archived"
)

// Message role values.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Document source values.
const (
	SourceProduct    = "product"
	SourceCollection = "collection"
	SourcePage       = "page"
)

// Ingestion job status values.
const (
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// UnlimitedQuota is the sentinel plan limit meaning "no cap".
const UnlimitedQuota = -1

// Merchant is one installed shop. Created on the first authenticated install
// callback and never hard-deleted in normal operation. The access token is
// the delegated Admin API credential used by the ingestion job.
type Merchant struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	Shop        string    `json:"shop"         gorm:"type:varchar(255);not null;uniqueIndex:ux_merchant_shop"`
	AccessToken string    `json:"-"            gorm:"type:varchar(255)"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Merchant.
func (Merchant) TableName() string { return "merchants" }

// Plan is a named subscription tier. MaxConversations and MaxMessages are
// monthly caps; UnlimitedQuota (-1) means uncapped. Plans are seeded once
// and immutable at runtime except by administrative reseed.
type Plan struct {
	ID               string     `json:"id"                gorm:"type:char(36);primaryKey"`
	Name             string     `json:"name"              gorm:"type:varchar(32);not null;uniqueIndex:ux_plan_name"`
	DisplayName      string     `json:"display_name"      gorm:"type:varchar(64);not null"`
	Price            int        `json:"price"             gorm:"not null;default:0"`
	MaxConversations int        `json:"max_conversations" gorm:"not null"`
	MaxMessages      int        `json:"max_messages"      gorm:"not null"`
	Features         StringList `json:"features"          gorm:"type:text"`
	IsActive         bool       `json:"is_active"         gorm:"not null;default:true"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Plan.
func (Plan) TableName() string { return "plans" }

// UnlimitedConversations reports whether the conversation cap is the
// unlimited sentinel.
func (p Plan) UnlimitedConversations() bool { return p.MaxConversations == UnlimitedQuota }

// UnlimitedMessages reports whether the message cap is the unlimited sentinel.
func (p Plan) UnlimitedMessages() bool { return p.MaxMessages == UnlimitedQuota }

// ShopPlan binds a merchant to a plan for a billing period. At most one row
// exists per shop (enforced by unique index); it is created with the free
// plan right after install and updated on subscription change.
type ShopPlan struct {
	ID                 string    `json:"id"                   gorm:"type:char(36);primaryKey"`
	Shop               string    `json:"shop"                 gorm:"type:varchar(255);not null;uniqueIndex:ux_shop_plan"`
	PlanID             string    `json:"plan_id"              gorm:"type:char(36);not null;index"`
	CurrentPeriodStart time.Time `json:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	// Plan is the bound tier. Reference data; never cascade-deleted.
	Plan Plan `json:"plan" gorm:"foreignKey:PlanID;references:ID"`
}

// TableName returns the database table name for ShopPlan.
func (ShopPlan) TableName() string { return "shop_plans" }

// WidgetConfig holds the public-facing presentation and persona settings for
// one shop. Exactly one row per shop; created lazily on first save. Fields
// left empty in storage are backfilled with defaults by the configuration
// service so the delivery layer never emits a null rendering field.
type WidgetConfig struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	Shop           string    `json:"shop"            gorm:"type:varchar(255);not null;uniqueIndex:ux_widget_shop"`
	Title          string    `json:"title"           gorm:"type:varchar(255)"`
	Color          string    `json:"color"           gorm:"type:varchar(16)"`
	Greeting       string    `json:"greeting"        gorm:"type:varchar(512)"`
	Position       string    `json:"position"        gorm:"type:varchar(8);check:position IN ('left','right')"`
	IsActive       bool      `json:"is_active"       gorm:"not null;default:false"`
	AgentName      string    `json:"agent_name"      gorm:"type:varchar(64)"`
	AgentRole      string    `json:"agent_role"      gorm:"type:varchar(64)"`
	ResponseLength string    `json:"response_length" gorm:"type:varchar(16)"`
	Language       string    `json:"language"        gorm:"type:varchar(16)"`
	Tone           string    `json:"tone"            gorm:"type:varchar(32)"`
	Avatar         string    `json:"avatar"          gorm:"type:varchar(512)"`
	ColorScheme    string    `json:"color_scheme"    gorm:"type:varchar(8)"`
	StartColor     string    `json:"start_color"     gorm:"type:varchar(16)"`
	EndColor       string    `json:"end_color"       gorm:"type:varchar(16)"`
	ChatBgColor    string    `json:"chat_bg_color"   gorm:"type:varchar(16)"`
	FontFamily     string    `json:"font_family"     gorm:"type:varchar(64)"`
	FontColor      string    `json:"font_color"      gorm:"type:varchar(16)"`
	OpenByDefault  string    `json:"open_by_default" gorm:"type:varchar(8)"`
	IsPulsing      bool      `json:"is_pulsing"      gorm:"not null;default:false"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for WidgetConfig.
func (WidgetConfig) TableName() string { return "widget_configs" }

// Conversation is one chat session between a storefront visitor and the
// widget. The (shop, session_id) pair is unique so a retried create returns
// the existing row. Creation is counted toward the monthly conversation
// quota.
type Conversation struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	Shop          string    `json:"shop"           gorm:"type:varchar(255);not null;index:idx_shop_convos;uniqueIndex:ux_shop_session,priority:1"`
	SessionID     string    `json:"session_id"     gorm:"type:varchar(128);not null;uniqueIndex:ux_shop_session,priority:2"`
	CustomerEmail string    `json:"customer_email" gorm:"type:varchar(255)"`
	CustomerName  string    `json:"customer_name"  gorm:"type:varchar(255)"`
	Status        string    `json:"status"         gorm:"type:varchar(16);not null;check:status IN ('active','closed','archived')"`
	CreatedAt     time.Time `json:"created_at"     gorm:"index"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Message is a single utterance within a conversation, authored either by
// the visitor ("user") or the canned responder ("assistant"). Append-only;
// counted toward the monthly message quota at creation time.
type Message struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID string    `json:"conversation_id" gorm:"type:char(36);not null;index:idx_convo_msgs,priority:1"`
	Role           string    `json:"role"            gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content        string    `json:"content"         gorm:"type:text;not null"`
	Metadata       JSONMap   `json:"metadata,omitempty" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"      gorm:"index:idx_convo_msgs,priority:2"`

	// Conversation is the parent session. Messages are cascade-deleted
	// if the conversation is removed.
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Document is a normalized text record extracted from the commerce platform
// (product, collection, or page), used for keyword retrieval. Unique per
// (shop, source, source_id); upserted by the ingestion job.
type Document struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	Shop      string    `json:"shop"      gorm:"type:varchar(255);not null;index:idx_shop_docs;uniqueIndex:ux_doc_identity,priority:1"`
	Source    string    `json:"source"    gorm:"type:varchar(16);not null;check:source IN ('product','collection','page');uniqueIndex:ux_doc_identity,priority:2"`
	SourceID  string    `json:"source_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_doc_identity,priority:3"`
	Title     string    `json:"title"     gorm:"type:varchar(512)"`
	Content   string    `json:"content"   gorm:"type:text;not null"`
	Metadata  JSONMap   `json:"metadata,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Document.
func (Document) TableName() string { return "documents" }

// IngestionJob tracks one catalog ingestion run. All counters are set to
// zero at creation so the failure path never writes uninitialized fields.
// Terminal states are "completed" and "failed".
type IngestionJob struct {
	ID          string     `json:"id"          gorm:"type:char(36);primaryKey"`
	Shop        string     `json:"shop"        gorm:"type:varchar(255);not null;index:idx_shop_jobs"`
	Status      string     `json:"status"      gorm:"type:varchar(16);not null;check:status IN ('running','completed','failed')"`
	Progress    int        `json:"progress"    gorm:"not null;default:0"`
	Total       int        `json:"total"       gorm:"not null;default:0"`
	Products    int        `json:"products"    gorm:"not null;default:0"`
	Collections int        `json:"collections" gorm:"not null;default:0"`
	Pages       int        `json:"pages"       gorm:"not null;default:0"`
	Errors      StringList `json:"errors"      gorm:"type:text"`
	Error       string     `json:"error,omitempty" gorm:"type:text"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name for IngestionJob.
func (IngestionJob) TableName() string { return "ingestion_jobs" }

// Terminal reports whether the job has reached a final state.
func (j IngestionJob) Terminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}
