// Package services – WidgetConfigService
//
// This file implements the widget configuration service: resolving a shop
// to a fully defaulted, public configuration document and persisting
// validated merchant edits back to the tenant store.
//
// Reads never fail for missing data: a shop that has never saved anything
// gets the hardcoded default document so storefront rendering cannot break.
// Writes are full-row upserts; every field is supplied (defaulted by this
// service), never a partial patch.
//
// Validation is deliberately asymmetric, preserved from the product's
// established behavior: an invalid accent color is silently replaced with
// the safe default, while an invalid position rejects the whole write.
package services

import (
	"context"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/storechat/widget-backend/internal/domain"
	"github.com/storechat/widget-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/language"
)

// Default values applied to every configuration field absent in storage.
const (
	DefaultTitle          = "Support Chat"
	DefaultColor          = "#e63946"
	DefaultGreeting       = "👋 Welcome! How can we help you?"
	DefaultPosition       = "right"
	DefaultAgentName      = "Assistant"
	DefaultAgentRole      = "Customer Support"
	DefaultResponseLength = "medium"
	DefaultLanguage       = "en"
	DefaultTone           = "friendly"
	DefaultAvatar         = "https://cdn.shopify.com/s/files/1/0780/7745/0100/files/default-avatar.png"
	DefaultColorScheme    = "0"
	DefaultStartColor     = "#000000CF"
	DefaultEndColor       = "#000000"
	DefaultChatBgColor    = "#FFFFFF"
	DefaultFontFamily     = "inter, sans-serif"
	DefaultFontColor      = "#000000CF"
	DefaultOpenByDefault  = "1"
)

// hexColorRE accepts 6-digit hex colors, case-insensitively.
var hexColorRE = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// WidgetConfigInput is the merchant-supplied edit. All fields are plain
// strings/bools; normalization and defaulting happen in Save.
type WidgetConfigInput struct {
	Title          string
	Color          string
	Greeting       string
	Position       string
	IsActive       bool
	AgentName      string
	AgentRole      string
	ResponseLength string
	Language       string
	Tone           string
	Avatar         string
	ColorScheme    string
	StartColor     string
	EndColor       string
	ChatBgColor    string
	FontFamily     string
	FontColor      string
	OpenByDefault  string
	IsPulsing      bool
}

// WidgetConfigService reads and writes per-shop widget configuration.
type WidgetConfigService struct {
	DB *gorm.DB
}

// NewWidgetConfigService constructs a WidgetConfigService.
func NewWidgetConfigService(db *gorm.DB) *WidgetConfigService {
	return &WidgetConfigService{DB: db}
}

// DefaultConfig returns the document served for shops that have never saved
// a configuration. The widget is inactive until the merchant turns it on.
func DefaultConfig(shop string) *domain.WidgetConfig {
	cfg := &domain.WidgetConfig{Shop: shop, IsActive: false}
	applyDefaults(cfg)
	return cfg
}

// Get resolves shop to its stored configuration with every field defaulted.
// A missing row is not an error: the default document is returned and not
// persisted; the row is created only by Save.
func (s *WidgetConfigService) Get(ctx context.Context, shop string) (*domain.WidgetConfig, error) {
	tr := otel.Tracer("services/WidgetConfigService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("shop", shop)),
	)
	defer span.End()

	cfg, err := repo.GetWidgetConfig(ctx, s.DB, shop)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return DefaultConfig(shop), nil
		}
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Save validates and upserts the full configuration row for shop.
//
// Color values that do not match ^#[0-9A-F]{6}$ (case-insensitive) are
// replaced with the default rather than rejected. A position outside
// {left, right} rejects the write with ErrInvalidPosition and leaves the
// stored row unchanged. An unparseable language tag is coerced to "en".
func (s *WidgetConfigService) Save(ctx context.Context, shop string, in WidgetConfigInput) (*domain.WidgetConfig, error) {
	tr := otel.Tracer("services/WidgetConfigService")
	ctx, span := tr.Start(ctx, "Save",
		trace.WithAttributes(attribute.String("shop", shop)),
	)
	defer span.End()

	position := strings.TrimSpace(in.Position)
	if position == "" {
		position = DefaultPosition
	}
	if position != "left" && position != "right" {
		return nil, ErrInvalidPosition
	}

	cfg := &domain.WidgetConfig{
		Shop:           shop,
		Title:          strings.TrimSpace(in.Title),
		Color:          coerceHex(in.Color, DefaultColor),
		Greeting:       strings.TrimSpace(in.Greeting),
		Position:       position,
		IsActive:       in.IsActive,
		AgentName:      strings.TrimSpace(in.AgentName),
		AgentRole:      strings.TrimSpace(in.AgentRole),
		ResponseLength: strings.TrimSpace(in.ResponseLength),
		Language:       coerceLanguage(in.Language),
		Tone:           strings.TrimSpace(in.Tone),
		Avatar:         strings.TrimSpace(in.Avatar),
		ColorScheme:    strings.TrimSpace(in.ColorScheme),
		StartColor:     strings.TrimSpace(in.StartColor),
		EndColor:       strings.TrimSpace(in.EndColor),
		ChatBgColor:    strings.TrimSpace(in.ChatBgColor),
		FontFamily:     strings.TrimSpace(in.FontFamily),
		FontColor:      strings.TrimSpace(in.FontColor),
		OpenByDefault:  strings.TrimSpace(in.OpenByDefault),
		IsPulsing:      in.IsPulsing,
	}
	applyDefaults(cfg)

	return repo.UpsertWidgetConfig(ctx, s.DB, cfg)
}

// applyDefaults backfills every empty rendering field so the delivery layer
// never emits a null. IsActive/IsPulsing are booleans and pass through.
func applyDefaults(cfg *domain.WidgetConfig) {
	def := func(field *string, fallback string) {
		if strings.TrimSpace(*field) == "" {
			*field = fallback
		}
	}
	def(&cfg.Title, DefaultTitle)
	def(&cfg.Color, DefaultColor)
	def(&cfg.Greeting, DefaultGreeting)
	def(&cfg.Position, DefaultPosition)
	def(&cfg.AgentName, DefaultAgentName)
	def(&cfg.AgentRole, DefaultAgentRole)
	def(&cfg.ResponseLength, DefaultResponseLength)
	def(&cfg.Language, DefaultLanguage)
	def(&cfg.Tone, DefaultTone)
	def(&cfg.Avatar, DefaultAvatar)
	def(&cfg.ColorScheme, DefaultColorScheme)
	def(&cfg.StartColor, DefaultStartColor)
	def(&cfg.EndColor, DefaultEndColor)
	def(&cfg.ChatBgColor, DefaultChatBgColor)
	def(&cfg.FontFamily, DefaultFontFamily)
	def(&cfg.FontColor, DefaultFontColor)
	def(&cfg.OpenByDefault, DefaultOpenByDefault)
}

// coerceHex returns c when it is a valid 6-digit hex color, else fallback.
func coerceHex(c, fallback string) string {
	c = strings.TrimSpace(c)
	if hexColorRE.MatchString(c) {
		return c
	}
	return fallback
}

// coerceLanguage normalizes a BCP 47 tag to its base language, falling back
// to the default for unparseable input.
func coerceLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return DefaultLanguage
	}
	base, _ := tag.Base()
	return base.String()
}
