package services

import (
	"context"
	"testing"

	"github.com/storechat/widget-backend/internal/domain"
	"github.com/storechat/widget-backend/internal/repo"
)

func TestWidgetGet_MissReturnsDefaults_NotPersisted(t *testing.T) {
	db := newServiceDB(t)
	svc := NewWidgetConfigService(db)
	ctx := context.Background()
	shop := "fresh.myshopify.com"

	cfg, err := svc.Get(ctx, shop)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cfg.IsActive {
		t.Fatal("unsaved shops must be inactive")
	}
	if cfg.Title != DefaultTitle || cfg.Color != DefaultColor || cfg.Position != DefaultPosition {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Greeting == "" || cfg.AgentName == "" || cfg.FontFamily == "" || cfg.OpenByDefault == "" {
		t.Fatalf("no rendering field may be empty: %+v", cfg)
	}

	// The default document must not create a row.
	if _, err := repo.GetWidgetConfig(ctx, db, shop); err != repo.ErrNotFound {
		t.Fatalf("expected no persisted row, got %v", err)
	}
}

func TestWidgetSave_InvalidColorCoerced(t *testing.T) {
	db := newServiceDB(t)
	svc := NewWidgetConfigService(db)

	cfg, err := svc.Save(context.Background(), "acme.myshopify.com", WidgetConfigInput{
		Title: "Help", Color: "not-a-color", Position: "left", IsActive: true,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if cfg.Color != DefaultColor {
		t.Fatalf("invalid color must coerce to default, got %q", cfg.Color)
	}
	if cfg.Position != "left" || !cfg.IsActive {
		t.Fatalf("valid fields must persist: %+v", cfg)
	}
}

func TestWidgetSave_ValidColorKept(t *testing.T) {
	db := newServiceDB(t)
	svc := NewWidgetConfigService(db)

	cfg, err := svc.Save(context.Background(), "acme.myshopify.com", WidgetConfigInput{
		Color: "#AbCdEf",
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if cfg.Color != "#AbCdEf" {
		t.Fatalf("valid hex color must be kept verbatim, got %q", cfg.Color)
	}
}

func TestWidgetSave_InvalidPositionRejected_RowUntouched(t *testing.T) {
	db := newServiceDB(t)
	svc := NewWidgetConfigService(db)
	ctx := context.Background()
	shop := "acme.myshopify.com"

	if _, err := svc.Save(ctx, shop, WidgetConfigInput{Position: "left", Title: "Original"}); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	_, err := svc.Save(ctx, shop, WidgetConfigInput{Position: "top", Title: "Changed"})
	if err != ErrInvalidPosition {
		t.Fatalf("expected ErrInvalidPosition, got %v", err)
	}

	got, err := svc.Get(ctx, shop)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Position != "left" || got.Title != "Original" {
		t.Fatalf("rejected save must not change the row: %+v", got)
	}
}

func TestWidgetSave_EmptyPositionDefaults(t *testing.T) {
	db := newServiceDB(t)
	svc := NewWidgetConfigService(db)

	cfg, err := svc.Save(context.Background(), "acme.myshopify.com", WidgetConfigInput{})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if cfg.Position != DefaultPosition {
		t.Fatalf("empty position must default, got %q", cfg.Position)
	}
}

func TestWidgetSave_LanguageCoercion(t *testing.T) {
	db := newServiceDB(t)
	svc := NewWidgetConfigService(db)
	ctx := context.Background()

	cfg, err := svc.Save(ctx, "a.myshopify.com", WidgetConfigInput{Language: "fr-CA"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if cfg.Language != "fr" {
		t.Fatalf("regioned tag must coerce to base language, got %q", cfg.Language)
	}

	cfg, err = svc.Save(ctx, "b.myshopify.com", WidgetConfigInput{Language: "???"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if cfg.Language != DefaultLanguage {
		t.Fatalf("unparseable tag must coerce to default, got %q", cfg.Language)
	}
}

func TestWidgetSaveThenGet_RoundTrip(t *testing.T) {
	db := newServiceDB(t)
	svc := NewWidgetConfigService(db)
	ctx := context.Background()
	shop := "acme.myshopify.com"

	in := WidgetConfigInput{
		Title: "Store Helper", Color: "#112233", Greeting: "Hey!", Position: "left",
		IsActive: true, AgentName: "Max", AgentRole: "Sales", ResponseLength: "short",
		Language: "de", Tone: "formal", ColorScheme: "1", StartColor: "#111111",
		EndColor: "#222222", ChatBgColor: "#FAFAFA", FontFamily: "serif",
		FontColor: "#333333", OpenByDefault: "0", IsPulsing: true,
	}
	if _, err := svc.Save(ctx, shop, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := svc.Get(ctx, shop)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Store Helper" || got.Color != "#112233" || got.Position != "left" ||
		!got.IsActive || got.AgentName != "Max" || got.Tone != "formal" ||
		got.OpenByDefault != "0" || !got.IsPulsing {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
	// Avatar was omitted and must be defaulted on read.
	if got.Avatar != DefaultAvatar {
		t.Fatalf("omitted avatar must default, got %q", got.Avatar)
	}
}
