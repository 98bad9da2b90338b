package repo

import (
	"context"
	"testing"

	"github.com/storechat/widget-backend/internal/domain"
)

func TestUpsertDocument_Identity(t *testing.T) {
	db := newRepoDB(t, &domain.Document{})
	ctx := context.Background()
	shop := "acme.myshopify.com"

	first, err := UpsertDocument(ctx, db, &domain.Document{
		Shop: shop, Source: domain.SourceProduct, SourceID: "42",
		Title: "Blue Mug", Content: "Product: Blue Mug",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Same identity overwrites.
	second, err := UpsertDocument(ctx, db, &domain.Document{
		Shop: shop, Source: domain.SourceProduct, SourceID: "42",
		Title: "Blue Mug v2", Content: "Product: Blue Mug v2",
	})
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("re-ingestion must reuse the row: %s vs %s", second.ID, first.ID)
	}

	// Same sourceID under a different source is a distinct document.
	if _, err := UpsertDocument(ctx, db, &domain.Document{
		Shop: shop, Source: domain.SourcePage, SourceID: "42",
		Title: "About us", Content: "Page: About us",
	}); err != nil {
		t.Fatalf("distinct source: %v", err)
	}

	n, err := CountDocuments(ctx, db, shop)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 documents, got %d", n)
	}

	docs, err := ListDocuments(ctx, db, shop, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, d := range docs {
		if d.Source == domain.SourceProduct && d.Title != "Blue Mug v2" {
			t.Fatalf("overwrite not applied: %+v", d)
		}
	}
}

func TestListDocuments_LimitApplied(t *testing.T) {
	db := newRepoDB(t, &domain.Document{})
	ctx := context.Background()
	shop := "acme.myshopify.com"

	for _, id := range []string{"1", "2", "3"} {
		if _, err := UpsertDocument(ctx, db, &domain.Document{
			Shop: shop, Source: domain.SourceProduct, SourceID: id,
			Title: "P" + id, Content: "Product: P" + id,
		}); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}

	docs, err := ListDocuments(ctx, db, shop, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(docs))
	}
}
