// Package services – IngestionService
//
// The ingestion job walks the merchant's products, custom collections and
// pages through the Admin API, normalizes each record into a retrieval
// Document, and records progress on a pollable job row. One failing
// resource kind does not abort the run: its error is appended to the job's
// error list and the remaining kinds continue. The job only fails outright
// when the merchant record cannot be loaded at all.
package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/storechat/widget-backend/internal/domain"
	"github.com/storechat/widget-backend/internal/repo"
	"github.com/storechat/widget-backend/internal/shopify"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CatalogClient is the slice of the Admin API the ingestion job consumes.
// Satisfied by *shopify.Client; tests substitute a fake.
type CatalogClient interface {
	Products(ctx context.Context, shop, token string, sinceID int64, limit int) ([]shopify.Product, error)
	Collections(ctx context.Context, shop, token string, sinceID int64, limit int) ([]shopify.Collection, error)
	Pages(ctx context.Context, shop, token string, sinceID int64, limit int) ([]shopify.Page, error)
}

// IngestionService runs catalog ingestion jobs.
type IngestionService struct {
	DB     *gorm.DB
	Client CatalogClient

	// PageSize is the Admin API page size, 1..250.
	PageSize int
}

// NewIngestionService constructs an IngestionService.
func NewIngestionService(db *gorm.DB, client CatalogClient, pageSize int) *IngestionService {
	if pageSize < 1 || pageSize > 250 {
		pageSize = 250
	}
	return &IngestionService{DB: db, Client: client, PageSize: pageSize}
}

// StartJob creates the pollable job row and launches the run in the
// background. The returned job is already persisted in "running" state.
// A shop without a merchant record (install callback never ran) is
// rejected up front with ErrMerchantNotFound instead of a doomed job.
func (s *IngestionService) StartJob(ctx context.Context, shop string) (*domain.IngestionJob, error) {
	tr := otel.Tracer("services/IngestionService")
	ctx, span := tr.Start(ctx, "StartJob", trace.WithAttributes(attribute.String("shop", shop)))
	defer span.End()

	if _, err := repo.GetMerchant(ctx, s.DB, shop); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrMerchantNotFound
		}
		return nil, err
	}

	job, err := repo.CreateIngestionJob(ctx, s.DB, shop)
	if err != nil {
		return nil, err
	}

	// The run outlives the request; give it a fresh root context.
	go s.Run(context.Background(), shop, job.ID)

	return job, nil
}

// Job returns the job row for polling.
func (s *IngestionService) Job(ctx context.Context, id string) (*domain.IngestionJob, error) {
	return repo.GetIngestionJob(ctx, s.DB, id)
}

// Run executes one ingestion pass and drives the job row to a terminal
// state. Exported so callers that want synchronous ingestion can call it
// directly.
func (s *IngestionService) Run(ctx context.Context, shop, jobID string) {
	tr := otel.Tracer("services/IngestionService")
	ctx, span := tr.Start(ctx, "Run",
		trace.WithAttributes(
			attribute.String("shop", shop),
			attribute.String("job.id", jobID),
		),
	)
	defer span.End()

	merchant, err := repo.GetMerchant(ctx, s.DB, shop)
	if err != nil {
		log.Error().Err(err).Str("shop", shop).Str("job_id", jobID).Msg("ingestion: merchant lookup failed")
		_ = repo.FailIngestionJob(ctx, s.DB, jobID, "merchant not found or not authorized")
		return
	}

	var (
		errs     domain.StringList
		progress int
	)

	products, err := s.ingestProducts(ctx, merchant, jobID, &progress)
	if err != nil {
		errs = append(errs, "products: "+err.Error())
	}
	collections, err := s.ingestCollections(ctx, merchant, jobID, &progress)
	if err != nil {
		errs = append(errs, "collections: "+err.Error())
	}
	pages, err := s.ingestPages(ctx, merchant, jobID, &progress)
	if err != nil {
		errs = append(errs, "pages: "+err.Error())
	}

	if err := repo.CompleteIngestionJob(ctx, s.DB, jobID, products, collections, pages, errs); err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("ingestion: completing job failed")
		return
	}

	log.Info().Str("shop", shop).Str("job_id", jobID).
		Int("products", products).Int("collections", collections).Int("pages", pages).
		Int("errors", len(errs)).Msg("ingestion finished")
}

func (s *IngestionService) ingestProducts(ctx context.Context, m *domain.Merchant, jobID string, progress *int) (int, error) {
	stored := 0
	var sinceID int64
	for {
		batch, err := s.Client.Products(ctx, m.Shop, m.AccessToken, sinceID, s.PageSize)
		if err != nil {
			return stored, err
		}
		if len(batch) == 0 {
			return stored, nil
		}
		for _, p := range batch {
			doc := productDocument(m.Shop, p)
			if _, err := repo.UpsertDocument(ctx, s.DB, doc); err != nil {
				log.Warn().Err(err).Str("shop", m.Shop).Str("source_id", doc.SourceID).Msg("ingestion: product upsert failed")
				continue
			}
			stored++
			s.tick(ctx, jobID, progress)
		}
		if len(batch) < s.PageSize {
			return stored, nil
		}
		sinceID = batch[len(batch)-1].ID
	}
}

func (s *IngestionService) ingestCollections(ctx context.Context, m *domain.Merchant, jobID string, progress *int) (int, error) {
	stored := 0
	var sinceID int64
	for {
		batch, err := s.Client.Collections(ctx, m.Shop, m.AccessToken, sinceID, s.PageSize)
		if err != nil {
			return stored, err
		}
		if len(batch) == 0 {
			return stored, nil
		}
		for _, cl := range batch {
			doc := collectionDocument(m.Shop, cl)
			if _, err := repo.UpsertDocument(ctx, s.DB, doc); err != nil {
				log.Warn().Err(err).Str("shop", m.Shop).Str("source_id", doc.SourceID).Msg("ingestion: collection upsert failed")
				continue
			}
			stored++
			s.tick(ctx, jobID, progress)
		}
		if len(batch) < s.PageSize {
			return stored, nil
		}
		sinceID = batch[len(batch)-1].ID
	}
}

func (s *IngestionService) ingestPages(ctx context.Context, m *domain.Merchant, jobID string, progress *int) (int, error) {
	stored := 0
	var sinceID int64
	for {
		batch, err := s.Client.Pages(ctx, m.Shop, m.AccessToken, sinceID, s.PageSize)
		if err != nil {
			return stored, err
		}
		if len(batch) == 0 {
			return stored, nil
		}
		for _, pg := range batch {
			doc := pageDocument(m.Shop, pg)
			if _, err := repo.UpsertDocument(ctx, s.DB, doc); err != nil {
				log.Warn().Err(err).Str("shop", m.Shop).Str("source_id", doc.SourceID).Msg("ingestion: page upsert failed")
				continue
			}
			stored++
			s.tick(ctx, jobID, progress)
		}
		if len(batch) < s.PageSize {
			return stored, nil
		}
		sinceID = batch[len(batch)-1].ID
	}
}

// tick bumps the persisted progress counter after each stored record so
// pollers see movement even mid-run. Progress write failures are tolerated.
func (s *IngestionService) tick(ctx context.Context, jobID string, progress *int) {
	*progress++
	if err := repo.UpdateIngestionProgress(ctx, s.DB, jobID, *progress); err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("ingestion: progress update failed")
	}
}

func productDocument(shop string, p shopify.Product) *domain.Document {
	price := ""
	if len(p.Variants) > 0 {
		price = p.Variants[0].Price
	}
	content := fmt.Sprintf("Product: %s\nDescription: %s\nPrice: %s\nVendor: %s\nTags: %s\nHandle: %s",
		p.Title, stripHTML(p.BodyHTML), price, p.Vendor, p.Tags, p.Handle)
	return &domain.Document{
		Shop:     shop,
		Source:   domain.SourceProduct,
		SourceID: strconv.FormatInt(p.ID, 10),
		Title:    p.Title,
		Content:  content,
		Metadata: domain.JSONMap{"handle": p.Handle, "vendor": p.Vendor},
	}
}

func collectionDocument(shop string, c shopify.Collection) *domain.Document {
	content := fmt.Sprintf("Collection: %s\nDescription: %s\nHandle: %s",
		c.Title, stripHTML(c.BodyHTML), c.Handle)
	return &domain.Document{
		Shop:     shop,
		Source:   domain.SourceCollection,
		SourceID: strconv.FormatInt(c.ID, 10),
		Title:    c.Title,
		Content:  content,
		Metadata: domain.JSONMap{"handle": c.Handle},
	}
}

func pageDocument(shop string, p shopify.Page) *domain.Document {
	content := fmt.Sprintf("Page: %s\nContent: %s\nHandle: %s",
		p.Title, stripHTML(p.BodyHTML), p.Handle)
	return &domain.Document{
		Shop:     shop,
		Source:   domain.SourcePage,
		SourceID: strconv.FormatInt(p.ID, 10),
		Title:    p.Title,
		Content:  content,
		Metadata: domain.JSONMap{"handle": p.Handle},
	}
}

// stripHTML flattens markup to indexable text. Tags are dropped and
// whitespace runs are collapsed; entities are left alone.
func stripHTML(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteByte(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
