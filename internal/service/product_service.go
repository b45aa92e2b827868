package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"product-catalog/internal/cache"
	"product-catalog/internal/domain"
	"product-catalog/internal/metrics"
	"product-catalog/internal/repository"
	"product-catalog/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotFoundError reports a product uid with no matching product.
// It matches repository.ErrProductNotFound with errors.Is.
type NotFoundError struct {
	UID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product with uid %q not found", e.UID)
}

func (e *NotFoundError) Unwrap() error {
	return repository.ErrProductNotFound
}

// CreateProductInput holds the fields of a new product. ImageURL links an
// externally hosted image and carries no public id.
type CreateProductInput struct {
	Name          string
	Description   *string
	Price         float64
	DiscountPrice *float64
	SKU           string
	ImageURL      *string
}

// UpdateProductInput holds the fields of a partial update.
type UpdateProductInput = domain.ProductPatch

// Upload is an image file received from a client.
type Upload struct {
	Filename string
	Data     []byte
}

// ProductService defines the interface for catalog business logic
type ProductService interface {
	Create(ctx context.Context, input CreateProductInput) (*domain.Product, error)
	List(ctx context.Context, q domain.ProductQuery) (*domain.ProductPage, error)
	Get(ctx context.Context, uid string) (*domain.Product, error)
	Update(ctx context.Context, uid string, input UpdateProductInput) (*domain.Product, error)
	Delete(ctx context.Context, uid string) (*domain.Product, error)
	AttachImage(ctx context.Context, uid string, upload Upload) (*domain.Product, error)
	DetachImage(ctx context.Context, uid string) (*domain.Product, error)
}

type productService struct {
	repo    repository.ProductRepository
	store   storage.Store
	cache   *cache.ListCache
	metrics *metrics.Catalog
	logger  *zap.Logger
	now     func() time.Time
}

// NewProductService creates a new instance of ProductService. The cache and
// metrics may be nil.
func NewProductService(
	repo repository.ProductRepository,
	store storage.Store,
	listCache *cache.ListCache,
	m *metrics.Catalog,
	logger *zap.Logger,
) ProductService {
	return &productService{
		repo:    repo,
		store:   store,
		cache:   listCache,
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// parseUID normalizes a uid. Anything that is not a UUID cannot name a product.
func parseUID(uid string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(uid))
	if err != nil {
		return "", &NotFoundError{UID: uid}
	}
	return id.String(), nil
}

func notFound(err error, uid string) error {
	if errors.Is(err, repository.ErrProductNotFound) {
		return &NotFoundError{UID: uid}
	}
	return err
}

func (s *productService) Create(ctx context.Context, input CreateProductInput) (*domain.Product, error) {
	now := s.now()
	product := &domain.Product{
		UID:           uuid.NewString(),
		Name:          input.Name,
		Description:   input.Description,
		Price:         input.Price,
		DiscountPrice: input.DiscountPrice,
		SKU:           input.SKU,
		ImageURL:      input.ImageURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}

	s.metrics.ProductCreated()
	s.invalidate(ctx)

	s.logger.Info("Product created", zap.String("uid", product.UID), zap.String("sku", product.SKU))
	return product, nil
}

func (s *productService) List(ctx context.Context, q domain.ProductQuery) (*domain.ProductPage, error) {
	q = normalizeQuery(q)

	return s.cache.FetchPage(ctx, q, func(ctx context.Context) (*domain.ProductPage, error) {
		products, total, err := s.repo.List(ctx, q)
		if err != nil {
			return nil, err
		}
		return &domain.ProductPage{
			Products:   products,
			Pagination: domain.NewPagination(q.Page, q.Limit, total),
		}, nil
	})
}

// normalizeQuery fills in defaults for values the caller left unset.
func normalizeQuery(q domain.ProductQuery) domain.ProductQuery {
	if q.Page < 1 {
		q.Page = domain.DefaultPage
	}
	if q.Page > domain.MaxPage {
		q.Page = domain.MaxPage
	}
	if q.Limit < 0 {
		q.Limit = domain.DefaultLimit
	}
	if q.Limit > domain.MaxLimit {
		q.Limit = domain.MaxLimit
	}
	if _, ok := domain.SortFields[q.SortBy]; !ok {
		q.SortBy = domain.DefaultSortField
	}
	if q.SortOrder != domain.SortOrderAsc {
		q.SortOrder = domain.SortOrderDesc
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

func (s *productService) Get(ctx context.Context, uid string) (*domain.Product, error) {
	id, err := parseUID(uid)
	if err != nil {
		return nil, err
	}

	product, err := s.repo.FindByUID(ctx, id)
	if err != nil {
		return nil, notFound(err, uid)
	}
	return product, nil
}

func (s *productService) Update(ctx context.Context, uid string, input UpdateProductInput) (*domain.Product, error) {
	id, err := parseUID(uid)
	if err != nil {
		return nil, err
	}

	product, err := s.repo.Update(ctx, id, input, s.now())
	if err != nil {
		return nil, notFound(err, uid)
	}

	s.metrics.ProductUpdated()
	s.invalidate(ctx)
	return product, nil
}

func (s *productService) Delete(ctx context.Context, uid string) (*domain.Product, error) {
	id, err := parseUID(uid)
	if err != nil {
		return nil, err
	}

	product, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, notFound(err, uid)
	}

	s.metrics.ProductDeleted()
	s.invalidate(ctx)

	if ref := domain.ImageRefOf(product); !ref.IsZero() {
		s.removeAsset(ctx, ref, id)
	}

	s.logger.Info("Product deleted", zap.String("uid", id))
	return product, nil
}

// AttachImage stores the upload and points the product at it. The previous
// image stays in place until the new one is recorded, and is then removed.
func (s *productService) AttachImage(ctx context.Context, uid string, upload Upload) (*domain.Product, error) {
	id, err := parseUID(uid)
	if err != nil {
		return nil, err
	}

	contentType, err := DetectImageType(upload.Data)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByUID(ctx, id); err != nil {
		return nil, notFound(err, uid)
	}

	ref, err := s.store.Put(ctx, storage.Object{Data: upload.Data, ContentType: contentType})
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	product, previous, err := s.repo.ReplaceImage(ctx, id, &ref, s.now())
	if err != nil {
		s.removeAsset(ctx, ref, id)
		return nil, notFound(err, uid)
	}

	s.metrics.ImageAttached()
	s.invalidate(ctx)

	if !previous.IsZero() && previous != ref {
		s.removeAsset(ctx, previous, id)
	}

	s.logger.Info("Product image attached",
		zap.String("uid", id),
		zap.String("filename", upload.Filename),
		zap.String("content_type", contentType),
		zap.Int("size", len(upload.Data)),
	)
	return product, nil
}

func (s *productService) DetachImage(ctx context.Context, uid string) (*domain.Product, error) {
	id, err := parseUID(uid)
	if err != nil {
		return nil, err
	}

	product, previous, err := s.repo.ReplaceImage(ctx, id, nil, s.now())
	if err != nil {
		return nil, notFound(err, uid)
	}

	s.invalidate(ctx)

	if !previous.IsZero() {
		s.metrics.ImageDetached()
		s.removeAsset(ctx, previous, id)
	}
	return product, nil
}

// removeAsset deletes a stored image. Failures are logged and otherwise ignored.
func (s *productService) removeAsset(ctx context.Context, ref domain.ImageRef, uid string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), ref); err != nil {
		s.metrics.CleanupFailed()
		s.logger.Warn("Failed to remove stored image",
			zap.String("uid", uid),
			zap.String("image_url", ref.URL),
			zap.String("image_public_id", ref.PublicID),
			zap.Error(err),
		)
	}
}

func (s *productService) invalidate(ctx context.Context) {
	if err := s.cache.Bump(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("Failed to invalidate product list cache", zap.Error(err))
	}
}
