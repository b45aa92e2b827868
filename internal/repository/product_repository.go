package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"product-catalog/internal/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")
)

const productColumns = `id, uid, name, description, price, discount_price, sku,
	image_url, image_public_id, created_at, updated_at`

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	FindByUID(ctx context.Context, uid string) (*domain.Product, error)
	List(ctx context.Context, q domain.ProductQuery) ([]*domain.Product, int, error)
	Update(ctx context.Context, uid string, patch domain.ProductPatch, updatedAt time.Time) (*domain.Product, error)
	Delete(ctx context.Context, uid string) (*domain.Product, error)
	// ReplaceImage sets or, with a nil image, clears the image of a product
	// and returns the updated product together with the image it replaced.
	ReplaceImage(ctx context.Context, uid string, image *domain.ImageRef, updatedAt time.Time) (*domain.Product, domain.ImageRef, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	err := row.Scan(
		&product.ID,
		&product.UID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.DiscountPrice,
		&product.SKU,
		&product.ImageURL,
		&product.ImagePublicID,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return product, nil
}

// Create inserts a new product and fills in the database-assigned id.
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (uid, name, description, price, discount_price, sku, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		product.UID,
		product.Name,
		product.Description,
		product.Price,
		product.DiscountPrice,
		product.SKU,
		product.ImageURL,
		product.CreatedAt,
		product.UpdatedAt,
	).Scan(&product.ID)

	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// FindByUID retrieves a product by its public identifier
func (r *productRepository) FindByUID(ctx context.Context, uid string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE uid = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, uid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by uid: %w", err)
	}

	return product, nil
}

// List retrieves one page of products matching the query together with the
// number of matching products across all pages.
func (r *productRepository) List(ctx context.Context, q domain.ProductQuery) ([]*domain.Product, int, error) {
	whereClause, args := buildProductFilter(q)

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	pageClause, args := buildPageClause(q, args)

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		%s
		%s
		%s
	`, productColumns, whereClause, buildOrderClause(q), pageClause)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}

	return products, total, nil
}

// Update merges the provided fields into the stored product in a single statement.
func (r *productRepository) Update(ctx context.Context, uid string, patch domain.ProductPatch, updatedAt time.Time) (*domain.Product, error) {
	query := `
		UPDATE products
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    price = COALESCE($4, price),
		    discount_price = COALESCE($5, discount_price),
		    sku = COALESCE($6, sku),
		    updated_at = $7
		WHERE uid = $1
		RETURNING ` + productColumns

	product, err := scanProduct(r.db.QueryRowContext(
		ctx,
		query,
		uid,
		patch.Name,
		patch.Description,
		patch.Price,
		patch.DiscountPrice,
		patch.SKU,
		updatedAt,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	return product, nil
}

// Delete removes a product and returns the row as it was before deletion.
func (r *productRepository) Delete(ctx context.Context, uid string) (*domain.Product, error) {
	query := `DELETE FROM products WHERE uid = $1 RETURNING ` + productColumns

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, uid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to delete product: %w", err)
	}

	return product, nil
}

func (r *productRepository) ReplaceImage(ctx context.Context, uid string, image *domain.ImageRef, updatedAt time.Time) (*domain.Product, domain.ImageRef, error) {
	var previous domain.ImageRef

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, previous, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var prevURL, prevPublicID sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT image_url, image_public_id FROM products WHERE uid = $1 FOR UPDATE`,
		uid,
	).Scan(&prevURL, &prevPublicID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, previous, ErrProductNotFound
		}
		return nil, previous, fmt.Errorf("failed to lock product: %w", err)
	}
	previous = domain.ImageRef{URL: prevURL.String, PublicID: prevPublicID.String}

	var url, publicID sql.NullString
	if image != nil {
		url = sql.NullString{String: image.URL, Valid: image.URL != ""}
		publicID = sql.NullString{String: image.PublicID, Valid: image.PublicID != ""}
	}

	query := `
		UPDATE products
		SET image_url = $2, image_public_id = $3, updated_at = $4
		WHERE uid = $1
		RETURNING ` + productColumns

	product, err := scanProduct(tx.QueryRowContext(ctx, query, uid, url, publicID, updatedAt))
	if err != nil {
		return nil, previous, fmt.Errorf("failed to update product image: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, previous, fmt.Errorf("failed to commit image update: %w", err)
	}

	return product, previous, nil
}
