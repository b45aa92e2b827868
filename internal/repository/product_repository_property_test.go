package repository

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"product-catalog/internal/database"
	"product-catalog/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	connStr, err := dbContainer.ConnectionString(context.Background(), "sslmode=disable")
	if err != nil {
		return dbContainer.Terminate, err
	}

	db, err := database.Open(context.Background(), connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	if err := database.RunMigrations(db, zap.NewNop()); err != nil {
		db.Close()
		return dbContainer.Terminate, err
	}

	testDB = db
	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	flag.Parse()

	var teardown func(context.Context, ...testcontainers.TerminateOption) error
	if !testing.Short() {
		var err error
		teardown, err = setupTestDB()
		if err != nil {
			log.Printf("postgres container unavailable, skipping database tests: %v", err)
		}
	}

	code := m.Run()

	if testDB != nil {
		testDB.Close()
	}
	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("could not teardown postgres container: %v", err)
		}
	}

	os.Exit(code)
}

func requireDB(t *testing.T) {
	t.Helper()
	if testDB == nil {
		t.Skip("postgres is not available")
	}
	_, err := testDB.Exec("TRUNCATE products RESTART IDENTITY")
	require.NoError(t, err)
}

func insertProduct(t *testing.T, repo ProductRepository, name, sku string, price float64, description *string) *domain.Product {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	product := &domain.Product{
		UID:         uuid.NewString(),
		Name:        name,
		Description: description,
		Price:       price,
		SKU:         sku,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, repo.Create(context.Background(), product))
	return product
}

func TestProperty_ProductCreationPreservesAttributes(t *testing.T) {
	requireDB(t)
	repo := NewProductRepository(testDB)

	properties := gopter.NewProperties(nil)

	properties.Property("creating and retrieving a product preserves all attributes", prop.ForAll(
		func(name string, sku string, price float64, discount float64) bool {
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Microsecond)
			product := &domain.Product{
				UID:           uuid.NewString(),
				Name:          name,
				Price:         price,
				DiscountPrice: &discount,
				SKU:           sku,
				CreatedAt:     now,
				UpdatedAt:     now,
			}

			if err := repo.Create(ctx, product); err != nil {
				t.Logf("FAIL: Failed to create product: %v", err)
				return false
			}
			if product.ID == 0 {
				t.Logf("FAIL: database id was not assigned")
				return false
			}

			retrieved, err := repo.FindByUID(ctx, product.UID)
			if err != nil {
				t.Logf("FAIL: Failed to retrieve product: %v", err)
				return false
			}

			return retrieved.UID == product.UID &&
				retrieved.Name == name &&
				retrieved.SKU == sku &&
				retrieved.Price == price &&
				retrieved.DiscountPrice != nil && *retrieved.DiscountPrice == discount &&
				retrieved.Description == nil &&
				!retrieved.HasImage() &&
				retrieved.CreatedAt.Equal(now) &&
				!retrieved.UpdatedAt.Before(retrieved.CreatedAt)
		},
		gen.Identifier(),
		gen.Identifier(),
		gen.Float64Range(-1000, 100000),
		gen.Float64Range(0, 1000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_ProductUpdatesAreReflected(t *testing.T) {
	requireDB(t)
	repo := NewProductRepository(testDB)

	properties := gopter.NewProperties(nil)

	properties.Property("update changes patched fields and keeps the rest", prop.ForAll(
		func(newName string, newPrice float64, patchName bool, patchPrice bool) bool {
			ctx := context.Background()
			description := "original description"
			original := insertProduct(t, repo, "Original", "ORIG-1", 10, &description)

			var patch domain.ProductPatch
			if patchName {
				patch.Name = &newName
			}
			if patchPrice {
				patch.Price = &newPrice
			}

			updatedAt := original.UpdatedAt.Add(time.Second)
			updated, err := repo.Update(ctx, original.UID, patch, updatedAt)
			if err != nil {
				t.Logf("FAIL: Failed to update product: %v", err)
				return false
			}

			retrieved, err := repo.FindByUID(ctx, original.UID)
			if err != nil {
				return false
			}

			wantName, wantPrice := original.Name, original.Price
			if patchName {
				wantName = newName
			}
			if patchPrice {
				wantPrice = newPrice
			}

			return updated.Name == wantName && retrieved.Name == wantName &&
				retrieved.Price == wantPrice &&
				retrieved.SKU == original.SKU &&
				retrieved.Description != nil && *retrieved.Description == description &&
				retrieved.CreatedAt.Equal(original.CreatedAt) &&
				retrieved.UpdatedAt.Equal(updatedAt)
		},
		gen.Identifier(),
		gen.Float64Range(-100, 10000),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_ProductDeletionRemovesFromCatalog(t *testing.T) {
	requireDB(t)
	repo := NewProductRepository(testDB)

	properties := gopter.NewProperties(nil)

	properties.Property("deleted products can no longer be found", prop.ForAll(
		func(name string) bool {
			ctx := context.Background()
			product := insertProduct(t, repo, name, "DEL-1", 5, nil)

			deleted, err := repo.Delete(ctx, product.UID)
			if err != nil || deleted.UID != product.UID || deleted.Name != name {
				return false
			}

			_, err = repo.FindByUID(ctx, product.UID)
			if !errors.Is(err, ErrProductNotFound) {
				return false
			}

			_, err = repo.Delete(ctx, product.UID)
			return errors.Is(err, ErrProductNotFound)
		},
		gen.Identifier(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_ListTotalIsIndependentOfPaging(t *testing.T) {
	requireDB(t)
	repo := NewProductRepository(testDB)

	for i := 0; i < 23; i++ {
		sku := "ITEM-" + uuid.NewString()[:8]
		insertProduct(t, repo, "Item", sku, float64(i), nil)
	}

	properties := gopter.NewProperties(nil)

	properties.Property("page size bounds results and total counts every match", prop.ForAll(
		func(page int, limit int) bool {
			q := domain.NewProductQuery()
			q.Page, q.Limit = page, limit

			products, total, err := repo.List(context.Background(), q)
			if err != nil {
				return false
			}
			if total != 23 {
				return false
			}
			if limit == 0 {
				return len(products) == 23
			}
			return len(products) <= limit
		},
		gen.IntRange(1, 10),
		gen.IntRange(0, 30),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProductRepository_ListPagesDoNotOverlap(t *testing.T) {
	requireDB(t)
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	// identical timestamps force the id tie-break
	for i := 0; i < 7; i++ {
		insertProduct(t, repo, "Same", "SAME", 1, nil)
	}

	seen := map[string]bool{}
	for page := 1; page <= 4; page++ {
		products, _, err := repo.List(ctx, domain.ProductQuery{Page: page, Limit: 2, SortBy: "price", SortOrder: domain.SortOrderAsc})
		require.NoError(t, err)
		for _, p := range products {
			assert.False(t, seen[p.UID], "product %s returned twice", p.UID)
			seen[p.UID] = true
		}
	}
	assert.Len(t, seen, 7)
}

func TestProductRepository_SearchIsCaseInsensitiveSubstring(t *testing.T) {
	requireDB(t)
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	description := "Ships with a 100% cotton case"
	insertProduct(t, repo, "Widget", "W-1", 10, nil)
	insertProduct(t, repo, "Gadget", "GAD-1", 20, &description)
	insertProduct(t, repo, "Gizmo", "gz_widgety", 30, nil)

	for _, term := range []string{"widget", "WID", "Widget"} {
		q := domain.NewProductQuery()
		q.Search = term
		products, total, err := repo.List(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, 2, total, "search %q", term)
		names := []string{}
		for _, p := range products {
			names = append(names, p.Name)
		}
		assert.ElementsMatch(t, []string{"Widget", "Gizmo"}, names, "search %q", term)
	}

	q := domain.NewProductQuery()
	q.Search = "100%"
	products, _, err := repo.List(ctx, q)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Gadget", products[0].Name)

	q.Search = "%"
	products, _, err = repo.List(ctx, q)
	require.NoError(t, err)
	assert.Len(t, products, 1, "percent sign must match literally")

	q.Search = "z_w"
	products, _, err = repo.List(ctx, q)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.True(t, strings.HasPrefix(products[0].SKU, "gz_"))
}

func TestProductRepository_PriceBoundsAreInclusive(t *testing.T) {
	requireDB(t)
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	for _, price := range []float64{9.99, 10, 15, 20, 20.01} {
		insertProduct(t, repo, "Priced", "P", price, nil)
	}

	q := domain.NewProductQuery()
	q.MinPrice, q.MaxPrice = float(10), float(20)
	q.SortBy, q.SortOrder = "price", domain.SortOrderAsc

	products, total, err := repo.List(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, products, 3)
	assert.Equal(t, 10.0, products[0].Price)
	assert.Equal(t, 20.0, products[2].Price)

	q.MaxPrice = nil
	_, total, err = repo.List(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}

func TestProductRepository_ReplaceImageSwapsReferences(t *testing.T) {
	requireDB(t)
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	product := insertProduct(t, repo, "Camera", "CAM-1", 300, nil)

	first := &domain.ImageRef{URL: "https://cdn.example.com/products/a.png", PublicID: "products/a.png"}
	updated, previous, err := repo.ReplaceImage(ctx, product.UID, first, time.Now())
	require.NoError(t, err)
	assert.True(t, previous.IsZero())
	assert.Equal(t, *first, domain.ImageRefOf(updated))

	second := &domain.ImageRef{URL: "http://localhost:8080/uploads/b.png"}
	updated, previous, err = repo.ReplaceImage(ctx, product.UID, second, time.Now())
	require.NoError(t, err)
	assert.Equal(t, *first, previous)
	assert.Equal(t, second.URL, *updated.ImageURL)
	assert.Nil(t, updated.ImagePublicID)

	cleared, previous, err := repo.ReplaceImage(ctx, product.UID, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, *second, previous)
	assert.False(t, cleared.HasImage())

	_, _, err = repo.ReplaceImage(ctx, uuid.NewString(), first, time.Now())
	assert.ErrorIs(t, err, ErrProductNotFound)
}
