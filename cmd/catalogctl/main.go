// Command catalogctl manages products through the catalog API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"product-catalog/pkg/client"
)

const usage = `usage: catalogctl [-url URL] <command> [flags]

commands:
  list      [-page N] [-limit N] [-search S] [-sort-by F] [-order asc|desc] [-min-price P] [-max-price P]
  get       <uid>
  create    -name N -price P -sku S [-description D] [-discount-price P] [-image-url U]
  update    <uid> [-name N] [-price P] [-sku S] [-description D] [-discount-price P]
  delete    <uid>
  upload    <uid> <file>
  rm-image  <uid>
  seed      [-reset]
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "catalogctl:", err)
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			for _, f := range apiErr.Fields {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", f.Field, f.Message)
			}
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("catalogctl", flag.ContinueOnError)
	global.Usage = func() { fmt.Fprint(global.Output(), usage) }
	baseURL := global.String("url", envOr("CATALOG_URL", "http://localhost:8080"), "catalog API base URL")
	timeout := global.Duration("timeout", 30*time.Second, "request timeout")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	c := client.New(*baseURL, client.WithCacheTTL(0))
	cmd, rest := global.Arg(0), global.Args()[1:]

	var (
		result interface{}
		err    error
	)
	switch cmd {
	case "list":
		result, err = list(ctx, c, rest)
	case "get":
		result, err = withUID(rest, func(uid string, _ []string) (interface{}, error) {
			return c.GetProduct(ctx, uid)
		})
	case "create":
		result, err = create(ctx, c, rest)
	case "update":
		result, err = withUID(rest, func(uid string, args []string) (interface{}, error) {
			return update(ctx, c, uid, args)
		})
	case "delete":
		result, err = withUID(rest, func(uid string, _ []string) (interface{}, error) {
			return c.DeleteProduct(ctx, uid)
		})
	case "upload":
		result, err = withUID(rest, func(uid string, args []string) (interface{}, error) {
			if len(args) != 1 {
				return nil, errors.New("upload needs exactly one file")
			}
			return upload(ctx, c, uid, args[0])
		})
	case "seed":
		result, err = seed(ctx, c, rest)
	case "rm-image":
		result, err = withUID(rest, func(uid string, _ []string) (interface{}, error) {
			return c.DeleteImage(ctx, uid)
		})
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func withUID(args []string, fn func(uid string, rest []string) (interface{}, error)) (interface{}, error) {
	if len(args) == 0 || args[0] == "" {
		return nil, errors.New("missing product uid")
	}
	return fn(args[0], args[1:])
}

func list(ctx context.Context, c *client.Client, args []string) (interface{}, error) {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	page := fs.Int("page", 0, "page number")
	limit := fs.Int("limit", -1, "page size, 0 for all")
	search := fs.String("search", "", "search name, description and sku")
	sortBy := fs.String("sort-by", "", "sort field")
	order := fs.String("order", "", "asc or desc")
	minPrice := optionalFloat(fs, "min-price", "minimum price")
	maxPrice := optionalFloat(fs, "max-price", "maximum price")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts := client.ListOptions{
		Page:      *page,
		Search:    *search,
		SortBy:    *sortBy,
		SortOrder: *order,
		MinPrice:  minPrice.ptr(),
		MaxPrice:  maxPrice.ptr(),
	}
	if *limit >= 0 {
		opts.Limit = limit
	}
	return c.ListProducts(ctx, opts)
}

func create(ctx context.Context, c *client.Client, args []string) (interface{}, error) {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	name := fs.String("name", "", "product name")
	price := fs.Float64("price", 0, "price")
	sku := fs.String("sku", "", "stock keeping unit")
	description := optionalString(fs, "description", "description")
	discount := optionalFloat(fs, "discount-price", "discounted price")
	imageURL := optionalString(fs, "image-url", "externally hosted image URL")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return c.CreateProduct(ctx, client.CreateProductInput{
		Name:          *name,
		Description:   description.ptr(),
		Price:         *price,
		DiscountPrice: discount.ptr(),
		SKU:           *sku,
		ImageURL:      imageURL.ptr(),
	})
}

func update(ctx context.Context, c *client.Client, uid string, args []string) (*client.Product, error) {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	name := optionalString(fs, "name", "product name")
	price := optionalFloat(fs, "price", "price")
	sku := optionalString(fs, "sku", "stock keeping unit")
	description := optionalString(fs, "description", "description")
	discount := optionalFloat(fs, "discount-price", "discounted price")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return c.UpdateProduct(ctx, uid, client.UpdateProductInput{
		Name:          name.ptr(),
		Description:   description.ptr(),
		Price:         price.ptr(),
		DiscountPrice: discount.ptr(),
		SKU:           sku.ptr(),
	})
}

func upload(ctx context.Context, c *client.Client, uid, path string) (*client.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return c.UploadImage(ctx, uid, filepath.Base(path), f)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
