package main

import (
	"context"
	"flag"
	"fmt"

	"product-catalog/pkg/client"
)

func ptr[T any](v T) *T { return &v }

// sampleProducts is the demo catalog loaded by the seed command.
var sampleProducts = []client.CreateProductInput{
	{Name: "iPhone 15 Pro Max", Description: ptr("Smartphone with a 48 MP camera, A17 Pro chip, 256GB"), Price: 149999, DiscountPrice: ptr(129999.0), SKU: "IPHONE-15-PRO-MAX-256GB"},
	{Name: "MacBook Pro 14", Description: ptr("Laptop with M3 Pro chip, 512GB SSD, 18GB RAM"), Price: 249999, DiscountPrice: ptr(229999.0), SKU: "MACBOOK-PRO-14-M3"},
	{Name: "AirPods Pro 2", Description: ptr("Wireless earbuds with active noise cancellation"), Price: 29999, DiscountPrice: ptr(24999.0), SKU: "AIRPODS-PRO-2"},
	{Name: "iPad Air", Description: ptr("Tablet with M1 chip, 256GB, Wi-Fi + Cellular"), Price: 89999, DiscountPrice: ptr(79999.0), SKU: "IPAD-AIR-256GB"},
	{Name: "Apple Watch Series 9", Description: ptr("Smartwatch with Always-On Retina display"), Price: 49999, DiscountPrice: ptr(44999.0), SKU: "APPLE-WATCH-SERIES-9"},
	{Name: "Samsung Galaxy S24 Ultra", Description: ptr("Smartphone with S Pen, 200 MP camera, 512GB"), Price: 159999, DiscountPrice: ptr(139999.0), SKU: "SAMSUNG-S24-ULTRA-512GB"},
	{Name: "Dell XPS 13 Plus", Description: ptr("Ultrabook with Intel i7, 16GB RAM, 512GB SSD"), Price: 189999, DiscountPrice: ptr(169999.0), SKU: "DELL-XPS-13-PLUS"},
	{Name: "Sony WH-1000XM5", Description: ptr("Wireless headphones with premium sound"), Price: 39999, DiscountPrice: ptr(34999.0), SKU: "SONY-WH-1000XM5"},
}

type seedResult struct {
	Deleted int              `json:"deleted"`
	Created []client.Product `json:"created"`
}

// seed loads the sample catalog. With -reset every existing product is deleted first.
func seed(ctx context.Context, c *client.Client, args []string) (interface{}, error) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	reset := fs.Bool("reset", false, "delete all existing products first")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	result := seedResult{Created: make([]client.Product, 0, len(sampleProducts))}

	if *reset {
		all := 0
		page, err := c.ListProducts(ctx, client.ListOptions{Limit: &all})
		if err != nil {
			return nil, fmt.Errorf("failed to list existing products: %w", err)
		}
		for _, p := range page.Products {
			if _, err := c.DeleteProduct(ctx, p.UID); err != nil {
				return nil, fmt.Errorf("failed to delete %s: %w", p.UID, err)
			}
			result.Deleted++
		}
	}

	for _, input := range sampleProducts {
		p, err := c.CreateProduct(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", input.SKU, err)
		}
		result.Created = append(result.Created, *p)
	}
	return result, nil
}
