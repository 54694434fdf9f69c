package client

import (
	"context"
	"net/url"
	"time"

	cache "github.com/krisalay/request-cache"
	"github.com/krisalay/request-cache/model"
	"go.uber.org/zap"
)

// Cache key resources. Keys are "<resource>_<query json>".
const (
	ResourceProducts       = "products"
	ResourceScans          = "scans"
	ResourceCertifications = "certs"
)

type productBody struct {
	Product model.Product `json:"product"`
}

// cachedList reads a list resource through the cache.
func cachedList[T any](ctx context.Context, c *Client, resource, path string, q Query, ttl time.Duration) (*T, error) {
	fetch := func(ctx context.Context) (*T, error) {
		var out T
		if err := c.request(ctx, "GET", path, q, nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}
	if c.cache == nil {
		return fetch(ctx)
	}

	key, err := cache.Key(resource, q)
	if err != nil {
		return nil, err
	}
	return cache.Fetch(ctx, c.cache, key, fetch, ttl)
}

// invalidate drops every cached read of the given resources.
func (c *Client) invalidate(resources ...string) {
	if c.cache == nil {
		return
	}
	for _, r := range resources {
		n := c.cache.Invalidate(cache.ResourcePrefix(r))
		c.logger.Debug("invalidated", zap.String("resource", r), zap.Int("entries", n))
	}
}

// ===== Products =====

func (c *Client) GetProducts(ctx context.Context, q Query) (*model.ProductPage, error) {
	return cachedList[model.ProductPage](ctx, c, ResourceProducts, "/products", q, c.ttls.Products)
}

// GetProduct always reads from the API.
func (c *Client) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	var out productBody
	if err := c.request(ctx, "GET", "/products/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.Product, nil
}

func (c *Client) CreateProduct(ctx context.Context, p model.NewProduct) (*model.Product, error) {
	defer c.invalidate(ResourceProducts)

	var out productBody
	if err := c.request(ctx, "POST", "/products", nil, p, &out); err != nil {
		return nil, err
	}
	return &out.Product, nil
}

// ===== Scans =====

func (c *Client) GetScans(ctx context.Context, q Query) (*model.ScanPage, error) {
	return cachedList[model.ScanPage](ctx, c, ResourceScans, "/scans", q, c.ttls.Scans)
}

// CreateScan also invalidates products: the API stamps the scanned product
// and may create it.
func (c *Client) CreateScan(ctx context.Context, s model.NewScan) (*model.Scan, error) {
	defer c.invalidate(ResourceScans, ResourceProducts)

	var out model.Scan
	if err := c.request(ctx, "POST", "/scans", nil, s, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ===== Certifications =====

func (c *Client) GetCertifications(ctx context.Context, q Query) (*model.CertificationPage, error) {
	return cachedList[model.CertificationPage](ctx, c, ResourceCertifications, "/certifications", q, c.ttls.Certifications)
}

func (c *Client) CreateCertification(ctx context.Context, cert model.NewCertification) (*model.Certification, error) {
	defer c.invalidate(ResourceCertifications)

	var out model.Certification
	if err := c.request(ctx, "POST", "/certifications", nil, cert, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ===== Reports =====

func (c *Client) GenerateReport(ctx context.Context, r model.ReportRequest) (*model.Report, error) {
	var out model.Report
	if err := c.request(ctx, "POST", "/reports/generate", nil, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
