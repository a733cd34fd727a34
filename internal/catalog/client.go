package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/riyad899/Jtech-sub000/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

// Client reads the catalog REST API and returns canonical products.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	sfg     singleflight.Group // collapses concurrent fetches of the same path
	log     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	cfg := circuitbreaker.DefaultConfig("catalog-api")
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuitbreaker.New[[]byte](cfg, log),
		log:     log,
	}
}

func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var docs []map[string]any
	if err := c.getJSON(ctx, "/products", &docs); err != nil {
		return nil, err
	}

	products := make([]Product, 0, len(docs))
	for _, doc := range docs {
		p, err := FromDocument(KindProduct, doc)
		if err != nil {
			c.log.Warn("skipping catalog document", "error", err)
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (Product, error) {
	return c.getOne(ctx, KindProduct, "/products/", id)
}

func (c *Client) GetService(ctx context.Context, id string) (Product, error) {
	return c.getOne(ctx, KindService, "/services/", id)
}

// Get fetches a product or a service depending on kind.
func (c *Client) Get(ctx context.Context, kind Kind, id string) (Product, error) {
	if kind == KindService {
		return c.GetService(ctx, id)
	}
	return c.GetProduct(ctx, id)
}

func (c *Client) getOne(ctx context.Context, kind Kind, prefix, id string) (Product, error) {
	if id == "" {
		return Product{}, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	var doc map[string]any
	if err := c.getJSON(ctx, prefix+url.PathEscape(id), &doc); err != nil {
		return Product{}, err
	}
	if doc == nil {
		// the API answers null for an unknown id
		return Product{}, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return FromDocument(kind, doc)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// the shared fetch outlives any single caller; the http client timeout
	// still bounds it
	shared := context.WithoutCancel(ctx)
	ch := c.sfg.DoChan(path, func() (interface{}, error) {
		return c.breaker.Execute(func() ([]byte, error) {
			return c.fetch(shared, path)
		})
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return ctx.Err()
	}

	v, err := res.Val, res.Err
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpenState) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(v.([]byte)))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformedDocument, path, err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrUnavailable, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: GET %s returned %d", ErrUnavailable, path, resp.StatusCode)
	}
	return body, nil
}
