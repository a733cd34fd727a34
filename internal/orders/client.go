package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/riyad899/Jtech-sub000/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type TokenFunc func(ctx context.Context) string

// StatusError is a non-2xx answer from the order API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: POST /orders returned %d: %s", ErrSubmission, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrSubmission
}

// rejected reports errors caused by the request rather than the API's health.
// They must not open the breaker for every other buyer.
func rejected(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests
	}
	return errors.Is(err, context.Canceled)
}

// Client posts orders to the catalog API.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[string]
	token   TokenFunc
}

// NewClient builds an order client. token supplies the bearer token forwarded
// to the API; it may be nil.
func NewClient(baseURL string, timeout time.Duration, token TokenFunc, log *slog.Logger) *Client {
	cfg := circuitbreaker.DefaultConfig("order-api")
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || rejected(err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuitbreaker.New[string](cfg, log),
		token:   token,
	}
}

type insertResult struct {
	InsertedID string `json:"insertedId"`
}

// Create posts one order and returns the id the API assigned to it.
func (c *Client) Create(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal order: %w", err)
	}

	id, err := c.breaker.Execute(func() (string, error) {
		return c.post(ctx, body)
	})
	if errors.Is(err, circuitbreaker.ErrOpenState) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: order api unavailable: %v", ErrSubmission, err)
	}
	return id, err
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != nil {
		if tok := c.token(ctx); tok != "" {
			httpReq.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSubmission, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var res insertResult
	if err := json.Unmarshal(respBody, &res); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrSubmission, err)
	}
	return res.InsertedID, nil
}
