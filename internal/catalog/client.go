// Package catalog resolves products against the product service's read API.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/safar/marketplace-orders/internal/config"
	"github.com/safar/marketplace-orders/internal/metrics"
	"github.com/safar/marketplace-orders/internal/models"
)

var (
	ErrProductNotFound = errors.New("product not found")
	// ErrUnreachable covers connection failures and timeouts.
	ErrUnreachable = errors.New("product service unreachable")
)

// UpstreamError is any non-2xx answer other than 404.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("product service error: %d", e.StatusCode)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    *models.Product `json:"data"`
}

type Client struct {
	http *resty.Client
}

func NewClient(cfg config.CatalogConfig) *Client {
	return NewClientWithResty(resty.New(), cfg)
}

func NewClientWithResty(rc *resty.Client, cfg config.CatalogConfig) *Client {
	rc.SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: rc}
}

// GetProduct fetches one product with the caller's bearer token. It never retries.
func (c *Client) GetProduct(ctx context.Context, productID, token string) (*models.Product, error) {
	ctx, span := otel.Tracer("catalog").Start(ctx, "catalog.GetProduct")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID))

	if productID == "" {
		return nil, errors.New("product id is required")
	}
	if token == "" {
		return nil, errors.New("bearer token is required")
	}

	start := time.Now()
	var out envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetPathParam("productId", productID).
		SetResult(&out).
		Get("/{productId}")
	metrics.ProductLookupDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unreachable")
		log.Ctx(ctx).Warn().Err(err).Str("productId", productID).Bool("timeout", isTimeout(err)).Msg("product service call failed")
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("product %s: %w", productID, ErrProductNotFound)
	case resp.IsError():
		span.SetStatus(codes.Error, "upstream error")
		return nil, &UpstreamError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	if !out.Success || out.Data == nil {
		return nil, fmt.Errorf("product %s: %w", productID, ErrProductNotFound)
	}

	return out.Data, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
