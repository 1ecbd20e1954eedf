// Package enrich looks up contact details for a record's author.
package enrich

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"postscraper/pkg/config"
	errs "postscraper/pkg/errors"
	"postscraper/pkg/logger"
	"postscraper/pkg/models"
)

// Provider names the HTTP lookup in Enrichment.Provider.
const Provider = "http"

// APIKeyHeader carries the configured API key.
const APIKeyHeader = "X-API-Key"

// Lookup enriches one record. Implementations must not modify rec.
type Lookup interface {
	Lookup(ctx context.Context, rec *models.Record) (*models.Enrichment, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, rec *models.Record) (*models.Enrichment, error)

func (f LookupFunc) Lookup(ctx context.Context, rec *models.Record) (*models.Enrichment, error) {
	return f(ctx, rec)
}

type response struct {
	Email       string  `json:"email"`
	LinkedInURL string  `json:"linkedin_url"`
	Confidence  float64 `json:"confidence"`
}

// Client queries an HTTP enrichment endpoint with
// GET {endpoint}?name=<author>&company=<company>.
type Client struct {
	http     *resty.Client
	endpoint string
	logger   logger.Logger
}

// NewClient returns a client for cfg, or nil when enrichment is not configured.
func NewClient(cfg config.EnrichmentConfig, log logger.Logger) *Client {
	if !cfg.Enabled() {
		return nil
	}
	if log == nil {
		log = logger.GetLogger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader(APIKeyHeader, cfg.APIKey)
	}

	return &Client{http: client, endpoint: cfg.Endpoint, logger: log}
}

// Lookup queries the endpoint for rec's author. A 404 means no match and
// returns a nil enrichment without error.
func (c *Client) Lookup(ctx context.Context, rec *models.Record) (*models.Enrichment, error) {
	if rec.AuthorName == "" {
		return nil, nil
	}

	var body response
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("name", rec.AuthorName).
		SetQueryParam("company", models.Deref(rec.AuthorCompany)).
		SetResult(&body).
		Get(c.endpoint)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransientNetwork, err, "enrichment request failed")
	}

	switch {
	case res.StatusCode() == http.StatusNotFound:
		return nil, nil
	case res.IsError():
		return nil, errs.Newf(errs.KindTransientNetwork, "enrichment returned %s", res.Status())
	}

	if body.Email == "" && body.LinkedInURL == "" {
		return nil, nil
	}
	if body.Confidence < 0 || body.Confidence > 1 {
		return nil, fmt.Errorf("enrichment confidence %v out of range", body.Confidence)
	}

	c.logger.DebugWithFields("Enriched record", map[string]interface{}{
		"author":     rec.AuthorName,
		"confidence": body.Confidence,
	})
	return &models.Enrichment{
		Email:      body.Email,
		ProfileURL: body.LinkedInURL,
		Confidence: body.Confidence,
		Provider:   Provider,
	}, nil
}
