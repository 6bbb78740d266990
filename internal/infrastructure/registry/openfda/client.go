// Package openfda implements the registry gateway against the openFDA drug
// NDC endpoint. Zero matches come back as a not-found outcome; transport and
// payload failures come back as errors and are reported to the caller once,
// without retries (re-running the scan is the caller's decision).
package openfda

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/medicine-verifier/internal/core/domain"
	"github.com/kirillkom/medicine-verifier/internal/infrastructure/resilience"
)

const nameSearchLimit = 5

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

type Options struct {
	Timeout           time.Duration
	RequestsPerMinute int
	Executor          *resilience.Executor
}

func New(baseURL, apiKey string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	// openFDA enforces per-key quotas; pace requests client-side instead of
	// burning quota on rejected calls.
	var limiter *rate.Limiter
	if options.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(options.RequestsPerMinute)/60.0), options.RequestsPerMinute/10+1)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		executor:   options.Executor,
	}
}

func (c *Client) LookupByNDC(ctx context.Context, ndc string) (domain.LookupOutcome, error) {
	query := fmt.Sprintf("product_ndc:%q", ndc)
	records, err := c.search(ctx, "registry.lookup_by_ndc", query, 1)
	if err != nil {
		return domain.LookupOutcome{}, err
	}
	if len(records) == 0 {
		return domain.LookupOutcome{Kind: domain.LookupNotFound}, nil
	}

	// The registry may return several packagings for one product NDC; the
	// first record in registry order is the canonical match.
	match := records[0]
	return domain.LookupOutcome{Kind: domain.LookupFound, Match: &match}, nil
}

func (c *Client) LookupByName(ctx context.Context, name string) (domain.LookupOutcome, error) {
	query := fmt.Sprintf("brand_name:%q OR generic_name:%q", name, name)
	records, err := c.search(ctx, "registry.lookup_by_name", query, nameSearchLimit)
	if err != nil {
		return domain.LookupOutcome{}, err
	}
	if len(records) == 0 {
		return domain.LookupOutcome{Kind: domain.LookupNotFound}, nil
	}
	return domain.LookupOutcome{Kind: domain.LookupFoundMultiple, Matches: records}, nil
}

func (c *Client) search(ctx context.Context, operation, query string, limit int) ([]domain.RegistryMatch, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("registry rate limit wait: %w", err)
		}
	}

	params := url.Values{}
	params.Set("search", query)
	params.Set("limit", strconv.Itoa(limit))
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	var response searchResponse
	call := func(callCtx context.Context) error {
		return c.getJSON(callCtx, params, &response, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, operation, call, classifyRegistryError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		if isNotFoundStatus(err) {
			return nil, nil
		}
		return nil, wrapTemporaryIfNeeded(operation, err)
	}

	matches := make([]domain.RegistryMatch, 0, len(response.Results))
	for _, record := range response.Results {
		matches = append(matches, record.toDomain())
	}
	return matches, nil
}

type searchResponse struct {
	Results []registryRecord `json:"results"`
}

type registryRecord struct {
	BrandName         string             `json:"brand_name"`
	GenericName       string             `json:"generic_name"`
	ManufacturerName  string             `json:"manufacturer_name"`
	ProductNDC        string             `json:"product_ndc"`
	DosageForm        string             `json:"dosage_form"`
	Route             []string           `json:"route"`
	ActiveIngredients []activeIngredient `json:"active_ingredients"`
	MarketingStatus   string             `json:"marketing_status"`
}

type activeIngredient struct {
	Name     string `json:"name"`
	Strength string `json:"strength"`
}

func (r registryRecord) toDomain() domain.RegistryMatch {
	name := r.BrandName
	if name == "" {
		name = r.GenericName
	}

	ingredients := make([]domain.ActiveIngredient, 0, len(r.ActiveIngredients))
	for _, ing := range r.ActiveIngredients {
		ingredients = append(ingredients, domain.ActiveIngredient{Name: ing.Name, Strength: ing.Strength})
	}

	return domain.RegistryMatch{
		Name:              name,
		Manufacturer:      r.ManufacturerName,
		NDC:               r.ProductNDC,
		DosageForm:        r.DosageForm,
		Route:             r.Route,
		ActiveIngredients: ingredients,
		MarketingStatus:   r.MarketingStatus,
	}
}
