// Package geo looks up Brazilian states (UF codes) and their municipalities from
// the IBGE localities API.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/erazemk/ecoleta/internal/model"
)

// DefaultBaseURL is the public IBGE data service.
const DefaultBaseURL = "https://servicodados.ibge.gov.br/api/v1/"

var (
	// ErrUnavailable wraps every transport or upstream failure.
	ErrUnavailable = errors.New("geography lookup unavailable")
	// ErrInvalidRegion is returned for region codes that are not two letters.
	ErrInvalidRegion = errors.New("invalid region code")
)

// Lookup resolves regions and the localities inside them.
type Lookup interface {
	Regions(ctx context.Context) ([]string, error)
	Localities(ctx context.Context, region string) ([]string, error)
}

type ufResponse struct {
	Sigla string `json:"sigla"`
}

type cityResponse struct {
	Nome string `json:"nome"`
}

// Client is a Lookup backed by the IBGE HTTP API. Successful answers are cached.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *cache.Cache
}

// NewClient returns a client for baseURL. Results are kept for ttl; a ttl of zero
// or less disables caching.
func NewClient(baseURL string, ttl time.Duration) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	if ttl > 0 {
		c.cache = cache.New(ttl, 2*ttl)
	}
	return c
}

// Regions returns all UF codes, sorted.
func (c *Client) Regions(ctx context.Context) ([]string, error) {
	key := cacheKey("regions")
	if v, ok := c.cached(key); ok {
		return v, nil
	}

	var ufs []ufResponse
	if err := c.get(ctx, "localidades/estados", &ufs); err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(ufs))
	for _, uf := range ufs {
		codes = append(codes, uf.Sigla)
	}
	slices.Sort(codes)

	c.store(key, codes)
	return slices.Clone(codes), nil
}

// Localities returns the municipality names of region, ordered by name. An
// unknown but well-formed code yields an empty list.
func (c *Client) Localities(ctx context.Context, region string) ([]string, error) {
	region = strings.ToUpper(strings.TrimSpace(region))
	if !model.IsRegionCode(region) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRegion, region)
	}

	key := cacheKey("localities", region)
	if v, ok := c.cached(key); ok {
		return v, nil
	}

	var cities []cityResponse
	path := "localidades/estados/" + url.PathEscape(region) + "/municipios?orderBy=nome"
	if err := c.get(ctx, path, &cities); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(cities))
	for _, city := range cities {
		names = append(names, city.Nome)
	}

	c.store(key, names)
	return slices.Clone(names), nil
}

// Flush drops all cached answers.
func (c *Client) Flush() {
	if c.cache != nil {
		c.cache.Flush()
	}
}

func (c *Client) get(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", ErrUnavailable, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", ErrUnavailable, path, err)
	}
	return nil
}

func (c *Client) cached(key string) ([]string, bool) {
	if c.cache == nil {
		return nil, false
	}
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	return slices.Clone(v.([]string)), true
}

func (c *Client) store(key string, v []string) {
	if c.cache != nil {
		c.cache.SetDefault(key, v)
	}
}

func cacheKey(prefix string, params ...string) string {
	return strings.Join(append([]string{prefix}, params...), ":")
}
