// Package client talks to the catalog service over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/ecoleta/internal/model"
)

var (
	// ErrNetwork is returned when the service or an upstream it depends on
	// cannot be reached.
	ErrNetwork = errors.New("network error")
	// ErrPersistence is returned when the service failed to read or store data.
	// Resubmitting is safe.
	ErrPersistence = errors.New("service failed to process the request")
)

// StatusError is an unexpected non-2xx answer that has no dedicated mapping.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}

// Client is a catalog service client. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the service at baseURL. A nil httpClient uses a
// client with a 15 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// ListItems returns the item catalog.
func (c *Client) ListItems(ctx context.Context) ([]model.Item, error) {
	var items []model.Item
	if err := c.do(ctx, http.MethodGet, "/items", nil, http.StatusOK, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// CreatePoint submits a new collection point.
func (c *Client) CreatePoint(ctx context.Context, in model.PointInput) (*model.Point, error) {
	var p model.Point
	if err := c.do(ctx, http.MethodPost, "/points", in, http.StatusCreated, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPoints returns the points matching filter.
func (c *Client) ListPoints(ctx context.Context, filter model.PointFilter) ([]model.Point, error) {
	q := url.Values{}
	if filter.UF != "" {
		q.Set("uf", filter.UF)
	}
	if filter.City != "" {
		q.Set("city", filter.City)
	}
	if len(filter.Items) > 0 {
		ids := make([]string, len(filter.Items))
		for i, id := range filter.Items {
			ids[i] = strconv.FormatInt(id, 10)
		}
		q.Set("items", strings.Join(ids, ","))
	}

	path := "/points"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var points []model.Point
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &points); err != nil {
		return nil, err
	}
	return points, nil
}

// GetPoint returns one point. An unknown id yields an error wrapping
// model.ErrNotFound.
func (c *Client) GetPoint(ctx context.Context, id int64) (*model.Point, error) {
	var p model.Point
	if err := c.do(ctx, http.MethodGet, "/points/"+strconv.FormatInt(id, 10), nil, http.StatusOK, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Regions returns the region codes known to the service.
func (c *Client) Regions(ctx context.Context) ([]string, error) {
	var regions []string
	if err := c.do(ctx, http.MethodGet, "/regions", nil, http.StatusOK, &regions); err != nil {
		return nil, err
	}
	return regions, nil
}

// Localities returns the localities of region.
func (c *Client) Localities(ctx context.Context, region string) ([]string, error) {
	var localities []string
	path := "/regions/" + url.PathEscape(region) + "/localities"
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &localities); err != nil {
		return nil, err
	}
	return localities, nil
}

type errorBody struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, want int, target any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", ErrNetwork, path, err)
	}
	return nil
}

// statusError maps an error answer to the client's error kinds.
func statusError(resp *http.Response) error {
	var eb errorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &eb); err != nil || eb.Error == "" {
		eb.Error = strings.TrimSpace(string(data))
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		ve := &model.ValidationError{Problems: eb.Fields}
		if ve.Empty() {
			ve.Add(strings.TrimPrefix(eb.Error, "invalid input: "))
		}
		return ve
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", eb.Error, model.ErrNotFound)
	case resp.StatusCode == http.StatusBadGateway || resp.StatusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", ErrNetwork, eb.Error)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", ErrPersistence, eb.Error)
	default:
		return &StatusError{Code: resp.StatusCode, Message: eb.Error}
	}
}
