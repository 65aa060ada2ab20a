// Package catalog implements the CatalogClient port against the catalog's
// HTTP API.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.trai.ch/floe/internal/core/domain"
	"go.trai.ch/floe/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	connectTimeout = 15 * time.Second
	requestTimeout = 60 * time.Second

	resolveEndpoint  = "/api/v1/catalog/resolve"
	searchEndpoint   = "/api/v1/catalog/search"
	packagesEndpoint = "/api/v1/catalog/packages/"

	defaultPageSize = 50
)

// ErrCatalog is the base error for transport and API failures. Resolution
// failures are not errors at this layer; they travel inside the response.
var ErrCatalog = zerr.New("catalog request failed")

// Client talks to the catalog service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ ports.CatalogClient = (*Client)(nil)

// NewClient creates a catalog client. token may be empty for anonymous
// access.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			},
		},
	}
}

// resolveRequest and friends mirror the service's JSON schema.
type resolveRequest struct {
	Items []domain.PackageGroup `json:"items"`
}

type resolveResponse struct {
	Items []wireResolvedGroup `json:"items"`
}

type wireResolvedGroup struct {
	Name     string        `json:"name"`
	Page     *wirePage     `json:"page"`
	Messages []wireMessage `json:"messages"`
}

type wirePage struct {
	Complete bool                           `json:"complete"`
	Packages []domain.PackageResolutionInfo `json:"packages"`
	Page     int64                          `json:"page"`
	URL      string                         `json:"url"`
	Messages []wireMessage                  `json:"messages"`
}

type wireMessage struct {
	Type    string              `json:"type"`
	Level   domain.MessageLevel `json:"level"`
	Message string              `json:"message"`
	Context map[string]string   `json:"context"`
}

// Resolve sends all package groups in one batched call.
func (c *Client) Resolve(ctx context.Context, groups []domain.PackageGroup) ([]domain.ResolvedPackageGroup, error) {
	body, err := json.Marshal(resolveRequest{Items: groups})
	if err != nil {
		return nil, zerr.Wrap(err, "failed to serialize resolve request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+resolveEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, zerr.Wrap(err, ErrCatalog.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, zerr.Wrap(err, ErrCatalog.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var parsed resolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, zerr.Wrap(err, "failed to parse resolve response")
	}

	resolved := make([]domain.ResolvedPackageGroup, len(parsed.Items))
	for i, item := range parsed.Items {
		resolved[i] = item.toDomain()
	}
	return resolved, nil
}

// Search queries one page of packages matching term on system.
func (c *Client) Search(ctx context.Context, term, system string, limit int) (domain.SearchResults, error) {
	if limit <= 0 || limit > defaultPageSize {
		limit = defaultPageSize
	}
	params := url.Values{}
	params.Set("search_term", term)
	params.Set("system", system)
	params.Set("page", "0")
	params.Set("pageSize", strconv.Itoa(limit))

	var results domain.SearchResults
	if err := c.getJSON(ctx, searchEndpoint+"?"+params.Encode(), &results); err != nil {
		return domain.SearchResults{}, err
	}
	return results, nil
}

// PackageVersions lists every known version of attrPath.
func (c *Client) PackageVersions(ctx context.Context, attrPath string) (domain.PackageDetails, error) {
	var details domain.PackageDetails
	err := c.getJSON(ctx, packagesEndpoint+url.PathEscape(attrPath), &details)
	if err != nil {
		return domain.PackageDetails{}, err
	}
	return details, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return zerr.Wrap(err, ErrCatalog.Error())
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return zerr.Wrap(err, ErrCatalog.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrPackageNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return zerr.Wrap(err, "failed to parse catalog response")
	}
	return nil
}

func (g wireResolvedGroup) toDomain() domain.ResolvedPackageGroup {
	out := domain.ResolvedPackageGroup{
		Name: g.Name,
		Msgs: liftMessages(g.Messages),
	}
	if g.Page != nil {
		out.Page = &domain.CatalogPage{
			Complete: g.Page.Complete,
			Packages: g.Page.Packages,
			Page:     g.Page.Page,
			URL:      g.Page.URL,
			Msgs:     liftMessages(g.Page.Messages),
		}
	}
	return out
}

func liftMessages(msgs []wireMessage) []domain.ResolutionMessage {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]domain.ResolutionMessage, len(msgs))
	for i, msg := range msgs {
		out[i] = domain.NewResolutionMessage(msg.Type, msg.Level, msg.Message, msg.Context)
	}
	return out
}

// apiError reads a structured error response if there is one. Bodies that
// don't parse may contain HTML garbage, so only the status is reported then.
func apiError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var parsed struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Detail != "" {
		return zerr.With(ErrCatalog, "status", fmt.Sprintf("%d: %s", resp.StatusCode, parsed.Detail))
	}
	return zerr.With(ErrCatalog, "status", resp.StatusCode)
}
