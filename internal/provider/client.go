// Package provider implements the HTTP client for the upstream shared-album
// service.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/iconidentify/albumproxy/internal/config"
	"github.com/iconidentify/albumproxy/internal/domain"
)

// Client fetches album contents from the upstream provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a provider client from configuration.
func NewClient(cfg config.ProviderConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type albumResponse struct {
	Metadata domain.AlbumMetadata `json:"metadata"`
	Photos   []domain.Photo       `json:"photos"`
}

// FetchAlbum retrieves the full album for a canonical token. The returned
// result carries the provider's raw derivative URLs; rewriting happens at
// serve time.
func (c *Client) FetchAlbum(ctx context.Context, token domain.Token) (domain.AlbumResult, error) {
	endpoint := fmt.Sprintf("%s/albums/%s", c.baseURL, url.PathEscape(token.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.AlbumResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.AlbumResult{}, fmt.Errorf("fetch album: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return domain.AlbumResult{}, domain.ErrAlbumNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.AlbumResult{}, domain.ErrInvalidToken
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.AlbumResult{}, domain.ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return domain.AlbumResult{}, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var body albumResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.AlbumResult{}, fmt.Errorf("decode album response: %w", err)
	}

	result := domain.AlbumResult{
		Metadata: body.Metadata,
		Photos:   body.Photos,
	}
	if result.Metadata.LastUpdate.IsZero() {
		result.Metadata.LastUpdate = time.Now()
	}
	if result.Metadata.ItemCount == 0 {
		result.Metadata.ItemCount = len(result.Photos)
	}
	return result, nil
}
