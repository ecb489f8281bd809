// Package rakuten implements catalog.Lookup on top of the Rakuten Books
// BooksBook Search API (version 20170404).
package rakuten

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"release_notification_bot/internal/domain/catalog"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL     = "https://app.rakuten.co.jp/services/api/BooksBook/Search/20170404"
	defaultHTTPTimeout = 15 * time.Second
	// ComicsGenreID restricts results to the comics genre.
	ComicsGenreID = "001001"
	defaultHits   = 30
)

// Config describes the Rakuten client configuration.
type Config struct {
	ApplicationID     string
	AffiliateID       string
	BaseURL           string
	GenreID           string
	RequestsPerSecond float64 // <= 0 disables pacing
	HTTPClient        *http.Client
}

// Client wraps the BooksBook Search endpoint.
type Client struct {
	applicationID string
	affiliateID   string
	genreID       string
	baseURL       *url.URL
	http          *http.Client
	limiter       *rate.Limiter
}

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	appID := strings.TrimSpace(cfg.ApplicationID)
	if appID == "" {
		return nil, errors.New("rakuten: application id is required")
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("rakuten: parse base url: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	genre := strings.TrimSpace(cfg.GenreID)
	if genre == "" {
		genre = ComicsGenreID
	}
	return &Client{
		applicationID: appID,
		affiliateID:   strings.TrimSpace(cfg.AffiliateID),
		genreID:       genre,
		baseURL:       baseURL,
		http:          client,
		limiter:       limiter,
	}, nil
}

type searchResponse struct {
	Items []item `json:"Items"`
	Count int    `json:"count"`

	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type item struct {
	Title          string `json:"title"`
	Author         string `json:"author"`
	PublisherName  string `json:"publisherName"`
	ISBN           string `json:"isbn"`
	SalesDate      string `json:"salesDate"`
	LargeImageURL  string `json:"largeImageUrl"`
	MediumImageURL string `json:"mediumImageUrl"`
	ItemURL        string `json:"itemUrl"`
	AffiliateURL   string `json:"affiliateUrl"`
}

// Search queries the API for a title, optionally narrowed by author. Results are
// sorted newest release first, which is the order the selector falls back to.
func (c *Client) Search(ctx context.Context, title, author string) ([]catalog.RawItem, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("rakuten: empty title")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rakuten: wait for rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("formatVersion", "2")
	params.Set("applicationId", c.applicationID)
	params.Set("title", title)
	if author = strings.TrimSpace(author); author != "" {
		params.Set("author", author)
	}
	params.Set("booksGenreId", c.genreID)
	params.Set("sort", "-releaseDate")
	params.Set("hits", fmt.Sprintf("%d", defaultHits))
	if c.affiliateID != "" {
		params.Set("affiliateId", c.affiliateID)
	}

	endpoint := *c.baseURL
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("rakuten: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rakuten: search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("rakuten: read response: %w", err)
	}

	var decoded searchResponse
	decodeErr := json.Unmarshal(body, &decoded)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && decoded.Error != "" {
			return nil, fmt.Errorf("rakuten: search failed (%d): %s: %s", resp.StatusCode, decoded.Error, decoded.ErrorDescription)
		}
		return nil, fmt.Errorf("rakuten: search failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("rakuten: decode response: %w", decodeErr)
	}

	results := make([]catalog.RawItem, 0, len(decoded.Items))
	for _, it := range decoded.Items {
		image := it.LargeImageURL
		if image == "" {
			image = it.MediumImageURL
		}
		detail := it.ItemURL
		if it.AffiliateURL != "" {
			detail = it.AffiliateURL
		}
		results = append(results, catalog.RawItem{
			Title:     it.Title,
			Author:    it.Author,
			Publisher: it.PublisherName,
			ISBN:      it.ISBN,
			SalesDate: it.SalesDate,
			ImageURL:  image,
			ItemURL:   detail,
		})
	}
	return results, nil
}
