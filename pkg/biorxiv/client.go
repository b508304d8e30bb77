// Package biorxiv queries the bioRxiv details API. The same API serves
// medRxiv through the server path segment, so one client covers both.
package biorxiv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paperstack/backend/internal/domain"
)

// baseURL is a var so tests can point the client at an httptest server.
var baseURL = "https://api.biorxiv.org"

// Server names accepted by the details API.
const (
	ServerBiorxiv = "biorxiv"
	ServerMedrxiv = "medrxiv"
)

type Client struct {
	httpClient *http.Client
	server     string
}

func NewClient(server string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		server:     server,
	}
}

type detailsResponse struct {
	Collection []detailEntry `json:"collection"`
}

type detailEntry struct {
	DOI      string `json:"doi"`
	Title    string `json:"title"`
	Authors  string `json:"authors"`
	Date     string `json:"date"`
	Version  string `json:"version"`
	Abstract string `json:"abstract"`
}

func (c *Client) Name() string {
	if c.server == ServerMedrxiv {
		return domain.SourceMedrxiv
	}
	return domain.SourceBiorxiv
}

// Fetch retrieves metadata for a DOI. The collection lists one entry per
// posted version; the last entry is the latest.
func (c *Client) Fetch(ctx context.Context, doi string) (*domain.PaperMeta, error) {
	reqURL := fmt.Sprintf("%s/details/%s/%s", baseURL, c.server, doi)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating biorxiv request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("biorxiv API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("biorxiv API returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read biorxiv response: %w", err)
	}

	var details detailsResponse
	if err := json.Unmarshal(body, &details); err != nil {
		return nil, fmt.Errorf("failed to parse biorxiv response: %w", err)
	}
	if len(details.Collection) == 0 {
		return nil, fmt.Errorf("doi %q not found on %s", doi, c.server)
	}

	entry := details.Collection[len(details.Collection)-1]

	version := strings.TrimSpace(entry.Version)
	if version == "" {
		version = "1"
	}

	var publishedDate *time.Time
	if t, err := time.Parse("2006-01-02", entry.Date); err == nil {
		publishedDate = &t
	}

	return &domain.PaperMeta{
		Source:        c.Name(),
		ExternalID:    entry.DOI,
		Title:         strings.TrimSpace(entry.Title),
		Authors:       splitAuthors(entry.Authors),
		Abstract:      strings.TrimSpace(entry.Abstract),
		PDFURL:        fmt.Sprintf("https://www.%s.org/content/%sv%s.full.pdf", c.server, entry.DOI, version),
		PublishedDate: publishedDate,
	}, nil
}

// splitAuthors breaks the semicolon-delimited author string into a list.
func splitAuthors(s string) []string {
	var authors []string
	for _, part := range strings.Split(s, ";") {
		if name := strings.TrimSpace(part); name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}
