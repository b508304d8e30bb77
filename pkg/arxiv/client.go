// Package arxiv queries the arXiv metadata API (Atom feed).
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paperstack/backend/internal/domain"
)

// baseURL is a var so tests can point the client at an httptest server.
var baseURL = "http://export.arxiv.org/api/query"

type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Feed represents the arXiv Atom feed response.
type Feed struct {
	XMLName      xml.Name `xml:"feed"`
	TotalResults int      `xml:"totalResults"`
	Entries      []Entry  `xml:"entry"`
}

type Entry struct {
	ID        string   `xml:"id"`
	Title     string   `xml:"title"`
	Summary   string   `xml:"summary"`
	Published string   `xml:"published"`
	Updated   string   `xml:"updated"`
	Authors   []Author `xml:"author"`
	Links     []Link   `xml:"link"`
}

type Author struct {
	Name string `xml:"name"`
}

type Link struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

func (c *Client) Name() string { return domain.SourceArxiv }

// Fetch retrieves metadata for one arXiv id.
func (c *Client) Fetch(ctx context.Context, arxivID string) (*domain.PaperMeta, error) {
	params := url.Values{}
	params.Set("id_list", arxivID)

	feed, err := c.query(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(feed.Entries) == 0 || strings.TrimSpace(feed.Entries[0].Title) == "" {
		return nil, fmt.Errorf("arxiv id %q not found", arxivID)
	}
	return entryToMeta(&feed.Entries[0]), nil
}

// Search runs a free-text query, sorted by relevance.
func (c *Client) Search(ctx context.Context, query string, limit, offset int) ([]*domain.PaperMeta, int, error) {
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("search_query", fmt.Sprintf("all:%s", query))
	params.Set("start", fmt.Sprintf("%d", offset))
	params.Set("max_results", fmt.Sprintf("%d", limit))
	params.Set("sortBy", "relevance")
	params.Set("sortOrder", "descending")

	feed, err := c.query(ctx, params)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*domain.PaperMeta, 0, len(feed.Entries))
	for i := range feed.Entries {
		if meta := entryToMeta(&feed.Entries[i]); meta != nil {
			items = append(items, meta)
		}
	}
	return items, feed.TotalResults, nil
}

func (c *Client) query(ctx context.Context, params url.Values) (*Feed, error) {
	reqURL := fmt.Sprintf("%s?%s", baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating arxiv request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv API returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read arxiv response: %w", err)
	}

	var feed Feed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse arxiv response: %w", err)
	}
	return &feed, nil
}

func entryToMeta(entry *Entry) *domain.PaperMeta {
	arxivID := extractArxivID(entry.ID)
	if arxivID == "" {
		return nil
	}

	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}

	// published, falling back to updated, truncated to the date portion.
	var publishedDate *time.Time
	for _, raw := range []string{entry.Published, entry.Updated} {
		if raw == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			day := t.Truncate(24 * time.Hour)
			publishedDate = &day
			break
		}
	}

	// Prefer the link tagged pdf; synthesize otherwise. Either way the URL
	// ends in .pdf.
	pdfURL := fmt.Sprintf("https://arxiv.org/pdf/%s.pdf", arxivID)
	for _, link := range entry.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			pdfURL = link.Href
			if !strings.HasSuffix(pdfURL, ".pdf") {
				pdfURL += ".pdf"
			}
			break
		}
	}

	return &domain.PaperMeta{
		Source:        domain.SourceArxiv,
		ExternalID:    arxivID,
		Title:         strings.TrimSpace(entry.Title),
		Abstract:      strings.TrimSpace(entry.Summary),
		Authors:       authors,
		PDFURL:        pdfURL,
		PublishedDate: publishedDate,
	}
}

// extractArxivID pulls the bare id out of entry URLs like
// "http://arxiv.org/abs/2301.00001v1" or "http://arxiv.org/abs/hep-th/9901001v1".
func extractArxivID(fullURL string) string {
	parts := strings.Split(fullURL, "/abs/")
	if len(parts) != 2 {
		return ""
	}
	id := parts[1]
	if idx := strings.LastIndex(id, "v"); idx > 0 {
		versionPart := id[idx+1:]
		isVersion := len(versionPart) > 0
		for _, c := range versionPart {
			if c < '0' || c > '9' {
				isVersion = false
				break
			}
		}
		if isVersion {
			id = id[:idx]
		}
	}
	return id
}
