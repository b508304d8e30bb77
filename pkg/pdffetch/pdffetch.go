// Package pdffetch locates PDF links on arbitrary web pages and downloads
// PDF bytes with a size ceiling.
package pdffetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const maxRedirects = 5

// ErrTooLarge is returned when a download exceeds the configured byte ceiling.
var ErrTooLarge = errors.New("pdf exceeds size limit")

// linkPatterns are tried in order against every candidate href; the first
// pattern with a match wins.
var linkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.pdf(?:[?#].*)?$`),
	regexp.MustCompile(`(?i)/pdf/`),
	regexp.MustCompile(`(?i)download.*\.pdf`),
}

type Client struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
}

func NewClient(timeout time.Duration, userAgent string, maxBytes int64) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxBytes:  maxBytes,
	}
}

// Locate returns the PDF URL reachable from pageURL, or "" when the page has
// none. An empty result is a normal outcome, not an error.
func (c *Client) Locate(ctx context.Context, pageURL string) (string, error) {
	if strings.HasSuffix(strings.ToLower(strippedPath(pageURL)), ".pdf") {
		return pageURL, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, pageURL)
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/pdf") {
		return pageURL, nil
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("parsing page: %w", err)
	}

	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok && href != "" {
			hrefs = append(hrefs, href)
		}
	})

	base := resp.Request.URL
	for _, pattern := range linkPatterns {
		for _, href := range hrefs {
			if pattern.MatchString(href) {
				if abs := resolveRef(base, href); abs != "" {
					return abs, nil
				}
			}
		}
	}
	return "", nil
}

// Download fetches pdfURL and returns its bytes. Non-2xx statuses and
// oversize bodies are errors.
func (c *Client) Download(ctx context.Context, pdfURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading pdf: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, pdfURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading pdf body: %w", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

func strippedPath(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		return u.Path
	}
	return rawURL
}

func resolveRef(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
