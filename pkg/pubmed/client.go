// Package pubmed queries the NCBI eutils API. Metadata comes from esummary;
// the abstract is a separate best-effort plain-text efetch, so a paper
// without one still resolves.
package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paperstack/backend/internal/domain"
)

// eutils endpoints, vars so tests can substitute httptest servers.
var (
	esearchURL  = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"
	esummaryURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esummary.fcgi"
	efetchURL   = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi"
)

type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

type esearchResponse struct {
	Result struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type docSummary struct {
	Title      string `json:"title"`
	PubDate    string `json:"pubdate"`
	Authors    []struct {
		Name string `json:"name"`
	} `json:"authors"`
	ArticleIDs []struct {
		IDType string `json:"idtype"`
		Value  string `json:"value"`
	} `json:"articleids"`
}

func (c *Client) Name() string { return domain.SourcePubmed }

// Fetch retrieves metadata for one PMID. PMC-prefixed identifiers skip the
// summary lookup: the article id already yields a free full-text PDF URL and
// the pipeline fills the title from the extracted text.
func (c *Client) Fetch(ctx context.Context, id string) (*domain.PaperMeta, error) {
	if strings.HasPrefix(id, "PMC") {
		return &domain.PaperMeta{
			Source:     domain.SourcePubmed,
			ExternalID: id,
			PDFURL:     pmcPDFURL(id),
		}, nil
	}

	doc, err := c.fetchSummary(ctx, id)
	if err != nil {
		return nil, err
	}

	meta := summaryToMeta(id, doc)

	// Abstract is best-effort: its absence is not fatal.
	if abstract, err := c.fetchAbstract(ctx, id); err == nil {
		meta.Abstract = abstract
	}
	return meta, nil
}

// Search runs esearch then a batched esummary over the returned PMIDs.
// Search-result abstracts are intentionally left empty; only the detail
// fetch supplies a trustworthy abstract.
func (c *Client) Search(ctx context.Context, query string, limit, offset int) ([]*domain.PaperMeta, int, error) {
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("retstart", fmt.Sprintf("%d", offset))
	params.Set("retmax", fmt.Sprintf("%d", limit))
	params.Set("sort", "relevance")
	params.Set("retmode", "json")

	body, err := c.get(ctx, esearchURL, params)
	if err != nil {
		return nil, 0, err
	}

	var search esearchResponse
	if err := json.Unmarshal(body, &search); err != nil {
		return nil, 0, fmt.Errorf("failed to parse esearch response: %w", err)
	}

	var total int
	fmt.Sscanf(search.Result.Count, "%d", &total)

	if len(search.Result.IDList) == 0 {
		return nil, total, nil
	}

	summaries, err := c.fetchSummaries(ctx, search.Result.IDList)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*domain.PaperMeta, 0, len(search.Result.IDList))
	for _, pmid := range search.Result.IDList {
		if doc, ok := summaries[pmid]; ok {
			items = append(items, summaryToMeta(pmid, doc))
		}
	}
	return items, total, nil
}

func (c *Client) fetchSummary(ctx context.Context, pmid string) (*docSummary, error) {
	summaries, err := c.fetchSummaries(ctx, []string{pmid})
	if err != nil {
		return nil, err
	}
	doc, ok := summaries[pmid]
	if !ok || doc.Title == "" {
		return nil, fmt.Errorf("pmid %q not found", pmid)
	}
	return doc, nil
}

func (c *Client) fetchSummaries(ctx context.Context, pmids []string) (map[string]*docSummary, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("retmode", "json")

	body, err := c.get(ctx, esummaryURL, params)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse esummary response: %w", err)
	}

	out := make(map[string]*docSummary, len(pmids))
	for _, pmid := range pmids {
		raw, ok := envelope.Result[pmid]
		if !ok {
			continue
		}
		doc := &docSummary{}
		if err := json.Unmarshal(raw, doc); err != nil {
			continue
		}
		out[pmid] = doc
	}
	return out, nil
}

func (c *Client) fetchAbstract(ctx context.Context, pmid string) (string, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", pmid)
	params.Set("rettype", "abstract")
	params.Set("retmode", "text")

	body, err := c.get(ctx, efetchURL, params)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	reqURL := fmt.Sprintf("%s?%s", endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating pubmed request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pubmed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pubmed API returned HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func summaryToMeta(pmid string, doc *docSummary) *domain.PaperMeta {
	authors := make([]string, 0, len(doc.Authors))
	for _, a := range doc.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}

	// When a PMC id exists, the article has free full text.
	pdfURL := ""
	for _, id := range doc.ArticleIDs {
		if id.IDType == "pmc" && id.Value != "" {
			pdfURL = pmcPDFURL(id.Value)
			break
		}
	}

	return &domain.PaperMeta{
		Source:        domain.SourcePubmed,
		ExternalID:    pmid,
		Title:         strings.TrimSpace(doc.Title),
		Authors:       authors,
		PDFURL:        pdfURL,
		PublishedDate: parsePubDate(doc.PubDate),
	}
}

// parsePubDate handles eutils dates like "2020 Jan 15", "2020 Jan", "2020".
func parsePubDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006 Jan 2", "2006 Jan", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func pmcPDFURL(pmcID string) string {
	return fmt.Sprintf("https://www.ncbi.nlm.nih.gov/pmc/articles/%s/pdf/", pmcID)
}
