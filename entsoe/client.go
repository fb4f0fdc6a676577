package entsoe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/devskill-org/lec-planner/calendar"
	"github.com/jinzhu/now"
)

const (
	// DefaultBaseURL is the ENTSO-E transparency platform REST endpoint.
	DefaultBaseURL = "https://web-api.tp.entsoe.eu/api"
	// DefaultDomain is the NO1 (Oslo) bidding zone.
	DefaultDomain = "10YNO-1--------2"

	dayAheadDocument = "A44"
	periodLayout     = "200601021504"
)

// Client downloads day-ahead price documents for one bidding zone.
type Client struct {
	BaseURL    string
	Token      string
	Domain     string
	UserAgent  string
	HTTPClient *http.Client
}

// NewClient creates a client for the default endpoint.
func NewClient(token, domain string) *Client {
	if domain == "" {
		domain = DefaultDomain
	}
	return &Client{
		BaseURL:    DefaultBaseURL,
		Token:      token,
		Domain:     domain,
		UserAgent:  "lec-planner/1.0",
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// ValidateAPIURL checks that apiURL is an absolute http(s) URL.
func ValidateAPIURL(apiURL string) error {
	if apiURL == "" {
		return fmt.Errorf("API URL cannot be empty")
	}
	u, err := url.Parse(apiURL)
	if err != nil {
		return fmt.Errorf("invalid API URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("API URL must start with http:// or https://")
	}
	if u.Host == "" {
		return fmt.Errorf("API URL has no host")
	}
	return nil
}

// periodString formats t the way the API expects periodStart and periodEnd.
func periodString(t time.Time) string {
	return t.UTC().Format(periodLayout)
}

func (c *Client) dayAheadURL(start, end time.Time) (string, error) {
	if err := ValidateAPIURL(c.BaseURL); err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("documentType", dayAheadDocument)
	q.Set("in_Domain", c.Domain)
	q.Set("out_Domain", c.Domain)
	q.Set("periodStart", periodString(start))
	q.Set("periodEnd", periodString(end))
	q.Set("securityToken", c.Token)
	sep := "?"
	if strings.Contains(c.BaseURL, "?") {
		sep = "&"
	}
	return c.BaseURL + sep + q.Encode(), nil
}

// Download fetches the day-ahead prices for [start, end).
func (c *Client) Download(ctx context.Context, start, end time.Time) (*PublicationMarketDocument, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("period end %s is not after start %s", end, start)
	}
	apiURL, err := c.dayAheadURL(start, end)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	req.Header.Set("Accept", "application/xml, text/xml")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP request failed with status %d: %s", resp.StatusCode, resp.Status)
	}
	return Decode(resp.Body)
}

// DownloadYear fetches a whole year month by month and merges the documents.
// progress, when not nil, is called after each month.
func (c *Client) DownloadYear(ctx context.Context, year int, loc *time.Location, progress func(month int)) (*PublicationMarketDocument, error) {
	start, _ := calendar.YearBounds(year, loc)
	var doc *PublicationMarketDocument
	for m := 0; m < calendar.MonthsPerYear; m++ {
		from := now.With(start.AddDate(0, m, 0)).BeginningOfMonth()
		to := now.With(from).EndOfMonth().Add(time.Nanosecond)
		part, err := c.Download(ctx, from, to)
		if err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", from.Format("2006-01"), err)
		}
		doc = merge(doc, part)
		if progress != nil {
			progress(m)
		}
	}
	return doc, nil
}
