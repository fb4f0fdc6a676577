package entsoe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devskill-org/lec-planner/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// monthlyServer answers every request with hourly prices equal to the
// requested month number.
func monthlyServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		start, err := time.Parse(periodLayout, q.Get("periodStart"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		end, err := time.Parse(periodLayout, q.Get("periodEnd"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		month := float64(start.Month())
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(hourlyXML(start, end, func(int) float64 { return month })))
	}))
}

func TestNewClient(t *testing.T) {
	c := NewClient("token", "")
	assert.Equal(t, DefaultBaseURL, c.BaseURL)
	assert.Equal(t, DefaultDomain, c.Domain)
	assert.NotNil(t, c.HTTPClient)
}

func TestDownloadSendsQuery(t *testing.T) {
	var got *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = w.Write([]byte(quarterHourXML))
	}))
	defer server.Close()

	c := NewClient("secret", "10YNO-2--------T")
	c.BaseURL = server.URL
	c.UserAgent = "test-agent"
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	doc, err := c.Download(context.Background(), start, start.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, doc.TimeSeries, 1)

	require.NotNil(t, got)
	q := got.URL.Query()
	assert.Equal(t, "A44", q.Get("documentType"))
	assert.Equal(t, "10YNO-2--------T", q.Get("in_Domain"))
	assert.Equal(t, "10YNO-2--------T", q.Get("out_Domain"))
	assert.Equal(t, "202101010000", q.Get("periodStart"))
	assert.Equal(t, "202101020000", q.Get("periodEnd"))
	assert.Equal(t, "secret", q.Get("securityToken"))
	assert.Equal(t, "test-agent", got.Header.Get("User-Agent"))
}

func TestDownloadErrors(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer failing.Close()
	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not xml"))
	}))
	defer garbage.Close()

	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		baseURL string
		end     time.Time
	}{
		{name: "http status", baseURL: failing.URL, end: start.Add(time.Hour)},
		{name: "invalid xml", baseURL: garbage.URL, end: start.Add(time.Hour)},
		{name: "empty period", baseURL: garbage.URL, end: start},
		{name: "bad base url", baseURL: "ftp://example.com", end: start.Add(time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient("token", "")
			c.BaseURL = tt.baseURL
			_, err := c.Download(context.Background(), start, tt.end)
			assert.Error(t, err)
		})
	}
}

func TestDownloadContextCancelled(t *testing.T) {
	var calls atomic.Int32
	server := monthlyServer(t, &calls)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient("token", "")
	c.BaseURL = server.URL
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := c.Download(ctx, start, start.Add(time.Hour))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDownloadYear(t *testing.T) {
	var calls atomic.Int32
	server := monthlyServer(t, &calls)
	defer server.Close()

	c := NewClient("token", "")
	c.BaseURL = server.URL
	var months []int
	doc, err := c.DownloadYear(context.Background(), 2021, time.UTC, func(m int) { months = append(months, m) })
	require.NoError(t, err)
	assert.Equal(t, int32(calendar.MonthsPerYear), calls.Load())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, months)
	assert.Len(t, doc.TimeSeries, calendar.MonthsPerYear)

	series, err := HourlySeries(doc, 2021, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 1.0, series[0])
	assert.Equal(t, 2.0, series[31*24])
	assert.Equal(t, 12.0, series[calendar.HoursPerYear-1])
}

func TestValidateAPIURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{url: "https://web-api.tp.entsoe.eu/api"},
		{url: "http://localhost:8080/api"},
		{url: "", wantErr: true},
		{url: "ftp://example.com", wantErr: true},
		{url: "https://", wantErr: true},
		{url: "not a url", wantErr: true},
	}
	for _, tt := range tests {
		err := ValidateAPIURL(tt.url)
		if tt.wantErr {
			assert.Error(t, err, tt.url)
		} else {
			assert.NoError(t, err, tt.url)
		}
	}
}
