package rates

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"pricecheck/internal/priceparse"
)

const defaultEndpoint = "https://www.tcmb.gov.tr/kurlar/today.xml"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=rates_test -destination=mock_http_client_test.go -source=tcmb.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Snapshot is one observation of the central-bank selling rate for the
// configured foreign currency against the domestic currency.
type Snapshot struct {
	Pair      string          `json:"pair"`
	Rate      decimal.Decimal `json:"rate"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Client fetches the daily indicative rate from the TCMB XML feed.
type Client struct {
	// endpoint is the feed URL.
	endpoint string
	// httpClient performs the request.
	httpClient HTTPClient
	// header contains additional headers sent with each request.
	header http.Header
	// currency is the foreign currency code looked up in the feed.
	currency string
	// domestic is the home currency code, used only for the pair label.
	domestic string
}

// Option is a configuration option for the rates client.
type Option func(*Client)

// WithEndpoint overrides the feed URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithHTTPClient sets the HTTP client used to reach the feed.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithDomestic sets the domestic currency code used in the pair label.
func WithDomestic(code string) Option {
	return func(c *Client) {
		c.domestic = code
	}
}

// New creates a rates client for one foreign currency, e.g. "EUR".
func New(currency string, options ...Option) *Client {
	c := &Client{
		endpoint:   defaultEndpoint,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		currency:   currency,
		domestic:   "TRY",
	}
	if c.currency == "" {
		c.currency = "EUR"
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Pair returns the currency pair label, e.g. "EUR/TRY".
func (c *Client) Pair() string { return c.currency + "/" + c.domestic }

// feed mirrors the Tarih_Date document served by TCMB.
type feed struct {
	XMLName    xml.Name       `xml:"Tarih_Date"`
	Date       string         `xml:"Date,attr"`
	Currencies []feedCurrency `xml:"Currency"`
}

type feedCurrency struct {
	Code         string `xml:"Kod,attr"`
	ForexSelling string `xml:"ForexSelling"`
}

// Fetch retrieves the current selling rate for the configured currency.
// Callers treat any error as "rate unavailable" and degrade; they must not
// fail the surrounding query.
func (c *Client) Fetch(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, http.NoBody)
	if err != nil {
		return nil, err
	}
	for key, values := range c.header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rates: fetch %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("rates: GET %s -> %d", c.endpoint, resp.StatusCode)
	}

	dec := xml.NewDecoder(io.LimitReader(resp.Body, 1<<20))
	// The feed declares ISO-8859-9; every field we read is plain ASCII.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	var doc feed
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("rates: decode feed: %w", err)
	}
	for _, cur := range doc.Currencies {
		if cur.Code != c.currency {
			continue
		}
		rate, err := priceparse.Parse(cur.ForexSelling)
		if err != nil {
			return nil, fmt.Errorf("rates: %s selling rate %q: %w", c.currency, cur.ForexSelling, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("rates: non-positive %s rate %q", c.currency, cur.ForexSelling)
		}
		return &Snapshot{Pair: c.Pair(), Rate: rate, FetchedAt: time.Now().UTC()}, nil
	}
	return nil, fmt.Errorf("rates: currency %s not in feed", c.currency)
}
