package storefront

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"pricecheck/internal/httpx"
	"pricecheck/internal/vend"
)

// Config controls one storefront adapter. Every vendor in the comparison is
// an instance of this adapter with its own search URL and selectors; the
// markup details stay in configuration, not code.
type Config struct {
	Name string
	// SearchURL is the search page URL with %s for the escaped product code.
	SearchURL string
	// PriceSelector selects the price text, either on the whole page or
	// within a matched listing when ListingSelector is set.
	PriceSelector string
	// ListingSelector, when set, switches to disambiguation mode: listings
	// are walked in page order and the first whose TitleSelector text
	// references exactly the product code wins.
	ListingSelector string
	TitleSelector   string
	// Timeout bounds one fetch. Defaults to 10s when unset; slow storefronts
	// may need much more, snappy ones much less.
	Timeout time.Duration
	Headers map[string]string
}

type Vendor struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Vendor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Vendor{cfg: cfg, client: hc}
}

func (v *Vendor) Name() string { return v.cfg.Name }

// FetchRaw retrieves the raw price text shown for productCode.
// vendor.ErrNoListing means the page rendered but nothing matched; any other
// error is a transport or decode failure.
func (v *Vendor) FetchRaw(ctx context.Context, productCode string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	target := fmt.Sprintf(v.cfg.SearchURL, url.QueryEscape(productCode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return "", err
	}
	for k, val := range v.cfg.Headers {
		req.Header.Set(k, val)
	}
	resp, err := v.client.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s: GET %s -> %d", v.cfg.Name, target, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: parse page: %w", v.cfg.Name, err)
	}

	var raw string
	if v.cfg.ListingSelector != "" {
		doc.Find(v.cfg.ListingSelector).EachWithBreak(func(_ int, listing *goquery.Selection) bool {
			title := strings.TrimSpace(listing.Find(v.cfg.TitleSelector).Text())
			if !TitleMatchesCode(title, productCode) {
				return true
			}
			raw = strings.TrimSpace(listing.Find(v.cfg.PriceSelector).Text())
			return false
		})
	} else {
		raw = strings.TrimSpace(doc.Find(v.cfg.PriceSelector).First().Text())
	}
	if raw == "" {
		return "", vendor.ErrNoListing
	}
	return raw, nil
}

// TitleMatchesCode reports whether title references exactly code. An
// occurrence immediately followed by another alphanumeric rune is a
// different product code (e.g. "ABC123X" for "ABC123") and does not count,
// but a later exact occurrence in the same title still matches.
func TitleMatchesCode(title, code string) bool {
	if code == "" {
		return false
	}
	for start := 0; start <= len(title)-len(code); {
		i := strings.Index(title[start:], code)
		if i < 0 {
			return false
		}
		end := start + i + len(code)
		if end >= len(title) {
			return true
		}
		r, _ := utf8.DecodeRuneInString(title[end:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return true
		}
		start = start + i + 1
	}
	return false
}
