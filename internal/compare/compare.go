package compare

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pricecheck/internal/catalog"
	"pricecheck/internal/metrics"
	"pricecheck/internal/priceparse"
	"pricecheck/internal/rates"
	"pricecheck/internal/vend"
)

// Status is the terminal outcome of one vendor quote. A quote is created in
// exactly one status and never changes.
type Status string

const (
	// StatusOK: raw text retrieved and normalized. The amount may still be
	// non-positive, which keeps the quote out of ranking and discounts.
	StatusOK Status = "ok"
	// StatusNotFound: vendor answered but listed nothing for the code.
	StatusNotFound Status = "not_found"
	// StatusParseError: raw text retrieved but not numeric.
	StatusParseError Status = "parse_error"
	// StatusFetchError: vendor unreachable, timed out, or served an error.
	StatusFetchError Status = "fetch_error"
)

// Quote is one vendor's price observation for one comparison call.
type Quote struct {
	Vendor string
	// Raw is the scraped price text, kept for display even when it failed
	// to parse. Empty for NotFound and FetchError.
	Raw    string
	Amount *decimal.Decimal
	Status Status
	// Discount is the percent reduction versus the list price, rounded to
	// two decimals. Nil when no discount is computable, which is distinct
	// from a true 0% discount.
	Discount *decimal.Decimal
}

// Usable reports whether the quote carries a price that can be ranked and
// discounted.
func (q Quote) Usable() bool {
	return q.Amount != nil && q.Amount.IsPositive()
}

// GapState distinguishes how the self-vendor gap was (or was not) computed.
type GapState string

const (
	// GapUnavailable: the self vendor has no usable price, or nothing ranked.
	GapUnavailable GapState = "unavailable"
	// GapSelfCheapest: the self vendor holds the lowest usable price.
	GapSelfCheapest GapState = "self_cheapest"
	// GapComputed: a competitor is cheaper; Percent holds the gap.
	GapComputed GapState = "computed"
)

// Gap is how much cheaper the best competitor is than the self vendor,
// as a percentage of the self vendor's price.
type Gap struct {
	State   GapState
	Percent decimal.Decimal
}

// Result is the outcome of one comparison call. Quotes are ordered usable
// first (ascending by amount, stable), then unusable in registration order.
type Result struct {
	ProductCode    string
	Catalog        *catalog.Entry
	Quotes         []Quote
	CheapestVendor string
	SelfGap        Gap
}

// Config tunes an Engine.
type Config struct {
	// SelfVendor names the merchant's own storefront among the registered
	// vendors; the gap computation is relative to it.
	SelfVendor string
	// Domestic is the home currency for catalog resolution.
	Domestic string
	Logger   *zap.Logger
}

// Engine joins concurrent vendor quotes with catalog data. It holds no
// per-query state; the catalog and rate snapshot are handed in by the
// caller so every comparison works on an immutable view.
type Engine struct {
	vendors  []vendor.Vendor
	resolver catalog.Resolver
	self     string
	log      *zap.Logger
}

func New(vendors []vendor.Vendor, cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		vendors:  vendors,
		resolver: catalog.Resolver{Domestic: cfg.Domestic},
		self:     cfg.SelfVendor,
		log:      log,
	}
}

// Compare fans out one fetch per registered vendor, waits for every vendor
// to settle, and joins the normalized quotes with the catalog entry. It
// never fails: every failure mode lands in a quote status or an absent
// discount. Canceling ctx cancels in-flight fetches.
func (e *Engine) Compare(ctx context.Context, productCode string, cat catalog.Catalog, snap *rates.Snapshot) Result {
	metrics.IncComparison()

	var rate *decimal.Decimal
	if snap != nil {
		r := snap.Rate
		rate = &r
	}
	entry, _ := e.resolver.Resolve(productCode, cat, rate)

	// One slot per vendor: registration order survives the concurrent join.
	quotes := make([]Quote, len(e.vendors))
	var wg sync.WaitGroup
	for i, v := range e.vendors {
		wg.Add(1)
		go func(i int, v vendor.Vendor) {
			defer wg.Done()
			quotes[i] = e.fetchQuote(ctx, v, productCode)
		}(i, v)
	}
	wg.Wait()

	for i := range quotes {
		quotes[i].Discount = discountPercent(entry, quotes[i])
	}

	ranked := make([]Quote, 0, len(quotes))
	unusable := make([]Quote, 0, len(quotes))
	for _, q := range quotes {
		if q.Usable() {
			ranked = append(ranked, q)
		} else {
			unusable = append(unusable, q)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Amount.LessThan(*ranked[j].Amount)
	})

	res := Result{
		ProductCode: productCode,
		Catalog:     entry,
		Quotes:      append(ranked, unusable...),
		SelfGap:     Gap{State: GapUnavailable},
	}
	if len(ranked) == 0 {
		return res
	}
	cheapest := ranked[0]
	res.CheapestVendor = cheapest.Vendor

	selfQuote, ok := findVendor(quotes, e.self)
	if !ok || !selfQuote.Usable() {
		return res
	}
	if cheapest.Vendor == e.self {
		res.SelfGap = Gap{State: GapSelfCheapest}
		return res
	}
	gap := selfQuote.Amount.Sub(*cheapest.Amount).
		Div(*selfQuote.Amount).
		Mul(decimal.NewFromInt(100)).
		Round(2)
	res.SelfGap = Gap{State: GapComputed, Percent: gap}
	return res
}

func (e *Engine) fetchQuote(ctx context.Context, v vendor.Vendor, productCode string) Quote {
	start := time.Now()
	q := Quote{Vendor: v.Name()}

	raw, err := v.FetchRaw(ctx, productCode)
	switch {
	case errors.Is(err, vendor.ErrNoListing):
		q.Status = StatusNotFound
	case err != nil:
		q.Status = StatusFetchError
		e.log.Debug("vendor fetch failed",
			zap.String("vendor", v.Name()),
			zap.String("product_code", productCode),
			zap.Error(err),
		)
	default:
		q.Raw = raw
		amount, perr := priceparse.Parse(raw)
		if perr != nil {
			q.Status = StatusParseError
			e.log.Debug("vendor price not numeric",
				zap.String("vendor", v.Name()),
				zap.String("raw", raw),
			)
		} else {
			q.Status = StatusOK
			q.Amount = &amount
		}
	}

	metrics.ObserveVendorFetch(v.Name(), string(q.Status), start)
	return q
}

// discountPercent is defined only when a positive list price and a positive
// vendor amount are both present.
func discountPercent(entry *catalog.Entry, q Quote) *decimal.Decimal {
	if entry == nil || entry.ListPrice == nil || !entry.ListPrice.IsPositive() || !q.Usable() {
		return nil
	}
	d := entry.ListPrice.Sub(*q.Amount).
		Div(*entry.ListPrice).
		Mul(decimal.NewFromInt(100)).
		Round(2)
	return &d
}

func findVendor(quotes []Quote, name string) (Quote, bool) {
	for _, q := range quotes {
		if q.Vendor == name {
			return q, true
		}
	}
	return Quote{}, false
}
