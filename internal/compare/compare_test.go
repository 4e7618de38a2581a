package compare

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecheck/internal/catalog"
	"pricecheck/internal/rates"
	"pricecheck/internal/vend"
)

type fakeVendor struct {
	name  string
	raw   string
	err   error
	delay time.Duration
}

func (f fakeVendor) Name() string { return f.name }

func (f fakeVendor) FetchRaw(ctx context.Context, _ string) (string, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.raw, f.err
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func tryCatalog(t *testing.T, code, amount string) catalog.Catalog {
	t.Helper()
	return catalog.Catalog{code: {Amount: dec(t, amount), Currency: "TRY"}}
}

func TestCompare_EndToEnd(t *testing.T) {
	eng := New([]vendor.Vendor{
		fakeVendor{name: "Self", raw: "1000 ₺"},
		fakeVendor{name: "Other", raw: "800 ₺"},
	}, Config{SelfVendor: "Self"})

	res := eng.Compare(t.Context(), "50171", tryCatalog(t, "50171", "1000"), nil)

	require.NotNil(t, res.Catalog)
	require.NotNil(t, res.Catalog.ListPrice)
	assert.Equal(t, "1000.00", res.Catalog.ListPrice.StringFixed(2))

	require.Len(t, res.Quotes, 2)
	assert.Equal(t, "Other", res.Quotes[0].Vendor)
	require.NotNil(t, res.Quotes[0].Discount)
	assert.Equal(t, "20.00", res.Quotes[0].Discount.StringFixed(2))
	assert.Equal(t, "Self", res.Quotes[1].Vendor)
	require.NotNil(t, res.Quotes[1].Discount)
	assert.Equal(t, "0.00", res.Quotes[1].Discount.StringFixed(2))

	assert.Equal(t, "Other", res.CheapestVendor)
	assert.Equal(t, GapComputed, res.SelfGap.State)
	assert.Equal(t, "20.00", res.SelfGap.Percent.StringFixed(2))
}

func TestCompare_RankingStableOnTies(t *testing.T) {
	eng := New([]vendor.Vendor{
		fakeVendor{name: "A", raw: "100 ₺"},
		fakeVendor{name: "B", raw: "100 ₺"},
		fakeVendor{name: "C", raw: "50 ₺"},
	}, Config{})

	res := eng.Compare(t.Context(), "X", nil, nil)

	require.Len(t, res.Quotes, 3)
	assert.Equal(t, "C", res.Quotes[0].Vendor)
	// A and B tie; registration order decides.
	assert.Equal(t, "A", res.Quotes[1].Vendor)
	assert.Equal(t, "B", res.Quotes[2].Vendor)
	assert.Equal(t, "C", res.CheapestVendor)
}

func TestCompare_FailuresRetainedNotRanked(t *testing.T) {
	eng := New([]vendor.Vendor{
		fakeVendor{name: "Down", err: errors.New("connection refused")},
		fakeVendor{name: "Empty", err: vendor.ErrNoListing},
		fakeVendor{name: "Garbled", raw: "çok uygun fiyat"},
		fakeVendor{name: "Good", raw: "900 ₺"},
	}, Config{})

	res := eng.Compare(t.Context(), "X", tryCatalog(t, "X", "1000"), nil)

	require.Len(t, res.Quotes, 4)
	assert.Equal(t, "Good", res.Quotes[0].Vendor)
	assert.Equal(t, "Good", res.CheapestVendor)

	byVendor := map[string]Quote{}
	for _, q := range res.Quotes {
		byVendor[q.Vendor] = q
	}
	assert.Equal(t, StatusFetchError, byVendor["Down"].Status)
	assert.Nil(t, byVendor["Down"].Amount)
	assert.Nil(t, byVendor["Down"].Discount)

	assert.Equal(t, StatusNotFound, byVendor["Empty"].Status)

	assert.Equal(t, StatusParseError, byVendor["Garbled"].Status)
	// Raw text survives for display even though it did not parse.
	assert.Equal(t, "çok uygun fiyat", byVendor["Garbled"].Raw)
	assert.Nil(t, byVendor["Garbled"].Discount)

	// Unranked quotes keep registration order after the ranked block.
	assert.Equal(t, "Down", res.Quotes[1].Vendor)
	assert.Equal(t, "Empty", res.Quotes[2].Vendor)
	assert.Equal(t, "Garbled", res.Quotes[3].Vendor)
}

func TestCompare_NonPositiveAmountUnusable(t *testing.T) {
	eng := New([]vendor.Vendor{
		fakeVendor{name: "Zero", raw: "0,00 ₺"},
	}, Config{SelfVendor: "Zero"})

	res := eng.Compare(t.Context(), "X", tryCatalog(t, "X", "1000"), nil)

	require.Len(t, res.Quotes, 1)
	q := res.Quotes[0]
	assert.Equal(t, StatusOK, q.Status)
	require.NotNil(t, q.Amount)
	assert.False(t, q.Usable())
	assert.Nil(t, q.Discount)
	assert.Equal(t, "", res.CheapestVendor)
	assert.Equal(t, GapUnavailable, res.SelfGap.State)
}

func TestCompare_CatalogMissing(t *testing.T) {
	eng := New([]vendor.Vendor{
		fakeVendor{name: "A", raw: "100 ₺"},
	}, Config{})

	res := eng.Compare(t.Context(), "unknown", catalog.Catalog{}, nil)

	assert.Nil(t, res.Catalog)
	require.Len(t, res.Quotes, 1)
	// No list price means no discount, but the quote still ranks.
	assert.Nil(t, res.Quotes[0].Discount)
	assert.Equal(t, "A", res.CheapestVendor)
}

func TestCompare_ForeignCatalogConversion(t *testing.T) {
	cat := catalog.Catalog{"E1": {Amount: dec(t, "100"), Currency: "EUR"}}
	eng := New([]vendor.Vendor{
		fakeVendor{name: "A", raw: "2.840,00 ₺"},
	}, Config{})
	snap := &rates.Snapshot{Pair: "EUR/TRY", Rate: dec(t, "35.5"), FetchedAt: time.Now()}

	res := eng.Compare(t.Context(), "E1", cat, snap)

	require.NotNil(t, res.Catalog)
	require.NotNil(t, res.Catalog.ListPrice)
	assert.Equal(t, "3550.00", res.Catalog.ListPrice.StringFixed(2))
	require.NotNil(t, res.Quotes[0].Discount)
	assert.Equal(t, "20.00", res.Quotes[0].Discount.StringFixed(2))
}

func TestCompare_ForeignCatalogWithoutRate(t *testing.T) {
	cat := catalog.Catalog{"E1": {Amount: dec(t, "100"), Currency: "EUR"}}
	eng := New([]vendor.Vendor{
		fakeVendor{name: "A", raw: "90 ₺"},
	}, Config{})

	res := eng.Compare(t.Context(), "E1", cat, nil)

	require.NotNil(t, res.Catalog)
	// Not silently 100 domestic: the list price is simply unavailable.
	assert.Nil(t, res.Catalog.ListPrice)
	assert.Nil(t, res.Quotes[0].Discount)
	assert.Equal(t, "A", res.CheapestVendor)
}

func TestCompare_SelfCheapestIsDistinctFromUnavailable(t *testing.T) {
	eng := New([]vendor.Vendor{
		fakeVendor{name: "Self", raw: "700 ₺"},
		fakeVendor{name: "Other", raw: "800 ₺"},
	}, Config{SelfVendor: "Self"})

	res := eng.Compare(t.Context(), "X", nil, nil)
	assert.Equal(t, GapSelfCheapest, res.SelfGap.State)
	assert.Equal(t, "0.00", res.SelfGap.Percent.StringFixed(2))
}

func TestCompare_SelfUnusableGapUnavailable(t *testing.T) {
	eng := New([]vendor.Vendor{
		fakeVendor{name: "Self", err: errors.New("timeout")},
		fakeVendor{name: "Other", raw: "800 ₺"},
	}, Config{SelfVendor: "Self"})

	res := eng.Compare(t.Context(), "X", nil, nil)
	assert.Equal(t, "Other", res.CheapestVendor)
	assert.Equal(t, GapUnavailable, res.SelfGap.State)
}

func TestCompare_FetchesRunConcurrently(t *testing.T) {
	vendors := make([]vendor.Vendor, 0, 5)
	for _, n := range []string{"A", "B", "C", "D", "E"} {
		vendors = append(vendors, fakeVendor{name: n, raw: "100 ₺", delay: 150 * time.Millisecond})
	}
	eng := New(vendors, Config{})

	start := time.Now()
	res := eng.Compare(t.Context(), "X", nil, nil)
	elapsed := time.Since(start)

	require.Len(t, res.Quotes, 5)
	// Serial execution would take 750ms+.
	assert.Less(t, elapsed, 600*time.Millisecond)
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
}

func TestCompare_SlowVendorDoesNotDropFastOnes(t *testing.T) {
	eng := New([]vendor.Vendor{
		fakeVendor{name: "Fast", raw: "500 ₺"},
		fakeVendor{name: "Slow", raw: "400 ₺", delay: 2 * time.Second},
	}, Config{})

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()
	res := eng.Compare(ctx, "X", nil, nil)

	byVendor := map[string]Quote{}
	for _, q := range res.Quotes {
		byVendor[q.Vendor] = q
	}
	assert.Equal(t, StatusOK, byVendor["Fast"].Status)
	assert.Equal(t, StatusFetchError, byVendor["Slow"].Status)
	assert.Equal(t, "Fast", res.CheapestVendor)
}
