package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"pricecheck/internal/priceparse"
)

// Row is one catalog line: the list price as published, in its original
// currency.
type Row struct {
	Amount   decimal.Decimal
	Currency string
}

// Catalog maps product code to its list-price row.
type Catalog map[string]Row

// Columns names the CSV headers the loader reads. Zero values fall back to
// the headers of the original price list export.
type Columns struct {
	Code     string
	Price    string
	Currency string
}

func (c Columns) withDefaults() Columns {
	if c.Code == "" {
		c.Code = "Referans"
	}
	if c.Price == "" {
		c.Price = "2023 Liste Fiyatı"
	}
	if c.Currency == "" {
		c.Currency = "Para Birimi"
	}
	return c
}

// Load reads a header-first CSV price list. Rows whose price cell does not
// parse are skipped; a missing header column is an error.
func Load(r io.Reader, cols Columns) (Catalog, error) {
	cols = cols.withDefaults()
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("catalog: read header: %w", err)
	}
	codeIdx, priceIdx, curIdx := -1, -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case cols.Code:
			codeIdx = i
		case cols.Price:
			priceIdx = i
		case cols.Currency:
			curIdx = i
		}
	}
	if codeIdx < 0 || priceIdx < 0 {
		return nil, fmt.Errorf("catalog: missing %q or %q column", cols.Code, cols.Price)
	}

	out := make(Catalog)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("catalog: read row: %w", err)
		}
		if codeIdx >= len(rec) || priceIdx >= len(rec) {
			continue
		}
		code := strings.TrimSpace(rec[codeIdx])
		if code == "" {
			continue
		}
		amount, err := priceparse.Parse(rec[priceIdx])
		if err != nil {
			continue
		}
		currency := ""
		if curIdx >= 0 && curIdx < len(rec) {
			currency = strings.TrimSpace(rec[curIdx])
		}
		out[code] = Row{Amount: amount, Currency: currency}
	}
	return out, nil
}

// Entry is a resolved catalog lookup. ListPrice is in the domestic currency;
// it is nil when the row is foreign-denominated and no exchange rate was
// available. For foreign rows both ForeignAmount and Rate are recorded and
// ListPrice = ForeignAmount * Rate.
type Entry struct {
	ProductCode    string
	ListPrice      *decimal.Decimal
	SourceCurrency string
	ForeignAmount  *decimal.Decimal
	Rate           *decimal.Decimal
}

// Resolver converts catalog rows to domestic-currency entries.
type Resolver struct {
	// Domestic is the home currency code. Rows with this currency (or none)
	// pass through unconverted. Defaults to TRY.
	Domestic string
}

// Resolve looks up code and converts foreign rows with rate. A nil rate
// degrades foreign rows to an entry without a usable ListPrice; it never
// passes the raw foreign amount off as domestic. The second return is false
// when the code is not in the catalog.
func (r Resolver) Resolve(code string, cat Catalog, rate *decimal.Decimal) (*Entry, bool) {
	row, ok := cat[code]
	if !ok {
		return nil, false
	}
	domestic := r.Domestic
	if domestic == "" {
		domestic = "TRY"
	}
	entry := &Entry{ProductCode: code, SourceCurrency: row.Currency}
	if row.Currency == "" || strings.EqualFold(row.Currency, domestic) {
		amount := row.Amount
		entry.ListPrice = &amount
		return entry, true
	}
	foreign := row.Amount
	entry.ForeignAmount = &foreign
	if rate == nil {
		return entry, true
	}
	converted := foreign.Mul(*rate)
	used := *rate
	entry.ListPrice = &converted
	entry.Rate = &used
	return entry, true
}
