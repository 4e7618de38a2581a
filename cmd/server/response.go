package main

import (
	"time"

	"pricecheck/internal/compare"
	"pricecheck/internal/rates"
)

// compareResponse is the wire shape of a comparison. All monetary values are
// rendered as fixed two-decimal strings.
type compareResponse struct {
	ProductCode    string        `json:"product_code"`
	Catalog        *catalogDTO   `json:"catalog,omitempty"`
	Quotes         []quoteDTO    `json:"quotes"`
	CheapestVendor string        `json:"cheapest_vendor,omitempty"`
	SelfGap        gapDTO        `json:"self_gap"`
	ExchangeRate   *rateDTO      `json:"exchange_rate,omitempty"`
	GeneratedAt    time.Time     `json:"generated_at"`
}

type catalogDTO struct {
	ListPrice      string `json:"list_price,omitempty"`
	ForeignAmount  string `json:"foreign_amount,omitempty"`
	SourceCurrency string `json:"source_currency,omitempty"`
}

type quoteDTO struct {
	Vendor   string `json:"vendor"`
	Status   string `json:"status"`
	Raw      string `json:"raw,omitempty"`
	Amount   string `json:"amount,omitempty"`
	Discount string `json:"discount,omitempty"`
}

type gapDTO struct {
	State   string `json:"state"`
	Percent string `json:"percent,omitempty"`
}

type rateDTO struct {
	Pair      string    `json:"pair"`
	Rate      string    `json:"rate"`
	FetchedAt time.Time `json:"fetched_at"`
}

func toResponse(res compare.Result, snap *rates.Snapshot) compareResponse {
	out := compareResponse{
		ProductCode:    res.ProductCode,
		Quotes:         make([]quoteDTO, 0, len(res.Quotes)),
		CheapestVendor: res.CheapestVendor,
		SelfGap:        gapDTO{State: string(res.SelfGap.State)},
		GeneratedAt:    time.Now().UTC(),
	}
	if res.SelfGap.State == compare.GapComputed {
		out.SelfGap.Percent = res.SelfGap.Percent.StringFixed(2)
	} else if res.SelfGap.State == compare.GapSelfCheapest {
		out.SelfGap.Percent = "0.00"
	}
	if entry := res.Catalog; entry != nil {
		dto := &catalogDTO{SourceCurrency: entry.SourceCurrency}
		if entry.ListPrice != nil {
			dto.ListPrice = entry.ListPrice.StringFixed(2)
		}
		if entry.ForeignAmount != nil {
			dto.ForeignAmount = entry.ForeignAmount.StringFixed(2)
		}
		out.Catalog = dto
	}
	for _, q := range res.Quotes {
		dto := quoteDTO{
			Vendor: q.Vendor,
			Status: string(q.Status),
			Raw:    q.Raw,
		}
		if q.Amount != nil {
			dto.Amount = q.Amount.StringFixed(2)
		}
		if q.Discount != nil {
			dto.Discount = q.Discount.StringFixed(2)
		}
		out.Quotes = append(out.Quotes, dto)
	}
	if snap != nil {
		out.ExchangeRate = &rateDTO{
			Pair:      snap.Pair,
			Rate:      snap.Rate.StringFixed(4),
			FetchedAt: snap.FetchedAt,
		}
	}
	return out
}
