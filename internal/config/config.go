package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type Catalog struct {
	Path            string `json:"path"`
	CacheTTLSeconds int    `json:"cache_ttl_sec"`
	CodeColumn      string `json:"code_column"`
	PriceColumn     string `json:"price_column"`
	CurrencyColumn  string `json:"currency_column"`
}

type Rates struct {
	Endpoint        string `json:"endpoint"`
	Currency        string `json:"currency"`
	Domestic        string `json:"domestic"`
	CacheTTLSeconds int    `json:"cache_ttl_sec"`
}

// Vendor configures one storefront adapter. Listing/title selectors are
// only needed by storefronts whose search results require exact-code
// disambiguation.
type Vendor struct {
	Name                 string            `json:"name"`
	SearchURL            string            `json:"search_url"`
	PriceSelector        string            `json:"price_selector"`
	ListingSelector      string            `json:"listing_selector"`
	TitleSelector        string            `json:"title_selector"`
	TimeoutSec           int               `json:"timeout_sec"`
	Headers              map[string]string `json:"headers"`
	MaxRequestsPerMinute int               `json:"max_requests_per_minute"`
	Burst                int               `json:"burst"`
	MinRequestIntervalSec int              `json:"min_request_interval_sec"`
}

type Compare struct {
	SelfVendor string `json:"self_vendor"`
}

type Config struct {
	Server  Server   `json:"server"`
	Catalog Catalog  `json:"catalog"`
	Rates   Rates    `json:"rates"`
	Compare Compare  `json:"compare"`
	Vendors []Vendor `json:"vendors"`
}

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.36"

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 60},
		Catalog: Catalog{
			Path:            "ListeFiyatlari.csv",
			CacheTTLSeconds: 60,
		},
		Rates: Rates{
			Endpoint:        "https://www.tcmb.gov.tr/kurlar/today.xml",
			Currency:        "EUR",
			Domestic:        "TRY",
			CacheTTLSeconds: 3600,
		},
		Compare: Compare{SelfVendor: "Atakmarket"},
		Vendors: []Vendor{
			{
				Name:            "Atakmarket",
				SearchURL:       "https://www.atakmarket.com/arama/%s",
				ListingSelector: ".showcase-content",
				TitleSelector:   ".showcase-title a",
				PriceSelector:   ".showcase-price-new",
				TimeoutSec:      10,
			},
			{
				Name:          "Elektrix",
				SearchURL:     "https://www.elektrix.com/arama?q=%s",
				PriceSelector: ".currentPrice",
				TimeoutSec:    10,
			},
			{
				Name:          "Botek",
				SearchURL:     "https://eticaret.botekotomasyon.com/arama?q=%s",
				PriceSelector: ".current-price",
				TimeoutSec:    3,
				Headers:       map[string]string{"User-Agent": browserUA},
			},
			{
				Name:          "Elektromarketim",
				SearchURL:     "https://www.elektromarketim.com/arama?q=%s",
				PriceSelector: ".vitrin-current-price",
				TimeoutSec:    3,
				Headers:       map[string]string{"User-Agent": browserUA},
			},
			{
				Name:          "Elektrofors",
				SearchURL:     "https://www.elektrofors.com/index.php?route=product/search&search=%s",
				PriceSelector: ".price-normal",
				TimeoutSec:    50,
				Headers:       map[string]string{"User-Agent": "Mozilla/5.0"},
			},
		},
	}
}

// Load reads JSON config from path. If path is empty or the file does not
// exist, it returns defaults. Environment variables override select fields.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Server.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("CATALOG_CACHE_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Catalog.CacheTTLSeconds = x
		}
	}
	if v := os.Getenv("TCMB_ENDPOINT"); v != "" {
		cfg.Rates.Endpoint = v
	}
	if v := os.Getenv("RATES_CURRENCY"); v != "" {
		cfg.Rates.Currency = v
	}
	if v := os.Getenv("RATES_CACHE_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Rates.CacheTTLSeconds = x
		}
	}
	if v := os.Getenv("SELF_VENDOR"); v != "" {
		cfg.Compare.SelfVendor = v
	}
	if v := os.Getenv("VENDORS"); v != "" {
		// Restrict the configured vendor list without editing config.json.
		keep := make(map[string]struct{})
		for _, name := range splitCSV(v) {
			keep[strings.ToLower(name)] = struct{}{}
		}
		filtered := cfg.Vendors[:0]
		for _, vc := range cfg.Vendors {
			if _, ok := keep[strings.ToLower(vc.Name)]; ok {
				filtered = append(filtered, vc)
			}
		}
		cfg.Vendors = filtered
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
