package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pricecheck/internal/catalog"
	"pricecheck/internal/compare"
	"pricecheck/internal/config"
	"pricecheck/internal/httpx"
	"pricecheck/internal/metrics"
	"pricecheck/internal/rates"
	"pricecheck/internal/vend"
	"pricecheck/internal/vend/ratelimit"
	"pricecheck/internal/vend/storefront"
)

// Version is set at build time.
var Version = "dev"

// rateSource lets the handler run with or without a cached rates client.
type rateSource interface {
	Fetch(ctx context.Context) (*rates.Snapshot, error)
}

type app struct {
	engine  *compare.Engine
	store   *catalog.Store
	rates   rateSource
	log     *zap.Logger
	timeout time.Duration
}

func main() {
	_ = godotenv.Load()

	logConfig := zap.NewProductionConfig()
	logConfig.EncoderConfig.TimeKey = "timestamp"
	logConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := logConfig.Build()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if len(cfg.Vendors) == 0 {
		logger.Fatal("no vendors configured")
	}
	logger.Info("starting pricecheck server",
		zap.String("version", Version),
		zap.String("port", cfg.Server.Port),
		zap.Int("vendors", len(cfg.Vendors)),
		zap.String("self_vendor", cfg.Compare.SelfVendor),
	)

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

	a := &app{
		engine: compare.New(buildVendors(cfg, httpClient), compare.Config{
			SelfVendor: cfg.Compare.SelfVendor,
			Domestic:   cfg.Rates.Domestic,
			Logger:     logger,
		}),
		store: &catalog.Store{
			Path: cfg.Catalog.Path,
			Columns: catalog.Columns{
				Code:     cfg.Catalog.CodeColumn,
				Price:    cfg.Catalog.PriceColumn,
				Currency: cfg.Catalog.CurrencyColumn,
			},
			TTL: time.Duration(cfg.Catalog.CacheTTLSeconds) * time.Second,
		},
		rates:   buildRates(cfg, httpClient),
		log:     logger,
		timeout: time.Duration(cfg.Server.RequestTimeoutSec) * time.Second,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/compare", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			a.handleGetCompare(w, r)
		case http.MethodPost:
			a.handlePostCompare(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withJSONHeaders(withGzip(recoverPanic(limitBody(mux)))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.RequestTimeoutSec+10) * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// buildVendors assembles one adapter per configured storefront, wrapped in
// rate limiting when requested. Token bucket with burst wins over a plain
// minimum interval when both are set.
func buildVendors(cfg config.Config, hc *httpx.Client) []vendor.Vendor {
	out := make([]vendor.Vendor, 0, len(cfg.Vendors))
	for _, vc := range cfg.Vendors {
		var v vendor.Vendor = storefront.New(storefront.Config{
			Name:            vc.Name,
			SearchURL:       vc.SearchURL,
			PriceSelector:   vc.PriceSelector,
			ListingSelector: vc.ListingSelector,
			TitleSelector:   vc.TitleSelector,
			Timeout:         time.Duration(vc.TimeoutSec) * time.Second,
			Headers:         vc.Headers,
		}, hc)
		if vc.MaxRequestsPerMinute > 0 {
			rate := float64(vc.MaxRequestsPerMinute) / 60.0
			burst := vc.Burst
			if burst <= 0 {
				burst = 1
			}
			v = &ratelimit.TokenBucketVendor{V: v, TB: ratelimit.NewTokenBucket(rate, burst)}
		} else if vc.MinRequestIntervalSec > 0 {
			v = &ratelimit.MinInterval{V: v, Interval: time.Duration(vc.MinRequestIntervalSec) * time.Second}
		}
		out = append(out, v)
	}
	return out
}

func buildRates(cfg config.Config, hc *httpx.Client) rateSource {
	client := rates.New(cfg.Rates.Currency,
		rates.WithEndpoint(cfg.Rates.Endpoint),
		rates.WithHTTPClient(hc.HTTP),
		rates.WithDomestic(cfg.Rates.Domestic),
	)
	if cfg.Rates.CacheTTLSeconds > 0 {
		return &rates.Cached{S: client, TTL: time.Duration(cfg.Rates.CacheTTLSeconds) * time.Second}
	}
	return client
}

func (a *app) handleGetCompare(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		http.Error(w, "missing code query param", http.StatusBadRequest)
		return
	}
	a.writeComparison(w, r.Context(), code)
}

type postBody struct {
	ProductCode string `json:"product_code"`
}

func (a *app) handlePostCompare(w http.ResponseWriter, r *http.Request) {
	var b postBody
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	code := strings.TrimSpace(b.ProductCode)
	if code == "" {
		http.Error(w, "product_code cannot be empty", http.StatusBadRequest)
		return
	}
	a.writeComparison(w, r.Context(), code)
}

func (a *app) writeComparison(w http.ResponseWriter, rctx context.Context, code string) {
	ctx, cancel := context.WithTimeout(rctx, a.timeout)
	defer cancel()

	// Comparison degrades rather than fails: a missing catalog or a dead
	// rate feed still yields a result.
	var cat catalog.Catalog
	if c, err := a.store.Get(ctx); err != nil {
		a.log.Warn("catalog unavailable", zap.Error(err))
	} else {
		cat = c
	}

	var snap *rates.Snapshot
	if a.rates != nil {
		s, err := a.rates.Fetch(ctx)
		if err != nil {
			metrics.IncRateFetch("error")
			a.log.Warn("exchange rate unavailable", zap.Error(err))
		} else {
			metrics.IncRateFetch("ok")
			snap = s
		}
	}

	res := a.engine.Compare(ctx, code, cat, snap)

	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(toResponse(res, snap))
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		// Basic CORS for browser usage; adjust as needed.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses the response when the client supports gzip.
func withGzip(next http.Handler) http.Handler {
	var gzPool = sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
		next.ServeHTTP(gw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// limitBody caps request body size to avoid memory abuse.
func limitBody(next http.Handler) http.Handler {
	const maxBody = 1 << 20 // 1MB
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
