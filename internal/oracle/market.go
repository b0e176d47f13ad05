// Package oracle estimates fair market repair costs from a public web
// search. It is strictly best-effort: every failure path degrades to an
// absent estimate instead of blocking or failing a claim.
package oracle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/claimwarden/claimwarden/internal/cache"
	"github.com/claimwarden/claimwarden/internal/model"
	"github.com/claimwarden/claimwarden/internal/util"
	"github.com/claimwarden/claimwarden/internal/worker"
)

// MarketOracle looks up typical repair costs for a damage description
type MarketOracle struct {
	httpClient *http.Client
	endpoint   string
	userAgent  string
	maxBytes   int64
	limiter    *worker.Limiter
	robots     *util.RobotsChecker
	cache      cache.Cache
	cacheTTL   time.Duration
}

// New creates a market oracle from configuration
func New(cfg model.OracleConfig) *MarketOracle {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	maxBytes := cfg.MaxBodyBytes
	if maxBytes == 0 {
		maxBytes = 2_000_000
	}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 15 * time.Minute
	}

	return &MarketOracle{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		endpoint:  cfg.Endpoint,
		userAgent: cfg.UserAgent,
		maxBytes:  maxBytes,
		limiter:   worker.NewLimiter(cfg.RatePerSecond, cfg.Burst),
		robots:    util.NewRobotsChecker(cfg.UserAgent, timeout),
		cache:     cache.NewMemoryCache(ttl, 2*ttl),
		cacheTTL:  ttl,
	}
}

// Estimate searches for typical repair costs matching the loss description
// and returns the average of plausible dollar figures found, or nil when no
// estimate could be obtained. Errors indicate why the estimate is absent;
// callers treat them as degradation, not failure.
func (o *MarketOracle) Estimate(ctx context.Context, lossDescription, vehicleDetails string) (*float64, error) {
	query := buildQuery(lossDescription, vehicleDetails)

	cacheKey := cache.Key(query)
	if cached, ok := o.cache.Get(cacheKey); ok {
		if v, err := strconv.ParseFloat(string(cached), 64); err == nil {
			return &v, nil
		}
	}

	searchURL := o.endpoint + "?q=" + url.QueryEscape(query)

	if allowed, crawlDelay, _ := o.robots.CanFetch(ctx, searchURL); !allowed {
		return nil, fmt.Errorf("search endpoint disallows fetching")
	} else if crawlDelay > 0 {
		select {
		case <-time.After(crawlDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := o.limiter.Wait(ctx, searchURL); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := o.fetch(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	amounts := ExtractDollarAmounts(visibleText(body))
	if len(amounts) == 0 {
		return nil, fmt.Errorf("no dollar estimates in search results")
	}

	sum := 0.0
	for _, a := range amounts {
		sum += a
	}
	estimate := sum / float64(len(amounts))

	_ = o.cache.Set(cacheKey, []byte(strconv.FormatFloat(estimate, 'f', -1, 64)), o.cacheTTL)

	return &estimate, nil
}

func buildQuery(lossDescription, vehicleDetails string) string {
	query := "average auto repair cost " + lossDescription
	if vehicleDetails != "" {
		query += " " + vehicleDetails
	}
	return query + " USD"
}

func (o *MarketOracle) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", o.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d from search endpoint", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, o.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read search results: %w", err)
	}
	return string(body), nil
}

// visibleText extracts text nodes from HTML, skipping scripts and styles
func visibleText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return htmlContent
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return b.String()
}
