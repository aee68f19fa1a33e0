package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ContractFinder/internal/domain"
	"ContractFinder/internal/scanner"
)

const (
	// UserAgent identifies the scraper to agency web servers.
	UserAgent = "ContractFinder/1.0 (dump truck contract award monitor)"
	// Timeout bounds every page request.
	Timeout = 30 * time.Second
)

// KYTCScanner scrapes the Kentucky Transportation Cabinet letting results, one page per
// configured letting date.
type KYTCScanner struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

var _ scanner.Scanner = (*KYTCScanner)(nil)

// NewKYTCScanner wires an HTTP client; a nil client gets the fixed 30 second timeout.
func NewKYTCScanner(client *http.Client, log *slog.Logger) *KYTCScanner {
	if client == nil {
		client = &http.Client{Timeout: Timeout}
	}
	return &KYTCScanner{client: client, userAgent: UserAgent, logger: log}
}

// WithUserAgent overrides the default User-Agent; an empty value keeps it.
func (k *KYTCScanner) WithUserAgent(ua string) *KYTCScanner {
	if ua != "" {
		k.userAgent = ua
	}
	return k
}

// Name identifies the strategy inside the registry.
func (k *KYTCScanner) Name() string {
	return "kytc"
}

// Scan fetches every letting date in order. A failed date contributes zero records and a
// failed outcome; the remaining dates are still processed.
func (k *KYTCScanner) Scan(ctx context.Context, req scanner.Request) (scanner.Result, error) {
	if req.URL == "" {
		return scanner.Result{}, fmt.Errorf("no listing url configured for site %s", req.SiteName)
	}

	var result scanner.Result
	for _, date := range req.LettingDates {
		outcome := scanner.FetchOutcome{Source: req.SiteName, LettingDate: date}

		records, pageURL, err := k.scanDate(ctx, req.URL, date)
		outcome.URL = pageURL
		if err != nil {
			outcome.Err = err
			k.warn("letting date skipped", "site", req.SiteName, "letting_date", date, "error", err)
		} else {
			outcome.Records = len(records)
			result.Contracts = append(result.Contracts, records...)
			k.debug("letting date scanned", "site", req.SiteName, "letting_date", date, "records", len(records))
		}

		result.Outcomes = append(result.Outcomes, outcome)
	}

	return result, nil
}

func (k *KYTCScanner) scanDate(ctx context.Context, base, date string) (records []domain.RawContract, pageURL string, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("scan letting %s: panic: %v", date, r)
		}
	}()

	pageURL, err = buildLettingURL(base, date)
	if err != nil {
		return nil, "", err
	}

	doc, err := k.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, pageURL, fmt.Errorf("letting %s: %w", date, err)
	}

	tokens := ExtractTokens(doc)
	return ParseTokens(tokens, domain.ParseLettingDate(date), pageURL), pageURL, nil
}

func (k *KYTCScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	return fetchDocument(ctx, k.client, k.userAgent, pageURL)
}

func fetchDocument(ctx context.Context, client *http.Client, userAgent, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func buildLettingURL(base, date string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("letting", date)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (k *KYTCScanner) debug(msg string, args ...any) {
	if k.logger != nil {
		k.logger.Debug(msg, args...)
	}
}

func (k *KYTCScanner) warn(msg string, args ...any) {
	if k.logger != nil {
		k.logger.Warn(msg, args...)
	}
}
