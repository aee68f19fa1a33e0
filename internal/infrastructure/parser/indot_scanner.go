package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ContractFinder/internal/domain"
	"ContractFinder/internal/scanner"
)

// INDOTScanner reads the Indiana DOT award listing, which, unlike KYTC, renders one
// table row per contract.
type INDOTScanner struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

var _ scanner.Scanner = (*INDOTScanner)(nil)

// NewINDOTScanner wires an HTTP client; a nil client gets the fixed 30 second timeout.
func NewINDOTScanner(client *http.Client, log *slog.Logger) *INDOTScanner {
	if client == nil {
		client = &http.Client{Timeout: Timeout}
	}
	return &INDOTScanner{client: client, userAgent: UserAgent, logger: log}
}

// WithUserAgent overrides the default User-Agent; an empty value keeps it.
func (s *INDOTScanner) WithUserAgent(ua string) *INDOTScanner {
	if ua != "" {
		s.userAgent = ua
	}
	return s
}

// Name identifies the strategy inside the registry.
func (s *INDOTScanner) Name() string {
	return "indot"
}

// Scan fetches the listing once. Letting dates only serve as the fallback date for rows
// that carry none.
func (s *INDOTScanner) Scan(ctx context.Context, req scanner.Request) (scanner.Result, error) {
	if req.URL == "" {
		return scanner.Result{}, fmt.Errorf("no listing url configured for site %s", req.SiteName)
	}

	fallback := ""
	if len(req.LettingDates) > 0 {
		fallback = req.LettingDates[0]
	}

	outcome := scanner.FetchOutcome{Source: req.SiteName, LettingDate: fallback, URL: req.URL}

	doc, err := fetchDocument(ctx, s.client, s.userAgent, req.URL)
	if err != nil {
		outcome.Err = fmt.Errorf("listing: %w", err)
		if s.logger != nil {
			s.logger.Warn("listing fetch failed", "site", req.SiteName, "error", err)
		}
		return scanner.Result{Outcomes: []scanner.FetchOutcome{outcome}}, nil
	}

	records := parseAwardTable(doc, fallback, req.URL)
	outcome.Records = len(records)
	return scanner.Result{Contracts: records, Outcomes: []scanner.FetchOutcome{outcome}}, nil
}

type column int

const (
	colUnknown column = iota
	colContractID
	colLettingDate
	colAwardedTo
	colDescription
	colAmount
)

// classifyHeader maps a header cell to a column. Awardee labels are checked before
// "contract" because "Contractor" contains it, and before "bid" because of "Bidder".
func classifyHeader(label string) column {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "awarded"), strings.Contains(l, "bidder"),
		strings.Contains(l, "contractor"), strings.Contains(l, "vendor"):
		return colAwardedTo
	case strings.Contains(l, "description"):
		return colDescription
	case strings.Contains(l, "contract"):
		return colContractID
	case strings.Contains(l, "letting"), strings.Contains(l, "date"):
		return colLettingDate
	case strings.Contains(l, "project"):
		return colDescription
	case strings.Contains(l, "amount"), strings.Contains(l, "bid"), strings.Contains(l, "price"):
		return colAmount
	default:
		return colUnknown
	}
}

func parseAwardTable(doc *goquery.Document, fallbackDate, sourceURL string) []domain.RawContract {
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil
	}

	rows := table.Find("tr")
	headerIdx := -1
	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		if row.Find("th").Length() > 0 {
			headerIdx = i
			return false
		}
		return true
	})
	if headerIdx < 0 {
		headerIdx = 0
	}

	var columns []column
	rows.Eq(headerIdx).Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		columns = append(columns, classifyHeader(cellText(cell)))
	})

	var records []domain.RawContract
	rows.Each(func(i int, row *goquery.Selection) {
		if i <= headerIdx {
			return
		}

		var (
			rec     = domain.RawContract{SourceURL: sourceURL}
			dateRaw = fallbackDate
		)
		row.Find("td").Each(func(j int, cell *goquery.Selection) {
			if j >= len(columns) {
				return
			}
			text := cellText(cell)
			switch columns[j] {
			case colContractID:
				rec.ContractID = text
			case colLettingDate:
				if text != "" {
					dateRaw = text
				}
			case colAwardedTo:
				rec.AwardedTo = text
			case colDescription:
				rec.Description = text
			case colAmount:
				if text != "" {
					amount := text
					rec.Amount = &amount
				}
			}
		})

		if rec.ContractID == "" || rec.AwardedTo == "" {
			return
		}
		rec.LettingDate = domain.ParseLettingDate(dateRaw)
		records = append(records, rec)
	})

	return records
}

func cellText(cell *goquery.Selection) string {
	return strings.Join(strings.Fields(cell.Text()), " ")
}
