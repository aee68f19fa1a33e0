package parser

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"ContractFinder/internal/domain"
)

const tokenSeparator = " | "

// ExpectedHeader is the column header row of the KYTC award table.
var ExpectedHeader = []string{"Call", "Status", "Awarded To", "Contract ID", "District", "County", "Project Description"}

// headerMinMatches tolerates one garbled header cell.
const headerMinMatches = 6

const (
	StatusAwarded   = "Awarded"
	StatusWithdrawn = "Withdrawn"
	StatusRejected  = "Rejected"
)

var knownStatuses = map[string]struct{}{
	StatusAwarded:   {},
	StatusWithdrawn: {},
	StatusRejected:  {},
}

var containerClassExpr = regexp.MustCompile(`(?i)table|contract`)

// ExtractTokens flattens the contract table into trimmed text tokens in document order.
// It returns nil when the page has no table-like element.
func ExtractTokens(doc *goquery.Document) []string {
	container := locateContainer(doc)
	if container.Length() == 0 {
		return nil
	}

	texts := leafTexts(container)
	if len(texts) == 0 {
		return nil
	}

	parts := strings.Split(strings.Join(texts, tokenSeparator), tokenSeparator)
	tokens := make([]string, len(parts))
	for i, part := range parts {
		tokens[i] = strings.TrimSpace(part)
	}
	return tokens
}

func locateContainer(doc *goquery.Document) *goquery.Selection {
	if table := doc.Find("table").First(); table.Length() > 0 {
		return table
	}

	return doc.Find("[class]").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		class, _ := sel.Attr("class")
		return containerClassExpr.MatchString(class)
	}).First()
}

// leafTexts collects visible text nodes. Whitespace-only nodes are layout, not cells.
func leafTexts(sel *goquery.Selection) []string {
	var texts []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				if strings.TrimSpace(c.Data) != "" {
					texts = append(texts, c.Data)
				}
			case html.ElementNode:
				if c.Data == "script" || c.Data == "style" {
					continue
				}
				walk(c)
			}
		}
	}

	for _, n := range sel.Nodes {
		walk(n)
	}
	return texts
}

// LocateHeader returns the offset of the first window where at least six of the seven
// expected labels appear (case-insensitive containment), or -1.
func LocateHeader(tokens []string) int {
	width := len(ExpectedHeader)
	for i := 0; i+width <= len(tokens); i++ {
		matches := 0
		for j, label := range ExpectedHeader {
			if strings.Contains(strings.ToLower(tokens[i+j]), strings.ToLower(label)) {
				matches++
			}
		}
		if matches >= headerMinMatches {
			return i
		}
	}
	return -1
}

// ParseTokens runs header location and record scanning over one page's tokens.
func ParseTokens(tokens []string, lettingDate domain.LettingDate, sourceURL string) []domain.RawContract {
	offset := LocateHeader(tokens)
	if offset < 0 {
		return nil
	}
	return ScanRecords(tokens[offset+len(ExpectedHeader):], lettingDate, sourceURL)
}

// field is the column the collector expects next within an Awarded row.
type field int

const (
	fieldAwardedTo field = iota
	fieldContractID
	// District and County are both skipped: the awards page has two location
	// columns between the contract id and the description. See DESIGN.md,
	// Open Question decision 2, before changing this to a single skip.
	fieldDistrict
	fieldCounty
	fieldDescription
)

// awardRow accumulates one Awarded row between two call/status pairs.
type awardRow struct {
	next        field
	awardedTo   string
	contractID  string
	description []string
}

func (r *awardRow) feed(token string) {
	if token == "" {
		return
	}

	switch r.next {
	case fieldAwardedTo:
		r.awardedTo = token
		r.next = fieldContractID
	case fieldContractID:
		if isDigits(token) {
			r.contractID = token
			r.next = fieldDistrict
		}
	case fieldDistrict:
		r.next = fieldCounty
	case fieldCounty:
		r.next = fieldDescription
	case fieldDescription:
		r.description = append(r.description, token)
	}
}

func (r *awardRow) contract(lettingDate domain.LettingDate, sourceURL string) (domain.RawContract, bool) {
	if r.awardedTo == "" || r.contractID == "" {
		return domain.RawContract{}, false
	}
	return domain.RawContract{
		LettingDate: lettingDate,
		ContractID:  r.contractID,
		AwardedTo:   r.awardedTo,
		Description: strings.Join(r.description, " "),
		SourceURL:   sourceURL,
	}, true
}

// ScanRecords rebuilds rows from the post-header token stream. A row starts wherever an
// all-digit call number is immediately followed by a known status. Only Awarded rows are
// collected; Withdrawn and Rejected rows are skipped up to the next call/status pair.
//
// Free text containing "<digits> Awarded" is indistinguishable from a row boundary.
func ScanRecords(tokens []string, lettingDate domain.LettingDate, sourceURL string) []domain.RawContract {
	var records []domain.RawContract

	i := 0
	for i < len(tokens) {
		status, ok := pairAt(tokens, i)
		if !ok {
			i++
			continue
		}
		i += 2

		if status != StatusAwarded {
			i = nextPair(tokens, i)
			continue
		}

		var row awardRow
		for ; i < len(tokens); i++ {
			if _, ok := pairAt(tokens, i); ok {
				break
			}
			row.feed(tokens[i])
		}

		if rec, ok := row.contract(lettingDate, sourceURL); ok {
			records = append(records, rec)
		}
	}

	return records
}

func nextPair(tokens []string, from int) int {
	for i := from; i < len(tokens); i++ {
		if _, ok := pairAt(tokens, i); ok {
			return i
		}
	}
	return len(tokens)
}

// pairAt reports whether tokens[i] is a call number followed by a status token.
func pairAt(tokens []string, i int) (string, bool) {
	if i+1 >= len(tokens) || !isDigits(tokens[i]) {
		return "", false
	}
	status := tokens[i+1]
	if _, ok := knownStatuses[status]; !ok {
		return "", false
	}
	return status, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
