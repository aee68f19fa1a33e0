package scanner

import (
	"context"
	"fmt"

	"ContractFinder/internal/domain"
)

// Request carries all parameters required to scrape one configured site.
type Request struct {
	SiteName     string
	State        string
	URL          string
	LettingDates []string
	Options      map[string]string
}

// FetchOutcome records a single page fetch: how many records it produced, or why it failed.
type FetchOutcome struct {
	Source      string
	LettingDate string
	URL         string
	Records     int
	Err         error
}

// OK reports whether the fetch and parse succeeded.
func (o FetchOutcome) OK() bool {
	return o.Err == nil
}

// Result is everything a scan produced, in discovery order.
type Result struct {
	Contracts []domain.RawContract
	Outcomes  []FetchOutcome
}

// Failed counts the outcomes that carry an error.
func (r Result) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.OK() {
			n++
		}
	}
	return n
}

// Scanner captures a single source implementation (KYTC, INDOT).
// Per-page failures belong in Result.Outcomes; a returned error means the whole site failed.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) (Result, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

// SiteResult is one configured site's normalized output together with its fetch outcomes.
type SiteResult struct {
	Site      string
	Scanner   string
	State     string
	Contracts []domain.NormalizedContract
	Outcomes  []FetchOutcome
}

// Degraded reports whether any fetch for the site failed.
func (s SiteResult) Degraded() bool {
	for _, o := range s.Outcomes {
		if !o.OK() {
			return true
		}
	}
	return false
}
