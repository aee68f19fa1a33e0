package parser

import (
	"context"
	"fmt"
	"log/slog"

	"ContractFinder/internal/config"
	"ContractFinder/internal/domain"
	"ContractFinder/internal/ports"
	"ContractFinder/internal/scanner"
)

// StrategySource implements ContractSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sites    []config.SiteConfig
	logger   *slog.Logger
}

var _ ports.ContractSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sites:    sites,
		logger:   log,
	}
}

// FetchAll scrapes each configured site in order and normalizes the records. A site that
// errors or panics yields zero records and a failed outcome so the other sites still run.
// Non-empty lettingDates replace every site's configured dates for this call.
func (s *StrategySource) FetchAll(ctx context.Context, lettingDates []string) []scanner.SiteResult {
	s.debug("fetch all", "sites", len(s.sites), "override_dates", len(lettingDates))

	results := make([]scanner.SiteResult, 0, len(s.sites))
	for _, site := range s.sites {
		dates := site.LettingDates
		if len(lettingDates) > 0 {
			dates = lettingDates
		}

		res := s.scanSite(ctx, site, dates)
		s.debug("site produced contracts", "site", site.Name, "count", len(res.Contracts), "degraded", res.Degraded())
		results = append(results, res)
	}

	return results
}

func (s *StrategySource) scanSite(ctx context.Context, site config.SiteConfig, dates []string) (res scanner.SiteResult) {
	res = scanner.SiteResult{Site: site.Name, Scanner: site.Scanner, State: site.State}

	fail := func(err error) {
		res.Contracts = nil
		res.Outcomes = append(res.Outcomes, scanner.FetchOutcome{Source: site.Name, URL: site.URL, Err: err})
		if s.logger != nil {
			s.logger.Warn("site failed", "site", site.Name, "error", err)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			fail(fmt.Errorf("scan site %s: panic: %v", site.Name, r))
		}
	}()

	if s.registry == nil {
		fail(fmt.Errorf("scanner registry is not configured"))
		return res
	}

	strategy, err := s.registry.Resolve(site.Scanner)
	if err != nil {
		fail(fmt.Errorf("site %s: %w", site.Name, err))
		return res
	}

	raw, err := strategy.Scan(ctx, scanner.Request{
		SiteName:     site.Name,
		State:        site.State,
		URL:          site.URL,
		LettingDates: dates,
		Options:      site.Options,
	})
	res.Outcomes = raw.Outcomes
	if err != nil {
		fail(fmt.Errorf("scan site %s: %w", site.Name, err))
		return res
	}

	res.Contracts = domain.Normalize(site.State, raw.Contracts)
	return res
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
