package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ContractFinder/internal/domain"
	"ContractFinder/internal/ports"
	"ContractFinder/internal/scanner"
	"ContractFinder/internal/scoring"
)

const (
	scannerKYTC  = "kytc"
	scannerINDOT = "indot"
)

// PipelineDeps wires all driven adapters into the ingestion pipeline.
type PipelineDeps struct {
	Source     ports.ContractSource
	Repository ports.ContractRepository
	Notifier   ports.Notifier
	// NotifyMinScore is the lowest score included in the new-lead digest.
	NotifyMinScore int
	Logger         *slog.Logger
	Now            func() time.Time
}

// Pipeline implements the award-ingestion workflow.
type Pipeline struct {
	source         ports.ContractSource
	repository     ports.ContractRepository
	notifier       ports.Notifier
	notifyMinScore int
	logger         *slog.Logger
	now            func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Pipeline{
		source:         deps.Source,
		repository:     deps.Repository,
		notifier:       deps.Notifier,
		notifyMinScore: deps.NotifyMinScore,
		logger:         deps.Logger,
		now:            now,
	}
}

// RunOptions tunes one ingestion run.
type RunOptions struct {
	// LettingDates replaces the configured letting schedule when non-empty.
	LettingDates []string
}

// SourceReport summarizes one configured site in a run.
type SourceReport struct {
	Site     string        `json:"site"`
	State    string        `json:"state"`
	Records  int           `json:"records"`
	Degraded bool          `json:"degraded"`
	Fetches  []FetchReport `json:"fetches"`
}

// FetchReport is the serializable form of a scanner.FetchOutcome.
type FetchReport struct {
	LettingDate string `json:"letting_date,omitempty"`
	URL         string `json:"url,omitempty"`
	Records     int    `json:"records"`
	Error       string `json:"error,omitempty"`
}

// IngestResult is the summary of one run. Only the four counts are serialized by default.
type IngestResult struct {
	KYTCCount      int `json:"kytc_count"`
	INDOTCount     int `json:"indot_count"`
	TotalProcessed int `json:"total_processed"`
	TotalUpserted  int `json:"total_upserted"`

	Inserted int                    `json:"-"`
	Updated  int                    `json:"-"`
	Sources  []SourceReport         `json:"-"`
	NewLeads []domain.ContractAward `json:"-"`
}

// Degraded reports whether any fetch failed during the run.
func (r IngestResult) Degraded() bool {
	for _, s := range r.Sources {
		if s.Degraded {
			return true
		}
	}
	return false
}

// Run fetches every source, scores each record and upserts it inside one unit of work.
// Source failures only degrade the result; a storage failure rolls back and aborts.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (IngestResult, error) {
	var result IngestResult

	if p.source == nil {
		return result, errors.New("contract source is not configured")
	}
	if p.repository == nil {
		return result, errors.New("contract repository is not configured")
	}

	sites := p.source.FetchAll(ctx, opts.LettingDates)

	uow, err := p.repository.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin unit of work: %w", err)
	}

	for _, site := range sites {
		result.Sources = append(result.Sources, newSourceReport(site))

		switch site.Scanner {
		case scannerKYTC:
			result.KYTCCount += len(site.Contracts)
		case scannerINDOT:
			result.INDOTCount += len(site.Contracts)
		}

		for _, contract := range site.Contracts {
			result.TotalProcessed++

			inserted, award, err := p.upsert(ctx, uow, contract)
			if err != nil {
				if rbErr := uow.Rollback(); rbErr != nil {
					p.warn("rollback failed", "error", rbErr)
				}
				return IngestResult{}, fmt.Errorf("upsert %s: %w", contract.Key(), err)
			}

			result.TotalUpserted++
			if inserted {
				result.Inserted++
				result.NewLeads = append(result.NewLeads, award)
			} else {
				result.Updated++
			}
		}
	}

	if err := uow.Commit(); err != nil {
		return IngestResult{}, fmt.Errorf("commit unit of work: %w", err)
	}

	p.info("ingestion finished",
		"kytc", result.KYTCCount,
		"indot", result.INDOTCount,
		"processed", result.TotalProcessed,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"degraded", result.Degraded(),
	)

	p.notify(ctx, result.NewLeads)
	return result, nil
}

func (p *Pipeline) upsert(ctx context.Context, uow ports.UnitOfWork, contract domain.NormalizedContract) (bool, domain.ContractAward, error) {
	scored := scoring.Score(contract.Description, contract.ContractID, contract.AwardedTo)
	reasons := scored.Serialized()
	now := p.now()

	existing, found, err := uow.FindByKey(ctx, contract.Key())
	if err != nil {
		return false, domain.ContractAward{}, fmt.Errorf("find existing: %w", err)
	}

	award := domain.NewContractAward(contract, scored.Score, reasons, now)
	if found {
		existing.Apply(contract, scored.Score, reasons, now)
		award = existing
	}

	saved, err := uow.Upsert(ctx, award)
	if err != nil {
		return false, domain.ContractAward{}, err
	}
	return !found, saved, nil
}

func (p *Pipeline) notify(ctx context.Context, leads []domain.ContractAward) {
	if p.notifier == nil {
		return
	}

	var selected []domain.ContractAward
	for _, lead := range leads {
		if lead.Score >= p.notifyMinScore {
			selected = append(selected, lead)
		}
	}
	if len(selected) == 0 {
		return
	}

	domain.SortByScore(selected)
	if err := p.notifier.NotifyLeads(ctx, selected); err != nil {
		p.warn("publish digest failed", "leads", len(selected), "error", err)
	}
}

func newSourceReport(site scanner.SiteResult) SourceReport {
	report := SourceReport{
		Site:     site.Site,
		State:    site.State,
		Records:  len(site.Contracts),
		Degraded: site.Degraded(),
	}
	for _, o := range site.Outcomes {
		fetch := FetchReport{LettingDate: o.LettingDate, URL: o.URL, Records: o.Records}
		if o.Err != nil {
			fetch.Error = o.Err.Error()
		}
		report.Fetches = append(report.Fetches, fetch)
	}
	return report
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
