package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ContractFinder/internal/domain"
	"ContractFinder/internal/infrastructure/storage"
	"ContractFinder/internal/ports"
	"ContractFinder/internal/scanner"
)

type fakeSource struct {
	results []scanner.SiteResult
	dates   [][]string
}

func (f *fakeSource) FetchAll(_ context.Context, lettingDates []string) []scanner.SiteResult {
	f.dates = append(f.dates, lettingDates)
	return f.results
}

type fakeNotifier struct {
	batches [][]domain.ContractAward
	err     error
}

func (f *fakeNotifier) NotifyLeads(_ context.Context, leads []domain.ContractAward) error {
	f.batches = append(f.batches, leads)
	return f.err
}

type failingRepo struct {
	ports.ContractRepository
	unit *failingUnit
}

func (r *failingRepo) Begin(context.Context) (ports.UnitOfWork, error) {
	return r.unit, nil
}

type failingUnit struct {
	rolledBack bool
	committed  bool
}

func (u *failingUnit) FindByKey(context.Context, domain.ContractKey) (domain.ContractAward, bool, error) {
	return domain.ContractAward{}, false, nil
}

func (u *failingUnit) Upsert(context.Context, domain.ContractAward) (domain.ContractAward, error) {
	return domain.ContractAward{}, errors.New("disk full")
}

func (u *failingUnit) Commit() error {
	u.committed = true
	return nil
}

func (u *failingUnit) Rollback() error {
	u.rolledBack = true
	return nil
}

func contract(state, id, description string) domain.NormalizedContract {
	return domain.NormalizedContract{
		State:       state,
		LettingDate: domain.ParseLettingDate("11/20/2025"),
		ContractID:  id,
		AwardedTo:   "Acme Co",
		Description: description,
		SourceURL:   "https://example.org/letting",
	}
}

func twoSiteSource() *fakeSource {
	return &fakeSource{results: []scanner.SiteResult{
		{
			Site: "kytc", Scanner: "kytc", State: "KY",
			Contracts: []domain.NormalizedContract{
				contract("KY", "101", "Dump truck hauling for earthwork and excavation project"),
				contract("KY", "102", "Bridge painting"),
			},
			Outcomes: []scanner.FetchOutcome{{Source: "kytc", LettingDate: "11/20/2025", Records: 2}},
		},
		{
			Site: "indot", Scanner: "indot", State: "IN",
			Contracts: []domain.NormalizedContract{contract("IN", "R-1", "gravel hauling")},
			Outcomes:  []scanner.FetchOutcome{{Source: "indot", Records: 1}},
		},
	}}
}

func fixedNow() time.Time {
	return time.Date(2025, 11, 21, 8, 0, 0, 0, time.UTC)
}

func TestPipelineRunCountsAndScores(t *testing.T) {
	t.Parallel()

	repo := storage.NewMemoryRepository()
	p := NewPipeline(PipelineDeps{Source: twoSiteSource(), Repository: repo, Now: fixedNow})

	result, err := p.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if result.KYTCCount != 2 || result.INDOTCount != 1 || result.TotalProcessed != 3 || result.TotalUpserted != 3 {
		t.Fatalf("unexpected counts %+v", result)
	}
	if result.Inserted != 3 || result.Updated != 0 {
		t.Fatalf("unexpected insert/update split %d/%d", result.Inserted, result.Updated)
	}

	leads, err := repo.List(context.Background(), domain.LeadFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if leads[0].ContractID != "101" || leads[0].Score != 43 {
		t.Fatalf("expected top lead 101 with score 43, got %s/%d", leads[0].ContractID, leads[0].Score)
	}
	if leads[2].Score != 0 || leads[2].ScoreReasons != nil {
		t.Fatalf("unscored lead should have nil reasons: %+v", leads[2])
	}
	if leads[0].Status != domain.StatusNew {
		t.Fatalf("new lead status %q", leads[0].Status)
	}
}

func TestPipelineRunIsIdempotentAndPreservesStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := storage.NewMemoryRepository()
	p := NewPipeline(PipelineDeps{Source: twoSiteSource(), Repository: repo, Now: fixedNow})

	if _, err := p.Run(ctx, RunOptions{}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	leads, _ := repo.List(ctx, domain.LeadFilter{State: "KY"})
	if _, err := repo.UpdateStatus(ctx, leads[0].ID, domain.StatusContacted); err != nil {
		t.Fatalf("update status: %v", err)
	}

	second, err := p.Run(ctx, RunOptions{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Inserted != 0 || second.Updated != 3 || second.TotalUpserted != 3 {
		t.Fatalf("second run should only update: %+v", second)
	}

	all, _ := repo.List(ctx, domain.LeadFilter{})
	if len(all) != 3 {
		t.Fatalf("expected 3 stored leads, got %d", len(all))
	}

	got, err := repo.Get(ctx, leads[0].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusContacted {
		t.Fatalf("status overwritten by re-ingestion: %q", got.Status)
	}
}

func TestPipelineRunWithDegradedSource(t *testing.T) {
	t.Parallel()

	src := twoSiteSource()
	src.results[1] = scanner.SiteResult{
		Site: "indot", Scanner: "indot", State: "IN",
		Outcomes: []scanner.FetchOutcome{{Source: "indot", Err: errors.New("connection refused")}},
	}

	p := NewPipeline(PipelineDeps{Source: src, Repository: storage.NewMemoryRepository(), Now: fixedNow})
	result, err := p.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if result.KYTCCount != 2 || result.INDOTCount != 0 || result.TotalUpserted != 2 {
		t.Fatalf("unexpected counts %+v", result)
	}
	if !result.Degraded() {
		t.Fatalf("result should be degraded")
	}
	if result.Sources[1].Fetches[0].Error != "connection refused" {
		t.Fatalf("failure cause not reported: %+v", result.Sources[1])
	}
}

func TestPipelineRunPassesLettingDateOverride(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	p := NewPipeline(PipelineDeps{Source: src, Repository: storage.NewMemoryRepository()})

	if _, err := p.Run(context.Background(), RunOptions{LettingDates: []string{"12/18/2025"}}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(src.dates) != 1 || len(src.dates[0]) != 1 || src.dates[0][0] != "12/18/2025" {
		t.Fatalf("override not forwarded: %v", src.dates)
	}
}

func TestPipelineRunRollsBackOnUpsertError(t *testing.T) {
	t.Parallel()

	unit := &failingUnit{}
	p := NewPipeline(PipelineDeps{Source: twoSiteSource(), Repository: &failingRepo{unit: unit}})

	_, err := p.Run(context.Background(), RunOptions{})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected upsert error, got %v", err)
	}
	if !unit.rolledBack || unit.committed {
		t.Fatalf("expected rollback without commit, got rollback=%v commit=%v", unit.rolledBack, unit.committed)
	}
}

func TestPipelineRunNotifiesNewLeadsAboveThreshold(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	notifier := &fakeNotifier{}
	p := NewPipeline(PipelineDeps{
		Source:         twoSiteSource(),
		Repository:     storage.NewMemoryRepository(),
		Notifier:       notifier,
		NotifyMinScore: 20,
		Now:            fixedNow,
	})

	if _, err := p.Run(ctx, RunOptions{}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(notifier.batches) != 1 {
		t.Fatalf("expected one digest, got %d", len(notifier.batches))
	}
	var ids []string
	for _, lead := range notifier.batches[0] {
		ids = append(ids, lead.Key().String())
	}
	if got := strings.Join(ids, ","); got != "KY/101,IN/R-1" {
		t.Fatalf("unexpected notified leads %s", got)
	}

	if _, err := p.Run(ctx, RunOptions{}); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(notifier.batches) != 1 {
		t.Fatalf("re-sighted leads must not be notified again")
	}
}

func TestPipelineRunIgnoresNotifierFailure(t *testing.T) {
	t.Parallel()

	p := NewPipeline(PipelineDeps{
		Source:     twoSiteSource(),
		Repository: storage.NewMemoryRepository(),
		Notifier:   &fakeNotifier{err: errors.New("telegram down")},
	})

	if _, err := p.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("notifier failure must not fail the run: %v", err)
	}
}

func TestPipelineRunRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewPipeline(PipelineDeps{}).Run(context.Background(), RunOptions{}); err == nil {
		t.Fatalf("expected error without source")
	}
	if _, err := NewPipeline(PipelineDeps{Source: &fakeSource{}}).Run(context.Background(), RunOptions{}); err == nil {
		t.Fatalf("expected error without repository")
	}
}
