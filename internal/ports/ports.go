package ports

import (
	"context"
	"time"

	"ContractFinder/internal/domain"
	"ContractFinder/internal/scanner"
)

// ContractSource pulls award records from every configured agency site.
// Non-empty lettingDates replace the configured schedule for this call.
type ContractSource interface {
	FetchAll(ctx context.Context, lettingDates []string) []scanner.SiteResult
}

// ContractRepository persists scored awards and serves lead queries.
type ContractRepository interface {
	Begin(ctx context.Context) (UnitOfWork, error)
	List(ctx context.Context, filter domain.LeadFilter) ([]domain.ContractAward, error)
	Get(ctx context.Context, id int64) (domain.ContractAward, error)
	UpdateStatus(ctx context.Context, id int64, status domain.ContractStatus) (domain.ContractAward, error)
	Ping(ctx context.Context) error
	Close() error
}

// UnitOfWork groups the upserts of one ingestion run into a single transaction.
type UnitOfWork interface {
	FindByKey(ctx context.Context, key domain.ContractKey) (domain.ContractAward, bool, error)
	Upsert(ctx context.Context, award domain.ContractAward) (domain.ContractAward, error)
	Commit() error
	Rollback() error
}

// Notifier delivers newly inserted leads to a chat channel. Formatting belongs to the channel.
type Notifier interface {
	NotifyLeads(ctx context.Context, leads []domain.ContractAward) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
