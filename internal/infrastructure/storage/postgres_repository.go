package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"ContractFinder/internal/domain"
	"ContractFinder/internal/ports"
)

const contractsTable = "contract_awards"

// Schema creates the leads table. letting_date is text so unresolved source strings survive.
const Schema = `
CREATE TABLE IF NOT EXISTS contract_awards (
    id            BIGSERIAL PRIMARY KEY,
    state         TEXT        NOT NULL,
    letting_date  TEXT        NOT NULL,
    contract_id   TEXT        NOT NULL,
    awarded_to    TEXT        NOT NULL,
    description   TEXT        NOT NULL DEFAULT '',
    amount        TEXT,
    source_url    TEXT        NOT NULL DEFAULT '',
    score         INTEGER     NOT NULL DEFAULT 0,
    score_reasons TEXT,
    status        TEXT        NOT NULL DEFAULT 'new',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (state, contract_id)
);
CREATE INDEX IF NOT EXISTS contract_awards_score_idx ON contract_awards (score DESC);
`

var awardColumns = []string{
	"id", "state", "letting_date", "contract_id", "awarded_to", "description",
	"amount", "source_url", "score", "score_reasons", "status", "created_at", "updated_at",
}

// upsertSuffix overwrites the scraped and scored columns; status and created_at keep
// their stored values.
const upsertSuffix = `ON CONFLICT (state, contract_id) DO UPDATE SET
    letting_date = EXCLUDED.letting_date,
    awarded_to = EXCLUDED.awarded_to,
    description = EXCLUDED.description,
    amount = EXCLUDED.amount,
    source_url = EXCLUDED.source_url,
    score = EXCLUDED.score,
    score_reasons = EXCLUDED.score_reasons,
    updated_at = EXCLUDED.updated_at
RETURNING id, status, created_at`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository persists leads into Postgres.
type PostgresRepository struct {
	db *sql.DB
}

var _ ports.ContractRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// OpenPostgres connects with the lib/pq driver and creates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepository, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	repo := NewPostgresRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// EnsureSchema applies Schema idempotently.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Begin opens a transaction for one ingestion run.
func (r *PostgresRepository) Begin(ctx context.Context) (ports.UnitOfWork, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &postgresUnit{tx: tx}, nil
}

// List returns leads matching the filter ordered by score.
func (r *PostgresRepository) List(ctx context.Context, filter domain.LeadFilter) ([]domain.ContractAward, error) {
	query, args, err := listQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}

	leads := make([]domain.ContractAward, 0)
	for rows.Next() {
		award, err := scanAward(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, award)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return leads, nil
}

// Get loads a lead by id.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (domain.ContractAward, error) {
	query, args, err := psql.Select(awardColumns...).From(contractsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.ContractAward{}, fmt.Errorf("build get query: %w", err)
	}

	award, err := scanAward(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ContractAward{}, fmt.Errorf("%w: %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.ContractAward{}, fmt.Errorf("get lead %d: %w", id, err)
	}
	return award, nil
}

// UpdateStatus sets only the status column.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id int64, status domain.ContractStatus) (domain.ContractAward, error) {
	query, args, err := updateStatusQuery(id, status)
	if err != nil {
		return domain.ContractAward{}, fmt.Errorf("build status update: %w", err)
	}

	award, err := scanAward(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ContractAward{}, fmt.Errorf("%w: %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.ContractAward{}, fmt.Errorf("update status %d: %w", id, err)
	}
	return award, nil
}

// Ping checks connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close releases the pool.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

type postgresUnit struct {
	tx *sql.Tx
}

func (u *postgresUnit) FindByKey(ctx context.Context, key domain.ContractKey) (domain.ContractAward, bool, error) {
	query, args, err := findByKeyQuery(key)
	if err != nil {
		return domain.ContractAward{}, false, fmt.Errorf("build key lookup: %w", err)
	}

	award, err := scanAward(u.tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ContractAward{}, false, nil
	}
	if err != nil {
		return domain.ContractAward{}, false, fmt.Errorf("find %s: %w", key, err)
	}
	return award, true, nil
}

func (u *postgresUnit) Upsert(ctx context.Context, award domain.ContractAward) (domain.ContractAward, error) {
	query, args, err := upsertQuery(award)
	if err != nil {
		return domain.ContractAward{}, fmt.Errorf("build upsert: %w", err)
	}

	var status string
	if err := u.tx.QueryRowContext(ctx, query, args...).Scan(&award.ID, &status, &award.CreatedAt); err != nil {
		return domain.ContractAward{}, fmt.Errorf("upsert %s: %w", award.Key(), err)
	}
	award.Status = domain.ContractStatus(status)
	return award, nil
}

func (u *postgresUnit) Commit() error {
	return u.tx.Commit()
}

func (u *postgresUnit) Rollback() error {
	return u.tx.Rollback()
}

func upsertQuery(award domain.ContractAward) (string, []any, error) {
	status := award.Status
	if status == "" {
		status = domain.StatusNew
	}

	return psql.Insert(contractsTable).
		Columns("state", "letting_date", "contract_id", "awarded_to", "description",
			"amount", "source_url", "score", "score_reasons", "status", "created_at", "updated_at").
		Values(award.State, award.LettingDate, award.ContractID, award.AwardedTo, award.Description,
			award.Amount, award.SourceURL, award.Score, award.ScoreReasons, string(status),
			award.CreatedAt, award.UpdatedAt).
		Suffix(upsertSuffix).
		ToSql()
}

func findByKeyQuery(key domain.ContractKey) (string, []any, error) {
	return psql.Select(awardColumns...).
		From(contractsTable).
		Where(sq.Eq{"state": key.State, "contract_id": key.ContractID}).
		ToSql()
}

func listQuery(filter domain.LeadFilter) (string, []any, error) {
	builder := psql.Select(awardColumns...).From(contractsTable)
	if filter.State != "" {
		builder = builder.Where(sq.Eq{"state": strings.ToUpper(filter.State)})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.MinScore != nil {
		builder = builder.Where(sq.GtOrEq{"score": *filter.MinScore})
	}
	return builder.OrderBy("score DESC", "id ASC").ToSql()
}

func updateStatusQuery(id int64, status domain.ContractStatus) (string, []any, error) {
	return psql.Update(contractsTable).
		Set("status", string(status)).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(awardColumns, ", ")).
		ToSql()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAward(row rowScanner) (domain.ContractAward, error) {
	var (
		award   domain.ContractAward
		status  string
		amount  sql.NullString
		reasons sql.NullString
	)

	err := row.Scan(
		&award.ID,
		&award.State,
		&award.LettingDate,
		&award.ContractID,
		&award.AwardedTo,
		&award.Description,
		&amount,
		&award.SourceURL,
		&award.Score,
		&reasons,
		&status,
		&award.CreatedAt,
		&award.UpdatedAt,
	)
	if err != nil {
		return domain.ContractAward{}, err
	}

	award.Status = domain.ContractStatus(status)
	if amount.Valid {
		award.Amount = &amount.String
	}
	if reasons.Valid {
		award.ScoreReasons = &reasons.String
	}
	return award, nil
}
