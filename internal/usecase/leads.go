package usecase

import (
	"context"
	"errors"
	"fmt"

	"ContractFinder/internal/domain"
	"ContractFinder/internal/ports"
)

// Leads serves lead queries and sales status changes.
type Leads struct {
	repository ports.ContractRepository
}

// NewLeads wraps the repository.
func NewLeads(repo ports.ContractRepository) *Leads {
	return &Leads{repository: repo}
}

// List returns leads matching the filter, highest score first.
func (l *Leads) List(ctx context.Context, filter domain.LeadFilter) ([]domain.ContractAward, error) {
	if l.repository == nil {
		return nil, errors.New("contract repository is not configured")
	}

	leads, err := l.repository.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	domain.SortByScore(leads)
	return leads, nil
}

// UpdateStatus validates the status string and stores it on the lead.
func (l *Leads) UpdateStatus(ctx context.Context, id int64, status string) (domain.ContractAward, error) {
	if l.repository == nil {
		return domain.ContractAward{}, errors.New("contract repository is not configured")
	}

	parsed, err := domain.ParseContractStatus(status)
	if err != nil {
		return domain.ContractAward{}, err
	}

	award, err := l.repository.UpdateStatus(ctx, id, parsed)
	if err != nil {
		return domain.ContractAward{}, fmt.Errorf("update lead %d: %w", id, err)
	}
	return award, nil
}

// Health is the storage liveness report.
type Health struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Healthy reports whether the database answered.
func (h Health) Healthy() bool {
	return h.Status == "healthy"
}

// Health pings the repository.
func (l *Leads) Health(ctx context.Context) Health {
	if l.repository == nil {
		return Health{Status: "unhealthy", Database: "error: not configured"}
	}
	if err := l.repository.Ping(ctx); err != nil {
		return Health{Status: "unhealthy", Database: "error: " + err.Error()}
	}
	return Health{Status: "healthy", Database: "connected"}
}
