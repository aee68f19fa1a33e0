package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a lead id has no stored record.
	ErrNotFound = errors.New("contract award not found")
	// ErrInvalidStatus is returned for status strings outside ContractStatus.
	ErrInvalidStatus = errors.New("invalid status")
)

// RawContract is one award as scraped from a source page, before state tagging.
type RawContract struct {
	LettingDate LettingDate
	ContractID  string
	AwardedTo   string
	Description string
	Amount      *string
	SourceURL   string
}

// NormalizedContract is the source-independent record shape fed to scoring and upsert.
type NormalizedContract struct {
	State       string      `json:"state"`
	LettingDate LettingDate `json:"letting_date"`
	ContractID  string      `json:"contract_id"`
	AwardedTo   string      `json:"awarded_to"`
	Description string      `json:"description"`
	Amount      *string     `json:"amount"`
	SourceURL   string      `json:"source_url"`
}

// Key returns the natural upsert key.
func (n NormalizedContract) Key() ContractKey {
	return ContractKey{State: n.State, ContractID: n.ContractID}
}

// Normalize tags every raw record with the source state.
func Normalize(state string, raw []RawContract) []NormalizedContract {
	out := make([]NormalizedContract, 0, len(raw))
	for _, rc := range raw {
		out = append(out, NormalizedContract{
			State:       state,
			LettingDate: rc.LettingDate,
			ContractID:  rc.ContractID,
			AwardedTo:   rc.AwardedTo,
			Description: rc.Description,
			Amount:      rc.Amount,
			SourceURL:   rc.SourceURL,
		})
	}
	return out
}

// ContractStatus tracks the sales follow-up on a lead.
type ContractStatus string

const (
	StatusNew       ContractStatus = "new"
	StatusContacted ContractStatus = "contacted"
	StatusIgnored   ContractStatus = "ignored"
	StatusConverted ContractStatus = "converted"
)

// ParseContractStatus accepts any letter case.
func ParseContractStatus(value string) (ContractStatus, error) {
	status := ContractStatus(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case StatusNew, StatusContacted, StatusIgnored, StatusConverted:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidStatus, value)
	}
}

// ContractKey identifies a persisted award.
type ContractKey struct {
	State      string
	ContractID string
}

func (k ContractKey) String() string {
	return k.State + "/" + k.ContractID
}

// ContractAward is the persisted lead.
type ContractAward struct {
	ID           int64          `json:"id"`
	State        string         `json:"state"`
	LettingDate  LettingDate    `json:"letting_date"`
	ContractID   string         `json:"contract_id"`
	AwardedTo    string         `json:"awarded_to"`
	Description  string         `json:"description"`
	Amount       *string        `json:"amount"`
	SourceURL    string         `json:"source_url"`
	Score        int            `json:"score"`
	ScoreReasons *string        `json:"score_reasons"`
	Status       ContractStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Key returns the natural upsert key.
func (c ContractAward) Key() ContractKey {
	return ContractKey{State: c.State, ContractID: c.ContractID}
}

// NewContractAward builds a first-sighting record with the default status.
func NewContractAward(n NormalizedContract, score int, reasons *string, now time.Time) ContractAward {
	award := ContractAward{
		State:      n.State,
		ContractID: n.ContractID,
		Status:     StatusNew,
		CreatedAt:  now,
	}
	award.Apply(n, score, reasons, now)
	return award
}

// Apply overwrites the mutable fields from a re-sighting. Status is left untouched.
func (c *ContractAward) Apply(n NormalizedContract, score int, reasons *string, now time.Time) {
	c.LettingDate = n.LettingDate
	c.AwardedTo = n.AwardedTo
	c.Description = n.Description
	c.Amount = n.Amount
	c.SourceURL = n.SourceURL
	c.Score = score
	c.ScoreReasons = reasons
	c.UpdatedAt = now
}

// LeadFilter narrows lead listings. Zero values disable a criterion.
type LeadFilter struct {
	State    string
	Status   ContractStatus
	MinScore *int
}

// Matches reports whether the award passes every set criterion.
func (f LeadFilter) Matches(c ContractAward) bool {
	if f.State != "" && c.State != strings.ToUpper(f.State) {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.MinScore != nil && c.Score < *f.MinScore {
		return false
	}
	return true
}

// SortByScore orders leads by score descending, ties by id ascending.
func SortByScore(leads []ContractAward) {
	sort.SliceStable(leads, func(i, j int) bool {
		if leads[i].Score != leads[j].Score {
			return leads[i].Score > leads[j].Score
		}
		return leads[i].ID < leads[j].ID
	})
}
