package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"ContractFinder/internal/domain"
	"ContractFinder/internal/usecase"
)

const (
	// Name is reported by the root endpoint.
	Name = "Dump Truck Contract Finder"
	// Version is reported by the root endpoint.
	Version = "1.0.0"
)

// Ingestor runs one ingestion pass.
type Ingestor interface {
	Run(ctx context.Context, opts usecase.RunOptions) (usecase.IngestResult, error)
}

// LeadService answers lead queries and status changes.
type LeadService interface {
	List(ctx context.Context, filter domain.LeadFilter) ([]domain.ContractAward, error)
	UpdateStatus(ctx context.Context, id int64, status string) (domain.ContractAward, error)
	Health(ctx context.Context) usecase.Health
}

// Handler serves the leads API.
type Handler struct {
	ingestor Ingestor
	leads    LeadService
}

// NewHandler wires use cases into HTTP handlers.
func NewHandler(ingestor Ingestor, leads LeadService) *Handler {
	return &Handler{ingestor: ingestor, leads: leads}
}

// Root reports service name and version.
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"name": Name, "version": Version})
}

// Health reports database connectivity.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.leads.Health(c.Request.Context()))
}

type ingestRequest struct {
	LettingDates []string `json:"letting_dates"`
}

type ingestDiagnostics struct {
	usecase.IngestResult
	Inserted int                    `json:"inserted"`
	Updated  int                    `json:"updated"`
	Degraded bool                   `json:"degraded"`
	Sources  []usecase.SourceReport `json:"sources"`
}

// RunIngestion triggers a synchronous ingestion pass. The body is optional.
func (h *Handler) RunIngestion(c *gin.Context) {
	var req ingestRequest
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	result, err := h.ingestor.Run(c.Request.Context(), usecase.RunOptions{LettingDates: req.LettingDates})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ingestion failed: " + err.Error()})
		return
	}

	if diagnostics, _ := strconv.ParseBool(c.Query("diagnostics")); diagnostics {
		c.JSON(http.StatusOK, ingestDiagnostics{
			IngestResult: result,
			Inserted:     result.Inserted,
			Updated:      result.Updated,
			Degraded:     result.Degraded(),
			Sources:      result.Sources,
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListLeads returns leads filtered by state, status and min_score, best first.
func (h *Handler) ListLeads(c *gin.Context) {
	filter := domain.LeadFilter{State: strings.ToUpper(strings.TrimSpace(c.Query("state")))}

	if raw := c.Query("status"); raw != "" {
		status, err := domain.ParseContractStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status: " + raw})
			return
		}
		filter.Status = status
	}

	if raw := c.Query("min_score"); raw != "" {
		minScore, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid min_score: " + raw})
			return
		}
		filter.MinScore = &minScore
	}

	leads, err := h.leads.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list leads"})
		return
	}

	c.JSON(http.StatusOK, leads)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateLeadStatus sets the sales status of one lead.
func (h *Handler) UpdateLeadStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lead id"})
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	lead, err := h.leads.UpdateStatus(c.Request.Context(), id, req.Status)
	switch {
	case errors.Is(err, domain.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status: " + req.Status})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Contract not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status"})
	default:
		c.JSON(http.StatusOK, lead)
	}
}
