package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/codmatch/backend/internal/domain"
	"github.com/codmatch/backend/internal/usecase"
	"github.com/gin-gonic/gin"
)

const lowConfidenceWarning = "Low confidence match - verify the product manually"

// Handler holds dependencies for HTTP handlers
type Handler struct {
	lookupService *usecase.LookupService
}

// NewHandler creates a new HTTP handler. A nil service answers 501 on the
// catalog endpoints.
func NewHandler(lookupService *usecase.LookupService) *Handler {
	return &Handler{lookupService: lookupService}
}

// NormalizeRequest is the body of POST /api/v1/normalize
type NormalizeRequest struct {
	Text    string `json:"text" binding:"required"`
	Profile string `json:"profile"`
}

// MatchRequest is the body of POST /api/v1/match
type MatchRequest struct {
	Name       string   `json:"name" binding:"required"`
	Candidates []string `json:"candidates" binding:"required,min=1"`
	Profile    string   `json:"profile"`
	Scorer     string   `json:"scorer"`
	Threshold  *float64 `json:"threshold"`
	Inclusive  bool     `json:"inclusive"`
}

// LookupRequest is the body of POST /api/v1/catalog/lookup
type LookupRequest struct {
	Name    string `json:"name" binding:"required"`
	Profile string `json:"profile"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	response := gin.H{
		"status":  "healthy",
		"service": "codmatch-backend",
		"version": "1.0.0",
	}
	if h.lookupService != nil {
		response["catalogSize"] = h.lookupService.CatalogSize()
	}
	c.JSON(http.StatusOK, response)
}

// Normalize cleans a product name with the requested profile
func (h *Handler) Normalize(c *gin.Context) {
	if !h.configured(c) {
		return
	}

	var req NormalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	profile := usecase.Profile(req.Profile)
	if profile == "" {
		profile = usecase.ProfileCatalog
	}
	normalized, err := h.lookupService.Normalize(req.Text, profile)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"text":       req.Text,
		"profile":    profile,
		"normalized": normalized,
	})
}

// Match scores a name against the candidates in the request
func (h *Handler) Match(c *gin.Context) {
	if !h.configured(c) {
		return
	}

	var req MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	match, err := h.lookupService.MatchCandidates(c.Request.Context(), usecase.MatchRequest{
		Name:       req.Name,
		Candidates: req.Candidates,
		Profile:    usecase.Profile(req.Profile),
		Scorer:     req.Scorer,
		Threshold:  req.Threshold,
		Inclusive:  req.Inclusive,
	})
	if errors.Is(err, domain.ErrLowConfidence) && match != nil {
		c.JSON(http.StatusOK, gin.H{"data": match, "warning": lowConfidenceWarning})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, match)
}

// LookupCatalog finds the catalog entry for a noisy product name
func (h *Handler) LookupCatalog(c *gin.Context) {
	if !h.configured(c) {
		return
	}

	var req LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	result, err := h.lookupService.Lookup(c.Request.Context(), req.Name, usecase.Profile(req.Profile))
	if errors.Is(err, domain.ErrLowConfidence) && result != nil {
		c.JSON(http.StatusOK, gin.H{"data": result, "warning": lowConfidenceWarning})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Duplicates lists identifiers shared by more than one catalog row
func (h *Handler) Duplicates(c *gin.Context) {
	if !h.configured(c) {
		return
	}

	groups, err := h.lookupService.Duplicates()
	if err != nil {
		h.writeError(c, err)
		return
	}
	if groups == nil {
		groups = []usecase.DuplicateGroup{}
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(groups),
		"groups": groups,
	})
}

func (h *Handler) configured(c *gin.Context) bool {
	if h.lookupService == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Catalog lookup not configured"})
		return false
	}
	return true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNoCandidates):
		c.JSON(http.StatusNotFound, gin.H{"error": "No catalog products to match against"})
	case errors.Is(err, domain.ErrColumnNotFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		log.Printf("[HTTP] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
