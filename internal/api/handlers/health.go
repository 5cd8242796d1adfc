package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eagleisbatman/agrivision-mcp-server/internal/config"
	"github.com/eagleisbatman/agrivision-mcp-server/internal/mcp"
	"github.com/eagleisbatman/agrivision-mcp-server/internal/services"
)

// CatalogStatusProvider reports the crop catalog state
type CatalogStatusProvider interface {
	Status() services.CatalogStatus
}

// DiagnosisStatus reports how the diagnosis tool is configured
type DiagnosisStatus interface {
	Enabled() bool
	Model() string
	IncludesTreatment() bool
}

type HealthHandler struct {
	cfg       config.ServiceConfig
	diagnosis DiagnosisStatus
	catalog   CatalogStatusProvider
}

func NewHealthHandler(cfg config.ServiceConfig, diagnosis DiagnosisStatus, catalog CatalogStatusProvider) *HealthHandler {
	return &HealthHandler{
		cfg:       cfg,
		diagnosis: diagnosis,
		catalog:   catalog,
	}
}

// Health is the liveness probe
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Info reports configuration and catalog state. It never exposes credentials.
func (h *HealthHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":           mcp.ServerName,
		"version":           mcp.ServerVersion,
		"protocol_version":  mcp.ProtocolVersion,
		"tool":              services.DiagnoseToolName,
		"model":             h.diagnosis.Model(),
		"model_configured":  h.diagnosis.Enabled(),
		"treatment_advice":  h.diagnosis.IncludesTreatment(),
		"advisory_mode":     h.cfg.AdvisoryMode,
		"output_format":     h.cfg.OutputFormat,
		"max_image_size_mb": h.cfg.MaxImageSizeMB,
		"crop_catalog":      h.catalog.Status(),
	})
}
