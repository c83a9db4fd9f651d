package handlers

import (
	"errors"
	"net/http"
	"time"

	"go-billing-core/internal/billing"
	"go-billing-core/internal/database"
	"go-billing-core/internal/middleware"
	"go-billing-core/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ReportHandler serves read-only figures: previews, reports, sweeps
type ReportHandler struct {
	db       *gorm.DB
	invoices *billing.InvoiceService
}

func NewReportHandler(db *gorm.DB, invoices *billing.InvoiceService) *ReportHandler {
	return &ReportHandler{db: db, invoices: invoices}
}

type previewRequest struct {
	Items []models.LineItem `json:"items"`
	// Optional overrides of the company settings, for "what if" previews
	Settings *billing.TaxSettings `json:"settings"`
}

type previewResponse struct {
	Lines  []billing.LineResult `json:"lines"`
	Totals billing.Totals       `json:"totals"`
}

// --- POST: /api/preview ---
// Preview computes totals for unsaved items. Nothing is persisted.
func (h *ReportHandler) Preview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badInput(c, err)
		return
	}

	settings := billing.TaxSettings{}
	if req.Settings != nil {
		settings = *req.Settings
	} else {
		var company models.Company
		err := h.db.WithContext(c.Request.Context()).Take(&company, middleware.CompanyID(c)).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Company not found"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		settings = billing.SettingsFor(company)
	}

	resp := previewResponse{Lines: make([]billing.LineResult, len(req.Items))}
	for i, item := range req.Items {
		resp.Lines[i] = billing.ComputeLine(item, settings)
	}
	resp.Totals = billing.ComputeTotals(req.Items, settings)
	c.JSON(http.StatusOK, resp)
}

// --- GET: /api/reports/invoices?from=2026-01-01&to=2026-01-31 ---
func (h *ReportHandler) InvoiceReport(c *gin.Context) {
	// 1. Parse the range, defaulting to the current month
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)

	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
			return
		}
		start = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
			return
		}
		end = t.AddDate(0, 0, 1).Add(-time.Millisecond)
	}

	// 2. Aggregate
	report, err := database.GetInvoiceReport(h.db.WithContext(c.Request.Context()), middleware.CompanyID(c), start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build invoice report"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// --- POST: /api/invoices/overdue-sweep ---
func (h *ReportHandler) SweepOverdue(c *gin.Context) {
	n, err := h.invoices.MarkOverdue(c.Request.Context(), middleware.CompanyID(c), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked_overdue": n})
}
