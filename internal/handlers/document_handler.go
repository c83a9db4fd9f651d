package handlers

import (
	"net/http"
	"strconv"

	"go-billing-core/internal/billing"
	"go-billing-core/internal/middleware"

	"github.com/gin-gonic/gin"
)

// DocumentHandler serves quotes, invoices and conversion
type DocumentHandler struct {
	quotes     *billing.QuoteService
	invoices   *billing.InvoiceService
	conversion *billing.ConversionService
}

func NewDocumentHandler(q *billing.QuoteService, i *billing.InvoiceService, conv *billing.ConversionService) *DocumentHandler {
	return &DocumentHandler{quotes: q, invoices: i, conversion: conv}
}

func listFilter(c *gin.Context) billing.ListFilter {
	f := billing.ListFilter{Status: c.Query("status")}
	if v, err := strconv.ParseUint(c.Query("client_id"), 10, 64); err == nil {
		f.ClientID = uint(v)
	}
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))
	return f
}

// --- Quotes ---

func (h *DocumentHandler) ListQuotes(c *gin.Context) {
	quotes, err := h.quotes.List(c.Request.Context(), middleware.CompanyID(c), listFilter(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quotes)
}

func (h *DocumentHandler) CreateQuote(c *gin.Context) {
	var input billing.QuoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badInput(c, err)
		return
	}
	q, err := h.quotes.Create(c.Request.Context(), middleware.CompanyID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

// GetQuote returns the quote with its items and computed totals
func (h *DocumentHandler) GetQuote(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, companyID := c.Request.Context(), middleware.CompanyID(c)

	q, err := h.quotes.Get(ctx, companyID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	totals, err := h.quotes.Totals(ctx, companyID, q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": q, "totals": totals})
}

func (h *DocumentHandler) UpdateQuote(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var patch billing.QuotePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badInput(c, err)
		return
	}
	q, err := h.quotes.Update(c.Request.Context(), middleware.CompanyID(c), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *DocumentHandler) TransitionQuote(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input billing.TransitionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badInput(c, err)
		return
	}
	q, err := h.quotes.TransitionStatus(c.Request.Context(), middleware.CompanyID(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *DocumentHandler) DeleteQuote(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.quotes.Delete(c.Request.Context(), middleware.CompanyID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DocumentHandler) ConvertQuote(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input billing.ConversionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badInput(c, err)
		return
	}
	res, err := h.conversion.ConvertQuoteToInvoice(c.Request.Context(), middleware.CompanyID(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *DocumentHandler) QuoteConversions(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	records, err := h.conversion.History(c.Request.Context(), middleware.CompanyID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// --- Invoices ---

func (h *DocumentHandler) ListInvoices(c *gin.Context) {
	invoices, err := h.invoices.List(c.Request.Context(), middleware.CompanyID(c), listFilter(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoices)
}

func (h *DocumentHandler) CreateInvoice(c *gin.Context) {
	var input billing.InvoiceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badInput(c, err)
		return
	}
	inv, err := h.invoices.Create(c.Request.Context(), middleware.CompanyID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

func (h *DocumentHandler) GetInvoice(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx, companyID := c.Request.Context(), middleware.CompanyID(c)

	inv, err := h.invoices.Get(ctx, companyID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	totals, err := h.invoices.Totals(ctx, companyID, inv)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice": inv, "totals": totals})
}

func (h *DocumentHandler) UpdateInvoice(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var patch billing.InvoicePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badInput(c, err)
		return
	}
	inv, err := h.invoices.Update(c.Request.Context(), middleware.CompanyID(c), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *DocumentHandler) TransitionInvoice(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input billing.TransitionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badInput(c, err)
		return
	}
	inv, err := h.invoices.TransitionStatus(c.Request.Context(), middleware.CompanyID(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *DocumentHandler) DeleteInvoice(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.invoices.Delete(c.Request.Context(), middleware.CompanyID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
