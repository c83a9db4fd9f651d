package handlers

import (
	"net/http"

	"go-billing-core/internal/auth"
	"go-billing-core/internal/billing"
	"go-billing-core/internal/middleware"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Services bundles what the routes need
type Services struct {
	DB         *gorm.DB
	Issuer     *auth.Issuer
	Quotes     *billing.QuoteService
	Invoices   *billing.InvoiceService
	Items      *billing.LineItemService
	Conversion *billing.ConversionService
}

// NewServices wires the billing services on db
func NewServices(db *gorm.DB, issuer *auth.Issuer, quotePattern, invoicePattern string) *Services {
	invoices := billing.NewInvoiceService(db, invoicePattern)
	return &Services{
		DB:         db,
		Issuer:     issuer,
		Quotes:     billing.NewQuoteService(db, quotePattern),
		Invoices:   invoices,
		Items:      billing.NewLineItemService(db),
		Conversion: billing.NewConversionService(db, invoices),
	}
}

// RegisterRoutes mounts the public and the protected API on r
func RegisterRoutes(r *gin.Engine, s *Services, allowRegistration bool) {
	authH := NewAuthHandler(s.DB, s.Issuer)
	docs := NewDocumentHandler(s.Quotes, s.Invoices, s.Conversion)
	clients := NewClientHandler(s.DB)
	reports := NewReportHandler(s.DB, s.Invoices)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "online"}) })
	r.POST("/login", authH.Login)
	if allowRegistration {
		r.POST("/register", authH.Register)
	}

	// --- PROTECTED ROUTES ---
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(s.Issuer))
	{
		api.GET("/clients", clients.List)
		api.POST("/clients", clients.Create)

		api.POST("/preview", reports.Preview)

		quotes := api.Group("/quotes")
		quotes.GET("", docs.ListQuotes)
		quotes.POST("", docs.CreateQuote)
		quote := quotes.Group("/:id")
		quote.GET("", docs.GetQuote)
		quote.PATCH("", docs.UpdateQuote)
		quote.POST("/status", docs.TransitionQuote)
		quote.POST("/convert", docs.ConvertQuote)
		quote.GET("/conversions", docs.QuoteConversions)
		NewItemHandler(billing.QuoteKind, s.Items).Register(quote)

		invoices := api.Group("/invoices")
		invoices.GET("", docs.ListInvoices)
		invoices.POST("", docs.CreateInvoice)
		invoice := invoices.Group("/:id")
		invoice.GET("", docs.GetInvoice)
		invoice.PATCH("", docs.UpdateInvoice)
		invoice.POST("/status", docs.TransitionInvoice)
		NewItemHandler(billing.InvoiceKind, s.Items).Register(invoice)

		// ADMIN ONLY
		admin := api.Group("/")
		admin.Use(middleware.RequireRole("admin"))
		{
			admin.DELETE("/quotes/:id", docs.DeleteQuote)
			admin.DELETE("/invoices/:id", docs.DeleteInvoice)
			admin.DELETE("/clients/:id", clients.Delete)
			admin.GET("/reports/invoices", reports.InvoiceReport)
			admin.POST("/invoices/overdue-sweep", reports.SweepOverdue)
		}
	}
}
