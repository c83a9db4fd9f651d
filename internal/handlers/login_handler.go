package handlers

import (
	"net/http"

	"go-billing-core/internal/auth"
	"go-billing-core/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthHandler struct {
	db     *gorm.DB
	issuer *auth.Issuer
}

func NewAuthHandler(db *gorm.DB, issuer *auth.Issuer) *AuthHandler {
	return &AuthHandler{db: db, issuer: issuer}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var input LoginRequest
	// 1. Validate Input JSON
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	// 2. Find User in DB
	var user models.User
	if err := h.db.Where("username = ?", input.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	// 3. Verify Password (Bcrypt)
	err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	// 4. Generate JWT Token scoped to the user's company
	token, err := h.issuer.GenerateToken(user.ID, user.CompanyID, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"role":       user.Role,
		"username":   user.Username,
		"company_id": user.CompanyID,
	})
}

// RegisterRequest opens a new company with its first admin
type RegisterRequest struct {
	Username          string           `json:"username" binding:"required"`
	Password          string           `json:"password" binding:"required,min=8"`
	CompanyName       string           `json:"company_name" binding:"required"`
	StandardTaxRate   *decimal.Decimal `json:"standard_tax_rate"`
	ReducedTaxRate    *decimal.Decimal `json:"reduced_tax_rate"`
	PriceIncludesTax  bool             `json:"price_includes_tax"`
	TaxRoundingPlaces int32            `json:"tax_rounding_places"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var input RegisterRequest

	// 1. Parse JSON
	if err := c.ShouldBindJSON(&input); err != nil {
		badInput(c, err)
		return
	}

	company := models.Company{
		Name:              input.CompanyName,
		StandardTaxRate:   decimal.NewFromInt(10),
		ReducedTaxRate:    decimal.NewFromInt(8),
		PriceIncludesTax:  input.PriceIncludesTax,
		TaxRoundingPlaces: input.TaxRoundingPlaces,
	}
	if input.StandardTaxRate != nil {
		company.StandardTaxRate = *input.StandardTaxRate
	}
	if input.ReducedTaxRate != nil {
		company.ReducedTaxRate = *input.ReducedTaxRate
	}
	if company.StandardTaxRate.IsNegative() || company.ReducedTaxRate.IsNegative() ||
		company.TaxRoundingPlaces < 0 || company.TaxRoundingPlaces > 4 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid tax settings"})
		return
	}

	// 2. Hash the Password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	// 3. Save company and admin together
	user := models.User{
		Username:     input.Username,
		PasswordHash: string(hashedPassword),
		Role:         "admin",
	}
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&company).Error; err != nil {
			return err
		}
		user.CompanyID = company.ID
		return tx.Create(&user).Error
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User likely already exists"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":    "Company created successfully!",
		"company_id": company.ID,
	})
}
