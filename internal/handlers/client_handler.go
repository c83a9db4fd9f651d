package handlers

import (
	"net/http"

	"go-billing-core/internal/middleware"
	"go-billing-core/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ClientHandler struct {
	db *gorm.DB
}

func NewClientHandler(db *gorm.DB) *ClientHandler {
	return &ClientHandler{db: db}
}

type clientRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email"`
}

func (h *ClientHandler) List(c *gin.Context) {
	clients := []models.Client{}
	err := h.db.WithContext(c.Request.Context()).
		Where("company_id = ?", middleware.CompanyID(c)).
		Order("name").
		Find(&clients).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch clients"})
		return
	}
	c.JSON(http.StatusOK, clients)
}

func (h *ClientHandler) Create(c *gin.Context) {
	var input clientRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		badInput(c, err)
		return
	}
	client := models.Client{CompanyID: middleware.CompanyID(c), Name: input.Name, Email: input.Email}
	if err := h.db.WithContext(c.Request.Context()).Create(&client).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create client"})
		return
	}
	c.JSON(http.StatusCreated, client)
}

// Delete soft-deletes the client; existing documents keep pointing at it
func (h *ClientHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND company_id = ?", id, middleware.CompanyID(c)).
		Delete(&models.Client{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete client"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
