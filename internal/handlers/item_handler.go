package handlers

import (
	"net/http"

	"go-billing-core/internal/billing"
	"go-billing-core/internal/middleware"
	"go-billing-core/internal/models"

	"github.com/gin-gonic/gin"
)

// ItemHandler serves the line items of one document kind
type ItemHandler struct {
	kind  billing.Kind
	items *billing.LineItemService
}

func NewItemHandler(kind billing.Kind, items *billing.LineItemService) *ItemHandler {
	return &ItemHandler{kind: kind, items: items}
}

// Register mounts the item routes under group, which must carry an :id param
func (h *ItemHandler) Register(group *gin.RouterGroup) {
	group.GET("/items", h.List)
	group.POST("/items", h.Create)
	group.PUT("/items", h.ReplaceAll)
	group.POST("/items/bulk", h.Bulk)
	group.POST("/items/reorder", h.Reorder)
	group.PATCH("/items/:itemId", h.Update)
	group.DELETE("/items/:itemId", h.Delete)
}

func (h *ItemHandler) List(c *gin.Context) {
	docID, ok := paramID(c, "id")
	if !ok {
		return
	}
	items, err := h.items.List(c.Request.Context(), h.kind, middleware.CompanyID(c), docID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *ItemHandler) Create(c *gin.Context) {
	docID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var item models.LineItem
	if err := c.ShouldBindJSON(&item); err != nil {
		badInput(c, err)
		return
	}
	created, err := h.items.Create(c.Request.Context(), h.kind, middleware.CompanyID(c), docID, item)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *ItemHandler) Update(c *gin.Context) {
	docID, ok := paramID(c, "id")
	if !ok {
		return
	}
	itemID, ok := paramID(c, "itemId")
	if !ok {
		return
	}
	var patch billing.ItemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badInput(c, err)
		return
	}
	updated, err := h.items.Update(c.Request.Context(), h.kind, middleware.CompanyID(c), docID, itemID, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *ItemHandler) Delete(c *gin.Context) {
	docID, ok := paramID(c, "id")
	if !ok {
		return
	}
	itemID, ok := paramID(c, "itemId")
	if !ok {
		return
	}
	if err := h.items.Delete(c.Request.Context(), h.kind, middleware.CompanyID(c), docID, itemID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type bulkRequest struct {
	Operations []billing.BulkOp `json:"operations" binding:"required"`
}

func (h *ItemHandler) Bulk(c *gin.Context) {
	docID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badInput(c, err)
		return
	}
	res, err := h.items.BulkProcess(c.Request.Context(), h.kind, middleware.CompanyID(c), docID, req.Operations)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type replaceRequest struct {
	Items []models.LineItem `json:"items"`
}

func (h *ItemHandler) ReplaceAll(c *gin.Context) {
	docID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req replaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badInput(c, err)
		return
	}
	items, err := h.items.ReplaceAll(c.Request.Context(), h.kind, middleware.CompanyID(c), docID, req.Items)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

type reorderRequest struct {
	Moves []billing.Move `json:"moves" binding:"required"`
}

func (h *ItemHandler) Reorder(c *gin.Context) {
	docID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badInput(c, err)
		return
	}
	items, err := h.items.Reorder(c.Request.Context(), h.kind, middleware.CompanyID(c), docID, req.Moves)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}
