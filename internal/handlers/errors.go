package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"go-billing-core/internal/billing"

	"github.com/gin-gonic/gin"
)

// respondError maps billing errors onto HTTP statuses
func respondError(c *gin.Context, err error) {
	var (
		te *billing.TransitionError
		ve *billing.ValidationError
		ce *billing.ConflictError
	)
	switch {
	case errors.As(err, &te):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   err.Error(),
			"from":    te.From,
			"to":      te.To,
			"allowed": te.Allowed,
		})
	case errors.As(err, &ve):
		body := gin.H{"error": err.Error(), "field": ve.Field}
		if ve.Row > 0 {
			body["row"] = ve.Row
		}
		if ve.ItemID > 0 {
			body["item_id"] = ve.ItemID
		}
		c.JSON(http.StatusUnprocessableEntity, body)
	case errors.As(err, &ce):
		body := gin.H{"error": err.Error(), "retry": "reload and retry"}
		if len(ce.ItemIDs) > 0 {
			body["item_ids"] = ce.ItemIDs
		}
		if ce.Row > 0 {
			body["row"] = ce.Row
		}
		c.JSON(http.StatusConflict, body)
	case errors.Is(err, billing.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// paramID reads a positive numeric path parameter, answering 400 otherwise
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

func badInput(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "detail": err.Error()})
}
