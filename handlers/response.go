package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/supplies_backend/config"
	"github.com/mmdatafocus/supplies_backend/utils"
)

const CodeInsufficientStock = "INSUFFICIENT_STOCK"

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// respondError maps the error taxonomy onto HTTP statuses.
// Unexpected errors are logged and answered with a generic message.
func respondError(c *gin.Context, funcName string, err error) {
	switch {
	case utils.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case utils.IsNotFoundError(err):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
	case utils.IsInsufficientStockError(err):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error(), "code": CodeInsufficientStock})
	case utils.IsConflictError(err):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
	default:
		config.LogError(config.GetLogger(), "handlers", funcName, "Unhandled error", c.Request.URL.Path, err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
	}
}

// bindJSON decodes the body into input and answers 400 itself when it cannot.
func bindJSON(c *gin.Context, input any) bool {
	if err := c.ShouldBindJSON(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "invalid input",
				"fields":  utils.ProcessValidationErrors(verrs),
			})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "malformed request body: " + err.Error()})
		return false
	}
	return true
}

func intParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid " + name})
		return 0, false
	}
	return id, true
}
