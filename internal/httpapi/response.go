package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UnifiedResponse is the envelope every endpoint answers with. Code is 0
// on success and mirrors the HTTP status on errors.
type UnifiedResponse struct {
	Code int    `json:"code"`
	Data any    `json:"data,omitempty"`
	Msg  string `json:"msg"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, UnifiedResponse{Code: 0, Data: data, Msg: "success"})
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, UnifiedResponse{Code: status, Msg: message})
}

func respondErrorData(c *gin.Context, status int, message string, data any) {
	c.AbortWithStatusJSON(status, UnifiedResponse{Code: status, Data: data, Msg: message})
}
