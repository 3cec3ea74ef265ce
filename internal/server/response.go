package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func respondData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{"data": data})
}

// respondWithWarning answers a request whose main effect succeeded while a
// follow-up did not.
func respondWithWarning(c *gin.Context, status int, data any, code, message string) {
	c.JSON(status, gin.H{
		"data":     data,
		"warnings": []gin.H{{"code": code, "message": message}},
	})
}
