// Package response defines the JSON envelopes shared by all HTTP handlers.
package response

import "github.com/gin-gonic/gin"

// Data writes the success envelope {"data": v}.
func Data(c *gin.Context, status int, v any) {
	c.JSON(status, gin.H{"data": v})
}

// Error writes the error envelope {"error": {"message", "code"}}.
func Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"message": message, "code": code}})
}
