package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"schemakit/internal/handlers"
)

func RegisterRoutes(router *gin.Engine, schemaHandler *handlers.SchemaHandler) {
	api := router.Group("/api/v1")

	schemaRoutes := NewSchemaRoutes(schemaHandler)
	schemaRoutes.RegisterRoutes(api)

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
}
