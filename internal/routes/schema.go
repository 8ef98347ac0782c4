package routes

import (
	"github.com/gin-gonic/gin"

	"schemakit/internal/handlers"
)

type SchemaRoutes struct {
	handler *handlers.SchemaHandler
}

func NewSchemaRoutes(handler *handlers.SchemaHandler) *SchemaRoutes {
	return &SchemaRoutes{handler: handler}
}

func (r *SchemaRoutes) RegisterRoutes(router *gin.RouterGroup) {
	schema := router.Group("/schemas/:schema")
	{
		schema.GET("/tables", r.handler.ListTables)
		schema.GET("/visualize", r.handler.VisualizeSchema)

		table := schema.Group("/tables/:table")
		table.GET("/columns", r.handler.GetColumns)
		table.GET("/relations", r.handler.GetRelations)
		table.DELETE("/cache", r.handler.InvalidateCache)
	}
}
