package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"schemakit/internal/repositories"
	"schemakit/internal/responses"
	"schemakit/internal/schemas"
	"schemakit/internal/services"
)

type SchemaHandler struct {
	schemaService *services.SchemaService
}

func NewSchemaHandler(schemaService *services.SchemaService) *SchemaHandler {
	return &SchemaHandler{
		schemaService: schemaService,
	}
}

// ListTables handles GET /api/v1/schemas/:schema/tables
func (h *SchemaHandler) ListTables(c *gin.Context) {
	schema, ok := identifierParams(c, "schema")
	if !ok {
		return
	}

	tables, err := h.schemaService.Tables(c.Request.Context(), schema[0])
	if err != nil {
		fail(c, err, "Failed to list tables")
		return
	}
	if tables == nil {
		tables = []string{}
	}

	responses.Success(c, http.StatusOK, gin.H{
		"schema": schema[0],
		"tables": tables,
	}, "Tables retrieved successfully")
}

// GetColumns handles GET /api/v1/schemas/:schema/tables/:table/columns
func (h *SchemaHandler) GetColumns(c *gin.Context) {
	params, ok := identifierParams(c, "schema", "table")
	if !ok {
		return
	}

	columns, err := h.schemaService.Columns(c.Request.Context(), params[0], params[1])
	if err != nil {
		fail(c, err, "Failed to get columns")
		return
	}

	responses.Success(c, http.StatusOK, gin.H{
		"schema":  params[0],
		"table":   params[1],
		"columns": columns,
	}, "Columns retrieved successfully")
}

// GetRelations handles GET /api/v1/schemas/:schema/tables/:table/relations
func (h *SchemaHandler) GetRelations(c *gin.Context) {
	params, ok := identifierParams(c, "schema", "table")
	if !ok {
		return
	}

	plan, err := h.schemaService.Relations(c.Request.Context(), params[0], params[1])
	if err != nil {
		fail(c, err, "Failed to get relations")
		return
	}

	responses.Success(c, http.StatusOK, plan, "Relations retrieved successfully")
}

// InvalidateCache handles DELETE /api/v1/schemas/:schema/tables/:table/cache
func (h *SchemaHandler) InvalidateCache(c *gin.Context) {
	params, ok := identifierParams(c, "schema", "table")
	if !ok {
		return
	}

	if err := h.schemaService.InvalidateColumns(c.Request.Context(), params[0], params[1]); err != nil {
		fail(c, err, "Failed to invalidate cache")
		return
	}

	responses.Success(c, http.StatusOK, nil, "Cache invalidated")
}

// VisualizeSchema handles GET /api/v1/schemas/:schema/visualize
func (h *SchemaHandler) VisualizeSchema(c *gin.Context) {
	schema, ok := identifierParams(c, "schema")
	if !ok {
		return
	}

	mermaidDiagram, err := h.schemaService.VisualizeSchema(c.Request.Context(), schema[0])
	if err != nil {
		fail(c, err, "Failed to visualize schema")
		return
	}

	responses.Success(c, http.StatusOK, gin.H{
		"mermaid": mermaidDiagram,
		"schema":  schema[0],
	}, "Schema visualization generated successfully")
}

// identifierParams reads and validates the named path parameters. On failure
// it writes a 400 response and returns false.
func identifierParams(c *gin.Context, names ...string) ([]string, bool) {
	values := make([]string, len(names))
	for i, name := range names {
		v := c.Param(name)
		if err := schemas.ValidateIdentifier(name, v); err != nil {
			responses.Fail(c, http.StatusBadRequest, err, "Invalid "+name+" name")
			return nil, false
		}
		values[i] = v
	}
	return values, true
}

func fail(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	if errors.Is(err, repositories.ErrTableNotFound) {
		status = http.StatusNotFound
	}
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	responses.Fail(c, status, err, message)
}
