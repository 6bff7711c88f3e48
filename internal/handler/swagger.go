package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/swaggo/swag"

	"github.com/daonbank/kcs/kcs-backend/docs"
)

var apiServers = []map[string]string{
	{"url": "http://localhost:8080/api/v1", "description": "Local development"},
	{"url": "https://credit-api.daonbank.com/api/v1", "description": "Production"},
}

// ServeOpenAPI3Spec serves the generated API document upgraded to OpenAPI 3.0.
func ServeOpenAPI3Spec(c echo.Context) error {
	raw, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to read API document"})
	}

	spec, err := convertToOpenAPI3(raw)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to convert API document"})
	}

	return c.JSON(http.StatusOK, spec)
}

// convertToOpenAPI3 upgrades a Swagger 2.0 document. Schema refs move
// wholesale from #/definitions/ to #/components/schemas/ before parsing,
// then every non-body parameter gets its flat type fields folded under a
// schema object as 3.0 requires.
func convertToOpenAPI3(doc string) (map[string]any, error) {
	doc = strings.ReplaceAll(doc, "#/definitions/", "#/components/schemas/")

	var src map[string]any
	if err := json.Unmarshal([]byte(doc), &src); err != nil {
		return nil, err
	}

	out := map[string]any{
		"openapi": "3.0.3",
		"info":    src["info"],
		"servers": apiServers,
		"paths":   src["paths"],
	}

	components := make(map[string]any)
	if schemas, ok := src["definitions"]; ok {
		components["schemas"] = schemas
	}
	if secDefs, ok := src["securityDefinitions"]; ok {
		components["securitySchemes"] = secDefs
	}
	if len(components) > 0 {
		out["components"] = components
	}

	if paths, ok := src["paths"].(map[string]any); ok {
		upgradeParameters(paths)
	}

	return out, nil
}

// schemaFields are the Swagger 2.0 parameter fields that live under a
// schema object in OpenAPI 3.0.
var schemaFields = []string{"type", "format", "enum", "default", "minimum", "maximum", "items"}

// upgradeParameters rewrites query, path and header parameters in place.
// Body parameters keep their schema and are left untouched.
func upgradeParameters(paths map[string]any) {
	for _, item := range paths {
		ops, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for _, op := range ops {
			opMap, ok := op.(map[string]any)
			if !ok {
				continue
			}
			params, ok := opMap["parameters"].([]any)
			if !ok {
				continue
			}
			for _, p := range params {
				param, ok := p.(map[string]any)
				if !ok || param["in"] == "body" {
					continue
				}
				schema := make(map[string]any)
				for _, field := range schemaFields {
					if v, ok := param[field]; ok {
						schema[field] = v
						delete(param, field)
					}
				}
				if len(schema) > 0 {
					param["schema"] = schema
				}
			}
		}
	}
}
