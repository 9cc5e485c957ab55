// Package docs registers the OpenAPI document served at /swagger.
// Regenerate with `swag init -g cmd/server/main.go`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "Jan-Mitra Backend",
    "description": "Grievance intake, tracking and resolution API",
    "version": "1.0"
  },
  "basePath": "/",
  "securityDefinitions": {
    "BearerAuth": {
      "type": "apiKey",
      "in": "header",
      "name": "Authorization"
    }
  },
  "tags": [
    {"name": "intake", "description": "Conversational grievance intake"},
    {"name": "grievances", "description": "Draft, submit, claim and resolve grievances"},
    {"name": "tracking", "description": "Public lookup by tracking code"},
    {"name": "admin", "description": "Overrides, broadcasts and statistics"}
  ],
  "paths": {}
}`

// SwaggerInfo mirrors the header above for callers that adjust host or base path at runtime.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	BasePath:         "/",
	Title:            "Jan-Mitra Backend",
	Description:      "Grievance intake, tracking and resolution API",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
