// Package docs registers the OpenAPI document for the status surface
// with swaggo/swag so gin-swagger can serve it at /swagger/index.html.
// Hand-maintained in lieu of `swag init` codegen; keep in sync with the
// @Summary/@Router annotations in server/handlers.go.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{.Description}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/v1/healthz": {
            "get": {
                "produces": ["application/json"],
                "summary": "healthz",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/ports": {
            "get": {
                "produces": ["application/json"],
                "summary": "list ports",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/data-points": {
            "get": {
                "produces": ["application/json"],
                "summary": "list data points",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/data-points/{name}": {
            "get": {
                "produces": ["application/json"],
                "summary": "get a data point's cached value",
                "parameters": [
                    {"type": "string", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/v1/admin/ports/{name}/unskip": {
            "post": {
                "produces": ["application/json"],
                "summary": "clear a slave's skip state",
                "parameters": [
                    {"type": "string", "name": "name", "in": "path", "required": true},
                    {"type": "integer", "name": "slave", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/v1/admin/ports/{name}/reload": {
            "post": {
                "produces": ["application/json"],
                "summary": "reopen a port's transport",
                "parameters": [
                    {"type": "string", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found"}
                }
            }
        }
    }
}`

// SwaggerInfo holds the API metadata gin-swagger reads at runtime.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "iocore status API",
	Description:      "Read-only status surface over the industrial I/O data-point manager.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
