// Package docs registers the OpenAPI document served by the Swagger UI.
// Regenerate with: swag init -g cmd/server/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/movies": {
            "get": {
                "security": [{"BasicAuth": []}],
                "produces": ["application/json"],
                "tags": ["Movies"],
                "summary": "List movies",
                "operationId": "listMovies",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/domain.Movie"}}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"BasicAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Movies"],
                "summary": "Save a movie record as-is",
                "operationId": "addMovie",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.Movie"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Movie"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/movies/dto": {
            "post": {
                "security": [{"BasicAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Movies"],
                "summary": "Create a movie",
                "operationId": "createMovie",
                "parameters": [
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateMovieRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Movie"}},
                    "400": {"description": "Duplicate title or bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "put": {
                "security": [{"BasicAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Movies"],
                "summary": "Update a movie",
                "operationId": "updateMovie",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.UpdateMovieRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Movie"}},
                    "400": {"description": "Duplicate title or bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Movie not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/movies/{id}": {
            "get": {
                "security": [{"BasicAuth": []}],
                "produces": ["application/json"],
                "tags": ["Movies"],
                "summary": "Get a movie",
                "operationId": "getMovie",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Movie"}},
                    "404": {"description": "Not Found"}
                }
            },
            "put": {
                "security": [{"BasicAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Movies"],
                "summary": "Replace a movie record as-is",
                "operationId": "replaceMovie",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.Movie"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Movie"}}
                }
            },
            "delete": {
                "security": [{"BasicAuth": []}],
                "tags": ["Movies"],
                "summary": "Delete a movie",
                "operationId": "deleteMovie",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/movies/hello/{role}": {
            "get": {
                "security": [{"BasicAuth": []}],
                "produces": ["application/json"],
                "tags": ["Hello"],
                "summary": "Greet the caller when they hold the role",
                "operationId": "hello",
                "parameters": [{"enum": ["user", "admin", "root"], "type": "string", "name": "role", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.HelloResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.Movie": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "genre": {"type": "string"},
                "createDate": {"type": "string", "format": "date-time"},
                "updateDate": {"type": "array", "items": {"type": "string", "format": "date-time"}}
            }
        },
        "handlers.CreateMovieRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "genre": {"type": "string"}
            }
        },
        "handlers.UpdateMovieRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "genre": {"type": "string"}
            }
        },
        "handlers.HelloResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "user": {"type": "string"},
                "roles": {"type": "array", "items": {"type": "string"}}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BasicAuth": {"type": "basic"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Movies API",
	Description:      "Movie records with Basic authentication and role-based access.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
