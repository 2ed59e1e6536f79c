package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Session API",
        "description": "Session and refresh-token lifecycle service",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Sessions", "description": "Session lifecycle"},
        {"name": "Admin", "description": "Service-to-service and maintenance operations"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/api/v1/sessions": {
            "post": {
                "tags": ["Admin"],
                "summary": "Create session",
                "description": "Opens a new session for a principal and returns the issued token pair. Called by trusted sign-in services after credential verification.",
                "parameters": [
                    {"name": "X-Admin-Token", "in": "header", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSessionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload"},
                    "503": {"description": "Store unavailable, retry"}
                }
            },
            "get": {
                "tags": ["Sessions"],
                "summary": "List active sessions",
                "description": "Lists the caller's active sessions. Token values are never included.",
                "security": [{"SessionToken": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Not authenticated"}
                }
            },
            "delete": {
                "tags": ["Sessions"],
                "summary": "Revoke session",
                "description": "Revokes one of the caller's sessions; defaults to the session making the request.",
                "security": [{"SessionToken": []}],
                "responses": {
                    "204": {"description": "Revoked"},
                    "403": {"description": "Not the session owner"}
                }
            }
        },
        "/api/v1/sessions/rotate": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Rotate session token",
                "description": "Exchanges a refresh token for a fresh session token. Inside the rotation interval the call is an idempotent no-op.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RotateRequest"}}
                ],
                "responses": {
                    "200": {"description": "Rotated or unchanged", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Sign in again"}
                }
            }
        },
        "/api/v1/sessions/validate": {
            "get": {
                "tags": ["Admin"],
                "summary": "Validate session token",
                "description": "Checks a bearer session token on behalf of a resource server. Always responds 200; the outcome is in the body.",
                "parameters": [
                    {"name": "X-Admin-Token", "in": "header", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Validation result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/sessions/all": {
            "delete": {
                "tags": ["Sessions"],
                "summary": "Revoke all sessions",
                "description": "Logs the caller out everywhere.",
                "security": [{"SessionToken": []}],
                "responses": {
                    "200": {"description": "Count of revoked sessions", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Not authenticated"}
                }
            }
        },
        "/internal/users/{user_id}/sessions": {
            "delete": {
                "tags": ["Admin"],
                "summary": "Revoke all sessions for a user",
                "description": "Administrative account lockout.",
                "parameters": [
                    {"name": "user_id", "in": "path", "required": true, "type": "string"},
                    {"name": "X-Admin-Token", "in": "header", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Count of revoked sessions"},
                    "403": {"description": "Forbidden"}
                }
            }
        },
        "/internal/sessions/{session_id}/events": {
            "get": {
                "tags": ["Admin"],
                "summary": "List session audit events",
                "description": "Returns the lifecycle event trail for one session, oldest first.",
                "parameters": [
                    {"name": "session_id", "in": "path", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "required": false, "type": "integer"},
                    {"name": "X-Admin-Token", "in": "header", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Event trail", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden"}
                }
            }
        },
        "/internal/cleanup": {
            "post": {
                "tags": ["Admin"],
                "summary": "Sweep terminal sessions",
                "description": "Deletes sessions whose refresh window has lapsed and sessions revoked before the retention cutoff.",
                "parameters": [
                    {"name": "revoked_retention", "in": "query", "required": false, "type": "string"},
                    {"name": "X-Admin-Token", "in": "header", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Deletion counts"},
                    "403": {"description": "Forbidden"}
                }
            }
        }
    },
    "securityDefinitions": {
        "SessionToken": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "definitions": {
        "CreateSessionRequest": {
            "type": "object",
            "required": ["user_id"],
            "properties": {
                "user_id": {"type": "string"}
            }
        },
        "RotateRequest": {
            "type": "object",
            "required": ["refresh_token"],
            "properties": {
                "refresh_token": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
