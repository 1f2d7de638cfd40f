package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CampusCore API",
        "description": "College ERP backend: attendance, scoped content, placements",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Auth", "description": "Authentication and session management"},
        {"name": "Users", "description": "User administration"},
        {"name": "Subjects", "description": "Subject catalogue"},
        {"name": "Attendance", "description": "Attendance marking and registers"},
        {"name": "Content", "description": "Scoped quizzes and coding problems"},
        {"name": "Placements", "description": "Job postings and selection rounds"},
        {"name": "Organisation", "description": "Colleges, departments, sections"},
        {"name": "Reports", "description": "Asynchronous exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Login with email and password",
                "responses": {
                    "200": {"description": "Tokens issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange a refresh token",
                "responses": {
                    "200": {"description": "Tokens issued"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current user info",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "User info"}
                }
            }
        },
        "/attendance": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Mark a batch of attendance rows",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Batch result with per-row outcomes"},
                    "409": {"description": "Batch could not be committed"}
                }
            },
            "get": {
                "tags": ["Attendance"],
                "summary": "List attendance records",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Paginated records"}
                }
            }
        },
        "/content": {
            "post": {
                "tags": ["Content"],
                "summary": "Publish scoped content",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created"}
                }
            },
            "get": {
                "tags": ["Content"],
                "summary": "List content visible to the caller",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Paginated content"}
                }
            }
        },
        "/placements/jobs": {
            "post": {
                "tags": ["Placements"],
                "summary": "Create a job posting",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created with its Applied round"}
                }
            },
            "get": {
                "tags": ["Placements"],
                "summary": "List postings (students see eligible only)",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Paginated postings"}
                }
            }
        },
        "/placements/jobs/{id}/apply": {
            "post": {
                "tags": ["Placements"],
                "summary": "Apply to a posting",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Membership in the Applied round"},
                    "404": {"description": "Not found or not eligible"}
                }
            }
        },
        "/reports": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue an export job",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "202": {"description": "Job queued"}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a finished export",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
