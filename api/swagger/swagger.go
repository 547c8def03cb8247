package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Enrollment Coordination API",
        "description": "Real-time class enrollment and waitlist coordination service",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Enrollments", "description": "Enrollment requests, drops and offer responses"},
        {"name": "Classes", "description": "Class capacity, waitlist and roster export"},
        {"name": "Realtime", "description": "Websocket transport"}
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
        "/metrics": {
            "get": {
                "summary": "Prometheus metrics",
                "responses": {
                    "200": {"description": "Metrics exposition"}
                }
            }
        },
        "/ws": {
            "get": {
                "tags": ["Realtime"],
                "summary": "Open a realtime connection",
                "description": "Upgrades to a websocket accepting subscribe, unsubscribe, enroll, drop and offer_response commands and pushing topic events.",
                "responses": {
                    "101": {"description": "Switching protocols"}
                }
            }
        },
        "/api/v1/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments",
                "parameters": [
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "classId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Enrollment list", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Request enrollment into a class",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnrollmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Enrollment result", "schema": {"$ref": "#/definitions/Envelope"}},
                    "400": {"description": "Validation error"},
                    "404": {"description": "Class not found"}
                }
            },
            "delete": {
                "tags": ["Enrollments"],
                "summary": "Drop an enrollment or leave a waitlist",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DropRequest"}}
                ],
                "responses": {
                    "200": {"description": "Drop result", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/api/v1/enrollments/offer-response": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Accept or decline a waitlist seat offer",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OfferResponseRequest"}}
                ],
                "responses": {
                    "200": {"description": "Offer resolution", "schema": {"$ref": "#/definitions/Envelope"}},
                    "409": {"description": "No active offer"}
                }
            }
        },
        "/api/v1/classes": {
            "post": {
                "tags": ["Classes"],
                "summary": "Provision the seat counter for a new class",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateClassRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created class counter", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/api/v1/classes/{id}/capacity": {
            "get": {
                "tags": ["Classes"],
                "summary": "Display-only capacity snapshot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Capacity snapshot", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            },
            "put": {
                "tags": ["Classes"],
                "summary": "Adjust the seat capacity of a class",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AdjustCapacityRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated counter", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/api/v1/classes/{id}/waitlist": {
            "get": {
                "tags": ["Classes"],
                "summary": "Ordered waitlist of a class",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Waitlist entries", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/api/v1/classes/{id}/roster/export": {
            "get": {
                "tags": ["Classes"],
                "summary": "Export the roster and waitlist of a class",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Roster file"}
                }
            }
        }
    },
    "definitions": {
        "EnrollmentRequest": {
            "type": "object",
            "required": ["student_id", "class_id"],
            "properties": {
                "student_id": {"type": "string"},
                "class_id": {"type": "string"},
                "justification": {"type": "string"}
            }
        },
        "DropRequest": {
            "type": "object",
            "required": ["student_id", "class_id"],
            "properties": {
                "student_id": {"type": "string"},
                "class_id": {"type": "string"}
            }
        },
        "OfferResponseRequest": {
            "type": "object",
            "required": ["student_id", "class_id", "response"],
            "properties": {
                "student_id": {"type": "string"},
                "class_id": {"type": "string"},
                "response": {"type": "string", "enum": ["accept", "decline"]}
            }
        },
        "CreateClassRequest": {
            "type": "object",
            "required": ["teacher_id"],
            "properties": {
                "class_id": {"type": "string"},
                "teacher_id": {"type": "string"},
                "capacity": {"type": "integer", "minimum": 0}
            }
        },
        "AdjustCapacityRequest": {
            "type": "object",
            "required": ["capacity"],
            "properties": {
                "capacity": {"type": "integer", "minimum": 0}
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
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "Envelope": {
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
