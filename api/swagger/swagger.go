package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "LMS API",
        "description": "Enrollment, progress and certificate backend",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Enrollments", "description": "Enrollment lifecycle"},
        {"name": "Progress", "description": "Per-content progress tracking"},
        {"name": "Quizzes", "description": "Quiz attempt lifecycle"},
        {"name": "Activities", "description": "Activity submission and grading"},
        {"name": "Certificates", "description": "Eligibility and issuance"},
        {"name": "Breakpoints", "description": "Unit milestone tracking"},
        {"name": "Settings", "description": "Grading and certificate configuration"}
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
        "/status": {
            "get": {
                "summary": "Instrumentation snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments",
                "parameters": [
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "courseId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll a student in a course",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnrollRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already enrolled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Get enrollment detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Enrollments"],
                "summary": "Drop enrollment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/refresh": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Recompute enrollment progress",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/progress/track": {
            "post": {
                "tags": ["Progress"],
                "summary": "Upsert a progress record",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TrackProgressRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/progress/complete": {
            "post": {
                "tags": ["Progress"],
                "summary": "Record content completion",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TrackProgressRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/progress/{id}/start": {
            "post": {
                "tags": ["Progress"],
                "summary": "Mark a progress record as started",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/progress": {
            "get": {
                "tags": ["Progress"],
                "summary": "List progress records",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/progress/summary": {
            "get": {
                "tags": ["Progress"],
                "summary": "Computed progress summary",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/quiz-attempts": {
            "post": {
                "tags": ["Quizzes"],
                "summary": "Start a quiz attempt",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StartQuizAttemptRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Final quiz locked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Max attempts reached", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/quiz-attempts/{id}": {
            "get": {
                "tags": ["Quizzes"],
                "summary": "Get a quiz attempt",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/quiz-attempts/{id}/submit": {
            "post": {
                "tags": ["Quizzes"],
                "summary": "Submit answers for an attempt",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitQuizAttemptRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/quiz-attempts/{id}/abandon": {
            "post": {
                "tags": ["Quizzes"],
                "summary": "Abandon an in-progress attempt",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/activity-submissions": {
            "post": {
                "tags": ["Activities"],
                "summary": "Hand in work for an activity",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitActivityRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/activity-submissions/{id}": {
            "get": {
                "tags": ["Activities"],
                "summary": "Get a submission",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/activity-submissions/{id}/grade": {
            "put": {
                "tags": ["Activities"],
                "summary": "Grade a submission",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GradeActivityRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/activity-submissions/{id}/return": {
            "put": {
                "tags": ["Activities"],
                "summary": "Return a graded submission for rework",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/certificates": {
            "get": {
                "tags": ["Certificates"],
                "summary": "List certificates for an enrollment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Certificates"],
                "summary": "Issue a certificate",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateCertificateRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Not eligible", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/certificates/eligibility": {
            "get": {
                "tags": ["Certificates"],
                "summary": "Evaluate certificate eligibility",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "type", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/certificates/{id}": {
            "get": {
                "tags": ["Certificates"],
                "summary": "Get a certificate",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/certificates/{id}/download-url": {
            "post": {
                "tags": ["Certificates"],
                "summary": "Create a time-limited download token",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/certificates/download": {
            "get": {
                "tags": ["Certificates"],
                "summary": "Download a certificate document",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF document"}
                }
            }
        },
        "/certificates/{id}/invalidate": {
            "put": {
                "tags": ["Certificates"],
                "summary": "Invalidate a certificate",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/InvalidateCertificateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/breakpoints": {
            "post": {
                "tags": ["Breakpoints"],
                "summary": "Record unit progress",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordBreakpointRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/units/{unitId}/breakpoints": {
            "get": {
                "tags": ["Breakpoints"],
                "summary": "List recorded milestones",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "unitId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}/units/{unitId}/final-quiz-access": {
            "get": {
                "tags": ["Breakpoints"],
                "summary": "Report final quiz access",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "unitId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/settings": {
            "get": {
                "tags": ["Settings"],
                "summary": "List configuration entries",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/settings/{key}": {
            "put": {
                "tags": ["Settings"],
                "summary": "Update a configuration entry",
                "parameters": [
                    {"name": "key", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSettingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Enrollment": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "course_id": {"type": "string"},
                "student_id": {"type": "string"},
                "status": {"type": "string"},
                "progress_percentage": {"type": "number"},
                "enrolled_at": {"type": "string"},
                "completed_at": {"type": "string"},
                "dropped_at": {"type": "string"}
            }
        },
        "ProgressSummary": {
            "type": "object",
            "properties": {
                "overall": {"type": "number"},
                "modules_completed": {"type": "integer"},
                "total_modules": {"type": "integer"},
                "components_completed": {"type": "integer"},
                "total_components": {"type": "integer"},
                "quiz_average": {"type": "number"},
                "activities_average": {"type": "number"}
            }
        },
        "Certificate": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "enrollment_id": {"type": "string"},
                "student_id": {"type": "string"},
                "course_id": {"type": "string"},
                "type": {"type": "string"},
                "certificate_number": {"type": "string"},
                "issued_at": {"type": "string"},
                "final_score": {"type": "number"},
                "course_progress": {"type": "number"},
                "interactive_average": {"type": "number"},
                "activities_average": {"type": "number"},
                "file_path": {"type": "string"},
                "valid": {"type": "boolean"},
                "invalidation_reason": {"type": "string"}
            }
        },
        "EnrollRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "course_id": {"type": "string"}
            },
            "required": ["student_id", "course_id"]
        },
        "TrackProgressRequest": {
            "type": "object",
            "properties": {
                "enrollment_id": {"type": "string"},
                "trackable_type": {"type": "string"},
                "trackable_id": {"type": "string"},
                "metadata": {"type": "object"},
                "score": {"type": "number"}
            },
            "required": ["enrollment_id", "trackable_type", "trackable_id"]
        },
        "StartQuizAttemptRequest": {
            "type": "object",
            "properties": {
                "enrollment_id": {"type": "string"},
                "quiz_id": {"type": "string"}
            },
            "required": ["enrollment_id", "quiz_id"]
        },
        "SubmitQuizAttemptRequest": {
            "type": "object",
            "properties": {
                "enrollment_id": {"type": "string"},
                "answers": {"type": "object"}
            },
            "required": ["enrollment_id", "answers"]
        },
        "SubmitActivityRequest": {
            "type": "object",
            "properties": {
                "enrollment_id": {"type": "string"},
                "activity_id": {"type": "string"}
            },
            "required": ["enrollment_id", "activity_id"]
        },
        "GradeActivityRequest": {
            "type": "object",
            "properties": {
                "enrollment_id": {"type": "string"},
                "score": {"type": "number"}
            },
            "required": ["enrollment_id", "score"]
        },
        "GenerateCertificateRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string"}
            },
            "required": ["type"]
        },
        "InvalidateCertificateRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
            },
            "required": ["reason"]
        },
        "RecordBreakpointRequest": {
            "type": "object",
            "properties": {
                "enrollment_id": {"type": "string"},
                "unit_id": {"type": "string"},
                "scroll_progress": {"type": "number"},
                "activities_progress": {"type": "number"},
                "metadata": {"type": "object"}
            },
            "required": ["enrollment_id", "unit_id"]
        },
        "UpdateSettingRequest": {
            "type": "object",
            "properties": {
                "value": {"type": "string"}
            },
            "required": ["value"]
        },
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
