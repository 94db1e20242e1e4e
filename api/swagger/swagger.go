package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Schedule Quality API",
        "description": "Scores timetable assignments, ranks placements and diagnoses existing schedules.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http"],
    "tags": [
        {"name": "Quality", "description": "Scoring, recommendations and diagnostics"},
        {"name": "Training", "description": "Background model training"}
    ],
    "paths": {
        "/quality/score": {
            "post": {
                "tags": ["Quality"],
                "summary": "Score a single assignment",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScoreRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/quality/score/batch": {
            "post": {
                "tags": ["Quality"],
                "summary": "Score many assignments in one call",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {
                        "type": "object",
                        "properties": {"items": {"type": "array", "items": {"$ref": "#/definitions/ScoreRequest"}}}
                    }}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/quality/recommendations": {
            "post": {
                "tags": ["Quality"],
                "summary": "Rank up to five placements for a course",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecommendRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/quality/recommendations/batch": {
            "post": {
                "tags": ["Quality"],
                "summary": "Rank placements for several courses",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {
                        "type": "object",
                        "properties": {
                            "courses": {"type": "array", "items": {"$ref": "#/definitions/Course"}},
                            "teachers": {"type": "array", "items": {"$ref": "#/definitions/Teacher"}},
                            "rooms": {"type": "array", "items": {"$ref": "#/definitions/Room"}},
                            "constraints": {"$ref": "#/definitions/RecommendConstraints"}
                        }
                    }}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/quality/diagnostics": {
            "post": {
                "tags": ["Quality"],
                "summary": "Diagnose an existing timetable",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {
                        "type": "object",
                        "properties": {
                            "schedule": {"$ref": "#/definitions/Schedule"},
                            "courses": {"type": "array", "items": {"$ref": "#/definitions/Course"}},
                            "teachers": {"type": "array", "items": {"$ref": "#/definitions/Teacher"}},
                            "rooms": {"type": "array", "items": {"$ref": "#/definitions/Room"}},
                            "context": {"$ref": "#/definitions/FeatureContext"}
                        }
                    }}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/quality/status": {
            "get": {
                "tags": ["Quality"],
                "summary": "Scorer readiness and active backend",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/quality/training": {
            "get": {
                "tags": ["Training"],
                "summary": "List recent training runs",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Training"],
                "summary": "Queue a background training run",
                "parameters": [
                    {"name": "payload", "in": "body", "required": false, "schema": {
                        "type": "object",
                        "properties": {
                            "source": {"type": "string", "enum": ["synthetic", "database"]},
                            "samples": {"type": "integer"},
                            "epochs": {"type": "integer"},
                            "seed": {"type": "integer"}
                        }
                    }}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Training disabled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/quality/training/{id}": {
            "get": {
                "tags": ["Training"],
                "summary": "Get a training run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Course": {
            "type": "object",
            "required": ["id"],
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "duration": {"type": "integer"},
                "capacity": {"type": "integer"},
                "enrollment": {"type": "integer"},
                "year": {"type": "integer"},
                "credits": {"type": "integer"},
                "difficulty": {"type": "number"},
                "priority": {"type": "number"},
                "preferredTimeSlots": {"type": "array", "items": {"type": "string"}},
                "prerequisites": {"type": "array", "items": {"type": "string"}},
                "lectureType": {"type": "string", "enum": ["theory", "lab"]},
                "keywords": {"type": "array", "items": {"type": "string"}}
            }
        },
        "Teacher": {
            "type": "object",
            "required": ["id"],
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "teachableYears": {"type": "array", "items": {"type": "integer"}},
                "expertise": {"type": "array", "items": {"type": "string"}},
                "availability": {"type": "object", "additionalProperties": {"type": "object", "additionalProperties": {"type": "boolean"}}},
                "workload": {"type": "number"},
                "assignmentCount": {"type": "integer"}
            }
        },
        "Room": {
            "type": "object",
            "required": ["id"],
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "capacity": {"type": "integer"},
                "type": {"type": "string", "enum": ["classroom", "lab", "lecture_hall"]},
                "utilization": {"type": "number"}
            }
        },
        "FeatureContext": {
            "type": "object",
            "properties": {
                "semesterProgress": {"type": "number"},
                "successRates": {"type": "object", "additionalProperties": {"type": "number"}},
                "roomDistances": {"type": "object", "additionalProperties": {"type": "number"}}
            }
        },
        "ScoreRequest": {
            "type": "object",
            "properties": {
                "course": {"$ref": "#/definitions/Course"},
                "teacher": {"$ref": "#/definitions/Teacher"},
                "room": {"$ref": "#/definitions/Room"},
                "day": {"type": "string", "enum": ["MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY"]},
                "timeSlot": {"type": "string", "example": "08:00-09:00"},
                "context": {"$ref": "#/definitions/FeatureContext"},
                "explain": {"type": "boolean"}
            }
        },
        "ScheduleItem": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "courseId": {"type": "string"},
                "teacherId": {"type": "string"},
                "roomId": {"type": "string"},
                "day": {"type": "string"},
                "timeSlot": {"type": "string"}
            }
        },
        "Schedule": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "items": {"type": "array", "items": {"$ref": "#/definitions/ScheduleItem"}}
            }
        },
        "RecommendConstraints": {
            "type": "object",
            "properties": {
                "days": {"type": "array", "items": {"type": "string"}},
                "timeSlots": {"type": "array", "items": {"type": "string"}},
                "existing": {"type": "array", "items": {"$ref": "#/definitions/ScheduleItem"}},
                "topK": {"type": "integer", "maximum": 5},
                "context": {"$ref": "#/definitions/FeatureContext"}
            }
        },
        "RecommendRequest": {
            "type": "object",
            "properties": {
                "course": {"$ref": "#/definitions/Course"},
                "teachers": {"type": "array", "items": {"$ref": "#/definitions/Teacher"}},
                "rooms": {"type": "array", "items": {"$ref": "#/definitions/Room"}},
                "constraints": {"$ref": "#/definitions/RecommendConstraints"}
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
