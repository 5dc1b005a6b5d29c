// Package docs serves the Swagger document for the poll registry API.
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
        "/v1/polls": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["polls"],
                "summary": "Create a poll",
                "parameters": [
                    {"$ref": "#/parameters/identity"},
                    {"$ref": "#/parameters/signature"},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/CreatePollRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/PollResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/polls/{poll_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["polls"],
                "summary": "Get a poll",
                "parameters": [{"$ref": "#/parameters/pollID"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/PollResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/polls/{poll_id}/results": {
            "get": {
                "produces": ["application/json"],
                "tags": ["polls"],
                "summary": "Get the current tally",
                "parameters": [{"$ref": "#/parameters/pollID"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResultResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/polls/{poll_id}/votes": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["votes"],
                "summary": "Cast a vote",
                "parameters": [
                    {"$ref": "#/parameters/pollID"},
                    {"$ref": "#/parameters/identity"},
                    {"$ref": "#/parameters/signature"},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/CastVoteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/CastVoteResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/polls/{poll_id}/close": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["polls"],
                "summary": "Close a poll",
                "parameters": [
                    {"$ref": "#/parameters/pollID"},
                    {"$ref": "#/parameters/identity"},
                    {"$ref": "#/parameters/signature"},
                    {"in": "body", "name": "request", "schema": {"$ref": "#/definitions/ClosePollRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/PollResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/v1/polls/{poll_id}/voters/{voter}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["votes"],
                "summary": "Check whether a voter has voted",
                "parameters": [
                    {"$ref": "#/parameters/pollID"},
                    {"in": "path", "name": "voter", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/VoterStatusResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        }
    },
    "parameters": {
        "pollID": {"in": "path", "name": "poll_id", "type": "string", "required": true},
        "identity": {"in": "header", "name": "X-Identity", "type": "string", "required": true},
        "signature": {"in": "header", "name": "X-Signature", "type": "string", "description": "base64 Ed25519 signature of METHOD\\nPATH\\nhex(sha256(body))"}
    },
    "definitions": {
        "ErrorResponse": {
            "type": "object",
            "properties": {"code": {"type": "string"}, "message": {"type": "string"}}
        },
        "OptionCount": {
            "type": "object",
            "properties": {"option": {"type": "string"}, "votes": {"type": "integer"}}
        },
        "CreatePollRequest": {
            "type": "object",
            "properties": {
                "poll_id": {"type": "string"},
                "title": {"type": "string"},
                "options": {"type": "array", "items": {"type": "string"}},
                "creator": {"type": "string"}
            }
        },
        "CastVoteRequest": {
            "type": "object",
            "properties": {"voter": {"type": "string"}, "choice": {"type": "string"}}
        },
        "ClosePollRequest": {
            "type": "object",
            "properties": {"creator": {"type": "string"}}
        },
        "PollResponse": {
            "type": "object",
            "properties": {
                "poll_id": {"type": "string"},
                "creator": {"type": "string"},
                "title": {"type": "string"},
                "options": {"type": "array", "items": {"type": "string"}},
                "tally": {"type": "array", "items": {"$ref": "#/definitions/OptionCount"}},
                "active": {"type": "boolean"},
                "total_votes": {"type": "integer"},
                "created_at": {"type": "string", "format": "date-time"},
                "closed_at": {"type": "string", "format": "date-time"}
            }
        },
        "CastVoteResponse": {
            "type": "object",
            "properties": {
                "poll_id": {"type": "string"},
                "voter": {"type": "string"},
                "cast_at": {"type": "string", "format": "date-time"},
                "total_votes": {"type": "integer"},
                "tally": {"type": "array", "items": {"$ref": "#/definitions/OptionCount"}}
            }
        },
        "ResultResponse": {
            "type": "object",
            "properties": {
                "poll_id": {"type": "string"},
                "active": {"type": "boolean"},
                "total_votes": {"type": "integer"},
                "tally": {"type": "array", "items": {"$ref": "#/definitions/OptionCount"}},
                "counts": {"type": "object", "additionalProperties": {"type": "integer"}}
            }
        },
        "VoterStatusResponse": {
            "type": "object",
            "properties": {"poll_id": {"type": "string"}, "voter": {"type": "string"}, "voted": {"type": "boolean"}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Ballotbox Poll Registry API",
	Description:      "Create polls, cast one vote per identity and read tallies.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
