// Package docs holds the OpenAPI description of the HTTP API, registered with swag
// so it can be served by the router.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "schemes": {{ marshal .Schemes }},
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/admin/pricing-config": {
            "get": {
                "summary": "Get the active pricing configuration",
                "tags": [
                    "Admin Pricing"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "503": {
                        "description": "Error"
                    }
                }
            },
            "put": {
                "summary": "Update the pricing configuration",
                "description": "Creates a new active version. expected_version guards against concurrent edits.",
                "tags": [
                    "Admin Pricing"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Full configuration",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "409": {
                        "description": "Stale expected_version"
                    }
                }
            }
        },
        "/api/v1/admin/pricing-config/versions": {
            "get": {
                "summary": "List pricing configuration versions",
                "tags": [
                    "Admin Pricing"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "page",
                        "in": "query",
                        "required": false,
                        "description": "Page number",
                        "type": "integer"
                    },
                    {
                        "name": "page_size",
                        "in": "query",
                        "required": false,
                        "description": "Items per page",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "403": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/admin/prospects": {
            "get": {
                "summary": "List prospects",
                "tags": [
                    "Admin Users"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "converted",
                        "in": "query",
                        "required": false,
                        "description": "Converted filter",
                        "type": "boolean"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "required": false,
                        "description": "Page number",
                        "type": "integer"
                    },
                    {
                        "name": "page_size",
                        "in": "query",
                        "required": false,
                        "description": "Items per page",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "403": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/admin/prospects/{uuid}/invite": {
            "post": {
                "summary": "Invite a prospect",
                "tags": [
                    "Admin Users"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Prospect UUID",
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Prospect has no contact"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "404": {
                        "description": "Error"
                    },
                    "409": {
                        "description": "Already converted"
                    }
                }
            }
        },
        "/api/v1/admin/shipments": {
            "get": {
                "summary": "List shipments",
                "tags": [
                    "Admin Shipments"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "status",
                        "in": "query",
                        "required": false,
                        "description": "Shipment status",
                        "type": "string"
                    },
                    {
                        "name": "client_id",
                        "in": "query",
                        "required": false,
                        "description": "Client filter",
                        "type": "integer"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "required": false,
                        "description": "Page number",
                        "type": "integer"
                    },
                    {
                        "name": "page_size",
                        "in": "query",
                        "required": false,
                        "description": "Items per page",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "403": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/admin/shipments/{uuid}": {
            "get": {
                "summary": "Get a shipment",
                "tags": [
                    "Admin Shipments"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Shipment UUID",
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "404": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/admin/shipments/{uuid}/actual-cost": {
            "put": {
                "summary": "Record actual cost",
                "tags": [
                    "Admin Shipments"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Shipment UUID",
                        "type": "string"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Actual cost",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "403": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/admin/shipments/{uuid}/events": {
            "post": {
                "summary": "Add a tracking event",
                "description": "Coordinates and the internal note are stored but never shown on public tracking",
                "tags": [
                    "Admin Shipments"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Shipment UUID",
                        "type": "string"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Checkpoint",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "409": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/admin/shipments/{uuid}/history": {
            "get": {
                "summary": "Shipment status history",
                "tags": [
                    "Admin Shipments"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Shipment UUID",
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/admin/shipments/{uuid}/status": {
            "post": {
                "summary": "Change shipment status",
                "tags": [
                    "Admin Shipments"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Shipment UUID",
                        "type": "string"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Action and optional note",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "409": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/admin/transport-rates": {
            "get": {
                "summary": "List transport rates",
                "tags": [
                    "Admin Pricing"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "origin_country",
                        "in": "query",
                        "required": false,
                        "description": "Origin country",
                        "type": "string"
                    },
                    {
                        "name": "destination_country",
                        "in": "query",
                        "required": false,
                        "description": "Destination country",
                        "type": "string"
                    },
                    {
                        "name": "transport_mode",
                        "in": "query",
                        "required": false,
                        "description": "Transport mode",
                        "type": "string"
                    },
                    {
                        "name": "is_active",
                        "in": "query",
                        "required": false,
                        "description": "Active filter",
                        "type": "boolean"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "required": false,
                        "description": "Page number",
                        "type": "integer"
                    },
                    {
                        "name": "page_size",
                        "in": "query",
                        "required": false,
                        "description": "Items per page",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "403": {
                        "description": "Error"
                    }
                }
            },
            "post": {
                "summary": "Save a transport rate",
                "tags": [
                    "Admin Pricing"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Route rate",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "403": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/admin/transport-rates/export": {
            "get": {
                "summary": "Export transport rates to xlsx",
                "tags": [
                    "Admin Pricing"
                ],
                "produces": [
                    "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "xlsx workbook"
                    },
                    "403": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/admin/transport-rates/import": {
            "post": {
                "summary": "Import transport rates from xlsx",
                "description": "Columns: origin_country, destination_country, transport_mode, rate_per_kg, rate_per_m3, notes, is_active. Any bad row rejects the whole file.",
                "tags": [
                    "Admin Pricing"
                ],
                "consumes": [
                    "multipart/form-data"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "file",
                        "in": "formData",
                        "required": true,
                        "description": "xlsx workbook",
                        "type": "file"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Row errors in error.details"
                    },
                    "403": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/admin/transport-rates/{id}/active": {
            "patch": {
                "summary": "Toggle a transport rate",
                "tags": [
                    "Admin Pricing"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "description": "Transport rate ID",
                        "type": "integer"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Active flag",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "404": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/admin/users": {
            "get": {
                "summary": "List users",
                "tags": [
                    "Admin Users"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "role",
                        "in": "query",
                        "required": false,
                        "description": "Role filter",
                        "type": "string"
                    },
                    {
                        "name": "is_active",
                        "in": "query",
                        "required": false,
                        "description": "Active filter",
                        "type": "boolean"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "required": false,
                        "description": "Page number",
                        "type": "integer"
                    },
                    {
                        "name": "page_size",
                        "in": "query",
                        "required": false,
                        "description": "Items per page",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "403": {
                        "description": "Error"
                    }
                }
            },
            "post": {
                "summary": "Create a user",
                "tags": [
                    "Admin Users"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Account",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "409": {
                        "description": "Email already registered"
                    }
                }
            }
        },
        "/api/v1/admin/users/{id}/active": {
            "patch": {
                "summary": "Activate or deactivate a user",
                "tags": [
                    "Admin Users"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "description": "User ID",
                        "type": "integer"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Active flag",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "404": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/admin/users/{id}/role": {
            "patch": {
                "summary": "Change a user's role",
                "tags": [
                    "Admin Users"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "description": "User ID",
                        "type": "integer"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "New role",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "404": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/auth/refresh": {
            "post": {
                "summary": "Refresh a session",
                "tags": [
                    "Auth"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Refresh token",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "401": {
                        "description": "Token invalid or expired"
                    },
                    "403": {
                        "description": "Account inactive"
                    }
                }
            }
        },
        "/api/v1/captcha": {
            "get": {
                "summary": "Get a captcha challenge",
                "description": "Returns a rotate challenge; the solved angle must accompany the next guest submission",
                "tags": [
                    "Guest"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "500": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/guest/pickup-requests": {
            "post": {
                "summary": "Guest pickup request",
                "tags": [
                    "Guest"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Captcha answer and pickup details",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Invalid payload or captcha"
                    }
                }
            }
        },
        "/api/v1/guest/purchase-requests": {
            "post": {
                "summary": "Guest purchase request",
                "tags": [
                    "Guest"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Captcha answer and purchase details",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Invalid payload or captcha"
                    }
                }
            }
        },
        "/api/v1/guest/requests/track": {
            "get": {
                "summary": "Follow a guest request",
                "tags": [
                    "Guest"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "token",
                        "in": "query",
                        "required": true,
                        "description": "Tracking token returned at submission",
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "401": {
                        "description": "Token missing, invalid or expired"
                    },
                    "404": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/health": {
            "get": {
                "summary": "Health check",
                "tags": [
                    "System"
                ],
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/api/v1/pickup-requests": {
            "post": {
                "summary": "Create a pickup request",
                "tags": [
                    "Pickup Requests"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Pickup details",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "401": {
                        "description": "Error"
                    }
                }
            },
            "get": {
                "summary": "List pickup requests",
                "tags": [
                    "Pickup Requests"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "status",
                        "in": "query",
                        "required": false,
                        "description": "Status filter",
                        "type": "string"
                    },
                    {
                        "name": "user_id",
                        "in": "query",
                        "required": false,
                        "description": "Owner filter (staff only)",
                        "type": "integer"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "required": false,
                        "description": "Page number",
                        "type": "integer"
                    },
                    {
                        "name": "page_size",
                        "in": "query",
                        "required": false,
                        "description": "Items per page",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/pickup-requests/{uuid}": {
            "get": {
                "summary": "Get a pickup request",
                "tags": [
                    "Pickup Requests"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Pickup request UUID",
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "404": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/pickup-requests/{uuid}/cancel": {
            "post": {
                "summary": "Cancel a pickup request",
                "tags": [
                    "Pickup Requests"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Pickup request UUID",
                        "type": "string"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Reason, at least 10 characters",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "409": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/pickup-requests/{uuid}/complete": {
            "post": {
                "summary": "Complete a pickup",
                "tags": [
                    "Pickup Requests"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Pickup request UUID",
                        "type": "string"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": false,
                        "description": "Optional note",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "409": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/pickup-requests/{uuid}/history": {
            "get": {
                "summary": "Pickup request status history",
                "tags": [
                    "Pickup Requests"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Pickup request UUID",
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/pickup-requests/{uuid}/schedule": {
            "post": {
                "summary": "Schedule a pickup",
                "tags": [
                    "Pickup Requests"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Pickup request UUID",
                        "type": "string"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Scheduled date",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "409": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/prospects/{uuid}/register": {
            "post": {
                "summary": "Register from an invitation",
                "description": "Creates a CLIENT account and attaches every guest request filed with the same email or phone",
                "tags": [
                    "Guest"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Prospect UUID",
                        "type": "string"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Invitation token",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "403": {
                        "description": "Invitation invalid or expired"
                    },
                    "409": {
                        "description": "Already registered"
                    }
                }
            }
        },
        "/api/v1/purchase-requests": {
            "post": {
                "summary": "Create a purchase request",
                "tags": [
                    "Purchase Requests"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Product and delivery details",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "401": {
                        "description": "Error"
                    }
                }
            },
            "get": {
                "summary": "List purchase requests",
                "tags": [
                    "Purchase Requests"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "status",
                        "in": "query",
                        "required": false,
                        "description": "Status filter",
                        "type": "string"
                    },
                    {
                        "name": "user_id",
                        "in": "query",
                        "required": false,
                        "description": "Owner filter (staff only)",
                        "type": "integer"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "required": false,
                        "description": "Page number",
                        "type": "integer"
                    },
                    {
                        "name": "page_size",
                        "in": "query",
                        "required": false,
                        "description": "Items per page",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/purchase-requests/{uuid}": {
            "get": {
                "summary": "Get a purchase request",
                "tags": [
                    "Purchase Requests"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Purchase request UUID",
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "404": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/purchase-requests/{uuid}/cancel": {
            "post": {
                "summary": "Cancel a purchase request",
                "tags": [
                    "Purchase Requests"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Purchase request UUID",
                        "type": "string"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Reason, at least 10 characters",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "409": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/purchase-requests/{uuid}/complete": {
            "post": {
                "summary": "Complete a purchase request",
                "tags": [
                    "Purchase Requests"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Purchase request UUID",
                        "type": "string"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Actual costs",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "409": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/purchase-requests/{uuid}/history": {
            "get": {
                "summary": "Purchase request status history",
                "tags": [
                    "Purchase Requests"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Purchase request UUID",
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "404": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/purchase-requests/{uuid}/start-treatment": {
            "post": {
                "summary": "Start treatment of a purchase request",
                "tags": [
                    "Purchase Requests"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Purchase request UUID",
                        "type": "string"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": false,
                        "description": "Optional comment",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "409": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/quotes": {
            "post": {
                "summary": "Create a quote",
                "description": "Prices and saves a quote. With save_as_draft the quote stays editable in DRAFT, otherwise it is submitted.",
                "tags": [
                    "Quotes"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Quote request",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "401": {
                        "description": "Error"
                    },
                    "403": {
                        "description": "Error"
                    }
                }
            },
            "get": {
                "summary": "List quotes",
                "tags": [
                    "Quotes"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "status",
                        "in": "query",
                        "required": false,
                        "description": "Quote status",
                        "type": "string"
                    },
                    {
                        "name": "client_id",
                        "in": "query",
                        "required": false,
                        "description": "Owner filter (staff only)",
                        "type": "integer"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "required": false,
                        "description": "Page number",
                        "type": "integer"
                    },
                    {
                        "name": "page_size",
                        "in": "query",
                        "required": false,
                        "description": "Items per page",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "401": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/quotes/estimate": {
            "post": {
                "summary": "Estimate a quote",
                "description": "Computes the price and delivery window of a shipment from the active pricing configuration",
                "tags": [
                    "Quotes"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Route, modes and packages",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "503": {
                        "description": "No active pricing configuration"
                    }
                }
            }
        },
        "/api/v1/quotes/{uuid}": {
            "get": {
                "summary": "Get a quote",
                "tags": [
                    "Quotes"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Quote UUID",
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "404": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/quotes/{uuid}/accept": {
            "post": {
                "summary": "Accept a quote",
                "tags": [
                    "Quotes"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Quote UUID",
                        "type": "string"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Payment method",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "409": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/quotes/{uuid}/cancel": {
            "post": {
                "summary": "Cancel a quote",
                "tags": [
                    "Quotes"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Quote UUID",
                        "type": "string"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Reason, at least 10 characters",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "409": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/quotes/{uuid}/expire": {
            "post": {
                "summary": "Expire a quote",
                "tags": [
                    "Quotes"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Quote UUID",
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "409": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/quotes/{uuid}/history": {
            "get": {
                "summary": "Quote status history",
                "tags": [
                    "Quotes"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Quote UUID",
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "404": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/quotes/{uuid}/payment-method": {
            "put": {
                "summary": "Change the payment method",
                "tags": [
                    "Quotes"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Quote UUID",
                        "type": "string"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "New payment method",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "409": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/quotes/{uuid}/payment-received": {
            "post": {
                "summary": "Record a payment receipt",
                "tags": [
                    "Quotes"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Quote UUID",
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "409": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/quotes/{uuid}/reject": {
            "post": {
                "summary": "Reject a quote",
                "tags": [
                    "Quotes"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Quote UUID",
                        "type": "string"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Reason, at least 10 characters",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "409": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/quotes/{uuid}/send": {
            "post": {
                "summary": "Send a quote to the client",
                "tags": [
                    "Quotes"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Quote UUID",
                        "type": "string"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": false,
                        "description": "Optional note",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "409": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/quotes/{uuid}/start-treatment": {
            "post": {
                "summary": "Start treatment of a quote",
                "tags": [
                    "Quotes"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Quote UUID",
                        "type": "string"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": false,
                        "description": "Optional comment",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "409": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/quotes/{uuid}/submit": {
            "post": {
                "summary": "Submit a draft quote",
                "tags": [
                    "Quotes"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Quote UUID",
                        "type": "string"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": false,
                        "description": "Optional note",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "409": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/quotes/{uuid}/validate": {
            "post": {
                "summary": "Validate a quote",
                "description": "Validates a quote in treatment and atomically creates its shipment with a tracking number",
                "tags": [
                    "Quotes"
                ],
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "uuid",
                        "in": "path",
                        "required": true,
                        "description": "Quote UUID",
                        "type": "string"
                    },
                    {
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "description": "Package count and cargo description",
                        "schema": {
                            "type": "object"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Error"
                    },
                    "403": {
                        "description": "Error"
                    },
                    "409": {
                        "description": "Error"
                    }
                }
            }
        },
        "/api/v1/tracking/{trackingNumber}": {
            "get": {
                "summary": "Track a shipment",
                "description": "Public tracking by number. Unknown and unpublished shipments both answer 404.",
                "tags": [
                    "Tracking"
                ],
                "produces": [
                    "application/json"
                ],
                "parameters": [
                    {
                        "name": "trackingNumber",
                        "in": "path",
                        "required": true,
                        "description": "Tracking number, e.g. TRK-20250301-00012",
                        "type": "string"
                    },
                    {
                        "name": "lang",
                        "in": "query",
                        "required": false,
                        "description": "Label language (fr or en)",
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "400": {
                        "description": "Malformed tracking number"
                    },
                    "404": {
                        "description": "Error"
                    }
                }
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and the access token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Kargo API",
	Description:      "Freight forwarding backend: quotes, pickups, purchases, shipments and public tracking.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
