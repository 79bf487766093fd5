// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

// Package validation provides struct validation using go-playground/validator v10.
//
// This package wraps the go-playground/validator library to provide a thread-safe
// singleton validator instance with custom validators and user-friendly error
// messages. It integrates with the application's API error format for consistent
// error responses.
//
// # Overview
//
// The package provides:
//   - Thread-safe singleton validator (initialized once, cached struct info)
//   - Comprehensive error translation to human-readable messages
//   - APIError conversion matching the application's error format
//   - Custom "cursor" validator for resume-position parameters
//   - Future v11 compatibility with WithRequiredStructEnabled
//
// # Quick Start
//
//	type PublishRequest struct {
//	    Kind    string `validate:"required,oneof=metadata data progress error"`
//	    Stream  string `validate:"required,min=1,max=128"`
//	    Payload string `validate:"required"`
//	}
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    var req PublishRequest
//	    if err := json.Decode(r.Body, &req); err != nil {
//	        // handle decode error
//	    }
//
//	    if verr := validation.ValidateStruct(&req); verr != nil {
//	        apiErr := verr.ToAPIError()
//	        respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	        return
//	    }
//
//	    // proceed with valid request
//	}
//
// # Common Validation Tags
//
// String validations:
//   - required: Field must not be empty
//   - min=n: Minimum length n characters
//   - max=n: Maximum length n characters
//   - url: Valid URL format
//   - uuid: Valid UUID format
//
// Numeric validations:
//   - gte=n: Greater than or equal to n
//   - lte=n: Less than or equal to n
//   - gt=n: Greater than n
//   - lt=n: Less than n
//   - min=n: Minimum value n
//   - max=n: Maximum value n
//
// Enum validations:
//   - oneof=a b c: Must be one of the specified values
//
// Custom validations:
//   - cursor: Decimal sequence number (Last-Event-ID form); pair with
//     omitempty so the empty "no history" form passes through
//
// # Error Types
//
// ValidationError represents a single field validation failure:
//
//	type ValidationError struct {
//	    Field()   string      // Struct field name
//	    Tag()     string      // Validation tag that failed
//	    Param()   string      // Tag parameter (e.g., "100" for max=100)
//	    Value()   interface{} // Actual value that failed
//	    Error()   string      // Human-readable message
//	}
//
// RequestValidationError aggregates multiple field errors:
//
//	type RequestValidationError struct {
//	    Errors() []ValidationError
//	    Error()  string           // Combined message
//	    ToAPIError() *APIError    // Convert to API error format
//	}
//
// # API Error Integration
//
// The ToAPIError method produces errors matching the application format:
//
//	// Single field error
//	{
//	    "code": "VALIDATION_ERROR",
//	    "message": "Kind must be one of: metadata data progress error",
//	    "details": {"field": "Kind", "tag": "oneof", "value": "bogus"}
//	}
//
//	// Multiple field errors
//	{
//	    "code": "VALIDATION_ERROR",
//	    "message": "Stream: must be at least 1 characters; Payload: is required",
//	    "details": {
//	        "fields": [
//	            {"field": "Stream", "tag": "min", "message": "..."},
//	            {"field": "Payload", "tag": "required", "message": "..."}
//	        ]
//	    }
//	}
//
// # Error Message Translation
//
// Human-readable messages are generated for common validation tags:
//
//	required   -> "Payload is required"
//	numeric    -> "Buffer must be numeric"
//	url        -> "WebhookURL must be a valid URL"
//	cursor     -> "Cursor must be a decimal sequence number"
//	min=3      -> "Stream must be at least 3 characters"
//	max=128    -> "Stream must be at most 128 characters"
//	gte=1      -> "Limit must be greater than or equal to 1"
//	lte=1000   -> "Limit must be less than or equal to 1000"
//	oneof=a b  -> "Kind must be one of: a b"
//
// # Struct Tag Examples
//
// Stream subscription query parameters:
//
//	type StreamRequest struct {
//	    Cursor   string `validate:"omitempty,cursor"`
//	    Buffer   string `validate:"omitempty,numeric"`
//	    Overflow string `validate:"omitempty,oneof=buffer drop-oldest drop-latest error"`
//	}
//
// Event publication:
//
//	type PublishRequest struct {
//	    Kind    string `validate:"required,oneof=metadata data progress error"`
//	    Stream  string `validate:"required,min=1,max=128"`
//	    Payload string `validate:"required"`
//	}
//
// # Thread Safety
//
// The singleton validator is initialized once and safe for concurrent use:
//
//	validate := validation.GetValidator()  // Thread-safe
//	err := validation.ValidateStruct(&req) // Thread-safe
//
// # Performance
//
// The validator caches struct reflection information:
//   - First validation of a struct type: ~1ms (reflection + caching)
//   - Subsequent validations: ~10us (cached)
//   - Memory: ~500 bytes per cached struct type
//
// # See Also
//
//   - internal/api: Request handlers using validation
//   - github.com/go-playground/validator/v10: Underlying library
package validation
