// Streamcast - Resilient Event Stream Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamcast

package validation

import (
	"strings"
	"testing"
)

// ===================================================================================================
// Singleton Validator Tests
// ===================================================================================================

func TestGetValidator_Singleton(t *testing.T) {
	// Test that GetValidator returns the same instance
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}

	if v1 == nil {
		t.Error("GetValidator() should not return nil")
	}
}

// ===================================================================================================
// ValidateStruct Tests
// ===================================================================================================

// TestStruct for basic validation tests
type TestStruct struct {
	Consumer string `validate:"required,min=1,max=64"`
	Window   int    `validate:"min=1,max=65536"`
	Webhook  string `validate:"omitempty,url"`
	Limit    int    `validate:"min=1,max=1000"`
	Offset   int    `validate:"min=0,max=1000000"`
	Enabled  bool
}

func TestValidateStruct_Valid(t *testing.T) {
	tests := []struct {
		name  string
		input TestStruct
	}{
		{
			name: "all valid fields",
			input: TestStruct{
				Consumer: "dashboard-7",
				Window:   256,
				Webhook:  "https://hooks.example.com/evictions",
				Limit:    100,
				Offset:   0,
			},
		},
		{
			name: "minimum values",
			input: TestStruct{
				Consumer: "c",
				Window:   1,
				Webhook:  "",
				Limit:    1,
				Offset:   0,
			},
		},
		{
			name: "maximum values",
			input: TestStruct{
				Consumer: "c",
				Window:   65536,
				Webhook:  "",
				Limit:    1000,
				Offset:   1000000,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if err != nil {
				t.Errorf("ValidateStruct() returned unexpected error: %v", err)
			}
		})
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		input     TestStruct
		wantField string
		wantTag   string
	}{
		{
			name: "missing required consumer",
			input: TestStruct{
				Consumer: "",
				Window:   256,
				Limit:    100,
			},
			wantField: "Consumer",
			wantTag:   "required",
		},
		{
			name: "window too high",
			input: TestStruct{
				Consumer: "dashboard-7",
				Window:   100000,
				Limit:    100,
			},
			wantField: "Window",
			wantTag:   "max",
		},
		{
			name: "invalid webhook URL",
			input: TestStruct{
				Consumer: "dashboard-7",
				Window:   256,
				Webhook:  "not a url",
				Limit:    100,
			},
			wantField: "Webhook",
			wantTag:   "url",
		},
		{
			name: "limit too low",
			input: TestStruct{
				Consumer: "dashboard-7",
				Window:   256,
				Limit:    0,
			},
			wantField: "Limit",
			wantTag:   "min",
		},
		{
			name: "limit too high",
			input: TestStruct{
				Consumer: "dashboard-7",
				Window:   256,
				Limit:    2000,
			},
			wantField: "Limit",
			wantTag:   "max",
		},
		{
			name: "negative offset",
			input: TestStruct{
				Consumer: "dashboard-7",
				Window:   256,
				Limit:    100,
				Offset:   -1,
			},
			wantField: "Offset",
			wantTag:   "min",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if err == nil {
				t.Fatal("ValidateStruct() should have returned an error")
			}

			errs := err.Errors()
			if len(errs) == 0 {
				t.Fatal("ValidationErrors should contain at least one error")
			}

			found := false
			for _, e := range errs {
				if e.Field() == tt.wantField && e.Tag() == tt.wantTag {
					found = true
					break
				}
			}

			if !found {
				t.Errorf("Expected error on field %s with tag %s, got: %v", tt.wantField, tt.wantTag, errs)
			}
		})
	}
}

// ===================================================================================================
// ToAPIError Tests
// ===================================================================================================

func TestToAPIError_SingleError(t *testing.T) {
	input := TestStruct{
		Consumer: "", // required field missing
		Window:   256,
		Limit:    100,
	}

	err := ValidateStruct(&input)
	if err == nil {
		t.Fatal("Expected validation error")
	}

	apiErr := err.ToAPIError()

	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Expected code VALIDATION_ERROR, got %s", apiErr.Code)
	}

	if apiErr.Message == "" {
		t.Error("Expected non-empty message")
	}

	// Should contain field name in details
	if apiErr.Details == nil {
		t.Error("Expected details to be set")
	}
}

func TestToAPIError_MultipleErrors(t *testing.T) {
	input := TestStruct{
		Consumer: "", // required field missing
		Window:   100000,
		Limit:    0, // below minimum
		Offset:   -1,
	}

	err := ValidateStruct(&input)
	if err == nil {
		t.Fatal("Expected validation error")
	}

	apiErr := err.ToAPIError()

	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Expected code VALIDATION_ERROR, got %s", apiErr.Code)
	}

	// Details should contain field information
	if apiErr.Details == nil {
		t.Error("Expected details to contain field information")
	}

	if _, ok := apiErr.Details["fields"]; !ok {
		t.Error("Expected details to contain 'fields' key")
	}
}

// ===================================================================================================
// Custom Validator Tests - Cursor
// ===================================================================================================

type CursorStruct struct {
	Cursor string `validate:"omitempty,cursor"`
}

func TestCursorValidation_Valid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{"empty cursor", ""},
		{"zero", "0"},
		{"small sequence", "42"},
		{"large sequence", "18446744073709551615"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := CursorStruct{Cursor: tt.cursor}
			err := ValidateStruct(&input)
			if err != nil {
				t.Errorf("ValidateStruct() returned unexpected error for cursor %q: %v", tt.cursor, err)
			}
		})
	}
}

func TestCursorValidation_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{"negative", "-1"},
		{"non-numeric", "abc"},
		{"hex prefix", "0x1f"},
		{"overflow", "18446744073709551616"},
		{"spaces", "12 34"},
		{"decimal point", "12.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := CursorStruct{Cursor: tt.cursor}
			err := ValidateStruct(&input)
			if err == nil {
				t.Errorf("ValidateStruct() should have returned error for cursor %q", tt.cursor)
			}
		})
	}
}

// ===================================================================================================
// Oneof Validation Tests - Record Kinds
// ===================================================================================================

type KindStruct struct {
	Kind string `validate:"omitempty,oneof=metadata data progress error"`
}

func TestOneofValidation_Valid(t *testing.T) {
	tests := []struct {
		name string
		kind string
	}{
		{"empty", ""},
		{"metadata", "metadata"},
		{"data", "data"},
		{"progress", "progress"},
		{"error", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := KindStruct{Kind: tt.kind}
			err := ValidateStruct(&input)
			if err != nil {
				t.Errorf("ValidateStruct() returned unexpected error for kind %q: %v", tt.kind, err)
			}
		})
	}
}

func TestOneofValidation_Invalid(t *testing.T) {
	tests := []struct {
		name string
		kind string
	}{
		{"server-only kind", "heartbeat"},
		{"partial match", "datax"},
		{"case sensitive", "Data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := KindStruct{Kind: tt.kind}
			err := ValidateStruct(&input)
			if err == nil {
				t.Errorf("ValidateStruct() should have returned error for kind %q", tt.kind)
			}
		})
	}
}

// ===================================================================================================
// WithRequiredStructEnabled Tests
// ===================================================================================================

type NestedStruct struct {
	Inner InnerStruct `validate:"required"`
}

type InnerStruct struct {
	Value string `validate:"required"`
}

func TestNestedStructValidation(t *testing.T) {
	// Valid nested struct
	valid := NestedStruct{
		Inner: InnerStruct{Value: "test"},
	}

	err := ValidateStruct(&valid)
	if err != nil {
		t.Errorf("ValidateStruct() returned unexpected error for valid nested struct: %v", err)
	}

	// Invalid - missing inner value
	invalid := NestedStruct{
		Inner: InnerStruct{Value: ""},
	}

	err = ValidateStruct(&invalid)
	if err == nil {
		t.Error("ValidateStruct() should have returned error for invalid nested struct")
	}
}

// ===================================================================================================
// Integer Range Validation Tests
// ===================================================================================================

type RangeStruct struct {
	WindowSize int `validate:"omitempty,min=1,max=65536"`
	Retries    int `validate:"min=0,max=15"`
}

func TestRangeValidation_Valid(t *testing.T) {
	tests := []struct {
		name       string
		windowSize int
		retries    int
	}{
		{"zero values", 0, 0},
		{"typical values", 256, 3},
		{"max values", 65536, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := RangeStruct{WindowSize: tt.windowSize, Retries: tt.retries}
			err := ValidateStruct(&input)
			if err != nil {
				t.Errorf("ValidateStruct() returned unexpected error: %v", err)
			}
		})
	}
}

func TestRangeValidation_Invalid(t *testing.T) {
	tests := []struct {
		name       string
		windowSize int
		retries    int
		wantField  string
	}{
		{"window too high", 100000, 3, "WindowSize"},
		{"window negative when set", -1, 3, "WindowSize"},
		{"retries too high", 256, 16, "Retries"},
		{"retries negative", 256, -1, "Retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := RangeStruct{WindowSize: tt.windowSize, Retries: tt.retries}
			err := ValidateStruct(&input)
			if err == nil {
				t.Errorf("ValidateStruct() should have returned error for window=%d, retries=%d", tt.windowSize, tt.retries)
			}
		})
	}
}

// ===================================================================================================
// Error Message Translation Tests
// ===================================================================================================

func TestErrorMessages(t *testing.T) {
	input := TestStruct{
		Consumer: "",
		Window:   256,
		Limit:    0,
	}

	err := ValidateStruct(&input)
	if err == nil {
		t.Fatal("Expected validation error")
	}

	// Error message should be human-readable
	msg := err.Error()
	if msg == "" {
		t.Error("Error message should not be empty")
	}

	// Should contain field name
	if !strings.Contains(msg, "Consumer") && !strings.Contains(msg, "Limit") {
		t.Errorf("Error message should reference failed field: %s", msg)
	}
}

func TestCursorErrorMessage(t *testing.T) {
	input := CursorStruct{Cursor: "not-a-number"}

	err := ValidateStruct(&input)
	if err == nil {
		t.Fatal("Expected validation error")
	}

	msg := err.Error()
	if !strings.Contains(msg, "decimal sequence number") {
		t.Errorf("Cursor error should mention the expected format, got: %s", msg)
	}
}
