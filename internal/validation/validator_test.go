// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package validation

import (
	"errors"
	"strings"
	"testing"
)

type sample struct {
	Driver    string `validate:"required,oneof=mongo badger"`
	BatchSize int    `validate:"gte=1,lte=100000"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		in      sample
		wantErr string
	}{
		{"valid", sample{Driver: "mongo", BatchSize: 500}, ""},
		{"missing driver", sample{BatchSize: 500}, "sample.Driver is required"},
		{"unknown driver", sample{Driver: "sqlite", BatchSize: 1}, "sample.Driver must be one of: mongo badger"},
		{"zero batch", sample{Driver: "badger"}, "sample.BatchSize must be greater than or equal to 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.in)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateStruct_CollectsAllFields(t *testing.T) {
	err := ValidateStruct(&sample{})
	var se *StructError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StructError, got %T", err)
	}
	if len(se.Fields) != 2 {
		t.Errorf("got %d field errors, want 2", len(se.Fields))
	}
}

func TestGetValidator_Singleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator should return the same instance")
	}
}
