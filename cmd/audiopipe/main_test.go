// ABOUTME: Tests for CLI backend selection
// ABOUTME: Checks flag defaults and output rate validation
package main

import (
	"flag"
	"testing"
)

func TestOutputRateDefaultsToFileRate(t *testing.T) {
	f := flag.Lookup("output-rate")
	if f == nil {
		t.Fatal("output-rate flag not registered")
	}
	if f.DefValue != "0" {
		t.Errorf("output-rate default = %s, want 0 (no conversion)", f.DefValue)
	}
}

func TestOutputBackend(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		rate    int
		wantErr bool
	}{
		{"malgo at file rate", "malgo", 0, false},
		{"oto at file rate", "oto", 0, false},
		{"oto converted", "oto", 48000, false},
		{"negative rate", "malgo", -1, true},
		{"unknown backend", "portaudio", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open, err := outputBackend(tt.backend, tt.rate)
			if tt.wantErr {
				if err == nil {
					t.Error("outputBackend() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("outputBackend() unexpected error = %v", err)
			}
			if open == nil {
				t.Error("outputBackend() returned a nil opener")
			}
		})
	}
}
