package domain

import (
	"errors"
	"testing"
)

func TestSuccessOutcome(t *testing.T) {
	outcome := SuccessOutcome(17, 2.3)

	if outcome.Status != RunStatusSuccess {
		t.Errorf("Status mismatch: got %s, want %s", outcome.Status, RunStatusSuccess)
	}
	if outcome.RecordsProcessed != 17 {
		t.Errorf("RecordsProcessed mismatch: got %d, want 17", outcome.RecordsProcessed)
	}
	if outcome.DurationSeconds != 2.3 {
		t.Errorf("DurationSeconds mismatch: got %v, want 2.3", outcome.DurationSeconds)
	}
	if outcome.ErrorMessage != "" {
		t.Errorf("Expected empty error message, got %q", outcome.ErrorMessage)
	}
}

func TestFailureOutcome(t *testing.T) {
	outcome := FailureOutcome(errors.New("fetch blew up"), 0.7)

	if outcome.Status != RunStatusFailure {
		t.Errorf("Status mismatch: got %s, want %s", outcome.Status, RunStatusFailure)
	}
	if outcome.RecordsProcessed != 0 {
		t.Errorf("Expected 0 records on failure, got %d", outcome.RecordsProcessed)
	}
	if outcome.DurationSeconds != 0.7 {
		t.Errorf("DurationSeconds mismatch: got %v, want 0.7", outcome.DurationSeconds)
	}
	if outcome.ErrorMessage != "fetch blew up" {
		t.Errorf("ErrorMessage mismatch: got %q", outcome.ErrorMessage)
	}
}
