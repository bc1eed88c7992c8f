package models

import (
	"testing"
	"time"
)

func TestSummarizeCountsOutcomes(t *testing.T) {
	attempts := []ExecutionAttempt{
		{Outcome: OutcomeSucceeded},
		{Outcome: OutcomeSucceeded},
		{Outcome: OutcomeTimeout},
		{Outcome: OutcomeCredentialInvalid},
	}

	s := Summarize("sig-1", true, attempts, time.Second)

	if s.UsersTargeted != 4 {
		t.Fatalf("targeted = %d", s.UsersTargeted)
	}
	if s.Succeeded != 2 || s.Failed != 2 {
		t.Fatalf("succeeded=%d failed=%d", s.Succeeded, s.Failed)
	}
	if s.ByOutcome[OutcomeSucceeded] != 2 || s.ByOutcome[OutcomeTimeout] != 1 {
		t.Fatalf("unexpected outcome counts %v", s.ByOutcome)
	}
	if !s.GateApproved {
		t.Fatal("expected gate approved")
	}
}

func TestSummarizeEmptyAttempts(t *testing.T) {
	s := Summarize("sig-1", false, nil, time.Second)
	if s.UsersTargeted != 0 || s.Succeeded != 0 || s.Failed != 0 {
		t.Fatalf("unexpected summary %+v", s)
	}
}
