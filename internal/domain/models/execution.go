package models

import (
	"encoding/json"
	"time"
)

// Outcome categorizes the terminal state of one dispatch.
type Outcome string

const (
	OutcomeSucceeded           Outcome = "succeeded"
	OutcomeRejectedByExchange  Outcome = "rejected-by-exchange"
	OutcomeCredentialInvalid   Outcome = "credential-invalid"
	OutcomeInsufficientBalance Outcome = "insufficient-balance"
	OutcomeTimeout             Outcome = "timeout"
	OutcomeInternalError       Outcome = "internal-error"
)

// ExecutionAttempt records one account's attempted response to one signal.
// At most one attempt exists per (signal, account); it is immutable once
// finalized.
type ExecutionAttempt struct {
	SignalID        string          `json:"signal_id"`
	AccountID       string          `json:"account_id"`
	UserID          string          `json:"user_id"`
	Exchange        string          `json:"exchange"`
	Side            SignalAction    `json:"side"`
	Size            float64         `json:"size"`
	Leverage        int             `json:"leverage"`
	Outcome         Outcome         `json:"outcome"`
	ExchangeOrderID string          `json:"exchange_order_id,omitempty"`
	ErrorDetail     string          `json:"error_detail,omitempty"`
	RawResponse     json.RawMessage `json:"raw_response,omitempty"` // opaque exchange payload, audit only
	Latency         time.Duration   `json:"latency"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      time.Time       `json:"finished_at"`
}

// ExecutionSummary aggregates all attempts for one signal. It is derived
// and recomputable from the attempts, never independently authoritative.
type ExecutionSummary struct {
	SignalID      string          `json:"signal_id"`
	GateApproved  bool            `json:"gate_approved"`
	UsersTargeted int             `json:"users_targeted"`
	Succeeded     int             `json:"succeeded"`
	Failed        int             `json:"failed"`
	ByOutcome     map[Outcome]int `json:"by_outcome"`
	Duration      time.Duration   `json:"duration"`
	CompletedAt   time.Time       `json:"completed_at"`
}

// Summarize recomputes an ExecutionSummary from a set of attempts.
func Summarize(signalID string, approved bool, attempts []ExecutionAttempt, duration time.Duration) ExecutionSummary {
	s := ExecutionSummary{
		SignalID:      signalID,
		GateApproved:  approved,
		UsersTargeted: len(attempts),
		ByOutcome:     make(map[Outcome]int),
		Duration:      duration,
		CompletedAt:   time.Now().UTC(),
	}
	for _, a := range attempts {
		s.ByOutcome[a.Outcome]++
		if a.Outcome == OutcomeSucceeded {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

// ExchangeErrorKind is the categorized taxonomy reported by exchange
// capability implementations.
type ExchangeErrorKind string

const (
	ExchangeInvalidSymbol      ExchangeErrorKind = "invalid-symbol"
	ExchangeInsufficientMargin ExchangeErrorKind = "insufficient-margin"
	ExchangeRateLimited        ExchangeErrorKind = "rate-limited"
	ExchangeAuthRejected       ExchangeErrorKind = "auth-rejected"
	ExchangeUnknown            ExchangeErrorKind = "unknown"
)

// ExchangeError is a categorized exchange-level rejection.
type ExchangeError struct {
	Kind    ExchangeErrorKind
	Message string
	Raw     json.RawMessage
}

func (e *ExchangeError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

// OutcomeForExchangeError maps the exchange taxonomy onto attempt outcomes.
func OutcomeForExchangeError(e *ExchangeError) Outcome {
	switch e.Kind {
	case ExchangeInsufficientMargin:
		return OutcomeInsufficientBalance
	case ExchangeAuthRejected:
		return OutcomeCredentialInvalid
	case ExchangeInvalidSymbol, ExchangeRateLimited, ExchangeUnknown:
		return OutcomeRejectedByExchange
	default:
		return OutcomeRejectedByExchange
	}
}
