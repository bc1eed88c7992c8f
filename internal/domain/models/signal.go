package models

import (
	"encoding/json"
	"time"
)

// SignalAction is the directional action requested by a signal.
type SignalAction string

const (
	ActionLong  SignalAction = "long"
	ActionShort SignalAction = "short"
	ActionClose SignalAction = "close"
)

// Signal is a normalized market event candidate for execution. It is
// immutable once received; everything derived from it references its ID.
type Signal struct {
	ID         string
	Symbol     string
	Action     SignalAction
	Price      float64
	Confidence float64 // 0..1
	Source     string
	ReceivedAt time.Time
	RawPayload json.RawMessage // opaque, preserved for audit only
}

// MarketContext is the snapshot of external market state the gate
// evaluates against. Missing pieces are represented by nil pointers and
// evaluate as unfavorable.
type MarketContext struct {
	TakenAt       time.Time
	MarketBias    *string  // "bullish", "bearish", "neutral"
	Breadth       *float64 // share of universe above its own baseline, 0..1
	MinimumScore  *float64 // confidence threshold currently in force
	SymbolWinRate *float64 // historical outcome bias for the symbol, 0..1
}

// ConditionResult is one named gate condition evaluation.
type ConditionResult struct {
	Name      string `json:"name"`
	Favorable bool   `json:"favorable"`
	Detail    string `json:"detail"`
}

// GateDecision is the single decision produced for a signal.
type GateDecision struct {
	SignalID    string            `json:"signal_id"`
	Approved    bool              `json:"approved"`
	Conditions  []ConditionResult `json:"conditions"`
	Favorable   int               `json:"favorable"`
	Total       int               `json:"total"`
	Reason      string            `json:"reason"`
	EvaluatedAt time.Time         `json:"evaluated_at"`
}
