package usecase

import (
	"fmt"
	"strings"
	"time"

	"SigCast/internal/domain/models"
)

// GateConfig holds the thresholds for the four entry conditions.
type GateConfig struct {
	MinFavorable int     // approve when at least this many conditions hold
	MinBreadth   float64 // breadth indicator floor
	MinWinRate   float64 // historical symbol win-rate floor
}

// DefaultGateConfig returns the production thresholds.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MinFavorable: 2,
		MinBreadth:   0.5,
		MinWinRate:   0.45,
	}
}

// Gate evaluates a signal against a market context snapshot and produces
// the one GateDecision for that signal. Evaluation is pure: identical
// inputs yield the identical decision, and missing context data evaluates
// as unfavorable rather than as an error.
type Gate struct {
	cfg GateConfig
}

func NewGate(cfg GateConfig) *Gate {
	if cfg.MinFavorable <= 0 {
		cfg.MinFavorable = DefaultGateConfig().MinFavorable
	}
	return &Gate{cfg: cfg}
}

// Evaluate runs the four named conditions and counts the favorable ones.
func (g *Gate) Evaluate(signal models.Signal, mc models.MarketContext) models.GateDecision {
	conditions := []models.ConditionResult{
		g.checkMarketBias(signal, mc),
		g.checkBreadth(mc),
		g.checkConfidence(signal, mc),
		g.checkSymbolHistory(mc),
	}

	favorable := 0
	for _, c := range conditions {
		if c.Favorable {
			favorable++
		}
	}
	approved := favorable >= g.cfg.MinFavorable

	reason := fmt.Sprintf("%d/%d conditions favorable (minimum %d): %s",
		favorable, len(conditions), g.cfg.MinFavorable, summarizeConditions(conditions))

	return models.GateDecision{
		SignalID:    signal.ID,
		Approved:    approved,
		Conditions:  conditions,
		Favorable:   favorable,
		Total:       len(conditions),
		Reason:      reason,
		EvaluatedAt: time.Now().UTC(),
	}
}

// checkMarketBias requires the broader market direction to agree with the
// signal's side. Close signals ride on any bias.
func (g *Gate) checkMarketBias(signal models.Signal, mc models.MarketContext) models.ConditionResult {
	c := models.ConditionResult{Name: "market_bias"}
	if mc.MarketBias == nil {
		c.Detail = "market bias unavailable"
		return c
	}
	bias := *mc.MarketBias
	switch signal.Action {
	case models.ActionLong:
		c.Favorable = bias == "bullish"
	case models.ActionShort:
		c.Favorable = bias == "bearish"
	case models.ActionClose:
		c.Favorable = true
	}
	c.Detail = fmt.Sprintf("market bias %q for %s signal", bias, signal.Action)
	return c
}

// checkBreadth requires the secondary breadth indicator to clear its floor.
func (g *Gate) checkBreadth(mc models.MarketContext) models.ConditionResult {
	c := models.ConditionResult{Name: "breadth"}
	if mc.Breadth == nil {
		c.Detail = "breadth indicator unavailable"
		return c
	}
	c.Favorable = *mc.Breadth >= g.cfg.MinBreadth
	c.Detail = fmt.Sprintf("breadth %.2f vs floor %.2f", *mc.Breadth, g.cfg.MinBreadth)
	return c
}

// checkConfidence compares signal confidence against the threshold in
// force at snapshot time.
func (g *Gate) checkConfidence(signal models.Signal, mc models.MarketContext) models.ConditionResult {
	c := models.ConditionResult{Name: "confidence"}
	if mc.MinimumScore == nil {
		c.Detail = "confidence threshold unavailable"
		return c
	}
	c.Favorable = signal.Confidence >= *mc.MinimumScore
	c.Detail = fmt.Sprintf("confidence %.2f vs threshold %.2f", signal.Confidence, *mc.MinimumScore)
	return c
}

// checkSymbolHistory requires the symbol's historical outcome bias to
// clear its floor.
func (g *Gate) checkSymbolHistory(mc models.MarketContext) models.ConditionResult {
	c := models.ConditionResult{Name: "symbol_history"}
	if mc.SymbolWinRate == nil {
		c.Detail = "symbol history unavailable"
		return c
	}
	c.Favorable = *mc.SymbolWinRate >= g.cfg.MinWinRate
	c.Detail = fmt.Sprintf("win rate %.2f vs floor %.2f", *mc.SymbolWinRate, g.cfg.MinWinRate)
	return c
}

func summarizeConditions(cs []models.ConditionResult) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		mark := "fail"
		if c.Favorable {
			mark = "ok"
		}
		parts = append(parts, c.Name+"="+mark)
	}
	return strings.Join(parts, " ")
}
