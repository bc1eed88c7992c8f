package models

import (
	"strings"
	"time"
)

// Environment distinguishes live exchange accounts from sandbox ones.
type Environment string

const (
	EnvLive    Environment = "live"
	EnvSandbox Environment = "sandbox"
)

// RiskParams are the per-account limits applied when sizing orders.
type RiskParams struct {
	RiskPercent      float64 // fraction of balance committed per signal, 0..1
	MaxPositionSize  float64 // hard cap in quote units; computed size clamps here
	LeverageCap      int
	MaxOpenPositions int
	BlockedSymbols   []string // instruments this account never trades
}

// Blocks reports whether the risk parameters categorically forbid a
// symbol. Matching ignores case; block lists come from user input while
// intake normalizes symbols to upper case.
func (r RiskParams) Blocks(symbol string) bool {
	for _, s := range r.BlockedSymbols {
		if strings.EqualFold(s, symbol) {
			return true
		}
	}
	return false
}

// TradingAccount links one user to one exchange. CredentialRef is an opaque
// handle resolved through the vault at execution time; the raw secret never
// appears on this type or in audit records.
type TradingAccount struct {
	ID              string
	UserID          string
	Exchange        string
	Environment     Environment
	CredentialRef   string
	Active          bool
	AutoTrading     bool
	Risk            RiskParams
	BalanceSnapshot float64 // quote balance at resolution time
	LinkedAt        time.Time
}

// Credentials is a fully resolved secret pair. Both fields are always
// populated; partial resolution is an error at the vault boundary.
type Credentials struct {
	APIKey    string
	APISecret string
}
