package repository

import (
	"context"
	"errors"

	"SigCast/internal/domain/models"
)

// AccountDirectory answers which accounts may trade a given signal.
// Implementations must fail with an error when the backing store is
// unavailable; an empty list always means "no eligible accounts".
type AccountDirectory interface {
	ListEligibleAccounts(ctx context.Context, signal models.Signal) ([]models.TradingAccount, error)
}

// Credential vault errors. Every one of them maps to the
// credential-invalid attempt outcome at the dispatch boundary.
var (
	ErrCredentialNotFound   = errors.New("vault: credential not found")
	ErrDecryptionFailed     = errors.New("vault: decryption failed")
	ErrCredentialIncomplete = errors.New("vault: credential incomplete")
)

// IsCredentialError reports whether err belongs to the vault taxonomy.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrCredentialNotFound) ||
		errors.Is(err, ErrDecryptionFailed) ||
		errors.Is(err, ErrCredentialIncomplete)
}

// CredentialVault resolves opaque credential references into usable
// secrets. Resolve never returns partially populated credentials.
type CredentialVault interface {
	Resolve(ctx context.Context, credentialRef string) (models.Credentials, error)
	// OnRotated invalidates any cached secret for the reference.
	OnRotated(ctx context.Context, credentialRef string)
}

// OrderRequest is the engine-side order placement request.
type OrderRequest struct {
	Symbol   string
	Side     models.SignalAction
	Size     float64
	Leverage int
	Price    float64 // advisory; venues fill market orders at their own price
}

// OrderResult is a confirmed placement.
type OrderResult struct {
	ExchangeOrderID string
	Raw             []byte
}

// ExchangeClient is the exchange capability. Implementations own the wire
// protocol and signing; the engine only sees categorized errors
// (*models.ExchangeError) or context deadline errors.
type ExchangeClient interface {
	Name() string
	PlaceOrder(ctx context.Context, creds models.Credentials, req OrderRequest) (OrderResult, error)
}

// ExchangeRegistry resolves a client for an account's venue.
type ExchangeRegistry interface {
	ClientFor(exchange string) (ExchangeClient, bool)
}

// AuditSink is the append-only record of everything the engine decides
// and does. RecordGateDecision must be durable before fan-out begins;
// attempt and summary writes are acknowledged-or-retried by the sink.
type AuditSink interface {
	RecordSignal(ctx context.Context, signal models.Signal) error
	RecordGateDecision(ctx context.Context, decision models.GateDecision) error
	RecordExecutionAttempt(ctx context.Context, attempt models.ExecutionAttempt) error
	RecordSummary(ctx context.Context, summary models.ExecutionSummary) error
}

// AuditReader is the query side of the audit store, used by the API
// surface only.
type AuditReader interface {
	GateDecision(ctx context.Context, signalID string) (models.GateDecision, error)
	Attempts(ctx context.Context, signalID string) ([]models.ExecutionAttempt, error)
	Summary(ctx context.Context, signalID string) (models.ExecutionSummary, error)
}

// ContextProvider supplies the market context snapshot the gate consumes.
type ContextProvider interface {
	Snapshot(ctx context.Context) models.MarketContext
}

// Metrics is the engine's observability surface.
type Metrics interface {
	RecordSignalReceived(source string)
	RecordGateDecision(approved bool)
	RecordAttempt(outcome models.Outcome, exchange string)
	RecordDispatchLatency(exchange string, seconds float64)
	RecordExecuteDuration(seconds float64)
	RecordError(kind string)
}

// EventPublisher mirrors finalized execution records onto a stream for
// downstream consumers.
type EventPublisher interface {
	PublishAttempt(ctx context.Context, attempt models.ExecutionAttempt) error
	PublishSummary(ctx context.Context, summary models.ExecutionSummary) error
	Close() error
}
