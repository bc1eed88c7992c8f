package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SigCast/internal/domain/models"
	drepo "SigCast/internal/domain/repository"
	"SigCast/pkg/logger"
)

// DispatcherConfig bounds the two blocking steps of a dispatch.
type DispatcherConfig struct {
	CredentialTimeout time.Duration
	DispatchTimeout   time.Duration
}

// Dispatcher places one approved signal on one account's exchange. Every
// failure mode is converted into a finalized ExecutionAttempt; nothing
// escapes the dispatch boundary as an error.
type Dispatcher struct {
	vault     drepo.CredentialVault
	exchanges drepo.ExchangeRegistry
	attempts  *attemptRegistry
	cfg       DispatcherConfig
	log       *logger.Logger
}

func NewDispatcher(vault drepo.CredentialVault, exchanges drepo.ExchangeRegistry, cfg DispatcherConfig, log *logger.Logger) *Dispatcher {
	if cfg.CredentialTimeout <= 0 {
		cfg.CredentialTimeout = 2 * time.Second
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 12 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{
		vault:     vault,
		exchanges: exchanges,
		attempts:  newAttemptRegistry(),
		cfg:       cfg,
		log:       log,
	}
}

// Dispatch resolves credentials, sizes the order, and submits it. A
// duplicate call for the same (signal, account) pair is a no-op that
// returns the original attempt.
func (d *Dispatcher) Dispatch(ctx context.Context, signal models.Signal, account models.TradingAccount) models.ExecutionAttempt {
	entry, owner := d.attempts.begin(signal.ID, account.ID)
	if !owner {
		d.log.Debug("duplicate dispatch ignored",
			logger.String("signal_id", signal.ID),
			logger.String("account_id", account.ID))
		return entry.wait()
	}

	attempt := d.execute(ctx, signal, account)
	entry.finalize(attempt)
	return attempt
}

func (d *Dispatcher) execute(ctx context.Context, signal models.Signal, account models.TradingAccount) models.ExecutionAttempt {
	start := time.Now().UTC()
	attempt := models.ExecutionAttempt{
		SignalID:  signal.ID,
		AccountID: account.ID,
		UserID:    account.UserID,
		Exchange:  account.Exchange,
		Side:      signal.Action,
		StartedAt: start,
	}
	finish := func(outcome models.Outcome, detail string) models.ExecutionAttempt {
		attempt.Outcome = outcome
		attempt.ErrorDetail = detail
		attempt.FinishedAt = time.Now().UTC()
		attempt.Latency = attempt.FinishedAt.Sub(start)
		return attempt
	}

	// Step 1: credentials. Any vault failure ends the dispatch before an
	// exchange call is attempted.
	credCtx, cancel := context.WithTimeout(ctx, d.cfg.CredentialTimeout)
	creds, err := d.vault.Resolve(credCtx, account.CredentialRef)
	cancel()
	if err != nil {
		if drepo.IsCredentialError(err) {
			return finish(models.OutcomeCredentialInvalid, err.Error())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return finish(models.OutcomeTimeout, "credential resolution timed out")
		}
		return finish(models.OutcomeCredentialInvalid, err.Error())
	}

	// Step 2: sizing from the account's risk parameters.
	size, leverage := sizeOrder(signal, account)
	attempt.Size = size
	attempt.Leverage = leverage
	if size <= 0 {
		return finish(models.OutcomeInsufficientBalance, "computed size is zero")
	}

	client, ok := d.exchanges.ClientFor(account.Exchange)
	if !ok {
		return finish(models.OutcomeInternalError, fmt.Sprintf("no exchange client for %q", account.Exchange))
	}

	// Step 3: bounded exchange call. No automatic retry here; retrying an
	// order placement without a fresh idempotence key risks duplicate
	// fills, so that decision belongs to a caller.
	orderCtx, cancel := context.WithTimeout(ctx, d.cfg.DispatchTimeout)
	defer cancel()
	res, err := client.PlaceOrder(orderCtx, creds, drepo.OrderRequest{
		Symbol:   signal.Symbol,
		Side:     signal.Action,
		Size:     size,
		Leverage: leverage,
		Price:    signal.Price,
	})
	if err != nil {
		var exErr *models.ExchangeError
		switch {
		case errors.As(err, &exErr):
			attempt.RawResponse = exErr.Raw
			return finish(models.OutcomeForExchangeError(exErr), exErr.Error())
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			// A cancelled call with no confirmed order id is never reported
			// as succeeded; it goes to reconciliation as a timeout.
			return finish(models.OutcomeTimeout, "exchange call exceeded deadline")
		default:
			return finish(models.OutcomeInternalError, err.Error())
		}
	}

	attempt.ExchangeOrderID = res.ExchangeOrderID
	attempt.RawResponse = res.Raw
	d.log.Info("order placed",
		logger.String("signal_id", signal.ID),
		logger.String("account_id", account.ID),
		logger.String("exchange", account.Exchange),
		logger.String("order_id", res.ExchangeOrderID),
		logger.Float64("size", size))
	return finish(models.OutcomeSucceeded, "")
}

// sizeOrder computes position size from the balance snapshot, risk
// percentage, and leverage, clamped to the account maxima. Oversized
// computations cap silently; only a zero result rejects the dispatch.
func sizeOrder(signal models.Signal, account models.TradingAccount) (float64, int) {
	leverage := account.Risk.LeverageCap
	if leverage < 1 {
		leverage = 1
	}

	notional := account.BalanceSnapshot * account.Risk.RiskPercent * float64(leverage)
	if account.Risk.MaxPositionSize > 0 && notional > account.Risk.MaxPositionSize {
		notional = account.Risk.MaxPositionSize
	}
	if notional < 0 {
		notional = 0
	}

	// Convert quote notional to base quantity. Entry signals always carry
	// a price; only a priceless close falls through with the raw notional,
	// which the venue ignores when flattening.
	size := notional
	if signal.Price > 0 {
		size = notional / signal.Price
	}
	return size, leverage
}
