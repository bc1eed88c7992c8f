package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"SigCast/internal/domain/models"
	drepo "SigCast/internal/domain/repository"
	"SigCast/pkg/logger"
)

// ErrDraining is returned when a signal arrives after shutdown began.
var ErrDraining = errors.New("coordinator is draining, signal not accepted")

// CoordinatorConfig bounds the fan-out of one signal.
type CoordinatorConfig struct {
	MaxConcurrency  int
	OverallDeadline time.Duration
}

// Coordinator drives a signal through its lifecycle: gate evaluation,
// durable decision record, bounded concurrent fan-out, aggregation. One
// account's failure never touches its siblings; a gate rejection is a
// normal outcome, not an error.
type Coordinator struct {
	gate      *Gate
	resolver  *Resolver
	dispatch  *Dispatcher
	contexts  drepo.ContextProvider
	audit     drepo.AuditSink
	events    drepo.EventPublisher
	metrics   drepo.Metrics
	cfg       CoordinatorConfig
	log       *logger.Logger

	mu       sync.Mutex
	inFlight sync.WaitGroup
	draining bool
}

func NewCoordinator(
	gate *Gate,
	resolver *Resolver,
	dispatch *Dispatcher,
	contexts drepo.ContextProvider,
	audit drepo.AuditSink,
	events drepo.EventPublisher,
	metrics drepo.Metrics,
	cfg CoordinatorConfig,
	log *logger.Logger,
) *Coordinator {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 16
	}
	if cfg.OverallDeadline <= 0 {
		cfg.OverallDeadline = 45 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Coordinator{
		gate:     gate,
		resolver: resolver,
		dispatch: dispatch,
		contexts: contexts,
		audit:    audit,
		events:   events,
		metrics:  metrics,
		cfg:      cfg,
		log:      log,
	}
}

// Execute processes one signal end to end and returns its summary. Every
// signal yields a durable decision record; an approved one additionally
// yields one attempt per eligible account and a summary.
func (c *Coordinator) Execute(ctx context.Context, signal models.Signal) (models.ExecutionSummary, error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordExecuteDuration(time.Since(start).Seconds())
	}()

	if err := c.admit(); err != nil {
		return models.ExecutionSummary{}, err
	}
	defer c.inFlight.Done()

	c.metrics.RecordSignalReceived(signal.Source)
	if err := validateSignal(signal); err != nil {
		c.metrics.RecordError("invalid_signal")
		return models.ExecutionSummary{}, fmt.Errorf("invalid signal: %w", err)
	}
	if err := c.audit.RecordSignal(ctx, signal); err != nil {
		c.log.Warn("signal audit write failed", logger.Error(err), logger.String("signal_id", signal.ID))
	}

	// Gate. The decision must be durably recorded before any dispatch so a
	// crash between approval and fan-out cannot silently lose the approval.
	// A redelivered signal (the queue is at-least-once) re-evaluates and
	// appends a second decision row; readers take the latest row per
	// signal, and the attempt registry keeps the dispatches themselves
	// exactly-once.
	decision := c.gate.Evaluate(signal, c.contexts.Snapshot(ctx))
	c.metrics.RecordGateDecision(decision.Approved)
	if err := c.recordDecision(ctx, decision); err != nil {
		c.metrics.RecordError("gate_decision_write")
		return models.ExecutionSummary{}, fmt.Errorf("record gate decision: %w", err)
	}

	if !decision.Approved {
		c.log.Info("signal rejected by gate",
			logger.String("signal_id", signal.ID),
			logger.String("reason", decision.Reason))
		summary := models.Summarize(signal.ID, false, nil, time.Since(start))
		c.persistSummary(ctx, summary)
		return summary, nil
	}

	// Resolver failure fails the whole signal closed: no partial fan-out.
	accounts, err := c.resolver.ResolveEligibleAccounts(ctx, signal)
	if err != nil {
		c.metrics.RecordError("resolver")
		c.log.Error("eligibility resolution failed",
			logger.Error(err), logger.String("signal_id", signal.ID))
		summary := models.Summarize(signal.ID, true, nil, time.Since(start))
		c.persistSummary(ctx, summary)
		return summary, fmt.Errorf("resolve eligible accounts: %w", err)
	}

	attempts := c.fanOut(ctx, signal, accounts)

	summary := models.Summarize(signal.ID, true, attempts, time.Since(start))
	c.persistSummary(ctx, summary)
	c.log.Info("signal executed",
		logger.String("signal_id", signal.ID),
		logger.Int("targeted", summary.UsersTargeted),
		logger.Int("succeeded", summary.Succeeded),
		logger.Int("failed", summary.Failed),
		logger.Duration("duration", summary.Duration))
	return summary, nil
}

// fanOut dispatches each account on its own worker, bounded by the
// concurrency cap, and collects results until done or the overall
// deadline. Workers still pending at the deadline are abandoned and
// recorded as timeouts.
func (c *Coordinator) fanOut(ctx context.Context, signal models.Signal, accounts []models.TradingAccount) []models.ExecutionAttempt {
	fanStart := time.Now().UTC()
	fanCtx, cancel := context.WithTimeout(ctx, c.cfg.OverallDeadline)
	defer cancel()

	type indexed struct {
		idx     int
		attempt models.ExecutionAttempt
	}
	results := make(chan indexed, len(accounts))
	sem := make(chan struct{}, c.cfg.MaxConcurrency)

	for i, account := range accounts {
		go func(idx int, account models.TradingAccount) {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-fanCtx.Done():
				return
			}
			results <- indexed{idx: idx, attempt: c.dispatchSafe(fanCtx, signal, account)}
		}(i, account)
	}

	attempts := make([]models.ExecutionAttempt, len(accounts))
	received := make([]bool, len(accounts))
	collected := 0
	for collected < len(accounts) {
		select {
		case r := <-results:
			attempts[r.idx] = r.attempt
			received[r.idx] = true
			collected++
		case <-fanCtx.Done():
			// Abandon whatever is still pending; cancellation was signaled
			// through fanCtx and ambiguous outcomes must not claim success.
			now := time.Now().UTC()
			for i := range attempts {
				if !received[i] {
					attempts[i] = models.ExecutionAttempt{
						SignalID:    signal.ID,
						AccountID:   accounts[i].ID,
						UserID:      accounts[i].UserID,
						Exchange:    accounts[i].Exchange,
						Side:        signal.Action,
						Outcome:     models.OutcomeTimeout,
						ErrorDetail: "dispatch still pending at overall deadline",
						StartedAt:   fanStart,
						FinishedAt:  now,
						Latency:     now.Sub(fanStart),
					}
				}
			}
			collected = len(accounts)
		}
	}

	for _, a := range attempts {
		c.metrics.RecordAttempt(a.Outcome, a.Exchange)
		c.metrics.RecordDispatchLatency(a.Exchange, a.Latency.Seconds())
		c.persistAttempt(ctx, a)
	}
	return attempts
}

// dispatchSafe isolates one account's dispatch: a panic becomes an
// internal-error attempt instead of taking down the fan-out.
func (c *Coordinator) dispatchSafe(ctx context.Context, signal models.Signal, account models.TradingAccount) (attempt models.ExecutionAttempt) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.RecordError("dispatch_panic")
			c.log.Error("dispatch panicked",
				logger.String("signal_id", signal.ID),
				logger.String("account_id", account.ID),
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())))
			now := time.Now().UTC()
			attempt = models.ExecutionAttempt{
				SignalID:    signal.ID,
				AccountID:   account.ID,
				UserID:      account.UserID,
				Exchange:    account.Exchange,
				Side:        signal.Action,
				Outcome:     models.OutcomeInternalError,
				ErrorDetail: fmt.Sprintf("panic: %v", r),
				StartedAt:   now,
				FinishedAt:  now,
			}
		}
	}()
	return c.dispatch.Dispatch(ctx, signal, account)
}

// recordDecision writes the gate decision synchronously with one bounded
// retry. This is the only audit write Execute blocks on.
func (c *Coordinator) recordDecision(ctx context.Context, decision models.GateDecision) error {
	err := c.audit.RecordGateDecision(ctx, decision)
	if err == nil {
		return nil
	}
	c.log.Warn("gate decision write failed, retrying", logger.Error(err))
	select {
	case <-time.After(250 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	return c.audit.RecordGateDecision(ctx, decision)
}

func (c *Coordinator) persistAttempt(ctx context.Context, attempt models.ExecutionAttempt) {
	if err := c.audit.RecordExecutionAttempt(ctx, attempt); err != nil {
		c.metrics.RecordError("attempt_write")
		c.log.Warn("attempt audit write failed", logger.Error(err),
			logger.String("signal_id", attempt.SignalID),
			logger.String("account_id", attempt.AccountID))
	}
	if c.events != nil {
		if err := c.events.PublishAttempt(ctx, attempt); err != nil {
			c.log.Warn("attempt event publish failed", logger.Error(err))
		}
	}
}

func (c *Coordinator) persistSummary(ctx context.Context, summary models.ExecutionSummary) {
	if err := c.audit.RecordSummary(ctx, summary); err != nil {
		c.metrics.RecordError("summary_write")
		c.log.Warn("summary audit write failed", logger.Error(err),
			logger.String("signal_id", summary.SignalID))
	}
	if c.events != nil {
		if err := c.events.PublishSummary(ctx, summary); err != nil {
			c.log.Warn("summary event publish failed", logger.Error(err))
		}
	}
}

// admit registers the signal as in-flight work unless shutdown has begun.
func (c *Coordinator) admit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draining {
		return ErrDraining
	}
	c.inFlight.Add(1)
	return nil
}

// Drain stops admitting new signals and waits for in-flight executions up
// to the grace period.
func (c *Coordinator) Drain(grace time.Duration) {
	c.mu.Lock()
	c.draining = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		c.log.Info("coordinator drained")
	case <-time.After(grace):
		c.log.Warn("drain grace period elapsed with work still in flight")
	}
}

func validateSignal(s models.Signal) error {
	switch {
	case s.ID == "":
		return fmt.Errorf("id is empty")
	case s.Symbol == "":
		return fmt.Errorf("symbol is empty")
	case s.Action != models.ActionLong && s.Action != models.ActionShort && s.Action != models.ActionClose:
		return fmt.Errorf("action %q is not recognized", s.Action)
	case s.Action != models.ActionClose && s.Price <= 0:
		// Sizing divides the quote notional by the entry price. Without a
		// price the order quantity cannot be computed, so entries must not
		// proceed on a guess. Close orders flatten an existing position and
		// carry no price.
		return fmt.Errorf("price is missing for %s entry", s.Action)
	default:
		return nil
	}
}
