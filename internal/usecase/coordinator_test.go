package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"SigCast/internal/domain/models"
	drepo "SigCast/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memAudit struct {
	mu            sync.Mutex
	signals       []models.Signal
	decisions     []models.GateDecision
	attempts      []models.ExecutionAttempt
	summaries     []models.ExecutionSummary
	decisionFails int
}

func (a *memAudit) RecordSignal(ctx context.Context, s models.Signal) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signals = append(a.signals, s)
	return nil
}

func (a *memAudit) RecordGateDecision(ctx context.Context, d models.GateDecision) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.decisionFails > 0 {
		a.decisionFails--
		return errors.New("audit store unavailable")
	}
	a.decisions = append(a.decisions, d)
	return nil
}

func (a *memAudit) RecordExecutionAttempt(ctx context.Context, at models.ExecutionAttempt) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempts = append(a.attempts, at)
	return nil
}

func (a *memAudit) RecordSummary(ctx context.Context, s models.ExecutionSummary) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summaries = append(a.summaries, s)
	return nil
}

func (a *memAudit) decisionCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.decisions)
}

func (a *memAudit) recordedAttempts() []models.ExecutionAttempt {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.ExecutionAttempt(nil), a.attempts...)
}

func (a *memAudit) summaryCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.summaries)
}

type staticContext struct {
	mc models.MarketContext
}

func (s staticContext) Snapshot(ctx context.Context) models.MarketContext { return s.mc }

type stubDirectory struct {
	accounts []models.TradingAccount
	err      error
}

func (d *stubDirectory) ListEligibleAccounts(ctx context.Context, signal models.Signal) ([]models.TradingAccount, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.accounts, nil
}

type nopMetrics struct{}

func (nopMetrics) RecordSignalReceived(string)           {}
func (nopMetrics) RecordGateDecision(bool)               {}
func (nopMetrics) RecordAttempt(models.Outcome, string)  {}
func (nopMetrics) RecordDispatchLatency(string, float64) {}
func (nopMetrics) RecordExecuteDuration(float64)         {}
func (nopMetrics) RecordError(string)                    {}

type coordinatorFixture struct {
	coordinator *Coordinator
	audit       *memAudit
	exchange    *stubExchange
	directory   *stubDirectory
}

func newCoordinatorFixture(t *testing.T, accounts []models.TradingAccount, cfg CoordinatorConfig) *coordinatorFixture {
	t.Helper()

	audit := &memAudit{}
	directory := &stubDirectory{accounts: accounts}
	vault := &stubVault{creds: models.Credentials{APIKey: "k", APISecret: "s"}}
	ex := &stubExchange{name: "paper", result: drepo.OrderResult{ExchangeOrderID: "ord-1"}}

	gate := NewGate(DefaultGateConfig())
	resolver := NewResolver(directory, nil)
	dispatcher := NewDispatcher(vault, registryWith(ex), DispatcherConfig{
		CredentialTimeout: 200 * time.Millisecond,
		DispatchTimeout:   500 * time.Millisecond,
	}, nil)

	coordinator := NewCoordinator(
		gate, resolver, dispatcher,
		staticContext{mc: favorableContext()},
		audit, nil, nopMetrics{}, cfg, nil,
	)
	return &coordinatorFixture{
		coordinator: coordinator,
		audit:       audit,
		exchange:    ex,
		directory:   directory,
	}
}

func accountsNamed(ids ...string) []models.TradingAccount {
	accounts := make([]models.TradingAccount, 0, len(ids))
	for _, id := range ids {
		a := testAccount()
		a.ID = id
		a.UserID = "user-" + id
		a.CredentialRef = "ref-" + id
		accounts = append(accounts, a)
	}
	return accounts
}

func TestExecuteApprovedSignalFansOutToAllAccounts(t *testing.T) {
	fx := newCoordinatorFixture(t, accountsNamed("a", "b", "c"), CoordinatorConfig{})

	summary, err := fx.coordinator.Execute(context.Background(), longSignal())

	require.NoError(t, err)
	assert.True(t, summary.GateApproved)
	assert.Equal(t, 3, summary.UsersTargeted)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, int64(3), fx.exchange.calls.Load())
	assert.Equal(t, 1, fx.audit.decisionCount())
	assert.Equal(t, 1, fx.audit.summaryCount())
}

func TestExecuteRejectedSignalDispatchesNothing(t *testing.T) {
	fx := newCoordinatorFixture(t, accountsNamed("a", "b"), CoordinatorConfig{})

	signal := longSignal()
	signal.Confidence = 0.0
	// Force every condition against the signal.
	fx.coordinator.contexts = staticContext{mc: models.MarketContext{}}

	summary, err := fx.coordinator.Execute(context.Background(), signal)

	require.NoError(t, err)
	assert.False(t, summary.GateApproved)
	assert.Equal(t, 0, summary.UsersTargeted)
	assert.Equal(t, int64(0), fx.exchange.calls.Load())
	// Rejection still leaves a durable decision and summary.
	assert.Equal(t, 1, fx.audit.decisionCount())
	assert.Equal(t, 1, fx.audit.summaryCount())
}

func TestExecuteInvalidSignalIsAnError(t *testing.T) {
	fx := newCoordinatorFixture(t, nil, CoordinatorConfig{})

	for _, signal := range []models.Signal{
		{Symbol: "BTCUSDT", Action: models.ActionLong, Price: 100},
		{ID: "sig-1", Action: models.ActionLong, Price: 100},
		{ID: "sig-1", Symbol: "BTCUSDT", Action: "hold", Price: 100},
		{ID: "sig-1", Symbol: "BTCUSDT", Action: models.ActionLong},
		{ID: "sig-1", Symbol: "BTCUSDT", Action: models.ActionShort, Price: -1},
	} {
		_, err := fx.coordinator.Execute(context.Background(), signal)
		assert.Error(t, err)
	}
	assert.Equal(t, 0, fx.audit.decisionCount())
}

func TestExecutePricelessEntryNeverReachesExchange(t *testing.T) {
	fx := newCoordinatorFixture(t, accountsNamed("a"), CoordinatorConfig{})

	signal := longSignal()
	signal.Price = 0

	_, err := fx.coordinator.Execute(context.Background(), signal)

	require.Error(t, err)
	assert.Equal(t, int64(0), fx.exchange.calls.Load())
	assert.Equal(t, 0, fx.audit.decisionCount())
}

func TestExecutePricelessCloseIsAccepted(t *testing.T) {
	fx := newCoordinatorFixture(t, accountsNamed("a"), CoordinatorConfig{})

	signal := longSignal()
	signal.Action = models.ActionClose
	signal.Price = 0

	summary, err := fx.coordinator.Execute(context.Background(), signal)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
}

func TestExecuteDecisionWriteRetriesOnce(t *testing.T) {
	fx := newCoordinatorFixture(t, accountsNamed("a"), CoordinatorConfig{})
	fx.audit.decisionFails = 1

	summary, err := fx.coordinator.Execute(context.Background(), longSignal())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, fx.audit.decisionCount())
}

func TestExecuteAbortsWhenDecisionCannotBeRecorded(t *testing.T) {
	fx := newCoordinatorFixture(t, accountsNamed("a"), CoordinatorConfig{})
	fx.audit.decisionFails = 2

	_, err := fx.coordinator.Execute(context.Background(), longSignal())

	require.Error(t, err)
	// No fan-out may happen without a durable decision.
	assert.Equal(t, int64(0), fx.exchange.calls.Load())
}

func TestExecuteResolverFailureFailsClosed(t *testing.T) {
	fx := newCoordinatorFixture(t, nil, CoordinatorConfig{})
	fx.directory.err = errors.New("directory unavailable")

	summary, err := fx.coordinator.Execute(context.Background(), longSignal())

	require.Error(t, err)
	assert.Equal(t, 0, summary.UsersTargeted)
	assert.Equal(t, int64(0), fx.exchange.calls.Load())
	// The failure is visible in the audit trail, not silent.
	assert.Equal(t, 1, fx.audit.decisionCount())
	assert.Equal(t, 1, fx.audit.summaryCount())
}

func TestExecuteBoundsConcurrency(t *testing.T) {
	fx := newCoordinatorFixture(t, accountsNamed("a", "b", "c", "d", "e", "f"), CoordinatorConfig{
		MaxConcurrency: 2,
	})

	var current, peak atomic.Int64
	fx.exchange.delay = 20 * time.Millisecond
	observer := &concurrencyObserver{inner: fx.exchange, current: &current, peak: &peak}
	fx.coordinator.dispatch = NewDispatcher(
		&stubVault{creds: models.Credentials{APIKey: "k", APISecret: "s"}},
		registryWith(observer),
		DispatcherConfig{CredentialTimeout: 200 * time.Millisecond, DispatchTimeout: 500 * time.Millisecond},
		nil,
	)

	summary, err := fx.coordinator.Execute(context.Background(), longSignal())

	require.NoError(t, err)
	assert.Equal(t, 6, summary.Succeeded)
	assert.LessOrEqual(t, peak.Load(), int64(2))
}

type concurrencyObserver struct {
	inner   *stubExchange
	current *atomic.Int64
	peak    *atomic.Int64
}

func (o *concurrencyObserver) Name() string { return o.inner.Name() }

func (o *concurrencyObserver) PlaceOrder(ctx context.Context, creds models.Credentials, req drepo.OrderRequest) (drepo.OrderResult, error) {
	n := o.current.Add(1)
	for {
		p := o.peak.Load()
		if n <= p || o.peak.CompareAndSwap(p, n) {
			break
		}
	}
	defer o.current.Add(-1)
	return o.inner.PlaceOrder(ctx, creds, req)
}

func TestExecuteIsolatesPerAccountFailures(t *testing.T) {
	fx := newCoordinatorFixture(t, accountsNamed("a", "b", "c"), CoordinatorConfig{})

	// Account b points at a venue whose client always rejects.
	rejecting := &stubExchange{
		name: "strict",
		err:  &models.ExchangeError{Kind: models.ExchangeRateLimited, Message: "slow down"},
	}
	accounts := accountsNamed("a", "b", "c")
	accounts[1].Exchange = "strict"
	fx.directory.accounts = accounts
	fx.coordinator.dispatch = NewDispatcher(
		&stubVault{creds: models.Credentials{APIKey: "k", APISecret: "s"}},
		registryWith(fx.exchange, rejecting),
		DispatcherConfig{CredentialTimeout: 200 * time.Millisecond, DispatchTimeout: 500 * time.Millisecond},
		nil,
	)

	summary, err := fx.coordinator.Execute(context.Background(), longSignal())

	require.NoError(t, err)
	assert.Equal(t, 3, summary.UsersTargeted)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.ByOutcome[models.OutcomeRejectedByExchange])
}

func TestExecuteOverallDeadlineConvertsPendingToTimeouts(t *testing.T) {
	fx := newCoordinatorFixture(t, accountsNamed("a", "b"), CoordinatorConfig{
		MaxConcurrency:  4,
		OverallDeadline: 100 * time.Millisecond,
	})
	fx.exchange.delay = 5 * time.Second

	start := time.Now()
	summary, err := fx.coordinator.Execute(context.Background(), longSignal())

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "deadline must bound the whole fan-out")
	assert.Equal(t, 2, summary.UsersTargeted)
	assert.Equal(t, 0, summary.Succeeded)
	assert.Equal(t, 2, summary.ByOutcome[models.OutcomeTimeout])
	for _, a := range fx.audit.recordedAttempts() {
		assert.Greater(t, a.Latency, time.Duration(0), "abandoned dispatch carries the elapsed fan-out time")
	}
}

func TestExecutePanicBecomesInternalErrorAttempt(t *testing.T) {
	fx := newCoordinatorFixture(t, accountsNamed("a"), CoordinatorConfig{})
	fx.coordinator.dispatch = NewDispatcher(
		panicVault{},
		registryWith(fx.exchange),
		DispatcherConfig{},
		nil,
	)

	summary, err := fx.coordinator.Execute(context.Background(), longSignal())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.ByOutcome[models.OutcomeInternalError])
}

type panicVault struct{}

func (panicVault) Resolve(ctx context.Context, ref string) (models.Credentials, error) {
	panic("boom")
}

func (panicVault) OnRotated(ctx context.Context, ref string) {}

func TestDrainRejectsNewSignals(t *testing.T) {
	fx := newCoordinatorFixture(t, accountsNamed("a"), CoordinatorConfig{})

	fx.coordinator.Drain(100 * time.Millisecond)

	_, err := fx.coordinator.Execute(context.Background(), longSignal())
	assert.ErrorIs(t, err, ErrDraining)
}

func TestDrainWaitsForInFlightWork(t *testing.T) {
	fx := newCoordinatorFixture(t, accountsNamed("a"), CoordinatorConfig{})
	fx.exchange.delay = 100 * time.Millisecond

	done := make(chan models.ExecutionSummary, 1)
	go func() {
		summary, _ := fx.coordinator.Execute(context.Background(), longSignal())
		done <- summary
	}()

	// Let the execution get admitted before draining.
	time.Sleep(20 * time.Millisecond)
	fx.coordinator.Drain(time.Second)

	select {
	case summary := <-done:
		assert.Equal(t, 1, summary.Succeeded)
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight execution did not finish under drain")
	}
}
