package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"SigCast/internal/domain/models"
	"SigCast/internal/domain/repository"
)

// AuditSchema creates the append-only audit tables. Statements are
// idempotent and executed at startup through the ClickHouse client.
var AuditSchema = []string{
	`CREATE TABLE IF NOT EXISTS audit_signals (
		signal_id   String,
		symbol      String,
		action      String,
		price       Float64,
		confidence  Float64,
		source      String,
		received_at DateTime64(3),
		raw_payload String
	) ENGINE = MergeTree() ORDER BY (received_at, signal_id)`,
	`CREATE TABLE IF NOT EXISTS audit_gate_decisions (
		signal_id    String,
		approved     UInt8,
		favorable    UInt16,
		total        UInt16,
		reason       String,
		conditions   String,
		evaluated_at DateTime64(3)
	) ENGINE = MergeTree() ORDER BY (evaluated_at, signal_id)`,
	`CREATE TABLE IF NOT EXISTS audit_execution_attempts (
		signal_id         String,
		account_id        String,
		user_id           String,
		exchange          String,
		side              String,
		size              Float64,
		leverage          UInt16,
		outcome           String,
		exchange_order_id String,
		error_detail      String,
		raw_response      String,
		latency_ms        UInt64,
		started_at        DateTime64(3),
		finished_at       DateTime64(3)
	) ENGINE = MergeTree() ORDER BY (started_at, signal_id, account_id)`,
	`CREATE TABLE IF NOT EXISTS audit_execution_summaries (
		signal_id      String,
		gate_approved  UInt8,
		users_targeted UInt32,
		succeeded      UInt32,
		failed         UInt32,
		by_outcome     String,
		duration_ms    UInt64,
		completed_at   DateTime64(3)
	) ENGINE = MergeTree() ORDER BY (completed_at, signal_id)`,
}

// ClickHouseAudit implements the audit sink and its query side on the
// ClickHouse audit tables.
type ClickHouseAudit struct {
	db *sql.DB
}

func NewClickHouseAudit(db *sql.DB) *ClickHouseAudit {
	return &ClickHouseAudit{db: db}
}

func (a *ClickHouseAudit) RecordSignal(ctx context.Context, s models.Signal) error {
	q := `INSERT INTO audit_signals
		(signal_id, symbol, action, price, confidence, source, received_at, raw_payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := a.db.ExecContext(ctx, q,
		s.ID, s.Symbol, string(s.Action), s.Price, s.Confidence, s.Source,
		s.ReceivedAt, string(s.RawPayload))
	if err != nil {
		return fmt.Errorf("record signal: %w", err)
	}
	return nil
}

func (a *ClickHouseAudit) RecordGateDecision(ctx context.Context, d models.GateDecision) error {
	conditions, err := json.Marshal(d.Conditions)
	if err != nil {
		return fmt.Errorf("marshal conditions: %w", err)
	}
	q := `INSERT INTO audit_gate_decisions
		(signal_id, approved, favorable, total, reason, conditions, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = a.db.ExecContext(ctx, q,
		d.SignalID, boolToUInt8(d.Approved), d.Favorable, d.Total, d.Reason,
		string(conditions), d.EvaluatedAt)
	if err != nil {
		return fmt.Errorf("record gate decision: %w", err)
	}
	return nil
}

func (a *ClickHouseAudit) RecordExecutionAttempt(ctx context.Context, at models.ExecutionAttempt) error {
	q := `INSERT INTO audit_execution_attempts
		(signal_id, account_id, user_id, exchange, side, size, leverage, outcome,
		 exchange_order_id, error_detail, raw_response, latency_ms, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := a.db.ExecContext(ctx, q,
		at.SignalID, at.AccountID, at.UserID, at.Exchange, string(at.Side),
		at.Size, at.Leverage, string(at.Outcome), at.ExchangeOrderID,
		at.ErrorDetail, string(at.RawResponse),
		uint64(at.Latency/time.Millisecond), at.StartedAt, at.FinishedAt)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

func (a *ClickHouseAudit) RecordSummary(ctx context.Context, s models.ExecutionSummary) error {
	byOutcome, err := json.Marshal(s.ByOutcome)
	if err != nil {
		return fmt.Errorf("marshal outcome counts: %w", err)
	}
	q := `INSERT INTO audit_execution_summaries
		(signal_id, gate_approved, users_targeted, succeeded, failed, by_outcome, duration_ms, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = a.db.ExecContext(ctx, q,
		s.SignalID, boolToUInt8(s.GateApproved), s.UsersTargeted, s.Succeeded,
		s.Failed, string(byOutcome), uint64(s.Duration/time.Millisecond), s.CompletedAt)
	if err != nil {
		return fmt.Errorf("record summary: %w", err)
	}
	return nil
}

// --- query side ---

func (a *ClickHouseAudit) GateDecision(ctx context.Context, signalID string) (models.GateDecision, error) {
	q := `SELECT signal_id, approved, favorable, total, reason, conditions, evaluated_at
		FROM audit_gate_decisions WHERE signal_id = ?
		ORDER BY evaluated_at DESC LIMIT 1`
	var d models.GateDecision
	var approved uint8
	var conditions string
	err := a.db.QueryRowContext(ctx, q, signalID).Scan(
		&d.SignalID, &approved, &d.Favorable, &d.Total, &d.Reason, &conditions, &d.EvaluatedAt)
	if err != nil {
		return models.GateDecision{}, err
	}
	d.Approved = approved != 0
	if err := json.Unmarshal([]byte(conditions), &d.Conditions); err != nil {
		return models.GateDecision{}, fmt.Errorf("unmarshal conditions: %w", err)
	}
	return d, nil
}

func (a *ClickHouseAudit) Attempts(ctx context.Context, signalID string) ([]models.ExecutionAttempt, error) {
	q := `SELECT signal_id, account_id, user_id, exchange, side, size, leverage, outcome,
		exchange_order_id, error_detail, latency_ms, started_at, finished_at
		FROM audit_execution_attempts WHERE signal_id = ? ORDER BY account_id`
	rows, err := a.db.QueryContext(ctx, q, signalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []models.ExecutionAttempt
	for rows.Next() {
		var at models.ExecutionAttempt
		var side, outcome string
		var latencyMs uint64
		if err := rows.Scan(&at.SignalID, &at.AccountID, &at.UserID, &at.Exchange,
			&side, &at.Size, &at.Leverage, &outcome, &at.ExchangeOrderID,
			&at.ErrorDetail, &latencyMs, &at.StartedAt, &at.FinishedAt); err != nil {
			return nil, err
		}
		at.Side = models.SignalAction(side)
		at.Outcome = models.Outcome(outcome)
		at.Latency = time.Duration(latencyMs) * time.Millisecond
		attempts = append(attempts, at)
	}
	return attempts, rows.Err()
}

func (a *ClickHouseAudit) Summary(ctx context.Context, signalID string) (models.ExecutionSummary, error) {
	q := `SELECT signal_id, gate_approved, users_targeted, succeeded, failed, by_outcome, duration_ms, completed_at
		FROM audit_execution_summaries WHERE signal_id = ?
		ORDER BY completed_at DESC LIMIT 1`
	var s models.ExecutionSummary
	var approved uint8
	var byOutcome string
	var durationMs uint64
	err := a.db.QueryRowContext(ctx, q, signalID).Scan(
		&s.SignalID, &approved, &s.UsersTargeted, &s.Succeeded, &s.Failed,
		&byOutcome, &durationMs, &s.CompletedAt)
	if err != nil {
		return models.ExecutionSummary{}, err
	}
	s.GateApproved = approved != 0
	s.Duration = time.Duration(durationMs) * time.Millisecond
	if err := json.Unmarshal([]byte(byOutcome), &s.ByOutcome); err != nil {
		return models.ExecutionSummary{}, fmt.Errorf("unmarshal outcome counts: %w", err)
	}
	return s, nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

var (
	_ repository.AuditSink   = (*ClickHouseAudit)(nil)
	_ repository.AuditReader = (*ClickHouseAudit)(nil)
)
