// Package marketdata maintains the market context snapshot the gate
// evaluates against. A websocket feed pushes context frames; the provider
// keeps only the latest one and marks it stale when the feed goes quiet,
// so a dead feed degrades into conservative gate decisions instead of
// stale approvals.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"SigCast/internal/domain/models"
	drepo "SigCast/internal/domain/repository"
	"SigCast/pkg/logger"

	"github.com/gorilla/websocket"
)

// StreamConfig configures the context feed connection.
type StreamConfig struct {
	WebSocketURL   string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	StaleAfter     time.Duration
}

// Stream implements drepo.ContextProvider over a websocket context feed.
type Stream struct {
	cfg StreamConfig
	log *logger.Logger

	mu        sync.RWMutex
	latest    models.MarketContext
	updatedAt time.Time

	conn *websocket.Conn
}

func NewStream(cfg StreamConfig, log *logger.Logger) *Stream {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 2 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Stream{cfg: cfg, log: log}
}

// contextFrame is the wire format of one context update.
type contextFrame struct {
	Type          string   `json:"type"`
	MarketBias    *string  `json:"market_bias"`
	Breadth       *float64 `json:"breadth"`
	MinimumScore  *float64 `json:"minimum_score"`
	SymbolWinRate *float64 `json:"symbol_win_rate"`
}

// Start connects and keeps reading until ctx is cancelled, reconnecting
// on failure.
func (s *Stream) Start(ctx context.Context) error {
	if s.cfg.WebSocketURL == "" {
		return fmt.Errorf("marketdata: websocket url not configured")
	}
	go s.run(ctx)
	return nil
}

func (s *Stream) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.connectAndRead(ctx); err != nil {
			s.log.Warn("context feed dropped", logger.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.ReconnectDelay):
		}
	}
}

func (s *Stream) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.WebSocketURL, nil)
	if err != nil {
		return fmt.Errorf("marketdata connect: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer conn.Close()
	s.log.Info("context feed connected", logger.String("url", s.cfg.WebSocketURL))

	go s.pingLoop(ctx, conn)

	for {
		if ctx.Err() != nil {
			return nil
		}
		_, b, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("marketdata read: %w", err)
		}
		var frame contextFrame
		if err := json.Unmarshal(b, &frame); err != nil {
			// ignore non-context frames
			continue
		}
		if frame.Type != "context" {
			continue
		}
		s.mu.Lock()
		s.latest = models.MarketContext{
			TakenAt:       time.Now().UTC(),
			MarketBias:    frame.MarketBias,
			Breadth:       frame.Breadth,
			MinimumScore:  frame.MinimumScore,
			SymbolWinRate: frame.SymbolWinRate,
		}
		s.updatedAt = time.Now()
		s.mu.Unlock()
	}
}

func (s *Stream) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Snapshot returns the latest context, or an empty one when the feed has
// gone stale. Empty fields evaluate as unfavorable in the gate.
func (s *Stream) Snapshot(ctx context.Context) models.MarketContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.updatedAt.IsZero() || time.Since(s.updatedAt) > s.cfg.StaleAfter {
		return models.MarketContext{TakenAt: time.Now().UTC()}
	}
	return s.latest
}

// Close shuts the current connection down.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

var _ drepo.ContextProvider = (*Stream)(nil)

// Static is a fixed-context provider for sandbox runs and tests.
type Static struct {
	Context models.MarketContext
}

func (s Static) Snapshot(ctx context.Context) models.MarketContext {
	return s.Context
}

var _ drepo.ContextProvider = Static{}
