// Package intake is the boundary where raw alert payloads become the one
// canonical Signal the engine accepts. All synonym handling and
// defaulting happens here, never inside the core.
package intake

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"SigCast/internal/domain/models"

	"github.com/google/uuid"
)

// Payload is the canonical intake schema. Both the webhook and the Kafka
// intake bind into this shape before anything else happens.
type Payload struct {
	ID         string  `json:"id"`
	Symbol     string  `json:"symbol" validate:"required"`
	Action     string  `json:"action" validate:"required,oneof=long short close buy sell"`
	Price      float64 `json:"price" validate:"gte=0"`
	Confidence float64 `json:"confidence" default:"0.5" validate:"gte=0,lte=1"`
	Source     string  `json:"source" default:"webhook"`
}

// Normalize converts a canonical payload into an immutable Signal,
// preserving the raw bytes for audit.
func Normalize(p Payload, raw json.RawMessage) (models.Signal, error) {
	action, err := normalizeAction(p.Action)
	if err != nil {
		return models.Signal{}, err
	}
	// Entries need a price for order sizing downstream. Close actions
	// flatten an existing position and may arrive without one.
	if action != models.ActionClose && p.Price <= 0 {
		return models.Signal{}, fmt.Errorf("price is required for %s signals", action)
	}

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}

	return models.Signal{
		ID:         id,
		Symbol:     strings.ToUpper(strings.TrimSpace(p.Symbol)),
		Action:     action,
		Price:      p.Price,
		Confidence: p.Confidence,
		Source:     p.Source,
		ReceivedAt: time.Now().UTC(),
		RawPayload: raw,
	}, nil
}

// normalizeAction folds the buy/sell aliases some alert sources emit
// into the canonical long/short actions.
func normalizeAction(action string) (models.SignalAction, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "long", "buy":
		return models.ActionLong, nil
	case "short", "sell":
		return models.ActionShort, nil
	case "close":
		return models.ActionClose, nil
	default:
		return "", fmt.Errorf("unrecognized action %q", action)
	}
}
