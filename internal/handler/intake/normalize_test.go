package intake

import (
	"encoding/json"
	"testing"

	"SigCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCanonicalPayload(t *testing.T) {
	raw := json.RawMessage(`{"symbol":"btcusdt","action":"long"}`)
	signal, err := Normalize(Payload{
		ID:         "sig-1",
		Symbol:     " btcusdt ",
		Action:     "long",
		Price:      42000,
		Confidence: 0.8,
		Source:     "webhook",
	}, raw)

	require.NoError(t, err)
	assert.Equal(t, "sig-1", signal.ID)
	assert.Equal(t, "BTCUSDT", signal.Symbol)
	assert.Equal(t, models.ActionLong, signal.Action)
	assert.Equal(t, raw, signal.RawPayload)
	assert.False(t, signal.ReceivedAt.IsZero())
}

func TestNormalizeGeneratesIDWhenMissing(t *testing.T) {
	first, err := Normalize(Payload{Symbol: "BTCUSDT", Action: "long", Price: 42000}, nil)
	require.NoError(t, err)
	second, err := Normalize(Payload{Symbol: "BTCUSDT", Action: "long", Price: 42000}, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestNormalizeFoldsActionAliases(t *testing.T) {
	cases := map[string]models.SignalAction{
		"long":  models.ActionLong,
		"buy":   models.ActionLong,
		"BUY":   models.ActionLong,
		"short": models.ActionShort,
		"sell":  models.ActionShort,
		"close": models.ActionClose,
	}
	for in, want := range cases {
		signal, err := Normalize(Payload{Symbol: "BTCUSDT", Action: in, Price: 42000}, nil)
		require.NoError(t, err, "action %q", in)
		assert.Equal(t, want, signal.Action, "action %q", in)
	}
}

func TestNormalizeRejectsPricelessEntries(t *testing.T) {
	for _, action := range []string{"long", "short", "buy", "sell"} {
		_, err := Normalize(Payload{Symbol: "BTCUSDT", Action: action}, nil)
		assert.Error(t, err, "action %q", action)
	}
}

func TestNormalizeAllowsPricelessClose(t *testing.T) {
	signal, err := Normalize(Payload{Symbol: "BTCUSDT", Action: "close"}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ActionClose, signal.Action)
	assert.Zero(t, signal.Price)
}

func TestNormalizeRejectsUnknownAction(t *testing.T) {
	_, err := Normalize(Payload{Symbol: "BTCUSDT", Action: "hold"}, nil)
	assert.Error(t, err)
}
