package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"SigCast/internal/domain/models"
	drepo "SigCast/internal/domain/repository"

	"github.com/google/uuid"
)

// Paper is an in-process exchange used in sandbox environments. It fills
// every well-formed order instantly against the suggested price and
// rejects with the same categorized errors a real venue adapter would,
// so the rest of the engine behaves identically in both environments.
type Paper struct {
	name string

	mu       sync.Mutex
	orders   map[string]paperOrder
	balances map[string]float64 // api key -> quote balance available for margin
}

type paperOrder struct {
	ID       string
	Symbol   string
	Side     models.SignalAction
	Size     float64
	Price    float64
	PlacedAt time.Time
}

func NewPaper(name string) *Paper {
	if name == "" {
		name = "paper"
	}
	return &Paper{
		name:     name,
		orders:   make(map[string]paperOrder),
		balances: make(map[string]float64),
	}
}

func (p *Paper) Name() string { return p.name }

// SetBalance seeds the margin available to a credential; zero means
// unlimited (the default for sandbox runs).
func (p *Paper) SetBalance(apiKey string, quote float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[apiKey] = quote
}

func (p *Paper) PlaceOrder(ctx context.Context, creds models.Credentials, req drepo.OrderRequest) (drepo.OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return drepo.OrderResult{}, err
	}
	if creds.APIKey == "" || creds.APISecret == "" {
		return drepo.OrderResult{}, &models.ExchangeError{
			Kind:    models.ExchangeAuthRejected,
			Message: "missing api credentials",
		}
	}
	if !validSymbol(req.Symbol) {
		return drepo.OrderResult{}, &models.ExchangeError{
			Kind:    models.ExchangeInvalidSymbol,
			Message: fmt.Sprintf("symbol %q is not tradable", req.Symbol),
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if limit, ok := p.balances[creds.APIKey]; ok && limit > 0 {
		required := req.Size * req.Price / float64(max(req.Leverage, 1))
		if required > limit {
			return drepo.OrderResult{}, &models.ExchangeError{
				Kind:    models.ExchangeInsufficientMargin,
				Message: fmt.Sprintf("required margin %.2f exceeds available %.2f", required, limit),
			}
		}
	}

	order := paperOrder{
		ID:       uuid.NewString(),
		Symbol:   req.Symbol,
		Side:     req.Side,
		Size:     req.Size,
		Price:    req.Price,
		PlacedAt: time.Now().UTC(),
	}
	p.orders[order.ID] = order

	raw, _ := json.Marshal(map[string]interface{}{
		"order_id": order.ID,
		"symbol":   order.Symbol,
		"status":   "FILLED",
		"price":    order.Price,
		"qty":      order.Size,
	})
	return drepo.OrderResult{ExchangeOrderID: order.ID, Raw: raw}, nil
}

// OrderCount reports placed orders, used by sandbox checks.
func (p *Paper) OrderCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.orders)
}

func validSymbol(symbol string) bool {
	if symbol == "" {
		return false
	}
	s := strings.ToUpper(symbol)
	return s == symbol && !strings.ContainsAny(s, " /-")
}

var _ drepo.ExchangeClient = (*Paper)(nil)
