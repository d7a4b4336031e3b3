// Package sim is a single-position broker simulator: cash, equity, margin,
// commissions and an append-only trade ledger.
package sim

import (
	"fmt"
	"math"
	"sync"

	"github.com/quantlab/barsim/market"
)

// BrokerConfig holds constructor parameters for NewBroker.
type BrokerConfig struct {
	StartEquity float64
	Commission  Commission
	MaxLeverage float64
}

func (c BrokerConfig) Validate() error {
	if !(c.StartEquity > 0) || math.IsInf(c.StartEquity, 0) {
		return fmt.Errorf("%w: start equity must be > 0, got %v", ErrConfiguration, c.StartEquity)
	}
	if !(c.MaxLeverage > 0) || math.IsInf(c.MaxLeverage, 0) {
		return fmt.Errorf("%w: max leverage must be > 0, got %v", ErrConfiguration, c.MaxLeverage)
	}
	return c.Commission.Validate()
}

// OpenRequest describes an entry fill.
type OpenRequest struct {
	Symbol string
	Side   market.Side
	Price  float64
	Qty    float64
	Stop   float64
	Take   float64
	Time   int64
}

// Broker tracks account state for one run. Equity moves only on fees and
// realized PnL; open positions are not marked to market.
type Broker struct {
	mu sync.Mutex

	cfg        BrokerConfig
	cash       float64
	equity     float64
	usedMargin float64
	pos        *Position
	trades     []Trade
}

func NewBroker(cfg BrokerConfig) (*Broker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Broker{
		cfg:    cfg,
		cash:   cfg.StartEquity,
		equity: cfg.StartEquity,
	}, nil
}

// Open fills a new position. It fails with ErrInvalidState if a position is
// already open or qty <= 0, and with ErrInsufficientMargin if cash is below
// the required margin.
func (b *Broker) Open(req OpenRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pos != nil {
		return fmt.Errorf("open %s: %w: position already open", req.Symbol, ErrInvalidState)
	}
	if !(req.Qty > 0) {
		return fmt.Errorf("open %s: %w: qty must be > 0, got %v", req.Symbol, ErrInvalidState, req.Qty)
	}
	if req.Side != market.Long && req.Side != market.Short {
		return fmt.Errorf("open %s: %w: bad side %v", req.Symbol, ErrInvalidState, req.Side)
	}

	margin := Margin(req.Price, req.Qty, b.cfg.MaxLeverage)
	if b.cash < margin {
		return fmt.Errorf("open %s: %w: need %.4f, cash %.4f", req.Symbol, ErrInsufficientMargin, margin, b.cash)
	}

	fee := b.cfg.Commission.Fee(req.Price * req.Qty)
	b.cash -= fee
	b.equity -= fee
	b.usedMargin = margin

	b.pos = &Position{
		Symbol:   req.Symbol,
		Side:     req.Side,
		Qty:      req.Qty,
		Entry:    req.Price,
		Stop:     req.Stop,
		Take:     req.Take,
		Time:     req.Time,
		EntryFee: fee,
		Margin:   margin,
	}
	return nil
}

// Close exits the open position at price and appends the trade to the
// ledger. It fails with ErrInvalidState when flat.
func (b *Broker) Close(price float64, ts int64, reason ExitReason) (Trade, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pos == nil {
		return Trade{}, fmt.Errorf("close: %w: no open position", ErrInvalidState)
	}
	p := b.pos

	exitFee := b.cfg.Commission.Fee(price * p.Qty)
	pnl := p.PnL(price)

	b.cash += pnl - exitFee
	b.equity += pnl - exitFee
	b.usedMargin = 0

	t := Trade{
		Symbol:     p.Symbol,
		Side:       p.Side,
		Qty:        p.Qty,
		EntryPrice: p.Entry,
		ExitPrice:  price,
		EntryTime:  p.Time,
		ExitTime:   ts,
		PnL:        pnl,
		Fees:       p.EntryFee + exitFee,
		Reason:     reason,
	}
	b.trades = append(b.trades, t)
	b.pos = nil
	return t, nil
}

func (b *Broker) Cash() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cash
}

func (b *Broker) Equity() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.equity
}

func (b *Broker) UsedMargin() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.usedMargin
}

// Position returns a copy of the open position, if any.
func (b *Broker) Position() (Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pos == nil {
		return Position{}, false
	}
	return *b.pos, true
}

// HasPosition reports whether a position is open.
func (b *Broker) HasPosition() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pos != nil
}

// Trades returns a copy of the ledger.
func (b *Broker) Trades() []Trade {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Trade, len(b.trades))
	copy(out, b.trades)
	return out
}
