package indicators

import (
	"fmt"

	"github.com/quantlab/barsim/market"
)

// SMA calculates the simple moving average of closes over the last period bars.
func SMA(bars []market.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(bars) < period {
		return 0, fmt.Errorf("not enough bars: need %d, got %d", period, len(bars))
	}

	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += bars[i].Close
	}
	return sum / float64(period), nil
}

// EMA calculates the exponential moving average of closes, seeded with the
// SMA of the first period bars.
func EMA(bars []market.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(bars) < period {
		return 0, fmt.Errorf("not enough bars: need %d, got %d", period, len(bars))
	}

	k := 2.0 / float64(period+1)

	ema := 0.0
	for i := 0; i < period; i++ {
		ema += bars[i].Close
	}
	ema /= float64(period)

	for i := period; i < len(bars); i++ {
		ema = (bars[i].Close-ema)*k + ema
	}
	return ema, nil
}

// SimpleMA is a streaming SMA over closes.
type SimpleMA struct {
	period int
	buf    []float64
	next   int
	count  int
	sum    float64
}

func NewSMA(period int) *SimpleMA {
	if period < 1 {
		period = 1
	}
	return &SimpleMA{period: period, buf: make([]float64, period)}
}

func (m *SimpleMA) Name() string { return fmt.Sprintf("SMA(%d)", m.period) }
func (m *SimpleMA) Warmup() int  { return m.period }

func (m *SimpleMA) Reset() {
	clear(m.buf)
	m.next, m.count, m.sum = 0, 0, 0
}

func (m *SimpleMA) Update(b market.Bar) {
	if m.count == m.period {
		m.sum -= m.buf[m.next]
	} else {
		m.count++
	}
	m.buf[m.next] = b.Close
	m.sum += b.Close
	m.next = (m.next + 1) % m.period
}

func (m *SimpleMA) Ready() bool { return m.count >= m.period }

func (m *SimpleMA) Value() float64 {
	if !m.Ready() {
		return 0
	}
	return m.sum / float64(m.period)
}

// ExponentialMA is a streaming EMA. Until period closes are seen it
// accumulates an SMA seed.
type ExponentialMA struct {
	period int
	k      float64
	count  int
	seed   float64
	value  float64
}

func NewEMA(period int) *ExponentialMA {
	if period < 1 {
		period = 1
	}
	return &ExponentialMA{period: period, k: 2.0 / float64(period+1)}
}

func (m *ExponentialMA) Name() string { return fmt.Sprintf("EMA(%d)", m.period) }
func (m *ExponentialMA) Warmup() int  { return m.period }

func (m *ExponentialMA) Reset() {
	m.count, m.seed, m.value = 0, 0, 0
}

func (m *ExponentialMA) Update(b market.Bar) {
	if m.count < m.period {
		m.seed += b.Close
		m.count++
		if m.count == m.period {
			m.value = m.seed / float64(m.period)
		}
		return
	}
	m.value = (b.Close-m.value)*m.k + m.value
}

func (m *ExponentialMA) Ready() bool { return m.count >= m.period }

func (m *ExponentialMA) Value() float64 {
	if !m.Ready() {
		return 0
	}
	return m.value
}

var (
	_ Indicator = (*SimpleMA)(nil)
	_ Indicator = (*ExponentialMA)(nil)
)
