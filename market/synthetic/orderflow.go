package synthetic

import (
	"math"
	"math/rand"

	"github.com/quantlab/barsim/market"
)

// FlowOptions configures GenerateOrderFlow. Zero values take the bar
// generator's defaults.
type FlowOptions struct {
	PriceRef    float64
	VolumeBase  float64
	VolumeNoise float64
	Seed        int64
}

// GenerateOrderFlow produces n order-flow aggregates: a bid/ask split of a
// noisy total volume and three to six tape prints around a wandering
// reference price. It is not a realistic tape; it only gives flow-driven
// strategies something to react to in offline runs.
func GenerateOrderFlow(n int, opts FlowOptions) []market.OrderFlow {
	if n <= 0 {
		return nil
	}
	d := Defaults()
	if opts.PriceRef <= 0 {
		opts.PriceRef = d.StartPrice
	}
	if opts.VolumeBase <= 0 {
		opts.VolumeBase = d.VolumeBase
	}
	if opts.VolumeNoise <= 0 {
		opts.VolumeNoise = d.VolumeNoise
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	ref := opts.PriceRef

	out := make([]market.OrderFlow, 0, n)
	for i := 0; i < n; i++ {
		total := math.Max(1, opts.VolumeBase*(1+uniform(rng, -opts.VolumeNoise, opts.VolumeNoise)))

		bid := total * uniform(rng, 0.3, 0.7)
		ask := total - bid

		k := 3 + rng.Intn(4)
		prices := make([]float64, k)
		raw := make([]float64, k)
		var sum float64
		for j := 0; j < k; j++ {
			prices[j] = ref + uniform(rng, -0.02, 0.02)
			raw[j] = math.Max(1, rng.Float64())
			sum += raw[j]
		}
		volumes := make([]float64, k)
		for j := range raw {
			volumes[j] = total * raw[j] / sum
		}

		out = append(out, market.OrderFlow{
			BidVolume: bid,
			AskVolume: ask,
			Prices:    prices,
			Volumes:   volumes,
		})

		ref += rng.NormFloat64() * 0.05
	}
	return out
}
