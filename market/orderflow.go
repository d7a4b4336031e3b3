package market

// OrderFlow holds optional per-bar order-flow aggregates supplied alongside
// the bars: resting bid/ask volume and a short window of tape prints.
type OrderFlow struct {
	BidVolume float64
	AskVolume float64

	Prices  []float64
	Volumes []float64
}

// Imbalance returns BidVolume / (BidVolume + AskVolume). The second result
// is false when there is no volume at all.
func (f OrderFlow) Imbalance() (float64, bool) {
	total := f.BidVolume + f.AskVolume
	if total <= 0 {
		return 0, false
	}
	return f.BidVolume / total, true
}

// TapeVolume sums the tape print volumes.
func (f OrderFlow) TapeVolume() float64 {
	var sum float64
	for _, v := range f.Volumes {
		sum += v
	}
	return sum
}
